package arx

import (
	"io/fs"
	"sort"
)

// resolve maps a slash-separated path to an entry, starting at the root.
//
// Each component is looked up among the children of the directory reached
// so far. The last component may name an entry of any kind; an earlier
// component must name a directory. Links are not followed.
func (t *table) resolve(name string) (Entry, error) {
	components := SplitPath(name)
	cur := t.root
	for i, component := range components {
		child, ok := t.lookup(cur.children, component)
		if !ok {
			return Entry{}, &fs.PathError{Op: "resolve", Path: name, Err: ErrNotFound}
		}
		if i < len(components)-1 && child.kind != KindDir {
			return Entry{}, &fs.PathError{Op: "resolve", Path: name, Err: ErrNotADirectory}
		}
		cur = child
	}
	return cur, nil
}

// lookup finds the child named name within r.
func (t *table) lookup(r IndexRange, name string) (Entry, bool) {
	children := t.entries[r.Begin:r.End()]
	if t.sorted {
		i := sort.Search(len(children), func(i int) bool {
			return children[i].Name() >= name
		})
		if i < len(children) && children[i].Name() == name {
			return children[i], true
		}
		return Entry{}, false
	}
	for _, child := range children {
		if child.Name() == name {
			return child, true
		}
	}
	return Entry{}, false
}
