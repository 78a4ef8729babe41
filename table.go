package arx

import (
	"fmt"
	"io/fs"
	"iter"
	"strings"

	"github.com/meigma/arx/internal/container"
)

// recordSource is the part of the container primitive the table is built from.
type recordSource interface {
	Len() int
	Root() (first, count uint32)
	Record(i int) (container.Record, bool)
	BlobSize(addr container.Address) (uint64, error)
}

// table is the materialized entry table. It is built once and never
// modified, so it is safe for concurrent reads.
type table struct {
	entries []Entry
	root    Entry
	// sorted is true when every child range is ordered by name, which lets
	// resolution binary search instead of scanning.
	sorted bool
}

// newTable copies every record out of src and checks it against the tree
// structure and the blob table. A table that passes satisfies the parent law
// for every entry.
func newTable(src recordSource) (*table, error) {
	n := src.Len()
	if uint64(n) >= uint64(RootIndex) {
		return nil, fmt.Errorf("entry table too large: %d entries", n)
	}

	t := &table{entries: make([]Entry, n), sorted: true}
	for i := range n {
		rec, ok := src.Record(i)
		if !ok {
			return nil, fmt.Errorf("entry %d: missing record", i)
		}
		e, err := entryFromRecord(Index(i), rec) //nolint:gosec // n < RootIndex checked above
		if err != nil {
			return nil, err
		}
		if e.kind == KindFile {
			if err := checkContent(src, e); err != nil {
				return nil, err
			}
		}
		t.entries[i] = e
	}

	first, count := src.Root()
	t.root = Entry{
		kind:     KindDir,
		index:    RootIndex,
		rights:   0o755,
		children: IndexRange{Begin: Index(first), Size: count},
	}
	if err := t.checkRange(t.root); err != nil {
		return nil, err
	}
	for _, e := range t.entries {
		if e.kind != KindDir {
			continue
		}
		if err := t.checkRange(e); err != nil {
			return nil, err
		}
	}
	if err := t.checkTree(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkContent requires a file's address to name a blob holding exactly the
// file's declared size.
func checkContent(src recordSource, e Entry) error {
	size, err := src.BlobSize(e.content)
	if err != nil {
		return fmt.Errorf("%s: %w", e, err)
	}
	if size != e.size {
		return fmt.Errorf("%s: declares %d bytes but blob %s holds %d", e, e.size, e.content, size)
	}
	return nil
}

func entryFromRecord(i Index, rec container.Record) (Entry, error) {
	e := Entry{
		index:     i,
		path:      rec.Path,
		hasParent: true,
		owner:     rec.Owner,
		group:     rec.Group,
		rights:    unixRights(rec.Rights),
		mtime:     rec.Mtime,
	}
	if rec.Path == "" {
		return Entry{}, fmt.Errorf("entry %d: empty path", i)
	}
	switch {
	case rec.Parent == container.NoParent:
		e.parent = RootIndex
	case rec.Parent >= 0 && rec.Parent < int64(RootIndex):
		e.parent = Index(rec.Parent)
	default:
		return Entry{}, fmt.Errorf("entry %d: invalid parent %d", i, rec.Parent)
	}

	switch rec.Kind {
	case container.KindFile:
		e.kind = KindFile
		e.size = rec.Size
		e.content = rec.Content
	case container.KindLink:
		e.kind = KindLink
		e.target = rec.Target
	case container.KindDir:
		e.kind = KindDir
		e.children = IndexRange{Begin: Index(rec.FirstChild), Size: rec.ChildCount}
	default:
		return Entry{}, fmt.Errorf("entry %d: unknown kind %d", i, rec.Kind)
	}
	return e, nil
}

// unixRights converts stored Unix permission bits to an fs.FileMode.
func unixRights(r uint16) fs.FileMode {
	m := fs.FileMode(r) & fs.ModePerm
	if r&0o4000 != 0 {
		m |= fs.ModeSetuid
	}
	if r&0o2000 != 0 {
		m |= fs.ModeSetgid
	}
	if r&0o1000 != 0 {
		m |= fs.ModeSticky
	}
	return m
}

// checkRange validates the children of dir and records whether they are
// sorted by name.
func (t *table) checkRange(dir Entry) error {
	r := dir.children
	if r.End() > uint64(len(t.entries)) {
		return fmt.Errorf("%s: children [%d, %d) outside table of %d entries", dir, r.Begin, r.End(), len(t.entries))
	}
	prev := ""
	for i := range r.All() {
		child := t.entries[i]
		if child.parent != dir.index {
			return fmt.Errorf("%s: child %d names parent %d", dir, i, child.parent)
		}
		name := child.Name()
		if i > r.Begin && strings.Compare(prev, name) >= 0 {
			t.sorted = false
		}
		prev = name
	}
	return nil
}

// checkTree walks the directory ranges from the root. Every entry must be
// reached exactly once. With checkRange this makes each entry's parent a
// directory whose range holds it.
func (t *table) checkTree() error {
	reached := make([]bool, len(t.entries))
	queue := []Entry{t.root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		for i := range dir.children.All() {
			if reached[i] {
				return fmt.Errorf("%s: child %d already belongs to another directory", dir, i)
			}
			reached[i] = true
			if child := t.entries[i]; child.kind == KindDir {
				queue = append(queue, child)
			}
		}
	}
	for i, ok := range reached {
		if !ok {
			e := t.entries[i]
			return fmt.Errorf("%s: not in the children of any directory reachable from the root (parent %d)", e, e.parent)
		}
	}
	return nil
}

// len returns the number of entries, not counting the root.
func (t *table) len() int {
	return len(t.entries)
}

// at returns the entry at i. RootIndex yields the root directory.
func (t *table) at(i Index) (Entry, error) {
	if i == RootIndex {
		return t.root, nil
	}
	if uint64(i) >= uint64(len(t.entries)) {
		return Entry{}, fmt.Errorf("entry %d: %w (table has %d entries)", i, ErrIndexOutOfRange, len(t.entries))
	}
	return t.entries[i], nil
}

// all iterates over every entry in table order.
func (t *table) all() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range t.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// children iterates over the entries in dir's children range.
func (t *table) children(dir Entry) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := range dir.children.All() {
			if uint64(i) >= uint64(len(t.entries)) {
				return
			}
			if !yield(t.entries[i]) {
				return
			}
		}
	}
}
