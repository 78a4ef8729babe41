package arx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"slices"
	"strings"
	"time"
)

// maxLinkHops bounds symbolic link resolution, matching Linux's MAXSYMLINKS.
const maxLinkHops = 40

// Open implements fs.FS.
//
// Open follows symbolic links. A link target is resolved relative to the
// directory holding the link; a target with a leading slash starts at the
// archive root. Targets that leave the archive fail with fs.ErrNotExist.
// The returned file reads through a content Stream and fails with ErrClosed
// once the archive is closed.
func (a *Archive) Open(name string) (fs.File, error) {
	e, err := a.lookupFS("open", name, true)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return &openDir{a: a, name: name, entry: e}, nil
	}
	s, err := a.Content(e.content)
	if err != nil {
		return nil, fsError("open", name, err)
	}
	return &openFile{name: name, entry: e, s: s}, nil
}

// Stat implements fs.StatFS. It follows symbolic links.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	e, err := a.lookupFS("stat", name, true)
	if err != nil {
		return nil, err
	}
	return newInfo(e, name), nil
}

// Lstat implements fs.ReadLinkFS. It does not follow a link in the last
// path component.
func (a *Archive) Lstat(name string) (fs.FileInfo, error) {
	e, err := a.lookupFS("lstat", name, false)
	if err != nil {
		return nil, err
	}
	return newInfo(e, name), nil
}

// ReadLink implements fs.ReadLinkFS. It returns the link target as stored.
func (a *Archive) ReadLink(name string) (string, error) {
	e, err := a.lookupFS("readlink", name, false)
	if err != nil {
		return "", err
	}
	target, err := e.LinkTarget()
	if err != nil {
		return "", fsError("readlink", name, err)
	}
	return target, nil
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile resolves name following symbolic links and reads the whole
// content of the file it names.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	e, err := a.lookupFS("readfile", name, true)
	if err != nil {
		return nil, err
	}
	data, err := a.ReadEntry(e)
	if err != nil {
		return nil, fsError("readfile", name, err)
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	e, err := a.lookupFS("readdir", name, true)
	if err != nil {
		return nil, err
	}
	if !e.IsDir() {
		return nil, fsError("readdir", name, e.kindError(ErrNotADir))
	}
	entries, err := a.dirEntries(e)
	if err != nil {
		return nil, fsError("readdir", name, err)
	}
	return entries, nil
}

func (a *Archive) dirEntries(dir Entry) ([]fs.DirEntry, error) {
	out := make([]fs.DirEntry, 0, dir.children.Size)
	for e, err := range a.Children(dir) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y fs.DirEntry) int {
		return strings.Compare(x.Name(), y.Name())
	})
	return out, nil
}

// lookupFS validates an fs.FS name and resolves it.
func (a *Archive) lookupFS(op, name string, followLast bool) (Entry, error) {
	if !fs.ValidPath(name) {
		return Entry{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	release, err := a.acquire()
	if err != nil {
		return Entry{}, fsError(op, name, err)
	}
	defer release()

	e, err := a.table.walk(name, followLast)
	if err != nil {
		return Entry{}, fsError(op, name, err)
	}
	return e, nil
}

// walk resolves name like resolve, but follows symbolic links met along
// the way, and in the last component when followLast is set. "." and ".."
// in link targets step within the tree; ".." at the root stays at the root.
func (t *table) walk(name string, followLast bool) (Entry, error) {
	rest := SplitPath(name)
	cur := t.root
	hops := 0
	for len(rest) > 0 {
		component := rest[0]
		rest = rest[1:]

		switch component {
		case ".":
			continue
		case "..":
			if cur.hasParent {
				parent, err := t.at(cur.parent)
				if err != nil {
					return Entry{}, err
				}
				cur = parent
			}
			continue
		}

		child, ok := t.lookup(cur.children, component)
		if !ok {
			return Entry{}, ErrNotFound
		}
		if child.kind == KindLink && (len(rest) > 0 || followLast) {
			hops++
			if hops > maxLinkHops {
				return Entry{}, ErrTooManyLinks
			}
			if strings.HasPrefix(child.target, "/") {
				cur = t.root
			}
			rest = append(SplitPath(child.target), rest...)
			continue
		}
		if len(rest) > 0 && child.kind != KindDir {
			return Entry{}, ErrNotADirectory
		}
		cur = child
	}
	return cur, nil
}

// fsError wraps err in an *fs.PathError that also matches the io/fs
// sentinel for its kind.
func fsError(op, name string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		err = fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case errors.Is(err, ErrClosed):
		err = fmt.Errorf("%w: %w", fs.ErrClosed, err)
	case errors.Is(err, ErrNotADirectory), errors.Is(err, ErrNotADir),
		errors.Is(err, ErrNotAFile), errors.Is(err, ErrNotALink),
		errors.Is(err, ErrTooManyLinks):
		err = fmt.Errorf("%w: %w", fs.ErrInvalid, err)
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Type implements fs.DirEntry.
func (e Entry) Type() fs.FileMode { return e.Mode().Type() }

// Info implements fs.DirEntry.
func (e Entry) Info() (fs.FileInfo, error) { return newInfo(e, e.path), nil }

// Info implements fs.FileInfo for archive entries.
type Info struct {
	entry Entry
	name  string
}

func newInfo(e Entry, name string) *Info {
	if name == "." || name == "" {
		name = "."
	} else {
		name = baseName(name)
	}
	return &Info{entry: e, name: name}
}

// Name returns the base name the entry was looked up by, or "." for the
// root.
func (fi *Info) Name() string { return fi.name }

// Mode returns the permission and type bits of the entry.
func (fi *Info) Mode() fs.FileMode { return fi.entry.Mode() }

// ModTime returns the entry's modification time.
func (fi *Info) ModTime() time.Time { return fi.entry.ModTime() }

// IsDir reports whether the entry is a directory.
func (fi *Info) IsDir() bool { return fi.entry.IsDir() }

// Size returns the content size of a file and the target length of a
// link. Directories report 0.
func (fi *Info) Size() int64 {
	switch fi.entry.kind {
	case KindFile:
		if fi.entry.size > math.MaxInt64 {
			return -1
		}
		return int64(fi.entry.size)
	case KindLink:
		return int64(len(fi.entry.target))
	default:
		return 0
	}
}

// Sys returns the underlying Entry.
func (fi *Info) Sys() any { return fi.entry }

// openFile implements fs.File for regular files.
type openFile struct {
	name   string
	entry  Entry
	s      *Stream
	closed bool
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return newInfo(f.entry, f.name), nil
}

func (f *openFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	n, err := f.s.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fsError("read", f.name, err)
	}
	return n, err
}

func (f *openFile) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.name, Err: fs.ErrClosed}
	}
	f.closed = true
	return nil
}

// openDir implements fs.ReadDirFile for directories.
type openDir struct {
	a       *Archive
	name    string
	entry   Entry
	entries []fs.DirEntry
	loaded  bool
	offset  int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return newInfo(d.entry, d.name), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		entries, err := d.a.dirEntries(d.entry)
		if err != nil {
			return nil, fsError("readdir", d.name, err)
		}
		d.entries = entries
		d.loaded = true
	}

	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}

// Interface compliance.
var (
	_ fs.FS          = (*Archive)(nil)
	_ fs.StatFS      = (*Archive)(nil)
	_ fs.ReadFileFS  = (*Archive)(nil)
	_ fs.ReadDirFS   = (*Archive)(nil)
	_ fs.ReadLinkFS  = (*Archive)(nil)
	_ fs.DirEntry    = Entry{}
	_ fs.ReadDirFile = (*openDir)(nil)
)
