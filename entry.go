package arx

import (
	"fmt"
	"io/fs"
	"iter"
	"math"
	"strings"
	"time"
)

// Kind identifies which variant an Entry holds.
type Kind uint8

const (
	KindFile Kind = iota
	KindLink
	KindDir
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindLink:
		return "Link"
	case KindDir:
		return "Dir"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Index is the position of an entry in the archive's entry table.
type Index uint32

// RootIndex is the index of the root directory. The root is implicit: it
// is not stored in the entry table, so RootIndex never collides with a
// table position.
const RootIndex Index = math.MaxUint32

// IndexRange is the contiguous span [Begin, Begin+Size) of entry indexes
// holding a directory's children.
type IndexRange struct {
	Begin Index
	Size  uint32
}

// End returns the first index past the range.
func (r IndexRange) End() uint64 {
	return uint64(r.Begin) + uint64(r.Size)
}

// Contains reports whether i lies within the range.
func (r IndexRange) Contains(i Index) bool {
	return i >= r.Begin && uint64(i) < r.End()
}

// All returns an iterator over the indexes in the range.
func (r IndexRange) All() iter.Seq[Index] {
	return func(yield func(Index) bool) {
		for i := uint64(r.Begin); i < r.End(); i++ {
			if !yield(Index(i)) { //nolint:gosec // bounded by End
				return
			}
		}
	}
}

// Entry is one file, link, or directory of an archive.
//
// Entry is a value: every method works on the caller's copy and nothing a
// caller does to an Entry affects the archive.
type Entry struct {
	kind      Kind
	index     Index
	path      string
	parent    Index
	hasParent bool
	owner     uint32
	group     uint32
	rights    fs.FileMode
	mtime     uint64

	// File
	size    uint64
	content ContentAddress

	// Link
	target string

	// Dir
	children IndexRange
}

// Kind returns which variant the entry holds.
func (e Entry) Kind() Kind { return e.kind }

// Index returns the entry's position in the entry table.
func (e Entry) Index() Index { return e.index }

// Path returns the entry's full path as stored in the archive, without a
// leading slash. The root directory's path is empty.
//
// Paths are raw bytes; they are not guaranteed to be valid UTF-8.
func (e Entry) Path() string { return e.path }

// Name returns the last component of the entry's path.
func (e Entry) Name() string {
	return baseName(e.path)
}

// Parent returns the index of the directory holding this entry.
// ok is false only for the root directory.
func (e Entry) Parent() (parent Index, ok bool) { return e.parent, e.hasParent }

// Owner returns the numeric owner id.
func (e Entry) Owner() uint32 { return e.owner }

// Group returns the numeric group id.
func (e Entry) Group() uint32 { return e.group }

// Rights returns the permission bits.
func (e Entry) Rights() fs.FileMode { return e.rights }

// Mtime returns the modification time in seconds since the Unix epoch.
func (e Entry) Mtime() uint64 { return e.mtime }

// ModTime returns the modification time.
func (e Entry) ModTime() time.Time {
	if e.mtime > math.MaxInt64 {
		return time.Unix(math.MaxInt64, 0)
	}
	return time.Unix(int64(e.mtime), 0)
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return e.kind == KindFile }

// IsLink reports whether the entry is a symbolic link.
func (e Entry) IsLink() bool { return e.kind == KindLink }

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.kind == KindDir }

// ContentSize returns the size in bytes of a file's content.
func (e Entry) ContentSize() (uint64, error) {
	if e.kind != KindFile {
		return 0, e.kindError(ErrNotAFile)
	}
	return e.size, nil
}

// ContentAddress returns the address of a file's content.
func (e Entry) ContentAddress() (ContentAddress, error) {
	if e.kind != KindFile {
		return ContentAddress{}, e.kindError(ErrNotAFile)
	}
	return e.content, nil
}

// LinkTarget returns the target path of a symbolic link, as stored.
func (e Entry) LinkTarget() (string, error) {
	if e.kind != KindLink {
		return "", e.kindError(ErrNotALink)
	}
	return e.target, nil
}

// Children returns the index range holding a directory's children.
func (e Entry) Children() (IndexRange, error) {
	if e.kind != KindDir {
		return IndexRange{}, e.kindError(ErrNotADir)
	}
	return e.children, nil
}

// FirstChild returns the index of a directory's first child.
func (e Entry) FirstChild() (Index, error) {
	r, err := e.Children()
	return r.Begin, err
}

// ChildCount returns the number of children of a directory.
func (e Entry) ChildCount() (uint32, error) {
	r, err := e.Children()
	return r.Size, err
}

// Mode returns the entry's fs.FileMode: permission bits plus type bits.
func (e Entry) Mode() fs.FileMode {
	switch e.kind {
	case KindDir:
		return fs.ModeDir | e.rights
	case KindLink:
		return fs.ModeSymlink | e.rights
	default:
		return e.rights
	}
}

// String returns a debug representation such as "File(a/b.txt)".
func (e Entry) String() string {
	return e.kind.String() + "(" + e.path + ")"
}

func (e Entry) kindError(err error) error {
	return fmt.Errorf("%s: %w", e, err)
}

// baseName returns the text after the last slash.
func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
