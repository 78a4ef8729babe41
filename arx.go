package arx

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"sync"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"

	"github.com/meigma/arx/internal/container"
)

// Archive is an open container.
//
// All methods are safe for concurrent use. Lookups and reads share the
// archive; Close waits for them to finish and every call after Close fails
// with ErrClosed.
type Archive struct {
	mu     sync.RWMutex
	closed bool

	c      *container.Container
	table  *table
	id     digest.Digest
	closer io.Closer // nil when the caller owns the source
	logger *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens the container file at location on the local filesystem.
//
// Opening is all or nothing: on error no archive is returned and the file
// is closed. Every open error wraps ErrOpen.
func Open(location string, opts ...Option) (*Archive, error) {
	return OpenFs(afero.NewOsFs(), location, opts...)
}

// OpenFs opens the container file name on fsys, which may be an in-memory,
// read-only or base-path filesystem as well as the OS one. Close closes the
// file.
func OpenFs(fsys afero.Fs, name string, opts ...Option) (*Archive, error) {
	cfg := newConfig(opts)

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	src, err := newFileSource(f, cfg.sourceID)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	a, err := open(src, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = src
	return a, nil
}

// OpenSource opens a container read from src. The caller keeps ownership
// of src; Close does not close it.
func OpenSource(src ByteSource, opts ...Option) (*Archive, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrOpen)
	}
	return open(src, newConfig(opts))
}

func newConfig(opts []Option) *config {
	cfg := &config{
		maxPackSize:      DefaultMaxPackSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func open(src ByteSource, cfg *config) (*Archive, error) {
	c, err := container.Open(src, cfg.containerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	t, err := newTable(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrOpen, container.ErrFormat, err)
	}
	a := &Archive{
		c:      c,
		table:  t,
		id:     digest.FromBytes(c.IndexData()),
		logger: cfg.logger,
	}
	a.log().Debug("archive opened", "source_id", src.SourceID(), "id", a.id, "entries", t.len(), "sorted", t.sorted)
	return a, nil
}

// Close releases the archive. Close waits for in-flight operations; after
// it returns every method fails with ErrClosed. Closing twice is a no-op.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.c.Release()
	a.log().Debug("archive closed", "id", a.id)
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// acquire takes the shared lock for one operation. The returned func
// releases it.
func (a *Archive) acquire() (func(), error) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil, ErrClosed
	}
	return a.mu.RUnlock, nil
}

// ID returns the digest of the archive's index. Two archives with the same
// ID hold the same tree and content addresses.
func (a *Archive) ID() digest.Digest {
	return a.id
}

// Media types of the blob pools reported by Packs.
const (
	MediaTypePack     = "application/vnd.meigma.arx.pack.v1"
	MediaTypePackZstd = "application/vnd.meigma.arx.pack.v1+zstd"
)

// Annotation keys set on pack descriptors.
const (
	AnnotationPackID    = "io.meigma.arx.pack.id"
	AnnotationPackBlobs = "io.meigma.arx.pack.blobs"
)

// Packs returns a descriptor for each blob pool in the container, in index
// order. Digest and size cover the pool as stored, before decompression.
func (a *Archive) Packs() []ocispec.Descriptor {
	packs := a.c.Packs()
	out := make([]ocispec.Descriptor, 0, len(packs))
	for _, p := range packs {
		mediaType := MediaTypePack
		if p.Compression == container.CompressionZstd {
			mediaType = MediaTypePackZstd
		}
		out = append(out, ocispec.Descriptor{
			MediaType: mediaType,
			Digest:    p.Digest,
			Size:      int64(p.Size), //nolint:gosec // bounded by the source size at open
			Annotations: map[string]string{
				AnnotationPackID:    strconv.Itoa(int(p.ID)),
				AnnotationPackBlobs: strconv.Itoa(len(p.Blobs)),
			},
		})
	}
	return out
}

// Len returns the number of entries in the table, not counting the root.
func (a *Archive) Len() int {
	return a.table.len()
}

// Root returns the root directory entry.
func (a *Archive) Root() (Entry, error) {
	return a.EntryAt(RootIndex)
}

// Entry resolves a slash-separated path to an entry.
//
// Leading, trailing and repeated slashes are ignored; "" and "/" name the
// root. Resolution fails with ErrNotFound when a component does not exist
// and with ErrNotADirectory when it would pass through a file or link.
// Symbolic links are not followed.
func (a *Archive) Entry(path string) (Entry, error) {
	release, err := a.acquire()
	if err != nil {
		return Entry{}, err
	}
	defer release()
	return a.table.resolve(path)
}

// EntryAt returns the entry at index i. RootIndex returns the root.
func (a *Archive) EntryAt(i Index) (Entry, error) {
	release, err := a.acquire()
	if err != nil {
		return Entry{}, err
	}
	defer release()
	return a.table.at(i)
}

// Entries returns an iterator over every entry in table order, root
// excluded. Iteration yields ErrClosed once if the archive is closed.
func (a *Archive) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		release, err := a.acquire()
		if err != nil {
			yield(Entry{}, err)
			return
		}
		// The table is immutable; hold the lock only to check state.
		release()
		for e := range a.table.all() {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Children returns an iterator over the children of dir, in table order.
// It yields a single ErrNotADir error when dir is not a directory.
func (a *Archive) Children(dir Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		release, err := a.acquire()
		if err != nil {
			yield(Entry{}, err)
			return
		}
		release()
		if !dir.IsDir() {
			yield(Entry{}, dir.kindError(ErrNotADir))
			return
		}
		// Use the archive's own copy so ranges always refer to this table.
		canonical, err := a.table.at(dir.index)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for e := range a.table.children(canonical) {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// List resolves path and returns the children of the directory it names,
// in table order.
func (a *Archive) List(path string) ([]Entry, error) {
	dir, err := a.Entry(path)
	if err != nil {
		return nil, err
	}
	n, err := dir.ChildCount()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, n)
	for e, err := range a.Children(dir) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Content returns a stream over the blob at addr. The stream yields
// exactly the blob's declared size and cannot be rewound. Each call
// returns an independent stream.
func (a *Archive) Content(addr ContentAddress) (*Stream, error) {
	release, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := a.c.Reader(addr)
	if err != nil {
		return nil, readError(addr, err)
	}
	return &Stream{a: a, addr: addr, r: r}, nil
}

// ReadContent reads the whole blob at addr into a buffer sized exactly to
// its declared length. A short read fails with ErrRead; no partial buffer
// is returned.
func (a *Archive) ReadContent(addr ContentAddress) ([]byte, error) {
	s, err := a.Content(addr)
	if err != nil {
		return nil, err
	}
	return s.ReadAll()
}

// ReadEntry reads the content of a file entry. It fails with ErrRead when
// the blob at the entry's address does not hold the entry's declared size,
// as happens for an entry taken from another archive.
func (a *Archive) ReadEntry(e Entry) ([]byte, error) {
	addr, err := e.ContentAddress()
	if err != nil {
		return nil, err
	}
	s, err := a.Content(addr)
	if err != nil {
		return nil, err
	}
	if s.Size() != e.size {
		return nil, fmt.Errorf("%s: %w: declares %d bytes, content %s holds %d", e, ErrRead, e.size, addr, s.Size())
	}
	return s.ReadAll()
}

// readError classifies a container read failure.
func readError(addr ContentAddress, err error) error {
	switch {
	case errors.Is(err, container.ErrUnknownPack), errors.Is(err, container.ErrUnknownBlob):
		return fmt.Errorf("content %s: %w: %w: %w", addr, ErrRead, ErrInvalidAddress, err)
	default:
		return fmt.Errorf("content %s: %w: %w", addr, ErrRead, err)
	}
}
