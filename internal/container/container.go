package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/arx/internal/fb"
)

const (
	// DefaultMaxPackSize bounds the unpacked size of a compressed pack (1GB).
	DefaultMaxPackSize = 1 << 30

	// DefaultMaxDecoderMemory is the default zstd decoder memory limit (256MB).
	DefaultMaxDecoderMemory = 256 << 20

	// IndexVersion is the only index version understood by this package.
	IndexVersion = 1
)

// Sentinel errors for container access.
var (
	// ErrSizeOverflow is returned when an offset or size does not fit.
	ErrSizeOverflow = errors.New("container: size overflow")

	// ErrUnknownPack is returned for an address naming a pack that does not exist.
	ErrUnknownPack = errors.New("container: unknown pack")

	// ErrUnknownBlob is returned for an address naming a blob outside its pack.
	ErrUnknownBlob = errors.New("container: unknown blob")

	// ErrShortRead is returned when a blob yields fewer bytes than declared.
	ErrShortRead = errors.New("container: short read")

	// ErrDecompression is returned when a compressed pack cannot be unpacked.
	ErrDecompression = errors.New("container: decompression failed")
)

// ByteSource provides random access to container bytes.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Re-export FlatBuffers enums used by callers.
type (
	// Kind tags an entry record as a file, link, or directory.
	Kind = fb.EntryKind

	// Compression identifies how a pack is stored.
	Compression = fb.Compression
)

// Re-export enum values.
const (
	KindFile = fb.EntryKindFile
	KindLink = fb.EntryKindLink
	KindDir  = fb.EntryKindDir

	CompressionNone = fb.CompressionNone
	CompressionZstd = fb.CompressionZstd
)

// NoParent is the stored parent value of entries that live directly under
// the root directory.
const NoParent = -1

// Address names a blob inside a pack.
type Address struct {
	Pack uint16
	Blob uint32
}

// String renders the address as "pack:blob".
func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Pack, a.Blob)
}

// Record is a raw entry record as stored in the index.
// Fields that do not apply to the record's kind are zero.
type Record struct {
	Kind       Kind
	Path       string
	Parent     int64
	Owner      uint32
	Group      uint32
	Rights     uint16
	Mtime      uint64
	Size       uint64
	Content    Address
	Target     string
	FirstChild uint32
	ChildCount uint32
}

// BlobLoc locates a blob within the unpacked contents of a pack.
type BlobLoc struct {
	Offset uint64
	Size   uint64
}

// Pack describes one blob pool.
type Pack struct {
	ID          uint16
	Offset      uint64
	Size        uint64
	Compression Compression
	Digest      digest.Digest
	Blobs       []BlobLoc
}

// Option configures a Container.
type Option func(*Container)

// WithMaxPackSize limits the unpacked size of compressed packs.
// Set limit to 0 to disable the limit.
func WithMaxPackSize(limit uint64) Option {
	return func(c *Container) {
		c.maxPackSize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *Container) {
		c.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(c *Container) {
		if n < 0 {
			n = 0
		}
		c.decoderConcurrency = n
	}
}

// WithDecoderLowmem sets whether the zstd decoder runs in low-memory mode.
func WithDecoderLowmem(enabled bool) Option {
	return func(c *Container) {
		c.decoderLowmem = enabled
	}
}

// WithLogger sets the logger for container operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// Container is an opened container. It is safe for concurrent use.
type Container struct {
	src       ByteSource
	header    Header
	indexData []byte
	root      *fb.Index
	packs     map[uint16]*Pack
	packOrder []uint16

	maxPackSize        uint64
	maxDecoderMemory   uint64
	decoderConcurrency int
	decoderLowmem      bool
	decoders           *decoderPool
	logger             *slog.Logger

	mu       sync.RWMutex
	unpacked map[uint16][]byte
	unpackSF singleflight.Group
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Container) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Open validates the framing of src and loads its index.
func Open(src ByteSource, opts ...Option) (*Container, error) {
	c := &Container{
		src:                src,
		maxPackSize:        DefaultMaxPackSize,
		maxDecoderMemory:   DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
		unpacked:           make(map[uint16][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}

	h, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}
	c.header = h

	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	if err := c.loadPacks(); err != nil {
		return nil, err
	}
	c.decoders = newDecoderPool(c.maxDecoderMemory, c.decoderConcurrency, c.decoderLowmem)

	c.log().Debug("container opened",
		"source", src.SourceID(),
		"entries", c.Len(),
		"packs", len(c.packs),
		"index_size", h.IndexSize,
	)
	return c, nil
}

// loadIndex reads the index region and parses it as FlatBuffers.
func (c *Container) loadIndex() error {
	size := uint64(c.src.Size()) //nolint:gosec // Size is never negative for a valid source
	if c.header.IndexSize == 0 {
		return fmt.Errorf("%w: empty index", ErrFormat)
	}
	if c.header.IndexOffset < HeaderSize || !withinRange(c.header.IndexOffset, c.header.IndexSize, size) {
		return fmt.Errorf("%w: index region [%d, +%d) outside source of %d bytes",
			ErrFormat, c.header.IndexOffset, c.header.IndexSize, size)
	}
	off, err := toInt64(c.header.IndexOffset)
	if err != nil {
		return err
	}
	n, err := toInt(c.header.IndexSize)
	if err != nil {
		return err
	}
	data := make([]byte, n)
	if _, err := c.src.ReadAt(data, off); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read index: %w", err)
	}

	root, err := parseIndex(data)
	if err != nil {
		return err
	}
	if v := root.Version(); v != IndexVersion {
		return fmt.Errorf("%w: unsupported index version %d", ErrFormat, v)
	}
	c.indexData = data
	c.root = root
	return nil
}

// parseIndex guards the FlatBuffers accessors, which panic on malformed input.
func parseIndex(data []byte) (root *fb.Index, err error) {
	defer func() {
		if r := recover(); r != nil {
			root = nil
			err = fmt.Errorf("%w: failed to parse index: %v", ErrFormat, r)
		}
	}()
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: index too small", ErrFormat)
	}
	root = fb.GetRootAsIndex(data, 0)
	// Touch every vector once so truncated buffers fail here rather than
	// on first access.
	_ = root.Version()
	var e fb.Entry
	for i := range root.EntriesLength() {
		root.Entries(&e, i)
		_ = e.Path()
		_ = e.Target()
		_ = e.ChildCount()
	}
	var p fb.Pack
	var loc fb.BlobLoc
	for i := range root.PacksLength() {
		root.Packs(&p, i)
		_ = p.Digest()
		if n := p.BlobsLength(); n > 0 {
			p.Blobs(&loc, n-1)
			_ = loc.Size()
		}
	}
	return root, nil
}

// loadPacks copies pack descriptors out of the index and validates them.
func (c *Container) loadPacks() error {
	srcSize := uint64(c.src.Size()) //nolint:gosec // Size is never negative for a valid source
	c.packs = make(map[uint16]*Pack, c.root.PacksLength())
	var p fb.Pack
	var loc fb.BlobLoc
	for i := range c.root.PacksLength() {
		if !c.root.Packs(&p, i) {
			return fmt.Errorf("%w: missing pack %d", ErrFormat, i)
		}
		pack := &Pack{
			ID:          p.Id(),
			Offset:      p.Offset(),
			Size:        p.Size(),
			Compression: p.Compression(),
			Blobs:       make([]BlobLoc, p.BlobsLength()),
		}
		if _, dup := c.packs[pack.ID]; dup {
			return fmt.Errorf("%w: duplicate pack id %d", ErrFormat, pack.ID)
		}
		if !withinRange(pack.Offset, pack.Size, srcSize) {
			return fmt.Errorf("%w: pack %d outside source", ErrFormat, pack.ID)
		}
		switch pack.Compression {
		case CompressionNone, CompressionZstd:
		default:
			return fmt.Errorf("%w: pack %d has unknown compression %d", ErrFormat, pack.ID, pack.Compression)
		}
		if d := p.Digest(); len(d) > 0 {
			parsed, err := digest.Parse(string(d))
			if err != nil {
				return fmt.Errorf("%w: pack %d digest: %v", ErrFormat, pack.ID, err)
			}
			pack.Digest = parsed
		}
		for j := range pack.Blobs {
			p.Blobs(&loc, j)
			pack.Blobs[j] = BlobLoc{Offset: loc.Offset(), Size: loc.Size()}
			if pack.Compression == CompressionNone && !withinRange(loc.Offset(), loc.Size(), pack.Size) {
				return fmt.Errorf("%w: blob %d outside pack %d", ErrFormat, j, pack.ID)
			}
		}
		c.packs[pack.ID] = pack
		c.packOrder = append(c.packOrder, pack.ID)
	}
	return nil
}

// Len returns the number of entry records.
func (c *Container) Len() int {
	return c.root.EntriesLength()
}

// Root returns the children range of the implicit root directory.
func (c *Container) Root() (first, count uint32) {
	return c.root.RootFirst(), c.root.RootCount()
}

// Record returns a copy of the i-th entry record.
func (c *Container) Record(i int) (Record, bool) {
	if i < 0 || i >= c.Len() {
		return Record{}, false
	}
	var e fb.Entry
	if !c.root.Entries(&e, i) {
		return Record{}, false
	}
	return Record{
		Kind:       e.Kind(),
		Path:       string(e.Path()),
		Parent:     e.Parent(),
		Owner:      e.Owner(),
		Group:      e.Group(),
		Rights:     e.Rights(),
		Mtime:      e.Mtime(),
		Size:       e.Size(),
		Content:    Address{Pack: e.Pack(), Blob: e.Blob()},
		Target:     string(e.Target()),
		FirstChild: e.FirstChild(),
		ChildCount: e.ChildCount(),
	}, true
}

// Packs returns the packs in index order.
func (c *Container) Packs() []Pack {
	out := make([]Pack, 0, len(c.packOrder))
	for _, id := range c.packOrder {
		out = append(out, *c.packs[id])
	}
	return out
}

// IndexData returns the raw FlatBuffers index.
// The returned slice must be treated as immutable.
func (c *Container) IndexData() []byte {
	return c.indexData
}

// Source returns the underlying byte source.
func (c *Container) Source() ByteSource {
	return c.src
}

// blob looks up the pack and location addr names.
func (c *Container) blob(addr Address) (*Pack, BlobLoc, error) {
	pack, ok := c.packs[addr.Pack]
	if !ok {
		return nil, BlobLoc{}, fmt.Errorf("%w: %s", ErrUnknownPack, addr)
	}
	if uint64(addr.Blob) >= uint64(len(pack.Blobs)) {
		return nil, BlobLoc{}, fmt.Errorf("%w: %s", ErrUnknownBlob, addr)
	}
	return pack, pack.Blobs[addr.Blob], nil
}

// BlobSize returns the size the index records for the blob at addr,
// without reading or unpacking anything.
func (c *Container) BlobSize(addr Address) (uint64, error) {
	_, loc, err := c.blob(addr)
	if err != nil {
		return 0, err
	}
	return loc.Size, nil
}

// Reader returns a reader producing exactly the bytes of the blob at addr.
func (c *Container) Reader(addr Address) (*Reader, error) {
	pack, loc, err := c.blob(addr)
	if err != nil {
		return nil, err
	}

	switch pack.Compression {
	case CompressionNone:
		start, ok := rangeEnd(pack.Offset, loc.Offset)
		if !ok {
			return nil, ErrSizeOverflow
		}
		off, err := toInt64(start)
		if err != nil {
			return nil, err
		}
		n, err := toInt64(loc.Size)
		if err != nil {
			return nil, err
		}
		return newReader(io.NewSectionReader(c.src, off, n), loc.Size), nil
	default:
		data, err := c.unpack(pack)
		if err != nil {
			return nil, err
		}
		if !withinRange(loc.Offset, loc.Size, uint64(len(data))) {
			return nil, fmt.Errorf("%w: %s outside unpacked pack", ErrUnknownBlob, addr)
		}
		return newReader(bytes.NewReader(data[loc.Offset:loc.Offset+loc.Size]), loc.Size), nil
	}
}

// unpack returns the decompressed contents of a compressed pack, unpacking
// it on first use. Concurrent first uses share one decompression.
func (c *Container) unpack(pack *Pack) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.unpacked[pack.ID]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := c.unpackSF.Do(fmt.Sprint(pack.ID), func() (any, error) {
		c.mu.RLock()
		data, ok := c.unpacked[pack.ID]
		c.mu.RUnlock()
		if ok {
			return data, nil
		}

		off, err := toInt64(pack.Offset)
		if err != nil {
			return nil, err
		}
		n, err := toInt64(pack.Size)
		if err != nil {
			return nil, err
		}
		dec, release, err := c.decoders.get(io.NewSectionReader(c.src, off, n))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		defer release()

		data, err = readAllLimit(dec, c.maxPackSize)
		if err != nil {
			if errors.Is(err, ErrSizeOverflow) {
				return nil, fmt.Errorf("unpack pack %d: %w", pack.ID, err)
			}
			return nil, fmt.Errorf("%w: pack %d: %v", ErrDecompression, pack.ID, err)
		}

		c.mu.Lock()
		c.unpacked[pack.ID] = data
		c.mu.Unlock()
		c.log().Debug("pack unpacked", "pack", pack.ID, "packed_size", pack.Size, "unpacked_size", len(data))
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// Release drops unpacked pack contents held in memory.
func (c *Container) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.unpacked)
}
