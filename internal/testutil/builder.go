// Package testutil builds container fixtures for tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/arx/internal/container"
)

// Node describes one entry of a fixture tree.
type Node struct {
	Name     string
	Kind     container.Kind
	Content  []byte
	Target   string
	Children []Node
	Owner    uint32
	Group    uint32
	Rights   uint16
	Mtime    uint64
}

// File returns a regular file node.
func File(name string, content []byte) Node {
	return Node{Name: name, Kind: container.KindFile, Content: content, Rights: 0o644}
}

// Link returns a symbolic link node.
func Link(name, target string) Node {
	return Node{Name: name, Kind: container.KindLink, Target: target, Rights: 0o777}
}

// Dir returns a directory node.
func Dir(name string, children ...Node) Node {
	return Node{Name: name, Kind: container.KindDir, Children: children, Rights: 0o755}
}

type buildConfig struct {
	compressions []container.Compression
	unsorted     bool
	recordHook   func(i int, r *container.Record)
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithPacks spreads blobs round-robin across one pack per compression given.
func WithPacks(cs ...container.Compression) BuildOption {
	return func(c *buildConfig) {
		c.compressions = cs
	}
}

// WithUnsortedChildren keeps children in the order given instead of sorting
// them by name.
func WithUnsortedChildren() BuildOption {
	return func(c *buildConfig) {
		c.unsorted = true
	}
}

// WithRecordHook lets a test alter records before they are encoded, to
// produce structurally invalid containers.
func WithRecordHook(fn func(i int, r *container.Record)) BuildOption {
	return func(c *buildConfig) {
		c.recordHook = fn
	}
}

// Build encodes the tree rooted at an implicit root directory holding nodes.
//
// Entries are laid out breadth first: the root's children occupy
// [0, len(nodes)), and each directory's children take the next free
// contiguous range when the directory is reached. Identical contents are
// stored once.
func Build(tb testing.TB, nodes []Node, opts ...BuildOption) []byte {
	tb.Helper()

	cfg := buildConfig{compressions: []container.Compression{container.CompressionNone}}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &builder{
		cfg:   cfg,
		packs: make([]PackData, len(cfg.compressions)),
		raw:   make([]bytes.Buffer, len(cfg.compressions)),
		seen:  make(map[digest.Digest]container.Address),
	}
	for i, c := range cfg.compressions {
		b.packs[i] = PackData{ID: uint16(i), Compression: c} //nolint:gosec // tests use few packs
	}

	rootCount := b.layout(nodes)
	if cfg.recordHook != nil {
		for i := range b.records {
			cfg.recordHook(i, &b.records[i])
		}
	}

	data, err := b.finish(rootCount)
	if err != nil {
		tb.Fatalf("build container: %v", err)
	}
	return data
}

// WriteFile builds a container and writes it under a temp directory,
// returning its path.
func WriteFile(tb testing.TB, nodes []Node, opts ...BuildOption) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "test.arx")
	if err := os.WriteFile(path, Build(tb, nodes, opts...), 0o600); err != nil {
		tb.Fatalf("write container: %v", err)
	}
	return path
}

type builder struct {
	cfg      buildConfig
	records  []container.Record
	children [][]Node
	packs    []PackData
	raw      []bytes.Buffer
	seen     map[digest.Digest]container.Address
	nblobs   int
}

type pending struct {
	index int
	path  string
	nodes []Node
}

func (b *builder) layout(nodes []Node) uint32 {
	rootCount := b.appendLevel(container.NoParent, "", nodes)
	queue := b.pendingDirs(0, rootCount)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		first := len(b.records)
		count := b.appendLevel(int64(p.index), p.path, p.nodes)
		b.records[p.index].FirstChild = uint32(first) //nolint:gosec // fixture sizes are small
		b.records[p.index].ChildCount = count
		queue = append(queue, b.pendingDirs(first, count)...)
	}
	return rootCount
}

func (b *builder) pendingDirs(first int, count uint32) []pending {
	var out []pending
	for i := first; i < first+int(count); i++ {
		if b.records[i].Kind == container.KindDir {
			out = append(out, pending{index: i, path: b.records[i].Path, nodes: b.children[i]})
		}
	}
	return out
}

func (b *builder) appendLevel(parent int64, dir string, nodes []Node) uint32 {
	nodes = slices.Clone(nodes)
	if !b.cfg.unsorted {
		slices.SortFunc(nodes, func(x, y Node) int { return strings.Compare(x.Name, y.Name) })
	}
	for _, n := range nodes {
		path := n.Name
		if dir != "" {
			path = dir + "/" + n.Name
		}
		r := container.Record{
			Kind:   n.Kind,
			Path:   path,
			Parent: parent,
			Owner:  n.Owner,
			Group:  n.Group,
			Rights: n.Rights,
			Mtime:  n.Mtime,
		}
		switch n.Kind {
		case container.KindFile:
			r.Size = uint64(len(n.Content))
			r.Content = b.addBlob(n.Content)
		case container.KindLink:
			r.Target = n.Target
		}
		b.records = append(b.records, r)
		b.children = append(b.children, n.Children)
	}
	return uint32(len(nodes)) //nolint:gosec // fixture sizes are small
}

func (b *builder) addBlob(content []byte) container.Address {
	d := digest.FromBytes(content)
	if addr, ok := b.seen[d]; ok {
		return addr
	}
	p := b.nblobs % len(b.packs)
	b.nblobs++
	pack := &b.packs[p]
	addr := container.Address{Pack: pack.ID, Blob: uint32(len(pack.Blobs))} //nolint:gosec // fixture sizes are small
	pack.Blobs = append(pack.Blobs, container.BlobLoc{
		Offset: uint64(b.raw[p].Len()),
		Size:   uint64(len(content)),
	})
	b.raw[p].Write(content)
	b.seen[d] = addr
	return addr
}

func (b *builder) finish(rootCount uint32) ([]byte, error) {
	var out bytes.Buffer
	out.Write(make([]byte, container.HeaderSize))

	for i := range b.packs {
		p := &b.packs[i]
		switch p.Compression {
		case container.CompressionZstd:
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return nil, err
			}
			p.Bytes = enc.EncodeAll(b.raw[i].Bytes(), nil)
			if err := enc.Close(); err != nil {
				return nil, err
			}
		default:
			p.Bytes = b.raw[i].Bytes()
		}
		p.Digest = digest.FromBytes(p.Bytes).String()
		p.offset = uint64(out.Len())
		out.Write(p.Bytes)
	}

	indexData := encodeIndex(b.records, 0, rootCount, b.packs)
	h := container.Header{
		Version:     container.Version,
		IndexOffset: uint64(out.Len()),
		IndexSize:   uint64(len(indexData)),
	}
	out.Write(indexData)

	header, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data := out.Bytes()
	copy(data, header)
	return data, nil
}
