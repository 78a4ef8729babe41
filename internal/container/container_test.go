package container_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arx/internal/container"
	"github.com/meigma/arx/internal/testutil"
)

func sampleTree() []testutil.Node {
	return []testutil.Node{
		testutil.Dir("a",
			testutil.File("b.txt", []byte("hello")),
			testutil.Link("c", "b.txt"),
		),
		testutil.File("top.txt", []byte("top level")),
		testutil.File("dup.txt", []byte("hello")),
	}
}

func openData(t *testing.T, data []byte, opts ...container.Option) *container.Container {
	t.Helper()
	c, err := container.Open(testutil.NewMockByteSource(data), opts...)
	require.NoError(t, err)
	return c
}

func TestOpen_Records(t *testing.T) {
	t.Parallel()

	c := openData(t, testutil.Build(t, sampleTree()))

	first, count := c.Root()
	assert.Equal(t, uint32(0), first)
	assert.Equal(t, uint32(3), count)
	require.Equal(t, 5, c.Len())

	// Root level is sorted by name: a, dup.txt, top.txt; a's children follow.
	a, ok := c.Record(0)
	require.True(t, ok)
	assert.Equal(t, container.KindDir, a.Kind)
	assert.Equal(t, "a", a.Path)
	assert.Equal(t, int64(container.NoParent), a.Parent)
	assert.Equal(t, uint32(3), a.FirstChild)
	assert.Equal(t, uint32(2), a.ChildCount)

	b, ok := c.Record(3)
	require.True(t, ok)
	assert.Equal(t, container.KindFile, b.Kind)
	assert.Equal(t, "a/b.txt", b.Path)
	assert.Equal(t, int64(0), b.Parent)
	assert.Equal(t, uint64(5), b.Size)

	link, ok := c.Record(4)
	require.True(t, ok)
	assert.Equal(t, container.KindLink, link.Kind)
	assert.Equal(t, "b.txt", link.Target)

	dup, ok := c.Record(1)
	require.True(t, ok)
	assert.Equal(t, "dup.txt", dup.Path)
	assert.Equal(t, b.Content, dup.Content, "identical content is stored once")

	_, ok = c.Record(5)
	assert.False(t, ok)
	_, ok = c.Record(-1)
	assert.False(t, ok)
}

func TestOpen_Packs(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, sampleTree(),
		testutil.WithPacks(container.CompressionNone, container.CompressionZstd))
	c := openData(t, data)

	packs := c.Packs()
	require.Len(t, packs, 2)
	assert.Equal(t, uint16(0), packs[0].ID)
	assert.Equal(t, container.CompressionNone, packs[0].Compression)
	assert.Equal(t, container.CompressionZstd, packs[1].Compression)
	for _, p := range packs {
		assert.Equal(t, digest.SHA256, p.Digest.Algorithm())
		assert.Equal(t, p.Digest, digest.FromBytes(data[p.Offset:p.Offset+p.Size]))
	}
	assert.NotEmpty(t, c.IndexData())
}

func TestOpen_InvalidFraming(t *testing.T) {
	t.Parallel()

	valid := testutil.Build(t, sampleTree())

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func([]byte) []byte { return nil }},
		{"not a container", func([]byte) []byte { return []byte("#!/bin/sh\necho definitely not an archive\n") }},
		{"bad magic", func(d []byte) []byte { d[0] = 'X'; return d }},
		{"bad version", func(d []byte) []byte { binary.LittleEndian.PutUint32(d[8:], 7); return d }},
		{"index past end", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d[24:], uint64(len(d)))
			return d
		}},
		{"index inside header", func(d []byte) []byte { binary.LittleEndian.PutUint64(d[16:], 4); return d }},
		{"zero index", func(d []byte) []byte { binary.LittleEndian.PutUint64(d[24:], 0); return d }},
		{"garbage index", func(d []byte) []byte {
			off := binary.LittleEndian.Uint64(d[16:])
			for i := off; i < uint64(len(d)); i++ {
				d[i] = 0xff
			}
			return d
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.mutate(bytes.Clone(valid))
			_, err := container.Open(testutil.NewMockByteSource(data))
			require.Error(t, err)
			assert.ErrorIs(t, err, container.ErrFormat)
		})
	}
}

func TestHeader_RoundTrip(t *testing.T) {
	t.Parallel()

	h := container.Header{Version: container.Version, IndexOffset: 1234, IndexSize: 99}
	raw, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, container.HeaderSize)

	var got container.Header
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, h, got)
}

func TestReader(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		packs []container.Compression
	}{
		{"raw", []container.Compression{container.CompressionNone}},
		{"zstd", []container.Compression{container.CompressionZstd}},
		{"mixed", []container.Compression{container.CompressionZstd, container.CompressionNone}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := openData(t, testutil.Build(t, sampleTree(), testutil.WithPacks(tc.packs...)))
			want := map[string]string{"a/b.txt": "hello", "top.txt": "top level", "dup.txt": "hello"}
			for i := range c.Len() {
				rec, ok := c.Record(i)
				require.True(t, ok)
				if rec.Kind != container.KindFile {
					continue
				}
				r, err := c.Reader(rec.Content)
				require.NoError(t, err)
				assert.Equal(t, rec.Size, r.Size())

				buf := make([]byte, r.Size())
				require.NoError(t, r.ReadFull(buf))
				assert.Equal(t, want[rec.Path], string(buf))
				assert.Zero(t, r.Remaining())

				n, err := r.Read(make([]byte, 1))
				assert.Zero(t, n)
				assert.ErrorIs(t, err, io.EOF)
			}
		})
	}
}

func TestReader_UnknownAddress(t *testing.T) {
	t.Parallel()

	c := openData(t, testutil.Build(t, sampleTree()))

	_, err := c.Reader(container.Address{Pack: 9})
	assert.ErrorIs(t, err, container.ErrUnknownPack)

	_, err = c.Reader(container.Address{Pack: 0, Blob: 99})
	assert.ErrorIs(t, err, container.ErrUnknownBlob)
}

func TestBlobSize(t *testing.T) {
	t.Parallel()

	for _, packs := range [][]container.Compression{
		{container.CompressionNone},
		{container.CompressionZstd},
	} {
		c := openData(t, testutil.Build(t, sampleTree(), testutil.WithPacks(packs...)))
		for i := range c.Len() {
			rec, ok := c.Record(i)
			require.True(t, ok)
			if rec.Kind != container.KindFile {
				continue
			}
			size, err := c.BlobSize(rec.Content)
			require.NoError(t, err)
			assert.Equal(t, rec.Size, size, rec.Path)

			r, err := c.Reader(rec.Content)
			require.NoError(t, err)
			data, err := r.ReadAll()
			require.NoError(t, err)
			assert.Len(t, data, int(size))
		}
	}

	c := openData(t, testutil.Build(t, sampleTree()))
	_, err := c.BlobSize(container.Address{Pack: 9})
	assert.ErrorIs(t, err, container.ErrUnknownPack)
	_, err = c.BlobSize(container.Address{Pack: 0, Blob: 99})
	assert.ErrorIs(t, err, container.ErrUnknownBlob)
}

func TestReader_ShortSource(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, []testutil.Node{
		testutil.File("big.bin", bytes.Repeat([]byte("x"), 4096)),
	})
	src := testutil.NewMockByteSource(data)
	c, err := container.Open(src)
	require.NoError(t, err)

	rec, ok := c.Record(0)
	require.True(t, ok)
	r, err := c.Reader(rec.Content)
	require.NoError(t, err)

	// Cut the source in the middle of the blob.
	src.Truncate(int64(c.Packs()[0].Offset) + 100)

	buf := make([]byte, r.Size())
	err = r.ReadFull(buf)
	assert.ErrorIs(t, err, container.ErrShortRead)
}

func TestReader_ReadFullBeyondRemaining(t *testing.T) {
	t.Parallel()

	c := openData(t, testutil.Build(t, sampleTree()))
	rec, ok := c.Record(2)
	require.True(t, ok)
	r, err := c.Reader(rec.Content)
	require.NoError(t, err)

	err = r.ReadFull(make([]byte, r.Size()+1))
	assert.ErrorIs(t, err, container.ErrShortRead)
}

func TestReader_PackSizeLimit(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, []testutil.Node{
		testutil.File("big.bin", bytes.Repeat([]byte("y"), 8192)),
	}, testutil.WithPacks(container.CompressionZstd))
	c := openData(t, data, container.WithMaxPackSize(1024))

	rec, ok := c.Record(0)
	require.True(t, ok)
	_, err := c.Reader(rec.Content)
	assert.ErrorIs(t, err, container.ErrSizeOverflow)
}

func TestReader_ConcurrentUnpack(t *testing.T) {
	t.Parallel()

	files := make([]testutil.Node, 0, 32)
	for i := range 32 {
		files = append(files, testutil.File(string(rune('a'+i%26))+string(rune('0'+i/26)), bytes.Repeat([]byte{byte(i)}, 100+i)))
	}
	c := openData(t, testutil.Build(t, files, testutil.WithPacks(container.CompressionZstd)),
		container.WithDecoderConcurrency(2), container.WithDecoderLowmem(true))

	var wg sync.WaitGroup
	for i := range c.Len() {
		wg.Go(func() {
			rec, ok := c.Record(i)
			if !assert.True(t, ok) {
				return
			}
			r, err := c.Reader(rec.Content)
			if !assert.NoError(t, err) {
				return
			}
			got, err := io.ReadAll(r)
			assert.NoError(t, err)
			assert.Len(t, got, int(rec.Size))
		})
	}
	wg.Wait()

	c.Release()
	rec, _ := c.Record(0)
	r, err := c.Reader(rec.Content)
	require.NoError(t, err)
	assert.Equal(t, rec.Size, r.Size())
}

func TestOpen_InvalidPack(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, sampleTree())
	// The pack digest is stored as a string; a malformed value is a format error.
	c := openData(t, data)
	d := string(c.Packs()[0].Digest)
	i := bytes.Index(data, []byte(d))
	require.Positive(t, i)
	copy(data[i:], "md5")

	_, err := container.Open(testutil.NewMockByteSource(data))
	assert.ErrorIs(t, err, container.ErrFormat)
}
