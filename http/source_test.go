package http_test

import (
	"bytes"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arx"
	arxhttp "github.com/meigma/arx/http"
	"github.com/meigma/arx/internal/container"
	"github.com/meigma/arx/internal/testutil"
)

func serve(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

// countGets wraps h and counts the GET requests it serves.
func countGets(h nethttp.Handler, n *atomic.Int32) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodGet {
			n.Add(1)
		}
		h.ServeHTTP(w, r)
	})
}

func TestSource_ReadAt(t *testing.T) {
	t.Parallel()

	// The first HeaderSize bytes come back with the header request.
	data := append(bytes.Repeat([]byte("-"), container.HeaderSize), "hello world"...)
	var gets atomic.Int32
	server := httptest.NewServer(countGets(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("ETag", `"v1"`)
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}), &gets))
	t.Cleanup(server.Close)

	src, err := arxhttp.NewSource(server.URL, arxhttp.WithVersionPin())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())
	assert.Equal(t, server.URL+`#etag="v1"`, src.SourceID())
	require.Equal(t, int32(1), gets.Load())

	base := int64(container.HeaderSize)
	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{name: "middle", bufSize: 5, offset: base + 6, wantN: 5, want: "world"},
		{name: "past end", bufSize: 10, offset: int64(len(data) - 3), wantN: 3, wantErr: io.EOF, want: "rld"},
		{name: "across header", bufSize: 7, offset: base - 2, wantN: 7, want: "--hello"},
		{name: "at end", bufSize: 1, offset: int64(len(data)), wantN: 0, wantErr: io.EOF, want: ""},
		{name: "empty buffer", bufSize: 0, offset: 0, wantN: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tt.bufSize)
			n, err := src.ReadAt(buf, tt.offset)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}

	_, err = src.ReadAt(make([]byte, 1), -1)
	assert.Error(t, err)
}

func TestSource_HeaderServedFromCache(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 10)
	var gets atomic.Int32
	server := httptest.NewServer(countGets(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}), &gets))
	t.Cleanup(server.Close)

	src, err := arxhttp.NewSource(server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"#size=100", src.SourceID())

	buf := make([]byte, container.HeaderSize)
	n, err := src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, data[:container.HeaderSize], buf[:n])
	assert.Equal(t, int32(1), gets.Load())

	n, err = src.ReadAt(buf, 50)
	require.NoError(t, err)
	assert.Equal(t, data[50:50+container.HeaderSize], buf[:n])
	assert.Equal(t, int32(2), gets.Load())
}

func TestNewSource_Errors(t *testing.T) {
	t.Parallel()

	data := []byte("range unsupported")
	tests := []struct {
		name    string
		handler nethttp.HandlerFunc
		wantErr error
	}{
		{"range ignored", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			_, _ = w.Write(data)
		}, arxhttp.ErrRangeUnsupported},
		{"not found", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.WriteHeader(nethttp.StatusNotFound)
		}, arxhttp.ErrStatus},
		{"bad content range", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.Header().Set("Content-Range", "bytes 0-3/*")
			w.WriteHeader(nethttp.StatusPartialContent)
			_, _ = w.Write(data[:4])
		}, arxhttp.ErrStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			t.Cleanup(server.Close)

			_, err := arxhttp.NewSource(server.URL)
			assert.ErrorIs(t, err, arxhttp.ErrUnavailable)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// swappable serves whichever version of the container it currently holds,
// with the version's ETag.
type swappable struct {
	data atomic.Pointer[[]byte]
	etag atomic.Pointer[string]
}

func (v *swappable) set(data []byte, etag string) {
	v.data.Store(&data)
	v.etag.Store(&etag)
}

func (v *swappable) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	if etag := *v.etag.Load(); etag != "" {
		w.Header().Set("ETag", etag)
	}
	nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(*v.data.Load()))
}

func TestSource_Changed(t *testing.T) {
	t.Parallel()

	v1 := bytes.Repeat([]byte("a"), 64)
	v2 := bytes.Repeat([]byte("b"), 64)

	tests := []struct {
		name  string
		opts  []arxhttp.Option
		next  []byte
		etag1 string
		etag2 string
	}{
		{"pinned etag", []arxhttp.Option{arxhttp.WithVersionPin()}, v2, `"v1"`, `"v2"`},
		{"new etag", nil, v2, `"v1"`, `"v2"`},
		{"size changed", nil, append(v1, v2...), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			remote := &swappable{}
			remote.set(v1, tt.etag1)
			server := httptest.NewServer(remote)
			t.Cleanup(server.Close)

			src, err := arxhttp.NewSource(server.URL, tt.opts...)
			require.NoError(t, err)

			buf := make([]byte, 8)
			_, err = src.ReadAt(buf, 40)
			require.NoError(t, err)
			assert.Equal(t, v1[40:48], buf)

			remote.set(tt.next, tt.etag2)
			_, err = src.ReadAt(buf, 40)
			assert.ErrorIs(t, err, arxhttp.ErrChanged)
		})
	}
}

func TestSource_Headers(t *testing.T) {
	t.Parallel()

	data := []byte("secret")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("X-Trace") != "1" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	_, err := arxhttp.NewSource(server.URL)
	require.Error(t, err)

	src, err := arxhttp.NewSource(server.URL,
		arxhttp.WithHeaders(nethttp.Header{"Authorization": {"Bearer token"}}),
		arxhttp.WithHeader("X-Trace", "1"),
		arxhttp.WithClient(server.Client()),
		arxhttp.WithSourceID("remote"),
	)
	require.NoError(t, err)
	assert.Equal(t, "remote", src.SourceID())

	buf := make([]byte, len(data))
	n, err := src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(buf[:n]))
}

func TestOpenSource_OverHTTP(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, []testutil.Node{
		testutil.Dir("etc",
			testutil.File("hostname", []byte("arx\n")),
			testutil.Link("name", "hostname"),
		),
		testutil.File("README", bytes.Repeat([]byte("read me "), 512)),
	}, testutil.WithPacks(container.CompressionNone, container.CompressionZstd))

	src, err := arxhttp.NewSource(serve(t, data).URL)
	require.NoError(t, err)

	a, err := arx.OpenSource(src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	got, err := a.ReadFile("etc/name")
	require.NoError(t, err)
	assert.Equal(t, "arx\n", string(got))

	readme, err := a.ReadFile("README")
	require.NoError(t, err)
	assert.Len(t, readme, 8*512)
}
