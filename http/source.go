// Package http opens containers served over HTTP.
//
// A Source reads a container with HTTP range requests, so only the header,
// the index and the packs a caller touches are fetched:
//
//	src, err := http.NewSource("https://example.com/rootfs.arx")
//	if err != nil {
//		return err
//	}
//	a, err := arx.OpenSource(src)
package http //nolint:revive // named after the transport it serves

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/arx/internal/container"
)

var (
	// ErrUnavailable is returned by NewSource when the container's size and
	// header cannot be learned from the server.
	ErrUnavailable = errors.New("arx/http: container unavailable")

	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("arx/http: server ignores range requests")

	// ErrStatus is returned for a response that does not answer the range
	// that was asked for.
	ErrStatus = errors.New("arx/http: unexpected response")

	// ErrChanged is returned when the remote container no longer matches the
	// one seen by NewSource. An open archive never reads a changed remote.
	ErrChanged = errors.New("arx/http: container changed since open")
)

// Source implements arx.ByteSource with HTTP range requests.
type Source struct {
	url     string
	client  *nethttp.Client
	headers nethttp.Header
	logger  *slog.Logger
	pinned  bool

	// Learned from the header request.
	size         int64
	header       []byte
	etag         string
	lastModified string
	sourceID     string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier derived from the URL and validators.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithVersionPin sends the ETag (or Last-Modified) seen by NewSource as a
// precondition on every read, so a server holding a newer container answers
// 412 and the read fails with ErrChanged.
func WithVersionPin() Option {
	return func(s *Source) {
		s.pinned = true
	}
}

// WithLogger sets the logger for request failures. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource fetches the container header from url with one range request,
// learning the container's size and validators, and returns a Source
// reading from it. Reads inside the header are served from memory.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	if err := s.loadHeader(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrUnavailable, url, err)
	}
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	s.log().Debug("http source ready", "url", url, "size", s.size, "etag", s.etag, "pinned", s.pinned)
	return s, nil
}

func (s *Source) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Size returns the size of the remote container seen by NewSource.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns an identifier built from the URL and the remote's
// validators.
func (s *Source) SourceID() string {
	return s.sourceID
}

// ReadAt implements io.ReaderAt with at most one range request per call. A
// read running past the end returns the bytes available and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.size-off)
	var (
		n   int
		err error
	)
	if off+want <= int64(len(s.header)) {
		n = copy(p[:want], s.header[off:])
	} else {
		n, err = s.fetch(p[:want], off)
	}
	if err == nil && want < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

// fetch fills p with the bytes at off using one range request.
func (s *Source) fetch(p []byte, off int64) (int, error) {
	last := off + int64(len(p)) - 1
	resp, err := s.get(off, last, s.pinned)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusPreconditionFailed, nethttp.StatusRequestedRangeNotSatisfiable:
		s.log().Warn("remote container changed", "url", s.url, "off", off, "status", resp.Status)
		return 0, fmt.Errorf("%w: %s for bytes=%d-%d", ErrChanged, resp.Status, off, last)
	case nethttp.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		s.log().Warn("range request failed", "url", s.url, "off", off, "status", resp.Status)
		return 0, fmt.Errorf("%w: %s for bytes=%d-%d", ErrStatus, resp.Status, off, last)
	}

	cr, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, err
	}
	if cr.total != s.size {
		return 0, fmt.Errorf("%w: size %d, opened with %d", ErrChanged, cr.total, s.size)
	}
	if etag := resp.Header.Get("ETag"); s.etag != "" && etag != "" && etag != s.etag {
		return 0, fmt.Errorf("%w: etag %s, opened with %s", ErrChanged, etag, s.etag)
	}
	if cr.first != off || cr.last != last {
		return 0, fmt.Errorf("%w: got bytes %d-%d for bytes=%d-%d", ErrStatus, cr.first, cr.last, off, last)
	}

	n, err := io.ReadFull(resp.Body, p)
	if err != nil {
		return n, fmt.Errorf("read bytes=%d-%d: %w", off, last, err)
	}
	return n, nil
}

// loadHeader fetches the container header. The Content-Range of the answer
// gives the container size.
func (s *Source) loadHeader() error {
	resp, err := s.get(0, container.HeaderSize-1, false)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	cr, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if cr.first != 0 {
		return fmt.Errorf("%w: header range starts at %d", ErrStatus, cr.first)
	}
	header := make([]byte, cr.last+1)
	if _, err := io.ReadFull(resp.Body, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	s.size = cr.total
	s.header = header
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// defaultSourceID names the remote by URL and the strongest validator it
// offered.
func (s *Source) defaultSourceID() string {
	switch {
	case s.etag != "":
		return fmt.Sprintf("%s#etag=%s", s.url, s.etag)
	case s.lastModified != "":
		return fmt.Sprintf("%s#mtime=%s;size=%d", s.url, s.lastModified, s.size)
	default:
		return fmt.Sprintf("%s#size=%d", s.url, s.size)
	}
}

// get requests bytes first through last inclusive. With pinned set the
// request carries the validator seen by NewSource as a precondition.
func (s *Source) get(first, last int64, pinned bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodGet, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// Compressed transfer would make byte offsets meaningless.
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))
	if pinned {
		switch {
		case s.etag != "":
			req.Header.Set("If-Match", s.etag)
		case s.lastModified != "":
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", s.url, err)
	}
	return resp, nil
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
	_ = resp.Body.Close()
}

// contentRange is a parsed "bytes first-last/total" header.
type contentRange struct {
	first, last, total int64
}

func parseContentRange(value string) (contentRange, error) {
	invalid := fmt.Errorf("%w: Content-Range %q", ErrStatus, value)

	spec, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return contentRange{}, invalid
	}
	span, total, ok := strings.Cut(spec, "/")
	if !ok {
		return contentRange{}, invalid
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return contentRange{}, invalid
	}

	var cr contentRange
	var err error
	if cr.first, err = strconv.ParseInt(first, 10, 64); err != nil {
		return contentRange{}, invalid
	}
	if cr.last, err = strconv.ParseInt(last, 10, 64); err != nil {
		return contentRange{}, invalid
	}
	if cr.total, err = strconv.ParseInt(total, 10, 64); err != nil {
		return contentRange{}, invalid
	}
	if cr.first < 0 || cr.last < cr.first || cr.last >= cr.total {
		return contentRange{}, invalid
	}
	return cr, nil
}
