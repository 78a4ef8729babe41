package arx

import (
	"errors"
	"io"

	"github.com/meigma/arx/internal/container"
)

// Stream reads one blob of content.
//
// A stream yields exactly the blob's declared size and then io.EOF. It is
// stateful and cannot be rewound; ask the archive for a new stream to read
// the blob again. A Stream is not safe for concurrent use, but separate
// streams over the same archive are.
type Stream struct {
	a    *Archive
	addr ContentAddress
	r    *container.Reader
}

// Address returns the content address the stream reads.
func (s *Stream) Address() ContentAddress {
	return s.addr
}

// Size returns the declared size of the blob.
func (s *Stream) Size() uint64 {
	return s.r.Size()
}

// Remaining returns the number of bytes not yet read.
func (s *Stream) Remaining() uint64 {
	return s.r.Remaining()
}

// Read implements io.Reader. Reads never go past the declared size. If the
// underlying data ends early, Read fails with ErrRead rather than reporting
// io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	release, err := s.a.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, readError(s.addr, err)
	}
	return n, err
}

// ReadFull fills p entirely from the stream. It fails with ErrRead when
// fewer than len(p) bytes remain or the underlying data ends early.
func (s *Stream) ReadFull(p []byte) error {
	release, err := s.a.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := s.r.ReadFull(p); err != nil {
		return readError(s.addr, err)
	}
	return nil
}

// ReadAll reads the rest of the stream into a buffer sized exactly to the
// remaining length.
func (s *Stream) ReadAll() ([]byte, error) {
	release, err := s.a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := s.r.ReadAll()
	if err != nil {
		return nil, readError(s.addr, err)
	}
	return data, nil
}

var _ io.Reader = (*Stream)(nil)
