package container

import (
	"errors"
	"fmt"
	"io"
)

// Reader reads exactly the declared number of bytes of one blob.
//
// A Reader is a one-shot cursor: it cannot seek or restart. If the
// underlying data ends before Size bytes were produced, reads fail with
// ErrShortRead instead of reporting io.EOF.
type Reader struct {
	r    io.Reader
	size uint64
	read uint64
}

func newReader(r io.Reader, size uint64) *Reader {
	return &Reader{r: r, size: size}
}

// Size returns the declared size of the blob.
func (r *Reader) Size() uint64 {
	return r.size
}

// Remaining returns the number of bytes not yet read.
func (r *Reader) Remaining() uint64 {
	return r.size - r.read
}

// Read implements io.Reader. It never reads past the declared size.
func (r *Reader) Read(p []byte) (int, error) {
	remaining := r.Remaining()
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.r.Read(p)
	r.read += uint64(n) //nolint:gosec // n is never negative per io.Reader
	if errors.Is(err, io.EOF) {
		if r.read < r.size {
			return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, r.read, r.size)
		}
		err = nil
	}
	if err == nil && r.read == r.size {
		return n, io.EOF
	}
	return n, err
}

// ReadFull fills p completely or fails. It is an error to ask for more
// bytes than remain in the blob.
func (r *Reader) ReadFull(p []byte) error {
	if uint64(len(p)) > r.Remaining() {
		return fmt.Errorf("%w: want %d bytes, %d remain", ErrShortRead, len(p), r.Remaining())
	}
	n, err := io.ReadFull(r, p)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(p))
		}
		return err
	}
	return nil
}

// ReadAll reads the rest of the blob into a buffer sized exactly to the
// remaining length.
func (r *Reader) ReadAll() ([]byte, error) {
	n, err := toInt(r.Remaining())
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
