package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size in bytes of the fixed container header.
	HeaderSize = 32

	// Version is the only framing version understood by this package.
	Version = 1
)

// Magic identifies a container file.
var Magic = [8]byte{'A', 'R', 'X', 'P', 'A', 'C', 'K', 0}

// ErrFormat is returned when the container framing is invalid.
var ErrFormat = errors.New("container: invalid format")

// Header is the fixed-size preamble of a container.
type Header struct {
	Version     uint32
	IndexOffset uint64
	IndexSize   uint64
}

// ReadHeader reads and validates the header at the start of src.
func ReadHeader(src ByteSource) (Header, error) {
	if src.Size() < HeaderSize {
		return Header{}, fmt.Errorf("%w: source too small (%d bytes)", ErrFormat, src.Size())
	}
	buf := make([]byte, HeaderSize)
	if _, err := src.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}
	return h, nil
}

// UnmarshalBinary decodes a header from its on-disk form.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: short header", ErrFormat)
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return fmt.Errorf("%w: bad magic", ErrFormat)
	}
	h.Version = binary.LittleEndian.Uint32(data[8:12])
	if h.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, h.Version)
	}
	h.IndexOffset = binary.LittleEndian.Uint64(data[16:24])
	h.IndexSize = binary.LittleEndian.Uint64(data[24:32])
	return nil
}

// MarshalBinary encodes the header in its on-disk form.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf, Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint64(buf[16:24], h.IndexOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.IndexSize)
	return buf, nil
}
