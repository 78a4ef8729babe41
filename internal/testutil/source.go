package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
	limit    int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
		limit:    -1,
	}
}

// Truncate makes reads stop at off while Size keeps reporting the full
// length, simulating a source that went short underneath the reader.
func (m *MockByteSource) Truncate(off int64) {
	m.limit = off
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	end := int64(len(m.data))
	if m.limit >= 0 && m.limit < end {
		end = m.limit
	}
	if off >= end {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:end])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}
