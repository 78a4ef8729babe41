package container

import (
	"fmt"
	"io"
	"math"
)

// toInt converts a stored size to int.
func toInt(n uint64) (int, error) {
	if n > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrSizeOverflow, n)
	}
	return int(n), nil
}

// toInt64 converts a stored offset or size to int64.
func toInt64(n uint64) (int64, error) {
	if n > uint64(math.MaxInt64) {
		return 0, fmt.Errorf("%w: %d does not fit in int64", ErrSizeOverflow, n)
	}
	return int64(n), nil
}

// rangeEnd returns off+size, or false if the sum overflows.
func rangeEnd(off, size uint64) (uint64, bool) {
	end := off + size
	if end < off {
		return 0, false
	}
	return end, true
}

// withinRange reports whether [off, off+size) lies inside [0, limit).
func withinRange(off, size, limit uint64) bool {
	end, ok := rangeEnd(off, size)
	return ok && end <= limit
}

// readAllLimit reads r to EOF, failing with ErrSizeOverflow once more than
// limit bytes have been produced. A limit of 0 means none.
func readAllLimit(r io.Reader, limit uint64) ([]byte, error) {
	if limit == 0 {
		return io.ReadAll(r)
	}
	if limit > uint64(math.MaxInt64-1) {
		return nil, fmt.Errorf("%w: pack limit %d", ErrSizeOverflow, limit)
	}
	lr := &io.LimitedReader{R: r, N: int64(limit) + 1} //nolint:gosec // checked above
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > limit {
		return nil, fmt.Errorf("%w: unpacked pack exceeds %d bytes", ErrSizeOverflow, limit)
	}
	return data, nil
}
