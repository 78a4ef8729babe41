package arx

import (
	"errors"

	"github.com/meigma/arx/internal/container"
)

// Sentinel errors. Use errors.Is to classify failures.
var (
	// ErrOpen is returned when a container cannot be opened: the location is
	// missing or unreadable, or the framing or index is malformed.
	ErrOpen = errors.New("arx: cannot open container")

	// ErrNotFound is returned when a path component does not exist in its
	// parent directory.
	ErrNotFound = errors.New("arx: entry not found")

	// ErrNotADirectory is returned when resolution has to traverse through
	// a file or link.
	ErrNotADirectory = errors.New("arx: not a directory")

	// ErrIndexOutOfRange is returned for an entry index outside the table.
	ErrIndexOutOfRange = errors.New("arx: index out of range")

	// ErrNotAFile is returned by file-only accessors on links and directories.
	ErrNotAFile = errors.New("arx: not a file")

	// ErrNotALink is returned by link-only accessors on files and directories.
	ErrNotALink = errors.New("arx: not a link")

	// ErrNotADir is returned by directory-only accessors on files and links.
	ErrNotADir = errors.New("arx: not a dir")

	// ErrRead is returned when content cannot be read in full.
	ErrRead = errors.New("arx: read failed")

	// ErrClosed is returned by every operation on a closed archive.
	ErrClosed = errors.New("arx: archive closed")

	// ErrInvalidAddress is returned for a content address that names no blob
	// in this archive. It is always accompanied by ErrRead.
	ErrInvalidAddress = errors.New("arx: invalid content address")

	// ErrTooManyLinks is returned when following symbolic links does not
	// terminate.
	ErrTooManyLinks = errors.New("arx: too many levels of symbolic links")
)

// Errors re-exported from the container layer.
var (
	// ErrDecompression is returned when a compressed blob pool cannot be unpacked.
	ErrDecompression = container.ErrDecompression

	// ErrSizeOverflow is returned when sizes exceed supported or configured limits.
	ErrSizeOverflow = container.ErrSizeOverflow
)
