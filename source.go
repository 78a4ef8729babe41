package arx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/meigma/arx/internal/container"
)

// ByteSource provides random access to container bytes.
//
// Implementations exist for local files (see Open) and HTTP range requests
// (see the http subpackage). SourceID must return a stable identifier for
// the underlying content.
type ByteSource = container.ByteSource

// fileSource wraps an afero.File to implement ByteSource.
// Files have ReadAt but not Size, so the size is captured at open.
type fileSource struct {
	file     afero.File
	size     int64
	sourceID string
}

func newFileSource(f afero.File, sourceID string) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", f.Name())
	}
	if sourceID == "" {
		sourceID = fallbackFileSourceID(f.Name(), info)
	}
	return &fileSource{file: f, size: info.Size(), sourceID: sourceID}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the size of the file when it was opened.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID returns an identifier derived from path, size and mtime unless
// one was set with WithSourceID.
func (s *fileSource) SourceID() string {
	return s.sourceID
}

func (s *fileSource) Close() error {
	return s.file.Close()
}

func fallbackFileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

var _ ByteSource = (*fileSource)(nil)
