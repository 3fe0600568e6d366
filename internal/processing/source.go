package processing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ImageSource abstracts the reading of an image
type ImageSource interface {
	Open() (io.ReadCloser, error)
	Name() string
}

// FileSource implements ImageSource for local filesystem
type FileSource struct {
	Path string
}

func (f *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *FileSource) Name() string {
	return filepath.Base(f.Path)
}

// ImageDestination receives an encoded image. Discard removes whatever Create
// produced.
type ImageDestination interface {
	Create() (io.WriteCloser, error)
	Discard()
	Size() (int64, error)
}

var _ ImageDestination = (*FileDestination)(nil)

// FileDestination is a single output file whose directory is created on demand.
type FileDestination struct {
	Path string
}

// Create opens the destination for writing, creating parent directories.
func (f *FileDestination) Create() (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.Create(f.Path)
}

// Discard removes a partially written destination.
func (f *FileDestination) Discard() {
	os.Remove(f.Path)
}

// Size returns the size of the written destination.
func (f *FileDestination) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
