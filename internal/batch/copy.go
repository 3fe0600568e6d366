package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTimesNotKept is returned with the full byte count when dst was written but its
// modification time could not be set.
var ErrTimesNotKept = errors.New("modification time not preserved")

var chtimes = os.Chtimes

// CopyFile copies src to dst, creating dst's directory and keeping the source
// modification time. A partially written dst is removed on failure.
func CopyFile(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("failed to close destination file: %w", err)
	}

	if err := chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("%w: %w", ErrTimesNotKept, err)
	}
	return n, nil
}
