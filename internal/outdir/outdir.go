// Package outdir manages the lifecycle of an output tree: creation, clearing,
// locking, and guarding against output/input overlap.
package outdir

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Sentinel is the placeholder file kept by Clear so empty directories survive in
// version control. It is never treated as content.
const Sentinel = ".gitkeep"

var (
	ErrNestedDirs = errors.New("input and output directories overlap")
	ErrLocked     = errors.New("output directory is in use by another run")
)

// EnsureExists creates dir and its parents if missing.
func EnsureExists(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ClearFailure records an entry that could not be deleted.
type ClearFailure struct {
	Path string
	Err  error
}

// ClearReport summarizes a Clear call.
type ClearReport struct {
	Removed  int
	Kept     int // sentinel files left in place
	Failures []ClearFailure
	Existed  bool
}

// Manager clears and recreates output directories.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a manager that logs through logger.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{log: logger}
}

// Clear deletes everything under dir except sentinel files. Directories left empty
// are removed; directories still holding a sentinel are kept. A failed deletion is
// recorded and the remaining entries are still processed. On return dir exists,
// whether or not it existed before; the error is non-nil only if it could not be
// created.
func (m *Manager) Clear(dir string) (ClearReport, error) {
	var report ClearReport

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		report.Existed = true
		m.clearDir(dir, &report)
		m.log.Info().
			Str("dir", dir).
			Int("removed", report.Removed).
			Int("failures", len(report.Failures)).
			Msg("Cleared output directory")
	}

	if err := EnsureExists(dir); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Manager) clearDir(dir string, report *ClearReport) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.fail(report, dir, err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.Name() == Sentinel {
			report.Kept++
			continue
		}

		if entry.IsDir() {
			m.clearDir(path, report)
			remaining, err := os.ReadDir(path)
			if err != nil {
				m.fail(report, path, err)
				continue
			}
			if len(remaining) > 0 {
				continue
			}
			if err := os.Remove(path); err != nil {
				m.fail(report, path, err)
				continue
			}
			report.Removed++
			continue
		}

		// Files and symlinks alike; symlinks are removed, never followed.
		if err := os.Remove(path); err != nil {
			m.fail(report, path, err)
			continue
		}
		report.Removed++
	}
}

func (m *Manager) fail(report *ClearReport, path string, err error) {
	m.log.Warn().Err(err).Str("path", path).Msg("Failed to delete entry while clearing")
	report.Failures = append(report.Failures, ClearFailure{Path: path, Err: err})
}

// CheckSeparate rejects configurations where one directory contains, or is, the
// other. Clearing the output would otherwise destroy inputs, and walking the input
// would pick up previous output.
func CheckSeparate(inputDir, outputDir string) error {
	nested, err := Overlap(inputDir, outputDir)
	if err != nil {
		return err
	}
	if nested {
		return fmt.Errorf("%w: input %s, output %s", ErrNestedDirs, inputDir, outputDir)
	}
	return nil
}

// Overlap reports whether a and b are the same directory or one lies inside the
// other, after resolving symlinks.
func Overlap(a, b string) (bool, error) {
	ca, err := canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := canonical(b)
	if err != nil {
		return false, err
	}
	return ca == cb || within(ca, cb) || within(cb, ca), nil
}

func within(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}

// canonical resolves path to an absolute form, following symlinks on the longest
// existing prefix so a not-yet-created output is still comparable.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	existing := abs
	var rest []string
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// DirLock is an advisory lock held for the duration of a run against one output
// directory.
type DirLock struct {
	lock *flock.Flock
	path string
}

// Lock acquires the run lock for dir without blocking. The lock file lives in the
// system temp directory so it never appears inside the output tree.
func Lock(dir string) (*DirLock, error) {
	canon, err := canonical(dir)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(canon))
	lockPath := filepath.Join(os.TempDir(), "aurora-"+hex.EncodeToString(sum[:8])+".lock")

	l := flock.New(lockPath)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &DirLock{lock: l, path: lockPath}, nil
}

// Path returns the lock file location.
func (d *DirLock) Path() string {
	return d.path
}

// Unlock releases the lock. Calling it on a nil lock is a no-op.
func (d *DirLock) Unlock() error {
	if d == nil || d.lock == nil {
		return nil
	}
	return d.lock.Unlock()
}
