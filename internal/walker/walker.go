// Package walker enumerates input trees and computes mirrored output paths.
package walker

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
)

// Entry is a regular file found under a walk root.
type Entry struct {
	Path   string // absolute path
	RelDir string // directory relative to the root, "." for the root itself
	Name   string
	Base   string // Name without extension
	Ext    string // extension as found on disk, including the dot
	Size   int64
}

// RelPath returns the path of e relative to the walk root.
func (e Entry) RelPath() string {
	return filepath.Join(e.RelDir, e.Name)
}

// SkipReason explains why a path was not yielded as an Entry.
type SkipReason string

const (
	ReasonReadDir    SkipReason = "read_dir_failed"
	ReasonStat       SkipReason = "stat_failed"
	ReasonSentinel   SkipReason = "sentinel"
	ReasonIrregular  SkipReason = "not_regular_file"
	ReasonSymlinkDir SkipReason = "symlinked_directory"
)

// Result is one step of a walk: either an Entry or a skipped path with its reason.
type Result struct {
	Entry   Entry
	Skipped bool
	Path    string
	Reason  SkipReason
	Err     error
}

// Walk traverses root depth-first and yields every regular file. Failures on a single
// entry are yielded as skipped results and the walk continues with its siblings.
func Walk(root string) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			yield(Result{Skipped: true, Path: root, Reason: ReasonStat, Err: err})
			return
		}
		walkDir(abs, abs, yield)
	}
}

func walkDir(root, dir string, yield func(Result) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(Result{Skipped: true, Path: dir, Reason: ReasonReadDir, Err: err})
	}

	for _, de := range entries {
		path := filepath.Join(dir, de.Name())

		if de.Name() == outdir.Sentinel {
			if !yield(Result{Skipped: true, Path: path, Reason: ReasonSentinel}) {
				return false
			}
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			if !yield(Result{Skipped: true, Path: path, Reason: ReasonStat, Err: err}) {
				return false
			}
			continue
		}

		if info.IsDir() {
			if de.Type()&os.ModeSymlink != 0 {
				if !yield(Result{Skipped: true, Path: path, Reason: ReasonSymlinkDir}) {
					return false
				}
				continue
			}
			if !walkDir(root, path, yield) {
				return false
			}
			continue
		}

		if !info.Mode().IsRegular() {
			if !yield(Result{Skipped: true, Path: path, Reason: ReasonIrregular}) {
				return false
			}
			continue
		}

		relDir, err := filepath.Rel(root, dir)
		if err != nil {
			if !yield(Result{Skipped: true, Path: path, Reason: ReasonStat, Err: err}) {
				return false
			}
			continue
		}

		ext := filepath.Ext(de.Name())
		entry := Entry{
			Path:   path,
			RelDir: relDir,
			Name:   de.Name(),
			Base:   strings.TrimSuffix(de.Name(), ext),
			Ext:    ext,
			Size:   info.Size(),
		}
		if !yield(Result{Entry: entry}) {
			return false
		}
	}
	return true
}

// ListAllFiles collects every entry under root. Skipped paths are returned
// separately so callers can report them.
func ListAllFiles(root string) (entries []Entry, skipped []Result) {
	for res := range Walk(root) {
		if res.Skipped {
			skipped = append(skipped, res)
			continue
		}
		entries = append(entries, res.Entry)
	}
	return entries, skipped
}

// MirrorOutputPath rewrites file, located under root, to the same relative
// location under outputRoot.
func MirrorOutputPath(root, file, outputRoot string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", file, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", file, root)
	}
	return filepath.Join(outputRoot, rel), nil
}

// MirrorDir returns the output directory that mirrors the directory holding file.
func MirrorDir(root, file, outputRoot string) (string, error) {
	out, err := MirrorOutputPath(root, file, outputRoot)
	if err != nil {
		return "", err
	}
	return filepath.Dir(out), nil
}
