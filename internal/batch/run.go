// Package batch holds the per-run state shared by the conversion engines: the
// processed and written sets, verbatim copies with size accounting, and the
// output-directory preamble.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/progress"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// ErrInputMissing is returned when the input root does not exist.
var ErrInputMissing = errors.New("input directory does not exist")

// Run is the mutable state of one engine run. It is used from a single goroutine.
type Run struct {
	InputDir  string
	OutputDir string
	Stats     *runstats.Stats
	Report    *progress.Reporter

	countable func(walker.Entry) bool
	processed map[string]struct{}
	written   map[string]struct{}
}

// NewRun creates the state for one run. countable selects the entries that advance
// progress.
func NewRun(inputDir, outputDir string, stats *runstats.Stats, report *progress.Reporter, countable func(walker.Entry) bool) *Run {
	return &Run{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Stats:     stats,
		Report:    report,
		countable: countable,
		processed: make(map[string]struct{}),
		written:   make(map[string]struct{}),
	}
}

// IsProcessed reports whether the input path was already dispatched.
func (r *Run) IsProcessed(path string) bool {
	_, ok := r.processed[path]
	return ok
}

// MarkProcessed records e as dispatched. The first time a countable entry is
// marked, progress advances and msg is sent to the subscriber. It reports whether
// the entry was newly marked.
func (r *Run) MarkProcessed(e walker.Entry, msg string) bool {
	if r.IsProcessed(e.Path) {
		return false
	}
	r.processed[e.Path] = struct{}{}
	if r.countable != nil && r.countable(e) {
		r.Report.Advance(msg)
	}
	return true
}

// ProcessedCount returns the number of dispatched inputs.
func (r *Run) ProcessedCount() int {
	return len(r.processed)
}

// IsWritten reports whether dest was already produced in this run.
func (r *Run) IsWritten(dest string) bool {
	_, ok := r.written[dest]
	return ok
}

// MarkWritten records dest as produced in this run.
func (r *Run) MarkWritten(dest string) {
	r.written[dest] = struct{}{}
}

// OutputPath mirrors e under the output root, optionally swapping the extension.
// An empty ext keeps the original name.
func (r *Run) OutputPath(e walker.Entry, ext string) string {
	name := e.Name
	if ext != "" {
		name = e.Base + ext
	}
	return filepath.Join(r.OutputDir, e.RelDir, name)
}

// Rel returns e's path relative to the input root, for messages.
func (r *Run) Rel(e walker.Entry) string {
	return e.RelPath()
}

// CopyVerbatim copies e to dest and records the written path. Stats are left to
// the caller. A copy whose modification time could not be kept still succeeds.
func (r *Run) CopyVerbatim(e walker.Entry, dest string) (int64, error) {
	n, err := CopyFile(e.Path, dest)
	if errors.Is(err, ErrTimesNotKept) {
		r.Report.Warning(fmt.Sprintf("Copied %s without its modification time: %v", r.Rel(e), err))
		err = nil
	}
	if err != nil {
		return 0, err
	}
	r.MarkWritten(dest)
	return n, nil
}

// CopyCounted copies e to dest as a regular copy: copiedCount++ and the size on
// both byte totals. A failure counts as an error.
func (r *Run) CopyCounted(e walker.Entry, dest string) bool {
	n, err := r.CopyVerbatim(e, dest)
	if err != nil {
		r.Stats.Errors++
		r.Report.Error(fmt.Sprintf("Failed to copy %s", r.Rel(e)), err)
		return false
	}
	r.Stats.AddCopied(n)
	r.Report.Logger().Debug().Str("file", r.Rel(e)).Str("dest", dest).Msg("Copied")
	return true
}

// CheckInput fails with ErrInputMissing unless dir is an existing directory.
func CheckInput(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, dir)
		}
		return fmt.Errorf("stat input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInputMissing, dir)
	}
	return nil
}

// PrepareOutput validates the input/output pair, takes the output lock and clears
// or creates the output root. The returned lock must be released by the caller.
func PrepareOutput(inputDir, outputDir string, clear bool, mgr *outdir.Manager, report *progress.Reporter) (*outdir.DirLock, error) {
	if err := outdir.CheckSeparate(inputDir, outputDir); err != nil {
		return nil, err
	}
	lock, err := outdir.Lock(outputDir)
	if err != nil {
		return nil, err
	}

	if clear {
		res, err := mgr.Clear(outputDir)
		for _, f := range res.Failures {
			report.Warning(fmt.Sprintf("Could not delete %s: %v", f.Path, f.Err))
		}
		if err != nil {
			lock.Unlock()
			return nil, err
		}
		if res.Existed {
			report.Info(fmt.Sprintf("Cleared output directory: %s", outputDir))
		}
		return lock, nil
	}

	if err := outdir.EnsureExists(outputDir); err != nil {
		lock.Unlock()
		return nil, err
	}
	return lock, nil
}

// ReportSkips forwards walk skips to the reporter. Sentinel files are silent.
func ReportSkips(report *progress.Reporter, skipped []walker.Result) {
	for _, s := range skipped {
		ReportSkip(report, s)
	}
}

// ReportSkip forwards one walk skip to the reporter.
func ReportSkip(report *progress.Reporter, s walker.Result) {
	switch s.Reason {
	case walker.ReasonSentinel:
		return
	case walker.ReasonSymlinkDir, walker.ReasonIrregular:
		report.Warning(fmt.Sprintf("Skipping %s (%s)", s.Path, s.Reason))
	default:
		report.Error(fmt.Sprintf("Skipping %s (%s)", s.Path, s.Reason), s.Err)
	}
}

// Summarize logs the closing block of a run and returns the frozen summary.
func Summarize(r *Run, verb string) runstats.Summary {
	sum := r.Stats.Finish()
	rep := r.Report

	rep.Info(fmt.Sprintf("%s %d files in %.2f seconds", verb, sum.Converted, sum.ElapsedSeconds()))
	if sum.Copied > 0 {
		rep.Info(fmt.Sprintf("Copied %d files unchanged", sum.Copied))
	}
	if sum.ExistingTargetPreferred > 0 {
		rep.Info(fmt.Sprintf("Used %d existing target-format files instead of converting", sum.ExistingTargetPreferred))
	}
	if sum.Skipped > 0 {
		rep.Warning(fmt.Sprintf("Skipped %d files", sum.Skipped))
	}
	if sum.Errors > 0 {
		rep.Error(fmt.Sprintf("Encountered errors in %d files", sum.Errors), nil)
	}
	if sum.OriginalBytes > 0 {
		rep.Success(fmt.Sprintf("Total size: %s", sum.SizeChange()))
	}
	return sum
}
