// Package videoconv compresses every video in an input tree with the external
// encoder and copies everything else, mirroring the tree into an output directory.
package videoconv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"go.lorenzomilicia.dev/aurora-converter/internal/batch"
	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/ffmpeg"
	"go.lorenzomilicia.dev/aurora-converter/internal/media"
	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/progress"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// ErrInputMissing is returned when the input directory does not exist.
var ErrInputMissing = batch.ErrInputMissing

// Engine runs video compression batches.
type Engine struct {
	log       zerolog.Logger
	dirs      *outdir.Manager
	runnerOpt []ffmpeg.Option
	callback  atomic.Pointer[progress.Callback]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithCommandContext replaces the function that builds the encoder command.
func WithCommandContext(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) Option {
	return func(e *Engine) {
		e.runnerOpt = append(e.runnerOpt, ffmpeg.WithCommandContext(fn))
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.dirs = outdir.NewManager(e.log)
	return e
}

// SetProgressCallback installs the progress subscriber, replacing any previous one.
// A nil fn removes it.
func (e *Engine) SetProgressCallback(fn progress.Callback) {
	if fn == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&fn)
}

func (e *Engine) notify(percent int, msg string) {
	if cb := e.callback.Load(); cb != nil {
		(*cb)(percent, msg)
	}
}

// Run compresses every video under cfg.InputDir, one encoder process at a time.
// A missing encoder, a missing input or overlapping directories abort the run
// before any file is touched. A failed encode is counted and the run moves on;
// the original is not copied in its place. If ctx is cancelled the in-flight
// encoder is killed and the partial summary is returned with ctx's error.
func (e *Engine) Run(ctx context.Context, cfg config.VideoConfig) (runstats.Summary, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return runstats.Summary{}, err
	}
	if err := batch.CheckInput(cfg.InputDir); err != nil {
		return runstats.Summary{}, err
	}
	binary, err := ffmpeg.Locate(cfg.FFmpegPath)
	if err != nil {
		return runstats.Summary{}, err
	}
	in, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return runstats.Summary{}, fmt.Errorf("resolve input directory: %w", err)
	}
	out, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return runstats.Summary{}, fmt.Errorf("resolve output directory: %w", err)
	}

	stats := runstats.Start(runstats.KindVideos)
	logger := e.log.With().Str("run", stats.ID()).Str("kind", string(runstats.KindVideos)).Logger()

	countable := func(en walker.Entry) bool {
		return media.ClassifyVideo(en.Name) == media.Video
	}
	entries, _ := walker.ListAllFiles(in)
	total := 0
	for _, en := range entries {
		if countable(en) {
			total++
		}
	}

	rep := progress.NewReporter(logger, progress.NewAccountant(total), e.notify)
	rep.Info("Starting video compression")
	rep.Info(fmt.Sprintf("Input directory: %s", in))
	rep.Info(fmt.Sprintf("Output directory: %s", out))
	rep.Info(fmt.Sprintf("Encoder: %s, crf: %d, preset: %s", binary, cfg.CRFValue(), cfg.Preset))

	lock, err := batch.PrepareOutput(in, out, cfg.ClearOutputDir, e.dirs, rep)
	if err != nil {
		rep.Error("Cannot prepare output directory", err)
		return runstats.Summary{}, err
	}
	defer lock.Unlock()

	c := &compression{
		run:    batch.NewRun(in, out, stats, rep, countable),
		runner: ffmpeg.NewRunner(binary, e.runnerOpt...),
		crf:    cfg.CRFValue(),
		preset: cfg.Preset,
	}

	for res := range walker.Walk(in) {
		if err := ctx.Err(); err != nil {
			return c.interrupted(err)
		}
		if res.Skipped {
			batch.ReportSkip(rep, res)
			continue
		}
		if err := c.dispatch(ctx, res.Entry); err != nil {
			return c.interrupted(err)
		}
	}

	sum := batch.Summarize(c.run, "Compressed")
	rep.Complete("Video compression complete")
	return sum, nil
}

// compression is the state of one Run.
type compression struct {
	run    *batch.Run
	runner *ffmpeg.Runner
	crf    int
	preset string
}

// dispatch handles one entry. It only returns an error when ctx was cancelled.
func (c *compression) dispatch(ctx context.Context, e walker.Entry) error {
	if c.run.IsProcessed(e.Path) {
		return nil
	}
	dest := c.run.OutputPath(e, "")
	if c.run.IsWritten(dest) {
		c.run.Stats.Skipped++
		c.run.Report.Warning(fmt.Sprintf("Skipping %s: %s was already written", e.RelPath(), dest))
		c.run.MarkProcessed(e, "Skipped "+e.RelPath())
		return nil
	}

	if media.ClassifyVideo(e.Name) != media.Video {
		c.run.CopyCounted(e, dest)
		c.run.MarkProcessed(e, "Copied "+e.RelPath())
		return nil
	}
	return c.compress(ctx, e, dest)
}

func (c *compression) compress(ctx context.Context, e walker.Entry, dest string) error {
	rep := c.run.Report
	rel := e.RelPath()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		c.run.Stats.Errors++
		rep.Error(fmt.Sprintf("Error compressing %s", rel), err)
		c.run.MarkProcessed(e, "Failed "+rel)
		return nil
	}

	rep.Info(fmt.Sprintf("Compressing %s", rel))
	job := ffmpeg.Job{Input: e.Path, Output: dest, CRF: c.crf, Preset: c.preset}
	err := c.runner.Compress(ctx, job, func(ts string) {
		rep.Status(fmt.Sprintf("Compressing %s: %s", rel, ts))
	})
	if err != nil {
		os.Remove(dest)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.run.Stats.Errors++
		var exitErr *ffmpeg.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Tail) > 0 {
			rep.Logger().Debug().Strs("stderr", exitErr.Tail).Str("file", rel).Msg("Encoder output")
		}
		rep.Error(fmt.Sprintf("Error compressing %s", rel), err)
		c.run.MarkProcessed(e, "Failed "+rel)
		return nil
	}

	info, err := os.Stat(dest)
	if err != nil {
		c.run.Stats.Errors++
		rep.Error(fmt.Sprintf("Error reading compressed %s", rel), err)
		c.run.MarkProcessed(e, "Failed "+rel)
		return nil
	}
	c.run.MarkWritten(dest)
	c.run.Stats.AddConverted(e.Size, info.Size())
	rep.Success(fmt.Sprintf("Compressed %s (%s)", rel, runstats.SizeChange(e.Size, info.Size())))
	c.run.MarkProcessed(e, "Compressed "+rel)
	return nil
}

func (c *compression) interrupted(err error) (runstats.Summary, error) {
	c.run.Report.Warning("Video compression cancelled")
	return c.run.Stats.Finish(), fmt.Errorf("video compression interrupted: %w", err)
}
