// Package imageconv converts an input tree of images to WebP or PNG, mirroring the
// tree into an output directory.
package imageconv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"go.lorenzomilicia.dev/aurora-converter/internal/batch"
	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/dupindex"
	"go.lorenzomilicia.dev/aurora-converter/internal/media"
	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/processing"
	"go.lorenzomilicia.dev/aurora-converter/internal/progress"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// ErrInputMissing is returned when the input directory does not exist.
var ErrInputMissing = batch.ErrInputMissing

// Engine runs image conversion batches. One engine may run several batches, one
// after another; concurrent runs need separate engines and separate output dirs.
type Engine struct {
	log        zerolog.Logger
	transcoder processing.Transcoder
	dirs       *outdir.Manager
	callback   atomic.Pointer[progress.Callback]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithTranscoder replaces the image library adapter.
func WithTranscoder(t processing.Transcoder) Option {
	return func(e *Engine) {
		e.transcoder = t
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.transcoder == nil {
		e.transcoder = processing.NewProcessor()
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

// Run converts every image under cfg.InputDir. It fails before touching any file
// if the configuration is invalid, the input is missing, or the directories
// overlap. Per-file failures are counted in the summary and do not stop the run.
// If ctx is cancelled the partial summary is returned with ctx's error.
func (e *Engine) Run(ctx context.Context, cfg config.ImageConfig) (runstats.Summary, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return runstats.Summary{}, err
	}
	if err := batch.CheckInput(cfg.InputDir); err != nil {
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

	stats := runstats.Start(runstats.KindImages)
	logger := e.log.With().Str("run", stats.ID()).Str("kind", string(runstats.KindImages)).Logger()

	idx := dupindex.Build(in)
	countable := func(en walker.Entry) bool {
		return media.RoleFor(en.Name, cfg.TargetFormat) != media.RolePassthrough
	}
	total := 0
	idx.Entries(func(en walker.Entry) {
		if countable(en) {
			total++
		}
	})

	rep := progress.NewReporter(logger, progress.NewAccountant(total), e.notify)
	rep.Info("Starting image conversion")
	rep.Info(fmt.Sprintf("Input directory: %s", in))
	rep.Info(fmt.Sprintf("Output directory: %s", out))
	rep.Info(fmt.Sprintf("Format: %s, quality: %d, max width: %d", cfg.TargetFormat, cfg.QualityValue(), cfg.MaxWidth))

	lock, err := batch.PrepareOutput(in, out, cfg.ClearOutputDir, e.dirs, rep)
	if err != nil {
		rep.Error("Cannot prepare output directory", err)
		return runstats.Summary{}, err
	}
	defer lock.Unlock()

	c := &conversion{
		run:        batch.NewRun(in, out, stats, rep, countable),
		idx:        idx,
		transcoder: e.transcoder,
		opts: processing.Options{
			Quality:  cfg.QualityValue(),
			MaxWidth: cfg.MaxWidth,
			Format:   cfg.TargetFormat,
		},
	}

	for res := range walker.Walk(in) {
		if err := ctx.Err(); err != nil {
			return c.interrupted(err)
		}
		if res.Skipped {
			batch.ReportSkip(rep, res)
			continue
		}
		c.dispatch(res.Entry)
	}

	if err := c.reconcile(ctx); err != nil {
		return c.interrupted(err)
	}

	sum := batch.Summarize(c.run, "Converted")
	rep.Complete("Image conversion complete")
	return sum, nil
}
