package imageconv

import (
	"context"
	"fmt"

	"go.lorenzomilicia.dev/aurora-converter/internal/batch"
	"go.lorenzomilicia.dev/aurora-converter/internal/dupindex"
	"go.lorenzomilicia.dev/aurora-converter/internal/media"
	"go.lorenzomilicia.dev/aurora-converter/internal/processing"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// conversion is the state of one Run.
type conversion struct {
	run        *batch.Run
	idx        *dupindex.Index
	transcoder processing.Transcoder
	opts       processing.Options
}

func (c *conversion) dispatch(e walker.Entry) {
	if c.run.IsProcessed(e.Path) {
		return
	}
	switch media.RoleFor(e.Name, c.opts.Format) {
	case media.RoleConvertible:
		c.convert(e)
	case media.RoleTarget:
		c.copyTarget(e)
	default:
		c.copyOther(e)
	}
}

// copyOther passes a non-image file through unchanged.
func (c *conversion) copyOther(e walker.Entry) {
	dest := c.run.OutputPath(e, "")
	if c.run.IsWritten(dest) {
		c.skip(e, dest)
		return
	}
	c.run.CopyCounted(e, dest)
	c.run.MarkProcessed(e, "Copied "+e.RelPath())
}

// copyTarget copies a file that is already in the target format, unless this run
// already wrote its destination.
func (c *conversion) copyTarget(e walker.Entry) {
	dest := c.run.OutputPath(e, "")
	if c.run.IsWritten(dest) {
		c.skip(e, dest)
		return
	}
	if c.run.CopyCounted(e, dest) {
		c.run.Report.Info(fmt.Sprintf("Copied %s (already %s)", e.RelPath(), c.opts.Format))
	}
	c.run.MarkProcessed(e, "Copied "+e.RelPath())
}

func (c *conversion) convert(e walker.Entry) {
	rep := c.run.Report
	stats := c.run.Stats

	if v, ok := c.idx.LookupVariant(dupindex.KeyOf(e), c.opts.Format.Ext()); ok && v.Path != e.Path {
		c.preferExisting(e, v)
		return
	}

	dest := c.run.OutputPath(e, c.opts.Format.Ext())
	if c.run.IsWritten(dest) {
		c.skip(e, dest)
		return
	}

	res, err := c.transcoder.Transcode(e.Path, dest, c.opts)
	if err != nil {
		stats.Errors++
		rep.Error(fmt.Sprintf("Error converting %s", e.RelPath()), err)
		c.fallback(e)
		c.run.MarkProcessed(e, "Failed "+e.RelPath())
		return
	}

	c.run.MarkWritten(dest)
	stats.AddConverted(e.Size, res.Bytes)
	if res.Resized() {
		rep.Logger().Debug().
			Str("file", e.RelPath()).
			Int("fromWidth", res.SourceWidth).
			Int("toWidth", res.Width).
			Msg("Resized")
	}
	rep.Success(fmt.Sprintf("Converted %s to %s (%s)", e.RelPath(), c.opts.Format, runstats.SizeChange(e.Size, res.Bytes)))
	c.run.MarkProcessed(e, "Converted "+e.RelPath())
}

// fallback copies the original so a failed conversion never drops a file.
func (c *conversion) fallback(e walker.Entry) {
	dest := c.run.OutputPath(e, "")
	if c.run.IsWritten(dest) {
		return
	}
	n, err := c.run.CopyVerbatim(e, dest)
	if err != nil {
		c.run.Report.Error(fmt.Sprintf("Could not copy original of %s", e.RelPath()), err)
		return
	}
	c.run.Stats.AddBytes(n)
	c.run.Report.Warning(fmt.Sprintf("Copied original %s unchanged", e.RelPath()))
}

// preferExisting uses an input sibling already in the target format instead of
// converting e. The sibling is copied once and counted as a regular copy,
// whichever of the two is visited first.
func (c *conversion) preferExisting(e, variant walker.Entry) {
	rep := c.run.Report
	c.run.Stats.ExistingTargetPreferred++

	if !c.run.IsProcessed(variant.Path) {
		dest := c.run.OutputPath(variant, "")
		if !c.run.IsWritten(dest) {
			c.run.CopyCounted(variant, dest)
		}
		c.run.MarkProcessed(variant, "Copied "+variant.RelPath())
	}

	rep.Info(fmt.Sprintf("Using existing %s instead of converting %s", variant.RelPath(), e.RelPath()))
	c.run.MarkProcessed(e, "Reused "+variant.RelPath())
}

func (c *conversion) skip(e walker.Entry, dest string) {
	c.run.Stats.Skipped++
	c.run.Report.Warning(fmt.Sprintf("Skipping %s: %s was already written", e.RelPath(), dest))
	c.run.MarkProcessed(e, "Skipped "+e.RelPath())
}

// reconcile retries any input the walk missed and compares input and output counts.
func (c *conversion) reconcile(ctx context.Context) error {
	rep := c.run.Report
	inputs, _ := walker.ListAllFiles(c.run.InputDir)
	for _, e := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.run.IsProcessed(e.Path) {
			continue
		}
		rep.Warning(fmt.Sprintf("Retrying unprocessed file %s", e.RelPath()))
		c.dispatch(e)
	}

	outputs, _ := walker.ListAllFiles(c.run.OutputDir)
	expected := len(inputs) - c.run.Stats.Skipped - c.run.Stats.ExistingTargetPreferred
	if len(outputs) != expected {
		rep.Warning(fmt.Sprintf("Expected %d output files but found %d in %s", expected, len(outputs), c.run.OutputDir))
	} else {
		rep.Logger().Debug().Int("files", expected).Msg("Output file count matches input")
	}
	return nil
}

func (c *conversion) interrupted(err error) (runstats.Summary, error) {
	c.run.Report.Warning("Image conversion cancelled")
	return c.run.Stats.Finish(), fmt.Errorf("image conversion interrupted: %w", err)
}
