package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/history"
	"go.lorenzomilicia.dev/aurora-converter/internal/progress"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// runDisplay wires an engine's progress to a terminal bar. Without a terminal, or
// with debug logging, the log lines are the only output.
type runDisplay struct {
	bar    *progressbar.ProgressBar
	logger zerolog.Logger
}

func newRunDisplay(description string) *runDisplay {
	if debug || !isTerminal(os.Stderr) {
		return &runDisplay{logger: logger}
	}
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	// Info lines would tear the bar; keep warnings and errors.
	return &runDisplay{bar: bar, logger: logger.Level(zerolog.WarnLevel)}
}

func (d *runDisplay) callback() progress.Callback {
	if d.bar == nil {
		return nil
	}
	return func(percent int, msg string) {
		_ = d.bar.Set(percent)
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		d.bar.Describe(msg)
	}
}

func (d *runDisplay) finish() {
	if d.bar != nil {
		_ = d.bar.Finish()
	}
}

func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func summaryRows(sum runstats.Summary) [][]string {
	rows := [][]string{
		{"Converted", strconv.Itoa(sum.Converted)},
		{"Copied", strconv.Itoa(sum.Copied)},
		{"Skipped", strconv.Itoa(sum.Skipped)},
		{"Errors", strconv.Itoa(sum.Errors)},
	}
	if sum.Kind == runstats.KindImages {
		rows = append(rows, []string{"Existing target used", strconv.Itoa(sum.ExistingTargetPreferred)})
	}
	rows = append(rows,
		[]string{"Original size", humanize.IBytes(uint64(sum.OriginalBytes))},
		[]string{"Final size", humanize.IBytes(uint64(sum.FinalBytes))},
		[]string{"Saved", fmt.Sprintf("%.2f%%", sum.SavedPercent())},
		[]string{"Elapsed", sum.Elapsed.Round(10 * time.Millisecond).String()},
	)
	return rows
}

func printSummary(w io.Writer, sum runstats.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Fprintf(w, "%s run %s\n", sum.Kind, sum.RunID)
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, summaryRows(sum), 2))
	return nil
}

// openHistory opens the history store, or returns nil when recording is disabled.
func openHistory(file *config.File) (*history.Store, error) {
	if noHistory || (file != nil && file.History.Disabled) {
		return nil, nil
	}
	explicit := historyDB
	if explicit == "" && file != nil {
		explicit = file.History.Path
	}
	path, err := config.HistoryPath(explicit)
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

// recordRun stores the outcome of a run. Failures are logged and never fail the
// command.
func recordRun(ctx context.Context, store *history.Store, sum runstats.Summary, input, output string, runErr error) {
	if store == nil || sum.RunID == "" {
		return
	}
	run := history.Run{Summary: sum, InputDir: input, OutputDir: output, Status: history.StatusCompleted}
	if runErr != nil {
		run.Status = history.StatusFailed
		if ctx.Err() != nil {
			run.Status = history.StatusInterrupted
		}
		run.Failure = runErr.Error()
	}
	if err := store.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Str("run", sum.RunID).Msg("Failed to record run history")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}
