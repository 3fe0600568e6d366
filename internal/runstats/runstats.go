// Package runstats holds per-run counters and the summary returned to callers.
package runstats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Kind names the engine that produced a summary.
type Kind string

const (
	KindImages Kind = "images"
	KindVideos Kind = "videos"
)

// Stats accumulates outcomes during a single run. It is not safe for concurrent use;
// an engine run mutates it from one goroutine.
type Stats struct {
	Converted               int
	Copied                  int
	Skipped                 int
	Errors                  int
	ExistingTargetPreferred int
	OriginalBytes           int64
	FinalBytes              int64

	id      string
	kind    Kind
	started time.Time
}

// Start creates zeroed statistics for a new run.
func Start(kind Kind) *Stats {
	return &Stats{id: uuid.NewString(), kind: kind, started: time.Now()}
}

// ID returns the run identifier.
func (s *Stats) ID() string {
	return s.id
}

// AddConverted records a transcoded file.
func (s *Stats) AddConverted(original, final int64) {
	s.Converted++
	s.OriginalBytes += original
	s.FinalBytes += final
}

// AddCopied records a verbatim copy; the size is unchanged.
func (s *Stats) AddCopied(size int64) {
	s.Copied++
	s.AddBytes(size)
}

// AddBytes accounts size on both sides without touching a counter.
func (s *Stats) AddBytes(size int64) {
	s.OriginalBytes += size
	s.FinalBytes += size
}

// Finish freezes the statistics into a Summary.
func (s *Stats) Finish() Summary {
	return Summary{
		RunID:                   s.id,
		Kind:                    s.kind,
		StartedAt:               s.started,
		Converted:               s.Converted,
		Copied:                  s.Copied,
		Skipped:                 s.Skipped,
		Errors:                  s.Errors,
		ExistingTargetPreferred: s.ExistingTargetPreferred,
		OriginalBytes:           s.OriginalBytes,
		FinalBytes:              s.FinalBytes,
		Elapsed:                 time.Since(s.started),
	}
}

// Summary is the immutable report of a finished run.
type Summary struct {
	RunID                   string        `json:"runId"`
	Kind                    Kind          `json:"kind"`
	StartedAt               time.Time     `json:"startedAt"`
	Converted               int           `json:"convertedCount"`
	Copied                  int           `json:"copiedCount"`
	Skipped                 int           `json:"skippedCount"`
	Errors                  int           `json:"errorCount"`
	ExistingTargetPreferred int           `json:"existingTargetPreferredCount,omitempty"`
	OriginalBytes           int64         `json:"originalTotalBytes"`
	FinalBytes              int64         `json:"finalTotalBytes"`
	Elapsed                 time.Duration `json:"-"`
}

// ElapsedSeconds returns the wall-clock duration in seconds.
func (s Summary) ElapsedSeconds() float64 {
	return s.Elapsed.Seconds()
}

// MarshalJSON encodes the summary with the duration as elapsedSeconds.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		ElapsedSeconds float64 `json:"elapsedSeconds"`
	}{plain(s), s.ElapsedSeconds()})
}

// SavedPercent returns the size reduction relative to the original bytes.
func (s Summary) SavedPercent() float64 {
	return SavedPercent(s.OriginalBytes, s.FinalBytes)
}

// SizeChange renders "a → b (p% saved)".
func (s Summary) SizeChange() string {
	return SizeChange(s.OriginalBytes, s.FinalBytes)
}

// SavedPercent returns (original-final)/original as a percentage; zero original
// yields 0.
func SavedPercent(original, final int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-final) / float64(original) * 100
}

// SizeChange renders a humanized before/after pair with the saved percentage.
func SizeChange(original, final int64) string {
	return fmt.Sprintf("%s → %s, %.2f%% saved",
		humanize.IBytes(uint64(original)), humanize.IBytes(uint64(final)), SavedPercent(original, final))
}
