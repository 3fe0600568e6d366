package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.lorenzomilicia.dev/aurora-converter/internal/config"
	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
)

func TestPrintSummaryJSON(t *testing.T) {
	sum := runstats.Summary{RunID: "r1", Kind: runstats.KindImages, Converted: 2, OriginalBytes: 100, FinalBytes: 40, Elapsed: 1500 * time.Millisecond}
	var buf bytes.Buffer
	if err := printSummary(&buf, sum, true); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["convertedCount"] != float64(2) || got["finalTotalBytes"] != float64(40) {
		t.Errorf("unexpected JSON %v", got)
	}
	if got["elapsedSeconds"] != 1.5 {
		t.Errorf("elapsedSeconds = %v, want 1.5", got["elapsedSeconds"])
	}
}

func TestPrintSummaryTable(t *testing.T) {
	sum := runstats.Summary{RunID: "r2", Kind: runstats.KindVideos, Converted: 1, Elapsed: 1500 * time.Millisecond}
	var buf bytes.Buffer
	if err := printSummary(&buf, sum, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "videos run r2") || !strings.Contains(out, "Converted") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "Existing target used") {
		t.Error("video summaries should not show the existing-target row")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("/very/long/path/to/photos", 10); got != ".../photos" || len(got) != 10 {
		t.Errorf("truncate = %q", got)
	}
}

func TestSameDir(t *testing.T) {
	if !sameDir("out", "./out/") {
		t.Error("out and ./out/ should be the same directory")
	}
	if sameDir("out/a", "out/b") {
		t.Error("different directories reported equal")
	}
}

func TestClearCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stale.webp"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, outdir.Sentinel), nil, 0644); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"clear", dir})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "stale.webp")); !os.IsNotExist(err) {
		t.Error("stale file should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, outdir.Sentinel)); err != nil {
		t.Error("sentinel should be kept")
	}
}

func TestInitCommandWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aurora.yaml")
	rootCmd.SetArgs([]string{"init", path})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	file, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if file.Images == nil || file.Videos == nil {
		t.Fatalf("init should write both sections, got %+v", file)
	}
	if file.Images.QualityValue() != config.DefaultQuality || file.Videos.Preset != config.DefaultPreset {
		t.Errorf("unexpected defaults %+v %+v", file.Images, file.Videos)
	}

	rootCmd.SetArgs([]string{"init", path})
	if err := rootCmd.Execute(); err == nil {
		t.Error("init should refuse to overwrite without --force")
	}
}
