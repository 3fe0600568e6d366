package batch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"go.lorenzomilicia.dev/aurora-converter/internal/outdir"
	"go.lorenzomilicia.dev/aurora-converter/internal/progress"
	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFilePreservesContentAndTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	write(t, src, "hello world")
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "nested", "dir", "dst.bin")
	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if n != 11 {
		t.Errorf("copied %d bytes, want 11", n)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "hello world" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	info, _ := os.Stat(dst)
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	if _, err := CopyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestCopyCountedKeepsCopyWhenTimesFail(t *testing.T) {
	orig := chtimes
	chtimes = func(string, time.Time, time.Time) error { return errors.New("operation not permitted") }
	t.Cleanup(func() { chtimes = orig })

	base := t.TempDir()
	write(t, filepath.Join(base, "in", "notes.txt"), "twelve bytes")

	n, err := CopyFile(filepath.Join(base, "in", "notes.txt"), filepath.Join(base, "direct.txt"))
	if !errors.Is(err, ErrTimesNotKept) || n != 12 {
		t.Fatalf("CopyFile = %d, %v; want 12 bytes and ErrTimesNotKept", n, err)
	}

	stats := runstats.Start(runstats.KindImages)
	r := NewRun(filepath.Join(base, "in"), filepath.Join(base, "out"), stats, progress.NewReporter(zerolog.Nop(), nil, nil), nil)
	e := walker.Entry{Path: filepath.Join(base, "in", "notes.txt"), Name: "notes.txt", Base: "notes", Ext: ".txt"}
	dest := r.OutputPath(e, "")

	if !r.CopyCounted(e, dest) {
		t.Fatal("copy should succeed without its modification time")
	}
	if stats.Copied != 1 || stats.Errors != 0 {
		t.Errorf("copied=%d errors=%d, want 1/0", stats.Copied, stats.Errors)
	}
	if sum := stats.Finish(); sum.OriginalBytes != 12 || sum.FinalBytes != 12 {
		t.Errorf("bytes = %d/%d, want 12/12", sum.OriginalBytes, sum.FinalBytes)
	}
	if !r.IsWritten(dest) {
		t.Error("destination should be recorded as written")
	}
}

func TestMarkProcessedAdvancesOnlyCountable(t *testing.T) {
	var percents []int
	acct := progress.NewAccountant(2)
	rep := progress.NewReporter(zerolog.Nop(), acct, func(p int, _ string) { percents = append(percents, p) })
	r := NewRun("in", "out", runstats.Start(runstats.KindImages), rep, func(e walker.Entry) bool {
		return e.Ext == ".jpg"
	})

	a := walker.Entry{Path: "/in/a.jpg", Ext: ".jpg"}
	txt := walker.Entry{Path: "/in/a.txt", Ext: ".txt"}

	if !r.MarkProcessed(a, "a") {
		t.Fatal("first mark should be new")
	}
	if r.MarkProcessed(a, "a again") {
		t.Fatal("second mark should not be new")
	}
	r.MarkProcessed(txt, "txt")

	if acct.Processed() != 1 {
		t.Fatalf("processed = %d, want 1", acct.Processed())
	}
	if len(percents) != 1 || percents[0] != 50 {
		t.Fatalf("unexpected progress events %v", percents)
	}
	if r.ProcessedCount() != 2 {
		t.Fatalf("ProcessedCount = %d, want 2", r.ProcessedCount())
	}
}

func TestOutputPath(t *testing.T) {
	r := NewRun("/in", "/out", runstats.Start(runstats.KindImages), progress.NewReporter(zerolog.Nop(), nil, nil), nil)
	e := walker.Entry{RelDir: "a", Name: "p.JPG", Base: "p", Ext: ".JPG"}
	if got, want := r.OutputPath(e, ".webp"), filepath.Join("/out", "a", "p.webp"); got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got, want := r.OutputPath(e, ""), filepath.Join("/out", "a", "p.JPG"); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestCheckInput(t *testing.T) {
	if err := CheckInput(t.TempDir()); err != nil {
		t.Fatalf("existing dir: %v", err)
	}
	if err := CheckInput(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
	file := filepath.Join(t.TempDir(), "f")
	write(t, file, "x")
	if err := CheckInput(file); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing for a file, got %v", err)
	}
}

func TestPrepareOutputClearsAndLocks(t *testing.T) {
	base := t.TempDir()
	in := filepath.Join(base, "in")
	out := filepath.Join(base, "out")
	write(t, filepath.Join(in, "a.jpg"), "a")
	write(t, filepath.Join(out, "stale.webp"), "old")
	write(t, filepath.Join(out, outdir.Sentinel), "")

	rep := progress.NewReporter(zerolog.Nop(), nil, nil)
	lock, err := PrepareOutput(in, out, true, outdir.NewManager(zerolog.Nop()), rep)
	if err != nil {
		t.Fatalf("PrepareOutput: %v", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(filepath.Join(out, "stale.webp")); !os.IsNotExist(err) {
		t.Error("stale output should be cleared")
	}
	if _, err := os.Stat(filepath.Join(out, outdir.Sentinel)); err != nil {
		t.Error("sentinel should survive")
	}

	if _, err := PrepareOutput(in, out, false, outdir.NewManager(zerolog.Nop()), rep); !errors.Is(err, outdir.ErrLocked) {
		t.Fatalf("expected ErrLocked while the first run holds the lock, got %v", err)
	}
}

func TestPrepareOutputRejectsNested(t *testing.T) {
	in := t.TempDir()
	rep := progress.NewReporter(zerolog.Nop(), nil, nil)
	_, err := PrepareOutput(in, filepath.Join(in, "out"), true, outdir.NewManager(zerolog.Nop()), rep)
	if !errors.Is(err, outdir.ErrNestedDirs) {
		t.Fatalf("expected ErrNestedDirs, got %v", err)
	}
}
