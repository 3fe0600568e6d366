package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func helperRunner(mode string) *Runner {
	return NewRunner("ffmpeg", WithCommandContext(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}))
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	output := args[len(args)-1]

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		fmt.Fprint(os.Stderr, "Input #0, mov\n")
		fmt.Fprint(os.Stderr, "frame=  10 fps=0.0 size=0kB time=00:00:01.50 bitrate=N/A\r")
		fmt.Fprint(os.Stderr, "frame=  20 fps=0.0 size=0kB time=00:00:03.00 bitrate=N/A\r")
		if err := os.WriteFile(output, []byte("encoded"), 0644); err != nil {
			os.Exit(3)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	case "no-output":
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

func TestArgs(t *testing.T) {
	got := strings.Join(Args(Job{Input: "in.mp4", Output: "out.mp4", CRF: 28, Preset: "slow"}), " ")
	want := "-y -i in.mp4 -c:v libx264 -crf 28 -preset slow -c:a aac -b:a 128k -movflags +faststart out.mp4"
	if got != want {
		t.Fatalf("Args =\n %s\nwant\n %s", got, want)
	}
}

func TestCompressSuccessReportsTimes(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	var times []string
	err := helperRunner("success").Compress(context.Background(), Job{Input: "in.mp4", Output: out, CRF: 23, Preset: "medium"}, func(ts string) {
		times = append(times, ts)
	})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(times) != 2 || times[0] != "00:00:01.50" || times[1] != "00:00:03.00" {
		t.Fatalf("unexpected time markers %v", times)
	}
}

func TestCompressNonZeroExit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	err := helperRunner("failure").Compress(context.Background(), Job{Input: "in.mp4", Output: out, CRF: 23, Preset: "medium"}, nil)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("expected ExitError with code 1, got %v", err)
	}
	if !strings.Contains(exitErr.Error(), "Invalid data") {
		t.Errorf("expected diagnostic tail in message, got %q", exitErr.Error())
	}
}

func TestCompressMissingOutputIsFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	err := helperRunner("no-output").Compress(context.Background(), Job{Input: "in.mp4", Output: out, CRF: 23, Preset: "medium"}, nil)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
}

func TestCompressSpawnFailure(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "does-not-exist"))
	err := r.Compress(context.Background(), Job{Input: "a", Output: "b", CRF: 23, Preset: "medium"}, nil)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if got, err := Locate(bin); err != nil || got != bin {
		t.Fatalf("Locate(explicit) = %q, %v", got, err)
	}
	if _, err := Locate(filepath.Join(dir, "missing")); !errors.Is(err, ErrEncoderNotFound) {
		t.Fatalf("expected ErrEncoderNotFound, got %v", err)
	}
	if _, err := Locate(dir); !errors.Is(err, ErrEncoderNotFound) {
		t.Fatalf("expected ErrEncoderNotFound for a directory, got %v", err)
	}

	t.Setenv("PATH", dir)
	if got, err := Locate(""); err != nil || got != bin {
		t.Fatalf("Locate from PATH = %q, %v", got, err)
	}
	t.Setenv("PATH", t.TempDir())
	if _, err := Locate(""); !errors.Is(err, ErrEncoderNotFound) {
		t.Fatalf("expected ErrEncoderNotFound on empty PATH, got %v", err)
	}
}

func TestParseElapsed(t *testing.T) {
	if ts, ok := ParseElapsed("frame=1 time=01:02:03.45 bitrate=1"); !ok || ts != "01:02:03.45" {
		t.Fatalf("got %q %v", ts, ok)
	}
	if _, ok := ParseElapsed("time=N/A"); ok {
		t.Fatal("N/A should not match")
	}
}

func TestScanLinesSplitsCarriageReturns(t *testing.T) {
	tail := scanDiagnostics(strings.NewReader("a\rb\nc\r\nd"), nil)
	if strings.Join(tail, ",") != "a,b,c,d" {
		t.Fatalf("unexpected lines %v", tail)
	}
}
