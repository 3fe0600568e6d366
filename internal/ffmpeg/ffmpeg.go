// Package ffmpeg runs the external encoder for one file and scrapes its progress
// output.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEncoderNotFound = errors.New("ffmpeg binary not found")
	ErrEncodeFailed    = errors.New("encoder failed")
)

// AudioBitrate is the fixed AAC bitrate of compressed output.
const AudioBitrate = "128k"

var commandContext = exec.CommandContext

var timePattern = regexp.MustCompile(`time=(\d+:\d+:\d+\.\d+)`)

// Locate resolves the encoder binary: an explicit path must exist, otherwise
// "ffmpeg" is looked up on PATH.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrEncoderNotFound, explicit, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrEncoderNotFound, explicit)
		}
		return explicit, nil
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoderNotFound, err)
	}
	return path, nil
}

// Job describes one compression.
type Job struct {
	Input  string
	Output string
	CRF    int
	Preset string
}

// Args builds the encoder argument list: H.264 at the given CRF and preset, AAC
// audio, and the moov atom moved to the front for streaming.
func Args(job Job) []string {
	return []string{
		"-y",
		"-i", job.Input,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(job.CRF),
		"-preset", job.Preset,
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-movflags", "+faststart",
		job.Output,
	}
}

// ExitError is returned when the encoder exits with a non-zero status.
type ExitError struct {
	Code int
	Tail []string // last diagnostic lines
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return ErrEncodeFailed
}

// Runner spawns the encoder.
type Runner struct {
	binary         string
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommandContext replaces the function used to build the encoder command.
func WithCommandContext(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) Option {
	return func(r *Runner) {
		r.commandContext = fn
	}
}

// NewRunner creates a runner for binary.
func NewRunner(binary string, opts ...Option) *Runner {
	r := &Runner{binary: binary, commandContext: commandContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the encoder path.
func (r *Runner) Binary() string {
	return r.binary
}

// Compress runs the encoder for job and blocks until it exits. onTime, if set,
// receives each elapsed-time marker from the diagnostic stream; it is only a human
// hint and never decides success. Success requires exit status 0 and an existing
// output file. Cancelling ctx kills the encoder.
func (r *Runner) Compress(ctx context.Context, job Job, onTime func(elapsed string)) error {
	cmd := r.commandContext(ctx, r.binary, Args(job)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %v", ErrEncodeFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrEncodeFailed, r.binary, err)
	}

	tail := scanDiagnostics(stderr, onTime)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("encoder interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Tail: tail}
		}
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	if _, err := os.Stat(job.Output); err != nil {
		return fmt.Errorf("%w: output missing after exit 0: %v", ErrEncodeFailed, err)
	}
	return nil
}

const tailLines = 5

// scanDiagnostics reads the encoder's stderr to EOF, reporting time markers and
// keeping the last few non-empty lines.
func scanDiagnostics(r io.Reader, onTime func(string)) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)

	var tail []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if onTime != nil {
			if ts, ok := ParseElapsed(line); ok {
				onTime(ts)
			}
		}
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
	}
	// Drain anything left so the process never blocks on a full pipe.
	io.Copy(io.Discard, r)
	return tail
}

// ParseElapsed extracts the HH:MM:SS.ff value of a "time=" marker.
func ParseElapsed(line string) (string, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// scanLines splits on either \r or \n; the encoder rewrites its status line with
// carriage returns.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
