package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"media-converter/internal/logging"
	"media-converter/internal/progress"
)

// stderrTailSize bounds how much of ffmpeg's stderr is kept for error reports.
const stderrTailSize = 4096

// ErrStart is returned when the ffmpeg process cannot be launched.
var ErrStart = errors.New("failed to start ffmpeg")

// ExitError reports an ffmpeg process that ran but exited unsuccessfully.
type ExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg exited with status %d", e.Code)
	}
	return fmt.Sprintf("ffmpeg exited with status %d: %s", e.Code, lastLine(e.Stderr))
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes ffmpeg invocations.
type Runner struct {
	path string
}

// NewRunner returns a Runner for the ffmpeg binary at path.
func NewRunner(path string) *Runner {
	if path == "" {
		path = "ffmpeg"
	}
	return &Runner{path: path}
}

// Path returns the ffmpeg binary the Runner executes.
func (r *Runner) Path() string { return r.path }

// Run executes ffmpeg with args, prefixed with the flags that route the
// machine-readable progress stream to stdout. duration is the number of
// seconds the invocation will produce and is used to normalize progress.
// onProgress, which may be nil, is called from the calling goroutine with
// values in [0, 100]; a final 100 is reported only if ffmpeg exits cleanly.
func (r *Runner) Run(ctx context.Context, args []string, duration float64, onProgress func(float64)) error {
	full := append([]string{"-hide_banner", "-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, r.path, full...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	logging.Debug("Running: %s %s", r.path, strings.Join(full, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}

	// stdout must be drained before Wait closes it.
	for pct := range progress.Track(stdout, duration) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return fmt.Errorf("ffmpeg process error: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, r.path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}

// lastLine returns the final non-empty line of s, which for ffmpeg is
// usually the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
