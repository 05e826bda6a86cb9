package convert

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

type ExecSpec struct {
	Bin     string
	Args    []string
	Timeout time.Duration
}

type ExecResult struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	StdoutTail  string
	StderrTail  string
	Err         error
}

type ExecRunner interface {
	Run(ctx context.Context, spec ExecSpec) ExecResult
}

// SubprocessRunner executes conversion tools, keeping only the tail of their
// output for error reporting.
type SubprocessRunner struct{}

type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 64 * 1024
	}
	return &tailBuffer{max: max}
}

// Write keeps only the trailing max bytes of everything written.
func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if overflow := len(t.buf) - t.max; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func (r *SubprocessRunner) Run(ctx context.Context, spec ExecSpec) ExecResult {
	start := time.Now()
	if spec.Bin == "" {
		return ExecResult{ExitCode: 1, Duration: time.Since(start), Err: errors.New("missing binary")}
	}

	runCtx := ctx
	cancel := func() {}
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	stdout := newTailBuffer(8 * 1024)
	stderr := newTailBuffer(8 * 1024)
	cmd := exec.CommandContext(runCtx, spec.Bin, spec.Args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := ExecResult{
		Duration:   time.Since(start),
		StdoutTail: stdout.String(),
		StderrTail: stderr.String(),
		Err:        err,
	}
	if err == nil {
		return result
	}

	switch runCtx.Err() {
	case context.DeadlineExceeded:
		result.TimedOut = true
	case context.Canceled:
		result.Interrupted = true
		result.ExitCode = 130
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		result.ExitCode = 127
	default:
		result.ExitCode = 1
	}
	return result
}
