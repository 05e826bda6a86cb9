package cli

import (
	"errors"
	"strings"

	"github.com/jaa/vasort/internal/engine"
	"github.com/jaa/vasort/internal/exitcode"
)

// ExitError pins the process exit code for the error it wraps. Command
// implementations return one through withExitCode and Execute unwraps it at
// the top level.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// mapExitCode translates whatever bubbled out of cobra into a process exit
// code. Cobra reports unknown commands and flags as plain errors, so those
// are matched by message.
func mapExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, engine.ErrInterrupted) {
		return exitcode.Interrupted
	}
	message := err.Error()
	if strings.Contains(message, "unknown command") || strings.Contains(message, "unknown flag") {
		return exitcode.InvalidUsage
	}
	return exitcode.RuntimeFailure
}
