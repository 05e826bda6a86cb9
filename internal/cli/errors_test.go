package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jaa/vasort/internal/engine"
	"github.com/jaa/vasort/internal/exitcode"
)

func TestMapExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcode.Success},
		{name: "coded", err: &ExitError{Code: exitcode.InvalidConfig, Err: errors.New("bad")}, want: exitcode.InvalidConfig},
		{name: "wrapped coded", err: fmt.Errorf("outer: %w", &ExitError{Code: exitcode.StateMismatch, Err: errors.New("drift")}), want: exitcode.StateMismatch},
		{name: "unknown command", err: errors.New("unknown command \"x\" for \"vasort\""), want: exitcode.InvalidUsage},
		{name: "bare interrupt", err: fmt.Errorf("run: %w", engine.ErrInterrupted), want: exitcode.Interrupted},
		{name: "generic", err: errors.New("boom"), want: exitcode.RuntimeFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapExitCode(tc.err); got != tc.want {
				t.Fatalf("mapExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWithExitCodeNilPassthrough(t *testing.T) {
	if err := withExitCode(exitcode.InvalidConfig, nil); err != nil {
		t.Fatalf("withExitCode(nil) = %v, want nil", err)
	}
}
