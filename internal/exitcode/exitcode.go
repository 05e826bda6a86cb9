// Package exitcode fixes the process exit codes so scripts wrapping vasort
// can tell why a run stopped.
package exitcode

const (
	Success        = 0
	RuntimeFailure = 1
	InvalidUsage   = 2
	InvalidConfig  = 3

	// MissingDependency covers an unreachable provider server, a missing
	// model, and doctor-detected environment problems.
	MissingDependency = 4

	// StateMismatch means verify found the checkpoint and the done log
	// disagreeing.
	StateMismatch = 5

	// Interrupted mirrors the shell convention of 128+SIGINT.
	Interrupted = 130
)
