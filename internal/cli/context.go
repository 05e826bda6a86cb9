package cli

import "io"

// BuildInfo carries the version identifiers main injects through ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// IOStreams bundles the process streams so commands and tests write to the
// same places.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// GlobalOptions holds the persistent flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
	Verbose    bool
	NoInput    bool
}

type AppContext struct {
	Build BuildInfo
	IO    IOStreams
	Opts  GlobalOptions
}
