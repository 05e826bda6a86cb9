package main

import (
	"os"

	"github.com/jaa/vasort/internal/cli"
)

// Overridden at release time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	build := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	streams := cli.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
	os.Exit(cli.Execute(build, streams))
}
