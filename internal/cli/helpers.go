package cli

import (
	"os"
	"strings"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/logging"
	"github.com/jaa/vasort/internal/output"

	"go.uber.org/zap"
)

func loadConfig(app *AppContext) (config.Config, error) {
	return config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
	})
}

// newLogger builds the run logger. The file sink under the state directory
// stays on unless the config disables it; console verbosity follows the
// global flags.
func newLogger(app *AppContext, cfg config.Config, paths config.Paths) (*zap.Logger, error) {
	filePath := ""
	if cfg.Logging.File {
		filePath = paths.LogFile
	}
	return logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Verbose:  app.Opts.Verbose,
		Quiet:    app.Opts.Quiet,
		FilePath: filePath,
	})
}

func newEmitter(app *AppContext) output.EventEmitter {
	if app.Opts.JSON {
		return output.NewJSONEmitter(app.IO.Out)
	}
	return output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
