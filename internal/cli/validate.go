package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/exitcode"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config schema, task rules, and provider settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"valid":    true,
					"task":     cfg.Task.Name,
					"provider": string(cfg.Provider.Type),
					"album":    cfg.Album.Name,
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintf(app.IO.Out, "Config is valid: task %q, provider %s, album %q.\n",
					cfg.Task.Name, cfg.Provider.Type, cfg.Album.Name)
			}
			return nil
		},
	}
}
