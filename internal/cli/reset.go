package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/state"
)

func newResetCommand(app *AppContext) *cobra.Command {
	var yes bool
	var keepBackup bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear checkpoint, done log, and diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			paths, err := config.ResolvePaths(cfg.Storage)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if !yes {
				if app.Opts.NoInput || !isTTY(os.Stdin) {
					return withExitCode(exitcode.RuntimeFailure,
						fmt.Errorf("refusing to reset without confirmation (rerun with --yes)"))
				}
				confirmed, confirmErr := promptYesNo(app,
					fmt.Sprintf("Reset run state under %s? The next run starts from scratch.", paths.StateDir))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintln(app.IO.Out, "Reset canceled.")
					return nil
				}
			}

			store := state.NewStore(paths.StateFile, paths.DoneFile, zap.NewNop())
			if err := store.Reset(keepBackup); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if !keepBackup {
				if err := os.RemoveAll(paths.DiagnosticsDir); err != nil {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("remove diagnostics: %w", err))
				}
			}

			if app.Opts.JSON {
				payload := map[string]any{"reset": true, "backup": keepBackup}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintln(app.IO.Out, "Run state cleared.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&keepBackup, "keep-backup", false, "Rename state files aside instead of deleting them")
	return cmd
}
