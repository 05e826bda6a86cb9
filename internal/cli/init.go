package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/exitcode"
)

func newInitCommand(app *AppContext) *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config and the state directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initTargetPath(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if !force {
				proceed, confirmErr := confirmOverwrite(app, path)
				if confirmErr != nil {
					return confirmErr
				}
				if !proceed {
					fmt.Fprintln(app.IO.Out, "Initialization canceled.")
					return nil
				}
			}

			if err := config.EnsureConfigDir(path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("write config file: %w", err))
			}

			stateDir, err := config.ExpandPath(config.DefaultConfig().Storage.StateDir)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("resolve state directory: %w", err))
			}
			if err := os.MkdirAll(stateDir, 0o755); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create state directory %s: %w", stateDir, err))
			}

			fmt.Fprintf(app.IO.Out, "Wrote config: %s\n", path)
			fmt.Fprintf(app.IO.Out, "Ensured state dir: %s\n", stateDir)
			fmt.Fprintln(app.IO.Out, "Edit the config to point storage.library_dir at your media library.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	return cmd
}

func initTargetPath(app *AppContext) (string, error) {
	if path := strings.TrimSpace(app.Opts.ConfigPath); path != "" {
		return path, nil
	}
	return config.UserConfigPath()
}

// confirmOverwrite asks before clobbering an existing config; a missing file
// needs no confirmation.
func confirmOverwrite(app *AppContext, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return true, nil
	}
	if app.Opts.NoInput || !isTTY(os.Stdin) {
		return false, withExitCode(exitcode.RuntimeFailure, fmt.Errorf("config already exists at %s (rerun with --force)", path))
	}
	return promptYesNo(app, fmt.Sprintf("Config already exists at %s. Overwrite?", path))
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
