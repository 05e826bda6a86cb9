package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaa/vasort/internal/doctor"
	"github.com/jaa/vasort/internal/exitcode"
)

func newDoctorCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check provider server, converter, and filesystem readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			report := doctor.NewChecker().Check(context.Background(), cfg)

			if app.Opts.JSON {
				if err := json.NewEncoder(app.IO.Out).Encode(report); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			} else {
				for _, check := range report.Checks {
					fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
				}
			}

			if report.HasErrors() {
				return withExitCode(exitcode.MissingDependency, fmt.Errorf("doctor found %d error(s)", report.ErrorCount()))
			}
			if !app.Opts.JSON {
				fmt.Fprintln(app.IO.Out, "All checks passed.")
			}
			return nil
		},
	}
}
