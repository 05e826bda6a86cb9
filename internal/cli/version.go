package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version/build metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Opts.JSON {
				payload := map[string]any{
					"version":    orFallback(app.Build.Version, "dev"),
					"commit":     orFallback(app.Build.Commit, "unknown"),
					"build_date": orFallback(app.Build.Date, "unknown"),
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}
			printVersion(app)
			return nil
		},
	}
}

func printVersion(app *AppContext) {
	fmt.Fprintf(app.IO.Out, "vasort version %s\ncommit: %s\nbuild_date: %s\n",
		orFallback(app.Build.Version, "dev"),
		orFallback(app.Build.Commit, "unknown"),
		orFallback(app.Build.Date, "unknown"))
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
