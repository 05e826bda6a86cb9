package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jaa/vasort/internal/provider"
)

func newProvidersCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List built-in provider types and their default endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := provider.BuiltinProviders()

			if app.Opts.JSON {
				payload := make([]map[string]any, 0, len(infos))
				for _, info := range infos {
					payload = append(payload, map[string]any{
						"type":        string(info.Type),
						"description": info.Description,
						"default_url": info.DefaultURL,
					})
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(app.IO.Out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Type", "Description", "Default endpoint"})
			for _, info := range infos {
				t.AppendRow(table.Row{string(info.Type), info.Description, info.DefaultURL})
			}
			t.Render()
			return nil
		},
	}
}
