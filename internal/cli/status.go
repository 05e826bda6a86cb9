package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/convert"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/library/fslib"
	"github.com/jaa/vasort/internal/state"
)

func newStatusCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress, match counts, and album size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			paths, err := config.ResolvePaths(cfg.Storage)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			log := zap.NewNop()
			store := state.NewStore(paths.StateFile, paths.DoneFile, log)
			progress := store.Load()
			done, _ := store.LoadDone()

			// Library and album details are best-effort: status must still
			// report the checkpoint when the library volume is offline.
			totalItems := -1
			albumSize := -1
			lib := fslib.New(paths.LibraryDir, convert.New(log), log)
			if items, itemsErr := lib.Items(context.Background()); itemsErr == nil {
				totalItems = len(items)
			}
			if cfg.Album.Name != "" {
				if size, sizeErr := lib.CollectionSize(context.Background(), cfg.Album.Name); sizeErr == nil {
					albumSize = size
				}
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"last_index":        progress.LastIndex,
					"batches_processed": progress.BatchesProcessed,
					"total_matches":     len(progress.Matches),
					"errors":            progress.Errors,
					"done_count":        len(done),
					"album":             cfg.Album.Name,
				}
				if totalItems >= 0 {
					payload["total_items"] = totalItems
				}
				if albumSize >= 0 {
					payload["album_size"] = albumSize
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(app.IO.Out)
			t.SetStyle(table.StyleLight)
			t.AppendRow(table.Row{"Task", cfg.Task.Name})
			t.AppendRow(table.Row{"Provider", string(cfg.Provider.Type)})
			t.AppendRow(table.Row{"Checkpoint index", progress.LastIndex})
			t.AppendRow(table.Row{"Batches processed", progress.BatchesProcessed})
			t.AppendRow(table.Row{"Matches recorded", len(progress.Matches)})
			t.AppendRow(table.Row{"Errors recorded", progress.Errors})
			t.AppendRow(table.Row{"Done log entries", len(done)})
			if totalItems >= 0 {
				t.AppendRow(table.Row{"Library items", totalItems})
				if totalItems > 0 {
					percent := float64(progress.LastIndex) / float64(totalItems) * 100
					t.AppendRow(table.Row{"Progress", fmt.Sprintf("%.1f%%", percent)})
				}
			} else {
				t.AppendRow(table.Row{"Library items", "unavailable"})
			}
			if albumSize >= 0 {
				t.AppendRow(table.Row{fmt.Sprintf("Album %q", cfg.Album.Name), albumSize})
			}
			t.Render()
			return nil
		},
	}
}
