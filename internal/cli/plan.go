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
	"github.com/jaa/vasort/internal/engine"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/library/fslib"
	"github.com/jaa/vasort/internal/state"
)

func newPlanCommand(app *AppContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what the next run would process without touching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			paths, err := config.ResolvePaths(cfg.Storage)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			log := zap.NewNop()
			lib := fslib.New(paths.LibraryDir, convert.New(log), log)
			items, err := lib.Items(context.Background())
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("scan library: %w", err))
			}

			store := state.NewStore(paths.StateFile, paths.DoneFile, log)
			progress := store.Load()
			done, _ := store.LoadDone()
			plan, alreadyDone := engine.Plan(items, progress.LastIndex, done)

			skipOpts := engine.Options{
				SkipTypes:  cfg.Processing.SkipTypes,
				SkipVideos: cfg.Processing.SkipVideos,
			}
			toSkip := 0
			for _, planned := range plan {
				if skipOpts.SkipReason(planned.Item) != "" {
					toSkip++
				}
			}

			batchSize := cfg.Processing.BatchSize
			if batchSize <= 0 {
				batchSize = 100
			}
			batches := (len(plan) + batchSize - 1) / batchSize

			if app.Opts.JSON {
				payload := map[string]any{
					"total_items":  len(items),
					"already_done": alreadyDone,
					"remaining":    len(plan),
					"to_classify":  len(plan) - toSkip,
					"to_skip":      toSkip,
					"batches":      batches,
					"resume_index": progress.LastIndex,
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}

			fmt.Fprintf(app.IO.Out, "Library: %d item(s), %d already done, %d remaining in %d batch(es)\n",
				len(items), alreadyDone, len(plan), batches)
			if len(plan) == 0 {
				fmt.Fprintln(app.IO.Out, "Nothing to do.")
				return nil
			}

			shown := plan
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}

			t := table.NewWriter()
			t.SetOutputMirror(app.IO.Out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Index", "ID", "Name", "Type", "Action"})
			for _, planned := range shown {
				action := "classify"
				if reason := skipOpts.SkipReason(planned.Item); reason != "" {
					action = "skip: " + reason
				}
				t.AppendRow(table.Row{planned.Index, planned.Item.ID, planned.Item.Name, planned.Item.Ext, action})
			}
			t.Render()

			if len(plan) > len(shown) {
				fmt.Fprintf(app.IO.Out, "... and %d more\n", len(plan)-len(shown))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Pending rows to display (0 shows all)")
	return cmd
}
