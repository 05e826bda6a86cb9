package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/convert"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/library/fslib"
	"github.com/jaa/vasort/internal/state"
)

func newVerifyCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that checkpoint, done log, and library agree",
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

			var problems []string

			done, doneErr := store.LoadDone()
			if doneErr != nil {
				problems = append(problems, fmt.Sprintf("done log unreadable: %v", doneErr))
			}

			// Every item below the checkpoint was appended to the done log
			// before the checkpoint advanced, so the log can never be the
			// shorter of the two.
			if len(done) < progress.LastIndex {
				problems = append(problems, fmt.Sprintf(
					"done log has %d entries but the checkpoint index is %d", len(done), progress.LastIndex))
			}

			matchesMissing := 0
			for _, id := range progress.Matches {
				if _, ok := done[id]; !ok {
					matchesMissing++
				}
			}
			if matchesMissing > 0 {
				problems = append(problems, fmt.Sprintf(
					"%d recorded match(es) missing from the done log", matchesMissing))
			}

			lib := fslib.New(paths.LibraryDir, convert.New(log), log)
			items, itemsErr := lib.Items(context.Background())
			if itemsErr != nil {
				problems = append(problems, fmt.Sprintf("library unreachable: %v", itemsErr))
			} else if progress.LastIndex > len(items) {
				problems = append(problems, fmt.Sprintf(
					"checkpoint index %d exceeds library size %d", progress.LastIndex, len(items)))
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"consistent":    len(problems) == 0,
					"last_index":    progress.LastIndex,
					"done_count":    len(done),
					"total_matches": len(progress.Matches),
					"problems":      problems,
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else if len(problems) == 0 {
				fmt.Fprintf(app.IO.Out, "State is consistent: checkpoint at %d, %d done entries, %d matches.\n",
					progress.LastIndex, len(done), len(progress.Matches))
			} else {
				for _, problem := range problems {
					fmt.Fprintln(app.IO.Out, "MISMATCH:", problem)
				}
			}

			if len(problems) > 0 {
				return withExitCode(exitcode.StateMismatch,
					fmt.Errorf("state verification found %d problem(s)", len(problems)))
			}
			return nil
		},
	}
}
