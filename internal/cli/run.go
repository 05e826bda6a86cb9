package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/album"
	"github.com/jaa/vasort/internal/classify"
	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/convert"
	"github.com/jaa/vasort/internal/engine"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/library/fslib"
	"github.com/jaa/vasort/internal/output"
	"github.com/jaa/vasort/internal/provider"
	"github.com/jaa/vasort/internal/state"
)

func newRunCommand(app *AppContext) *cobra.Command {
	var batchSize int
	var flushThreshold int
	var providerType string
	var albumName string
	var noAlbum bool
	var debug bool
	var debugLimit int
	var noDiagnostics bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify unprocessed library items and update the album",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if cmd.Flags().Changed("provider") {
				cfg.Provider.Type = config.ProviderType(strings.ToLower(strings.TrimSpace(providerType)))
			}
			if cmd.Flags().Changed("album") {
				cfg.Album.Name = albumName
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.Processing.BatchSize = batchSize
			}
			if cmd.Flags().Changed("flush-threshold") {
				cfg.Processing.FlushThreshold = flushThreshold
			}
			if debug {
				cfg.Processing.DebugMode = true
			}
			if cmd.Flags().Changed("debug-limit") {
				cfg.Processing.DebugMode = true
				cfg.Processing.DebugLimit = debugLimit
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			paths, err := config.ResolvePaths(cfg.Storage)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			log, err := newLogger(app, cfg, paths)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer func() { _ = log.Sync() }()

			runID := uuid.NewString()
			log.Info("starting run",
				zap.String("run_id", runID),
				zap.String("task", cfg.Task.Name),
				zap.String("provider", string(cfg.Provider.Type)))

			emitter := newEmitter(app)
			if !noDiagnostics {
				tracker := output.NewTracker(paths.DiagnosticsDir, runID, log, nil)
				emitter = output.NewMultiEmitter(emitter, tracker)
			}

			prov, err := provider.New(cfg.Provider, log)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := prov.CheckServer(ctx); err != nil {
				return withExitCode(exitcode.MissingDependency,
					fmt.Errorf("%s is not answering at %s: %w", prov.Name(), prov.Endpoint(), err))
			}
			log.Info("provider ready",
				zap.String("provider", prov.Name()),
				zap.String("model", prov.Model()),
				zap.String("endpoint", prov.Endpoint()))

			lib := fslib.New(paths.LibraryDir, convert.New(log), log)
			items, err := lib.Items(ctx)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("scan library: %w", err))
			}

			store := state.NewStore(paths.StateFile, paths.DoneFile, log)
			progress := store.Load()
			done, doneErr := store.LoadDone()
			if doneErr != nil {
				log.Warn("done log unreadable, resuming from checkpoint index only", zap.Error(doneErr))
			}
			plan, alreadyDone := engine.Plan(items, progress.LastIndex, done)

			var sink engine.MatchSink
			if !noAlbum && cfg.Album.Name != "" {
				sink = album.NewSink(lib, cfg.Album.Name, cfg.Album.CreateIfMissing, log)
			}

			classifier, err := classify.New(cfg.Task.Rules, log)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			gateway := engine.NewGateway(lib, prov, classifier, cfg.Task.Prompt, paths.TempDir, runID, log)

			eng := engine.New(gateway, store, sink, emitter, log, engine.Options{
				BatchSize:      cfg.Processing.BatchSize,
				FlushThreshold: cfg.Processing.FlushThreshold,
				SkipTypes:      cfg.Processing.SkipTypes,
				SkipVideos:     cfg.Processing.SkipVideos,
				BatchPause:     time.Duration(cfg.Processing.BatchPauseMS) * time.Millisecond,
				DebugMode:      cfg.Processing.DebugMode,
				DebugLimit:     cfg.Processing.DebugLimit,
			}, runID)

			summary, runErr := eng.Run(ctx, plan, len(items), alreadyDone)
			if runErr != nil {
				if errors.Is(runErr, engine.ErrInterrupted) {
					return withExitCode(exitcode.Interrupted,
						fmt.Errorf("interrupted at index %d, rerun to resume", summary.LastIndex))
				}
				return withExitCode(exitcode.RuntimeFailure, runErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override items per checkpointed batch")
	cmd.Flags().IntVar(&flushThreshold, "flush-threshold", 0, "Override matches buffered before an album update")
	cmd.Flags().StringVar(&providerType, "provider", "", "Override provider type (ollama, lmstudio, mlxvlm)")
	cmd.Flags().StringVar(&albumName, "album", "", "Override target album name")
	cmd.Flags().BoolVar(&noAlbum, "no-album", false, "Classify and record matches without touching the album")
	cmd.Flags().BoolVar(&debug, "debug", false, "Stop after debug-limit matches")
	cmd.Flags().IntVar(&debugLimit, "debug-limit", 0, "Matches to find before stopping in debug mode (implies --debug)")
	cmd.Flags().BoolVar(&noDiagnostics, "no-diagnostics", false, "Skip the per-run diagnostics snapshot")
	return cmd
}
