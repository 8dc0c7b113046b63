package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"songforge/internal/humanreq"
	"songforge/internal/ledger"
	"songforge/internal/logging"
	"songforge/internal/notifications"
	"songforge/internal/server"
	"songforge/internal/services/analyzer"
	"songforge/internal/services/generator"
	"songforge/internal/session"
	"songforge/internal/storage"
	"songforge/internal/voice"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Songforge API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lock := flock.New(cfg.LockFilePath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another songforge instance is already running (lock %s)", cfg.LockFilePath())
			}
			defer lock.Unlock() //nolint:errcheck

			db, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			tokens := ledger.NewStore(db)
			voices := voice.NewStore(db)
			sessions := session.NewStore(db)

			gen := generator.NewClient(cfg)
			engine := session.NewEngine(sessions, tokens, voices, gen, cfg.SessionIdleTimeout(), logger)
			requests := humanreq.NewService(humanreq.NewStore(db), logger)
			notifier := notifications.NewService(cfg)

			var voiceAnalyzer server.Analyzer
			if client := analyzer.NewClient(cfg); client != nil {
				voiceAnalyzer = client
			}

			srv := server.New(cfg, server.Options{
				Engine:   engine,
				Requests: requests,
				Tokens:   tokens,
				Voices:   voices,
				Analyzer: voiceAnalyzer,
				Notifier: notifier,
				Logger:   logger,
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			go runSweeper(ctx, engine, notifier, cfg.SweepInterval(), logger)

			if err := srv.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("serve api: %w", err)
			}
			logger.Info("songforge shutting down")
			return nil
		},
	}
}

// runSweeper abandons idle sessions on a fixed interval until the
// context is cancelled.
func runSweeper(ctx context.Context, engine *session.Engine, notifier notifications.Service, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := engine.SweepExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", logging.Error(err))
				continue
			}
			if len(swept) == 0 {
				continue
			}
			if err := notifier.NotifySessionsExpired(ctx, len(swept)); err != nil {
				logger.Warn("expiry notification failed", logging.Error(err))
			}
		}
	}
}
