package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/urfave/cli/v2"

	"printrelay/internal/api"
	"printrelay/internal/blob"
	"printrelay/internal/cleanup"
	"printrelay/internal/config"
	"printrelay/internal/db"
	"printrelay/internal/logging"
	"printrelay/internal/notify"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the ingress server: accept print jobs and publish them for workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				EnvVars: []string{"PRINTRELAY_PORT"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if v := c.Int("port"); v != 0 {
				cfg.Server.Port = v
			}
			if v := c.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := logging.New(cfg.Logging)

			if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			payloads, err := blob.NewMinioStore(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to init payload storage: %w", err)
			}

			var publisher notify.Publisher = notify.NoopPublisher{}
			if cfg.Redis.Addr != "" {
				rn, err := notify.NewRedisNotifier(ctx, cfg.Redis, 0, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer rn.Close()
				publisher = rn
			} else {
				logger.Warn("no redis configured, workers will rely on polling")
			}

			router, err := api.NewRouter(cfg, payloads, publisher, logger)
			if err != nil {
				return fmt.Errorf("failed to build router: %w", err)
			}

			sweeper := cleanup.NewSweeper(db.Jobs, payloads, cleanup.Config{
				RetentionDays: cfg.Cleanup.RetentionDays,
				BatchSize:     cfg.Cleanup.BatchSize,
				Interval:      cfg.Cleanup.Interval,
			}, clock.C, logger)
			sweeper.Start()
			defer sweeper.Stop()

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "port", cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
