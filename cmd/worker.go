package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"printrelay/internal/blob"
	"printrelay/internal/config"
	"printrelay/internal/core"
	"printrelay/internal/db"
	"printrelay/internal/logging"
	"printrelay/internal/notify"
	"printrelay/internal/webhook"
)

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:      "worker",
		Usage:     "Run a print worker for one client identity",
		ArgsUsage: "<clientId>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "log",
				Usage: "Log jobs instead of printing them",
			},
		},
		Action: func(c *cli.Context) error {
			clientID := c.Args().First()
			if clientID == "" {
				return fmt.Errorf("clientId argument is required")
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
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

			var notifier notify.Notifier
			if cfg.Redis.Addr != "" {
				rn, err := notify.NewRedisNotifier(ctx, cfg.Redis, 0, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer rn.Close()
				notifier = rn
			} else {
				logger.Warn("no redis configured, falling back to polling",
					"interval", cfg.Worker.PollInterval)
				notifier = &notify.PollNotifier{Interval: cfg.Worker.PollInterval}
			}

			drivers := core.ParseDriverTable(os.Environ())

			spooler := core.NewCUPSSpooler(cfg.Worker.LpPath, cfg.Worker.LpadminPath, logger)
			pipeline := core.NewPipeline(spooler, drivers, logger)
			broker := core.NewBroker(db.Jobs, payloads)

			worker := core.NewWorker(clientID, broker, db.Jobs, pipeline, notifier, c.Bool("log"), logger)

			sender := webhook.NewSender(cfg.Webhooks, logger)
			if sender.Enabled() {
				sender.Start()
				defer sender.Stop()
				worker.SetEventSink(sender)
			}

			worker.Run(ctx)
			return nil
		},
	}
}
