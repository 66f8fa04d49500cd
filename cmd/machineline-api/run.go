package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/machineline/pkg/audit"
	"github.com/dukex/machineline/pkg/cmd"
	"github.com/dukex/machineline/pkg/config"
	"github.com/dukex/machineline/pkg/log"
	"github.com/urfave/cli/v3"
)

func RunAPICommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start api",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			databaseURLFlag(),
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka, mqtt)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "lock-url",
				Usage:   "Lock backend URL (memory or redis://...)",
				Value:   "memory",
				Sources: cli.EnvVars("LOCK_URL"),
			},
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "audit",
				Usage:   "Run the schedule auditor inside the API process",
				Sources: cli.EnvVars("AUDIT_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		}, logFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Machineline API")

			cfg, err := config.Load(command.String("config-file"))
			if err != nil {
				return err
			}

			shutdownTracing, err := cmd.SetupTracing(ctx, command.Bool("otel-enabled"), "machineline-api", logger)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.WithoutCancel(ctx))

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			locker, err := cmd.NewLocker(ctx, logger, command.String("lock-url"), cfg.Lock.TTL)
			if err != nil {
				return err
			}

			defer func() {
				if err := locker.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close locker", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if command.Bool("audit") {
				auditor := audit.NewAuditor(persistence, eventBus, logger, cfg.Audit.Schedule)
				if err := auditor.Register(eventBus); err != nil {
					return fmt.Errorf("failed to register auditor: %w", err)
				}

				if err := eventBus.Subscribe(ctx); err != nil {
					return fmt.Errorf("failed to subscribe to schedule events: %w", err)
				}

				if err := auditor.Start(ctx); err != nil {
					return err
				}

				defer func() {
					if err := auditor.Stop(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to stop auditor", "error", err)
					}
				}()
			}

			api := NewAPI(logger, persistence, locker, eventBus, cfg)

			if err := api.Start(ctx, command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}
}
