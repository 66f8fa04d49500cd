// Package main runs the schedule auditor as its own service next to one or more API replicas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/machineline/pkg/audit"
	"github.com/dukex/machineline/pkg/cmd"
	"github.com/dukex/machineline/pkg/config"
	"github.com/dukex/machineline/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "machineline-auditor",
		Usage:                 "Periodically check stored schedules for overlaps and out-of-sequence work orders",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewCheckCommand(),
		},
		Flags: flags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			auditor, cleanup, err := setup(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := auditor.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			return auditor.Stop(context.WithoutCancel(ctx))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// NewCheckCommand runs a single audit and exits non-zero when it finds problems.
func NewCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Run one audit and report the result",
		Flags: flags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			auditor, cleanup, err := setup(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := auditor.Run(ctx)
			if err != nil {
				return err
			}

			if !report.Clean() {
				return cli.Exit(fmt.Sprintf("%d inconsistencies found", len(report.Inconsistent)), 1)
			}

			return nil
		},
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka, mqtt)",
			Value:   "kafka",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "config-file",
			Usage:   "Path to the YAML configuration file",
			Sources: cli.EnvVars("CONFIG_FILE"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// setup builds an auditor subscribed to committed reschedules. cleanup releases everything setup
// opened, in reverse order.
func setup(ctx context.Context, command *cli.Command) (*audit.Auditor, func(), error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("machineline-auditor")

	cfg, err := config.Load(command.String("config-file"))
	if err != nil {
		return nil, nil, err
	}

	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	shutdownTracing, err := cmd.SetupTracing(ctx, command.Bool("otel-enabled"), "machineline-auditor", logger)
	if err != nil {
		return nil, nil, err
	}

	closers = append(closers, func() { shutdownTracing(context.WithoutCancel(ctx)) })

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	closers = append(closers, func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	})

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	closers = append(closers, func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	})

	auditor := audit.NewAuditor(persistence, eventBus, logger, cfg.Audit.Schedule)

	if err := auditor.Register(eventBus); err != nil {
		cleanup()

		return nil, nil, fmt.Errorf("failed to register auditor: %w", err)
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		cleanup()

		return nil, nil, fmt.Errorf("failed to subscribe to schedule events: %w", err)
	}

	logger.InfoContext(ctx, "Machineline auditor ready", "schedule", cfg.Audit.Schedule)

	return auditor, cleanup, nil
}
