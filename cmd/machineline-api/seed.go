package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/machineline/pkg/cmd"
	"github.com/dukex/machineline/pkg/log"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/seed"
	"github.com/dukex/machineline/pkg/services"
	"github.com/urfave/cli/v3"
)

func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load the default work orders, or a JSON import file, into persistence",
		Flags: append([]cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{
				Name:  "file",
				Usage: "JSON file with an array of work orders (defaults to the built-in data set)",
			},
			&cli.BoolFlag{
				Name:  "today",
				Usage: "Move the built-in data set onto the current day",
			},
		}, logFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("seed")

			workOrders, err := loadSeed(command.String("file"), command.Bool("today"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			imported, err := services.NewWorkOrders(persistence, logger).Import(ctx, workOrders)
			if err != nil {
				return fmt.Errorf("seed stopped after %d work orders: %w", imported, err)
			}

			logger.InfoContext(ctx, "Seed data inserted", "work_orders", imported)

			return nil
		},
	}
}

func loadSeed(path string, today bool) ([]models.WorkOrder, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
		}

		return seed.Parse(data)
	}

	workOrders, err := seed.Default()
	if err != nil {
		return nil, err
	}

	if today {
		workOrders = seed.Rebase(workOrders, seed.Day, time.Now())
	}

	return workOrders, nil
}
