// Package main provides the machineline API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/machineline/pkg/config"
	"github.com/dukex/machineline/pkg/eventbus"
	"github.com/dukex/machineline/pkg/locking"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/services"
	"github.com/dukex/machineline/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	locker      locking.Locker
	eventBus    eventbus.EventBus
	config      *config.Config
	validate    *validator.Validate
}

// NewAPI wires the HTTP surface. eventBus may be nil, in which case no events are published.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	locker locking.Locker,
	eventBus eventbus.EventBus,
	cfg *config.Config,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		locker:      locker,
		eventBus:    eventBus,
		config:      cfg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	workOrderService := services.NewWorkOrders(a.persistence, a.logger)
	schedulingService := services.NewScheduling(a.persistence, a.locker, publisher, a.logger, a.config.Scheduling)
	timelineService := services.NewTimeline(a.persistence, a.config.Geometry)

	handlers := web.NewAPIHandlers(workOrderService, schedulingService, timelineService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := workOrderService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Machineline API")
	})

	w := app.Group("/work-orders")
	w.Get("/", handlers.GetWorkOrders)
	w.Post("/import", handlers.ImportWorkOrders)
	w.Put("/operations/:operationId", handlers.UpdateOperation)
	w.Get("/:id", handlers.GetWorkOrder)
	w.Get("/:id/validate", handlers.ValidateWorkOrder)
	w.Delete("/:id", handlers.DeleteWorkOrder)

	app.Post("/reschedule", handlers.Reschedule)
	app.Post("/reschedule/preview", handlers.PreviewReschedule)

	app.Get("/timeline", handlers.GetTimeline)
	app.Post("/timeline/drop", handlers.Drop)

	app.Get("/machines/:machineId/schedule", handlers.GetMachineSchedule)

	app.Get("/health", handlers.HealthCheck)

	app.Use(handlers.NotFound)

	return app
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
