//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/dukex/machineline/pkg/layout"
	"github.com/dukex/machineline/pkg/locking/memory"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence/postgresql"
	"github.com/dukex/machineline/pkg/services"
	"github.com/dukex/machineline/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_machineline",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_machineline?sslmode=disable", host, port.Port())
}

func setupIntegrationApp(t *testing.T, dbURL string) *fiber.App {
	t.Helper()

	p, err := postgresql.NewPersistence(context.Background(), slog.Default(), dbURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	for _, wo := range fixtureWorkOrders() {
		require.NoError(t, p.SaveWorkOrder(context.Background(), &wo))
	}

	handlers := web.NewAPIHandlers(
		services.NewWorkOrders(p, slog.Default()),
		services.NewScheduling(p, memory.NewLocker(), nil, slog.Default(), services.SchedulingConfig{}),
		services.NewTimeline(p, layout.DefaultGeometry()),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	app.Post("/reschedule", handlers.Reschedule)
	app.Get("/machines/:machineId/schedule", handlers.GetMachineSchedule)
	app.Get("/work-orders/:id/validate", handlers.ValidateWorkOrder)

	return app
}

func TestReschedule_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	app := setupIntegrationApp(t, setupTestDB(t))

	t.Run("competing moves into one slot", func(t *testing.T) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted []string
			rejected []string
		)

		for _, id := range []string{"op-3", "op-b"} {
			wg.Add(1)

			go func() {
				defer wg.Done()

				status, body := request(t, app, http.MethodPost, "/reschedule", web.RescheduleRequest{
					OperationID:          id,
					TargetMachineID:      "M1",
					TargetStartTimestamp: timePtr(at(18, 0)),
				})
				assert.Equal(t, http.StatusOK, status)

				var result services.RescheduleResult
				assert.NoError(t, json.Unmarshal(body, &result))

				mu.Lock()
				defer mu.Unlock()

				if result.Accepted {
					accepted = append(accepted, id)
				} else {
					rejected = append(rejected, id)
				}
			}()
		}

		wg.Wait()

		require.Len(t, accepted, 1)
		require.Len(t, rejected, 1)
	})

	t.Run("machine schedule reflects the winner", func(t *testing.T) {
		status, body := request(t, app, http.MethodGet, "/machines/M1/schedule?start_date=2040-08-20T18:00:00Z", nil)
		require.Equal(t, http.StatusOK, status)

		var result struct {
			Operations []models.Operation `json:"operations"`
		}
		require.NoError(t, json.Unmarshal(body, &result))
		require.Len(t, result.Operations, 1)
		assert.True(t, result.Operations[0].Start.Equal(at(18, 0)))
	})

	t.Run("stored precedence problems are reported", func(t *testing.T) {
		status, body := request(t, app, http.MethodGet, "/work-orders/WO-1001/validate", nil)
		require.Equal(t, http.StatusOK, status)

		var result services.WorkOrderValidation
		require.NoError(t, json.Unmarshal(body, &result))
		assert.True(t, result.Valid)
	})
}
