package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"operations", "machine_versions", "work_orders", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("machineline_test"),
			postgres.WithUsername("machineline"),
			postgres.WithPassword("machineline"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

var day = time.Date(2030, 8, 20, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func sampleWorkOrder() *models.WorkOrder {
	return &models.WorkOrder{
		ID:      "WO-1001",
		Product: "Bracket",
		Qty:     10,
		Operations: []models.Operation{
			{ID: "op-1", WorkOrderID: "WO-1001", Index: 1, MachineID: "M1", Name: "Cut", Start: at(8, 0), End: at(9, 0)},
			{ID: "op-2", WorkOrderID: "WO-1001", Index: 2, MachineID: "M2", Name: "Bend", Start: at(9, 0), End: at(10, 0)},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	// Verify tables were created
	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'operations')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "operations table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'schema_migrations')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "schema_migrations table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_SaveAndRetrieveWorkOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.SaveWorkOrder(ctx, sampleWorkOrder())
	require.NoError(t, err)

	workOrder, err := p.WorkOrderByID(ctx, "WO-1001")
	require.NoError(t, err)
	assert.Equal(t, "Bracket", workOrder.Product)
	assert.Equal(t, 10, workOrder.Qty)
	require.Len(t, workOrder.Operations, 2)
	assert.Equal(t, "op-1", workOrder.Operations[0].ID)
	assert.True(t, workOrder.Operations[0].Start.Equal(at(8, 0)))
	assert.True(t, workOrder.Operations[1].End.Equal(at(10, 0)))

	all, err := p.WorkOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = p.WorkOrderByID(ctx, "WO-404")
	assert.True(t, persistence.IsWorkOrderNotFound(err))
}

func TestPersistence_SaveWorkOrder_ReplacesOperations(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workOrder := sampleWorkOrder()
	require.NoError(t, p.SaveWorkOrder(ctx, workOrder))

	workOrder.Operations = workOrder.Operations[:1]
	require.NoError(t, p.SaveWorkOrder(ctx, workOrder))

	_, err := p.OperationByID(ctx, "op-2")
	assert.True(t, persistence.IsOperationNotFound(err))

	snapshot, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snapshot.MachineVersion("M1"))
	assert.Equal(t, int64(2), snapshot.MachineVersion("M2"))
}

func TestPersistence_DeleteWorkOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.SaveWorkOrder(ctx, sampleWorkOrder()))
	require.NoError(t, p.DeleteWorkOrder(ctx, "WO-1001"))

	_, err := p.OperationByID(ctx, "op-1")
	assert.True(t, persistence.IsOperationNotFound(err))

	err = p.DeleteWorkOrder(ctx, "WO-1001")
	assert.True(t, persistence.IsWorkOrderNotFound(err))
}

func TestPersistence_OperationsByMachine(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.SaveWorkOrder(ctx, sampleWorkOrder()))
	require.NoError(t, p.SaveWorkOrder(ctx, &models.WorkOrder{
		ID:      "WO-1002",
		Product: "Hinge",
		Qty:     4,
		Operations: []models.Operation{
			{ID: "op-3", WorkOrderID: "WO-1002", Index: 1, MachineID: "M1", Name: "Cut", Start: at(6, 0), End: at(7, 0)},
		},
	}))

	ops, err := p.OperationsByMachine(ctx, "M1", nil, nil)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "op-3", ops[0].ID)
	assert.Equal(t, "op-1", ops[1].ID)

	from := at(7, 30)
	ops, err = p.OperationsByMachine(ctx, "M1", &from, nil)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-1", ops[0].ID)
}

func TestPersistence_CommitPlacement(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.SaveWorkOrder(ctx, sampleWorkOrder()))

	snapshot, err := p.Snapshot(ctx)
	require.NoError(t, err)

	expected := map[string]int64{"M1": snapshot.MachineVersion("M1"), "M3": snapshot.MachineVersion("M3")}
	placement := models.Placement{OperationID: "op-1", MachineID: "M3", Start: at(7, 0), End: at(8, 0)}

	moved, err := p.CommitPlacement(ctx, placement, expected)
	require.NoError(t, err)
	assert.Equal(t, "M3", moved.MachineID)

	stored, err := p.OperationByID(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "M3", stored.MachineID)
	assert.True(t, stored.Start.Equal(at(7, 0)))

	// The same expectation is now stale.
	_, err = p.CommitPlacement(ctx, placement, expected)
	assert.True(t, persistence.IsStaleSnapshot(err))
}

func TestPersistence_CommitPlacement_Concurrent(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.SaveWorkOrder(ctx, sampleWorkOrder()))

	snapshot, err := p.Snapshot(ctx)
	require.NoError(t, err)

	expected := map[string]int64{"M1": snapshot.MachineVersion("M1")}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		commits int
	)

	for i := range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			placement := models.Placement{OperationID: "op-1", MachineID: "M1", Start: at(1, i), End: at(2, i)}

			_, err := p.CommitPlacement(ctx, placement, expected)
			if err == nil {
				mu.Lock()
				commits++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, commits)
}
