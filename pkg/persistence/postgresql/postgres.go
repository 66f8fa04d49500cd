// Package postgresql provides PostgreSQL persistence implementation for work orders and machine schedules.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workOrderRepo *WorkOrderRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize components
	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	workOrderRepo := NewWorkOrderRepository(database, logger)

	postgres := &Persistence{
		db:            database,
		logger:        logger,
		workOrderRepo: workOrderRepo,
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// WorkOrders returns all work orders from the database.
func (p *Persistence) WorkOrders(ctx context.Context) ([]*models.WorkOrder, error) {
	return p.workOrderRepo.GetAll(ctx, p.db)
}

// WorkOrderByID returns a work order by its ID.
func (p *Persistence) WorkOrderByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	workOrder, err := p.workOrderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workOrder == nil {
		return nil, persistence.NewWorkOrderError("GetByID", id, persistence.ErrWorkOrderNotFound)
	}

	return workOrder, nil
}

// SaveWorkOrder saves a work order to the database.
func (p *Persistence) SaveWorkOrder(ctx context.Context, workOrder *models.WorkOrder) error {
	return p.workOrderRepo.Save(ctx, workOrder)
}

// DeleteWorkOrder removes a work order and its operations.
func (p *Persistence) DeleteWorkOrder(ctx context.Context, id string) error {
	return p.workOrderRepo.Delete(ctx, id)
}

// OperationByID returns a single operation.
func (p *Persistence) OperationByID(ctx context.Context, id string) (*models.Operation, error) {
	return p.workOrderRepo.OperationByID(ctx, id)
}

// OperationsByMachine returns a machine's operations, optionally bounded by [from, to].
func (p *Persistence) OperationsByMachine(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error) {
	return p.workOrderRepo.OperationsByMachine(ctx, machineID, from, to)
}
