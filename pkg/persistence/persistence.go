// Package persistence provides the storage abstraction the scheduler commits placements through.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/machineline/pkg/models"
)

type Persistence interface {
	WorkOrders(ctx context.Context) ([]*models.WorkOrder, error)
	WorkOrderByID(ctx context.Context, id string) (*models.WorkOrder, error)
	SaveWorkOrder(ctx context.Context, workOrder *models.WorkOrder) error
	DeleteWorkOrder(ctx context.Context, id string) error

	OperationByID(ctx context.Context, id string) (*models.Operation, error)
	// OperationsByMachine returns the machine's operations sorted by start. A nil bound is open.
	OperationsByMachine(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error)

	// Snapshot reads every work order and the machine versions in one consistent read.
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	// CommitPlacement applies the placement atomically if every machine in expected is still at
	// the given version, and bumps the versions of the machines the operation leaves and joins.
	// It returns ErrStaleSnapshot otherwise.
	CommitPlacement(ctx context.Context, placement models.Placement, expected map[string]int64) (*models.Operation, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
