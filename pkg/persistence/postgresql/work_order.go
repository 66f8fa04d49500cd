package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
)

const operationSelect = `
	SELECT
		id
	  , work_order_id
	  , op_index
	  , machine_id
	  , name
	  , start_time
	  , end_time
	FROM operations`

type rowScanner interface {
	Scan(dest ...any) error
}

// WorkOrderRepository handles work order related database operations.
type WorkOrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkOrderRepository creates a new work order repository.
func NewWorkOrderRepository(db *sql.DB, logger *slog.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{db: db, logger: logger}
}

// GetAll returns all work orders with their operations. It reads through q so a snapshot can
// run it inside its own transaction.
func (r *WorkOrderRepository) GetAll(ctx context.Context, q queryer) ([]*models.WorkOrder, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, product, qty FROM work_orders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query work orders: %w", err)
	}

	defer r.closeRows(ctx, rows)

	workOrders := make([]*models.WorkOrder, 0)
	byID := make(map[string]*models.WorkOrder)

	for rows.Next() {
		workOrder := &models.WorkOrder{Operations: make([]models.Operation, 0)}

		if err := rows.Scan(&workOrder.ID, &workOrder.Product, &workOrder.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}

		workOrders = append(workOrders, workOrder)
		byID[workOrder.ID] = workOrder
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work orders: %w", err)
	}

	ops, err := r.queryOperations(ctx, q, operationSelect+" ORDER BY work_order_id, op_index")
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		if workOrder, ok := byID[op.WorkOrderID]; ok {
			workOrder.Operations = append(workOrder.Operations, *op)
		}
	}

	return workOrders, nil
}

// GetByID returns nil, nil when the work order does not exist.
func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	workOrder := &models.WorkOrder{}

	err := r.db.QueryRowContext(ctx, "SELECT id, product, qty FROM work_orders WHERE id = $1", id).
		Scan(&workOrder.ID, &workOrder.Product, &workOrder.Qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan work order: %w", err)
	}

	ops, err := r.queryOperations(ctx, r.db, operationSelect+" WHERE work_order_id = $1 ORDER BY op_index", id)
	if err != nil {
		return nil, err
	}

	workOrder.Operations = make([]models.Operation, 0, len(ops))
	for _, op := range ops {
		workOrder.Operations = append(workOrder.Operations, *op)
	}

	return workOrder, nil
}

// Save upserts the work order and replaces its operations. Every machine the work order touched
// before or after the save gets its version bumped.
func (r *WorkOrderRepository) Save(ctx context.Context, workOrder *models.WorkOrder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	previous, err := r.machinesOf(ctx, tx, workOrder.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_orders (id, product, qty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			product = EXCLUDED.product,
			qty = EXCLUDED.qty,
			updated_at = EXCLUDED.updated_at
	`, workOrder.ID, workOrder.Product, workOrder.Qty, now)
	if err != nil {
		return fmt.Errorf("failed to save work order base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM operations WHERE work_order_id = $1", workOrder.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing operations: %w", err)
	}

	machines := previous

	for _, op := range workOrder.Operations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO operations (id, work_order_id, op_index, machine_id, name, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, op.ID, workOrder.ID, op.Index, op.MachineID, op.Name, op.Start.UTC(), op.End.UTC())
		if err != nil {
			return fmt.Errorf("failed to save operation %s: %w", op.ID, err)
		}

		machines = append(machines, op.MachineID)
	}

	if len(machines) > 0 {
		err = bumpVersions(ctx, tx, machines)
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes the work order, its operations cascade.
func (r *WorkOrderRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	machines, err := r.machinesOf(ctx, tx, id)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM work_orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete work order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = persistence.NewWorkOrderError("DeleteWorkOrder", id, persistence.ErrWorkOrderNotFound)

		return err
	}

	if len(machines) > 0 {
		err = bumpVersions(ctx, tx, machines)
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkOrderRepository) OperationByID(ctx context.Context, id string) (*models.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, operationSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewOperationError("GetByID", id, persistence.ErrOperationNotFound)
		}

		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	return op, nil
}

func (r *WorkOrderRepository) OperationsByMachine(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error) {
	query := operationSelect + `
		WHERE machine_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR end_time <= $3)
		ORDER BY start_time, id`

	return r.queryOperations(ctx, r.db, query, machineID, from, to)
}

func (r *WorkOrderRepository) queryOperations(ctx context.Context, q queryer, query string, args ...any) ([]*models.Operation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}

	defer r.closeRows(ctx, rows)

	ops := make([]*models.Operation, 0)

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

func (r *WorkOrderRepository) machinesOf(ctx context.Context, tx *sql.Tx, workOrderID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT machine_id FROM operations WHERE work_order_id = $1", workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query work order machines: %w", err)
	}

	defer r.closeRows(ctx, rows)

	machines := make([]string, 0)

	for rows.Next() {
		var machine string
		if err := rows.Scan(&machine); err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}

		machines = append(machines, machine)
	}

	return machines, rows.Err()
}

func (r *WorkOrderRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanOperation(row rowScanner) (*models.Operation, error) {
	var op models.Operation

	err := row.Scan(&op.ID, &op.WorkOrderID, &op.Index, &op.MachineID, &op.Name, &op.Start, &op.End)
	if err != nil {
		return nil, err
	}

	op.Start = op.Start.UTC()
	op.End = op.End.UTC()

	return &op, nil
}
