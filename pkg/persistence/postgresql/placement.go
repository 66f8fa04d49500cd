package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/lib/pq"
)

// Snapshot reads all work orders and machine versions inside one REPEATABLE READ transaction.
func (p *Persistence) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	workOrders, err := p.workOrderRepo.GetAll(ctx, tx)
	if err != nil {
		return nil, err
	}

	versions, err := loadVersions(ctx, tx, nil)
	if err != nil {
		return nil, err
	}

	var takenAt time.Time

	err = tx.QueryRowContext(ctx, "SELECT NOW()").Scan(&takenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot time: %w", err)
	}

	values := make([]models.WorkOrder, 0, len(workOrders))
	for _, wo := range workOrders {
		values = append(values, *wo)
	}

	return models.NewSnapshot(values, versions, takenAt.UTC()), nil
}

// CommitPlacement locks the expected machine version rows, compares them and applies the move.
func (p *Persistence) CommitPlacement(ctx context.Context, placement models.Placement, expected map[string]int64) (*models.Operation, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	op, err := scanOperation(tx.QueryRowContext(ctx, operationSelect+" WHERE id = $1 FOR UPDATE", placement.OperationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.NewOperationError("CommitPlacement", placement.OperationID, persistence.ErrOperationNotFound)

			return nil, err
		}

		return nil, fmt.Errorf("failed to load operation %s: %w", placement.OperationID, err)
	}

	machines := make([]string, 0, len(expected))
	for machine := range expected {
		machines = append(machines, machine)
	}

	slices.Sort(machines)

	err = ensureVersions(ctx, tx, machines)
	if err != nil {
		return nil, err
	}

	current, err := loadVersions(ctx, tx, machines)
	if err != nil {
		return nil, err
	}

	for _, machine := range machines {
		if current[machine] != expected[machine] {
			err = persistence.NewStaleSnapshotError(placement.OperationID, machine)

			return nil, err
		}
	}

	moved := placement.Apply(*op)

	_, err = tx.ExecContext(ctx,
		"UPDATE operations SET machine_id = $2, start_time = $3, end_time = $4 WHERE id = $1",
		moved.ID, moved.MachineID, moved.Start, moved.End,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update operation %s: %w", moved.ID, err)
	}

	err = bumpVersions(ctx, tx, []string{op.MachineID, moved.MachineID})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &moved, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadVersions reads machine versions, all of them when machines is nil.
func loadVersions(ctx context.Context, q queryer, machines []string) (map[string]int64, error) {
	query := "SELECT machine_id, version FROM machine_versions"
	args := []any{}

	if machines != nil {
		query += " WHERE machine_id = ANY($1) ORDER BY machine_id FOR UPDATE"
		args = append(args, pq.Array(machines))
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query machine versions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	versions := make(map[string]int64)

	for rows.Next() {
		var (
			machine string
			version int64
		)

		if err := rows.Scan(&machine, &version); err != nil {
			return nil, fmt.Errorf("failed to scan machine version: %w", err)
		}

		versions[machine] = version
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating machine versions: %w", err)
	}

	return versions, nil
}

// ensureVersions creates missing version rows so FOR UPDATE has something to lock.
func ensureVersions(ctx context.Context, tx *sql.Tx, machines []string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO machine_versions (machine_id, version)
		SELECT unnest($1::varchar[]), 0
		ON CONFLICT (machine_id) DO NOTHING
	`, pq.Array(machines))
	if err != nil {
		return fmt.Errorf("failed to ensure machine versions: %w", err)
	}

	return nil
}

func bumpVersions(ctx context.Context, tx *sql.Tx, machines []string) error {
	machines = slices.Compact(slices.Sorted(slices.Values(machines)))

	_, err := tx.ExecContext(ctx, `
		INSERT INTO machine_versions (machine_id, version)
		SELECT unnest($1::varchar[]), 1
		ON CONFLICT (machine_id) DO UPDATE SET version = machine_versions.version + 1
	`, pq.Array(machines))
	if err != nil {
		return fmt.Errorf("failed to bump machine versions: %w", err)
	}

	return nil
}
