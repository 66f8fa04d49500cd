// Package file provides file-based persistence for work orders and machine versions.
package file

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// One RWMutex guards the whole store so a snapshot is a single consistent read and a commit a
// single atomic write within the process.
type Persistence struct {
	root          string
	mu            sync.RWMutex
	workOrderRepo *WorkOrderRepository
	versionRepo   *VersionRepository
	now           func() time.Time
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workOrderRepo: NewWorkOrderRepository(cleanRoot),
		versionRepo:   NewVersionRepository(cleanRoot),
		now:           time.Now,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkOrders(ctx context.Context) ([]*models.WorkOrder, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.workOrderRepo.GetAll(ctx)
}

func (fp *Persistence) WorkOrderByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	workOrder, err := fp.workOrderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workOrder == nil {
		return nil, persistence.NewWorkOrderError("GetByID", id, persistence.ErrWorkOrderNotFound)
	}

	return workOrder, nil
}

// SaveWorkOrder stores the work order and bumps the version of every machine it touches, before
// and after the save, so in-flight reschedules on those machines see a stale snapshot.
func (fp *Persistence) SaveWorkOrder(ctx context.Context, workOrder *models.WorkOrder) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	previous, err := fp.workOrderRepo.GetByID(ctx, workOrder.ID)
	if err != nil {
		return err
	}

	if err := fp.workOrderRepo.Save(ctx, workOrder); err != nil {
		return err
	}

	return fp.bumpMachines(machinesOf(previous, workOrder))
}

func (fp *Persistence) DeleteWorkOrder(ctx context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	previous, err := fp.workOrderRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if previous == nil {
		return persistence.NewWorkOrderError("DeleteWorkOrder", id, persistence.ErrWorkOrderNotFound)
	}

	if err := fp.workOrderRepo.Delete(ctx, id); err != nil {
		return err
	}

	return fp.bumpMachines(machinesOf(previous))
}

func (fp *Persistence) OperationByID(ctx context.Context, id string) (*models.Operation, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	_, op, err := fp.findOperation(ctx, id)
	if err != nil {
		return nil, err
	}

	return op, nil
}

func (fp *Persistence) OperationsByMachine(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	workOrders, err := fp.workOrderRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	ops := make([]*models.Operation, 0)

	for _, wo := range workOrders {
		for i := range wo.Operations {
			op := wo.Operations[i]
			if op.MachineID != machineID {
				continue
			}

			if from != nil && op.Start.Before(*from) {
				continue
			}

			if to != nil && op.End.After(*to) {
				continue
			}

			ops = append(ops, &op)
		}
	}

	slices.SortFunc(ops, func(a, b *models.Operation) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return ops, nil
}

func (fp *Persistence) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	workOrders, err := fp.workOrderRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := fp.versionRepo.Load()
	if err != nil {
		return nil, err
	}

	values := make([]models.WorkOrder, 0, len(workOrders))
	for _, wo := range workOrders {
		values = append(values, *wo)
	}

	return models.NewSnapshot(values, versions, fp.now().UTC()), nil
}

func (fp *Persistence) CommitPlacement(ctx context.Context, placement models.Placement, expected map[string]int64) (*models.Operation, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workOrder, op, err := fp.findOperation(ctx, placement.OperationID)
	if err != nil {
		return nil, err
	}

	versions, err := fp.versionRepo.Load()
	if err != nil {
		return nil, err
	}

	for machine, version := range expected {
		if versions[machine] != version {
			return nil, persistence.NewStaleSnapshotError(placement.OperationID, machine)
		}
	}

	moved := placement.Apply(*op)

	for i := range workOrder.Operations {
		if workOrder.Operations[i].ID == moved.ID {
			workOrder.Operations[i] = moved
		}
	}

	previous := maps.Clone(versions)

	versions[op.MachineID]++
	if placement.MachineID != op.MachineID {
		versions[placement.MachineID]++
	}

	// versions are written before the move so a stored move always carries its bump
	if err := fp.versionRepo.Save(versions); err != nil {
		return nil, err
	}

	if err := fp.workOrderRepo.Save(ctx, workOrder); err != nil {
		err = fmt.Errorf("failed to commit placement of operation %s: %w", moved.ID, err)

		if rollbackErr := fp.versionRepo.Save(previous); rollbackErr != nil {
			return nil, errors.Join(err, rollbackErr)
		}

		return nil, err
	}

	return &moved, nil
}

func (fp *Persistence) findOperation(ctx context.Context, id string) (*models.WorkOrder, *models.Operation, error) {
	workOrders, err := fp.workOrderRepo.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, wo := range workOrders {
		for i := range wo.Operations {
			if wo.Operations[i].ID == id {
				op := wo.Operations[i]

				return wo, &op, nil
			}
		}
	}

	return nil, nil, persistence.NewOperationError("GetByID", id, persistence.ErrOperationNotFound)
}

func (fp *Persistence) bumpMachines(machines []string) error {
	if len(machines) == 0 {
		return nil
	}

	versions, err := fp.versionRepo.Load()
	if err != nil {
		return err
	}

	for _, machine := range machines {
		versions[machine]++
	}

	return fp.versionRepo.Save(versions)
}

func machinesOf(workOrders ...*models.WorkOrder) []string {
	seen := make(map[string]struct{})
	machines := make([]string, 0)

	for _, wo := range workOrders {
		if wo == nil {
			continue
		}

		for _, op := range wo.Operations {
			if _, ok := seen[op.MachineID]; !ok {
				seen[op.MachineID] = struct{}{}
				machines = append(machines, op.MachineID)
			}
		}
	}

	return machines
}
