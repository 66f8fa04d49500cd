package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/dukex/machineline/pkg/models"
)

// WorkOrderRepository handles work order file operations, one JSON document per work order.
type WorkOrderRepository struct {
	root string
}

// NewWorkOrderRepository creates a new work order repository.
func NewWorkOrderRepository(root string) *WorkOrderRepository {
	return &WorkOrderRepository{root: root}
}

// GetAll returns every stored work order sorted by id.
func (wr *WorkOrderRepository) GetAll(ctx context.Context) ([]*models.WorkOrder, error) {
	root := os.DirFS(path.Join(wr.root, "work_orders"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list work order files: %w", err)
	}

	workOrders := make([]*models.WorkOrder, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workOrderID := file[:len(file)-5] // Remove .json extension

		workOrder, err := wr.GetByID(ctx, workOrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load work order %s: %w", workOrderID, err)
		}

		if workOrder != nil {
			workOrders = append(workOrders, workOrder)
		}
	}

	sort.Slice(workOrders, func(i, j int) bool {
		return workOrders[i].ID < workOrders[j].ID
	})

	return workOrders, nil
}

// GetByID retrieves a work order by its ID from the file system. A missing file yields nil, nil.
func (wr *WorkOrderRepository) GetByID(_ context.Context, workOrderID string) (*models.WorkOrder, error) {
	filePath := filepath.Clean(path.Join(wr.root, "work_orders", workOrderID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch work order %s: %w", workOrderID, err)
	}

	var workOrder models.WorkOrder

	err = json.Unmarshal(body, &workOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal work order %s: %w", workOrderID, err)
	}

	return &workOrder, nil
}

// Save saves a work order to the file system.
func (wr *WorkOrderRepository) Save(_ context.Context, workOrder *models.WorkOrder) error {
	dir := path.Join(wr.root, "work_orders")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create work orders directory: %w", err)
	}

	data, err := json.MarshalIndent(workOrder, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal work order %s: %w", workOrder.ID, err)
	}

	return writeFileAtomic(path.Join(dir, workOrder.ID+".json"), data)
}

// Delete removes a work order by its ID.
func (wr *WorkOrderRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(wr.root, "work_orders", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete work order %s: %w", id, err)
	}

	return nil
}

// writeFileAtomic writes to a temporary sibling and renames it over the target.
func writeFileAtomic(target string, data []byte) error {
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}

	return nil
}
