package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/scheduling"
)

type WorkOrders struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewWorkOrders creates a new work order service.
func NewWorkOrders(persistence persistence.Persistence, logger *slog.Logger) *WorkOrders {
	return &WorkOrders{
		persistence: persistence,
		logger:      logger.With("module", "work_orders"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *WorkOrders) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (w *WorkOrders) List(ctx context.Context) ([]*models.WorkOrder, error) {
	workOrders, err := w.persistence.WorkOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}

	return workOrders, nil
}

func (w *WorkOrders) FetchByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	if id == "" {
		return nil, NewValidationError("FetchByID", "MISSING_ID", "work order id is required", ErrInvalidRequest)
	}

	return w.persistence.WorkOrderByID(ctx, id)
}

// WorkOrderValidation reports the stored schedule's precedence problems for one work order.
type WorkOrderValidation struct {
	WorkOrderID string             `json:"work_order_id"`
	Valid       bool               `json:"valid"`
	Violations  []models.Violation `json:"violations"`
}

func (w *WorkOrders) Validate(ctx context.Context, id string) (*WorkOrderValidation, error) {
	workOrder, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	violations := scheduling.CheckWorkOrder(*workOrder)

	return &WorkOrderValidation{
		WorkOrderID: workOrder.ID,
		Valid:       len(violations) == 0,
		Violations:  violations,
	}, nil
}

// Import checks every work order before saving any of them.
func (w *WorkOrders) Import(ctx context.Context, workOrders []models.WorkOrder) (int, error) {
	for _, wo := range workOrders {
		if err := wo.Validate(); err != nil {
			return 0, NewValidationError("Import", "INVALID_WORK_ORDER", err.Error(), err)
		}
	}

	for i := range workOrders {
		wo := workOrders[i].Clone()

		for j := range wo.Operations {
			wo.Operations[j].Start = wo.Operations[j].Start.UTC()
			wo.Operations[j].End = wo.Operations[j].End.UTC()
		}

		if err := w.persistence.SaveWorkOrder(ctx, &wo); err != nil {
			return i, fmt.Errorf("failed to save work order %s: %w", wo.ID, err)
		}

		if violations := scheduling.CheckWorkOrder(wo); len(violations) > 0 {
			w.logger.WarnContext(ctx, "imported work order has precedence violations",
				"work_order_id", wo.ID, "violations", len(violations))
		}
	}

	return len(workOrders), nil
}

func (w *WorkOrders) Delete(ctx context.Context, id string) error {
	return w.persistence.DeleteWorkOrder(ctx, id)
}
