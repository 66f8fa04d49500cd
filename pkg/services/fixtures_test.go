package services

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/persistence/file"
	"github.com/stretchr/testify/require"
)

var (
	day    = time.Date(2030, 8, 20, 0, 0, 0, 0, time.UTC)
	now    = at(6, 0)
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func op(id, workOrderID string, index int, machineID string, start, end time.Time) models.Operation {
	return models.Operation{
		ID:          id,
		WorkOrderID: workOrderID,
		Index:       index,
		MachineID:   machineID,
		Name:        "Step " + id,
		Start:       start,
		End:         end,
	}
}

// fixtureWorkOrders:
//
//	WO-1001: op-1 M1 [08:00,09:00), op-2 M2 [09:00,10:00)
//	WO-1002: op-3 M2 [14:00,15:00)
//	WO-1003: op-x M1 [08:00,08:45)
func fixtureWorkOrders() []models.WorkOrder {
	return []models.WorkOrder{
		{ID: "WO-1001", Product: "Bracket", Qty: 10, Operations: []models.Operation{
			op("op-1", "WO-1001", 1, "M1", at(8, 0), at(9, 0)),
			op("op-2", "WO-1001", 2, "M2", at(9, 0), at(10, 0)),
		}},
		{ID: "WO-1002", Product: "Hinge", Qty: 4, Operations: []models.Operation{
			op("op-3", "WO-1002", 1, "M2", at(14, 0), at(15, 0)),
		}},
		{ID: "WO-1003", Product: "Plate", Qty: 1, Operations: []models.Operation{
			op("op-x", "WO-1003", 1, "M1", at(8, 0), at(8, 45)),
		}},
	}
}

func seededPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	for _, wo := range fixtureWorkOrders() {
		require.NoError(t, p.SaveWorkOrder(t.Context(), &wo))
	}

	return p
}
