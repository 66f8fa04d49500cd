package scheduling

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/machineline/pkg/models"
)

// CheckWorkOrder reports every pair of consecutive operations that runs out of index order.
func CheckWorkOrder(wo models.WorkOrder) []models.Violation {
	ops := wo.SortedOperations()
	violations := make([]models.Violation, 0)

	for i := 0; i+1 < len(ops); i++ {
		current, next := ops[i], ops[i+1]

		if next.Start.Before(current.End) {
			violations = append(violations, models.Violation{
				Rule: models.RulePrecedenceViolation,
				Message: fmt.Sprintf("Operation %d (%s) starts at %s before operation %d (%s) ends at %s",
					next.Index, next.ID, next.Start.Format(timeLayout),
					current.Index, current.ID, current.End.Format(timeLayout)),
				ConflictingOperationID: next.ID,
				Direction:              models.DirectionAfter,
			})
		}
	}

	return violations
}

// CheckMachine reports every pair of operations that double-books the machine.
func CheckMachine(machineID string, ops []models.Operation) []models.Violation {
	lane := make([]models.Operation, 0, len(ops))

	for _, op := range ops {
		if op.MachineID == machineID {
			lane = append(lane, op)
		}
	}

	slices.SortFunc(lane, func(a, b models.Operation) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	violations := make([]models.Violation, 0)

	for i, a := range lane {
		for _, b := range lane[i+1:] {
			if !b.Start.Before(a.End) {
				break
			}

			if a.Overlaps(b.Start, b.End) {
				violations = append(violations, models.Violation{
					Rule: models.RuleMachineOverlap,
					Message: fmt.Sprintf("Operation %s overlaps with operation %s on machine %s",
						a.DisplayName(), b.DisplayName(), machineID),
					ConflictingOperationID: b.ID,
				})
			}
		}
	}

	return violations
}
