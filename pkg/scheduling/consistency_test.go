package scheduling_test

import (
	"testing"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/scheduling"
	"github.com/stretchr/testify/assert"
)

func TestCheckWorkOrder(t *testing.T) {
	t.Parallel()

	consistent := models.WorkOrder{ID: "W1", Product: "Widget", Qty: 1, Operations: []models.Operation{
		operation("OP-2", "W1", 2, "M2", at(10, 0), at(11, 0)),
		operation("OP-1", "W1", 1, "M1", at(9, 0), at(10, 0)),
	}}
	assert.Empty(t, scheduling.CheckWorkOrder(consistent))

	broken := models.WorkOrder{ID: "W1", Product: "Widget", Qty: 1, Operations: []models.Operation{
		operation("OP-3", "W1", 3, "M1", at(10, 30), at(11, 0)),
		operation("OP-1", "W1", 1, "M1", at(9, 0), at(10, 0)),
		operation("OP-2", "W1", 2, "M2", at(9, 30), at(11, 0)),
	}}
	assert.Equal(t, []ruleKey{
		{Rule: models.RulePrecedenceViolation, Other: "OP-2", Direction: models.DirectionAfter},
		{Rule: models.RulePrecedenceViolation, Other: "OP-3", Direction: models.DirectionAfter},
	}, rulesOf(scheduling.CheckWorkOrder(broken)))
}

func TestCheckMachine(t *testing.T) {
	t.Parallel()

	ops := []models.Operation{
		operation("A", "W1", 1, "M1", at(9, 0), at(10, 0)),
		operation("B", "W2", 1, "M1", at(10, 0), at(11, 0)),
		operation("C", "W3", 1, "M1", at(10, 30), at(12, 0)),
		operation("D", "W4", 1, "M2", at(10, 30), at(12, 0)),
	}

	assert.Equal(t, []ruleKey{
		{Rule: models.RuleMachineOverlap, Other: "C"},
	}, rulesOf(scheduling.CheckMachine("M1", ops)))
	assert.Empty(t, scheduling.CheckMachine("M2", ops))
}
