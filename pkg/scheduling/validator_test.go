package scheduling_test

import (
	"testing"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/scheduling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day = time.Date(2030, 8, 20, 0, 0, 0, 0, time.UTC)
	now = day.Add(6 * time.Hour)
)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func operation(id, workOrderID string, index int, machineID string, start, end time.Time) models.Operation {
	return models.Operation{
		ID:          id,
		WorkOrderID: workOrderID,
		Index:       index,
		MachineID:   machineID,
		Name:        id,
		Start:       start,
		End:         end,
	}
}

func snapshotOf(ops ...models.Operation) *models.Snapshot {
	orders := map[string]*models.WorkOrder{}
	ids := []string{}

	for _, op := range ops {
		wo, ok := orders[op.WorkOrderID]
		if !ok {
			wo = &models.WorkOrder{ID: op.WorkOrderID, Product: "Widget", Qty: 1}
			orders[op.WorkOrderID] = wo
			ids = append(ids, op.WorkOrderID)
		}

		wo.Operations = append(wo.Operations, op)
	}

	workOrders := make([]models.WorkOrder, 0, len(ids))
	for _, id := range ids {
		workOrders = append(workOrders, *orders[id])
	}

	return models.NewSnapshot(workOrders, nil, now)
}

func TestValidate_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snapshot *models.Snapshot
		moved    string
		machine  string
		start    time.Time
		want     []models.Violation
	}{
		{
			name: "start before predecessor ends",
			snapshot: snapshotOf(
				operation("OP-0", "W1", 0, "M1", at(9, 0), at(10, 0)),
				operation("OP-1", "W1", 1, "M2", at(10, 0), at(11, 0)),
			),
			moved:   "OP-1",
			machine: "M2",
			start:   at(9, 30),
			want: []models.Violation{
				{Rule: models.RulePrecedenceViolation, ConflictingOperationID: "OP-0", Direction: models.DirectionAfter},
			},
		},
		{
			name: "past start is reported even when nothing else fails",
			snapshot: snapshotOf(
				operation("OP-0", "W1", 1, "M1", at(9, 0), at(10, 0)),
			),
			moved:   "OP-0",
			machine: "M1",
			start:   at(5, 0),
			want: []models.Violation{
				{Rule: models.RulePastSchedule},
			},
		},
		{
			name: "move onto another machine overlaps",
			snapshot: snapshotOf(
				operation("X", "W1", 1, "M1", at(8, 0), at(8, 45)),
				operation("Y", "W2", 1, "M2", at(14, 0), at(15, 0)),
			),
			moved:   "X",
			machine: "M2",
			start:   at(14, 30),
			want: []models.Violation{
				{Rule: models.RuleMachineOverlap, ConflictingOperationID: "Y"},
			},
		},
		{
			name: "starting when another ends is not a conflict",
			snapshot: snapshotOf(
				operation("X", "W1", 1, "M1", at(8, 0), at(9, 0)),
				operation("Y", "W2", 1, "M2", at(14, 0), at(15, 0)),
			),
			moved:   "X",
			machine: "M2",
			start:   at(15, 0),
			want:    []models.Violation{},
		},
		{
			name: "ending when another starts is not a conflict",
			snapshot: snapshotOf(
				operation("X", "W1", 1, "M1", at(8, 0), at(9, 0)),
				operation("Y", "W2", 1, "M2", at(14, 0), at(15, 0)),
			),
			moved:   "X",
			machine: "M2",
			start:   at(13, 0),
			want:    []models.Violation{},
		},
		{
			name: "moved operation never conflicts with itself",
			snapshot: snapshotOf(
				operation("X", "W1", 1, "M1", at(8, 0), at(10, 0)),
			),
			moved:   "X",
			machine: "M1",
			start:   at(9, 0),
			want:    []models.Violation{},
		},
		{
			name: "end after successor starts",
			snapshot: snapshotOf(
				operation("OP-1", "W1", 1, "M1", at(8, 0), at(9, 0)),
				operation("OP-2", "W1", 2, "M2", at(10, 0), at(11, 0)),
			),
			moved:   "OP-1",
			machine: "M1",
			start:   at(9, 30),
			want: []models.Violation{
				{Rule: models.RulePrecedenceViolation, ConflictingOperationID: "OP-2", Direction: models.DirectionBefore},
			},
		},
		{
			name: "neighbours found by index even with gaps",
			snapshot: snapshotOf(
				operation("OP-1", "W1", 1, "M1", at(7, 0), at(8, 0)),
				operation("OP-5", "W1", 5, "M1", at(9, 0), at(10, 0)),
				operation("OP-9", "W1", 9, "M2", at(12, 0), at(13, 0)),
			),
			moved:   "OP-9",
			machine: "M2",
			start:   at(9, 30),
			want: []models.Violation{
				{Rule: models.RulePrecedenceViolation, ConflictingOperationID: "OP-5", Direction: models.DirectionAfter},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			moved, ok := tt.snapshot.Operation(tt.moved)
			require.True(t, ok)

			got := scheduling.Validate(scheduling.Proposal{Operation: moved, MachineID: tt.machine, Start: tt.start}, tt.snapshot, now)
			assert.Equal(t, rulesOf(tt.want), rulesOf(got))

			for _, v := range got {
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}

type ruleKey struct {
	Rule      models.Rule
	Other     string
	Direction models.Direction
}

func rulesOf(violations []models.Violation) []ruleKey {
	keys := make([]ruleKey, 0, len(violations))
	for _, v := range violations {
		keys = append(keys, ruleKey{Rule: v.Rule, Other: v.ConflictingOperationID, Direction: v.Direction})
	}

	return keys
}

func TestValidate_ReportsEveryViolationInStableOrder(t *testing.T) {
	t.Parallel()

	snapshot := snapshotOf(
		operation("B-2", "W2", 1, "M3", at(2, 0), at(5, 0)),
		operation("A-1", "W3", 1, "M3", at(3, 0), at(4, 0)),
		operation("P", "W1", 1, "M1", at(1, 0), at(3, 0)),
		operation("X", "W1", 2, "M2", at(7, 0), at(8, 0)),
		operation("S", "W1", 3, "M1", at(3, 15), at(4, 0)),
	)

	moved, _ := snapshot.Operation("X")
	proposal := scheduling.Proposal{Operation: moved, MachineID: "M3", Start: at(2, 30)}

	for range 5 {
		got := scheduling.Validate(proposal, snapshot, now)
		assert.Equal(t, []ruleKey{
			{Rule: models.RulePastSchedule},
			{Rule: models.RuleMachineOverlap, Other: "A-1"},
			{Rule: models.RuleMachineOverlap, Other: "B-2"},
			{Rule: models.RulePrecedenceViolation, Other: "P", Direction: models.DirectionAfter},
			{Rule: models.RulePrecedenceViolation, Other: "S", Direction: models.DirectionBefore},
		}, rulesOf(got))
	}
}

func TestValidate_UsesExistingNeighbourTimes(t *testing.T) {
	t.Parallel()

	snapshot := snapshotOf(
		operation("OP-1", "W1", 1, "M1", at(8, 0), at(9, 0)),
		operation("OP-2", "W1", 2, "M2", at(9, 0), at(10, 0)),
	)
	before := snapshotOf(
		operation("OP-1", "W1", 1, "M1", at(8, 0), at(9, 0)),
		operation("OP-2", "W1", 2, "M2", at(9, 0), at(10, 0)),
	)

	moved, _ := snapshot.Operation("OP-2")
	got := scheduling.Validate(scheduling.Proposal{Operation: moved, MachineID: "M2", Start: at(12, 0)}, snapshot, now)

	assert.Empty(t, got)
	assert.Equal(t, before, snapshot, "validation must not mutate the snapshot")
}

func TestValidate_FallsBackToSnapshotOperations(t *testing.T) {
	t.Parallel()

	snapshot := &models.Snapshot{
		Operations: []models.Operation{
			operation("OP-1", "W1", 1, "M1", at(8, 0), at(10, 0)),
			operation("OP-2", "W1", 2, "M2", at(10, 0), at(11, 0)),
		},
	}

	moved, _ := snapshot.Operation("OP-2")
	got := scheduling.Validate(scheduling.Proposal{Operation: moved, MachineID: "M2", Start: at(9, 0)}, snapshot, now)

	assert.Equal(t, []ruleKey{
		{Rule: models.RulePrecedenceViolation, Other: "OP-1", Direction: models.DirectionAfter},
	}, rulesOf(got))
}

func TestProposal_PreservesDuration(t *testing.T) {
	t.Parallel()

	moved := operation("X", "W1", 1, "M1", at(8, 0), at(8, 45))
	proposal := scheduling.Proposal{Operation: moved, MachineID: "M2", Start: at(14, 30)}

	assert.Equal(t, at(15, 15), proposal.ProposedEnd())
	assert.Equal(t, models.Placement{OperationID: "X", MachineID: "M2", Start: at(14, 30), End: at(15, 15)}, proposal.Placement())
}
