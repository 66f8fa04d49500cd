// Package scheduling decides whether a proposed placement of an operation is legal.
//
// Validation is a pure query over a snapshot: every rule is evaluated and every violation is
// returned, in the order past scheduling, machine overlaps sorted by conflicting operation id,
// then precedence (predecessor before successor).
package scheduling

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukex/machineline/pkg/models"
)

const timeLayout = time.RFC3339

// Proposal is a candidate new placement for one operation. The end is derived from the start so
// the operation keeps its duration.
type Proposal struct {
	Operation models.Operation
	MachineID string
	Start     time.Time
}

// ProposedEnd preserves the operation's duration.
func (p Proposal) ProposedEnd() time.Time {
	return p.Start.Add(p.Operation.Duration())
}

// Placement is the mutation the proposal would commit.
func (p Proposal) Placement() models.Placement {
	return models.Placement{
		OperationID: p.Operation.ID,
		MachineID:   p.MachineID,
		Start:       p.Start,
		End:         p.ProposedEnd(),
	}
}

// Validate checks the proposal against the snapshot and returns every violation found.
// An empty result means the placement is accepted.
func Validate(proposal Proposal, snapshot *models.Snapshot, now time.Time) []models.Violation {
	violations := make([]models.Violation, 0)

	if v, ok := checkPast(proposal, now); ok {
		violations = append(violations, v)
	}

	violations = append(violations, checkMachine(proposal, snapshot.Operations)...)
	violations = append(violations, checkPrecedence(proposal, snapshot)...)

	return violations
}

func checkPast(proposal Proposal, now time.Time) (models.Violation, bool) {
	if !proposal.Start.Before(now) {
		return models.Violation{}, false
	}

	return models.Violation{
		Rule: models.RulePastSchedule,
		Message: fmt.Sprintf("Operation start time %s cannot be in the past. Current time: %s",
			proposal.Start.Format(timeLayout), now.Format(timeLayout)),
	}, true
}

func checkMachine(proposal Proposal, operations []models.Operation) []models.Violation {
	end := proposal.ProposedEnd()
	conflicts := make([]models.Operation, 0)

	for _, other := range operations {
		if other.ID == proposal.Operation.ID || other.MachineID != proposal.MachineID {
			continue
		}

		if other.Overlaps(proposal.Start, end) {
			conflicts = append(conflicts, other)
		}
	}

	slices.SortFunc(conflicts, func(a, b models.Operation) int {
		return strings.Compare(a.ID, b.ID)
	})

	violations := make([]models.Violation, 0, len(conflicts))
	for _, other := range conflicts {
		violations = append(violations, models.Violation{
			Rule: models.RuleMachineOverlap,
			Message: fmt.Sprintf("Overlaps with operation %s on machine %s (%s to %s)",
				other.DisplayName(), proposal.MachineID, other.Start.Format(timeLayout), other.End.Format(timeLayout)),
			ConflictingOperationID: other.ID,
		})
	}

	return violations
}

func checkPrecedence(proposal Proposal, snapshot *models.Snapshot) []models.Violation {
	op := proposal.Operation
	predecessor, successor := neighbours(op, siblings(op, snapshot))
	violations := make([]models.Violation, 0, 2)

	if predecessor != nil && proposal.Start.Before(predecessor.End) {
		violations = append(violations, models.Violation{
			Rule: models.RulePrecedenceViolation,
			Message: fmt.Sprintf("Operation %d cannot start before operation %d (%s) ends at %s",
				op.Index, predecessor.Index, predecessor.DisplayName(), predecessor.End.Format(timeLayout)),
			ConflictingOperationID: predecessor.ID,
			Direction:              models.DirectionAfter,
		})
	}

	if successor != nil && proposal.ProposedEnd().After(successor.Start) {
		violations = append(violations, models.Violation{
			Rule: models.RulePrecedenceViolation,
			Message: fmt.Sprintf("Operation %d cannot end after operation %d (%s) starts at %s",
				op.Index, successor.Index, successor.DisplayName(), successor.Start.Format(timeLayout)),
			ConflictingOperationID: successor.ID,
			Direction:              models.DirectionBefore,
		})
	}

	return violations
}

// siblings returns the operations of op's work order with their current times.
func siblings(op models.Operation, snapshot *models.Snapshot) []models.Operation {
	if wo, ok := snapshot.WorkOrder(op.WorkOrderID); ok {
		return wo.Operations
	}

	ops := make([]models.Operation, 0)

	for _, other := range snapshot.Operations {
		if other.WorkOrderID == op.WorkOrderID {
			ops = append(ops, other)
		}
	}

	return ops
}

// neighbours finds the operations with the next lower and next higher index.
func neighbours(op models.Operation, siblings []models.Operation) (predecessor, successor *models.Operation) {
	for i := range siblings {
		other := &siblings[i]
		if other.ID == op.ID {
			continue
		}

		if other.Index < op.Index && (predecessor == nil || other.Index > predecessor.Index) {
			predecessor = other
		}

		if other.Index > op.Index && (successor == nil || other.Index < successor.Index) {
			successor = other
		}
	}

	return predecessor, successor
}
