package models

// Rule identifies which scheduling rule a violation breaks.
type Rule string

const (
	RulePastSchedule        Rule = "PastSchedule"        // start before now
	RuleMachineOverlap      Rule = "MachineOverlap"      // double-booked machine
	RulePrecedenceViolation Rule = "PrecedenceViolation" // out of work order sequence
)

// Direction tells on which side of a neighbour a precedence violation happened.
type Direction string

const (
	DirectionAfter  Direction = "after"  // must start after the predecessor ends
	DirectionBefore Direction = "before" // must end before the successor starts
)

// Violation is a structured reason a proposed reschedule is rejected.
type Violation struct {
	Rule                   Rule      `json:"rule"`
	Message                string    `json:"message"`
	ConflictingOperationID string    `json:"conflicting_operation_id,omitempty"`
	Direction              Direction `json:"direction,omitempty"`
}
