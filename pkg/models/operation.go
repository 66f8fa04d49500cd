// Package models defines the core domain models for machine timeline scheduling.
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTimeRange is returned when an operation does not end after it starts.
	ErrInvalidTimeRange = errors.New("operation end time must be after start time")

	// ErrInvalidOperation is returned when an operation is missing identifying fields.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Operation is one schedulable step of a work order, bound to a machine and a time interval.
type Operation struct {
	ID          string    `json:"id"            validate:"required"`
	WorkOrderID string    `json:"work_order_id" validate:"required"`
	Index       int       `json:"index"         validate:"min=0"`
	MachineID   string    `json:"machine_id"    validate:"required"`
	Name        string    `json:"name"          validate:"required"`
	Start       time.Time `json:"start"         validate:"required"`
	End         time.Time `json:"end"           validate:"required"`
}

// Duration is preserved across reschedules.
func (o Operation) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Overlaps reports whether [start, end) intersects the operation's interval.
// Touching endpoints are not an overlap.
func (o Operation) Overlaps(start, end time.Time) bool {
	return start.Before(o.End) && end.After(o.Start)
}

// DisplayName is the label a timeline shows for the operation.
func (o Operation) DisplayName() string {
	return o.WorkOrderID + " · " + o.Name
}

// Validate checks the operation's own invariants.
func (o Operation) Validate() error {
	if o.ID == "" || o.WorkOrderID == "" || o.MachineID == "" {
		return fmt.Errorf("%w: id, work_order_id and machine_id are required", ErrInvalidOperation)
	}

	if o.Index < 0 {
		return fmt.Errorf("%w: index must not be negative, got %d", ErrInvalidOperation, o.Index)
	}

	if !o.End.After(o.Start) {
		return fmt.Errorf("operation %s: %w", o.ID, ErrInvalidTimeRange)
	}

	return nil
}

// Placement is the single-field mutation a reschedule commits: machine, start and end.
type Placement struct {
	OperationID string    `json:"operation_id"`
	MachineID   string    `json:"machine_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Apply returns a copy of op moved to the placement.
func (p Placement) Apply(op Operation) Operation {
	op.MachineID = p.MachineID
	op.Start = p.Start
	op.End = p.End

	return op
}
