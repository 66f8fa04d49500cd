// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkOrderNotFound indicates a work order was not found by the given identifier.
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrOperationNotFound indicates an operation was not found by the given identifier.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStaleSnapshot indicates a machine's operation set changed since the snapshot the
	// placement was validated against. Callers retry with a fresh snapshot.
	ErrStaleSnapshot = errors.New("stale snapshot")
)

// WorkOrderError wraps work order errors with additional context.
type WorkOrderError struct {
	Op          string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkOrderID string
	Err         error
}

func (e *WorkOrderError) Error() string {
	return fmt.Sprintf("%s operation failed for work order %s: %v", e.Op, e.WorkOrderID, e.Err)
}

func (e *WorkOrderError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for work order errors.
func (e *WorkOrderError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkOrderError creates a new work order error with context.
func NewWorkOrderError(op, workOrderID string, err error) *WorkOrderError {
	return &WorkOrderError{
		Op:          op,
		WorkOrderID: workOrderID,
		Err:         err,
	}
}

// OperationError wraps operation errors with additional context.
type OperationError struct {
	Op          string
	OperationID string
	MachineID   string // Machine involved when the failure is about versions
	Err         error
}

func (e *OperationError) Error() string {
	if e.MachineID != "" {
		return fmt.Sprintf("%s operation failed for operation %s on machine %s: %v", e.Op, e.OperationID, e.MachineID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for operation %s: %v", e.Op, e.OperationID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOperationError creates a new operation error with context.
func NewOperationError(op, operationID string, err error) *OperationError {
	return &OperationError{
		Op:          op,
		OperationID: operationID,
		Err:         err,
	}
}

// NewStaleSnapshotError reports the machine whose version moved.
func NewStaleSnapshotError(operationID, machineID string) *OperationError {
	return &OperationError{
		Op:          "CommitPlacement",
		OperationID: operationID,
		MachineID:   machineID,
		Err:         ErrStaleSnapshot,
	}
}

// IsWorkOrderNotFound checks if an error indicates a work order was not found.
func IsWorkOrderNotFound(err error) bool {
	return errors.Is(err, ErrWorkOrderNotFound)
}

// IsOperationNotFound checks if an error indicates an operation was not found.
func IsOperationNotFound(err error) bool {
	return errors.Is(err, ErrOperationNotFound)
}

// IsStaleSnapshot checks if an error indicates the commit lost an optimistic race.
func IsStaleSnapshot(err error) bool {
	return errors.Is(err, ErrStaleSnapshot)
}
