// Package services provides the scheduling, timeline and work order use cases on top of persistence.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/machineline/pkg/locking"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/timeline"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidWindow  = errors.New("invalid time window")

	// Not Found Errors (404 Not Found).
	ErrWorkOrderNotFound = persistence.ErrWorkOrderNotFound
	ErrOperationNotFound = persistence.ErrOperationNotFound

	// Concurrency Conflicts (409 Conflict). The caller should retry with a fresh snapshot; this
	// is never a validation rejection.
	ErrConflict = errors.New("schedule changed concurrently")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, timeline.ErrDegenerateWindow) ||
		errors.Is(err, models.ErrInvalidWorkOrder) ||
		errors.Is(err, models.ErrInvalidOperation) ||
		errors.Is(err, models.ErrInvalidTimeRange)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkOrderNotFound) ||
		errors.Is(err, ErrOperationNotFound)
}

// IsConflictError checks if an error is a concurrency conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, locking.ErrLockTimeout)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConflictError reports that commits kept racing with other writers. Zero attempts means the
// schedule locks could not be acquired at all.
func NewConflictError(op string, attempts int, err error) *ServiceError {
	message := fmt.Sprintf("gave up after %d attempts, retry with a fresh snapshot", attempts)
	if attempts == 0 {
		message = "schedule is locked by another change, retry shortly"
	}

	return &ServiceError{
		Op:      op,
		Code:    "CONFLICT",
		Message: message,
		Err:     errors.Join(ErrConflict, err),
	}
}
