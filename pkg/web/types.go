// Package web provides HTTP request and response types for the scheduling API.
package web

import (
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/services"
	"github.com/moogar0880/problems"
)

// RescheduleRequest represents the request body for moving an operation.
type RescheduleRequest struct {
	OperationID          string     `json:"operation_id"           validate:"required"`
	TargetMachineID      string     `json:"target_machine_id"      validate:"required"`
	TargetStartTimestamp *time.Time `json:"target_start_timestamp" validate:"required"`
}

func (r RescheduleRequest) toService() services.RescheduleRequest {
	return services.RescheduleRequest{
		OperationID: r.OperationID,
		MachineID:   r.TargetMachineID,
		Start:       *r.TargetStartTimestamp,
	}
}

// UpdateOperationRequest represents the request body for updating an operation.
// All fields are optional; the operation keeps its duration, so an end time is ignored.
type UpdateOperationRequest struct {
	MachineID *string    `json:"machine_id,omitempty" validate:"omitempty,min=1"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
}

// DropRequest represents a bar dropped at a horizontal pixel position of a rendered window.
type DropRequest struct {
	OperationID     string     `json:"operation_id"           validate:"required"`
	TargetMachineID string     `json:"target_machine_id"      validate:"required"`
	PixelX          float64    `json:"pixel_x"`
	WindowStart     *time.Time `json:"window_start"           validate:"required"`
	WindowEnd       *time.Time `json:"window_end"             validate:"required"`
	PixelWidth      float64    `json:"pixel_width"            validate:"gt=0"`
	SnapMinutes     *int       `json:"snap_minutes,omitempty" validate:"omitempty,min=0"`
	Commit          bool       `json:"commit"`
}

func (r DropRequest) toService() services.DropRequest {
	return services.DropRequest{
		OperationID: r.OperationID,
		MachineID:   r.TargetMachineID,
		PixelX:      r.PixelX,
		WindowStart: *r.WindowStart,
		WindowEnd:   *r.WindowEnd,
		PixelWidth:  r.PixelWidth,
		SnapMinutes: r.SnapMinutes,
		Commit:      r.Commit,
	}
}

// ImportResponse reports how many work orders an import stored.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// ViolationProblem is a problem document that also lists the rules a change broke.
type ViolationProblem struct {
	*problems.Problem

	Violations []models.Violation `json:"violations"`
}
