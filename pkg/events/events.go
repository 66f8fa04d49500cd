// Package events defines the notifications emitted when the machine schedule changes.
package events

import (
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic every schedule event is published on.
const Topic = "machineline.schedule.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	OperationRescheduledEvent EventType = "operation.rescheduled"
	RescheduleRejectedEvent   EventType = "reschedule.rejected"
	ScheduleInconsistentEvent EventType = "schedule.inconsistent"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return BaseEvent{
		ID:        id.String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OperationRescheduled is published after a placement has been committed.
type OperationRescheduled struct {
	BaseEvent

	WorkOrderID string           `json:"work_order_id"`
	Previous    models.Operation `json:"previous"`
	Current     models.Operation `json:"current"`
}

func (e OperationRescheduled) GetType() EventType {
	return OperationRescheduledEvent
}

// RescheduleRejected is published when a proposal fails validation.
type RescheduleRejected struct {
	BaseEvent

	OperationID string             `json:"operation_id"`
	MachineID   string             `json:"machine_id"`
	Start       time.Time          `json:"start"`
	Violations  []models.Violation `json:"violations"`
}

func (e RescheduleRejected) GetType() EventType {
	return RescheduleRejectedEvent
}

// ScheduleInconsistent reports violations found in already stored data.
type ScheduleInconsistent struct {
	BaseEvent

	WorkOrderID string             `json:"work_order_id,omitempty"`
	MachineID   string             `json:"machine_id,omitempty"`
	Violations  []models.Violation `json:"violations"`
}

func (e ScheduleInconsistent) GetType() EventType {
	return ScheduleInconsistentEvent
}
