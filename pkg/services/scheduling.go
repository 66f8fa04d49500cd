package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/machineline/pkg/eventbus"
	"github.com/dukex/machineline/pkg/events"
	"github.com/dukex/machineline/pkg/locking"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/otelhelper"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/scheduling"
	"github.com/dukex/machineline/pkg/timeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCommitRetries = 3
	defaultLockTimeout   = 5 * time.Second
)

// SchedulingConfig tunes the commit loop and drop snapping.
type SchedulingConfig struct {
	CommitRetries int           `yaml:"commit_retries"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`
	SnapMinutes   int           `yaml:"snap_minutes"`
}

// RescheduleRequest asks to move one operation to a machine and start time.
type RescheduleRequest struct {
	OperationID string    `json:"operation_id"           validate:"required"`
	MachineID   string    `json:"target_machine_id"      validate:"required"`
	Start       time.Time `json:"target_start_timestamp" validate:"required"`
}

// ResolvedOperation is the placement an accepted reschedule produced.
type ResolvedOperation struct {
	OperationID string    `json:"operation_id"`
	MachineID   string    `json:"machine_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// RescheduleResult is either accepted with a resolved operation or rejected with violations.
type RescheduleResult struct {
	Accepted          bool               `json:"accepted"`
	ResolvedOperation *ResolvedOperation `json:"resolved_operation,omitempty"`
	Violations        []models.Violation `json:"violations,omitempty"`
}

// UpdateOperationRequest changes an operation's machine and/or start; nil fields keep their
// current value.
type UpdateOperationRequest struct {
	MachineID *string    `json:"machine_id,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
}

// DropRequest describes a bar dropped on the rendered timeline.
type DropRequest struct {
	OperationID string    `json:"operation_id" validate:"required"`
	MachineID   string    `json:"machine_id"   validate:"required"`
	PixelX      float64   `json:"pixel_x"`
	WindowStart time.Time `json:"window_start" validate:"required"`
	WindowEnd   time.Time `json:"window_end"   validate:"required"`
	PixelWidth  float64   `json:"pixel_width"`
	SnapMinutes *int      `json:"snap_minutes,omitempty"`
	Commit      bool      `json:"commit"`
}

// DropResult is the candidate placement of a drop together with its decision.
type DropResult struct {
	RescheduleResult

	ProposedStart time.Time `json:"proposed_start"`
	ProposedEnd   time.Time `json:"proposed_end"`
}

type Scheduling struct {
	persistence persistence.Persistence
	locker      locking.Locker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	config      SchedulingConfig
	now         func() time.Time
}

// NewScheduling creates the reschedule service. publisher may be nil.
func NewScheduling(
	persistence persistence.Persistence,
	locker locking.Locker,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	config SchedulingConfig,
) *Scheduling {
	if config.CommitRetries <= 0 {
		config.CommitRetries = defaultCommitRetries
	}

	if config.LockTimeout <= 0 {
		config.LockTimeout = defaultLockTimeout
	}

	return &Scheduling{
		persistence: persistence,
		locker:      locker,
		publisher:   publisher,
		logger:      logger.With("module", "scheduling"),
		tracer:      otelhelper.Tracer("machineline/services/scheduling"),
		config:      config,
		now:         time.Now,
	}
}

// Preview validates the request against a fresh snapshot without committing.
func (s *Scheduling) Preview(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduling.preview",
		attribute.String(otelhelper.OperationIDKey, req.OperationID),
		attribute.String(otelhelper.MachineIDKey, req.MachineID),
	)
	defer span.End()

	if err := validateRescheduleRequest("Preview", req); err != nil {
		return nil, err
	}

	snapshot, err := s.persistence.Snapshot(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	proposal, err := proposalFor(snapshot, req)
	if err != nil {
		return nil, err
	}

	violations := scheduling.Validate(proposal, snapshot, s.now())
	span.SetAttributes(attribute.Int(otelhelper.ViolationsKey, len(violations)))

	return decision(proposal, violations), nil
}

// Reschedule validates and commits under the machine and work order locks. A commit that finds
// the snapshot stale is retried with a new snapshot; when retries run out the result is
// ErrConflict.
func (s *Scheduling) Reschedule(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduling.reschedule",
		attribute.String(otelhelper.OperationIDKey, req.OperationID),
		attribute.String(otelhelper.MachineIDKey, req.MachineID),
	)
	defer span.End()

	if err := validateRescheduleRequest("Reschedule", req); err != nil {
		return nil, err
	}

	current, err := s.persistence.OperationByID(ctx, req.OperationID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.SourceIDKey, current.MachineID),
		attribute.String(otelhelper.WorkOrderIDKey, current.WorkOrderID),
	)

	lockCtx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx,
		locking.MachineKey(req.MachineID),
		locking.MachineKey(current.MachineID),
		locking.WorkOrderKey(current.WorkOrderID),
	)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewConflictError("Reschedule", 0, err)
	}

	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "failed to release schedule locks", "operation_id", req.OperationID, "error", err)
		}
	}()

	var lastErr error

	for attempt := 1; attempt <= s.config.CommitRetries; attempt++ {
		span.SetAttributes(attribute.Int(otelhelper.AttemptKey, attempt))

		result, err := s.attempt(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Bool(otelhelper.AcceptedKey, result.Accepted))

			return result, nil
		}

		if !persistence.IsStaleSnapshot(err) {
			otelhelper.SetError(span, err)

			return nil, err
		}

		lastErr = err

		s.logger.InfoContext(ctx, "snapshot went stale during commit, retrying",
			"operation_id", req.OperationID, "attempt", attempt, "error", err)
	}

	err = NewConflictError("Reschedule", s.config.CommitRetries, lastErr)
	otelhelper.SetError(span, err)

	return nil, err
}

// attempt runs one snapshot, validate, commit round.
func (s *Scheduling) attempt(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	snapshot, err := s.persistence.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	proposal, err := proposalFor(snapshot, req)
	if err != nil {
		return nil, err
	}

	violations := scheduling.Validate(proposal, snapshot, s.now())
	if len(violations) > 0 {
		s.publish(ctx, proposal.Operation.ID, events.RescheduleRejected{
			BaseEvent:   events.NewBaseEvent(events.RescheduleRejectedEvent),
			OperationID: proposal.Operation.ID,
			MachineID:   proposal.MachineID,
			Start:       proposal.Start,
			Violations:  violations,
		})

		return decision(proposal, violations), nil
	}

	committed, err := s.persistence.CommitPlacement(ctx, proposal.Placement(), expectedVersions(snapshot, proposal))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "operation rescheduled",
		"operation_id", committed.ID,
		"machine_id", committed.MachineID,
		"start", committed.Start,
		"end", committed.End,
	)

	s.publish(ctx, committed.WorkOrderID, events.OperationRescheduled{
		BaseEvent:   events.NewBaseEvent(events.OperationRescheduledEvent),
		WorkOrderID: committed.WorkOrderID,
		Previous:    proposal.Operation,
		Current:     *committed,
	})

	return &RescheduleResult{
		Accepted:          true,
		ResolvedOperation: resolved(*committed),
	}, nil
}

// UpdateOperation applies a partial update through the same validate and commit path.
func (s *Scheduling) UpdateOperation(ctx context.Context, operationID string, req UpdateOperationRequest) (*RescheduleResult, error) {
	if operationID == "" {
		return nil, NewValidationError("UpdateOperation", "MISSING_ID", "operation id is required", ErrInvalidRequest)
	}

	current, err := s.persistence.OperationByID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	reschedule := RescheduleRequest{
		OperationID: operationID,
		MachineID:   current.MachineID,
		Start:       current.Start,
	}

	if req.MachineID != nil && *req.MachineID != "" {
		reschedule.MachineID = *req.MachineID
	}

	if req.Start != nil {
		reschedule.Start = *req.Start
	}

	return s.Reschedule(ctx, reschedule)
}

// Drop maps a drop position back to time, snaps it and previews or commits the result.
func (s *Scheduling) Drop(ctx context.Context, req DropRequest) (*DropResult, error) {
	mapper, err := timeline.NewMapper(req.WindowStart, req.WindowEnd, req.PixelWidth)
	if err != nil {
		return nil, NewValidationError("Drop", "DEGENERATE_WINDOW", err.Error(), err)
	}

	op, err := s.persistence.OperationByID(ctx, req.OperationID)
	if err != nil {
		return nil, err
	}

	grid := s.config.SnapMinutes
	if req.SnapMinutes != nil {
		grid = *req.SnapMinutes
	}

	start, end := mapper.Candidate(*op, req.PixelX, grid)

	reschedule := RescheduleRequest{OperationID: req.OperationID, MachineID: req.MachineID, Start: start}

	var result *RescheduleResult
	if req.Commit {
		result, err = s.Reschedule(ctx, reschedule)
	} else {
		result, err = s.Preview(ctx, reschedule)
	}

	if err != nil {
		return nil, err
	}

	return &DropResult{RescheduleResult: *result, ProposedStart: start, ProposedEnd: end}, nil
}

func (s *Scheduling) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

func validateRescheduleRequest(op string, req RescheduleRequest) error {
	var missing []error

	if req.OperationID == "" {
		missing = append(missing, errors.New("operation_id is required"))
	}

	if req.MachineID == "" {
		missing = append(missing, errors.New("target_machine_id is required"))
	}

	if req.Start.IsZero() {
		missing = append(missing, errors.New("target_start_timestamp is required"))
	}

	if len(missing) > 0 {
		return NewValidationError(op, "INVALID_REQUEST", errors.Join(missing...).Error(), ErrInvalidRequest)
	}

	return nil
}

func proposalFor(snapshot *models.Snapshot, req RescheduleRequest) (scheduling.Proposal, error) {
	op, ok := snapshot.Operation(req.OperationID)
	if !ok {
		return scheduling.Proposal{}, persistence.NewOperationError("Snapshot", req.OperationID, persistence.ErrOperationNotFound)
	}

	return scheduling.Proposal{Operation: op, MachineID: req.MachineID, Start: req.Start.UTC()}, nil
}

// expectedVersions covers every machine whose operations the decision read: the target lane, the
// source lane and the lanes holding the work order's other operations.
func expectedVersions(snapshot *models.Snapshot, proposal scheduling.Proposal) map[string]int64 {
	expected := map[string]int64{
		proposal.MachineID:           snapshot.MachineVersion(proposal.MachineID),
		proposal.Operation.MachineID: snapshot.MachineVersion(proposal.Operation.MachineID),
	}

	if wo, ok := snapshot.WorkOrder(proposal.Operation.WorkOrderID); ok {
		for _, op := range wo.Operations {
			expected[op.MachineID] = snapshot.MachineVersion(op.MachineID)
		}
	}

	return expected
}

func decision(proposal scheduling.Proposal, violations []models.Violation) *RescheduleResult {
	if len(violations) > 0 {
		return &RescheduleResult{Accepted: false, Violations: violations}
	}

	placed := proposal.Placement().Apply(proposal.Operation)

	return &RescheduleResult{Accepted: true, ResolvedOperation: resolved(placed)}
}

func resolved(op models.Operation) *ResolvedOperation {
	return &ResolvedOperation{
		OperationID: op.ID,
		MachineID:   op.MachineID,
		Start:       op.Start,
		End:         op.End,
	}
}
