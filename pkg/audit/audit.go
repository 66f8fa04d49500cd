// Package audit periodically re-checks the stored schedule for precedence and overlap problems.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/machineline/pkg/eventbus"
	"github.com/dukex/machineline/pkg/events"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/scheduling"
	"github.com/robfig/cron/v3"
)

// ErrNotStarted is returned by Stop when Start never ran.
var ErrNotStarted = errors.New("auditor not started")

// Report summarises one full audit run.
type Report struct {
	WorkOrders   int                           `json:"work_orders"`
	Machines     int                           `json:"machines"`
	Inconsistent []events.ScheduleInconsistent `json:"inconsistent"`
}

// Clean reports whether the run found nothing.
func (r *Report) Clean() bool {
	return len(r.Inconsistent) == 0
}

type Auditor struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	schedule    string

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewAuditor creates an auditor running on the given cron expression. publisher may be nil.
func NewAuditor(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	schedule string,
) *Auditor {
	return &Auditor{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "audit"),
		schedule:    schedule,
	}
}

// Start schedules Run. Runs that overlap a slow predecessor are skipped.
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := cron.ParseStandard(a.schedule); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", a.schedule, err)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn))

	ctx, a.cancel = context.WithCancel(ctx)
	a.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	entryID, err := a.cron.AddFunc(a.schedule, func() {
		if _, err := a.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "schedule audit failed", "error", err)
		}
	})
	if err != nil {
		a.cancel()

		return fmt.Errorf("failed to add audit job: %w", err)
	}

	a.cron.Start()
	a.logger.InfoContext(ctx, "schedule auditor started", "schedule", a.schedule, "entry_id", entryID)

	return nil
}

// Stop waits for a running audit to finish or ctx to expire.
func (a *Auditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron == nil {
		return ErrNotStarted
	}

	done := a.cron.Stop()
	a.cancel()
	a.cron = nil

	select {
	case <-done.Done():
		a.logger.InfoContext(ctx, "schedule auditor stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register subscribes the auditor to committed reschedules so the touched work order and lane are
// re-checked without waiting for the next run.
func (a *Auditor) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.OperationRescheduledEvent, a.handleRescheduled)
}

// Run checks every work order and every machine lane of one snapshot.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	snapshot, err := a.persistence.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	machines := snapshot.Machines()
	report := &Report{
		WorkOrders:   len(snapshot.WorkOrders),
		Machines:     len(machines),
		Inconsistent: make([]events.ScheduleInconsistent, 0),
	}

	for _, wo := range snapshot.WorkOrders {
		if found := a.checkWorkOrder(ctx, wo); found != nil {
			report.Inconsistent = append(report.Inconsistent, *found)
		}
	}

	for _, machineID := range machines {
		if found := a.checkMachine(ctx, machineID, snapshot.Operations); found != nil {
			report.Inconsistent = append(report.Inconsistent, *found)
		}
	}

	a.logger.InfoContext(ctx, "schedule audit finished",
		"work_orders", report.WorkOrders,
		"machines", report.Machines,
		"inconsistent", len(report.Inconsistent),
	)

	return report, nil
}

func (a *Auditor) handleRescheduled(ctx context.Context, event any) error {
	rescheduled, ok := event.(*events.OperationRescheduled)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	snapshot, err := a.persistence.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if wo, ok := snapshot.WorkOrder(rescheduled.WorkOrderID); ok {
		a.checkWorkOrder(ctx, wo)
	}

	a.checkMachine(ctx, rescheduled.Current.MachineID, snapshot.Operations)

	return nil
}

func (a *Auditor) checkWorkOrder(ctx context.Context, wo models.WorkOrder) *events.ScheduleInconsistent {
	violations := scheduling.CheckWorkOrder(wo)
	if len(violations) == 0 {
		return nil
	}

	found := events.ScheduleInconsistent{
		BaseEvent:   events.NewBaseEvent(events.ScheduleInconsistentEvent),
		WorkOrderID: wo.ID,
		Violations:  violations,
	}

	a.logger.WarnContext(ctx, "work order runs out of sequence", "work_order_id", wo.ID, "violations", len(violations))
	a.publish(ctx, wo.ID, found)

	return &found
}

func (a *Auditor) checkMachine(ctx context.Context, machineID string, ops []models.Operation) *events.ScheduleInconsistent {
	violations := scheduling.CheckMachine(machineID, ops)
	if len(violations) == 0 {
		return nil
	}

	found := events.ScheduleInconsistent{
		BaseEvent:  events.NewBaseEvent(events.ScheduleInconsistentEvent),
		MachineID:  machineID,
		Violations: violations,
	}

	a.logger.WarnContext(ctx, "machine is double-booked", "machine_id", machineID, "violations", len(violations))
	a.publish(ctx, machineID, found)

	return &found
}

func (a *Auditor) publish(ctx context.Context, key string, event events.ScheduleInconsistent) {
	if a.publisher == nil {
		return
	}

	if err := a.publisher.Publish(ctx, key, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish inconsistency", "key", key, "error", err)
	}
}
