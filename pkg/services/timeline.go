package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukex/machineline/pkg/layout"
	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/persistence"
	"github.com/dukex/machineline/pkg/timeline"
)

// Window is the visible time range and the pixel width it is rendered into.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Width float64   `json:"width"`
}

// Bar is one operation positioned inside its machine lane.
type Bar struct {
	OperationID string    `json:"operation_id"`
	Label       string    `json:"label"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Layer       int       `json:"layer"`
	Top         float64   `json:"top"`
	Left        *float64  `json:"left,omitempty"`
	Width       *float64  `json:"width,omitempty"`
}

type TimelineLane struct {
	layout.Lane

	Bars []Bar `json:"bars"`
}

// TimelineData is everything a client needs to draw the machine timeline.
type TimelineData struct {
	WorkOrders  []*models.WorkOrder `json:"work_orders"`
	Machines    []string            `json:"machines"`
	Lanes       []TimelineLane      `json:"lanes"`
	Window      *Window             `json:"window,omitempty"`
	Now         time.Time           `json:"now"`
	NowPosition *float64            `json:"now_position,omitempty"`
}

type Timeline struct {
	persistence persistence.Persistence
	geometry    layout.Geometry
	now         func() time.Time
}

func NewTimeline(persistence persistence.Persistence, geometry layout.Geometry) *Timeline {
	if geometry == (layout.Geometry{}) {
		geometry = layout.DefaultGeometry()
	}

	return &Timeline{
		persistence: persistence,
		geometry:    geometry,
		now:         time.Now,
	}
}

// Data lays out every machine lane. With a window the bars also carry pixel positions.
func (t *Timeline) Data(ctx context.Context, window *Window) (*TimelineData, error) {
	var mapper *timeline.Mapper

	if window != nil {
		m, err := timeline.NewMapper(window.Start, window.End, window.Width)
		if err != nil {
			return nil, NewValidationError("Timeline", "DEGENERATE_WINDOW", err.Error(), err)
		}

		mapper = &m
	}

	snapshot, err := t.persistence.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	now := t.now().UTC()

	data := &TimelineData{
		WorkOrders: make([]*models.WorkOrder, 0, len(snapshot.WorkOrders)),
		Machines:   snapshot.Machines(),
		Window:     window,
		Now:        now,
	}

	for i := range snapshot.WorkOrders {
		data.WorkOrders = append(data.WorkOrders, &snapshot.WorkOrders[i])
	}

	if mapper != nil {
		if x, ok := mapper.NowPosition(now); ok {
			data.NowPosition = &x
		}
	}

	for _, lane := range layout.Lanes(snapshot.Operations, t.geometry) {
		data.Lanes = append(data.Lanes, TimelineLane{
			Lane: lane,
			Bars: t.bars(snapshot.OperationsOn(lane.MachineID), lane, mapper),
		})
	}

	if data.Lanes == nil {
		data.Lanes = make([]TimelineLane, 0)
	}

	return data, nil
}

func (t *Timeline) bars(ops []models.Operation, lane layout.Lane, mapper *timeline.Mapper) []Bar {
	bars := make([]Bar, 0, len(ops))

	for _, op := range ops {
		layer := lane.Layers[op.ID]

		bar := Bar{
			OperationID: op.ID,
			Label:       op.DisplayName(),
			Start:       op.Start,
			End:         op.End,
			Layer:       layer,
			Top:         float64(layer) * t.geometry.LayerHeight,
		}

		if mapper != nil {
			left, width := mapper.Span(op.Start, op.End)
			bar.Left, bar.Width = &left, &width
		}

		bars = append(bars, bar)
	}

	slices.SortFunc(bars, func(a, b Bar) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}

		return strings.Compare(a.OperationID, b.OperationID)
	})

	return bars
}

// MachineSchedule lists one machine's operations, optionally bounded.
func (t *Timeline) MachineSchedule(ctx context.Context, machineID string, from, to *time.Time) ([]*models.Operation, error) {
	if machineID == "" {
		return nil, NewValidationError("MachineSchedule", "MISSING_MACHINE", "machine id is required", ErrInvalidRequest)
	}

	if from != nil && to != nil && to.Before(*from) {
		return nil, NewValidationError("MachineSchedule", "INVALID_RANGE", "end_date must not be before start_date", ErrInvalidWindow)
	}

	return t.persistence.OperationsByMachine(ctx, machineID, from, to)
}
