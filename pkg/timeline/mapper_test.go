package timeline_test

import (
	"math"
	"testing"
	"time"

	"github.com/dukex/machineline/pkg/models"
	"github.com/dukex/machineline/pkg/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2030, 8, 20, 8, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2030, 8, 20, 16, 0, 0, 0, time.UTC)
)

func TestToTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pixelX float64
		want   time.Time
	}{
		{name: "left edge", pixelX: 0, want: windowStart},
		{name: "right edge", pixelX: 800, want: windowEnd},
		{name: "middle", pixelX: 400, want: windowStart.Add(4 * time.Hour)},
		{name: "one hour", pixelX: 100, want: windowStart.Add(time.Hour)},
		{name: "left of window", pixelX: -50, want: windowStart.Add(-30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := timeline.ToTime(tt.pixelX, windowStart, windowEnd, 800)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDegenerateWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		width float64
	}{
		{name: "zero width", start: windowStart, end: windowEnd, width: 0},
		{name: "negative width", start: windowStart, end: windowEnd, width: -10},
		{name: "NaN width", start: windowStart, end: windowEnd, width: math.NaN()},
		{name: "empty span", start: windowStart, end: windowStart, width: 800},
		{name: "reversed span", start: windowEnd, end: windowStart, width: 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := timeline.ToTime(10, tt.start, tt.end, tt.width)
			require.ErrorIs(t, err, timeline.ErrDegenerateWindow)

			_, err = timeline.ToPixel(windowStart, tt.start, tt.end, tt.width)
			require.ErrorIs(t, err, timeline.ErrDegenerateWindow)

			_, err = timeline.NewMapper(tt.start, tt.end, tt.width)
			require.ErrorIs(t, err, timeline.ErrDegenerateWindow)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	widths := []float64{1, 333, 800, 1920.5}
	for _, width := range widths {
		for i := 0; i <= 100; i++ {
			pixelX := width * float64(i) / 100

			ts, err := timeline.ToTime(pixelX, windowStart, windowEnd, width)
			require.NoError(t, err)

			back, err := timeline.ToPixel(ts, windowStart, windowEnd, width)
			require.NoError(t, err)
			assert.InDelta(t, pixelX, back, 1e-6, "width %v pixel %v", width, pixelX)
		}
	}
}

func TestSnap(t *testing.T) {
	t.Parallel()

	base := time.Date(2030, 8, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   time.Time
		grid int
		want time.Time
	}{
		{name: "no grid keeps value", ts: base.Add(7 * time.Minute), grid: 0, want: base.Add(7 * time.Minute)},
		{name: "negative grid keeps value", ts: base.Add(7 * time.Minute), grid: -15, want: base.Add(7 * time.Minute)},
		{name: "rounds down", ts: base.Add(7 * time.Minute), grid: 15, want: base},
		{name: "rounds up", ts: base.Add(8 * time.Minute), grid: 15, want: base.Add(15 * time.Minute)},
		{name: "half rounds up", ts: base.Add(7*time.Minute + 30*time.Second), grid: 15, want: base.Add(15 * time.Minute)},
		{name: "on grid", ts: base.Add(30 * time.Minute), grid: 15, want: base.Add(30 * time.Minute)},
		{name: "hour grid", ts: base.Add(31 * time.Minute), grid: 60, want: base.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := timeline.Snap(tt.ts, tt.grid)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMapper(t *testing.T) {
	t.Parallel()

	mapper, err := timeline.NewMapper(windowStart, windowEnd, 800)
	require.NoError(t, err)

	left, width := mapper.Span(windowStart.Add(time.Hour), windowStart.Add(90*time.Minute))
	assert.InDelta(t, 100, left, 1e-9)
	assert.InDelta(t, 50, width, 1e-9)

	x, ok := mapper.NowPosition(windowStart.Add(2 * time.Hour))
	assert.True(t, ok)
	assert.InDelta(t, 200, x, 1e-9)

	x, ok = mapper.NowPosition(windowEnd.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, -1.0, x)

	op := models.Operation{Start: windowStart, End: windowStart.Add(45 * time.Minute)}
	start, end := mapper.Candidate(op, 651, 15)
	assert.True(t, windowStart.Add(6*time.Hour+30*time.Minute).Equal(start), "got %s", start)
	assert.Equal(t, 45*time.Minute, end.Sub(start))
}
