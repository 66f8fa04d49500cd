// Package timeline maps horizontal pixel offsets on a rendered machine timeline to timestamps and back.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dukex/machineline/pkg/models"
)

// ErrDegenerateWindow is returned when the pixel width or the visible time span is not strictly positive.
var ErrDegenerateWindow = errors.New("degenerate timeline window")

// ToTime converts a pixel offset into the timestamp it represents inside the window.
func ToTime(pixelX float64, windowStart, windowEnd time.Time, pixelWidth float64) (time.Time, error) {
	span, err := checkWindow(windowStart, windowEnd, pixelWidth)
	if err != nil {
		return time.Time{}, err
	}

	offset := math.Round(pixelX * float64(span) / pixelWidth)

	return windowStart.Add(time.Duration(offset)), nil
}

// ToPixel is the inverse of ToTime.
func ToPixel(ts, windowStart, windowEnd time.Time, pixelWidth float64) (float64, error) {
	span, err := checkWindow(windowStart, windowEnd, pixelWidth)
	if err != nil {
		return 0, err
	}

	return float64(ts.Sub(windowStart)) * pixelWidth / float64(span), nil
}

// Snap rounds ts to the nearest multiple of gridMinutes. Halfway values round up (later).
// Grids are aligned on UTC midnight whenever gridMinutes divides a day. gridMinutes <= 0 disables snapping.
func Snap(ts time.Time, gridMinutes int) time.Time {
	if gridMinutes <= 0 {
		return ts
	}

	return ts.Round(time.Duration(gridMinutes) * time.Minute)
}

func checkWindow(windowStart, windowEnd time.Time, pixelWidth float64) (time.Duration, error) {
	if !(pixelWidth > 0) || math.IsInf(pixelWidth, 0) {
		return 0, fmt.Errorf("%w: pixel width must be positive, got %v", ErrDegenerateWindow, pixelWidth)
	}

	span := windowEnd.Sub(windowStart)
	if span <= 0 {
		return 0, fmt.Errorf("%w: window end %s is not after start %s", ErrDegenerateWindow,
			windowEnd.Format(time.RFC3339), windowStart.Format(time.RFC3339))
	}

	return span, nil
}

// Mapper binds the coordinate transform to one visible window and pixel width.
type Mapper struct {
	Start time.Time
	End   time.Time
	Width float64
}

// NewMapper validates the window once so the methods below cannot fail.
func NewMapper(start, end time.Time, width float64) (Mapper, error) {
	if _, err := checkWindow(start, end, width); err != nil {
		return Mapper{}, err
	}

	return Mapper{Start: start, End: end, Width: width}, nil
}

func (m Mapper) ToTime(pixelX float64) time.Time {
	ts, _ := ToTime(pixelX, m.Start, m.End, m.Width)

	return ts
}

func (m Mapper) ToPixel(ts time.Time) float64 {
	x, _ := ToPixel(ts, m.Start, m.End, m.Width)

	return x
}

// Span returns the left offset and width in pixels of a bar covering [start, end).
func (m Mapper) Span(start, end time.Time) (left, width float64) {
	left = m.ToPixel(start)

	return left, m.ToPixel(end) - left
}

// NowPosition returns the pixel offset of now, or false when now is outside the window.
func (m Mapper) NowPosition(now time.Time) (float64, bool) {
	if now.Before(m.Start) || now.After(m.End) {
		return -1, false
	}

	return m.ToPixel(now), true
}

// Candidate turns a drop offset into the start and end an operation would get, keeping its duration.
func (m Mapper) Candidate(op models.Operation, pixelX float64, gridMinutes int) (start, end time.Time) {
	start = Snap(m.ToTime(pixelX), gridMinutes)

	return start, start.Add(op.Duration())
}
