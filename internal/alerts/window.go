package alerts

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window starts after it stops.
var ErrInvalidWindow = errors.New("window start is after window stop")

const day = 24 * time.Hour

// Window is a sliding notification-time window ending Delay days before
// now and spanning Size days. RepeatCycle is how often clients refresh.
type Window struct {
	Delay       float64       `json:"window_delay"`
	Size        float64       `json:"window_size"`
	RepeatCycle time.Duration `json:"-"`
}

// Range is a closed notification-time interval.
type Range struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

// Validate reports whether the window parameters are usable.
func (w Window) Validate() error {
	if w.Delay < 0 {
		return fmt.Errorf("window delay must not be negative: %v", w.Delay)
	}
	if w.Size <= 0 {
		return fmt.Errorf("window size must be positive: %v", w.Size)
	}
	if w.RepeatCycle < 0 {
		return fmt.Errorf("repeat cycle must not be negative: %v", w.RepeatCycle)
	}
	return nil
}

// Resolve anchors the window at now.
func (w Window) Resolve(now time.Time) Range {
	stop := now.Add(-days(w.Delay))
	return Range{Start: stop.Add(-days(w.Size)), Stop: stop}
}

// RangeFromFilters resolves user-supplied bounds. A missing bound is
// derived from the other one and size days; with no bounds the default
// window applies.
func RangeFromFilters(start, stop *time.Time, size float64, def Window, now time.Time) (Range, error) {
	var r Range
	switch {
	case start != nil && stop != nil:
		r = Range{Start: *start, Stop: *stop}
	case start != nil:
		r = Range{Start: *start, Stop: start.Add(days(size))}
	case stop != nil:
		r = Range{Start: stop.Add(-days(size)), Stop: *stop}
	default:
		r = def.Resolve(now)
	}
	if r.Start.After(r.Stop) {
		return Range{}, ErrInvalidWindow
	}
	return r, nil
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(day))
}
