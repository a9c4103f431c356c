package schedule

import (
	"fmt"
	"time"
)

// TimeRange is a half-open interval [Start, End) of absolute timestamps.
// Construction enforces Start < End, so zero-duration ranges never exist.
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange validates and builds a TimeRange.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{start: start, end: end}, nil
}

// Start returns the inclusive lower bound.
func (r TimeRange) Start() time.Time { return r.start }

// End returns the exclusive upper bound.
func (r TimeRange) End() time.Time { return r.end }

// Duration returns the length of the interval.
func (r TimeRange) Duration() time.Duration { return r.end.Sub(r.start) }

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (a.End == b.Start) do not count as overlapping, so back-to-back
// lessons never conflict.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.start.Before(other.end) && other.start.Before(r.end)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.start.Format("Mon 15:04"), r.end.Format("Mon 15:04"))
}
