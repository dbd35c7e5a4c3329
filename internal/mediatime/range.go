package mediatime

import (
	"fmt"
)

// Range is a start point plus a duration. Duration must be positive for the
// range to be meaningful; Validate enforces this where ranges enter the
// pipeline from outside.
type Range struct {
	Start    Time
	Duration Time
}

// NewRange builds a range from start and duration.
func NewRange(start, duration Time) Range {
	return Range{Start: start, Duration: duration}
}

// RangeFromSeconds builds a range from fractional seconds at DefaultScale.
func RangeFromSeconds(start, duration float64) Range {
	return Range{
		Start:    FromSeconds(start, DefaultScale),
		Duration: FromSeconds(duration, DefaultScale),
	}
}

// End returns the exclusive end point of the range.
func (r Range) End() Time {
	return r.Start.Add(r.Duration)
}

func (r Range) String() string {
	return fmt.Sprintf("[%.3fs +%.3fs]", r.Start.Seconds(), r.Duration.Seconds())
}

// KeptRanges is the ordered set of segments retained after dead-air removal.
// Invariant: sorted ascending, non-overlapping, every duration positive, and
// the summed duration never exceeds the source duration.
type KeptRanges []Range

// TotalDuration sums the durations of all kept ranges.
func (k KeptRanges) TotalDuration() Time {
	total := Time{Scale: DefaultScale}
	for _, r := range k {
		total = total.Add(r.Duration)
	}
	return total
}

// Validate checks the kept-range invariant against the source duration.
func (k KeptRanges) Validate(source Time) error {
	for i, r := range k {
		if !r.Duration.IsPositive() {
			return fmt.Errorf("kept range %d has non-positive duration %s", i, r.Duration)
		}
		if r.Start.Value < 0 {
			return fmt.Errorf("kept range %d starts before zero: %s", i, r.Start)
		}
		if i > 0 && k[i-1].End().Cmp(r.Start) > 0 {
			return fmt.Errorf("kept range %d overlaps previous (prev end %s, start %s)",
				i, k[i-1].End(), r.Start)
		}
	}
	if source.IsPositive() && k.TotalDuration().Cmp(source) > 0 {
		return fmt.Errorf("kept ranges total %s exceeds source duration %s",
			k.TotalDuration(), source)
	}
	return nil
}
