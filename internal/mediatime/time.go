// Package mediatime provides rational media time: an integer tick count at a
// fixed timescale, so edit arithmetic stays exact instead of drifting through
// floating point.
package mediatime

import (
	"fmt"
	"time"
)

// DefaultScale is the timescale used for video edit arithmetic. 600 divides
// evenly by all common frame rates (24, 25, 30, 60).
const DefaultScale = 600

// Time is an instant or span expressed as Value ticks at Scale ticks per
// second. The zero value is zero seconds at an unspecified scale.
type Time struct {
	Value int64
	Scale int32
}

// New returns a Time of value ticks at the given scale.
func New(value int64, scale int32) Time {
	if scale <= 0 {
		scale = DefaultScale
	}
	return Time{Value: value, Scale: scale}
}

// FromSeconds converts fractional seconds to a Time at the given scale,
// rounding to the nearest tick.
func FromSeconds(sec float64, scale int32) Time {
	if scale <= 0 {
		scale = DefaultScale
	}
	ticks := sec * float64(scale)
	if ticks >= 0 {
		ticks += 0.5
	} else {
		ticks -= 0.5
	}
	return Time{Value: int64(ticks), Scale: scale}
}

// FromDuration converts a time.Duration to a Time at the given scale.
func FromDuration(d time.Duration, scale int32) Time {
	return FromSeconds(d.Seconds(), scale)
}

// Seconds returns the time as fractional seconds.
func (t Time) Seconds() float64 {
	if t.Scale == 0 {
		return 0
	}
	return float64(t.Value) / float64(t.Scale)
}

// Duration returns the time as a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t.Seconds() * float64(time.Second))
}

// Rescale converts t to a different timescale, rounding to the nearest tick.
func (t Time) Rescale(scale int32) Time {
	if scale <= 0 {
		scale = DefaultScale
	}
	if t.Scale == scale {
		return t
	}
	if t.Scale == 0 {
		return Time{Value: 0, Scale: scale}
	}
	num := t.Value * int64(scale)
	den := int64(t.Scale)
	// round half away from zero
	if num >= 0 {
		num += den / 2
	} else {
		num -= den / 2
	}
	return Time{Value: num / den, Scale: scale}
}

// Add returns t + o in t's timescale.
func (t Time) Add(o Time) Time {
	if t.Scale == 0 {
		t.Scale = o.Scale
	}
	o = o.Rescale(t.Scale)
	return Time{Value: t.Value + o.Value, Scale: t.Scale}
}

// Sub returns t - o in t's timescale.
func (t Time) Sub(o Time) Time {
	if t.Scale == 0 {
		t.Scale = o.Scale
	}
	o = o.Rescale(t.Scale)
	return Time{Value: t.Value - o.Value, Scale: t.Scale}
}

// Cmp compares two times across timescales: -1 if t < o, 0 if equal, 1 if
// t > o.
func (t Time) Cmp(o Time) int {
	ts, os := int64(t.Scale), int64(o.Scale)
	if ts == 0 {
		ts = 1
	}
	if os == 0 {
		os = 1
	}
	a := t.Value * os
	b := o.Value * ts
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether t represents zero seconds.
func (t Time) IsZero() bool {
	return t.Value == 0
}

// IsPositive reports whether t is strictly greater than zero.
func (t Time) IsPositive() bool {
	return t.Value > 0
}

// Min returns the smaller of two times.
func Min(a, b Time) Time {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of two times.
func Max(a, b Time) Time {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// ApproxEqual reports whether t and o differ by no more than epsilon.
// Used where two pipelines quantize the same duration at different
// timescales.
func (t Time) ApproxEqual(o, epsilon Time) bool {
	d := t.Sub(o)
	if d.Value < 0 {
		d.Value = -d.Value
	}
	return d.Cmp(epsilon) <= 0
}

func (t Time) String() string {
	return fmt.Sprintf("%d/%d (%.3fs)", t.Value, t.Scale, t.Seconds())
}
