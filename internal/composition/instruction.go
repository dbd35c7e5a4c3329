package composition

import (
	"fmt"

	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/transform"
)

// OpacityRamp is a linear opacity ramp over an instruction's time range.
// From == To expresses constant opacity.
type OpacityRamp struct {
	From float64
	To   float64
}

// Opaque is the constant fully-visible ramp.
func Opaque() OpacityRamp {
	return OpacityRamp{From: 1, To: 1}
}

// FadeIn ramps 0 -> 1 over the instruction window.
func FadeIn() OpacityRamp {
	return OpacityRamp{From: 0, To: 1}
}

// FadeOut ramps 1 -> 0 over the instruction window.
func FadeOut() OpacityRamp {
	return OpacityRamp{From: 1, To: 0}
}

// IsConstant reports whether the ramp holds a single value.
func (r OpacityRamp) IsConstant() bool {
	return r.From == r.To
}

// At returns the opacity at fraction f of the instruction window.
func (r OpacityRamp) At(f float64) float64 {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return r.From + (r.To-r.From)*f
}

// LayerTransform directs how one track's samples are placed and blended
// during an instruction window.
type LayerTransform struct {
	Track     TrackID
	Transform transform.Affine
	Opacity   OpacityRamp
}

// Instruction is a time-scoped set of layer directives. At any instant at
// most one instruction is active, except inside a transition window where
// exactly two overlap.
type Instruction struct {
	Range  mediatime.Range
	Layers []LayerTransform
}

// ValidateInstructions checks the instruction invariant: windows are sorted
// by start, and no instant is covered by more than one instruction. The
// transition exception lives inside a single instruction carrying two layers,
// so overlapping windows are always a build error.
func ValidateInstructions(instructions []Instruction) error {
	for i, in := range instructions {
		if !in.Range.Duration.IsPositive() {
			return &BuildError{Reason: fmt.Sprintf(
				"instruction %d window %s has non-positive duration", i, in.Range)}
		}
		if len(in.Layers) == 0 {
			return &BuildError{Reason: fmt.Sprintf("instruction %d has no layers", i)}
		}
		if len(in.Layers) > 2 {
			return &BuildError{Reason: fmt.Sprintf(
				"instruction %d has %d layers; at most two may blend", i, len(in.Layers))}
		}
		if i > 0 {
			prev := instructions[i-1]
			if prev.Range.End().Cmp(in.Range.Start) > 0 {
				return &BuildError{Reason: fmt.Sprintf(
					"instruction %d window %s overlaps previous %s",
					i, in.Range, prev.Range)}
			}
		}
	}
	return nil
}
