// Package transform resolves clip geometry: oriented frame sizes and
// corrected affine transforms that keep every rendered sample at
// non-negative coordinates.
package transform

import (
	"fmt"
	"math"
)

// Size is a frame size in pixels. Float components because transformed
// bounding boxes are not generally integral.
type Size struct {
	Width  float64
	Height float64
}

func (s Size) String() string {
	return fmt.Sprintf("%.0fx%.0f", s.Width, s.Height)
}

// Aspect returns width over height, or 0 for a degenerate size.
func (s Size) Aspect() float64 {
	if s.Height == 0 {
		return 0
	}
	return s.Width / s.Height
}

// Affine is a 2D affine transform mapping (x, y) to
// (A*x + C*y + TX, B*x + D*y + TY).
type Affine struct {
	A, B, C, D, TX, TY float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a transform that shifts by (tx, ty).
func Translation(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, TX: tx, TY: ty}
}

// Scale returns a transform that scales by (sx, sy).
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotation returns a counterclockwise rotation by the given angle in radians.
func Rotation(radians float64) Affine {
	sin, cos := math.Sin(radians), math.Cos(radians)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// RotationDegrees returns a rotation by whole degrees, exact for multiples of
// 90 so that container rotation metadata does not pick up float noise.
func RotationDegrees(deg float64) Affine {
	switch math.Mod(math.Mod(deg, 360)+360, 360) {
	case 0:
		return Identity()
	case 90:
		return Affine{B: 1, C: -1}
	case 180:
		return Affine{A: -1, D: -1}
	case 270:
		return Affine{B: -1, C: 1}
	}
	return Rotation(deg * math.Pi / 180)
}

// Concat returns the transform that applies t first, then o.
func (t Affine) Concat(o Affine) Affine {
	return Affine{
		A:  t.A*o.A + t.B*o.C,
		B:  t.A*o.B + t.B*o.D,
		C:  t.C*o.A + t.D*o.C,
		D:  t.C*o.B + t.D*o.D,
		TX: t.TX*o.A + t.TY*o.C + o.TX,
		TY: t.TX*o.B + t.TY*o.D + o.TY,
	}
}

// Apply maps a point through the transform.
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.TX, t.B*x + t.D*y + t.TY
}

// IsIdentity reports whether t is exactly the identity.
func (t Affine) IsIdentity() bool {
	return t == Identity()
}

// boundingBox returns the axis-aligned bounds of the natural rect after t.
func boundingBox(natural Size, t Affine) (minX, minY, maxX, maxY float64) {
	corners := [4][2]float64{
		{0, 0},
		{natural.Width, 0},
		{0, natural.Height},
		{natural.Width, natural.Height},
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := t.Apply(c[0], c[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

// OrientedSize returns the rendered frame size of a clip: the absolute
// bounding box of its natural rect under the raw orientation transform.
func OrientedSize(natural Size, raw Affine) Size {
	minX, minY, maxX, maxY := boundingBox(natural, raw)
	return Size{Width: maxX - minX, Height: maxY - minY}
}

// Corrected composes the raw transform with a translation that moves the
// bounding box's minimum corner to the origin. Every sample then lands in
// [0, OrientedSize].
func Corrected(natural Size, raw Affine) Affine {
	minX, minY, _, _ := boundingBox(natural, raw)
	return raw.Concat(Translation(-minX, -minY))
}

// Fit returns a transform that uniformly scales content into canvas, centered
// with letterbox or pillarbox bars. No distortion: one axis fills, the other
// is padded.
func Fit(content, canvas Size) Affine {
	if content.Width <= 0 || content.Height <= 0 {
		return Identity()
	}
	scale := math.Min(canvas.Width/content.Width, canvas.Height/content.Height)
	tx := (canvas.Width - content.Width*scale) / 2
	ty := (canvas.Height - content.Height*scale) / 2
	return Scale(scale, scale).Concat(Translation(tx, ty))
}
