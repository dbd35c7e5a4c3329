package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrientedSizeRotations(t *testing.T) {
	natural := Size{Width: 1920, Height: 1080}

	cases := []struct {
		name string
		deg  float64
		want Size
	}{
		{"upright", 0, Size{1920, 1080}},
		{"portrait", 90, Size{1080, 1920}},
		{"upside down", 180, Size{1920, 1080}},
		{"portrait reversed", 270, Size{1080, 1920}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := OrientedSize(natural, RotationDegrees(c.deg))
			assert.InDelta(t, c.want.Width, got.Width, 1e-9)
			assert.InDelta(t, c.want.Height, got.Height, 1e-9)
		})
	}
}

func TestOrientedSizeMirroring(t *testing.T) {
	natural := Size{Width: 1280, Height: 720}
	mirrored := Scale(-1, 1).Concat(RotationDegrees(90))
	got := OrientedSize(natural, mirrored)
	assert.InDelta(t, 720.0, got.Width, 1e-9)
	assert.InDelta(t, 1280.0, got.Height, 1e-9)
}

func TestCorrectedNeverNegative(t *testing.T) {
	natural := Size{Width: 1920, Height: 1080}

	transforms := []Affine{
		Identity(),
		RotationDegrees(90),
		RotationDegrees(180),
		RotationDegrees(270),
		Rotation(0.7),
		Scale(-1, 1),
		Scale(1, -1).Concat(RotationDegrees(90)),
		RotationDegrees(90).Concat(Translation(-400, 250)),
	}

	for _, raw := range transforms {
		corrected := Corrected(natural, raw)
		oriented := OrientedSize(natural, raw)

		corners := [4][2]float64{
			{0, 0}, {natural.Width, 0}, {0, natural.Height}, {natural.Width, natural.Height},
		}
		for _, c := range corners {
			x, y := corrected.Apply(c[0], c[1])
			assert.GreaterOrEqual(t, x, -1e-9, "corner %v maps to negative x under %+v", c, raw)
			assert.GreaterOrEqual(t, y, -1e-9, "corner %v maps to negative y under %+v", c, raw)
			assert.LessOrEqual(t, x, oriented.Width+1e-9)
			assert.LessOrEqual(t, y, oriented.Height+1e-9)
		}
	}
}

func TestCorrectedPreservesOrientation(t *testing.T) {
	natural := Size{Width: 1920, Height: 1080}
	corrected := Corrected(natural, RotationDegrees(90))

	// bottom-left of the natural frame becomes the origin after a 90° turn
	x, y := corrected.Apply(0, natural.Height)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
}

func TestConcatOrder(t *testing.T) {
	// rotate then translate is not translate then rotate
	rt := RotationDegrees(90).Concat(Translation(10, 0))
	tr := Translation(10, 0).Concat(RotationDegrees(90))

	x1, y1 := rt.Apply(1, 0)
	require.InDelta(t, 10.0, x1, 1e-9)
	require.InDelta(t, 1.0, y1, 1e-9)

	x2, y2 := tr.Apply(1, 0)
	require.InDelta(t, 0.0, x2, 1e-9)
	require.InDelta(t, 11.0, y2, 1e-9)
}

func TestFitLetterboxAndPillarbox(t *testing.T) {
	canvas := Size{Width: 1920, Height: 1080}

	t.Run("pillarbox portrait content", func(t *testing.T) {
		fit := Fit(Size{1080, 1920}, canvas)
		// uniform scale: 1080/1920
		assert.InDelta(t, 0.5625, fit.A, 1e-9)
		assert.InDelta(t, fit.A, fit.D, 1e-9)
		// centered horizontally
		x, _ := fit.Apply(0, 0)
		assert.InDelta(t, (1920.0-1080*0.5625)/2, x, 1e-9)
		_, yBottom := fit.Apply(0, 1920)
		assert.InDelta(t, 1080.0, yBottom, 1e-9)
	})

	t.Run("letterbox wide content", func(t *testing.T) {
		fit := Fit(Size{3840, 1080}, canvas)
		assert.InDelta(t, 0.5, fit.A, 1e-9)
		_, y := fit.Apply(0, 0)
		assert.InDelta(t, (1080.0-540)/2, y, 1e-9)
	})

	t.Run("exact fit has no bars", func(t *testing.T) {
		fit := Fit(Size{1920, 1080}, canvas)
		assert.True(t, fit.IsIdentity())
	})
}

func TestRotationDegreesExact(t *testing.T) {
	// multiples of 90 must be exact, not math.Sin approximations
	r := RotationDegrees(90)
	assert.Zero(t, r.A)
	assert.Zero(t, r.D)
	assert.Equal(t, 1.0, r.B)
	assert.Equal(t, -1.0, r.C)

	assert.Equal(t, RotationDegrees(90), RotationDegrees(-270))
	assert.Equal(t, RotationDegrees(180), RotationDegrees(-180))
	assert.NotEqual(t, Identity(), Rotation(0.3))
	assert.InDelta(t, math.Cos(0.3), Rotation(0.3).A, 1e-12)
}
