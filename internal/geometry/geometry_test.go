package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

func assertPoint(t *testing.T, want, got Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, "x")
	assert.InDelta(t, want.Y, got.Y, tolerance, "y")
}

func TestAffineTransformFastPathMatchesGeneral(t *testing.T) {
	fast := AffineTransform(3, 4, 2, 0.5, 0, 10, -10)
	assertPoint(t, Point{X: 16, Y: -8}, fast)

	// A full turn must land on the same point as no rotation.
	general := AffineTransform(3, 4, 2, 0.5, 360, 10, -10)
	assertPoint(t, fast, general)
}

func TestRotatePoint(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
		want  Point
	}{
		{"quarter turn", 90, Point{X: 10, Y: 20}},
		{"half turn", 180, Point{X: 0, Y: 10}},
		{"minus quarter", -90, Point{X: 10, Y: 0}},
		{"none", 0, Point{X: 20, Y: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RotatePoint(20, 10, 10, 10, tt.theta)
			assertPoint(t, tt.want, got)
		})
	}
}

func TestFrameCornersAndBox(t *testing.T) {
	f := Frame{X: 50, Y: 50, Width: 40, Height: 20, ScaleX: 1, ScaleY: 1}
	corners := FrameCorners(f)
	assertPoint(t, Point{X: 30, Y: 40}, corners[0])
	assertPoint(t, Point{X: 70, Y: 60}, corners[2])

	f.Rotation = 90
	box := f.Box()
	assert.InDelta(t, 40, box.Left, tolerance)
	assert.InDelta(t, 60, box.Right, tolerance)
	assert.InDelta(t, 30, box.Top, tolerance)
	assert.InDelta(t, 70, box.Bottom, tolerance)
}

func TestBoundingBoxOfPointsPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { BoundingBoxOfPoints(nil) })
}

func TestOrientedBoxRoundTrip(t *testing.T) {
	f := Frame{X: 120, Y: -30, Width: 80, Height: 30, Rotation: 30, ScaleX: 1, ScaleY: 1}

	// Express the frame in its own unrotated local space, then convert back.
	local := Box{
		Left:   f.X - f.Width/2,
		Right:  f.X + f.Width/2,
		Top:    f.Y - f.Height/2,
		Bottom: f.Y + f.Height/2,
	}
	got := OrientedBox(local, f.X, f.Y, f.Rotation)
	assert.InDelta(t, f.X, got.X, tolerance)
	assert.InDelta(t, f.Y, got.Y, tolerance)
	assert.InDelta(t, f.Width, got.Width, tolerance)
	assert.InDelta(t, f.Height, got.Height, tolerance)
	assert.Equal(t, f.Rotation, got.Rotation)
}

func TestFrameContainsRotated(t *testing.T) {
	f := Frame{X: 0, Y: 0, Width: 100, Height: 10, Rotation: 90, ScaleX: 1, ScaleY: 1}
	assert.True(t, f.Contains(0, 45))
	assert.False(t, f.Contains(45, 0))
}

func TestSegmentIntersectsBox(t *testing.T) {
	box := Box{Top: 0, Left: 0, Right: 100, Bottom: 100}
	tests := []struct {
		name string
		a, b Point
		want bool
	}{
		{"horizontal through", Point{X: -10, Y: 50}, Point{X: 110, Y: 50}, true},
		{"horizontal on edge", Point{X: -10, Y: 0}, Point{X: 110, Y: 0}, false},
		{"horizontal outside", Point{X: -10, Y: 150}, Point{X: 110, Y: 150}, false},
		{"vertical ends at edge", Point{X: 50, Y: -20}, Point{X: 50, Y: 0}, false},
		{"vertical enters", Point{X: 50, Y: -20}, Point{X: 50, Y: 10}, true},
		{"diagonal through", Point{X: -10, Y: -10}, Point{X: 110, Y: 110}, true},
		{"diagonal corner graze", Point{X: -10, Y: 10}, Point{X: 10, Y: -10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentIntersectsBox(tt.a, tt.b, box))
		})
	}
}

func TestMatrixFromFrameMatchesRotatePoint(t *testing.T) {
	f := Frame{X: 10, Y: 20, Width: 4, Height: 4, Rotation: 45, ScaleX: 1, ScaleY: 1}
	m := FromFrame(f)
	x, y := m.TransformPoint(2, 0)
	want := RotatePoint(12, 20, 10, 20, 45)
	assert.InDelta(t, want.X, x, tolerance)
	assert.InDelta(t, want.Y, y, tolerance)

	inv := m.Invert()
	lx, ly := inv.TransformPoint(x, y)
	assert.InDelta(t, 2, lx, tolerance)
	assert.InDelta(t, 0, ly, tolerance)
	assert.InDeltaSlice(t, Identity().ToSlice(), m.Multiply(inv).ToSlice(), tolerance)
	assert.False(t, math.IsNaN(m.Determinant()))
}

func TestMatrixFromFrameScalesBeforeRotating(t *testing.T) {
	m := FromFrame(Frame{X: 100, Y: 50, Rotation: 90, ScaleX: 2, ScaleY: 1})
	x, y := m.TransformPoint(10, 0)
	assert.InDelta(t, 100, x, tolerance)
	assert.InDelta(t, 70, y, tolerance)

	x, y = Translate(5, 5).Multiply(Scale(3, 3)).TransformPoint(1, 1)
	assert.InDelta(t, 8, x, tolerance)
	assert.InDelta(t, 8, y, tolerance)
}
