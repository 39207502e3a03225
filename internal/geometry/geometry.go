// Package geometry holds the pure 2D math used by the diagram engine:
// points, boxes, rotated frames, affine transforms and segment tests.
// Angles are in degrees and the y axis grows downwards (screen space).
package geometry

import "math"

// Point is a position in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Midpoint returns the point halfway between p and q.
func Midpoint(p, q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Box is an axis-aligned box given by its edges.
type Box struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func (b Box) Width() float64  { return b.Right - b.Left }
func (b Box) Height() float64 { return b.Bottom - b.Top }

// Center returns the center point of the box.
func (b Box) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Expand grows the box by margin on every side.
func (b Box) Expand(margin float64) Box {
	return Box{
		Top:    b.Top - margin,
		Left:   b.Left - margin,
		Right:  b.Right + margin,
		Bottom: b.Bottom + margin,
	}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	return Box{
		Top:    math.Min(b.Top, other.Top),
		Left:   math.Min(b.Left, other.Left),
		Right:  math.Max(b.Right, other.Right),
		Bottom: math.Max(b.Bottom, other.Bottom),
	}
}

// Contains reports whether the point lies inside the box or on its edge.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// ContainsStrict reports whether the point lies strictly inside the box.
func (b Box) ContainsStrict(p Point) bool {
	return p.X > b.Left && p.X < b.Right && p.Y > b.Top && p.Y < b.Bottom
}

// Corners returns the four corners clockwise from the top-left.
func (b Box) Corners() [4]Point {
	return [4]Point{
		{X: b.Left, Y: b.Top},
		{X: b.Right, Y: b.Top},
		{X: b.Right, Y: b.Bottom},
		{X: b.Left, Y: b.Bottom},
	}
}

// Frame is the center-based geometry of a node.
type Frame struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

// Center returns the frame's center point.
func (f Frame) Center() Point {
	return Point{X: f.X, Y: f.Y}
}

// Box returns the axis-aligned bounding box of the rotated frame.
func (f Frame) Box() Box {
	corners := FrameCorners(f)
	return BoundingBoxOfPoints(corners[:])
}

// Contains reports whether (x, y) lies within the rotated frame.
func (f Frame) Contains(x, y float64) bool {
	local := RotatePoint(x, y, f.X, f.Y, -f.Rotation)
	return math.Abs(local.X-f.X) <= f.Width/2 && math.Abs(local.Y-f.Y) <= f.Height/2
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// AffineTransform scales (px, py) by (sx, sy), rotates it by theta degrees
// around the origin and then translates it by (tx, ty).
func AffineTransform(px, py, sx, sy, theta, tx, ty float64) Point {
	if theta == 0 {
		return Point{X: px*sx + tx, Y: py*sy + ty}
	}
	rad := Radians(theta)
	cos, sin := math.Cos(rad), math.Sin(rad)
	x, y := px*sx, py*sy
	return Point{
		X: x*cos - y*sin + tx,
		Y: x*sin + y*cos + ty,
	}
}

// RotatePoint rotates (px, py) by theta degrees around (cx, cy).
func RotatePoint(px, py, cx, cy, theta float64) Point {
	if theta == 0 {
		return Point{X: px, Y: py}
	}
	return AffineTransform(px-cx, py-cy, 1, 1, theta, cx, cy)
}

// FrameCorners returns the four corners of the rotated frame, clockwise
// from the corner that is top-left before rotation.
func FrameCorners(f Frame) [4]Point {
	hw, hh := f.Width/2, f.Height/2
	return [4]Point{
		RotatePoint(f.X-hw, f.Y-hh, f.X, f.Y, f.Rotation),
		RotatePoint(f.X+hw, f.Y-hh, f.X, f.Y, f.Rotation),
		RotatePoint(f.X+hw, f.Y+hh, f.X, f.Y, f.Rotation),
		RotatePoint(f.X-hw, f.Y+hh, f.X, f.Y, f.Rotation),
	}
}

// BoundingBoxOfPoints returns the smallest box containing every point.
// It panics on an empty slice.
func BoundingBoxOfPoints(points []Point) Box {
	if len(points) == 0 {
		panic("geometry: bounding box of zero points")
	}
	box := Box{Top: points[0].Y, Left: points[0].X, Right: points[0].X, Bottom: points[0].Y}
	for _, p := range points[1:] {
		box.Left = math.Min(box.Left, p.X)
		box.Right = math.Max(box.Right, p.X)
		box.Top = math.Min(box.Top, p.Y)
		box.Bottom = math.Max(box.Bottom, p.Y)
	}
	return box
}

// OrientedBox converts a box expressed in a node's unrotated local frame
// (rotated around (cx, cy)) back into a center and size: the two opposite
// corners are rotated into scene space and their midpoint becomes the center.
func OrientedBox(box Box, cx, cy, rotation float64) Frame {
	tl := RotatePoint(box.Left, box.Top, cx, cy, rotation)
	br := RotatePoint(box.Right, box.Bottom, cx, cy, rotation)
	center := Midpoint(tl, br)
	return Frame{
		X:        center.X,
		Y:        center.Y,
		Width:    box.Width(),
		Height:   box.Height(),
		Rotation: rotation,
		ScaleX:   1,
		ScaleY:   1,
	}
}
