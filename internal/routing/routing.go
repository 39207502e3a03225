// Package routing computes orthogonal connector paths between anchors on
// shapes so that the path leaves and enters perpendicular to the shape edge
// and avoids both shapes.
package routing

import (
	"math"
	"slices"

	"github.com/inamate/diagram/internal/geometry"
)

// Margin is the default clearance kept between a connector and the shapes
// it connects.
const Margin = 20.0

const eps = 1e-9

// Direction is the side of its shape an anchor faces.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Classify buckets the angle from a shape's center to one of its anchors into
// a cardinal direction using 45 degree windows. Screen coordinates: y grows
// downwards.
func Classify(center, anchor geometry.Point) Direction {
	angle := geometry.Degrees(math.Atan2(anchor.Y-center.Y, anchor.X-center.X))
	switch {
	case angle >= -45 && angle <= 45:
		return Right
	case angle > 45 && angle < 135:
		return Down
	case angle >= 135 || angle <= -135:
		return Left
	default:
		return Up
	}
}

// Anchor is a connector endpoint: the point on the shape, the side it faces
// and the axis-aligned box of the owning shape.
type Anchor struct {
	Point     geometry.Point
	Direction Direction
	Box       geometry.Box
}

// NewAnchor builds the anchor for point on a shape with the given frame.
func NewAnchor(shape geometry.Frame, point geometry.Point) Anchor {
	return Anchor{
		Point:     point,
		Direction: Classify(shape.Center(), point),
		Box:       shape.Box(),
	}
}

// The elbow logic is written once for an anchor facing Up. Other directions
// are mapped onto it by exact axis swaps and negations, so no rounding is
// introduced and all four directions behave identically up to symmetry.

func toUp(d Direction, p geometry.Point) geometry.Point {
	switch d {
	case Down:
		return geometry.Point{X: p.X, Y: -p.Y}
	case Left:
		return geometry.Point{X: p.Y, Y: p.X}
	case Right:
		return geometry.Point{X: p.Y, Y: -p.X}
	}
	return p
}

func fromUp(d Direction, p geometry.Point) geometry.Point {
	switch d {
	case Down:
		return geometry.Point{X: p.X, Y: -p.Y}
	case Left:
		return geometry.Point{X: p.Y, Y: p.X}
	case Right:
		return geometry.Point{X: -p.Y, Y: p.X}
	}
	return p
}

func boxToUp(d Direction, b geometry.Box) geometry.Box {
	c := b.Corners()
	return geometry.BoundingBoxOfPoints([]geometry.Point{
		toUp(d, c[0]), toUp(d, c[1]), toUp(d, c[2]), toUp(d, c[3]),
	})
}

// Stub returns the point where a connector leaving a exits the shape's
// margin box.
func Stub(a Anchor, margin float64) geometry.Point {
	s := toUp(a.Direction, a.Point)
	box := boxToUp(a.Direction, a.Box).Expand(margin)
	return fromUp(a.Direction, geometry.Point{X: s.X, Y: box.Top})
}

// PathOnDrag returns the path from anchor a to target: a stub perpendicular
// to the shape out of its margin box, then an elbow toward target. When the
// target lies behind the anchor the path detours around the nearer side of
// the margin box. Every corner lies outside or on the margin box.
func PathOnDrag(a Anchor, target geometry.Point, margin float64) []geometry.Point {
	s := toUp(a.Direction, a.Point)
	e := toUp(a.Direction, target)
	box := boxToUp(a.Direction, a.Box).Expand(margin)

	var pts []geometry.Point
	stub := geometry.Point{X: s.X, Y: box.Top}
	switch {
	case e.Y <= stub.Y:
		pts = []geometry.Point{s, {X: s.X, Y: e.Y}, e}
	case e.X <= box.Left || e.X >= box.Right:
		pts = []geometry.Point{s, stub, {X: e.X, Y: stub.Y}, e}
	default:
		side := box.Right
		if math.Abs(e.X-box.Left) <= math.Abs(e.X-box.Right) {
			side = box.Left
		}
		pts = []geometry.Point{s, stub, {X: side, Y: stub.Y}, {X: side, Y: e.Y}, e}
	}

	out := make([]geometry.Point, 0, len(pts))
	for _, p := range pts {
		p = fromUp(a.Direction, p)
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

type candidate struct {
	point    geometry.Point
	goodness int
}

// Route returns the best orthogonal path from start to end. Candidate
// waypoints are the two stub points, their midpoint and the grid points
// formed by crossing their axes. Paths avoiding both margin boxes win over
// paths that cross one; among those the shortest wins, then the one with
// fewest turns, then the one through the best waypoint, then the earliest.
func Route(start, end Anchor, margin float64) []geometry.Point {
	startBox := start.Box.Expand(margin)
	endBox := end.Box.Expand(margin)

	s2 := Stub(start, margin)
	e2 := Stub(end, margin)
	cands := []candidate{
		{point: s2, goodness: 1},
		{point: e2, goodness: 1},
		{point: geometry.Midpoint(s2, e2), goodness: 2},
	}
	cands = addGridCrossPoints(cands)

	type scored struct {
		path     []geometry.Point
		length   float64
		turns    int
		goodness int
	}
	var clean, crossing []scored
	for _, c := range cands {
		path := slices.Clone(PathOnDrag(start, c.point, margin))
		back := PathOnDrag(end, c.point, margin)
		slices.Reverse(back)
		path = CleanPath(append(path, back...))

		sc := scored{path: path, length: Length(path), turns: Turns(path), goodness: c.goodness}
		if intersects(path, start.Box, end.Box, startBox, endBox) {
			crossing = append(crossing, sc)
		} else {
			clean = append(clean, sc)
		}
	}

	bucket := clean
	if len(bucket) == 0 {
		bucket = crossing
	}
	best := bucket[0]
	for _, sc := range bucket[1:] {
		if better := func() bool {
			if math.Abs(sc.length-best.length) > eps {
				return sc.length < best.length
			}
			if sc.turns != best.turns {
				return sc.turns < best.turns
			}
			return sc.goodness > best.goodness
		}(); better {
			best = sc
		}
	}
	return best.path
}

// addGridCrossPoints adds, for every ordered pair of points, the point on
// the first's vertical and the second's horizontal line. Runs exactly once
// so coincident stubs cannot make it grow without bound.
func addGridCrossPoints(base []candidate) []candidate {
	out := slices.Clone(base)
	seen := make(map[geometry.Point]bool, len(base)*3)
	for _, c := range base {
		seen[c.point] = true
	}
	for _, a := range base {
		for _, b := range base {
			for _, p := range []geometry.Point{{X: a.point.X, Y: b.point.Y}, {X: b.point.X, Y: a.point.Y}} {
				if seen[p] {
					continue
				}
				seen[p] = true
				out = append(out, candidate{point: p})
			}
		}
	}
	return out
}

// intersects reports whether the path cuts into a shape. The first segment
// leaves the start shape from its edge, so against the start side it is only
// tested against the shape itself; likewise for the last segment and the end
// shape.
func intersects(path []geometry.Point, startShape, endShape, startMargin, endMargin geometry.Box) bool {
	last := len(path) - 2
	for i := 0; i <= last; i++ {
		a, b := path[i], path[i+1]
		sb, eb := startMargin, endMargin
		if i == 0 {
			sb = startShape
		}
		if i == last {
			eb = endShape
		}
		if geometry.SegmentIntersectsBox(a, b, sb) || geometry.SegmentIntersectsBox(a, b, eb) {
			return true
		}
	}
	return false
}

// CleanPath drops consecutive duplicate points and collapses runs of
// colinear points to their ends. CleanPath(CleanPath(p)) == CleanPath(p).
func CleanPath(points []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		for len(out) >= 2 && geometry.Colinear(out[len(out)-2], out[len(out)-1], p) {
			out = out[:len(out)-1]
		}
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Length is the total Euclidean length of the path.
func Length(points []geometry.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += geometry.Distance(points[i-1], points[i])
	}
	return total
}

// Turns counts the interior points at which the path changes direction.
func Turns(points []geometry.Point) int {
	turns := 0
	for i := 1; i+1 < len(points); i++ {
		if !geometry.Colinear(points[i-1], points[i], points[i+1]) {
			turns++
		}
	}
	return turns
}
