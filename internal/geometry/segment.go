package geometry

import "math"

const epsilon = 1e-9

// SegmentIntersectsBox reports whether the segment a-b passes through the
// interior of the box. Touching an edge or running along it does not count.
func SegmentIntersectsBox(a, b Point, box Box) bool {
	switch {
	case a.Y == b.Y:
		if a.Y <= box.Top || a.Y >= box.Bottom {
			return false
		}
		lo, hi := math.Min(a.X, b.X), math.Max(a.X, b.X)
		return math.Min(hi, box.Right)-math.Max(lo, box.Left) > epsilon ||
			(lo == hi && lo > box.Left && lo < box.Right)
	case a.X == b.X:
		if a.X <= box.Left || a.X >= box.Right {
			return false
		}
		lo, hi := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
		return math.Min(hi, box.Bottom)-math.Max(lo, box.Top) > epsilon
	}

	// Liang-Barsky clipping for diagonal segments.
	dx, dy := b.X-a.X, b.Y-a.Y
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q > 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return false
			}
			t1 = math.Min(t1, r)
		}
		return true
	}
	if !clip(-dx, a.X-box.Left) || !clip(dx, box.Right-a.X) ||
		!clip(-dy, a.Y-box.Top) || !clip(dy, box.Bottom-a.Y) {
		return false
	}
	if t1-t0 <= epsilon {
		return false
	}
	mid := Point{X: a.X + dx*(t0+t1)/2, Y: a.Y + dy*(t0+t1)/2}
	return box.ContainsStrict(mid)
}

// Distance returns the euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Colinear reports whether the three points lie on one line.
func Colinear(a, b, c Point) bool {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	return math.Abs(cross) <= epsilon
}
