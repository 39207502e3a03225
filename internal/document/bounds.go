package document

import (
	"github.com/inamate/diagram/internal/geometry"
)

// UnrotatedChildrenBox returns the bounding box of items in the unrotated
// local frame of a node centered at (cx, cy) with the given rotation: every
// contributing point is inverse-rotated around the center before the union.
// Groups recurse, paths and connectors contribute their points, frame nodes
// their four corners. Connect points never contribute.
//
// When changed is non-nil it stands in for the node with the same id, which
// lets callers preview an outline before the tree is edited. ok is false
// when nothing contributed.
func (s *Scene) UnrotatedChildrenBox(items []string, cx, cy, rotation float64, changed *Node) (box geometry.Box, ok bool) {
	var pts []geometry.Point
	var collect func(ids []string)
	collect = func(ids []string) {
		for _, id := range ids {
			n, exists := s.Nodes[id]
			if changed != nil && changed.ID == id {
				n, exists = changed, true
			}
			if !exists {
				continue
			}
			switch n.Kind {
			case KindConnectPoint:
				continue
			case KindGroup, KindPath, KindConnectLine:
				collect(n.Items)
			case KindPathPoint:
				pts = append(pts, geometry.RotatePoint(n.X, n.Y, cx, cy, -rotation))
			case KindRectangle, KindEllipse, KindText:
				for _, c := range geometry.FrameCorners(n.Frame()) {
					pts = append(pts, geometry.RotatePoint(c.X, c.Y, cx, cy, -rotation))
				}
			}
		}
	}
	collect(items)
	if len(pts) == 0 {
		return geometry.Box{}, false
	}
	return geometry.BoundingBoxOfPoints(pts), true
}

// OrientedBoxOf returns the frame an itemable node should have given its
// current children. ok is false for nodes without contributing children.
func (s *Scene) OrientedBoxOf(n *Node) (geometry.Frame, bool) {
	box, ok := s.UnrotatedChildrenBox(n.Items, n.X, n.Y, n.Rotation, nil)
	if !ok {
		return geometry.Frame{}, false
	}
	f := geometry.OrientedBox(box, n.X, n.Y, n.Rotation)
	f.ScaleX, f.ScaleY = n.ScaleX, n.ScaleY
	return f, true
}

// PreviewOutline returns the frame groupID would have if changed replaced
// the node with the same id.
func (s *Scene) PreviewOutline(groupID string, changed *Node) (geometry.Frame, bool) {
	g, ok := s.Node(groupID)
	if !ok {
		return geometry.Frame{}, false
	}
	box, ok := s.UnrotatedChildrenBox(g.Items, g.X, g.Y, g.Rotation, changed)
	if !ok {
		return geometry.Frame{}, false
	}
	f := geometry.OrientedBox(box, g.X, g.Y, g.Rotation)
	f.ScaleX, f.ScaleY = g.ScaleX, g.ScaleY
	return f, true
}

// SelectionBox returns the axis-aligned box around the given nodes.
func (s *Scene) SelectionBox(ids []string) (geometry.Box, bool) {
	return s.UnrotatedChildrenBox(ids, 0, 0, 0, nil)
}

// RefreshOutline recomputes an itemable node's frame from its children and
// writes it only when it differs bit for bit from the stored one.
func (tx *Tx) RefreshOutline(id string) bool {
	n, ok := tx.work.Nodes[id]
	if !ok || !n.Kind.Itemable() {
		return false
	}
	f, ok := tx.work.OrientedBoxOf(n)
	if !ok || f == n.Frame() {
		return false
	}
	tx.Update(id, func(m *Node) { m.SetFrame(f) })
	return true
}
