// Package transform applies drag and resize/rotate gestures to the diagram
// tree. Every gesture is computed from a snapshot taken when it starts, so
// repeated in-progress updates never compound.
package transform

import (
	"fmt"
	"slices"
	"strings"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
)

type Phase int

const (
	Start Phase = iota
	InProgress
	End
	Instant
)

func (p Phase) String() string {
	switch p {
	case Start:
		return "start"
	case InProgress:
		return "in-progress"
	case End:
		return "end"
	case Instant:
		return "instant"
	}
	return "unknown"
}

// Final reports whether the phase completes a gesture.
func (p Phase) Final() bool {
	return p == End || p == Instant
}

// ParsePhase accepts the wire names of the phases.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(s) {
	case "start":
		return Start, nil
	case "in-progress", "inprogress", "progress":
		return InProgress, nil
	case "end":
		return End, nil
	case "instant":
		return Instant, nil
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PointMove tells consumers that a connect point moved so attached
// connectors can be redrawn without a full re-route.
type PointMove struct {
	ID         string         `json:"id"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	OwnerID    string         `json:"ownerId"`
	OwnerShape geometry.Frame `json:"ownerShape"`
}

// OutlinePreview is the frame an ancestor group will take once the gesture
// ends.
type OutlinePreview struct {
	GroupID string         `json:"groupId"`
	Frame   geometry.Frame `json:"frame"`
}

// Drag translates a set of subtrees.
type Drag struct {
	roots  []string
	origin map[string]geometry.Point
	multi  *geometry.Point
}

// BeginDrag snapshots the nodes a drag on targetID moves: the whole
// selection when the target or one of its ancestors is selected (or the
// target is the multi-selection group), the target alone otherwise.
func BeginDrag(s *document.Scene, targetID string) *Drag {
	var ids []string
	_, ok := s.Nodes[targetID]
	if targetID == document.MultiSelectGroupID || (ok && inSelection(s, targetID)) {
		ids = s.Selected()
	} else if ok {
		ids = []string{targetID}
	}
	return NewDrag(s, ids)
}

func inSelection(s *document.Scene, id string) bool {
	for _, cur := range append(s.Ancestors(id), id) {
		if n, ok := s.Nodes[cur]; ok && n.IsSelected {
			return true
		}
	}
	return false
}

// NewDrag snapshots ids and all of their descendants.
func NewDrag(s *document.Scene, ids []string) *Drag {
	d := &Drag{origin: make(map[string]geometry.Point)}
	for _, id := range outermost(s, ids) {
		if _, ok := s.Nodes[id]; !ok {
			continue
		}
		d.roots = append(d.roots, id)
		for _, sub := range s.Subtree(id) {
			if n, ok := s.Nodes[sub]; ok {
				d.origin[sub] = n.Center()
			}
		}
	}
	if s.MultiSelect != nil {
		c := s.MultiSelect.Center()
		d.multi = &c
	}
	return d
}

// Roots returns the ids of the dragged subtrees.
func (d *Drag) Roots() []string {
	return d.roots
}

// Apply moves every snapshotted node to its original position plus
// (dx, dy). It returns the connect points that moved and, while the gesture
// is running, the outlines the enclosing groups will settle to.
func (d *Drag) Apply(tx *document.Tx, dx, dy float64, phase Phase) ([]PointMove, []OutlinePreview) {
	var movedPoints []string
	for _, id := range sortedKeys(d.origin) {
		o := d.origin[id]
		x, y := o.X+dx, o.Y+dy
		n, ok := tx.Node(id)
		if !ok || (n.X == x && n.Y == y) {
			continue
		}
		tx.Update(id, func(m *document.Node) { m.X, m.Y = x, y })
		if n.Kind == document.KindConnectPoint {
			movedPoints = append(movedPoints, id)
		}
	}
	for _, id := range d.roots {
		dragging := !phase.Final()
		if n, ok := tx.Node(id); ok && n.IsDragging != dragging {
			tx.Update(id, func(m *document.Node) { m.IsDragging = dragging })
		}
	}
	if d.multi != nil {
		if ms := tx.Scene().MultiSelect; ms != nil {
			moved := ms.Clone()
			moved.X, moved.Y = d.multi.X+dx, d.multi.Y+dy
			tx.SetMultiSelect(moved)
		}
	}

	var previews []OutlinePreview
	if !phase.Final() {
		previews = previewAncestors(tx.Scene(), d.roots)
	}
	return pointMoves(tx.Scene(), movedPoints), previews
}

// Transform resizes and rotates one node, or the multi-selection group,
// carrying all descendants along.
type Transform struct {
	targetID string
	start    geometry.Frame
	origin   map[string]*document.Node
	items    []string
}

// BeginTransform snapshots the target and its descendants. start is the
// target's frame when the gesture began; a zero frame means its current one.
func BeginTransform(s *document.Scene, targetID string, start geometry.Frame) (*Transform, error) {
	target, ok := s.Node(targetID)
	if !ok {
		return nil, fmt.Errorf("transform target %s not found", targetID)
	}
	if !target.Kind.HasFrame() {
		return nil, fmt.Errorf("transform target %s has no frame", targetID)
	}
	if start.Width == 0 && start.Height == 0 {
		start = target.Frame()
	}
	if start.ScaleX == 0 {
		start.ScaleX = 1
	}
	if start.ScaleY == 0 {
		start.ScaleY = 1
	}

	t := &Transform{
		targetID: targetID,
		start:    start,
		origin:   make(map[string]*document.Node),
		items:    slices.Clone(target.Items),
	}
	var subtrees []string
	if targetID == document.MultiSelectGroupID {
		subtrees = outermost(s, target.Items)
	} else {
		t.origin[targetID] = target.Clone()
		subtrees = target.Items
	}
	for _, id := range subtrees {
		for _, sub := range s.Subtree(id) {
			if n, ok := s.Nodes[sub]; ok {
				t.origin[sub] = n.Clone()
			}
		}
	}
	return t, nil
}

// Apply sets the target to end and re-derives every descendant from its
// snapshot: centers are mapped through the target's local frame, sizes scale
// with the target and rotations shift by the rotation delta. Connect points
// are recomputed from their owner's new frame.
func (t *Transform) Apply(tx *document.Tx, end geometry.Frame, phase Phase) ([]PointMove, []OutlinePreview) {
	if end.ScaleX == 0 {
		end.ScaleX = t.start.ScaleX
	}
	if end.ScaleY == 0 {
		end.ScaleY = t.start.ScaleY
	}
	sx, sy := ratio(end.Width, t.start.Width), ratio(end.Height, t.start.Height)
	dr := end.Rotation - t.start.Rotation
	transforming := !phase.Final()

	var owners []string
	for _, id := range sortedKeys(t.origin) {
		o := t.origin[id]
		if o.Kind == document.KindConnectPoint {
			continue
		}
		if _, ok := tx.Node(id); !ok {
			continue
		}
		if id == t.targetID {
			tx.Update(id, func(m *document.Node) {
				m.SetFrame(end)
				m.IsTransforming = transforming
			})
		} else {
			local := geometry.RotatePoint(o.X, o.Y, t.start.X, t.start.Y, -t.start.Rotation)
			c := geometry.AffineTransform(
				(local.X-t.start.X)*sx, (local.Y-t.start.Y)*sy,
				1, 1, end.Rotation, end.X, end.Y,
			)
			tx.Update(id, func(m *document.Node) {
				m.X, m.Y = c.X, c.Y
				if o.Kind.HasFrame() {
					m.Width = o.Width * sx
					m.Height = o.Height * sy
					m.Rotation = o.Rotation + dr
				}
			})
		}
		if o.Kind.Connectable() {
			owners = append(owners, id)
		}
	}

	if t.targetID == document.MultiSelectGroupID {
		if ms := tx.Scene().MultiSelect; ms != nil {
			next := ms.Clone()
			next.SetFrame(end)
			next.IsTransforming = transforming
			tx.SetMultiSelect(next)
		}
	}

	var moved []string
	for _, id := range owners {
		moved = append(moved, tx.SyncConnectPoints(id)...)
	}

	var previews []OutlinePreview
	if !phase.Final() {
		roots := []string{t.targetID}
		if t.targetID == document.MultiSelectGroupID {
			roots = t.items
		}
		previews = previewAncestors(tx.Scene(), roots)
	}
	return pointMoves(tx.Scene(), moved), previews
}

// Offset translates ids and their subtrees in one step, as used for paste
// offsets and keyboard nudges.
func Offset(tx *document.Tx, ids []string, dx, dy float64) []PointMove {
	moves, _ := NewDrag(tx.Scene(), ids).Apply(tx, dx, dy, Instant)
	return moves
}

// Settle recomputes the outline of every group, path and connector that
// contains or lies below a changed node, innermost first. Frames that come
// out bit-identical are not rewritten.
func Settle(tx *document.Tx, changed []string) {
	s := tx.Scene()
	seen := make(map[string]bool)
	var targets []string
	add := func(id string) {
		if seen[id] {
			return
		}
		if n, ok := s.Nodes[id]; ok && n.Kind.Itemable() {
			seen[id] = true
			targets = append(targets, id)
		}
	}
	for _, id := range changed {
		if _, ok := s.Nodes[id]; !ok {
			continue
		}
		for _, sub := range s.Subtree(id) {
			add(sub)
		}
		for _, anc := range s.Ancestors(id) {
			add(anc)
		}
	}
	depth := make(map[string]int, len(targets))
	for _, id := range targets {
		depth[id] = s.Depth(id)
	}
	slices.SortStableFunc(targets, func(a, b string) int {
		return depth[b] - depth[a]
	})
	for _, id := range targets {
		tx.RefreshOutline(id)
	}
}

// outermost drops ids that lie below another id of the set.
func outermost(s *document.Scene, ids []string) []string {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []string
	for _, id := range ids {
		nested := false
		for _, anc := range s.Ancestors(id) {
			if set[anc] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, id)
		}
	}
	return out
}

func previewAncestors(s *document.Scene, roots []string) []OutlinePreview {
	seen := make(map[string]bool)
	var out []OutlinePreview
	for _, id := range roots {
		// Innermost group first.
		for _, g := range slices.Backward(s.Ancestors(id)) {
			if seen[g] {
				continue
			}
			seen[g] = true
			if f, ok := s.PreviewOutline(g, nil); ok {
				out = append(out, OutlinePreview{GroupID: g, Frame: f})
			}
		}
	}
	return out
}

func pointMoves(s *document.Scene, ids []string) []PointMove {
	out := make([]PointMove, 0, len(ids))
	for _, id := range ids {
		cp, ok := s.Nodes[id]
		if !ok {
			continue
		}
		move := PointMove{ID: id, X: cp.X, Y: cp.Y, OwnerID: cp.Parent}
		if owner, ok := s.Nodes[cp.Parent]; ok {
			move.OwnerShape = owner.Frame()
		}
		out = append(out, move)
	}
	return out
}

func ratio(end, start float64) float64 {
	if start == 0 {
		return 1
	}
	return end / start
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
