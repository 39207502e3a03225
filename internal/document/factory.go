package document

import (
	"slices"

	"github.com/inamate/diagram/internal/geometry"
	"github.com/inamate/diagram/internal/typeid"
)

// Anchor names of the connect points every connectable shape exposes, in
// the order they are created.
var AnchorNames = []string{"top", "right", "bottom", "left"}

var kindPrefixes = map[NodeKind]string{
	KindRectangle:    typeid.PrefixRectangle,
	KindEllipse:      typeid.PrefixEllipse,
	KindText:         typeid.PrefixText,
	KindPath:         typeid.PrefixPath,
	KindGroup:        typeid.PrefixGroup,
	KindConnectLine:  typeid.PrefixLine,
	KindConnectPoint: typeid.PrefixConnPoint,
	KindPathPoint:    typeid.PrefixPathPoint,
}

// NewID returns a fresh id for a node of the given kind.
func NewID(kind NodeKind) string {
	return typeid.New(kindPrefixes[kind])
}

// NewShape creates a frame node of kind with default style.
func NewShape(kind NodeKind, f geometry.Frame) *Node {
	if f.ScaleX == 0 {
		f.ScaleX = 1
	}
	if f.ScaleY == 0 {
		f.ScaleY = 1
	}
	n := &Node{
		ID:          NewID(kind),
		Kind:        kind,
		Fill:        "#ffffff",
		Stroke:      "#000000",
		StrokeWidth: 1,
	}
	n.SetFrame(f)
	if kind.Textable() {
		n.TextType = "textarea"
		n.TextAlign = "center"
		n.VerticalAlign = "center"
		n.FontSize = 16
		n.FontFamily = "Noto Sans JP"
		n.FontColor = "#000000"
		n.FontWeight = "normal"
	}
	if kind == KindText {
		n.Fill = "transparent"
		n.Stroke = "transparent"
	}
	return n
}

func NewRectangle(x, y, width, height float64) *Node {
	return NewShape(KindRectangle, geometry.Frame{X: x, Y: y, Width: width, Height: height})
}

func NewEllipse(x, y, width, height float64) *Node {
	return NewShape(KindEllipse, geometry.Frame{X: x, Y: y, Width: width, Height: height})
}

func NewText(x, y, width, height float64, text string) *Node {
	n := NewShape(KindText, geometry.Frame{X: x, Y: y, Width: width, Height: height})
	n.Text = text
	return n
}

// NewGroup creates an empty group; its frame is derived once items are added.
func NewGroup() *Node {
	return &Node{
		ID:     NewID(KindGroup),
		Kind:   KindGroup,
		ScaleX: 1,
		ScaleY: 1,
	}
}

// NewPath creates a freeform path; its points are added with Tx.SetPoints.
func NewPath() *Node {
	return &Node{
		ID:          NewID(KindPath),
		Kind:        KindPath,
		ScaleX:      1,
		ScaleY:      1,
		Fill:        "transparent",
		Stroke:      "#000000",
		StrokeWidth: 1,
	}
}

// NewConnectLine creates a connector between two connect points.
func NewConnectLine(startOwnerID, startPointID, endOwnerID, endPointID string) *Node {
	return &Node{
		ID:           NewID(KindConnectLine),
		Kind:         KindConnectLine,
		ScaleX:       1,
		ScaleY:       1,
		StartOwnerID: startOwnerID,
		StartPointID: startPointID,
		EndOwnerID:   endOwnerID,
		EndPointID:   endPointID,
		Fill:         "none",
		Stroke:       "#000000",
		StrokeWidth:  1,
	}
}

func NewPathPoint(p geometry.Point) *Node {
	return &Node{ID: NewID(KindPathPoint), Kind: KindPathPoint, X: p.X, Y: p.Y}
}

func NewConnectPoint(name string, p geometry.Point) *Node {
	return &Node{ID: NewID(KindConnectPoint), Kind: KindConnectPoint, Name: name, X: p.X, Y: p.Y}
}

// ConnectPointPositions returns the anchor positions of a frame keyed by
// anchor name: the edge midpoints, rotated with the frame.
func ConnectPointPositions(f geometry.Frame) map[string]geometry.Point {
	hw, hh := f.Width/2, f.Height/2
	local := map[string]geometry.Point{
		"top":    {X: f.X, Y: f.Y - hh},
		"right":  {X: f.X + hw, Y: f.Y},
		"bottom": {X: f.X, Y: f.Y + hh},
		"left":   {X: f.X - hw, Y: f.Y},
	}
	out := make(map[string]geometry.Point, len(local))
	for name, p := range local {
		out[name] = geometry.RotatePoint(p.X, p.Y, f.X, f.Y, f.Rotation)
	}
	return out
}

// InsertShape inserts n and, for connectable kinds, creates its connect points.
func (tx *Tx) InsertShape(parentID string, index int, n *Node) {
	tx.Insert(parentID, index, n)
	if !n.Kind.Connectable() || len(n.ConnectPoints) > 0 {
		return
	}
	positions := ConnectPointPositions(n.Frame())
	for _, name := range AnchorNames {
		tx.AddConnectPoint(n.ID, NewConnectPoint(name, positions[name]))
	}
}

// SyncConnectPoints moves ownerID's connect points onto its current frame and
// returns the ids of the points that moved.
func (tx *Tx) SyncConnectPoints(ownerID string) []string {
	owner, ok := tx.work.Nodes[ownerID]
	if !ok || !owner.Kind.Connectable() {
		return nil
	}
	positions := ConnectPointPositions(owner.Frame())
	var moved []string
	for _, cpID := range owner.ConnectPoints {
		cp, ok := tx.work.Nodes[cpID]
		if !ok {
			continue
		}
		p, known := positions[cp.Name]
		if !known || (cp.X == p.X && cp.Y == p.Y) {
			continue
		}
		tx.Update(cpID, func(n *Node) { n.X, n.Y = p.X, p.Y })
		moved = append(moved, cpID)
	}
	return moved
}

// SetPoints replaces the PathPoint items of a Path or ConnectLine. Existing
// point nodes are reused in order so their ids stay stable. The owner's
// frame is refreshed from the new points.
func (tx *Tx) SetPoints(ownerID string, points []geometry.Point) {
	owner, ok := tx.work.Nodes[ownerID]
	if !ok || len(points) == 0 {
		return
	}
	existing := slices.Clone(owner.Items)
	for i, p := range points {
		if i < len(existing) {
			id := existing[i]
			if cur, ok := tx.work.Nodes[id]; ok && cur.X == p.X && cur.Y == p.Y {
				continue
			}
			tx.Update(id, func(n *Node) { n.X, n.Y = p.X, p.Y })
			continue
		}
		tx.Insert(ownerID, -1, NewPathPoint(p))
	}
	for i := len(existing) - 1; i >= len(points); i-- {
		tx.Remove(existing[i])
	}
	tx.RefreshOutline(ownerID)
}

// Points returns the positions of a Path's or ConnectLine's points.
func (s *Scene) Points(ownerID string) []geometry.Point {
	owner, ok := s.Nodes[ownerID]
	if !ok {
		return nil
	}
	pts := make([]geometry.Point, 0, len(owner.Items))
	for _, id := range owner.Items {
		if p, ok := s.Nodes[id]; ok && p.Kind == KindPathPoint {
			pts = append(pts, p.Center())
		}
	}
	return pts
}
