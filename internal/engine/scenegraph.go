package engine

import (
	"math"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
)

// HitTolerance is how far from a path or connector a point still hits it.
const HitTolerance = 4.0

// DrawCommand is one drawing operation for a canvas renderer. Commands are
// emitted in painter's order (back to front).
type DrawCommand struct {
	Op          string       `json:"op"`                  // "rect", "ellipse", "text", "polyline"
	ObjectID    string       `json:"objectId,omitempty"`  // for hit correlation
	Transform   []float64    `json:"transform,omitempty"` // [a, b, c, d, e, f], local center-origin to scene
	Width       float64      `json:"width,omitempty"`     // local size of shapes
	Height      float64      `json:"height,omitempty"`
	Points      [][2]float64 `json:"points,omitempty"` // scene coordinates of polylines
	Text        string       `json:"text,omitempty"`
	Fill        string       `json:"fill,omitempty"`
	Stroke      string       `json:"stroke,omitempty"`
	StrokeWidth float64      `json:"strokeWidth,omitempty"`
	Selected    bool         `json:"selected,omitempty"` // draw the selection outline
	Style       *TextStyle   `json:"style,omitempty"`
}

type TextStyle struct {
	FontSize      float64 `json:"fontSize"`
	FontFamily    string  `json:"fontFamily"`
	FontColor     string  `json:"fontColor"`
	FontWeight    string  `json:"fontWeight"`
	TextAlign     string  `json:"textAlign"`
	VerticalAlign string  `json:"verticalAlign"`
}

// CompileDrawCommands generates the draw command buffer for a scene.
func CompileDrawCommands(s *document.Scene) []DrawCommand {
	if s == nil {
		return nil
	}
	var commands []DrawCommand
	for _, n := range s.Children("") {
		compileNode(s, n, &commands)
	}
	return commands
}

func compileNode(s *document.Scene, n *document.Node, commands *[]DrawCommand) {
	switch n.Kind {
	case document.KindRectangle, document.KindEllipse, document.KindText:
		op := "rect"
		switch n.Kind {
		case document.KindEllipse:
			op = "ellipse"
		case document.KindText:
			op = "text"
		}
		cmd := DrawCommand{
			Op:          op,
			ObjectID:    n.ID,
			Transform:   worldTransform(n).ToSlice(),
			Width:       n.Width,
			Height:      n.Height,
			Fill:        n.Fill,
			Stroke:      n.Stroke,
			StrokeWidth: n.StrokeWidth,
			Selected:    n.ShowOutline,
		}
		if n.Text != "" {
			cmd.Text = n.Text
			cmd.Style = &TextStyle{
				FontSize:      n.FontSize,
				FontFamily:    n.FontFamily,
				FontColor:     n.FontColor,
				FontWeight:    n.FontWeight,
				TextAlign:     n.TextAlign,
				VerticalAlign: n.VerticalAlign,
			}
		}
		*commands = append(*commands, cmd)
	case document.KindPath, document.KindConnectLine:
		pts := s.Points(n.ID)
		if len(pts) < 2 {
			return
		}
		flat := make([][2]float64, len(pts))
		for i, p := range pts {
			flat[i] = [2]float64{p.X, p.Y}
		}
		*commands = append(*commands, DrawCommand{
			Op:          "polyline",
			ObjectID:    n.ID,
			Points:      flat,
			Fill:        n.Fill,
			Stroke:      n.Stroke,
			StrokeWidth: n.StrokeWidth,
			Selected:    n.ShowOutline,
		})
	case document.KindGroup:
		for _, child := range s.Children(n.ID) {
			compileNode(s, child, commands)
		}
	}
}

func worldTransform(n *document.Node) geometry.Matrix2D {
	f := n.Frame()
	if f.ScaleX == 0 {
		f.ScaleX = 1
	}
	if f.ScaleY == 0 {
		f.ScaleY = 1
	}
	return geometry.FromFrame(f)
}

// HitTest returns the id of the frontmost shape, path or connector under
// (x, y), or the empty string. Group members are reported themselves;
// callers resolve them to a selectable owner with the selection rules.
func HitTest(s *document.Scene, x, y float64) string {
	if s == nil {
		return ""
	}
	return hitTestItems(s, s.Roots, geometry.Point{X: x, Y: y})
}

// hitTestItems tests front to back: later items are on top.
func hitTestItems(s *document.Scene, ids []string, p geometry.Point) string {
	for i := len(ids) - 1; i >= 0; i-- {
		n, ok := s.Nodes[ids[i]]
		if !ok {
			continue
		}
		if hit := hitTestNode(s, n, p); hit != "" {
			return hit
		}
	}
	return ""
}

func hitTestNode(s *document.Scene, n *document.Node, p geometry.Point) string {
	switch n.Kind {
	case document.KindGroup:
		return hitTestItems(s, n.Items, p)
	case document.KindRectangle, document.KindText:
		lx, ly := worldTransform(n).Invert().TransformPoint(p.X, p.Y)
		if math.Abs(lx) <= n.Width/2 && math.Abs(ly) <= n.Height/2 {
			return n.ID
		}
	case document.KindEllipse:
		if n.Width <= 0 || n.Height <= 0 {
			return ""
		}
		lx, ly := worldTransform(n).Invert().TransformPoint(p.X, p.Y)
		rx, ry := n.Width/2, n.Height/2
		if (lx*lx)/(rx*rx)+(ly*ly)/(ry*ry) <= 1 {
			return n.ID
		}
	case document.KindPath, document.KindConnectLine:
		pts := s.Points(n.ID)
		for i := 1; i < len(pts); i++ {
			if distanceToSegment(p, pts[i-1], pts[i]) <= HitTolerance+n.StrokeWidth/2 {
				return n.ID
			}
		}
	}
	return ""
}

func distanceToSegment(p, a, b geometry.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return geometry.Distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return geometry.Distance(p, geometry.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// HitTest resolves a pointer position against the live diagram.
func (e *Engine) HitTest(x, y float64) string {
	return HitTest(e.scene, x, y)
}

// DrawCommands compiles the live diagram for rendering.
func (e *Engine) DrawCommands() []DrawCommand {
	return CompileDrawCommands(e.scene)
}
