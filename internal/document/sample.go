package document

import (
	"github.com/inamate/diagram/internal/geometry"
)

// NewSampleScene builds a small demo diagram: two boxes joined by a
// connector, an ellipse, and a labelled group.
func NewSampleScene(id string) *Scene {
	tx := NewScene(id).Edit()

	source := NewRectangle(200, 200, 160, 80)
	source.Fill = "#e94560"
	source.Text = "Source"
	tx.InsertShape("", -1, source)

	target := NewRectangle(560, 200, 160, 80)
	target.Fill = "#0f3460"
	target.FontColor = "#ffffff"
	target.Text = "Target"
	tx.InsertShape("", -1, target)

	ellipse := NewEllipse(380, 420, 120, 120)
	ellipse.Fill = "#16c79a"
	tx.InsertShape("", -1, ellipse)

	group := NewGroup()
	tx.Insert("", -1, group)
	tx.InsertShape(group.ID, -1, NewRectangle(820, 420, 140, 90))
	tx.InsertShape(group.ID, -1, NewText(820, 500, 140, 30, "Legend"))
	tx.RefreshOutline(group.ID)

	// Both anchors sit on y=200 facing each other, so the route is straight.
	start := connectPointByName(tx.Scene(), source.ID, "right")
	end := connectPointByName(tx.Scene(), target.ID, "left")
	line := NewConnectLine(source.ID, start.ID, target.ID, end.ID)
	tx.Insert("", -1, line)
	tx.SetPoints(line.ID, []geometry.Point{start.Center(), end.Center()})

	return tx.Commit()
}

// ConnectPointByName returns the connect point of ownerID with the given
// anchor name.
func (s *Scene) ConnectPointByName(ownerID, name string) (*Node, bool) {
	cp := connectPointByName(s, ownerID, name)
	return cp, cp != nil
}

func connectPointByName(s *Scene, ownerID, name string) *Node {
	owner, ok := s.Nodes[ownerID]
	if !ok {
		return nil
	}
	for _, id := range owner.ConnectPoints {
		if cp, ok := s.Nodes[id]; ok && cp.Name == name {
			return cp
		}
	}
	return nil
}
