package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/diagram/internal/geometry"
)

func TestUnrotatedChildrenBoxIgnoresConnectPoints(t *testing.T) {
	tx := NewScene("b").Edit()
	rect := NewRectangle(50, 50, 100, 100)
	tx.InsertShape("", -1, rect)
	// Push a connect point far outside the shape.
	cp := tx.Scene().Nodes[rect.ConnectPoints[0]]
	tx.Update(cp.ID, func(n *Node) { n.X, n.Y = 1000, 1000 })
	s := tx.Commit()

	box, ok := s.UnrotatedChildrenBox([]string{rect.ID}, 0, 0, 0, nil)
	require.True(t, ok)
	assert.Equal(t, geometry.Box{Top: 0, Left: 0, Right: 100, Bottom: 100}, box)
}

func TestUnrotatedChildrenBoxEmpty(t *testing.T) {
	s := NewScene("b")
	_, ok := s.UnrotatedChildrenBox(nil, 0, 0, 0, nil)
	assert.False(t, ok)
}

func TestPreviewOutlineUsesChangedNode(t *testing.T) {
	s, _, g2, _, _, c := nestedScene(t)
	before := s.Nodes[g2].Frame()

	moved := s.Nodes[c].Clone()
	moved.X += 100
	preview, ok := s.PreviewOutline(g2, moved)
	require.True(t, ok)

	assert.InDelta(t, before.Width+100, preview.Width, 1e-9)
	assert.Equal(t, before, s.Nodes[g2].Frame(), "preview leaves the scene alone")
}

func TestRefreshOutlineSkipsIdenticalFrame(t *testing.T) {
	s, _, g2, _, _, _ := nestedScene(t)
	tx := s.Edit()
	assert.False(t, tx.RefreshOutline(g2))
	assert.Same(t, s, tx.Commit())
}

func TestRefreshOutlineRotatedGroup(t *testing.T) {
	tx := NewScene("b").Edit()
	g := NewGroup()
	tx.Insert("", -1, g)
	tx.InsertShape(g.ID, -1, NewRectangle(0, 0, 20, 20))
	tx.InsertShape(g.ID, -1, NewRectangle(100, 0, 20, 20))
	tx.RefreshOutline(g.ID)
	s := tx.Commit()

	f := s.Nodes[g.ID].Frame()
	assert.InDelta(t, 50, f.X, 1e-9)
	assert.InDelta(t, 120, f.Width, 1e-9)
	assert.InDelta(t, 20, f.Height, 1e-9)

	// A group rotated by 90 sees its children's extent swapped.
	tx = s.Edit()
	tx.Update(g.ID, func(n *Node) { n.Rotation = 90 })
	tx.RefreshOutline(g.ID)
	rotated := tx.Commit().Nodes[g.ID].Frame()
	assert.InDelta(t, 20, rotated.Width, 1e-9)
	assert.InDelta(t, 120, rotated.Height, 1e-9)
	assert.InDelta(t, 50, rotated.X, 1e-9)
	assert.InDelta(t, 0, rotated.Y, 1e-9)
}

func TestSelectionBox(t *testing.T) {
	s := NewSampleScene("diag_sample")
	box, ok := s.SelectionBox(s.Roots[:2])
	require.True(t, ok)
	assert.Equal(t, geometry.Box{Top: 160, Left: 120, Right: 640, Bottom: 240}, box)
}
