package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
	"github.com/inamate/diagram/internal/transform"
)

type sampleIDs struct {
	source, target, ellipse, group, line string
}

func newSampleEngine(t *testing.T) (*Engine, sampleIDs) {
	t.Helper()
	e := NewEngine(Options{})
	e.LoadSample("sample")
	roots := e.Scene().Roots
	require.Len(t, roots, 5)
	return e, sampleIDs{source: roots[0], target: roots[1], ellipse: roots[2], group: roots[3], line: roots[4]}
}

func kinds(notes []Notification) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Kind())
	}
	return out
}

func TestDragRecordsOneHistoryEntry(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.source})

	for _, step := range []struct {
		phase  transform.Phase
		dx, dy float64
	}{
		{transform.Start, 0, 0},
		{transform.InProgress, 10, 5},
		{transform.InProgress, 20, 8},
		{transform.End, 30, 10},
	} {
		res := e.Apply(Drag{ID: ids.source, Phase: step.phase, StartX: 100, StartY: 100, EndX: 100 + step.dx, EndY: 100 + step.dy})
		if step.phase == transform.End {
			assert.Contains(t, kinds(res.Notifications), "connect.points.moved")
			assert.Contains(t, kinds(res.Notifications), "data.changed")
		} else {
			assert.NotContains(t, kinds(res.Notifications), "data.changed")
		}
	}
	assert.Equal(t, 2, e.history.Len(), "one entry per completed drag")

	s := e.Scene()
	src := s.Nodes[ids.source]
	assert.Equal(t, 230.0, src.X)
	assert.Equal(t, 210.0, src.Y)
	assert.False(t, src.IsDragging)

	right, ok := s.ConnectPointByName(ids.source, "right")
	require.True(t, ok)
	pts := s.Points(ids.line)
	require.NotEmpty(t, pts)
	assert.Equal(t, right.Center(), pts[0], "connector follows the dragged shape")

	res := e.Apply(Undo{})
	assert.Equal(t, 200.0, res.Scene.Nodes[ids.source].X)
	assert.True(t, e.CanRedo())
}

func TestDeletePrunesConnector(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.source})
	res := e.Apply(Delete{})

	_, ok := res.Scene.Nodes[ids.source]
	assert.False(t, ok)
	_, ok = res.Scene.Nodes[ids.line]
	assert.False(t, ok, "connector without a start is removed")
	assert.Equal(t, []string{ids.target, ids.ellipse, ids.group}, res.Scene.Roots)

	res = e.Apply(Undo{})
	assert.Len(t, res.Scene.Roots, 5)
	_, ok = res.Scene.Nodes[ids.line]
	assert.True(t, ok)
}

func TestDeleteWithoutSelectionIsIgnored(t *testing.T) {
	e, _ := newSampleEngine(t)
	before := e.Scene()
	res := e.Apply(Delete{})
	assert.Same(t, before, res.Scene)
	assert.Empty(t, res.Notifications)
	assert.Equal(t, 1, e.history.Len())
}

func TestConnectRoutesBetweenShapes(t *testing.T) {
	e := NewEngine(Options{})
	a := e.Apply(AddShape{Kind: document.KindRectangle, X: 0, Y: 0, Width: 100, Height: 50}).Scene.Selected()[0]
	b := e.Apply(AddShape{Kind: document.KindRectangle, X: 300, Y: 0, Width: 100, Height: 50}).Scene.Selected()[0]

	res := e.Apply(Connect{
		StartOwnerID: a,
		EndOwnerID:   b,
		Points:       []geometry.Point{{X: 50, Y: 0}, {X: 250, Y: 0}},
	})
	lines := res.Scene.ConnectLines()
	require.Len(t, lines, 1)
	line := lines[0]

	right, _ := res.Scene.ConnectPointByName(a, "right")
	left, _ := res.Scene.ConnectPointByName(b, "left")
	assert.Equal(t, right.ID, line.StartPointID)
	assert.Equal(t, left.ID, line.EndPointID)
	assert.Equal(t, []geometry.Point{{X: 50, Y: 0}, {X: 250, Y: 0}}, res.Scene.Points(line.ID))
	assert.Equal(t, 4, e.history.Len())

	again := e.Apply(Connect{StartOwnerID: a, EndOwnerID: a, Points: []geometry.Point{{X: 50, Y: 0}}})
	assert.Same(t, res.Scene, again.Scene, "self connection is rejected")
}

func TestPreviewConnect(t *testing.T) {
	e, ids := newSampleEngine(t)
	right, ok := e.Scene().ConnectPointByName(ids.source, "right")
	require.True(t, ok)

	res := e.Apply(PreviewConnect{StartOwnerID: ids.source, StartPointID: right.ID, X: 400, Y: 300})
	require.Len(t, res.Notifications, 1)
	preview, ok := res.Notifications[0].(ConnectorPreview)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(preview.Points), 2)
	assert.Equal(t, right.Center(), preview.Points[0])
	assert.Equal(t, geometry.Point{X: 400, Y: 300}, preview.Points[len(preview.Points)-1])

	left, _ := e.Scene().ConnectPointByName(ids.target, "left")
	res = e.Apply(PreviewConnect{StartOwnerID: ids.source, StartPointID: right.ID, X: 480, Y: 200, HoverOwnerID: ids.target, HoverPointID: left.ID})
	preview = res.Notifications[0].(ConnectorPreview)
	assert.Equal(t, []geometry.Point{right.Center(), left.Center()}, preview.Points)
}

func TestGroupAndUngroup(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.source})
	res := e.Apply(Select{ID: ids.ellipse, CtrlHeld: true})
	require.NotNil(t, res.Scene.MultiSelect)

	res = e.Apply(Group{})
	s := res.Scene
	require.Len(t, s.Roots, 4)
	g := s.Nodes[s.Roots[0]]
	assert.Equal(t, document.KindGroup, g.Kind)
	assert.Equal(t, []string{ids.source, ids.ellipse}, g.Items)
	assert.True(t, g.IsSelected)
	assert.Nil(t, s.MultiSelect)
	assert.InDelta(t, 280, g.X, 1e-9)
	assert.InDelta(t, 320, g.Y, 1e-9)
	assert.InDelta(t, 320, g.Width, 1e-9)
	assert.InDelta(t, 320, g.Height, 1e-9)
	assert.Equal(t, g.ID, s.Nodes[ids.source].Parent)

	res = e.Apply(Ungroup{})
	s = res.Scene
	assert.Equal(t, []string{ids.source, ids.ellipse, ids.target, ids.group, ids.line}, s.Roots)
	assert.ElementsMatch(t, []string{ids.source, ids.ellipse}, s.Selected())
	assert.NotNil(t, s.MultiSelect)

	e.Apply(Undo{})
	res = e.Apply(Undo{})
	assert.Equal(t, []string{ids.source, ids.target, ids.ellipse, ids.group, ids.line}, res.Scene.Roots)
}

func TestGroupNeedsTwoNodes(t *testing.T) {
	e, ids := newSampleEngine(t)
	before := e.Apply(Select{ID: ids.source}).Scene
	res := e.Apply(Group{})
	assert.Same(t, before, res.Scene)
}

func TestCopyPaste(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.source})
	data, err := e.Copy()
	require.NoError(t, err)

	res := e.Apply(Paste{Data: data})
	s := res.Scene
	require.Len(t, s.Roots, 6)
	selected := s.Selected()
	require.Len(t, selected, 1)
	pasted := s.Nodes[selected[0]]
	assert.NotEqual(t, ids.source, pasted.ID)
	assert.Equal(t, 220.0, pasted.X)
	assert.Equal(t, 220.0, pasted.Y)
	assert.Equal(t, "Source", pasted.Text)
	assert.Len(t, pasted.ConnectPoints, 4)
	assert.False(t, s.Nodes[ids.source].IsSelected)
	assert.Contains(t, kinds(res.Notifications), "data.changed")

	bad := e.Apply(Paste{Data: json.RawMessage(`{"not":"a list"}`)})
	assert.Same(t, s, bad.Scene)
}

func TestTextEditIsOneStep(t *testing.T) {
	e, ids := newSampleEngine(t)
	res := e.Apply(TextEdit{ID: ids.target})
	assert.True(t, res.Scene.Nodes[ids.target].IsTextEditing)

	e.Apply(TextChange{ID: ids.target, Text: "T", Phase: transform.InProgress})
	e.Apply(TextChange{ID: ids.target, Text: "Ta", Phase: transform.InProgress})
	res = e.Apply(TextChange{ID: ids.target, Text: "Tag", Phase: transform.End})

	assert.Equal(t, "Tag", res.Scene.Nodes[ids.target].Text)
	assert.False(t, res.Scene.Nodes[ids.target].IsTextEditing)
	assert.Equal(t, 2, e.history.Len())

	res = e.Apply(Undo{})
	assert.Equal(t, "Target", res.Scene.Nodes[ids.target].Text)

	before := e.Scene()
	assert.Same(t, before, e.Apply(TextEdit{ID: ids.group}).Scene, "groups carry no text")
}

func TestNudgeMovesSelection(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(SelectAll{})
	res := e.Apply(Nudge{DX: 0, DY: -10})

	assert.Equal(t, 190.0, res.Scene.Nodes[ids.source].Y)
	assert.Equal(t, 410.0, res.Scene.Nodes[ids.ellipse].Y)
	assert.Contains(t, kinds(res.Notifications), "connect.points.moved")
	for _, p := range res.Scene.Points(ids.line) {
		assert.Equal(t, 190.0, p.Y)
	}
}

func TestKeepProportionOnPseudoGroup(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.source})
	e.Apply(Select{ID: ids.target, CtrlHeld: true})

	res := e.Apply(KeepProportion{ID: document.MultiSelectGroupID, Value: true})
	require.NotNil(t, res.Scene.MultiSelect)
	assert.True(t, res.Scene.MultiSelect.KeepProportion)
	assert.Equal(t, 1, e.history.Len(), "selection state is not history")

	res = e.Apply(KeepProportion{ID: ids.ellipse, Value: true})
	assert.True(t, res.Scene.Nodes[ids.ellipse].KeepProportion)
	assert.Equal(t, 2, e.history.Len())
}

func TestTransformGroupSettles(t *testing.T) {
	e, ids := newSampleEngine(t)
	g := e.Scene().Nodes[ids.group]
	start := g.Frame()
	end := start
	end.Width = start.Width * 2

	e.Apply(Transform{ID: ids.group, Phase: transform.Start, StartShape: start, EndShape: start})
	res := e.Apply(Transform{ID: ids.group, Phase: transform.End, StartShape: start, EndShape: end})

	got := res.Scene.Nodes[ids.group]
	assert.InDelta(t, end.Width, got.Width, 1e-9)
	assert.False(t, got.IsTransforming)
	assert.Equal(t, 2, e.history.Len())
}

func TestUndoWithoutHistory(t *testing.T) {
	e := NewEngine(Options{HistoryLimit: 3})
	res := e.Apply(Undo{})
	assert.Same(t, e.Scene(), res.Scene)
	assert.Empty(t, res.Notifications)
	assert.False(t, e.CanUndo())
	assert.Equal(t, 3, e.history.Limit())
}

func TestLoadRoundTrip(t *testing.T) {
	e, _ := newSampleEngine(t)
	data, err := e.Data()
	require.NoError(t, err)

	other := NewEngine(Options{})
	require.NoError(t, other.Load("copy", data))
	assert.Equal(t, e.Scene().Roots, other.Scene().Roots)
	assert.Equal(t, "copy", other.Scene().ID)
	assert.Error(t, other.Load("bad", []byte("{")))
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand("drag", json.RawMessage(`{"id":"r1","phase":"end","startX":1,"endX":6}`))
	require.NoError(t, err)
	assert.Equal(t, Drag{ID: "r1", Phase: transform.End, StartX: 1, EndX: 6}, cmd)

	cmd, err = DecodeCommand("undo", nil)
	require.NoError(t, err)
	assert.Equal(t, Undo{}, cmd)

	_, err = DecodeCommand("teleport", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = DecodeCommand("drag", json.RawMessage(`{"phase":"sideways"}`))
	assert.Error(t, err)
}

func TestDragThroughChildMovesSelectedGroup(t *testing.T) {
	e, ids := newSampleEngine(t)
	items := e.Scene().Nodes[ids.group].Items
	require.Len(t, items, 2)
	rect, label := items[0], items[1]
	groupX := e.Scene().Nodes[ids.group].X

	e.Apply(Select{ID: ids.group})
	res := e.Apply(Select{ID: rect, WasAncestorSelectedOnPointerDown: true})
	require.Equal(t, []string{ids.group}, res.Scene.Selected(), "pointer-down keeps the group selected")

	e.Apply(Drag{ID: rect, Phase: transform.Start})
	res = e.Apply(Drag{ID: rect, Phase: transform.End, EndX: 50})

	s := res.Scene
	assert.Equal(t, 870.0, s.Nodes[rect].X)
	assert.Equal(t, 870.0, s.Nodes[label].X, "siblings move with their selected group")
	assert.InDelta(t, groupX+50, s.Nodes[ids.group].X, 1e-9)
	assert.Equal(t, 2, e.history.Len())
}

func TestGestureWithoutChangeIsNotRecorded(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Select{ID: ids.ellipse})

	e.Apply(Drag{ID: ids.ellipse, Phase: transform.Start, StartX: 10, StartY: 10, EndX: 10, EndY: 10})
	res := e.Apply(Drag{ID: ids.ellipse, Phase: transform.End, StartX: 10, StartY: 10, EndX: 10, EndY: 10})
	assert.False(t, res.Scene.Nodes[ids.ellipse].IsDragging)
	assert.NotContains(t, kinds(res.Notifications), "data.changed")
	assert.Equal(t, 1, e.history.Len())
	assert.False(t, e.CanUndo())

	frame := res.Scene.Nodes[ids.ellipse].Frame()
	e.Apply(Transform{ID: ids.ellipse, Phase: transform.Start, StartShape: frame, EndShape: frame})
	res = e.Apply(Transform{ID: ids.ellipse, Phase: transform.End, StartShape: frame, EndShape: frame})
	assert.False(t, res.Scene.Nodes[ids.ellipse].IsTransforming)
	assert.Equal(t, 1, e.history.Len())
}

func TestAbandonedDragIsRolledBack(t *testing.T) {
	e, ids := newSampleEngine(t)
	e.Apply(Drag{ID: ids.source, Phase: transform.Start})
	res := e.Apply(Drag{ID: ids.source, Phase: transform.InProgress, EndX: 50})
	require.Equal(t, 250.0, res.Scene.Nodes[ids.source].X)

	res = e.Apply(Select{ID: ids.ellipse})
	src := res.Scene.Nodes[ids.source]
	assert.Equal(t, 200.0, src.X)
	assert.False(t, src.IsDragging)
	assert.Equal(t, []string{ids.ellipse}, res.Scene.Selected())

	e.Apply(Nudge{DX: 1})
	assert.Equal(t, 2, e.history.Len())

	res = e.Apply(Undo{})
	assert.Equal(t, 200.0, res.Scene.Nodes[ids.source].X)
	assert.Equal(t, 380.0, res.Scene.Nodes[ids.ellipse].X)
	assert.False(t, e.CanUndo(), "the nudge was the only recorded step")
}
