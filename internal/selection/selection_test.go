package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
)

type fixture struct {
	scene         *document.Scene
	a, b, g, c, d string
	line          string
}

// newFixture builds: rect A, rect B, group G{C, D} and a connector A to B.
func newFixture(t *testing.T) fixture {
	t.Helper()
	tx := document.NewScene("sel").Edit()
	a := document.NewRectangle(0, 0, 100, 100)
	b := document.NewRectangle(300, 0, 100, 50)
	tx.InsertShape("", -1, a)
	tx.InsertShape("", -1, b)

	g := document.NewGroup()
	tx.Insert("", -1, g)
	c := document.NewRectangle(0, 300, 40, 40)
	d := document.NewEllipse(100, 300, 40, 40)
	tx.InsertShape(g.ID, -1, c)
	tx.InsertShape(g.ID, -1, d)
	tx.RefreshOutline(g.ID)

	start, _ := tx.Scene().ConnectPointByName(a.ID, "right")
	end, _ := tx.Scene().ConnectPointByName(b.ID, "left")
	line := document.NewConnectLine(a.ID, start.ID, b.ID, end.ID)
	tx.Insert("", -1, line)
	tx.SetPoints(line.ID, []geometry.Point{start.Center(), end.Center()})

	return fixture{scene: tx.Commit(), a: a.ID, b: b.ID, g: g.ID, c: c.ID, d: d.ID, line: line.ID}
}

func click(t *testing.T, s *document.Scene, id string, opts Options) *document.Scene {
	t.Helper()
	next, err := Select(s, id, opts)
	require.NoError(t, err)
	return next
}

func TestSelectTopLevel(t *testing.T) {
	f := newFixture(t)
	s := click(t, f.scene, f.a, Options{})

	assert.Equal(t, []string{f.a}, s.Selected())
	assert.Nil(t, s.MultiSelect)
	a := s.Nodes[f.a]
	assert.True(t, a.ShowOutline)
	assert.True(t, a.ShowTransformControls)
	assert.False(t, a.IsMultiSelectSource)
	assert.Same(t, f.scene.Nodes[f.b], s.Nodes[f.b], "unselected siblings keep identity")
}

func TestCtrlSelectBuildsPseudoGroup(t *testing.T) {
	f := newFixture(t)
	s := click(t, f.scene, f.a, Options{})
	s = click(t, s, f.b, Options{CtrlHeld: true})

	assert.ElementsMatch(t, []string{f.a, f.b}, s.Selected())
	require.NotNil(t, s.MultiSelect)
	assert.Equal(t, document.MultiSelectGroupID, s.MultiSelect.ID)
	assert.Equal(t, []string{f.a, f.b}, s.MultiSelect.Items)

	box := s.Nodes[f.a].Frame().Box().Union(s.Nodes[f.b].Frame().Box())
	ms := s.MultiSelect.Frame()
	assert.Equal(t, box.Center().X, ms.X)
	assert.Equal(t, box.Center().Y, ms.Y)
	assert.Equal(t, box.Width(), ms.Width)
	assert.Equal(t, box.Height(), ms.Height)
	assert.Equal(t, 0.0, ms.Rotation)

	for _, id := range []string{f.a, f.b} {
		assert.True(t, s.Nodes[id].IsMultiSelectSource)
		assert.False(t, s.Nodes[id].ShowTransformControls)
	}

	s = click(t, s, f.b, Options{CtrlHeld: true})
	assert.Equal(t, []string{f.a}, s.Selected(), "ctrl-click toggles off")
	assert.Nil(t, s.MultiSelect)
	assert.False(t, s.Nodes[f.a].IsMultiSelectSource)
}

func TestDrillDownAdvancesOnlyOnClick(t *testing.T) {
	f := newFixture(t)

	s := click(t, f.scene, f.c, Options{})
	assert.Equal(t, []string{f.g}, s.Selected(), "first press selects the outermost group")
	assert.True(t, s.Nodes[f.c].IsAncestorSelected)
	assert.True(t, s.Nodes[f.c].ShowOutline)

	s = click(t, s, f.c, Options{TriggeredByClick: true})
	assert.Equal(t, []string{f.g}, s.Selected(), "completing the first click does not drill")

	pressed := click(t, s, f.c, Options{WasAncestorSelectedOnPointerDown: true})
	assert.Same(t, s, pressed, "pressing on a selected group keeps it for dragging")

	s = click(t, pressed, f.c, Options{TriggeredByClick: true, WasAncestorSelectedOnPointerDown: true})
	assert.Equal(t, []string{f.c}, s.Selected())
	assert.False(t, s.Nodes[f.g].IsSelected)
	assert.True(t, s.Nodes[f.c].ShowTransformControls)
}

func TestCtrlSelectCollapsesCompleteGroup(t *testing.T) {
	f := newFixture(t)
	s := click(t, f.scene, f.c, Options{})
	s = click(t, s, f.c, Options{TriggeredByClick: true, WasAncestorSelectedOnPointerDown: true})
	require.Equal(t, []string{f.c}, s.Selected())

	s = click(t, s, f.d, Options{CtrlHeld: true})
	assert.Equal(t, []string{f.g}, s.Selected())
	assert.Nil(t, s.MultiSelect)
}

func TestMixedSelectionRejected(t *testing.T) {
	f := newFixture(t)
	s := click(t, f.scene, f.a, Options{})

	next, err := Select(s, f.line, Options{CtrlHeld: true})
	assert.ErrorIs(t, err, ErrMixedSelection)
	assert.Same(t, s, next)

	lineOnly := click(t, s, f.line, Options{})
	assert.Equal(t, []string{f.line}, lineOnly.Selected())
	assert.False(t, lineOnly.Nodes[f.line].ShowTransformControls, "connectors have no frame")

	next, err = Select(lineOnly, f.a, Options{CtrlHeld: true})
	assert.ErrorIs(t, err, ErrMixedSelection)
	assert.Same(t, lineOnly, next)
}

func TestConnectorsSelectTogether(t *testing.T) {
	f := newFixture(t)
	tx := f.scene.Edit()
	start, _ := tx.Scene().ConnectPointByName(f.a, "bottom")
	end, _ := tx.Scene().ConnectPointByName(f.b, "bottom")
	second := document.NewConnectLine(f.a, start.ID, f.b, end.ID)
	tx.Insert("", -1, second)
	tx.SetPoints(second.ID, []geometry.Point{start.Center(), {X: 0, Y: 120}, {X: 350, Y: 120}, end.Center()})
	s := tx.Commit()

	s = click(t, s, f.line, Options{})
	s = click(t, s, second.ID, Options{CtrlHeld: true})

	assert.ElementsMatch(t, []string{f.line, second.ID}, s.Selected())
	require.NotNil(t, s.MultiSelect)
	assert.True(t, s.Nodes[second.ID].IsMultiSelectSource)
}

func TestSelectPathPointSelectsOwner(t *testing.T) {
	f := newFixture(t)
	point := f.scene.Nodes[f.line].Items[0]
	s := click(t, f.scene, point, Options{})
	assert.Equal(t, []string{f.line}, s.Selected())

	_, err := Select(f.scene, "missing", Options{})
	assert.ErrorIs(t, err, ErrNotSelectable)
}

func TestPointerDownKeepsMultiSelection(t *testing.T) {
	f := newFixture(t)
	s := click(t, f.scene, f.a, Options{})
	s = click(t, s, f.b, Options{CtrlHeld: true})

	pressed := click(t, s, f.a, Options{WasSelectedOnPointerDown: true})
	assert.Same(t, s, pressed)

	clicked := click(t, pressed, f.a, Options{TriggeredByClick: true, WasSelectedOnPointerDown: true})
	assert.Equal(t, []string{f.a}, clicked.Selected())
}

func TestPlainSelectIsExclusive(t *testing.T) {
	f := newFixture(t)
	s := f.scene
	for _, id := range []string{f.a, f.b, f.c, f.line, f.d, f.a} {
		s = click(t, s, id, Options{})
		sel := s.Selected()
		require.Len(t, sel, 1, "after selecting %s", id)
		assert.Nil(t, s.MultiSelect)
	}
}

func TestSelectAllSkipsConnectors(t *testing.T) {
	f := newFixture(t)
	s := SelectAll(f.scene)
	assert.Equal(t, []string{f.a, f.b, f.g}, s.Selected())
	require.NotNil(t, s.MultiSelect)

	single := document.NewScene("one").Edit()
	single.InsertShape("", -1, document.NewRectangle(0, 0, 10, 10))
	one := single.Commit()
	assert.Same(t, one, SelectAll(one))
}

func TestKeepProportionIsSticky(t *testing.T) {
	f := newFixture(t)
	s := SelectAll(f.scene)
	tx := s.Edit()
	ms := s.MultiSelect.Clone()
	ms.KeepProportion = true
	tx.SetMultiSelect(ms)
	s = tx.Commit()

	s = click(t, s, f.g, Options{CtrlHeld: true})
	require.NotNil(t, s.MultiSelect)
	assert.Equal(t, []string{f.a, f.b}, s.MultiSelect.Items)
	assert.True(t, s.MultiSelect.KeepProportion)
}

func TestClearAndRefresh(t *testing.T) {
	f := newFixture(t)
	s := SelectAll(f.scene)
	cleared := Clear(s)
	assert.Empty(t, cleared.Selected())
	assert.Nil(t, cleared.MultiSelect)
	for _, n := range cleared.Nodes {
		assert.False(t, n.HasTransient(), n.ID)
	}
	assert.Same(t, cleared, Refresh(cleared))
}
