package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/diagram/internal/document"
)

func withRect(s *document.Scene, x float64) (*document.Scene, string) {
	tx := s.Edit()
	r := document.NewRectangle(x, 0, 10, 10)
	tx.InsertShape("", -1, r)
	return tx.Commit(), r.ID
}

func move(s *document.Scene, id string, x float64) *document.Scene {
	tx := s.Edit()
	tx.Update(id, func(n *document.Node) { n.X = x })
	return tx.Commit()
}

func TestRecordUndoRedo(t *testing.T) {
	s0 := document.NewScene("h")
	m := New(DefaultLimit, s0)
	assert.False(t, m.CanUndo())

	s1, id := withRect(s0, 0)
	m.Record("add", s1)
	s2 := move(s1, id, 50)
	m.Record("move", s2)
	require.Equal(t, 3, m.Len())
	require.Equal(t, 2, m.Index())

	live, ok := m.Undo(s2)
	require.True(t, ok)
	assert.Equal(t, 0.0, live.Nodes[id].X)

	live, ok = m.Undo(live)
	require.True(t, ok)
	assert.Empty(t, live.Roots)

	_, ok = m.Undo(live)
	assert.False(t, ok, "no-op at the oldest entry")

	live, ok = m.Redo(live)
	require.True(t, ok)
	live, ok = m.Redo(live)
	require.True(t, ok)
	assert.Equal(t, 50.0, live.Nodes[id].X)
	_, ok = m.Redo(live)
	assert.False(t, ok)
}

func TestSameGestureCoalesces(t *testing.T) {
	s, id := withRect(document.NewScene("h"), 0)
	m := New(DefaultLimit, s)

	for i := 1; i <= 5; i++ {
		s = move(s, id, float64(i))
		m.Record("drag-1", s)
	}
	assert.Equal(t, 2, m.Len())

	live, ok := m.Undo(s)
	require.True(t, ok)
	assert.Equal(t, 0.0, live.Nodes[id].X)

	live, _ = m.Redo(live)
	assert.Equal(t, 5.0, live.Nodes[id].X)
}

func TestRecordAfterUndoDropsFuture(t *testing.T) {
	s, id := withRect(document.NewScene("h"), 0)
	m := New(DefaultLimit, s)
	s1 := move(s, id, 1)
	m.Record("a", s1)
	m.Record("b", move(s1, id, 2))

	live, _ := m.Undo(s1)
	m.Record("c", move(live, id, 9))

	assert.Equal(t, 3, m.Len())
	assert.False(t, m.CanRedo())
	live, _ = m.Undo(live)
	assert.Equal(t, 1.0, live.Nodes[id].X)
}

func TestHistoryIsBounded(t *testing.T) {
	s, id := withRect(document.NewScene("h"), 0)
	m := New(DefaultLimit, s)
	for i := range 50 {
		s = move(s, id, float64(i+1))
		m.Record(fmt.Sprintf("g%d", i), s)
		assert.LessOrEqual(t, m.Len(), DefaultLimit)
		assert.GreaterOrEqual(t, m.Index(), 0)
		assert.Less(t, m.Index(), m.Len())
	}
	assert.Equal(t, DefaultLimit, m.Len())

	undone := 0
	for m.CanUndo() {
		s, _ = m.Undo(s)
		undone++
	}
	assert.Equal(t, DefaultLimit-1, undone)
	assert.Equal(t, float64(50-DefaultLimit+1), s.Nodes[id].X)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	s, id := withRect(document.NewScene("h"), 0)
	m := New(DefaultLimit, s)

	// Mutating the live node after recording must not leak into history.
	s.Nodes[id].X = 999
	s.Nodes[id].IsSelected = true

	m.Record("next", move(s, id, 1))
	restored, ok := m.Undo(s)
	require.True(t, ok)
	assert.Equal(t, 0.0, restored.Nodes[id].X)
	assert.False(t, restored.Nodes[id].IsSelected, "transient state is not recorded")

	restored.Nodes[id].X = 123
	again, _ := m.Redo(restored)
	again, _ = m.Undo(again)
	assert.Equal(t, 0.0, again.Nodes[id].X, "restored scenes do not alias entries")
}

func TestRestoreKeepsLiveCanvas(t *testing.T) {
	s0 := document.NewScene("h")
	m := New(0, s0)
	assert.Equal(t, DefaultLimit, m.Limit())

	tx := s0.Edit()
	tx.SetOrigin(10, 20)
	s1 := tx.Commit()
	m.Record("origin", s1)

	live := *s1
	live.Width = 2000
	restored, _ := m.Undo(&live)
	assert.Equal(t, 0.0, restored.MinX)
	assert.Equal(t, 2000.0, restored.Width)
	assert.Equal(t, "h", restored.ID)
}
