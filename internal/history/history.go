// Package history keeps a bounded undo/redo stack of diagram snapshots.
package history

import (
	"slices"

	"github.com/inamate/diagram/internal/document"
)

// DefaultLimit is the number of snapshots kept when no limit is configured.
const DefaultLimit = 20

// Snapshot is the persistable part of a scene at one point in time. It
// shares nothing with the live scene.
type Snapshot struct {
	MinX  float64
	MinY  float64
	Roots []string
	Nodes map[string]*document.Node
}

// Manager is the undo stack. The entry at Index is the current state.
type Manager struct {
	limit       int
	entries     []Snapshot
	index       int
	lastGesture string
}

// New returns a manager whose first entry is initial.
func New(limit int, initial *document.Scene) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{
		limit:   limit,
		entries: []Snapshot{snapshot(initial)},
	}
}

// Record stores s as the newest entry. Consecutive records with the same
// non-empty gesture id replace each other, so one drag is one undo step.
// Any redo entries are dropped.
func (m *Manager) Record(gestureID string, s *document.Scene) {
	snap := snapshot(s)
	m.entries = m.entries[:m.index+1]
	if gestureID != "" && gestureID == m.lastGesture && m.index > 0 {
		m.entries[m.index] = snap
		return
	}
	m.lastGesture = gestureID
	m.entries = append(m.entries, snap)
	m.index++
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = slices.Delete(m.entries, 0, over)
		m.index = max(m.index-over, 0)
	}
}

// Undo steps back and returns live with the restored diagram. Selection is
// not part of history and is cleared. ok is false at the oldest entry.
func (m *Manager) Undo(live *document.Scene) (*document.Scene, bool) {
	if !m.CanUndo() {
		return live, false
	}
	m.index--
	m.lastGesture = ""
	return restore(live, m.entries[m.index]), true
}

// Redo steps forward. ok is false at the newest entry.
func (m *Manager) Redo(live *document.Scene) (*document.Scene, bool) {
	if !m.CanRedo() {
		return live, false
	}
	m.index++
	m.lastGesture = ""
	return restore(live, m.entries[m.index]), true
}

func (m *Manager) CanUndo() bool { return m.index > 0 }
func (m *Manager) CanRedo() bool { return m.index < len(m.entries)-1 }
func (m *Manager) Len() int      { return len(m.entries) }
func (m *Manager) Index() int    { return m.index }
func (m *Manager) Limit() int    { return m.limit }

// Reset drops all history and starts over from s.
func (m *Manager) Reset(s *document.Scene) {
	m.entries = []Snapshot{snapshot(s)}
	m.index = 0
	m.lastGesture = ""
}

func snapshot(s *document.Scene) Snapshot {
	nodes := make(map[string]*document.Node, len(s.Nodes))
	for id, n := range s.Nodes {
		c := n.Clone()
		c.ClearTransient()
		nodes[id] = c
	}
	return Snapshot{
		MinX:  s.MinX,
		MinY:  s.MinY,
		Roots: slices.Clone(s.Roots),
		Nodes: nodes,
	}
}

// restore builds a new live scene from snap, keeping the live canvas size
// and id. The snapshot is cloned again so the stored entry stays intact.
func restore(live *document.Scene, snap Snapshot) *document.Scene {
	out := *live
	out.MinX, out.MinY = snap.MinX, snap.MinY
	out.Roots = slices.Clone(snap.Roots)
	out.Nodes = make(map[string]*document.Node, len(snap.Nodes))
	for id, n := range snap.Nodes {
		out.Nodes[id] = n.Clone()
	}
	out.MultiSelect = nil
	return &out
}
