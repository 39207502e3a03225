// Package selection resolves pointer selections against the diagram tree and
// maintains the derived selection state: outline flags and the synthesized
// multi-selection group.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
)

var (
	ErrMixedSelection = errors.New("connector lines cannot be selected together with other nodes")
	ErrNotSelectable  = errors.New("node cannot be selected")
)

// Options describes the pointer gesture that triggered a selection.
type Options struct {
	CtrlHeld                         bool
	TriggeredByClick                 bool
	WasSelectedOnPointerDown         bool
	WasAncestorSelectedOnPointerDown bool
}

// Select resolves targetID against its ancestor chain and returns the scene
// with the new selection. Nested targets are reached by progressive
// drill-down: the outermost unselected ancestor is selected first and each
// completed click on an already selected chain advances one level.
//
// On error the input scene is returned unchanged.
func Select(s *document.Scene, targetID string, opts Options) (*document.Scene, error) {
	target, ok := selectableOwner(s, targetID)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrNotSelectable, targetID)
	}
	chain := append(s.Ancestors(target), target)

	deepest := -1
	for i, id := range chain {
		if s.Nodes[id].IsSelected {
			deepest = i
		}
	}

	tx := s.Edit()
	if opts.CtrlHeld {
		resolved := ctrlTarget(s, chain)
		toggle(tx, chain[resolved])
		collapseGroups(tx)
	} else {
		resolved := deepest
		switch {
		case deepest == -1:
			resolved = 0
		case opts.TriggeredByClick && opts.WasAncestorSelectedOnPointerDown && deepest < len(chain)-1:
			resolved = deepest + 1
		}
		id := chain[resolved]
		if s.Nodes[id].IsSelected {
			// Pointer-down on an existing selection keeps it intact so the
			// whole set can be dragged; only a completed click narrows it.
			if !opts.TriggeredByClick || !opts.WasSelectedOnPointerDown {
				return s, nil
			}
		}
		setOnly(tx, []string{id})
	}

	if err := checkMixed(tx.Scene()); err != nil {
		slog.Info("selection rejected", "target", targetID, "error", err)
		return s, err
	}
	Reconcile(tx)
	return tx.Commit(), nil
}

// Set replaces the selection with ids.
func Set(s *document.Scene, ids []string) (*document.Scene, error) {
	tx := s.Edit()
	setOnly(tx, ids)
	if err := checkMixed(tx.Scene()); err != nil {
		return s, err
	}
	Reconcile(tx)
	return tx.Commit(), nil
}

// SelectAll selects every top-level node except connector lines. It is a
// no-op when fewer than two such nodes exist.
func SelectAll(s *document.Scene) *document.Scene {
	var ids []string
	for _, n := range s.Children("") {
		if n.Kind.Selectable() && n.Kind != document.KindConnectLine {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) < 2 {
		return s
	}
	tx := s.Edit()
	setOnly(tx, ids)
	Reconcile(tx)
	return tx.Commit()
}

// Clear deselects everything.
func Clear(s *document.Scene) *document.Scene {
	tx := s.Edit()
	setOnly(tx, nil)
	Reconcile(tx)
	return tx.Commit()
}

// Refresh recomputes the derived selection state of s.
func Refresh(s *document.Scene) *document.Scene {
	tx := s.Edit()
	Reconcile(tx)
	return tx.Commit()
}

// Reconcile recomputes outline flags, transform-control visibility and the
// multi-selection group from the IsSelected flags. Nodes whose flags do not
// change are left untouched.
func Reconcile(tx *document.Tx) {
	s := tx.Scene()
	selected := s.Selected()
	multi := len(selected) > 1

	var visit func(ids []string, ancestorSelected bool)
	visit = func(ids []string, ancestorSelected bool) {
		for _, id := range ids {
			n, ok := s.Nodes[id]
			if !ok {
				continue
			}
			want := flags{}
			if n.Kind.Selectable() {
				want.ancestorSelected = ancestorSelected
				want.outline = n.IsSelected || ancestorSelected
				want.source = n.IsSelected && multi
				want.controls = n.IsSelected && n.Kind.HasFrame() && !want.source
			}
			if current(n) != want {
				tx.Update(id, func(m *document.Node) {
					m.IsAncestorSelected = want.ancestorSelected
					m.ShowOutline = want.outline
					m.IsMultiSelectSource = want.source
					m.ShowTransformControls = want.controls
				})
			}
			visit(n.Items, ancestorSelected || n.IsSelected)
		}
	}
	visit(s.Roots, false)

	if !multi {
		tx.SetMultiSelect(nil)
		return
	}
	next := pseudoGroup(s, selected)
	if prev := s.MultiSelect; prev != nil {
		next.KeepProportion = prev.KeepProportion
		if sameGroup(prev, next) {
			return
		}
	}
	tx.SetMultiSelect(next)
}

// PseudoGroupFrame returns the frame of a multi-selection over ids: the
// axis-aligned box around the nodes, unrotated.
func PseudoGroupFrame(s *document.Scene, ids []string) (geometry.Frame, bool) {
	box, ok := s.SelectionBox(ids)
	if !ok {
		return geometry.Frame{}, false
	}
	return geometry.OrientedBox(box, 0, 0, 0), true
}

func pseudoGroup(s *document.Scene, selected []string) *document.Node {
	g := &document.Node{
		ID:                    document.MultiSelectGroupID,
		Kind:                  document.KindGroup,
		Items:                 slices.Clone(selected),
		ScaleX:                1,
		ScaleY:                1,
		IsSelected:            true,
		ShowOutline:           true,
		ShowTransformControls: true,
	}
	if f, ok := PseudoGroupFrame(s, selected); ok {
		g.SetFrame(f)
	}
	return g
}

func sameGroup(a, b *document.Node) bool {
	return slices.Equal(a.Items, b.Items) && a.Frame() == b.Frame() && a.KeepProportion == b.KeepProportion
}

type flags struct {
	ancestorSelected bool
	outline          bool
	source           bool
	controls         bool
}

func current(n *document.Node) flags {
	return flags{
		ancestorSelected: n.IsAncestorSelected,
		outline:          n.ShowOutline,
		source:           n.IsMultiSelectSource,
		controls:         n.ShowTransformControls,
	}
}

// selectableOwner climbs from id to the nearest selectable node, so a click
// on a path point selects its path.
func selectableOwner(s *document.Scene, id string) (string, bool) {
	n, ok := s.Nodes[id]
	for ok && !n.Kind.Selectable() {
		n, ok = s.Nodes[n.Parent]
	}
	if !ok {
		return "", false
	}
	return n.ID, true
}

// ctrlTarget picks the chain level a ctrl-click toggles: the deepest level
// already taking part in the selection, either selected itself or next to a
// selected sibling. Otherwise the outermost node.
func ctrlTarget(s *document.Scene, chain []string) int {
	for i := len(chain) - 1; i >= 0; i-- {
		id := chain[i]
		if s.Nodes[id].IsSelected {
			return i
		}
		for _, sib := range s.ItemsOf(s.Nodes[id].Parent) {
			if n, ok := s.Nodes[sib]; ok && sib != id && n.IsSelected {
				return i
			}
		}
	}
	return 0
}

// toggle flips id's selection, keeping the rest of the selection. Selecting
// a node drops any selected ancestor or descendant so selections never nest.
func toggle(tx *document.Tx, id string) {
	s := tx.Scene()
	n := s.Nodes[id]
	if n.IsSelected {
		tx.Update(id, func(m *document.Node) { m.IsSelected = false })
		return
	}
	for _, other := range append(s.Ancestors(id), s.Descendants(id)...) {
		if o, ok := s.Nodes[other]; ok && o.IsSelected {
			tx.Update(other, func(m *document.Node) { m.IsSelected = false })
		}
	}
	tx.Update(id, func(m *document.Node) { m.IsSelected = true })
}

// setOnly makes ids the exact selection.
func setOnly(tx *document.Tx, ids []string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s := tx.Scene()
	var changes []string
	s.Walk(func(n *document.Node, _ int) bool {
		if n.IsSelected != want[n.ID] {
			changes = append(changes, n.ID)
		}
		return true
	})
	for _, id := range changes {
		tx.Update(id, func(m *document.Node) { m.IsSelected = want[id] })
	}
}

// collapseGroups promotes every group whose items are all selected to a
// single selected group, innermost groups first. Groups with one item are
// skipped so drill-down can still reach a lone child.
func collapseGroups(tx *document.Tx) {
	var visit func(ids []string)
	visit = func(ids []string) {
		for _, id := range ids {
			n, ok := tx.Scene().Nodes[id]
			if !ok || n.Kind != document.KindGroup {
				continue
			}
			visit(n.Items)
			n = tx.Scene().Nodes[id]
			if n.IsSelected || len(n.Items) < 2 {
				continue
			}
			all := true
			for _, child := range n.Items {
				if c, ok := tx.Scene().Nodes[child]; !ok || !c.IsSelected {
					all = false
					break
				}
			}
			if !all {
				continue
			}
			for _, child := range n.Items {
				tx.Update(child, func(m *document.Node) { m.IsSelected = false })
			}
			tx.Update(id, func(m *document.Node) { m.IsSelected = true })
		}
	}
	visit(tx.Scene().Roots)
}

func checkMixed(s *document.Scene) error {
	selected := s.Selected()
	if len(selected) < 2 {
		return nil
	}
	var line, other string
	for _, id := range selected {
		if s.Nodes[id].Kind == document.KindConnectLine {
			line = id
		} else {
			other = id
		}
	}
	if line != "" && other != "" {
		return fmt.Errorf("%w: %s with %s", ErrMixedSelection, line, other)
	}
	return nil
}
