// Package engine owns a live diagram and applies intent events to it. Each
// command yields a new immutable scene plus the notifications consumers need
// (connector redraws, outline previews, persistence).
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
	"github.com/inamate/diagram/internal/history"
	"github.com/inamate/diagram/internal/routing"
	"github.com/inamate/diagram/internal/selection"
	"github.com/inamate/diagram/internal/transform"
)

// PasteOffset is how far pasted items are shifted from their source.
const PasteOffset = 20.0

type Options struct {
	HistoryLimit  int
	RoutingMargin float64
	Logger        *slog.Logger
}

// Engine is the diagram engine. It is not safe for concurrent use; callers
// serialize commands.
type Engine struct {
	scene   *document.Scene
	history *history.Manager
	margin  float64
	log     *slog.Logger

	drag      *dragSession
	transform *transformSession
	textEdit  string // gesture id of the running text edit
}

// Gesture sessions keep the scene from before Start so a gesture that never
// ends can be rolled back.
type dragSession struct {
	gestureID string
	targetID  string
	base      *document.Scene
	drag      *transform.Drag
}

type transformSession struct {
	gestureID string
	targetID  string
	base      *document.Scene
	tr        *transform.Transform
}

func (d *dragSession) continuedBy(cmd Command) bool {
	c, ok := cmd.(Drag)
	return ok && c.ID == d.targetID && c.Phase != transform.Start && c.Phase != transform.Instant
}

func (t *transformSession) continuedBy(cmd Command) bool {
	c, ok := cmd.(Transform)
	return ok && c.ID == t.targetID && c.Phase != transform.Start && c.Phase != transform.Instant
}

// NewEngine creates an engine holding an empty diagram.
func NewEngine(opts Options) *Engine {
	if opts.RoutingMargin <= 0 {
		opts.RoutingMargin = routing.Margin
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		margin: opts.RoutingMargin,
		log:    opts.Logger,
	}
	e.reset(document.NewScene(""), opts.HistoryLimit)
	return e
}

func (e *Engine) reset(s *document.Scene, limit int) {
	if limit <= 0 && e.history != nil {
		limit = e.history.Limit()
	}
	e.scene = s
	e.history = history.New(limit, s)
	e.drag, e.transform, e.textEdit = nil, nil, ""
}

// Load replaces the diagram with stored data. Items that cannot be loaded
// are skipped and logged.
func (e *Engine) Load(id string, data []byte) error {
	s, skipped, err := document.Deserialize(id, data)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		e.log.Warn("diagram loaded with skipped items", "diagram", id, "skipped", len(skipped))
	}
	e.reset(s, 0)
	return nil
}

// LoadSample replaces the diagram with the built-in sample.
func (e *Engine) LoadSample(id string) {
	e.reset(document.NewSampleScene(id), 0)
}

// Scene returns the live scene.
func (e *Engine) Scene() *document.Scene {
	return e.scene
}

// Data returns the persistable form of the live diagram.
func (e *Engine) Data() ([]byte, error) {
	return document.Serialize(e.scene)
}

// View returns the render snapshot of the live diagram as JSON.
func (e *Engine) View() ([]byte, error) {
	return json.Marshal(document.View(e.scene))
}

func (e *Engine) CanUndo() bool { return e.history.CanUndo() }
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// Apply runs one command against the live diagram. Commands whose
// preconditions do not hold are logged and leave the diagram unchanged.
func (e *Engine) Apply(cmd Command) Result {
	e.abandonGestures(cmd)

	var res Result
	switch c := cmd.(type) {
	case Select:
		res = e.selectNode(c)
	case SelectAll:
		res = e.update(selection.SelectAll(e.scene))
	case ClearSelection:
		res = e.update(selection.Clear(e.scene))
	case Drag:
		res = e.dragNodes(c)
	case Transform:
		res = e.transformNode(c)
	case Connect:
		res = e.connect(c)
	case PreviewConnect:
		res = e.previewConnect(c)
	case Group:
		res = e.group()
	case Ungroup:
		res = e.ungroup()
	case Delete:
		res = e.deleteSelected()
	case Undo:
		res = e.undo()
	case Redo:
		res = e.redo()
	case TextEdit:
		res = e.startTextEdit(c)
	case TextChange:
		res = e.changeText(c)
	case AddShape:
		res = e.addShape(c)
	case AddPath:
		res = e.addPath(c)
	case Paste:
		res = e.paste(c)
	case Nudge:
		res = e.nudge(c)
	case KeepProportion:
		res = e.keepProportion(c)
	default:
		e.log.Warn("unknown command", "command", fmt.Sprintf("%T", cmd))
		res = e.unchanged()
	}
	return res
}

// abandonGestures rolls back a drag or transform that cmd does not continue.
// Its intermediate frames were never recorded, so the live scene returns to
// the state before the gesture started.
func (e *Engine) abandonGestures(cmd Command) {
	if d := e.drag; d != nil && !d.continuedBy(cmd) {
		e.log.Info("gesture abandoned", "gesture", "drag", "target", d.targetID, "by", cmd.Name())
		e.scene = d.base
		e.drag = nil
	}
	if t := e.transform; t != nil && !t.continuedBy(cmd) {
		e.log.Info("gesture abandoned", "gesture", "transform", "target", t.targetID, "by", cmd.Name())
		e.scene = t.base
		e.transform = nil
	}
}

// finishGesture ends a gesture on next. It is recorded only when the stored
// diagram differs from base; a gesture that moved nothing just clears its
// transient flags.
func (e *Engine) finishGesture(gestureID string, base, next *document.Scene, notes []Notification) Result {
	if persistedEqual(base, next) {
		res := e.update(next)
		res.Notifications = notes
		return res
	}
	return e.record(gestureID, next, notes...)
}

func persistedEqual(a, b *document.Scene) bool {
	if a == b {
		return true
	}
	da, err := document.Serialize(a)
	if err != nil {
		return false
	}
	db, err := document.Serialize(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

func (e *Engine) unchanged() Result {
	return Result{Scene: e.scene}
}

func (e *Engine) reject(cmd string, reason string, args ...any) Result {
	e.log.Info("command ignored", append([]any{"command", cmd, "reason", reason}, args...)...)
	return e.unchanged()
}

// update swaps in a scene whose change is not part of history.
func (e *Engine) update(s *document.Scene) Result {
	e.scene = s
	return Result{Scene: s}
}

// record swaps in s, records it under gestureID and emits DataChanged.
func (e *Engine) record(gestureID string, s *document.Scene, notes ...Notification) Result {
	e.scene = s
	e.history.Record(gestureID, s)
	data, err := document.Serialize(s)
	if err != nil {
		e.log.Error("serialize diagram", "error", err)
	} else {
		notes = append(notes, DataChanged{Data: data})
	}
	return Result{Scene: s, Notifications: notes}
}

// settle finishes a structural edit: outlines of everything around the
// changed nodes, connectors attached to them, and the selection state.
func (e *Engine) settle(tx *document.Tx, changed []string) {
	transform.Settle(tx, changed)
	lines := transform.Reroute(tx, changed, e.margin)
	transform.Settle(tx, lines)
	selection.Reconcile(tx)
}

func (e *Engine) selectNode(c Select) Result {
	s, err := selection.Select(e.scene, c.ID, selection.Options{
		CtrlHeld:                         c.CtrlHeld,
		TriggeredByClick:                 c.TriggeredByClick,
		WasSelectedOnPointerDown:         c.WasSelectedOnPointerDown,
		WasAncestorSelectedOnPointerDown: c.WasAncestorSelectedOnPointerDown,
	})
	if err != nil {
		return e.reject("select", err.Error(), "id", c.ID)
	}
	return e.update(s)
}

func (e *Engine) dragNodes(c Drag) Result {
	if e.drag == nil {
		if _, ok := e.scene.Node(c.ID); !ok {
			return e.reject("drag", "unknown target", "id", c.ID)
		}
		e.drag = &dragSession{
			gestureID: uuid.NewString(),
			targetID:  c.ID,
			base:      e.scene,
			drag:      transform.BeginDrag(e.scene, c.ID),
		}
	}
	session := e.drag

	tx := e.scene.Edit()
	moves, previews := session.drag.Apply(tx, c.EndX-c.StartX, c.EndY-c.StartY, c.Phase)

	var notes []Notification
	if len(moves) > 0 {
		notes = append(notes, ConnectPointsMoved{EventID: session.gestureID, Phase: c.Phase, Points: moves})
	}
	if len(previews) > 0 {
		notes = append(notes, OutlinePreview{Outlines: previews})
	}
	if !c.Phase.Final() {
		res := e.update(tx.Commit())
		res.Notifications = notes
		return res
	}

	e.drag = nil
	e.settle(tx, session.drag.Roots())
	return e.finishGesture(session.gestureID, session.base, tx.Commit(), notes)
}

func (e *Engine) transformNode(c Transform) Result {
	if e.transform == nil {
		tr, err := transform.BeginTransform(e.scene, c.ID, c.StartShape)
		if err != nil {
			return e.reject("transform", err.Error())
		}
		e.transform = &transformSession{gestureID: uuid.NewString(), targetID: c.ID, base: e.scene, tr: tr}
	}
	session := e.transform

	tx := e.scene.Edit()
	moves, previews := session.tr.Apply(tx, c.EndShape, c.Phase)

	var notes []Notification
	if len(moves) > 0 {
		notes = append(notes, ConnectPointsMoved{EventID: session.gestureID, Phase: c.Phase, Points: moves})
	}
	if len(previews) > 0 {
		notes = append(notes, OutlinePreview{Outlines: previews})
	}
	if !c.Phase.Final() {
		res := e.update(tx.Commit())
		res.Notifications = notes
		return res
	}

	e.transform = nil
	changed := []string{c.ID}
	if c.ID == document.MultiSelectGroupID {
		changed = tx.Scene().Selected()
	}
	e.settle(tx, changed)
	return e.finishGesture(session.gestureID, session.base, tx.Commit(), notes)
}

func (e *Engine) connect(c Connect) Result {
	s := e.scene
	if c.StartOwnerID == c.EndOwnerID {
		return e.reject("connect", "start and end are the same shape", "owner", c.StartOwnerID)
	}
	startPoint, ok := e.resolveConnectPoint(c.StartOwnerID, c.StartPointID, c.Points, true)
	if !ok {
		return e.reject("connect", "no start connect point", "owner", c.StartOwnerID)
	}
	endPoint, ok := e.resolveConnectPoint(c.EndOwnerID, c.EndPointID, c.Points, false)
	if !ok {
		return e.reject("connect", "no end connect point", "owner", c.EndOwnerID)
	}

	tx := s.Edit()
	line := document.NewConnectLine(c.StartOwnerID, startPoint, c.EndOwnerID, endPoint)
	path, ok := transform.RouteLine(s, line, e.margin)
	if !ok {
		return e.reject("connect", "endpoints cannot be routed")
	}
	tx.Insert("", -1, line)
	tx.SetPoints(line.ID, path)
	selection.Reconcile(tx)
	return e.record(uuid.NewString(), tx.Commit())
}

// resolveConnectPoint returns pointID when it belongs to ownerID, otherwise
// the owner's connect point closest to the first (or last) of points.
func (e *Engine) resolveConnectPoint(ownerID, pointID string, points []geometry.Point, first bool) (string, bool) {
	owner, ok := e.scene.Nodes[ownerID]
	if !ok || !owner.Kind.Connectable() {
		return "", false
	}
	if pointID != "" {
		cp, ok := e.scene.Nodes[pointID]
		return pointID, ok && cp.Parent == ownerID
	}
	if len(points) == 0 {
		return "", false
	}
	target := points[len(points)-1]
	if first {
		target = points[0]
	}
	best, bestDist := "", math.Inf(1)
	for _, id := range owner.ConnectPoints {
		cp, ok := e.scene.Nodes[id]
		if !ok {
			continue
		}
		if d := geometry.Distance(cp.Center(), target); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

func (e *Engine) previewConnect(c PreviewConnect) Result {
	start, ok := transform.AnchorOf(e.scene, c.StartOwnerID, c.StartPointID)
	if !ok {
		return e.reject("previewConnect", "unknown start point", "point", c.StartPointID)
	}
	var points []geometry.Point
	if end, ok := transform.AnchorOf(e.scene, c.HoverOwnerID, c.HoverPointID); ok && c.HoverOwnerID != c.StartOwnerID {
		points = routing.Route(start, end, e.margin)
	} else {
		points = routing.CleanPath(routing.PathOnDrag(start, geometry.Point{X: c.X, Y: c.Y}, e.margin))
	}
	return Result{Scene: e.scene, Notifications: []Notification{ConnectorPreview{Points: points}}}
}

func (e *Engine) group() Result {
	s := e.scene
	selected := s.Selected()
	if len(selected) < 2 || s.MultiSelect == nil {
		return e.reject("group", "fewer than two nodes selected", "selected", len(selected))
	}

	first := s.Nodes[selected[0]]
	parentID, index := first.Parent, s.IndexOf(first.ID)
	oldParents := parentsOf(s, selected)

	tx := s.Edit()
	g := document.NewGroup()
	tx.Insert(parentID, index, g)
	for _, id := range selected {
		tx.Move(id, g.ID, -1)
		tx.Update(id, func(n *document.Node) { n.IsSelected = false })
	}
	tx.Update(g.ID, func(n *document.Node) { n.IsSelected = true })
	tx.PruneEmptyGroups()
	e.settle(tx, append([]string{g.ID}, existing(tx.Scene(), oldParents)...))
	return e.record(uuid.NewString(), tx.Commit())
}

func (e *Engine) ungroup() Result {
	s := e.scene
	var groups []string
	for _, id := range s.Selected() {
		if s.Nodes[id].Kind == document.KindGroup {
			groups = append(groups, id)
		}
	}
	if len(groups) == 0 {
		return e.reject("ungroup", "no group selected")
	}

	tx := s.Edit()
	var released, parents []string
	for _, gid := range groups {
		g := tx.Scene().Nodes[gid]
		parentID, index := g.Parent, tx.Scene().IndexOf(gid)
		items := slices.Clone(g.Items)
		for i, id := range items {
			tx.Move(id, parentID, index+i)
			tx.Update(id, func(n *document.Node) { n.IsSelected = true })
		}
		tx.Remove(gid)
		released = append(released, items...)
		if parentID != "" {
			parents = append(parents, parentID)
		}
	}
	tx.PruneDanglingLines()
	e.settle(tx, append(released, parents...))
	return e.record(uuid.NewString(), tx.Commit())
}

func (e *Engine) deleteSelected() Result {
	s := e.scene
	selected := s.Selected()
	if len(selected) == 0 {
		return e.reject("delete", "nothing selected")
	}
	parents := parentsOf(s, selected)

	tx := s.Edit()
	for _, id := range selected {
		tx.Remove(id)
	}
	pruned := tx.PruneDanglingLines()
	tx.PruneEmptyGroups()
	if len(pruned) > 0 {
		e.log.Debug("pruned dangling connectors", "count", len(pruned))
	}
	e.settle(tx, existing(tx.Scene(), parents))
	return e.record(uuid.NewString(), tx.Commit())
}

func (e *Engine) undo() Result {
	s, ok := e.history.Undo(e.scene)
	if !ok {
		return e.reject("undo", "nothing to undo")
	}
	return e.restored(s)
}

func (e *Engine) redo() Result {
	s, ok := e.history.Redo(e.scene)
	if !ok {
		return e.reject("redo", "nothing to redo")
	}
	return e.restored(s)
}

func (e *Engine) restored(s *document.Scene) Result {
	e.drag, e.transform, e.textEdit = nil, nil, ""
	e.scene = s
	res := Result{Scene: s}
	if data, err := document.Serialize(s); err == nil {
		res.Notifications = append(res.Notifications, DataChanged{Data: data})
	}
	return res
}

func (e *Engine) startTextEdit(c TextEdit) Result {
	n, ok := e.scene.Nodes[c.ID]
	if !ok || !n.Kind.Textable() {
		return e.reject("textEdit", "node has no text", "id", c.ID)
	}
	tx := e.scene.Edit()
	e.scene.Walk(func(m *document.Node, _ int) bool {
		if m.IsTextEditing && m.ID != c.ID {
			tx.Update(m.ID, func(m *document.Node) { m.IsTextEditing = false })
		}
		return true
	})
	tx.Update(c.ID, func(m *document.Node) { m.IsTextEditing = true })
	e.textEdit = uuid.NewString()
	return e.update(tx.Commit())
}

func (e *Engine) changeText(c TextChange) Result {
	n, ok := e.scene.Nodes[c.ID]
	if !ok || !n.Kind.Textable() {
		return e.reject("textChange", "node has no text", "id", c.ID)
	}
	if e.textEdit == "" {
		e.textEdit = uuid.NewString()
	}
	tx := e.scene.Edit()
	tx.Update(c.ID, func(m *document.Node) {
		m.Text = c.Text
		m.IsTextEditing = !c.Phase.Final()
	})
	if !c.Phase.Final() {
		return e.update(tx.Commit())
	}
	gesture := e.textEdit
	e.textEdit = ""
	return e.record(gesture, tx.Commit())
}

func (e *Engine) addShape(c AddShape) Result {
	switch c.Kind {
	case document.KindRectangle, document.KindEllipse, document.KindText:
	default:
		return e.reject("addShape", "unsupported kind", "kind", c.Kind)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return e.reject("addShape", "empty size")
	}
	n := document.NewShape(c.Kind, geometry.Frame{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height})
	if c.Text != "" {
		n.Text = c.Text
	}
	tx := e.scene.Edit()
	tx.InsertShape("", -1, n)
	return e.selectInserted(tx, []string{n.ID})
}

func (e *Engine) addPath(c AddPath) Result {
	if len(c.Points) < 2 {
		return e.reject("addPath", "fewer than two points")
	}
	p := document.NewPath()
	tx := e.scene.Edit()
	tx.Insert("", -1, p)
	tx.SetPoints(p.ID, c.Points)
	return e.selectInserted(tx, []string{p.ID})
}

func (e *Engine) paste(c Paste) Result {
	var items []document.NodeJSON
	if err := json.Unmarshal(c.Data, &items); err != nil {
		return e.reject("paste", "unreadable clipboard data", "error", err)
	}
	tx := e.scene.Edit()
	ids, skipped := tx.ImportItems("", items, true)
	if len(skipped) > 0 {
		e.log.Warn("paste skipped items", "skipped", len(skipped))
	}
	if len(ids) == 0 {
		return e.reject("paste", "nothing to paste")
	}
	transform.Offset(tx, ids, PasteOffset, PasteOffset)
	tx.PruneDanglingLines()
	return e.selectInserted(tx, existing(tx.Scene(), ids))
}

// selectInserted makes ids the selection, settles and records.
func (e *Engine) selectInserted(tx *document.Tx, ids []string) Result {
	for _, id := range tx.Scene().Selected() {
		tx.Update(id, func(n *document.Node) { n.IsSelected = false })
	}
	var selectable []string
	for _, id := range ids {
		if n, ok := tx.Scene().Nodes[id]; ok && n.Kind != document.KindConnectLine {
			selectable = append(selectable, id)
		}
	}
	for _, id := range selectable {
		tx.Update(id, func(n *document.Node) { n.IsSelected = true })
	}
	e.settle(tx, ids)
	return e.record(uuid.NewString(), tx.Commit())
}

func (e *Engine) nudge(c Nudge) Result {
	selected := e.scene.Selected()
	if len(selected) == 0 {
		return e.reject("nudge", "nothing selected")
	}
	if c.DX == 0 && c.DY == 0 {
		return e.unchanged()
	}
	tx := e.scene.Edit()
	moves := transform.Offset(tx, selected, c.DX, c.DY)
	e.settle(tx, selected)
	var notes []Notification
	if len(moves) > 0 {
		notes = append(notes, ConnectPointsMoved{EventID: uuid.NewString(), Phase: transform.Instant, Points: moves})
	}
	return e.record(uuid.NewString(), tx.Commit(), notes...)
}

func (e *Engine) keepProportion(c KeepProportion) Result {
	n, ok := e.scene.Node(c.ID)
	if !ok || !n.Kind.HasFrame() {
		return e.reject("keepProportion", "node has no frame", "id", c.ID)
	}
	if n.KeepProportion == c.Value {
		return e.unchanged()
	}
	tx := e.scene.Edit()
	if c.ID == document.MultiSelectGroupID {
		ms := n.Clone()
		ms.KeepProportion = c.Value
		tx.SetMultiSelect(ms)
		return e.update(tx.Commit())
	}
	tx.Update(c.ID, func(m *document.Node) { m.KeepProportion = c.Value })
	return e.record(uuid.NewString(), tx.Commit())
}

// Copy returns the selected subtrees as clipboard JSON for Paste.
func (e *Engine) Copy() ([]byte, error) {
	items := e.scene.ExportItems(e.scene.Selected(), false)
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal clipboard: %w", err)
	}
	return data, nil
}

// SelectionBounds returns the axis-aligned box around the selection.
func (e *Engine) SelectionBounds() (geometry.Box, bool) {
	return e.scene.SelectionBox(e.scene.Selected())
}

func parentsOf(s *document.Scene, ids []string) []string {
	var out []string
	for _, id := range ids {
		if n, ok := s.Nodes[id]; ok && n.Parent != "" && !slices.Contains(out, n.Parent) {
			out = append(out, n.Parent)
		}
	}
	return out
}

func existing(s *document.Scene, ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := s.Nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
