package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrUnknownType = errors.New("unknown node type")
	ErrDuplicateID = errors.New("duplicate node id")
	ErrMissingID   = errors.New("missing node id")
	ErrPlacement   = errors.New("node kind not allowed here")
)

// NodeJSON is the nested wire and storage form of a node.
type NodeJSON struct {
	ID   string   `json:"id"`
	Type NodeKind `json:"type"`

	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width,omitempty"`
	Height         float64 `json:"height,omitempty"`
	Rotation       float64 `json:"rotation,omitempty"`
	ScaleX         float64 `json:"scaleX,omitempty"`
	ScaleY         float64 `json:"scaleY,omitempty"`
	KeepProportion bool    `json:"keepProportion,omitempty"`

	Items         []NodeJSON `json:"items,omitempty"`
	ConnectPoints []NodeJSON `json:"connectPoints,omitempty"`

	Name         string `json:"name,omitempty"`
	StartOwnerID string `json:"startOwnerId,omitempty"`
	StartPointID string `json:"startPointId,omitempty"`
	EndOwnerID   string `json:"endOwnerId,omitempty"`
	EndPointID   string `json:"endPointId,omitempty"`

	Text          string  `json:"text,omitempty"`
	TextType      string  `json:"textType,omitempty"`
	TextAlign     string  `json:"textAlign,omitempty"`
	VerticalAlign string  `json:"verticalAlign,omitempty"`
	FontSize      float64 `json:"fontSize,omitempty"`
	FontFamily    string  `json:"fontFamily,omitempty"`
	FontColor     string  `json:"fontColor,omitempty"`
	FontWeight    string  `json:"fontWeight,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	IsSelected            bool `json:"isSelected,omitempty"`
	IsMultiSelectSource   bool `json:"isMultiSelectSource,omitempty"`
	ShowOutline           bool `json:"showOutline,omitempty"`
	IsAncestorSelected    bool `json:"isAncestorSelected,omitempty"`
	ShowTransformControls bool `json:"showTransformControls,omitempty"`
	IsDragging            bool `json:"isDragging,omitempty"`
	IsTransforming        bool `json:"isTransforming,omitempty"`
	IsTextEditing         bool `json:"isTextEditing,omitempty"`
}

// Persisted is the storage layout of a diagram.
type Persisted struct {
	MinX  float64    `json:"minX"`
	MinY  float64    `json:"minY"`
	Items []NodeJSON `json:"items"`
}

// SceneView is the render snapshot handed to consumers, UI flags included.
type SceneView struct {
	ID               string     `json:"id,omitempty"`
	MinX             float64    `json:"minX"`
	MinY             float64    `json:"minY"`
	Width            float64    `json:"width"`
	Height           float64    `json:"height"`
	Items            []NodeJSON `json:"items"`
	MultiSelectGroup *NodeJSON  `json:"multiSelectGroup,omitempty"`
}

// Serialize encodes the persistable part of the scene. Transient fields are
// cleared and the pseudo-group is dropped.
func Serialize(s *Scene) ([]byte, error) {
	data, err := json.Marshal(Persist(s))
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return data, nil
}

// Persist builds the storage layout of the scene.
func Persist(s *Scene) Persisted {
	return Persisted{
		MinX:  s.MinX,
		MinY:  s.MinY,
		Items: s.ExportItems(s.Roots, false),
	}
}

// View builds the render snapshot of the scene.
func View(s *Scene) SceneView {
	v := SceneView{
		ID:     s.ID,
		MinX:   s.MinX,
		MinY:   s.MinY,
		Width:  s.Width,
		Height: s.Height,
		Items:  s.ExportItems(s.Roots, true),
	}
	if s.MultiSelect != nil {
		ms := nodeToJSON(s.MultiSelect, true)
		v.MultiSelectGroup = &ms
	}
	return v
}

// ExportItems converts the given subtrees to their nested form.
func (s *Scene) ExportItems(ids []string, transient bool) []NodeJSON {
	out := make([]NodeJSON, 0, len(ids))
	for _, id := range ids {
		n, ok := s.Nodes[id]
		if !ok {
			continue
		}
		j := nodeToJSON(n, transient)
		if len(n.Items) > 0 {
			j.Items = s.ExportItems(n.Items, transient)
		}
		if len(n.ConnectPoints) > 0 {
			j.ConnectPoints = s.ExportItems(n.ConnectPoints, transient)
		}
		out = append(out, j)
	}
	return out
}

// Deserialize decodes a stored diagram. Items that cannot be placed are
// skipped and reported in skipped; err is only set when the payload as a
// whole is unreadable.
func Deserialize(id string, data []byte) (s *Scene, skipped []error, err error) {
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, fmt.Errorf("unmarshal scene: %w", err)
	}
	base := NewScene(id)
	tx := base.Edit()
	tx.SetOrigin(p.MinX, p.MinY)
	im := newImporter(tx, false)
	for _, item := range p.Items {
		im.add("", "", item)
	}
	for _, lineID := range tx.PruneDanglingLines() {
		im.skip(lineID, fmt.Errorf("connector %s references a missing shape", lineID))
	}
	return tx.Commit(), im.skipped, nil
}

// ImportItems inserts nested items under parentID. With fresh set every node
// gets a new id and connector references inside the batch are remapped.
// Returns the ids of the inserted top-level items.
func (tx *Tx) ImportItems(parentID string, items []NodeJSON, fresh bool) ([]string, []error) {
	parentKind := NodeKind("")
	if parentID != "" {
		if p, ok := tx.work.Nodes[parentID]; ok {
			parentKind = p.Kind
		}
	}
	im := newImporter(tx, fresh)
	var ids []string
	for _, item := range items {
		if id, ok := im.add(parentID, parentKind, item); ok {
			ids = append(ids, id)
		}
	}
	if fresh {
		im.remapLines()
	}
	return ids, im.skipped
}

type importer struct {
	tx      *Tx
	fresh   bool
	remap   map[string]string
	lines   []string
	skipped []error
}

func newImporter(tx *Tx, fresh bool) *importer {
	return &importer{tx: tx, fresh: fresh, remap: make(map[string]string)}
}

func (im *importer) skip(id string, err error) {
	slog.Warn("skipping diagram item", "id", id, "error", err)
	im.skipped = append(im.skipped, err)
}

func (im *importer) assignID(j NodeJSON) (string, bool) {
	if im.fresh {
		id := NewID(j.Type)
		if j.ID != "" {
			im.remap[j.ID] = id
		}
		return id, true
	}
	if j.ID == "" {
		im.skip(j.ID, fmt.Errorf("%w: %s", ErrMissingID, j.Type))
		return "", false
	}
	if _, exists := im.tx.work.Nodes[j.ID]; exists {
		im.skip(j.ID, fmt.Errorf("%w: %s", ErrDuplicateID, j.ID))
		return "", false
	}
	return j.ID, true
}

func (im *importer) add(parentID string, parentKind NodeKind, j NodeJSON) (string, bool) {
	if !j.Type.Valid() {
		im.skip(j.ID, fmt.Errorf("%w: %q", ErrUnknownType, j.Type))
		return "", false
	}
	if !childAllowed(parentKind, j.Type) {
		im.skip(j.ID, fmt.Errorf("%w: %s under %q", ErrPlacement, j.Type, parentKind))
		return "", false
	}
	id, ok := im.assignID(j)
	if !ok {
		return "", false
	}

	n := jsonToNode(id, j)
	im.tx.Insert(parentID, -1, n)
	if n.Kind == KindConnectLine {
		im.lines = append(im.lines, id)
	}
	for _, child := range j.Items {
		im.add(id, n.Kind, child)
	}
	for _, cpj := range j.ConnectPoints {
		if !n.Kind.Connectable() || cpj.Type != KindConnectPoint {
			im.skip(cpj.ID, fmt.Errorf("%w: %s as connect point of %s", ErrPlacement, cpj.Type, n.Kind))
			continue
		}
		cpID, ok := im.assignID(cpj)
		if !ok {
			continue
		}
		im.tx.AddConnectPoint(id, jsonToNode(cpID, cpj))
	}
	if n.Kind.Connectable() && len(j.ConnectPoints) == 0 {
		positions := ConnectPointPositions(n.Frame())
		for _, name := range AnchorNames {
			im.tx.AddConnectPoint(id, NewConnectPoint(name, positions[name]))
		}
	}
	return id, true
}

func (im *importer) remapLines() {
	for _, id := range im.lines {
		im.tx.Update(id, func(n *Node) {
			n.StartOwnerID = im.lookup(n.StartOwnerID)
			n.StartPointID = im.lookup(n.StartPointID)
			n.EndOwnerID = im.lookup(n.EndOwnerID)
			n.EndPointID = im.lookup(n.EndPointID)
		})
	}
}

// lookup maps an id from the imported batch; ids outside the batch keep
// their value so connectors to shapes that were not copied get pruned.
func (im *importer) lookup(id string) string {
	if mapped, ok := im.remap[id]; ok {
		return mapped
	}
	return id
}

func childAllowed(parent, child NodeKind) bool {
	switch parent {
	case "", KindGroup:
		return child.Selectable()
	case KindPath, KindConnectLine:
		return child == KindPathPoint
	}
	return false
}

func nodeToJSON(n *Node, transient bool) NodeJSON {
	j := NodeJSON{
		ID:             n.ID,
		Type:           n.Kind,
		X:              n.X,
		Y:              n.Y,
		Width:          n.Width,
		Height:         n.Height,
		Rotation:       n.Rotation,
		ScaleX:         n.ScaleX,
		ScaleY:         n.ScaleY,
		KeepProportion: n.KeepProportion,
		Name:           n.Name,
		StartOwnerID:   n.StartOwnerID,
		StartPointID:   n.StartPointID,
		EndOwnerID:     n.EndOwnerID,
		EndPointID:     n.EndPointID,
		Text:           n.Text,
		TextType:       n.TextType,
		TextAlign:      n.TextAlign,
		VerticalAlign:  n.VerticalAlign,
		FontSize:       n.FontSize,
		FontFamily:     n.FontFamily,
		FontColor:      n.FontColor,
		FontWeight:     n.FontWeight,
		Fill:           n.Fill,
		Stroke:         n.Stroke,
		StrokeWidth:    n.StrokeWidth,
	}
	if transient {
		j.IsSelected = n.IsSelected
		j.IsMultiSelectSource = n.IsMultiSelectSource
		j.ShowOutline = n.ShowOutline
		j.IsAncestorSelected = n.IsAncestorSelected
		j.ShowTransformControls = n.ShowTransformControls
		j.IsDragging = n.IsDragging
		j.IsTransforming = n.IsTransforming
		j.IsTextEditing = n.IsTextEditing
	}
	return j
}

func jsonToNode(id string, j NodeJSON) *Node {
	n := &Node{
		ID:             id,
		Kind:           j.Type,
		X:              j.X,
		Y:              j.Y,
		Width:          j.Width,
		Height:         j.Height,
		Rotation:       j.Rotation,
		ScaleX:         j.ScaleX,
		ScaleY:         j.ScaleY,
		KeepProportion: j.KeepProportion,
		Name:           j.Name,
		StartOwnerID:   j.StartOwnerID,
		StartPointID:   j.StartPointID,
		EndOwnerID:     j.EndOwnerID,
		EndPointID:     j.EndPointID,
		Text:           j.Text,
		TextType:       j.TextType,
		TextAlign:      j.TextAlign,
		VerticalAlign:  j.VerticalAlign,
		FontSize:       j.FontSize,
		FontFamily:     j.FontFamily,
		FontColor:      j.FontColor,
		FontWeight:     j.FontWeight,
		Fill:           j.Fill,
		Stroke:         j.Stroke,
		StrokeWidth:    j.StrokeWidth,
	}
	if n.Kind.HasFrame() || n.Kind == KindConnectLine {
		if n.ScaleX == 0 {
			n.ScaleX = 1
		}
		if n.ScaleY == 0 {
			n.ScaleY = 1
		}
	}
	return n
}
