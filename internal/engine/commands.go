package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
	"github.com/inamate/diagram/internal/transform"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one intent event from the input layer.
type Command interface {
	Name() string
}

type Select struct {
	ID                               string `json:"id"`
	CtrlHeld                         bool   `json:"ctrlHeld"`
	TriggeredByClick                 bool   `json:"triggeredByClick"`
	WasSelectedOnPointerDown         bool   `json:"wasSelectedOnPointerDown"`
	WasAncestorSelectedOnPointerDown bool   `json:"wasAncestorSelectedOnPointerDown"`
}

type SelectAll struct{}

type ClearSelection struct{}

// Drag moves the selection (or the target) by End minus Start.
type Drag struct {
	ID      string          `json:"id"`
	Phase   transform.Phase `json:"phase"`
	StartX  float64         `json:"startX"`
	StartY  float64         `json:"startY"`
	EndX    float64         `json:"endX"`
	EndY    float64         `json:"endY"`
	CursorX float64         `json:"cursorX"`
	CursorY float64         `json:"cursorY"`
}

// Transform resizes or rotates a node or the multi-selection group.
type Transform struct {
	ID         string          `json:"id"`
	Phase      transform.Phase `json:"phase"`
	StartShape geometry.Frame  `json:"startShape"`
	EndShape   geometry.Frame  `json:"endShape"`
	CursorX    *float64        `json:"cursorX,omitempty"`
	CursorY    *float64        `json:"cursorY,omitempty"`
}

// Connect creates a connector. Point ids are optional; when missing the
// owner's connect point nearest to the first or last of Points is used.
type Connect struct {
	StartOwnerID string           `json:"startOwnerId"`
	StartPointID string           `json:"startPointId,omitempty"`
	EndOwnerID   string           `json:"endOwnerId"`
	EndPointID   string           `json:"endPointId,omitempty"`
	Points       []geometry.Point `json:"points"`
}

// PreviewConnect asks for the path a new connector would take while it is
// being drawn from a connect point to the cursor or to a hovered point.
type PreviewConnect struct {
	StartOwnerID string  `json:"startOwnerId"`
	StartPointID string  `json:"startPointId"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	HoverOwnerID string  `json:"hoverOwnerId,omitempty"`
	HoverPointID string  `json:"hoverPointId,omitempty"`
}

type Group struct{}

type Ungroup struct{}

type Delete struct{}

type Undo struct{}

type Redo struct{}

type TextEdit struct {
	ID string `json:"id"`
}

type TextChange struct {
	ID    string          `json:"id"`
	Text  string          `json:"text"`
	Phase transform.Phase `json:"phase"`
}

// AddShape inserts a new Rectangle, Ellipse or Text at the top level.
type AddShape struct {
	Kind   document.NodeKind `json:"kind"`
	X      float64           `json:"x"`
	Y      float64           `json:"y"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Text   string            `json:"text,omitempty"`
}

// AddPath inserts a freeform path through Points.
type AddPath struct {
	Points []geometry.Point `json:"points"`
}

// Paste inserts clipboard items produced by Engine.Copy.
type Paste struct {
	Data json.RawMessage `json:"data"`
}

// Nudge moves the selection by a fixed offset, as arrow keys do.
type Nudge struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// KeepProportion toggles aspect locking on a node or the multi-selection
// group. The multi-selection group keeps the setting while it exists.
type KeepProportion struct {
	ID    string `json:"id"`
	Value bool   `json:"value"`
}

func (Select) Name() string         { return "select" }
func (SelectAll) Name() string      { return "selectAll" }
func (ClearSelection) Name() string { return "clearSelection" }
func (Drag) Name() string           { return "drag" }
func (Transform) Name() string      { return "transform" }
func (Connect) Name() string        { return "connect" }
func (PreviewConnect) Name() string { return "previewConnect" }
func (Group) Name() string          { return "group" }
func (Ungroup) Name() string        { return "ungroup" }
func (Delete) Name() string         { return "delete" }
func (Undo) Name() string           { return "undo" }
func (Redo) Name() string           { return "redo" }
func (TextEdit) Name() string       { return "textEdit" }
func (TextChange) Name() string     { return "textChange" }
func (AddShape) Name() string       { return "addShape" }
func (AddPath) Name() string        { return "addPath" }
func (Paste) Name() string          { return "paste" }
func (Nudge) Name() string          { return "nudge" }
func (KeepProportion) Name() string { return "keepProportion" }

var decoders = map[string]func(json.RawMessage) (Command, error){
	"select":         decodeAs[Select],
	"selectAll":      decodeAs[SelectAll],
	"clearSelection": decodeAs[ClearSelection],
	"drag":           decodeAs[Drag],
	"transform":      decodeAs[Transform],
	"connect":        decodeAs[Connect],
	"previewConnect": decodeAs[PreviewConnect],
	"group":          decodeAs[Group],
	"ungroup":        decodeAs[Ungroup],
	"delete":         decodeAs[Delete],
	"undo":           decodeAs[Undo],
	"redo":           decodeAs[Redo],
	"textEdit":       decodeAs[TextEdit],
	"textChange":     decodeAs[TextChange],
	"addShape":       decodeAs[AddShape],
	"addPath":        decodeAs[AddPath],
	"paste":          decodeAs[Paste],
	"nudge":          decodeAs[Nudge],
	"keepProportion": decodeAs[KeepProportion],
}

// DecodeCommand turns a wire message into a command. An empty payload is
// accepted for commands without fields.
func DecodeCommand(kind string, payload json.RawMessage) (Command, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	return decode(payload)
}

func decodeAs[C Command](payload json.RawMessage) (Command, error) {
	var cmd C
	if len(payload) == 0 || string(payload) == "null" {
		return cmd, nil
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cmd.Name(), err)
	}
	return cmd, nil
}

// Notification is an outbound event produced alongside a new scene.
type Notification interface {
	Kind() string
}

// ConnectPointsMoved lists connect points that moved during a gesture.
type ConnectPointsMoved struct {
	EventID string                `json:"eventId"`
	Phase   transform.Phase       `json:"phase"`
	Points  []transform.PointMove `json:"points"`
}

// ConnectorPreview is the path of a connector being drawn.
type ConnectorPreview struct {
	Points []geometry.Point `json:"points"`
}

// OutlinePreview carries the outlines enclosing groups will settle to.
type OutlinePreview struct {
	Outlines []transform.OutlinePreview `json:"outlines"`
}

// DataChanged carries the persistable diagram after a recorded change.
type DataChanged struct {
	Data json.RawMessage `json:"data"`
}

func (ConnectPointsMoved) Kind() string { return "connect.points.moved" }
func (ConnectorPreview) Kind() string   { return "connector.preview" }
func (OutlinePreview) Kind() string     { return "outline.preview" }
func (DataChanged) Kind() string        { return "data.changed" }

// Result is the outcome of applying one command.
type Result struct {
	Scene         *document.Scene
	Notifications []Notification
}
