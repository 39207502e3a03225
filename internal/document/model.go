// Package document is the diagram model: a forest of typed nodes stored in
// an id-addressed arena. Scenes are immutable once returned; edits go through
// a copy-on-write transaction (see Scene.Edit).
package document

import (
	"slices"

	"github.com/inamate/diagram/internal/geometry"
)

type NodeKind string

const (
	KindRectangle    NodeKind = "Rectangle"
	KindEllipse      NodeKind = "Ellipse"
	KindText         NodeKind = "Text"
	KindPath         NodeKind = "Path"
	KindGroup        NodeKind = "Group"
	KindConnectLine  NodeKind = "ConnectLine"
	KindConnectPoint NodeKind = "ConnectPoint"
	KindPathPoint    NodeKind = "PathPoint"
)

// MultiSelectGroupID is the id of the synthesized multi-selection proxy.
// It never appears in Scene.Nodes.
const MultiSelectGroupID = "MultiSelectGroup"

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindRectangle, KindEllipse, KindText, KindPath, KindGroup,
		KindConnectLine, KindConnectPoint, KindPathPoint:
		return true
	}
	return false
}

// HasFrame reports whether nodes of this kind carry width, height and rotation.
func (k NodeKind) HasFrame() bool {
	switch k {
	case KindRectangle, KindEllipse, KindText, KindPath, KindGroup:
		return true
	case KindConnectLine, KindConnectPoint, KindPathPoint:
		return false
	}
	return false
}

// Selectable reports whether the user can select nodes of this kind.
func (k NodeKind) Selectable() bool {
	switch k {
	case KindRectangle, KindEllipse, KindText, KindPath, KindGroup, KindConnectLine:
		return true
	case KindConnectPoint, KindPathPoint:
		return false
	}
	return false
}

// Itemable reports whether nodes of this kind own child items.
func (k NodeKind) Itemable() bool {
	switch k {
	case KindGroup, KindPath, KindConnectLine:
		return true
	case KindRectangle, KindEllipse, KindText, KindConnectPoint, KindPathPoint:
		return false
	}
	return false
}

// Connectable reports whether nodes of this kind expose connect points.
func (k NodeKind) Connectable() bool {
	switch k {
	case KindRectangle, KindEllipse:
		return true
	case KindText, KindPath, KindGroup, KindConnectLine, KindConnectPoint, KindPathPoint:
		return false
	}
	return false
}

// Textable reports whether nodes of this kind carry editable text.
func (k NodeKind) Textable() bool {
	switch k {
	case KindRectangle, KindEllipse, KindText:
		return true
	case KindPath, KindGroup, KindConnectLine, KindConnectPoint, KindPathPoint:
		return false
	}
	return false
}

// Positioned is implemented by anything with a center point.
type Positioned interface {
	Center() geometry.Point
}

// Framed is implemented by anything with a full frame.
type Framed interface {
	Positioned
	Frame() geometry.Frame
}

// Node is one entry of the diagram forest. Fields that do not apply to the
// node's kind stay at their zero value.
type Node struct {
	ID     string
	Kind   NodeKind
	Parent string // empty for top-level nodes

	// Positionable
	X float64
	Y float64

	// Frame
	Width          float64
	Height         float64
	Rotation       float64
	ScaleX         float64
	ScaleY         float64
	KeepProportion bool

	// Itemable / Connectable. Ownership is exclusive.
	Items         []string
	ConnectPoints []string

	// ConnectPoint anchor name (top, right, bottom, left).
	Name string

	// ConnectLine endpoints.
	StartOwnerID string
	StartPointID string
	EndOwnerID   string
	EndPointID   string

	// Textable
	Text          string
	TextType      string
	TextAlign     string
	VerticalAlign string
	FontSize      float64
	FontFamily    string
	FontColor     string
	FontWeight    string

	// Style is opaque to the engine.
	Fill        string
	Stroke      string
	StrokeWidth float64

	// Transient UI state, never persisted.
	IsSelected            bool
	IsMultiSelectSource   bool
	ShowOutline           bool
	IsAncestorSelected    bool
	ShowTransformControls bool
	IsDragging            bool
	IsTransforming        bool
	IsTextEditing         bool
}

// Center returns the node's center point.
func (n *Node) Center() geometry.Point {
	return geometry.Point{X: n.X, Y: n.Y}
}

// Frame returns the node's geometry.
func (n *Node) Frame() geometry.Frame {
	return geometry.Frame{
		X:        n.X,
		Y:        n.Y,
		Width:    n.Width,
		Height:   n.Height,
		Rotation: n.Rotation,
		ScaleX:   n.ScaleX,
		ScaleY:   n.ScaleY,
	}
}

// SetFrame overwrites the node's geometry.
func (n *Node) SetFrame(f geometry.Frame) {
	n.X, n.Y = f.X, f.Y
	n.Width, n.Height = f.Width, f.Height
	n.Rotation = f.Rotation
	n.ScaleX, n.ScaleY = f.ScaleX, f.ScaleY
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Items = slices.Clone(n.Items)
	c.ConnectPoints = slices.Clone(n.ConnectPoints)
	return &c
}

// ClearTransient resets every UI-only field.
func (n *Node) ClearTransient() {
	n.IsSelected = false
	n.IsMultiSelectSource = false
	n.ShowOutline = false
	n.IsAncestorSelected = false
	n.ShowTransformControls = false
	n.IsDragging = false
	n.IsTransforming = false
	n.IsTextEditing = false
}

// HasTransient reports whether any UI-only field is set.
func (n *Node) HasTransient() bool {
	return n.IsSelected || n.IsMultiSelectSource || n.ShowOutline || n.IsAncestorSelected ||
		n.ShowTransformControls || n.IsDragging || n.IsTransforming || n.IsTextEditing
}

// Scene is one immutable snapshot of the diagram.
type Scene struct {
	ID     string
	MinX   float64
	MinY   float64
	Width  float64
	Height float64

	Roots []string
	Nodes map[string]*Node

	// MultiSelect is the synthesized proxy group, nil unless more than one
	// node is selected. Its Items reference selected nodes without owning them.
	MultiSelect *Node
}

// NewScene returns an empty scene with the default canvas size.
func NewScene(id string) *Scene {
	return &Scene{
		ID:     id,
		Width:  1280,
		Height: 720,
		Roots:  []string{},
		Nodes:  make(map[string]*Node),
	}
}
