package transform

import (
	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/geometry"
	"github.com/inamate/diagram/internal/routing"
)

// AnchorOf builds the routing anchor of a connect point on its owner.
func AnchorOf(s *document.Scene, ownerID, pointID string) (routing.Anchor, bool) {
	owner, ok := s.Nodes[ownerID]
	if !ok || !owner.Kind.HasFrame() {
		return routing.Anchor{}, false
	}
	cp, ok := s.Nodes[pointID]
	if !ok || cp.Parent != ownerID {
		return routing.Anchor{}, false
	}
	return routing.NewAnchor(owner.Frame(), cp.Center()), true
}

// RouteLine computes a fresh path for an existing connector.
func RouteLine(s *document.Scene, line *document.Node, margin float64) ([]geometry.Point, bool) {
	start, ok := AnchorOf(s, line.StartOwnerID, line.StartPointID)
	if !ok {
		return nil, false
	}
	end, ok := AnchorOf(s, line.EndOwnerID, line.EndPointID)
	if !ok {
		return nil, false
	}
	return routing.Route(start, end, margin), true
}

// Reroute recomputes every connector attached to a node in one of the
// changed subtrees, or lying in one itself. It returns the rerouted ids.
func Reroute(tx *document.Tx, changed []string, margin float64) []string {
	s := tx.Scene()
	affected := make(map[string]bool)
	for _, id := range changed {
		for _, sub := range s.Subtree(id) {
			affected[sub] = true
		}
	}
	var rerouted []string
	for _, line := range s.ConnectLines() {
		if !affected[line.ID] && !affected[line.StartOwnerID] && !affected[line.EndOwnerID] {
			continue
		}
		path, ok := RouteLine(tx.Scene(), line, margin)
		if !ok {
			continue
		}
		tx.SetPoints(line.ID, path)
		rerouted = append(rerouted, line.ID)
	}
	return rerouted
}
