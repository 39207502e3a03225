package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	s := NewSampleScene("diag_sample")

	data, err := Serialize(s)
	require.NoError(t, err)

	restored, skipped, err := Deserialize(s.ID, data)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, s.Roots, restored.Roots)
	assert.Equal(t, s.Nodes, restored.Nodes)
}

func TestSerializeDropsTransientState(t *testing.T) {
	s := NewSampleScene("diag_sample")
	tx := s.Edit()
	tx.Update(s.Roots[0], func(n *Node) {
		n.IsSelected = true
		n.ShowTransformControls = true
	})
	tx.SetMultiSelect(&Node{ID: MultiSelectGroupID, Kind: KindGroup})
	selected := tx.Commit()

	data, err := Serialize(selected)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "isSelected")
	assert.NotContains(t, string(data), MultiSelectGroupID)

	restored, _, err := Deserialize(s.ID, data)
	require.NoError(t, err)
	assert.Equal(t, s.Nodes, restored.Nodes)
	assert.Nil(t, restored.MultiSelect)

	view := View(selected)
	require.NotNil(t, view.MultiSelectGroup)
	assert.True(t, view.Items[0].IsSelected)
}

func TestDeserializeSkipsMalformedItems(t *testing.T) {
	data := []byte(`{
		"minX": 10,
		"minY": -5,
		"items": [
			{"id": "rect_a", "type": "Rectangle", "x": 0, "y": 0, "width": 20, "height": 20},
			{"id": "star_1", "type": "Star", "x": 5, "y": 5},
			{"id": "rect_a", "type": "Rectangle", "x": 50, "y": 0, "width": 20, "height": 20},
			{"type": "Ellipse", "x": 0, "y": 0, "width": 10, "height": 10},
			{"id": "ppt_loose", "type": "PathPoint", "x": 1, "y": 1},
			{"id": "line_1", "type": "ConnectLine", "startOwnerId": "rect_a", "startPointId": "x",
			 "endOwnerId": "rect_gone", "endPointId": "y",
			 "items": [{"id": "ppt_1", "type": "PathPoint"}, {"id": "ppt_2", "type": "PathPoint", "x": 5}]}
		]
	}`)

	s, skipped, err := Deserialize("diag_x", data)
	require.NoError(t, err)
	assert.Len(t, skipped, 5)
	assert.ErrorIs(t, skipped[0], ErrUnknownType)
	assert.ErrorIs(t, skipped[1], ErrDuplicateID)
	assert.ErrorIs(t, skipped[2], ErrMissingID)
	assert.ErrorIs(t, skipped[3], ErrPlacement)

	assert.Equal(t, []string{"rect_a"}, s.Roots)
	assert.Equal(t, 10.0, s.MinX)
	assert.Equal(t, -5.0, s.MinY)
	assert.Len(t, s.Nodes["rect_a"].ConnectPoints, 4, "missing connect points are synthesized")
	assert.NotContains(t, s.Nodes, "ppt_1")
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, _, err := Deserialize("diag_x", []byte("{not json"))
	assert.Error(t, err)
}

func TestImportItemsFreshRemapsConnectors(t *testing.T) {
	s := NewSampleScene("diag_sample")
	line := s.ConnectLines()[0]
	ids := []string{line.StartOwnerID, line.EndOwnerID, line.ID}
	items := s.ExportItems(ids, false)

	tx := s.Edit()
	inserted, skipped := tx.ImportItems("", items, true)
	out := tx.Commit()

	require.Empty(t, skipped)
	require.Len(t, inserted, 3)
	for _, id := range inserted {
		assert.NotContains(t, ids, id)
	}
	copied := out.Nodes[inserted[2]]
	assert.Equal(t, inserted[0], copied.StartOwnerID)
	assert.Equal(t, inserted[1], copied.EndOwnerID)
	cp, ok := out.Nodes[copied.StartPointID]
	require.True(t, ok)
	assert.Equal(t, inserted[0], cp.Parent)
	assert.Equal(t, "right", cp.Name)
}

func TestImportItemsKeepsOutsideReferences(t *testing.T) {
	s := NewSampleScene("diag_sample")
	line := s.ConnectLines()[0]
	items := s.ExportItems([]string{line.ID}, false)

	tx := s.Edit()
	inserted, _ := tx.ImportItems("", items, true)
	pruned := tx.PruneDanglingLines()
	out := tx.Commit()

	require.Len(t, inserted, 1)
	assert.Empty(t, pruned, "line still points at existing shapes")
	assert.Equal(t, line.StartOwnerID, out.Nodes[inserted[0]].StartOwnerID)
}
