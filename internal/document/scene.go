package document

import (
	"slices"
)

// Node returns the node with the given id. The pseudo-group is resolved too.
func (s *Scene) Node(id string) (*Node, bool) {
	if id == MultiSelectGroupID && s.MultiSelect != nil {
		return s.MultiSelect, true
	}
	n, ok := s.Nodes[id]
	return n, ok
}

// ItemsOf returns the ordered child ids of parentID; the empty id means the
// top level.
func (s *Scene) ItemsOf(parentID string) []string {
	if parentID == "" {
		return s.Roots
	}
	if n, ok := s.Nodes[parentID]; ok {
		return n.Items
	}
	return nil
}

// Children returns the child nodes of parentID in order.
func (s *Scene) Children(parentID string) []*Node {
	ids := s.ItemsOf(parentID)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.Nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Ancestors returns the ids of every ancestor of id, outermost first.
func (s *Scene) Ancestors(id string) []string {
	var chain []string
	n, ok := s.Nodes[id]
	for ok && n.Parent != "" {
		chain = append(chain, n.Parent)
		n, ok = s.Nodes[n.Parent]
	}
	slices.Reverse(chain)
	return chain
}

// Depth returns the number of ancestors of id.
func (s *Scene) Depth(id string) int {
	depth := 0
	n, ok := s.Nodes[id]
	for ok && n.Parent != "" {
		depth++
		n, ok = s.Nodes[n.Parent]
	}
	return depth
}

// Descendants returns every id owned directly or indirectly by id, items
// before connect points, in preorder. id itself is not included.
func (s *Scene) Descendants(id string) []string {
	var out []string
	var walk func(string)
	walk = func(cur string) {
		n, ok := s.Nodes[cur]
		if !ok {
			return
		}
		for _, child := range n.Items {
			out = append(out, child)
			walk(child)
		}
		for _, cp := range n.ConnectPoints {
			out = append(out, cp)
		}
	}
	walk(id)
	return out
}

// Subtree returns id followed by its descendants.
func (s *Scene) Subtree(id string) []string {
	return append([]string{id}, s.Descendants(id)...)
}

// IsDescendant reports whether id lives somewhere below ancestorID.
func (s *Scene) IsDescendant(id, ancestorID string) bool {
	return slices.Contains(s.Ancestors(id), ancestorID)
}

// Walk visits every item node in preorder (connect points are skipped).
// Returning false from fn skips the node's children.
func (s *Scene) Walk(fn func(n *Node, depth int) bool) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n, ok := s.Nodes[id]
			if !ok {
				continue
			}
			if fn(n, depth) {
				walk(n.Items, depth+1)
			}
		}
	}
	walk(s.Roots, 0)
}

// Selected returns the ids of selected nodes in tree order.
func (s *Scene) Selected() []string {
	var ids []string
	s.Walk(func(n *Node, _ int) bool {
		if n.IsSelected {
			ids = append(ids, n.ID)
		}
		return true
	})
	return ids
}

// ConnectLines returns every connector in tree order.
func (s *Scene) ConnectLines() []*Node {
	var lines []*Node
	s.Walk(func(n *Node, _ int) bool {
		if n.Kind == KindConnectLine {
			lines = append(lines, n)
			return false
		}
		return true
	})
	return lines
}

// IndexOf returns the position of id within its parent's items, or -1.
func (s *Scene) IndexOf(id string) int {
	n, ok := s.Nodes[id]
	if !ok {
		return -1
	}
	return slices.Index(s.ItemsOf(n.Parent), id)
}

// Tx is a copy-on-write edit of a scene. Nodes are cloned on first write;
// Commit additionally re-creates every ancestor of a written node so that
// unchanged subtrees keep pointer identity and changed ones do not.
type Tx struct {
	base    *Scene
	work    *Scene
	cloned  map[string]bool
	touched map[string]bool
	changed bool
}

// Edit opens a transaction on s. s itself is never modified.
func (s *Scene) Edit() *Tx {
	work := *s
	work.Nodes = make(map[string]*Node, len(s.Nodes))
	for id, n := range s.Nodes {
		work.Nodes[id] = n
	}
	work.Roots = slices.Clone(s.Roots)
	return &Tx{
		base:    s,
		work:    &work,
		cloned:  make(map[string]bool),
		touched: make(map[string]bool),
	}
}

// Scene exposes the in-progress state for read-only queries.
func (tx *Tx) Scene() *Scene {
	return tx.work
}

// Node returns the current version of a node without cloning it.
func (tx *Tx) Node(id string) (*Node, bool) {
	return tx.work.Node(id)
}

// Mutable returns a writable copy of the node, cloning it on first use.
func (tx *Tx) Mutable(id string) *Node {
	n, ok := tx.work.Nodes[id]
	if !ok {
		return nil
	}
	tx.touched[id] = true
	tx.changed = true
	if tx.cloned[id] {
		return n
	}
	c := n.Clone()
	tx.work.Nodes[id] = c
	tx.cloned[id] = true
	return c
}

// Update applies fn to a writable copy of the node. It reports false if the
// node does not exist.
func (tx *Tx) Update(id string, fn func(n *Node)) bool {
	n := tx.Mutable(id)
	if n == nil {
		return false
	}
	fn(n)
	return true
}

// Put stores a node record as-is. It does not link it into any parent.
func (tx *Tx) Put(n *Node) {
	tx.work.Nodes[n.ID] = n
	tx.cloned[n.ID] = true
	tx.touched[n.ID] = true
	tx.changed = true
}

// Insert stores n and links it into parentID's items at index (appending
// when index is out of range). The empty parent id means the top level.
func (tx *Tx) Insert(parentID string, index int, n *Node) {
	n.Parent = parentID
	tx.Put(n)
	tx.attach(parentID, index, n.ID)
}

// AddConnectPoint stores cp and links it into ownerID's connect points.
func (tx *Tx) AddConnectPoint(ownerID string, cp *Node) {
	cp.Parent = ownerID
	tx.Put(cp)
	tx.Update(ownerID, func(owner *Node) {
		owner.ConnectPoints = append(owner.ConnectPoints, cp.ID)
	})
}

// Move re-links an existing node under parentID at index.
func (tx *Tx) Move(id, parentID string, index int) {
	tx.detach(id)
	tx.Update(id, func(n *Node) { n.Parent = parentID })
	tx.attach(parentID, index, id)
}

// Remove unlinks id from its parent and deletes it with all descendants.
func (tx *Tx) Remove(id string) {
	if _, ok := tx.work.Nodes[id]; !ok {
		return
	}
	tx.detach(id)
	for _, sub := range tx.work.Subtree(id) {
		delete(tx.work.Nodes, sub)
		delete(tx.touched, sub)
	}
	tx.changed = true
}

// PruneDanglingLines removes every ConnectLine whose start or end owner no
// longer exists and returns the removed ids.
func (tx *Tx) PruneDanglingLines() []string {
	var pruned []string
	for _, line := range tx.work.ConnectLines() {
		_, startOK := tx.work.Nodes[line.StartOwnerID]
		_, endOK := tx.work.Nodes[line.EndOwnerID]
		if !startOK || !endOK {
			pruned = append(pruned, line.ID)
		}
	}
	for _, id := range pruned {
		tx.Remove(id)
	}
	return pruned
}

// PruneEmptyGroups removes groups left without items, innermost first,
// and returns the removed ids.
func (tx *Tx) PruneEmptyGroups() []string {
	var pruned []string
	for {
		var empty []string
		tx.work.Walk(func(n *Node, _ int) bool {
			if n.Kind == KindGroup && len(n.Items) == 0 {
				empty = append(empty, n.ID)
			}
			return true
		})
		if len(empty) == 0 {
			return pruned
		}
		for _, id := range empty {
			tx.Remove(id)
		}
		pruned = append(pruned, empty...)
	}
}

// SetMultiSelect replaces the pseudo-group.
func (tx *Tx) SetMultiSelect(n *Node) {
	if n == nil && tx.work.MultiSelect == nil {
		return
	}
	tx.work.MultiSelect = n
	tx.changed = true
}

// SetOrigin changes the persisted canvas origin.
func (tx *Tx) SetOrigin(minX, minY float64) {
	if tx.work.MinX == minX && tx.work.MinY == minY {
		return
	}
	tx.work.MinX, tx.work.MinY = minX, minY
	tx.changed = true
}

// Commit finalizes the edit. When nothing was written the original scene is
// returned unchanged.
func (tx *Tx) Commit() *Scene {
	if !tx.changed {
		return tx.base
	}
	touched := make([]string, 0, len(tx.touched))
	for id := range tx.touched {
		touched = append(touched, id)
	}
	for _, id := range touched {
		n, ok := tx.work.Nodes[id]
		for ok && n.Parent != "" {
			parent := n.Parent
			if !tx.cloned[parent] {
				if _, exists := tx.work.Nodes[parent]; !exists {
					break
				}
				tx.Mutable(parent)
			}
			n, ok = tx.work.Nodes[parent]
		}
	}
	return tx.work
}

func (tx *Tx) attach(parentID string, index int, id string) {
	insert := func(items []string) []string {
		if index < 0 || index > len(items) {
			return append(items, id)
		}
		return slices.Insert(items, index, id)
	}
	if parentID == "" {
		tx.work.Roots = insert(tx.work.Roots)
		tx.changed = true
		return
	}
	tx.Update(parentID, func(p *Node) { p.Items = insert(p.Items) })
}

func (tx *Tx) detach(id string) {
	n, ok := tx.work.Nodes[id]
	if !ok {
		return
	}
	remove := func(items []string) []string {
		return slices.DeleteFunc(items, func(s string) bool { return s == id })
	}
	if n.Parent == "" {
		tx.work.Roots = remove(tx.work.Roots)
		tx.changed = true
		return
	}
	tx.Update(n.Parent, func(p *Node) {
		p.Items = remove(p.Items)
		p.ConnectPoints = remove(p.ConnectPoints)
	})
}
