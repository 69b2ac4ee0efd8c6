package bigraph

// NodeIndex assigns dense indices to string identifiers in first-seen order.
type NodeIndex struct {
	ids   []string
	index map[string]int
}

// NewNodeIndex creates an empty index
func NewNodeIndex() *NodeIndex {
	return &NodeIndex{index: make(map[string]int)}
}

// Add returns the index of id, assigning the next free one when id is new.
func (n *NodeIndex) Add(id string) int {
	if idx, ok := n.index[id]; ok {
		return idx
	}
	idx := len(n.ids)
	n.ids = append(n.ids, id)
	n.index[id] = idx
	return idx
}

// Index returns the index of id, or -1.
func (n *NodeIndex) Index(id string) int {
	if idx, ok := n.index[id]; ok {
		return idx
	}
	return -1
}

// ID returns the identifier at idx.
func (n *NodeIndex) ID(idx int) string {
	return n.ids[idx]
}

// IDs returns the identifiers in index order.
func (n *NodeIndex) IDs() []string {
	out := make([]string, len(n.ids))
	copy(out, n.ids)
	return out
}

// Len returns the number of indexed identifiers.
func (n *NodeIndex) Len() int {
	return len(n.ids)
}
