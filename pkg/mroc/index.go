package mroc

import (
	"github.com/tidwall/btree"
)

func handleLess(a, b Handle) bool { return a < b }

// MembershipIndex maps every node to the ordered set of live clusters that
// contain it.
type MembershipIndex struct {
	nodes map[int64]*btree.BTreeG[Handle]
}

// NewMembershipIndex creates an empty index
func NewMembershipIndex() *MembershipIndex {
	return &MembershipIndex{nodes: make(map[int64]*btree.BTreeG[Handle])}
}

// Add registers h under every member of c.
func (idx *MembershipIndex) Add(h Handle, c Cluster) {
	for _, id := range c.Members() {
		set, ok := idx.nodes[id]
		if !ok {
			set = btree.NewBTreeG[Handle](handleLess)
			idx.nodes[id] = set
		}
		set.Set(h)
	}
}

// Remove drops h from every member of c.
func (idx *MembershipIndex) Remove(h Handle, c Cluster) {
	for _, id := range c.Members() {
		set, ok := idx.nodes[id]
		if !ok {
			continue
		}
		set.Delete(h)
		if set.Len() == 0 {
			delete(idx.nodes, id)
		}
	}
}

// Clusters returns the live clusters containing id in ascending handle order.
func (idx *MembershipIndex) Clusters(id int64) []Handle {
	set, ok := idx.nodes[id]
	if !ok {
		return nil
	}
	out := make([]Handle, 0, set.Len())
	set.Scan(func(h Handle) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Candidates returns, in ascending handle order, the live clusters holding at
// least one boundary node of c, excluding self.
func (idx *MembershipIndex) Candidates(self Handle, c Cluster) []Handle {
	found := btree.NewBTreeG[Handle](handleLess)
	for _, id := range c.Boundary() {
		set, ok := idx.nodes[id]
		if !ok {
			continue
		}
		set.Scan(func(h Handle) bool {
			if h != self {
				found.Set(h)
			}
			return true
		})
	}

	out := make([]Handle, 0, found.Len())
	found.Scan(func(h Handle) bool {
		out = append(out, h)
		return true
	})
	return out
}
