package mroc

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Forest is the arena of every cluster ever created. Leaves are the initial
// ego clusters; every other cluster has exactly two parents.
type Forest struct {
	clusters []Cluster
	parents  [][2]Handle
	child    []Handle
}

// NewForest creates an empty forest
func NewForest() *Forest {
	return &Forest{}
}

// AddLeaf stores an ego cluster and returns its handle.
func (f *Forest) AddLeaf(c Cluster) Handle {
	return f.add(c, [2]Handle{NoHandle, NoHandle})
}

// AddMerge stores the merge of a and b and links both parents to it.
func (f *Forest) AddMerge(a, b Handle) (Handle, error) {
	for _, p := range []Handle{a, b} {
		if !f.valid(p) {
			return NoHandle, fmt.Errorf("unknown cluster handle %d", p)
		}
		if f.child[p] != NoHandle {
			return NoHandle, fmt.Errorf("cluster %d already merged into %d", p, f.child[p])
		}
	}
	if a == b {
		return NoHandle, fmt.Errorf("cannot merge cluster %d with itself", a)
	}

	h := f.add(Merge(f.clusters[a], f.clusters[b]), [2]Handle{a, b})
	f.child[a] = h
	f.child[b] = h
	return h, nil
}

func (f *Forest) add(c Cluster, parents [2]Handle) Handle {
	f.clusters = append(f.clusters, c)
	f.parents = append(f.parents, parents)
	f.child = append(f.child, NoHandle)
	return Handle(len(f.clusters) - 1)
}

func (f *Forest) valid(h Handle) bool {
	return h >= 0 && int(h) < len(f.clusters)
}

// Len returns the number of clusters in the arena.
func (f *Forest) Len() int { return len(f.clusters) }

// Cluster returns the cluster behind h.
func (f *Forest) Cluster(h Handle) Cluster { return f.clusters[h] }

// Parents returns the two merged clusters, or nil for a leaf.
func (f *Forest) Parents(h Handle) []Handle {
	p := f.parents[h]
	if p[0] == NoHandle {
		return nil
	}
	return []Handle{p[0], p[1]}
}

// Child returns the cluster h was merged into, or NoHandle.
func (f *Forest) Child(h Handle) Handle { return f.child[h] }

// Leaves returns the ego clusters in creation order.
func (f *Forest) Leaves() []Handle {
	var out []Handle
	for h := range f.clusters {
		if f.parents[h][0] == NoHandle {
			out = append(out, Handle(h))
		}
	}
	return out
}

// Roots returns the clusters that were never merged further.
func (f *Forest) Roots() []Handle {
	var out []Handle
	for h, c := range f.child {
		if c == NoHandle {
			out = append(out, Handle(h))
		}
	}
	return out
}

// InternalCount is the number of clusters produced by merges.
func (f *Forest) InternalCount() int {
	return len(f.clusters) - len(f.Leaves())
}

// Graph exports the forest as a gonum directed graph with node IDs equal to
// handles and edges from each parent to its merged child.
func (f *Forest) Graph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for h := range f.clusters {
		g.AddNode(simple.Node(h))
	}
	for h, c := range f.child {
		if c != NoHandle {
			g.SetEdge(g.NewEdge(simple.Node(h), simple.Node(c)))
		}
	}
	return g
}

// Validate checks that the forest is acyclic and that every merged cluster
// has two distinct parents pointing at it.
func (f *Forest) Validate() error {
	if _, err := topo.Sort(f.Graph()); err != nil {
		return fmt.Errorf("merge forest is not a DAG: %w", err)
	}
	for h, p := range f.parents {
		if p[0] == NoHandle {
			continue
		}
		if p[0] == p[1] || f.child[p[0]] != Handle(h) || f.child[p[1]] != Handle(h) {
			return fmt.Errorf("cluster %d has inconsistent parents %v", h, p)
		}
	}
	return nil
}
