package export

import (
	"fmt"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/labelmap"
)

// Node is one exported vertex of a level graph
type Node struct {
	ID       string   `json:"id"`
	Side     string   `json:"side"`
	Labels   []string `json:"labels,omitempty"`
	PageRank float64  `json:"pagerank,omitempty"`
	X        float64  `json:"x,omitempty"`
	Y        float64  `json:"y,omitempty"`
}

// Edge is one exported weighted edge, always internal → external
type Edge struct {
	Src    int     `json:"src"`
	Dst    int     `json:"dst"`
	Weight float64 `json:"weight"`
}

// Snapshot is the node list, edge list and label assignment of one level.
// Edge endpoints index into Nodes.
type Snapshot struct {
	Level int    `json:"level"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewSnapshot exports a dataset. Internal nodes come first in index order,
// followed by the external nodes. labels may be nil.
func NewSnapshot(level int, data *bigraph.Dataset, labels *labelmap.MapSet) (*Snapshot, error) {
	if data == nil || data.Matrix == nil {
		return nil, fmt.Errorf("snapshot of empty dataset")
	}

	offset := data.Internal.Len()
	snap := &Snapshot{
		Level: level,
		Nodes: make([]Node, 0, offset+data.External.Len()),
	}

	addNodes := func(side string, ids []string) {
		for _, id := range ids {
			node := Node{ID: id, Side: side}
			if labels != nil {
				node.Labels = labels.Get(id)
			}
			snap.Nodes = append(snap.Nodes, node)
		}
	}
	addNodes(labelmap.SideInternal, data.Internal.IDs())
	addNodes(labelmap.SideExternal, data.External.IDs())

	for _, e := range data.Matrix.Edges() {
		snap.Edges = append(snap.Edges, Edge{Src: e.I, Dst: offset + e.J, Weight: e.Weight})
	}
	return snap, nil
}
