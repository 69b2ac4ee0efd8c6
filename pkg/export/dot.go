package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type dotNode struct {
	id   int64
	node Node
}

func (n dotNode) ID() int64 { return n.id }

// DOTID keeps both sides apart when an identifier appears on each.
func (n dotNode) DOTID() string { return n.node.Side + ":" + n.node.ID }

func (n dotNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "side", Value: n.node.Side}}
	if len(n.node.Labels) > 0 {
		attrs = append(attrs, encoding.Attribute{Key: "cluster", Value: strings.Join(n.node.Labels, ";")})
	}
	if n.node.PageRank != 0 {
		attrs = append(attrs, encoding.Attribute{Key: "pagerank", Value: formatFloat(n.node.PageRank)})
	}
	if n.node.X != 0 || n.node.Y != 0 {
		attrs = append(attrs, encoding.Attribute{
			Key:   "pos",
			Value: formatFloat(n.node.X) + "," + formatFloat(n.node.Y),
		})
	}
	return attrs
}

type dotEdge struct {
	from, to dotNode
	weight   float64
}

func (e dotEdge) From() graph.Node         { return e.from }
func (e dotEdge) To() graph.Node           { return e.to }
func (e dotEdge) ReversedEdge() graph.Edge { return dotEdge{from: e.to, to: e.from, weight: e.weight} }

func (e dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "weight", Value: formatFloat(e.weight)}}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Graph turns the snapshot into a gonum directed graph whose node IDs are the
// positions in snap.Nodes.
func (snap *Snapshot) Graph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	nodes := make([]dotNode, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodes[i] = dotNode{id: int64(i), node: n}
		g.AddNode(nodes[i])
	}
	for _, e := range snap.Edges {
		g.SetEdge(dotEdge{from: nodes[e.Src], to: nodes[e.Dst], weight: e.Weight})
	}
	return g
}

// MarshalDOT renders the snapshot in Graphviz DOT syntax.
func (snap *Snapshot) MarshalDOT(name string) ([]byte, error) {
	b, err := dot.Marshal(snap.Graph(), name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DOT: %w", err)
	}
	return b, nil
}

// WriteDOT writes the snapshot to path, creating parent directories.
func WriteDOT(path string, snap *Snapshot) error {
	b, err := snap.MarshalDOT(fmt.Sprintf("level%d", snap.Level))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
