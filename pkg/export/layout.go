package export

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"
)

// LayoutOptions controls PageRank scoring and MDS placement
type LayoutOptions struct {
	Damping     float64 `yaml:"damping" validate:"gt=0,lt=1"`
	Tolerance   float64 `yaml:"tolerance" validate:"gt=0"`
	MaxDistance float64 `yaml:"max_distance" validate:"gt=0"` // distance used for unreachable pairs
}

// DefaultLayoutOptions returns the usual PageRank damping and tolerance.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		Damping:     0.85,
		Tolerance:   1e-6,
		MaxDistance: 10.0,
	}
}

// Layout fills PageRank, X and Y of every node. Edges are treated as
// undirected. Positions come from classical MDS over hop distances and are
// normalized to [0,1].
func Layout(snap *Snapshot, opts LayoutOptions) error {
	if len(snap.Nodes) == 0 {
		return nil
	}

	g := snap.undirected()

	scores := network.PageRank(g, opts.Damping, opts.Tolerance)
	for id, score := range scores {
		snap.Nodes[id].PageRank = score
	}

	if len(snap.Nodes) == 1 {
		snap.Nodes[0].X, snap.Nodes[0].Y = 0.5, 0.5
		return nil
	}

	coords, err := torgerson(hopDistances(g, len(snap.Nodes), opts.MaxDistance))
	if err != nil {
		return err
	}

	var minX, maxX, minY, maxY float64
	for i := range snap.Nodes {
		x, y := coords.At(i, 0), coords.At(i, 1)
		if i == 0 || x < minX {
			minX = x
		}
		if i == 0 || x > maxX {
			maxX = x
		}
		if i == 0 || y < minY {
			minY = y
		}
		if i == 0 || y > maxY {
			maxY = y
		}
	}
	for i := range snap.Nodes {
		snap.Nodes[i].X = normalize(coords.At(i, 0), minX, maxX)
		snap.Nodes[i].Y = normalize(coords.At(i, 1), minY, maxY)
	}
	return nil
}

func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

// undirected doubles every edge so that PageRank sees both directions.
func (snap *Snapshot) undirected() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for i := range snap.Nodes {
		g.AddNode(simple.Node(i))
	}
	for _, e := range snap.Edges {
		if e.Src == e.Dst {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(e.Src), T: simple.Node(e.Dst)})
		g.SetEdge(simple.Edge{F: simple.Node(e.Dst), T: simple.Node(e.Src)})
	}
	return g
}

// hopDistances runs a BFS from every node. Node IDs must be 0..n-1.
func hopDistances(g graph.Directed, n int, maxDistance float64) *mat.SymDense {
	dist := mat.NewSymDense(n, nil)
	hops := make([]int, n)
	for src := 0; src < n; src++ {
		for i := range hops {
			hops[i] = -1
		}
		hops[src] = 0
		queue := []int64{int64(src)}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			next := g.From(cur)
			for next.Next() {
				id := next.Node().ID()
				if hops[id] < 0 {
					hops[id] = hops[cur] + 1
					queue = append(queue, id)
				}
			}
		}
		for dst := src + 1; dst < n; dst++ {
			d := maxDistance
			if hops[dst] >= 0 {
				d = float64(hops[dst])
			}
			dist.SetSym(src, dst, d)
		}
	}
	return dist
}

// torgerson returns an n×2 coordinate matrix, padding with zeros when fewer
// than two positive eigenvalues exist.
func torgerson(dist *mat.SymDense) (*mat.Dense, error) {
	var coords mat.Dense
	k, _ := mds.TorgersonScaling(&coords, nil, dist)
	if k == 0 {
		return nil, fmt.Errorf("MDS found no positive eigenvalues")
	}

	rows, cols := coords.Dims()
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols && j < 2; j++ {
			out.Set(i, j, coords.At(i, j))
		}
	}
	return out, nil
}
