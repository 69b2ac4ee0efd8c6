package weighted

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
)

// RescaleMode selects how edge weights are normalized between levels
type RescaleMode string

const (
	// RescaleSum divides every weight by the total weight.
	RescaleSum RescaleMode = "sum"
	// RescaleMinMax maps weights linearly onto [0,1].
	RescaleMinMax RescaleMode = "minmax"
	// RescaleNone leaves weights untouched.
	RescaleNone RescaleMode = "none"
)

// Graph is a directed weighted edge list keyed by string identifiers.
// Sources and, per source, targets keep their first-insertion order.
type Graph struct {
	edges   map[string]map[string]float64
	sources []string
	targets map[string][]string
}

// Edge is a single weighted edge
type Edge struct {
	Src    string
	Dst    string
	Weight float64
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		edges:   make(map[string]map[string]float64),
		targets: make(map[string][]string),
	}
}

func (g *Graph) row(src, dst string) map[string]float64 {
	row, ok := g.edges[src]
	if !ok {
		row = make(map[string]float64)
		g.edges[src] = row
		g.sources = append(g.sources, src)
	}
	if _, ok := row[dst]; !ok {
		g.targets[src] = append(g.targets[src], dst)
	}
	return row
}

// Set overwrites the weight of src->dst.
func (g *Graph) Set(src, dst string, w float64) {
	g.row(src, dst)[dst] = w
}

// Add accumulates w into src->dst.
func (g *Graph) Add(src, dst string, w float64) {
	g.row(src, dst)[dst] += w
}

// Get returns the weight of src->dst and whether it exists.
func (g *Graph) Get(src, dst string) (float64, bool) {
	w, ok := g.edges[src][dst]
	return w, ok
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	n := 0
	for _, src := range g.sources {
		n += len(g.targets[src])
	}
	return n
}

// Edges lists the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.Len())
	g.Each(func(src, dst string, w float64) {
		out = append(out, Edge{Src: src, Dst: dst, Weight: w})
	})
	return out
}

// Each visits every edge in insertion order.
func (g *Graph) Each(fn func(src, dst string, w float64)) {
	for _, src := range g.sources {
		row := g.edges[src]
		for _, dst := range g.targets[src] {
			fn(src, dst, row[dst])
		}
	}
}

func (g *Graph) update(fn func(w float64) float64) {
	for _, src := range g.sources {
		row := g.edges[src]
		for _, dst := range g.targets[src] {
			row[dst] = fn(row[dst])
		}
	}
}

// Clone returns an independent copy with the same edge order.
func (g *Graph) Clone() *Graph {
	out := New()
	g.Each(out.Set)
	return out
}

// Sum returns the total edge weight.
func (g *Graph) Sum() float64 {
	sum := 0.0
	g.Each(func(_, _ string, w float64) { sum += w })
	return sum
}

// LogTransform replaces every weight w with ln(w+1).
func (g *Graph) LogTransform() {
	g.update(func(w float64) float64 { return math.Log(w + 1.0) })
}

// Rescale normalizes the weights according to mode.
func (g *Graph) Rescale(mode RescaleMode) error {
	switch mode {
	case RescaleNone, "":
		return nil
	case RescaleSum:
		sum := g.Sum()
		if sum <= 0 {
			return nil
		}
		g.update(func(w float64) float64 { return w / sum })
		return nil
	case RescaleMinMax:
		weights := make([]float64, 0, g.Len())
		g.Each(func(_, _ string, w float64) { weights = append(weights, w) })
		if len(weights) == 0 {
			return nil
		}
		lo := floats.Min(weights)
		span := floats.Max(weights) - lo
		if span <= 0 {
			return nil
		}
		g.update(func(w float64) float64 { return (w - lo) / span })
		return nil
	default:
		return fmt.Errorf("unknown rescale mode %q", mode)
	}
}

// ReadCSV loads an edge list. The header line is skipped, a missing weight
// counts as 1.0 and any malformed line aborts the load.
func ReadCSV(path string) (*Graph, error) {
	records, err := bigraph.ReadEdgeList(path)
	if err != nil {
		return nil, err
	}

	g := New()
	for _, rec := range records {
		g.Add(rec.Src, rec.Dst, rec.Weight)
	}
	return g, nil
}

// WriteCSV writes the edges whose weight is at least threshold, with a header
// line and the shortest weight text that parses back to the same value.
func (g *Graph) WriteCSV(path string, threshold float64) (written int, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"src", "dst", "weight"}); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range g.Edges() {
		if e.Weight < threshold {
			continue
		}
		record := []string{e.Src, e.Dst, strconv.FormatFloat(e.Weight, 'g', -1, 64)}
		if err := writer.Write(record); err != nil {
			return written, fmt.Errorf("failed to write CSV record: %w", err)
		}
		written++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return written, nil
}

// ToDataset converts the edge list into a refreshed bipartite dataset.
func (g *Graph) ToDataset() (*bigraph.Dataset, error) {
	records := make([]bigraph.EdgeRecord, 0, g.Len())
	g.Each(func(src, dst string, w float64) {
		records = append(records, bigraph.EdgeRecord{Src: src, Dst: dst, Weight: w})
	})
	return bigraph.NewDataset(records)
}
