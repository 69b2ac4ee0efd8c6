package pipeline

import (
	"fmt"
	"path/filepath"
)

// Layout names every file of a run. Level -1 is the raw source graph in the
// input directory; everything else lives under Root().
type Layout struct {
	InputDir  string
	OutputDir string
	Algorithm string
	Dataset   string
	Param     float64
}

// NewLayout derives the layout from resolved options
func NewLayout(opts *Options) *Layout {
	return &Layout{
		InputDir:  opts.InputDir,
		OutputDir: opts.OutputDir,
		Algorithm: opts.Algorithm,
		Dataset:   opts.Dataset,
		Param:     opts.Param,
	}
}

// Root is {output}/{algorithm}_{param·1000 truncated to four digits}.
func (l *Layout) Root() string {
	return filepath.Join(l.OutputDir, fmt.Sprintf("%s_%04d", l.Algorithm, int(l.Param*1000)))
}

func (l *Layout) level(kind string, it int, suffix string) string {
	return filepath.Join(l.Root(), fmt.Sprintf("%s%d", kind, it), l.Dataset+suffix)
}

// Graph is the edge list consumed by iteration it.
func (l *Layout) Graph(it int) string {
	if it < 0 {
		return filepath.Join(l.InputDir, l.Dataset+"_all.csv")
	}
	return l.level("bigraph", it, "_all.csv")
}

// DOT is the Graphviz rendering of Graph(it).
func (l *Layout) DOT(it int) string { return l.level("bigraph", it, "_all.dot") }

// Map holds the labels found by iteration it.
func (l *Layout) Map(it int) string { return l.level("cluster", it, "_all_map.csv") }

// MapSource maps original nodes to the labels of iteration it.
func (l *Layout) MapSource(it int) string { return l.level("cluster", it, "_all_mapsrc.csv") }

func (l *Layout) Forest(it int) string { return l.level("cluster", it, "_forest.csv") }
func (l *Layout) Moves(it int) string  { return l.level("cluster", it, "_moves.jsonl") }

func (l *Layout) Manifest() string { return filepath.Join(l.Root(), "run.yaml") }
func (l *Layout) Metrics() string  { return filepath.Join(l.Root(), "metrics.prom") }
