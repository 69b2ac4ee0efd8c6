package lpa

import (
	"fmt"
	"math"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/histogram"
)

// Side identifies one of the two node sets of the bipartite graph
type Side string

const (
	Internal Side = "internal"
	External Side = "external"
)

// Result represents the optimizer output
type Result struct {
	IntLabels       []int     `json:"int_labels"`
	ExtLabels       []int     `json:"ext_labels"`
	Modularity      float64   `json:"modularity"`
	NumCommunities  int       `json:"num_communities"`
	Sweeps          int       `json:"sweeps"`
	Moves           int       `json:"moves"`
	ModularityTrace []float64 `json:"modularity_trace"`
	RuntimeMS       int64     `json:"runtime_ms"`
}

// Aggregates holds, per label, the summed degrees of the internal and the
// external nodes currently carrying it.
type Aggregates struct {
	IntDegSum []float64
	ExtDegSum []float64
}

// Scratch is the per-node scoring buffer. It belongs to the caller and is
// reset at the start of every node evaluation.
type Scratch struct {
	scores *histogram.Histogram[int]
}

// NewScratch creates an empty scoring buffer
func NewScratch() *Scratch {
	return &Scratch{scores: histogram.New[int]()}
}

// UpdateObserver is called after every single label update, once the
// aggregates are consistent again.
type UpdateObserver func(side Side, node, from, to int)

// State is the mutable label assignment of one optimization run
type State struct {
	Matrix    *bigraph.Matrix
	IntLabels []int
	ExtLabels []int
	Agg       Aggregates

	Gamma    float64
	Observer UpdateObserver

	intDeg []float64
	extDeg []float64
	total  float64
}

// NewState gives every node of both sides a unique label. Internal node i
// gets label i and external node j gets label I+j.
func NewState(m *bigraph.Matrix, gamma float64) *State {
	iSize, jSize := m.ISize(), m.JSize()
	s := &State{
		Matrix:    m,
		IntLabels: make([]int, iSize),
		ExtLabels: make([]int, jSize),
		Gamma:     gamma,
		intDeg:    m.RowDegrees(),
		extDeg:    m.ColumnDegrees(),
		total:     m.Sum(),
	}

	for i := range s.IntLabels {
		s.IntLabels[i] = i
	}
	for j := range s.ExtLabels {
		s.ExtLabels[j] = iSize + j
	}
	s.rebuildAggregates(iSize + jSize)
	return s
}

func (s *State) rebuildAggregates(numLabels int) {
	s.Agg = Aggregates{
		IntDegSum: make([]float64, numLabels),
		ExtDegSum: make([]float64, numLabels),
	}
	for i, label := range s.IntLabels {
		s.Agg.IntDegSum[label] += s.intDeg[i]
	}
	for j, label := range s.ExtLabels {
		s.Agg.ExtDegSum[label] += s.extDeg[j]
	}
}

// TotalWeight returns W.
func (s *State) TotalWeight() float64 {
	return s.total
}

// Modularity computes
//
//	Q = (1/W)·Σ_{same label} w(i,j) − (γ/W²)·Σ_L IntDegSum(L)·ExtDegSum(L)
//
// An empty graph has modularity 0.
func (s *State) Modularity() float64 {
	if s.total <= 0 {
		return 0.0
	}

	same := 0.0
	for i, label := range s.IntLabels {
		for _, j := range s.Matrix.NeighborsOfRow(i) {
			if s.ExtLabels[j] == label {
				same += s.Matrix.Get(i, j)
			}
		}
	}

	penalty := 0.0
	for label, intSum := range s.Agg.IntDegSum {
		penalty += intSum * s.Agg.ExtDegSum[label]
	}

	return (same - s.Gamma*penalty/s.total) / s.total
}

// CheckAggregates verifies that the per-label sums add up to the total degree
// of each side.
func (s *State) CheckAggregates(tolerance float64) error {
	check := func(side Side, sums, degs []float64) error {
		want, got := 0.0, 0.0
		for _, d := range degs {
			want += d
		}
		for _, v := range sums {
			got += v
		}
		if math.Abs(want-got) > tolerance {
			return fmt.Errorf("%s aggregates sum to %v, degrees sum to %v", side, got, want)
		}
		return nil
	}

	if err := check(Internal, s.Agg.IntDegSum, s.intDeg); err != nil {
		return err
	}
	return check(External, s.Agg.ExtDegSum, s.extDeg)
}

// Resync rebuilds the aggregates from the labels, discarding the rounding
// drift of incremental updates.
func (s *State) Resync() {
	s.rebuildAggregates(len(s.Agg.IntDegSum))
}

// Snapshot copies the current labels.
func (s *State) Snapshot() (intLabels, extLabels []int) {
	intLabels = append([]int(nil), s.IntLabels...)
	extLabels = append([]int(nil), s.ExtLabels...)
	return intLabels, extLabels
}

// Restore replaces the labels and rebuilds the aggregates from them.
func (s *State) Restore(intLabels, extLabels []int) {
	copy(s.IntLabels, intLabels)
	copy(s.ExtLabels, extLabels)
	s.rebuildAggregates(len(s.Agg.IntDegSum))
}

// Relabel compacts the labels in use to 0..K-1, preserving their ascending
// order, and returns K. Modularity is unchanged.
func (s *State) Relabel() int {
	used := make([]bool, len(s.Agg.IntDegSum))
	for _, label := range s.IntLabels {
		used[label] = true
	}
	for _, label := range s.ExtLabels {
		used[label] = true
	}

	compact := make([]int, len(used))
	k := 0
	for label, inUse := range used {
		if inUse {
			compact[label] = k
			k++
		}
	}

	for i, label := range s.IntLabels {
		s.IntLabels[i] = compact[label]
	}
	for j, label := range s.ExtLabels {
		s.ExtLabels[j] = compact[label]
	}
	s.rebuildAggregates(k)
	return k
}
