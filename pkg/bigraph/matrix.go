package bigraph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrStaleCache marks a read of the transpose or adjacency caches after a
	// mutation that was not followed by a refresh.
	ErrStaleCache = errors.New("bigraph: adjacency cache is stale, refresh after mutation")

	// ErrInvalidWeight rejects negative, NaN or infinite weights.
	ErrInvalidWeight = errors.New("bigraph: invalid weight")

	// ErrIndexOutOfRange rejects indices outside the matrix dimensions.
	ErrIndexOutOfRange = errors.New("bigraph: index out of range")
)

// Matrix is a sparse weighted bipartite adjacency structure. Rows are the
// internal side, columns the external side. Zero means no edge.
//
// The transpose, the adjacency lists and the degree vectors are caches. They
// are rebuilt only by UpdateTranspose/UpdateAdjacencyArrays (or Refresh), so a
// bulk load pays for them once. Reading any cache after a mutation panics.
type Matrix struct {
	rows  []map[int]float64 // rows[i][j] = weight
	iSize int
	jSize int

	cols           []map[int]float64
	rowAdj         [][]int
	colAdj         [][]int
	rowDeg         []float64
	colDeg         []float64
	transposeFresh bool
	adjFresh       bool
}

// NewMatrix creates an empty iSize x jSize matrix
func NewMatrix(iSize, jSize int) *Matrix {
	m := &Matrix{
		rows:  make([]map[int]float64, iSize),
		iSize: iSize,
		jSize: jSize,
	}
	for i := range m.rows {
		m.rows[i] = make(map[int]float64)
	}
	return m
}

// ISize returns the number of internal (row) nodes.
func (m *Matrix) ISize() int { return m.iSize }

// JSize returns the number of external (column) nodes.
func (m *Matrix) JSize() int { return m.jSize }

// Get returns the weight at (i, j), 0 when absent or out of range.
func (m *Matrix) Get(i, j int) float64 {
	if i < 0 || i >= m.iSize {
		return 0.0
	}
	return m.rows[i][j]
}

func (m *Matrix) check(i, j int, w float64) error {
	if i < 0 || i >= m.iSize || j < 0 || j >= m.jSize {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndexOutOfRange, i, j, m.iSize, m.jSize)
	}
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: %v at (%d,%d)", ErrInvalidWeight, w, i, j)
	}
	return nil
}

func (m *Matrix) invalidate() {
	m.transposeFresh = false
	m.adjFresh = false
}

// Set stores w at (i, j). A zero weight removes the edge.
func (m *Matrix) Set(i, j int, w float64) error {
	if err := m.check(i, j, w); err != nil {
		return err
	}
	if w == 0 {
		delete(m.rows[i], j)
	} else {
		m.rows[i][j] = w
	}
	m.invalidate()
	return nil
}

// Add accumulates w into (i, j).
func (m *Matrix) Add(i, j int, w float64) error {
	if err := m.check(i, j, w); err != nil {
		return err
	}
	return m.Set(i, j, m.rows[i][j]+w)
}

// UpdateTranspose rebuilds the column-major view from the rows.
func (m *Matrix) UpdateTranspose() {
	m.cols = make([]map[int]float64, m.jSize)
	for j := range m.cols {
		m.cols[j] = make(map[int]float64)
	}
	for i, row := range m.rows {
		for j, w := range row {
			m.cols[j][i] = w
		}
	}
	m.transposeFresh = true
	m.adjFresh = false
}

// UpdateAdjacencyArrays rebuilds the ascending neighbor lists and degrees of
// both sides. The transpose must be current.
func (m *Matrix) UpdateAdjacencyArrays() error {
	if !m.transposeFresh {
		return fmt.Errorf("update adjacency arrays: %w", ErrStaleCache)
	}

	m.rowAdj, m.rowDeg = adjacency(m.rows)
	m.colAdj, m.colDeg = adjacency(m.cols)
	m.adjFresh = true
	return nil
}

func adjacency(lines []map[int]float64) ([][]int, []float64) {
	adj := make([][]int, len(lines))
	deg := make([]float64, len(lines))
	weights := make([]float64, 0)
	for k, line := range lines {
		idx := make([]int, 0, len(line))
		for n := range line {
			idx = append(idx, n)
		}
		sort.Ints(idx)
		adj[k] = idx

		weights = weights[:0]
		for _, n := range idx {
			weights = append(weights, line[n])
		}
		deg[k] = floats.Sum(weights)
	}
	return adj, deg
}

// Refresh rebuilds the transpose and then the adjacency caches.
func (m *Matrix) Refresh() {
	m.UpdateTranspose()
	// cannot fail: the transpose was just rebuilt
	_ = m.UpdateAdjacencyArrays()
}

// Fresh reports whether every cache reflects the current weights.
func (m *Matrix) Fresh() bool {
	return m.transposeFresh && m.adjFresh
}

func (m *Matrix) mustBeFresh(op string) {
	if !m.Fresh() {
		panic(fmt.Errorf("%s: %w", op, ErrStaleCache))
	}
}

// NeighborsOfRow returns the ascending external indices adjacent to row i.
// The slice is shared with the cache and must not be modified.
func (m *Matrix) NeighborsOfRow(i int) []int {
	m.mustBeFresh("neighbors of row")
	return m.rowAdj[i]
}

// NeighborsOfColumn returns the ascending internal indices adjacent to column j.
func (m *Matrix) NeighborsOfColumn(j int) []int {
	m.mustBeFresh("neighbors of column")
	return m.colAdj[j]
}

// ColumnWeight returns the weight at (i, j) read through the transpose.
func (m *Matrix) ColumnWeight(j, i int) float64 {
	m.mustBeFresh("column weight")
	return m.cols[j][i]
}

// RowDegree returns the weighted degree of internal node i.
func (m *Matrix) RowDegree(i int) float64 {
	m.mustBeFresh("row degree")
	return m.rowDeg[i]
}

// ColumnDegree returns the weighted degree of external node j.
func (m *Matrix) ColumnDegree(j int) float64 {
	m.mustBeFresh("column degree")
	return m.colDeg[j]
}

// RowDegrees returns the cached internal degree vector.
func (m *Matrix) RowDegrees() []float64 {
	m.mustBeFresh("row degrees")
	return m.rowDeg
}

// ColumnDegrees returns the cached external degree vector.
func (m *Matrix) ColumnDegrees() []float64 {
	m.mustBeFresh("column degrees")
	return m.colDeg
}

// Sum returns the total edge weight W.
func (m *Matrix) Sum() float64 {
	m.mustBeFresh("sum")
	return floats.Sum(m.rowDeg)
}

// NumEdges counts stored (non-zero) entries.
func (m *Matrix) NumEdges() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}

// Edge is one stored entry of the matrix
type Edge struct {
	I      int
	J      int
	Weight float64
}

// Edges lists the stored entries in row then column order.
func (m *Matrix) Edges() []Edge {
	m.mustBeFresh("edges")
	edges := make([]Edge, 0, m.NumEdges())
	for i, adj := range m.rowAdj {
		for _, j := range adj {
			edges = append(edges, Edge{I: i, J: j, Weight: m.rows[i][j]})
		}
	}
	return edges
}
