package mroc

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
)

// FromBigraph flattens a bipartite matrix into a single-sided neighbour
// graph. Internal node i keeps ID i and external node j becomes ID I+j.
func FromBigraph(m *bigraph.Matrix) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	offset := int64(m.ISize())
	for i := 0; i < m.ISize(); i++ {
		g.AddNode(simple.Node(i))
	}
	for j := 0; j < m.JSize(); j++ {
		g.AddNode(simple.Node(offset + int64(j)))
	}
	for _, e := range m.Edges() {
		g.SetEdge(g.NewEdge(simple.Node(e.I), simple.Node(offset+int64(e.J))))
	}
	return g
}

// RootLabels assigns each node the positions, within Roots(), of every root
// cluster containing it. Overlapping clusters give a node several labels.
func RootLabels(forest *Forest) map[int64][]int {
	labels := make(map[int64][]int)
	for label, h := range forest.Roots() {
		for _, id := range forest.Cluster(h).Members() {
			labels[id] = append(labels[id], label)
		}
	}
	return labels
}

// WriteForest writes one line per cluster:
// handle,parentA,parentB,size,member... with -1 for the parents of a leaf.
// name renders member IDs; nil writes the raw IDs.
func WriteForest(path string, forest *Forest, name func(int64) string) (err error) {
	if name == nil {
		name = func(id int64) string { return strconv.FormatInt(id, 10) }
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	writer := csv.NewWriter(file)
	for h := 0; h < forest.Len(); h++ {
		handle := Handle(h)
		parentA, parentB := NoHandle, NoHandle
		if p := forest.Parents(handle); p != nil {
			parentA, parentB = p[0], p[1]
		}
		c := forest.Cluster(handle)

		record := []string{
			strconv.Itoa(h),
			strconv.Itoa(int(parentA)),
			strconv.Itoa(int(parentB)),
			strconv.Itoa(c.Size()),
		}
		for _, id := range c.Members() {
			record = append(record, name(id))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write forest line: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
