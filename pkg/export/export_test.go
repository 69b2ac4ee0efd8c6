package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/labelmap"
)

func smallDataset(t *testing.T) *bigraph.Dataset {
	t.Helper()
	data, err := bigraph.NewDataset([]bigraph.EdgeRecord{
		{Src: "a", Dst: "x", Weight: 1},
		{Src: "a", Dst: "y", Weight: 0.5},
		{Src: "b", Dst: "x", Weight: 2},
	})
	require.NoError(t, err)
	return data
}

func TestNewSnapshot(t *testing.T) {
	labels := labelmap.New()
	labels.Add("a", "int0_0")
	labels.Add("x", "ext0_0")
	labels.Add("x", "ext0_1")

	snap, err := NewSnapshot(1, smallDataset(t), labels)
	require.NoError(t, err)

	require.Len(t, snap.Nodes, 4)
	assert.Equal(t, Node{ID: "a", Side: "int", Labels: []string{"int0_0"}}, snap.Nodes[0])
	assert.Equal(t, "b", snap.Nodes[1].ID)
	assert.Nil(t, snap.Nodes[1].Labels)
	assert.Equal(t, Node{ID: "x", Side: "ext", Labels: []string{"ext0_0", "ext0_1"}}, snap.Nodes[2])
	assert.Equal(t, []Edge{
		{Src: 0, Dst: 2, Weight: 1},
		{Src: 0, Dst: 3, Weight: 0.5},
		{Src: 1, Dst: 2, Weight: 2},
	}, snap.Edges)

	_, err = NewSnapshot(0, nil, nil)
	assert.Error(t, err)
}

func TestWriteDOT(t *testing.T) {
	labels := labelmap.New()
	labels.Add("a", "int0_0")
	snap, err := NewSnapshot(0, smallDataset(t), labels)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bigraph0", "graph.dot")
	require.NoError(t, WriteDOT(path, snap))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(content)

	assert.Contains(t, out, "digraph level0 {")
	assert.Contains(t, out, "int:a")
	assert.Contains(t, out, "ext:y")
	assert.Contains(t, out, "int0_0")
	assert.Contains(t, out, "2.000000")
	assert.Equal(t, 3, strings.Count(out, "->"))
}

func TestLayout(t *testing.T) {
	snap, err := NewSnapshot(0, smallDataset(t), nil)
	require.NoError(t, err)

	require.NoError(t, Layout(snap, DefaultLayoutOptions()))

	total := 0.0
	for _, n := range snap.Nodes {
		assert.Greater(t, n.PageRank, 0.0, n.ID)
		assert.GreaterOrEqual(t, n.X, 0.0)
		assert.LessOrEqual(t, n.X, 1.0)
		assert.GreaterOrEqual(t, n.Y, 0.0)
		assert.LessOrEqual(t, n.Y, 1.0)
		total += n.PageRank
	}
	assert.InDelta(t, 1.0, total, 1e-2)

	// a and x are the hubs of the path y-a-x-b
	assert.Greater(t, snap.Nodes[0].PageRank, snap.Nodes[3].PageRank)
}

func TestLayoutSingleNodeAndEmpty(t *testing.T) {
	assert.NoError(t, Layout(&Snapshot{}, DefaultLayoutOptions()))

	snap := &Snapshot{Nodes: []Node{{ID: "solo", Side: "int"}}}
	require.NoError(t, Layout(snap, DefaultLayoutOptions()))
	assert.Equal(t, 0.5, snap.Nodes[0].X)
	assert.Greater(t, snap.Nodes[0].PageRank, 0.0)
}
