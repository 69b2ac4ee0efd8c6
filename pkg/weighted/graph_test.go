package weighted

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	g := New()
	g.Add("a", "x", 1)
	g.Add("a", "y", 3)
	g.Add("b", "x", 2)
	g.Add("a", "x", 2)
	return g
}

func TestGraphOrderAndAccumulation(t *testing.T) {
	g := sampleGraph()
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []Edge{
		{Src: "a", Dst: "x", Weight: 3},
		{Src: "a", Dst: "y", Weight: 3},
		{Src: "b", Dst: "x", Weight: 2},
	}, g.Edges())

	g.Set("b", "x", 1)
	w, ok := g.Get("b", "x")
	require.True(t, ok)
	assert.Equal(t, 1.0, w)

	_, ok = g.Get("b", "y")
	assert.False(t, ok)
}

func TestRescale(t *testing.T) {
	t.Run("Sum", func(t *testing.T) {
		g := sampleGraph()
		require.NoError(t, g.Rescale(RescaleSum))
		assert.InDelta(t, 1.0, g.Sum(), 1e-12)
		w, _ := g.Get("b", "x")
		assert.InDelta(t, 0.25, w, 1e-12)
	})

	t.Run("MinMax", func(t *testing.T) {
		g := sampleGraph()
		require.NoError(t, g.Rescale(RescaleMinMax))
		w, _ := g.Get("a", "x")
		assert.InDelta(t, 1.0, w, 1e-12)
		w, _ = g.Get("b", "x")
		assert.InDelta(t, 0.0, w, 1e-12)
	})

	t.Run("MinMaxFlat", func(t *testing.T) {
		g := New()
		g.Add("a", "x", 2)
		g.Add("b", "x", 2)
		require.NoError(t, g.Rescale(RescaleMinMax))
		w, _ := g.Get("a", "x")
		assert.Equal(t, 2.0, w, "zero range leaves weights alone")
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.Error(t, sampleGraph().Rescale("median"))
	})
}

func TestLogTransform(t *testing.T) {
	g := New()
	g.Add("a", "x", math.E-1)
	g.LogTransform()
	w, _ := g.Get("a", "x")
	assert.InDelta(t, 1.0, w, 1e-12)
}

func TestCSVRoundTrip(t *testing.T) {
	g := New()
	g.Add("10.0.0.1", "asn7", 0.125)
	g.Add("10.0.0.1", "asn9", 2)
	g.Add("10.0.0.2", "asn7", 0.004)

	path := filepath.Join(t.TempDir(), "nested", "graph.csv")
	n, err := g.WriteCSV(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), back.Edges(), "threshold 0 without rescale is the identity")

	n, err = g.WriteCSV(path, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "src,dst,weight\n10.0.0.1,asn7,0.125\n10.0.0.1,asn9,2\n", string(content))
}

func TestCSVRoundTripKeepsFullPrecision(t *testing.T) {
	g := New()
	g.Add("a", "x", 1.0/3)
	g.Add("b", "x", 2e-7)

	path := filepath.Join(t.TempDir(), "graph.csv")
	_, err := g.WriteCSV(path, 0)
	require.NoError(t, err)

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), back.Edges())

	data, err := back.ToDataset()
	require.NoError(t, err)
	assert.Equal(t, 2, data.Matrix.NumEdges(), "tiny weights survive the reload")
}

func TestToDataset(t *testing.T) {
	data, err := sampleGraph().ToDataset()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, data.Internal.IDs())
	assert.Equal(t, []string{"x", "y"}, data.External.IDs())
	assert.Equal(t, 8.0, data.Matrix.Sum())
}

func TestReadCSVMissing(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClone(t *testing.T) {
	g := sampleGraph()
	c := g.Clone()
	require.NoError(t, c.Rescale(RescaleSum))

	assert.Equal(t, g.Len(), c.Len())
	assert.Equal(t, 8.0, g.Sum(), "the original keeps its weights")
	assert.InDelta(t, 1.0, c.Sum(), 1e-12)
	assert.Equal(t, "a", c.Edges()[0].Src)
}
