package lpa

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
)

func quietConfig() *Config {
	config := NewConfig()
	config.Set("logging.level", "disabled")
	return config
}

func loadCSV(t *testing.T, content string) *bigraph.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	data, err := bigraph.LoadDataset(path)
	require.NoError(t, err)
	return data
}

const smallGraph = "src,dst,weight\na,x,1\na,y,1\nb,x,1\nc,y,1\n"

func TestRunSmallGraph(t *testing.T) {
	data := loadCSV(t, smallGraph)

	result, err := Run(data, quietConfig(), context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 1}, result.IntLabels)
	assert.Equal(t, []int{0, 1}, result.ExtLabels)
	assert.InDelta(t, 0.25, result.Modularity, 1e-12)
	assert.Equal(t, 2, result.NumCommunities)
	assert.Equal(t, 2, result.Sweeps)
	require.Len(t, result.ModularityTrace, 3)
	assert.InDelta(t, 0.0, result.ModularityTrace[0], 1e-12)
	assert.InDelta(t, 0.25, result.ModularityTrace[1], 1e-12)
	assert.InDelta(t, 0.25, result.ModularityTrace[2], 1e-12)
}

func TestRunZeroWeight(t *testing.T) {
	data := loadCSV(t, "src,dst,weight\na,x,0\nb,y,0\n")

	result, err := Run(data, quietConfig(), context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sweeps)
	assert.Equal(t, 0.0, result.Modularity)
	assert.Equal(t, 4, result.NumCommunities)
	assert.Equal(t, []int{0, 1}, result.IntLabels)
	assert.Equal(t, []int{2, 3}, result.ExtLabels)
}

func TestRunRejectsBadResolution(t *testing.T) {
	data := loadCSV(t, smallGraph)
	config := quietConfig()
	config.Set("algorithm.resolution", 0.0)

	_, err := Run(data, config, context.Background())
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	data := loadCSV(t, smallGraph)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(data, quietConfig(), ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMaxSweeps(t *testing.T) {
	data := loadCSV(t, smallGraph)
	config := quietConfig()
	config.Set("algorithm.max_sweeps", 1)

	result, err := Run(data, config, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sweeps)
}

func TestIsolatedNodeKeepsLabel(t *testing.T) {
	m := bigraph.NewMatrix(2, 2)
	require.NoError(t, m.Set(0, 0, 1))
	m.Refresh()

	state := NewState(m, 1.0)
	state.Sweep(NewScratch())

	assert.Equal(t, 1, state.IntLabels[1], "internal node without neighbours")
	assert.Equal(t, 3, state.ExtLabels[1], "external node without neighbours")
	assert.Equal(t, state.IntLabels[0], state.ExtLabels[0])
}

func TestMoveTracking(t *testing.T) {
	data := loadCSV(t, smallGraph)
	out := filepath.Join(t.TempDir(), "moves.jsonl")
	config := quietConfig()
	config.Set("analysis.track_moves", true)
	config.Set("analysis.output_file", out)

	result, err := Run(data, config, context.Background())
	require.NoError(t, err)
	require.Greater(t, result.Moves, 0)

	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		assert.True(t, strings.HasPrefix(line, "{\"move\":"), line)

		var event MoveEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		require.GreaterOrEqual(t, event.Sweep, 1)
		require.Less(t, event.Sweep-1, len(result.ModularityTrace))
		assert.Equal(t, result.ModularityTrace[event.Sweep-1], event.Modularity, "moves carry the Q their sweep started from")
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, result.Moves, lines)
}

func TestWriteMap(t *testing.T) {
	data := loadCSV(t, smallGraph)
	result, err := Run(data, quietConfig(), context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cluster2", "map.csv")
	require.NoError(t, WriteMap(path, data, result, 2))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,int2_0\nb,int2_0\nc,int2_1\nx,ext2_0\ny,ext2_1\n", string(content))
}

func TestWriteMapLengthMismatch(t *testing.T) {
	data := loadCSV(t, smallGraph)
	_, err := LabelMap(data, &Result{IntLabels: []int{0}}, 0)
	assert.Error(t, err)
}

// randomMatrix turns a generated edge list into a refreshed matrix.
func randomMatrix(iSize, jSize int, edges []int, weights []float64) *bigraph.Matrix {
	m := bigraph.NewMatrix(iSize, jSize)
	for k, e := range edges {
		w := 1.0
		if k < len(weights) {
			w = weights[k]
		}
		_ = m.Add(e%iSize, (e/iSize)%jSize, w)
	}
	m.Refresh()
	return m
}

func exactAggregates(s *State) (intSum, extSum []float64) {
	intSum = make([]float64, len(s.Agg.IntDegSum))
	extSum = make([]float64, len(s.Agg.ExtDegSum))
	for i, label := range s.IntLabels {
		intSum[label] += s.intDeg[i]
	}
	for j, label := range s.ExtLabels {
		extSum[label] += s.extDeg[j]
	}
	return intSum, extSum
}

func TestOptimizerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	edgeGen := gen.SliceOfN(12, gen.IntRange(0, 63))
	weightGen := gen.SliceOfN(12, gen.Float64Range(0.1, 5))

	properties.Property("aggregates stay consistent after every update", prop.ForAll(
		func(iSize, jSize int, edges []int, weights []float64) bool {
			state := NewState(randomMatrix(iSize, jSize, edges, weights), 1.0)
			ok := true
			state.Observer = func(side Side, node, from, to int) {
				if state.CheckAggregates(1e-9) != nil {
					ok = false
				}
				intSum, extSum := exactAggregates(state)
				for label := range intSum {
					if math.Abs(intSum[label]-state.Agg.IntDegSum[label]) > 1e-9 ||
						math.Abs(extSum[label]-state.Agg.ExtDegSum[label]) > 1e-9 {
						ok = false
					}
				}
			}
			scratch := NewScratch()
			for sweep := 0; sweep < 3; sweep++ {
				state.Sweep(scratch)
			}
			return ok
		},
		gen.IntRange(1, 8), gen.IntRange(1, 8), edgeGen, weightGen,
	))

	properties.Property("relabel preserves modularity", prop.ForAll(
		func(iSize, jSize int, edges []int, weights []float64) bool {
			state := NewState(randomMatrix(iSize, jSize, edges, weights), 1.0)
			scratch := NewScratch()
			state.Sweep(scratch)
			state.Sweep(scratch)
			state.Resync()

			before := state.Modularity()
			k := state.Relabel()
			after := state.Modularity()

			for _, label := range append(append([]int(nil), state.IntLabels...), state.ExtLabels...) {
				if label < 0 || label >= k {
					return false
				}
			}
			return before == after
		},
		gen.IntRange(1, 8), gen.IntRange(1, 8), edgeGen, weightGen,
	))

	properties.Property("modularity trace never decreases", prop.ForAll(
		func(iSize, jSize int, edges []int, weights []float64, gamma float64) bool {
			m := randomMatrix(iSize, jSize, edges, weights)
			names := func(n int, prefix string) *bigraph.NodeIndex {
				idx := bigraph.NewNodeIndex()
				for k := 0; k < n; k++ {
					idx.Add(fmt.Sprintf("%s%d", prefix, k))
				}
				return idx
			}
			data := &bigraph.Dataset{Internal: names(iSize, "i"), External: names(jSize, "e"), Matrix: m}

			config := quietConfig()
			config.Set("algorithm.resolution", gamma)
			result, err := Run(data, config, context.Background())
			if err != nil {
				return false
			}
			for k := 1; k < len(result.ModularityTrace); k++ {
				if result.ModularityTrace[k] < result.ModularityTrace[k-1] {
					return false
				}
			}
			last := result.ModularityTrace[len(result.ModularityTrace)-1]
			return math.Abs(last-result.Modularity) < 1e-9
		},
		gen.IntRange(1, 8), gen.IntRange(1, 8), edgeGen, weightGen, gen.Float64Range(0.2, 2),
	))

	properties.TestingRun(t)
}
