package lpa

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
)

// bestIntLabel picks the label for internal node i. The node's own degree
// must already be removed from the aggregates.
func (s *State) bestIntLabel(i int, scratch *Scratch) int {
	neighbors := s.Matrix.NeighborsOfRow(i)
	switch len(neighbors) {
	case 0:
		return s.IntLabels[i]
	case 1:
		return s.ExtLabels[neighbors[0]]
	}

	scratch.scores.Reset()
	for _, j := range neighbors {
		scratch.scores.Add(s.ExtLabels[j], s.Matrix.Get(i, j))
	}
	return s.pick(scratch, s.intDeg[i], s.Agg.ExtDegSum)
}

// bestExtLabel is the external-side mirror of bestIntLabel.
func (s *State) bestExtLabel(j int, scratch *Scratch) int {
	neighbors := s.Matrix.NeighborsOfColumn(j)
	switch len(neighbors) {
	case 0:
		return s.ExtLabels[j]
	case 1:
		return s.IntLabels[neighbors[0]]
	}

	scratch.scores.Reset()
	for _, i := range neighbors {
		scratch.scores.Add(s.IntLabels[i], s.Matrix.ColumnWeight(j, i))
	}
	return s.pick(scratch, s.extDeg[j], s.Agg.IntDegSum)
}

// pick returns the first label, in encounter order, with the highest
// score w(node, L) − γ·deg·opposite(L)/W.
func (s *State) pick(scratch *Scratch, deg float64, opposite []float64) int {
	best := -1
	bestScore := math.Inf(-1)
	scratch.scores.Each(func(label int, weight float64) {
		score := weight - s.Gamma*deg*opposite[label]/s.total
		if best < 0 || score > bestScore {
			best = label
			bestScore = score
		}
	})
	return best
}

// Sweep visits every internal node and then every external node once, in
// index order, and returns how many of them changed label.
func (s *State) Sweep(scratch *Scratch) int {
	moves := 0

	for i := range s.IntLabels {
		from := s.IntLabels[i]
		s.Agg.IntDegSum[from] -= s.intDeg[i]
		to := s.bestIntLabel(i, scratch)
		s.IntLabels[i] = to
		s.Agg.IntDegSum[to] += s.intDeg[i]

		if from != to {
			moves++
		}
		if s.Observer != nil {
			s.Observer(Internal, i, from, to)
		}
	}

	for j := range s.ExtLabels {
		from := s.ExtLabels[j]
		s.Agg.ExtDegSum[from] -= s.extDeg[j]
		to := s.bestExtLabel(j, scratch)
		s.ExtLabels[j] = to
		s.Agg.ExtDegSum[to] += s.extDeg[j]

		if from != to {
			moves++
		}
		if s.Observer != nil {
			s.Observer(External, j, from, to)
		}
	}

	return moves
}

// Run executes the label propagation optimizer on a loaded dataset
func Run(data *bigraph.Dataset, config *Config, ctx context.Context) (*Result, error) {
	startTime := time.Now()
	logger := config.CreateLogger()

	if data == nil || data.Matrix == nil {
		return nil, fmt.Errorf("invalid dataset: no matrix")
	}
	if !data.Matrix.Fresh() {
		return nil, fmt.Errorf("invalid dataset: %w", bigraph.ErrStaleCache)
	}
	gamma := config.Resolution()
	if gamma <= 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("invalid resolution %v: must be a positive number", gamma)
	}

	state := NewState(data.Matrix, gamma)

	logger.Info().
		Int("internal_nodes", data.Matrix.ISize()).
		Int("external_nodes", data.Matrix.JSize()).
		Float64("total_weight", state.TotalWeight()).
		Float64("resolution", gamma).
		Msg("Starting LPA+")

	var tracker *MoveTracker
	if config.EnableMoveTracking() {
		var err error
		tracker, err = NewMoveTracker(config.TrackingOutputFile())
		if err != nil {
			return nil, err
		}
		defer tracker.Close()
	}

	result := &Result{}
	q := state.Modularity()
	result.ModularityTrace = append(result.ModularityTrace, q)

	if state.TotalWeight() > 0 {
		scratch := NewScratch()
		eps := config.MinModularityGain()
		maxSweeps := config.MaxSweeps()

		for {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("optimization cancelled after %d sweeps: %w", result.Sweeps, err)
			}

			prevInt, prevExt := state.Snapshot()
			sweep := result.Sweeps + 1
			sweepQ := q
			if tracker != nil {
				state.Observer = func(side Side, node, from, to int) {
					if from == to {
						return
					}
					id := data.Internal.ID(node)
					if side == External {
						id = data.External.ID(node)
					}
					tracker.LogMove(sweep, side, id, from, to, sweepQ)
				}
			}

			moves := state.Sweep(scratch)
			result.Sweeps = sweep
			result.Moves += moves
			next := state.Modularity()

			if config.EnableProgress() {
				logger.Debug().
					Int("sweep", sweep).
					Int("moves", moves).
					Float64("modularity", next).
					Float64("gain", next-q).
					Msg("Sweep completed")
			}

			if next < q {
				state.Restore(prevInt, prevExt)
				logger.Debug().Int("sweep", sweep).Msg("Modularity decreased, restored previous labels")
				break
			}
			result.ModularityTrace = append(result.ModularityTrace, next)
			gain := next - q
			q = next
			if gain < eps {
				break
			}
			if maxSweeps > 0 && sweep >= maxSweeps {
				logger.Info().Int("max_sweeps", maxSweeps).Msg("Sweep limit reached")
				break
			}
		}
		state.Observer = nil
		state.Resync()
	}

	result.NumCommunities = state.Relabel()
	result.Modularity = state.Modularity()
	result.IntLabels = state.IntLabels
	result.ExtLabels = state.ExtLabels
	result.RuntimeMS = time.Since(startTime).Milliseconds()

	if err := tracker.Close(); err != nil {
		return nil, fmt.Errorf("failed to write move tracking file: %w", err)
	}

	logger.Info().
		Int("sweeps", result.Sweeps).
		Int("moves", result.Moves).
		Int("communities", result.NumCommunities).
		Float64("modularity", result.Modularity).
		Int64("runtime_ms", result.RuntimeMS).
		Msg("LPA+ completed")

	return result, nil
}
