package mroc

import (
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/graph"
)

// Options tunes the merge loop
type Options struct {
	// MinSimilarity stops a cluster from merging when its best candidate
	// scores below it. 0 accepts every candidate.
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity" validate:"gte=0,lte=1"`
}

// Stats summarizes one Build
type Stats struct {
	Leaves     int `json:"leaves"`
	Merges     int `json:"merges"`
	Roots      int `json:"roots"`
	Duplicates int `json:"duplicate_egos"`
}

func neighborIDs(g graph.Undirected, id int64) []int64 {
	nodes := g.From(id)
	out := make([]int64, 0, nodes.Len())
	for nodes.Next() {
		out = append(out, nodes.Node().ID())
	}
	slices.Sort(out)
	return out
}

// EgoCluster returns {v} ∪ N(v) with the boundary (∪ N(members)) − members.
func EgoCluster(g graph.Undirected, v int64) Cluster {
	members := append(neighborIDs(g, v), v)
	var boundary []int64
	for _, m := range members {
		boundary = append(boundary, neighborIDs(g, m)...)
	}
	return NewCluster(members, boundary)
}

// Build runs the greedy overlapping merge over g. Ego clusters are created
// in ascending node ID order and an ego whose members equal an earlier one is
// dropped. Each popped cluster merges with the live candidate of highest
// Jaccard similarity; ties go to the lowest handle.
func Build(g graph.Undirected, opts Options, logger zerolog.Logger) (*Forest, Stats, error) {
	var stats Stats
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 || math.IsNaN(opts.MinSimilarity) {
		return nil, stats, fmt.Errorf("min similarity %v outside [0,1]", opts.MinSimilarity)
	}

	var ids []int64
	nodes := g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.Sort(ids)

	forest := NewForest()
	index := NewMembershipIndex()
	live := make(map[Handle]bool)
	var queue []Handle

	for _, v := range ids {
		ego := EgoCluster(g, v)
		if dup := duplicateOf(forest, index, ego); dup != NoHandle {
			stats.Duplicates++
			continue
		}
		h := forest.AddLeaf(ego)
		index.Add(h, ego)
		live[h] = true
		queue = append(queue, h)
	}
	stats.Leaves = forest.Len()

	logger.Debug().Int("nodes", len(ids)).Int("leaves", stats.Leaves).Msg("Ego clusters built")

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if !live[c] {
			continue
		}

		cluster := forest.Cluster(c)
		best := NoHandle
		bestScore := -1.0
		for _, cand := range index.Candidates(c, cluster) {
			score := Jaccard(cluster, forest.Cluster(cand))
			if math.IsNaN(score) {
				continue
			}
			if score > bestScore {
				best = cand
				bestScore = score
			}
		}
		if best == NoHandle || bestScore < opts.MinSimilarity {
			continue
		}

		merged, err := forest.AddMerge(c, best)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to merge clusters: %w", err)
		}
		index.Remove(c, cluster)
		index.Remove(best, forest.Cluster(best))
		index.Add(merged, forest.Cluster(merged))
		delete(live, c)
		delete(live, best)
		live[merged] = true
		queue = append(queue, merged)
		stats.Merges++

		logger.Trace().
			Int("cluster", int(c)).
			Int("partner", int(best)).
			Int("merged", int(merged)).
			Float64("jaccard", bestScore).
			Int("size", forest.Cluster(merged).Size()).
			Msg("Merged clusters")
	}

	stats.Roots = len(forest.Roots())
	logger.Info().
		Int("leaves", stats.Leaves).
		Int("merges", stats.Merges).
		Int("roots", stats.Roots).
		Msg("Merge forest built")

	return forest, stats, nil
}

// duplicateOf finds an existing leaf with the same members as c.
func duplicateOf(forest *Forest, index *MembershipIndex, c Cluster) Handle {
	if c.Size() == 0 {
		return NoHandle
	}
	for _, h := range index.Clusters(c.Members()[0]) {
		if forest.Cluster(h).SameMembers(c) {
			return h
		}
	}
	return NoHandle
}
