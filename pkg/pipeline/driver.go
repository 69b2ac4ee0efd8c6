package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/export"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/labelmap"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/weighted"
)

// Driver runs the multi-resolution loop: cluster a level graph, compose its
// labels with the history, aggregate the source edges by label pair and
// repeat on the coarser graph.
type Driver struct {
	opts      *Options
	layout    *Layout
	clusterer Clusterer
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewDriver validates the configuration and resolves the algorithm.
func NewDriver(config *Config) (*Driver, error) {
	opts, err := config.Options()
	if err != nil {
		return nil, err
	}

	logger := config.CreateLogger().With().
		Str("algorithm", opts.Algorithm).
		Str("dataset", opts.Dataset).
		Logger()

	clusterer, err := NewClusterer(opts, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{
		opts:      opts,
		layout:    NewLayout(opts),
		clusterer: clusterer,
		metrics:   NewMetrics(opts.Algorithm, opts.Dataset),
		logger:    logger,
	}, nil
}

// Layout returns the file layout of the run.
func (d *Driver) Layout() *Layout { return d.layout }

// Metrics returns the run metrics.
func (d *Driver) Metrics() *Metrics { return d.metrics }

// Run executes every iteration. Any missing or malformed level file aborts
// the run; files written by completed iterations are left in place.
func (d *Driver) Run(ctx context.Context) (*Manifest, error) {
	manifest := &Manifest{
		RunID:      uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		Root:       d.layout.Root(),
		SourceFile: d.layout.Graph(-1),
		Options:    *d.opts,
	}
	logger := d.logger.With().Str("run_id", manifest.RunID).Logger()

	logger.Info().
		Str("source", manifest.SourceFile).
		Str("root", manifest.Root).
		Int("iterations", d.opts.Iterations).
		Msg("Reading source graph")

	source, err := weighted.ReadCSV(manifest.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read source graph: %w", err)
	}
	manifest.SourceEdges = source.Len()

	level0, err := d.writeLevelGraph(source.Clone(), d.layout.Graph(0), nil)
	if err != nil {
		return nil, err
	}
	manifest.Level0Edges = level0
	d.metrics.LevelEdges.WithLabelValues(levelLabel(0)).Set(float64(level0))

	var history *labelmap.MapSet
	for i := 0; i < d.opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before iteration %d: %w", i, err)
		}

		summary, composed, err := d.iterate(ctx, i, source, history, logger)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		history = composed
		manifest.Levels = append(manifest.Levels, *summary)
	}

	manifest.FinishedAt = time.Now().UTC()
	if err := manifest.Write(d.layout.Manifest()); err != nil {
		return nil, err
	}
	if err := d.metrics.WriteFile(d.layout.Metrics()); err != nil {
		return nil, err
	}

	logger.Info().
		Int("levels", len(manifest.Levels)).
		Dur("elapsed", manifest.FinishedAt.Sub(manifest.StartedAt)).
		Msg("Run completed")
	return manifest, nil
}

func (d *Driver) iterate(ctx context.Context, i int, source *weighted.Graph, history *labelmap.MapSet, logger zerolog.Logger) (*LevelSummary, *labelmap.MapSet, error) {
	start := time.Now()
	graphFile := d.layout.Graph(i)
	summary := &LevelSummary{
		Iteration:     i,
		GraphFile:     graphFile,
		MapFile:       d.layout.Map(i),
		MapSourceFile: d.layout.MapSource(i),
		NextGraphFile: d.layout.Graph(i + 1),
	}

	data, err := bigraph.LoadDataset(graphFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load level graph: %w", err)
	}
	summary.InternalNodes = data.Internal.Len()
	summary.ExternalNodes = data.External.Len()
	summary.Edges = data.Matrix.NumEdges()
	d.metrics.LevelNodes.WithLabelValues(levelLabel(i), labelmap.SideInternal).Set(float64(summary.InternalNodes))
	d.metrics.LevelNodes.WithLabelValues(levelLabel(i), labelmap.SideExternal).Set(float64(summary.ExternalNodes))

	logger.Info().
		Int("iteration", i).
		Int("internal_nodes", summary.InternalNodes).
		Int("external_nodes", summary.ExternalNodes).
		Int("edges", summary.Edges).
		Msg("Running iteration")

	outcome, err := d.clusterer.Cluster(ctx, Step{Iteration: i, Data: data, Layout: d.layout})
	if err != nil {
		return nil, nil, err
	}
	summary.Communities = outcome.Communities
	summary.Modularity = outcome.Modularity
	summary.Sweeps = outcome.Sweeps
	summary.Moves = outcome.Moves
	summary.Merges = outcome.Merges

	if err := outcome.Labels.WriteCSV(summary.MapFile); err != nil {
		return nil, nil, fmt.Errorf("failed to write label map: %w", err)
	}

	var composed *labelmap.MapSet
	if history == nil {
		composed = outcome.Labels.Copy()
	} else {
		composed = history.Compose(outcome.Labels)
	}
	if err := composed.WriteCSV(summary.MapSourceFile); err != nil {
		return nil, nil, fmt.Errorf("failed to write composed map: %w", err)
	}

	next, self, unmapped := NextLevel(source, composed)
	summary.SelfEdges = len(self)
	summary.UnmappedEdges = unmapped

	written, err := d.writeLevelGraph(next, summary.NextGraphFile, self)
	if err != nil {
		return nil, nil, err
	}
	summary.NextEdges = written

	if d.opts.ExportDOT {
		if err := d.exportDOT(i+1, summary.NextGraphFile); err != nil {
			return nil, nil, err
		}
	}

	summary.RuntimeMS = time.Since(start).Milliseconds()

	d.metrics.IterationsTotal.Inc()
	d.metrics.IterationDuration.Observe(time.Since(start).Seconds())
	d.metrics.Communities.WithLabelValues(levelLabel(i)).Set(float64(summary.Communities))
	d.metrics.Modularity.WithLabelValues(levelLabel(i)).Set(summary.Modularity)
	d.metrics.LabelMovesTotal.Add(float64(summary.Moves))
	d.metrics.MergesTotal.Add(float64(summary.Merges))
	d.metrics.UnmappedEdges.Add(float64(unmapped))
	d.metrics.SelfEdges.WithLabelValues(levelLabel(i + 1)).Set(float64(summary.SelfEdges))
	d.metrics.LevelEdges.WithLabelValues(levelLabel(i + 1)).Set(float64(written))

	logger.Info().
		Int("iteration", i).
		Int("communities", summary.Communities).
		Float64("modularity", summary.Modularity).
		Int("next_edges", written).
		Int("self_edges", summary.SelfEdges).
		Int64("runtime_ms", summary.RuntimeMS).
		Msg("Iteration completed")

	return summary, composed, nil
}

// SelfPair is a same-cluster label pair of the next level graph
type SelfPair struct {
	Src, Dst string
}

// NextLevel aggregates every source edge into the label pairs of its
// endpoints. Pairs whose labels name the same cluster are not accumulated;
// they are returned so the caller can force their weight after rescaling.
// Edges with an unlabelled endpoint are counted and dropped.
func NextLevel(source *weighted.Graph, composed *labelmap.MapSet) (*weighted.Graph, []SelfPair, int) {
	next := weighted.New()
	var self []SelfPair
	seen := make(map[SelfPair]bool)
	unmapped := 0

	source.Each(func(src, dst string, w float64) {
		srcLabels, dstLabels := composed.Get(src), composed.Get(dst)
		if len(srcLabels) == 0 || len(dstLabels) == 0 {
			unmapped++
			return
		}
		for _, u := range srcLabels {
			for _, v := range dstLabels {
				if labelmap.Cluster(u) == labelmap.Cluster(v) {
					pair := SelfPair{Src: u, Dst: v}
					if !seen[pair] {
						seen[pair] = true
						self = append(self, pair)
					}
					continue
				}
				next.Add(u, v, w)
			}
		}
	})
	return next, self, unmapped
}

// writeLevelGraph transforms, rescales, adds the self pairs and writes g.
func (d *Driver) writeLevelGraph(g *weighted.Graph, path string, self []SelfPair) (int, error) {
	if d.opts.LogTransform {
		g.LogTransform()
	}
	if err := g.Rescale(weighted.RescaleMode(d.opts.Rescale)); err != nil {
		return 0, err
	}
	for _, pair := range self {
		g.Set(pair.Src, pair.Dst, d.opts.SelfWeight)
	}

	written, err := g.WriteCSV(path, d.opts.Threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to write level graph: %w", err)
	}
	return written, nil
}

func (d *Driver) exportDOT(level int, graphFile string) error {
	data, err := bigraph.LoadDataset(graphFile)
	if err != nil {
		return fmt.Errorf("failed to reload level graph for export: %w", err)
	}

	// nodes of the next level are labels; tag each with its cluster
	labels := labelmap.New()
	for _, id := range append(data.Internal.IDs(), data.External.IDs()...) {
		labels.Add(id, labelmap.Cluster(id))
	}

	snap, err := export.NewSnapshot(level, data, labels)
	if err != nil {
		return err
	}
	if d.opts.ExportLayout {
		opts := export.LayoutOptions{Damping: d.opts.Damping, Tolerance: d.opts.Tolerance, MaxDistance: d.opts.MaxDistance}
		if err := export.Layout(snap, opts); err != nil {
			return fmt.Errorf("failed to lay out level %d: %w", level, err)
		}
	}
	return export.WriteDOT(d.layout.DOT(level), snap)
}
