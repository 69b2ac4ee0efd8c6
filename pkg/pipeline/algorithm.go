package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/labelmap"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/lpa"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/mroc"
)

// ErrUnknownAlgorithm is returned for an algorithm name with no registered
// clusterer.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Step is the input of one iteration
type Step struct {
	Iteration int
	Data      *bigraph.Dataset
	Layout    *Layout
}

// Outcome is what a clusterer reports for one iteration
type Outcome struct {
	Labels      *labelmap.MapSet
	Communities int
	Modularity  float64
	Sweeps      int
	Moves       int
	Merges      int
}

// Clusterer assigns prefixed labels to the nodes of one level graph
type Clusterer interface {
	Name() string
	Cluster(ctx context.Context, step Step) (*Outcome, error)
}

type factory func(opts *Options, logger zerolog.Logger) (Clusterer, error)

var algorithms = map[string]factory{
	"modularity": newModularity,
	"mroc":       newMROC,
}

// Algorithms lists the registered names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClusterer looks up an algorithm by name.
func NewClusterer(opts *Options, logger zerolog.Logger) (Clusterer, error) {
	create, ok := algorithms[opts.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrUnknownAlgorithm, opts.Algorithm, Algorithms())
	}
	return create(opts, logger)
}

// modularity runs LPA+ with PARAM as the resolution.
type modularity struct {
	opts *Options
}

func newModularity(opts *Options, _ zerolog.Logger) (Clusterer, error) {
	if opts.Param <= 0 {
		return nil, fmt.Errorf("modularity resolution must be positive, got %v", opts.Param)
	}
	return &modularity{opts: opts}, nil
}

func (m *modularity) Name() string { return "modularity" }

func (m *modularity) config(step Step) *lpa.Config {
	config := lpa.NewConfig()
	config.Set("algorithm.resolution", m.opts.Param)
	config.Set("algorithm.min_modularity_gain", m.opts.MinModularityGain)
	config.Set("algorithm.max_sweeps", m.opts.MaxSweeps)
	config.Set("logging.level", m.opts.LogLevel)
	config.Set("logging.enable_progress", m.opts.EnableProgress)
	config.Set("analysis.track_moves", m.opts.TrackMoves)
	config.Set("analysis.output_file", step.Layout.Moves(step.Iteration))
	return config
}

func (m *modularity) Cluster(ctx context.Context, step Step) (*Outcome, error) {
	result, err := lpa.Run(step.Data, m.config(step), ctx)
	if err != nil {
		return nil, fmt.Errorf("LPA+ failed: %w", err)
	}

	labels, err := lpa.LabelMap(step.Data, result, step.Iteration)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Labels:      labels,
		Communities: result.NumCommunities,
		Modularity:  result.Modularity,
		Sweeps:      result.Sweeps,
		Moves:       result.Moves,
	}, nil
}

// overlapping runs MROC on the flattened bigraph. PARAM is the minimum
// Jaccard similarity a merge needs.
type overlapping struct {
	opts   mroc.Options
	logger zerolog.Logger
}

func newMROC(opts *Options, logger zerolog.Logger) (Clusterer, error) {
	mopts := mroc.Options{MinSimilarity: opts.Param}
	if err := validate.Struct(mopts); err != nil {
		return nil, formatValidationError(err)
	}
	return &overlapping{opts: mopts, logger: logger.With().Str("algorithm", "mroc").Logger()}, nil
}

func (o *overlapping) Name() string { return "mroc" }

func (o *overlapping) Cluster(ctx context.Context, step Step) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := step.Data
	forest, stats, err := mroc.Build(mroc.FromBigraph(data.Matrix), o.opts, o.logger)
	if err != nil {
		return nil, fmt.Errorf("MROC failed: %w", err)
	}
	if err := forest.Validate(); err != nil {
		return nil, err
	}

	offset := int64(data.Internal.Len())
	name := func(id int64) string {
		if id < offset {
			return data.Internal.ID(int(id))
		}
		return data.External.ID(int(id - offset))
	}
	if err := mroc.WriteForest(step.Layout.Forest(step.Iteration), forest, name); err != nil {
		return nil, err
	}

	roots := mroc.RootLabels(forest)
	labels := labelmap.New()
	for i := 0; i < data.Internal.Len(); i++ {
		for _, root := range roots[int64(i)] {
			labels.Add(data.Internal.ID(i), labelmap.Label(labelmap.SideInternal, step.Iteration, root))
		}
	}
	for j := 0; j < data.External.Len(); j++ {
		for _, root := range roots[offset+int64(j)] {
			labels.Add(data.External.ID(j), labelmap.Label(labelmap.SideExternal, step.Iteration, root))
		}
	}

	return &Outcome{
		Labels:      labels,
		Communities: stats.Roots,
		Merges:      stats.Merges,
	}, nil
}
