package pipeline

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the per-run Prometheus registry, written as a text file once
// the run ends.
type Metrics struct {
	registry *prometheus.Registry

	IterationsTotal   prometheus.Counter
	IterationDuration prometheus.Histogram
	LevelNodes        *prometheus.GaugeVec
	LevelEdges        *prometheus.GaugeVec
	Communities       *prometheus.GaugeVec
	Modularity        *prometheus.GaugeVec
	LabelMovesTotal   prometheus.Counter
	MergesTotal       prometheus.Counter
	UnmappedEdges     prometheus.Counter
	SelfEdges         *prometheus.GaugeVec
}

// NewMetrics creates a registry with all metrics initialized
func NewMetrics(algorithm, dataset string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(
		prometheus.Labels{"algorithm": algorithm, "dataset": dataset}, reg))

	return &Metrics{
		registry: reg,

		IterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cydime_iterations_total",
			Help: "Number of completed iterations",
		}),
		IterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cydime_iteration_duration_seconds",
			Help:    "Wall time of one iteration",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		LevelNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cydime_level_nodes",
			Help: "Nodes of a level graph per side",
		}, []string{"level", "side"}),
		LevelEdges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cydime_level_edges",
			Help: "Edges written for a level graph",
		}, []string{"level"}),
		Communities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cydime_communities",
			Help: "Communities found at a level",
		}, []string{"level"}),
		Modularity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cydime_modularity",
			Help: "Final bipartite modularity at a level",
		}, []string{"level"}),
		LabelMovesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cydime_label_moves_total",
			Help: "Label changes made by the optimizer",
		}),
		MergesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cydime_cluster_merges_total",
			Help: "Cluster merges made by the overlapping builder",
		}),
		UnmappedEdges: factory.NewCounter(prometheus.CounterOpts{
			Name: "cydime_unmapped_edges_total",
			Help: "Source edges dropped because an endpoint had no label",
		}),
		SelfEdges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cydime_self_edges",
			Help: "Same-cluster pairs forced to the self weight",
		}, []string{"level"}),
	}
}

func levelLabel(level int) string { return strconv.Itoa(level) }

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile persists the registry in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
