package lpa

import (
	"fmt"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/bigraph"
	"github.com/gilchrisn/bigraph-clustering-service/pkg/labelmap"
)

// LabelMap converts the result of iteration `iteration` into a node → label
// map. Internal nodes get `int{iteration}_{label}`, external nodes
// `ext{iteration}_{label}`, so labels of the two sides never collide.
func LabelMap(data *bigraph.Dataset, result *Result, iteration int) (*labelmap.MapSet, error) {
	if len(result.IntLabels) != data.Internal.Len() || len(result.ExtLabels) != data.External.Len() {
		return nil, fmt.Errorf("result has %d/%d labels for %d/%d nodes",
			len(result.IntLabels), len(result.ExtLabels), data.Internal.Len(), data.External.Len())
	}

	m := labelmap.New()
	for i, label := range result.IntLabels {
		m.Add(data.Internal.ID(i), labelmap.Label(labelmap.SideInternal, iteration, label))
	}
	for j, label := range result.ExtLabels {
		m.Add(data.External.ID(j), labelmap.Label(labelmap.SideExternal, iteration, label))
	}
	return m, nil
}

// WriteMap writes the label map of one iteration to path.
func WriteMap(path string, data *bigraph.Dataset, result *Result, iteration int) error {
	m, err := LabelMap(data, result, iteration)
	if err != nil {
		return err
	}
	if err := m.WriteCSV(path); err != nil {
		return fmt.Errorf("failed to write label map: %w", err)
	}
	return nil
}
