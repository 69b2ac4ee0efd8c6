package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LevelSummary records one iteration
type LevelSummary struct {
	Iteration     int     `yaml:"iteration"`
	GraphFile     string  `yaml:"graph_file"`
	MapFile       string  `yaml:"map_file"`
	MapSourceFile string  `yaml:"map_source_file"`
	NextGraphFile string  `yaml:"next_graph_file"`
	InternalNodes int     `yaml:"internal_nodes"`
	ExternalNodes int     `yaml:"external_nodes"`
	Edges         int     `yaml:"edges"`
	Communities   int     `yaml:"communities"`
	Modularity    float64 `yaml:"modularity,omitempty"`
	Sweeps        int     `yaml:"sweeps,omitempty"`
	Moves         int     `yaml:"moves,omitempty"`
	Merges        int     `yaml:"merges,omitempty"`
	NextEdges     int     `yaml:"next_edges"`
	SelfEdges     int     `yaml:"self_edges"`
	UnmappedEdges int     `yaml:"unmapped_edges,omitempty"`
	RuntimeMS     int64   `yaml:"runtime_ms"`
}

// Manifest describes a finished run
type Manifest struct {
	RunID       string         `yaml:"run_id"`
	StartedAt   time.Time      `yaml:"started_at"`
	FinishedAt  time.Time      `yaml:"finished_at"`
	Root        string         `yaml:"root"`
	SourceFile  string         `yaml:"source_file"`
	SourceEdges int            `yaml:"source_edges"`
	Level0Edges int            `yaml:"level0_edges"`
	Options     Options        `yaml:"options"`
	Levels      []LevelSummary `yaml:"levels"`
}

// Write stores the manifest as YAML.
func (m *Manifest) Write(path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
