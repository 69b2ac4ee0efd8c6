package lpa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MoveEvent is one label change of a single node
type MoveEvent struct {
	MoveNumber int     `json:"move"`
	Sweep      int     `json:"sweep"`
	Side       Side    `json:"side"`
	Node       string  `json:"node"`
	FromLabel  int     `json:"from_label"`
	ToLabel    int     `json:"to_label"`
	Modularity float64 `json:"sweep_modularity"` // Q before the sweep started
}

// MoveTracker appends label changes to a JSON-lines file. A nil tracker
// ignores every call.
type MoveTracker struct {
	file    *os.File
	encoder *json.Encoder
	moves   int
	err     error
}

// NewMoveTracker creates the output file and its directory
func NewMoveTracker(filename string) (*MoveTracker, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create move tracking directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create move tracking file: %w", err)
	}

	return &MoveTracker{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// LogMove records one label change; the first write error is kept for Close.
func (mt *MoveTracker) LogMove(sweep int, side Side, node string, from, to int, modularity float64) {
	if mt == nil || mt.err != nil {
		return
	}

	mt.moves++
	mt.err = mt.encoder.Encode(MoveEvent{
		MoveNumber: mt.moves,
		Sweep:      sweep,
		Side:       side,
		Node:       node,
		FromLabel:  from,
		ToLabel:    to,
		Modularity: modularity,
	})
}

// Moves returns the number of recorded moves.
func (mt *MoveTracker) Moves() int {
	if mt == nil {
		return 0
	}
	return mt.moves
}

// Close flushes and closes the file.
func (mt *MoveTracker) Close() error {
	if mt == nil || mt.file == nil {
		return nil
	}
	cerr := mt.file.Close()
	mt.file = nil
	if mt.err != nil {
		return mt.err
	}
	return cerr
}
