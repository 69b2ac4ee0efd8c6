package bigraph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// DefaultWeight is used for edge lines that carry no weight column.
const DefaultWeight = 1.0

// ParseError reports a malformed line of a graph edge list. It is fatal: a
// corrupt core graph is never partially loaded.
type ParseError struct {
	File string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Dataset is a bipartite graph together with the identifiers of both sides.
type Dataset struct {
	Internal *NodeIndex
	External *NodeIndex
	Matrix   *Matrix
}

// EdgeRecord is one parsed line of an edge list
type EdgeRecord struct {
	Src    string
	Dst    string
	Weight float64
}

// ReadEdgeList parses an edge list CSV. The first line is a header and is
// ignored. Each following line is `src,dst[,weight]`.
func ReadEdgeList(path string) ([]EdgeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge list: %w", err)
	}
	defer file.Close()

	return ParseEdgeList(file, path)
}

// ParseEdgeList parses edge list records from r; name is used in errors.
func ParseEdgeList(r io.Reader, name string) ([]EdgeRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	records := make([]EdgeRecord, 0)
	header := true
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			line := 0
			if errors.As(err, &csvErr) {
				line = csvErr.Line
			}
			return nil, &ParseError{File: name, Line: line, Msg: "invalid csv", Err: err}
		}
		line, _ := reader.FieldPos(0)
		if header {
			header = false
			continue
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		rec, perr := parseEdgeFields(fields)
		if perr != nil {
			perr.File = name
			perr.Line = line
			return nil, perr
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseEdgeFields(fields []string) (EdgeRecord, *ParseError) {
	if len(fields) != 2 && len(fields) != 3 {
		return EdgeRecord{}, &ParseError{Msg: fmt.Sprintf("expected 2 or 3 columns, got %d", len(fields))}
	}

	rec := EdgeRecord{
		Src:    strings.TrimSpace(fields[0]),
		Dst:    strings.TrimSpace(fields[1]),
		Weight: DefaultWeight,
	}
	if rec.Src == "" || rec.Dst == "" {
		return EdgeRecord{}, &ParseError{Msg: "empty node identifier"}
	}

	if len(fields) == 3 {
		w, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return EdgeRecord{}, &ParseError{Msg: "unparsable weight", Err: err}
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return EdgeRecord{}, &ParseError{Msg: "weight must be finite and non-negative", Err: ErrInvalidWeight}
		}
		rec.Weight = w
	}
	return rec, nil
}

// LoadDataset reads a graph CSV into a refreshed Dataset. Node indices follow
// first appearance in the file; repeated pairs accumulate their weights.
func LoadDataset(path string) (*Dataset, error) {
	records, err := ReadEdgeList(path)
	if err != nil {
		return nil, err
	}
	return NewDataset(records)
}

// NewDataset builds a refreshed Dataset from parsed records.
func NewDataset(records []EdgeRecord) (*Dataset, error) {
	internal := NewNodeIndex()
	external := NewNodeIndex()
	for _, rec := range records {
		internal.Add(rec.Src)
		external.Add(rec.Dst)
	}

	matrix := NewMatrix(internal.Len(), external.Len())
	for _, rec := range records {
		if err := matrix.Add(internal.Index(rec.Src), external.Index(rec.Dst), rec.Weight); err != nil {
			return nil, fmt.Errorf("edge %s,%s: %w", rec.Src, rec.Dst, err)
		}
	}
	matrix.Refresh()

	return &Dataset{
		Internal: internal,
		External: external,
		Matrix:   matrix,
	}, nil
}
