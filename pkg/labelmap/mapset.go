package labelmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// MapSet maps each key to an ordered set of labels. Keys and labels keep
// their first-insertion order so files and compositions are reproducible.
type MapSet struct {
	keys   []string
	values map[string][]string
	seen   map[string]map[string]struct{}
}

// New creates an empty MapSet
func New() *MapSet {
	return &MapSet{
		values: make(map[string][]string),
		seen:   make(map[string]map[string]struct{}),
	}
}

// Add appends label to the set of key, ignoring duplicates.
func (m *MapSet) Add(key, label string) {
	set, ok := m.seen[key]
	if !ok {
		set = make(map[string]struct{})
		m.seen[key] = set
		m.keys = append(m.keys, key)
	}
	if _, dup := set[label]; dup {
		return
	}
	set[label] = struct{}{}
	m.values[key] = append(m.values[key], label)
}

// Get returns the labels of key, nil when absent.
func (m *MapSet) Get(key string) []string {
	return m.values[key]
}

// Contains reports whether key maps to label.
func (m *MapSet) Contains(key, label string) bool {
	_, ok := m.seen[key][label]
	return ok
}

// Keys returns the keys in insertion order.
func (m *MapSet) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *MapSet) Len() int {
	return len(m.keys)
}

// Compose returns m∘next: every key of m maps to the union of next's labels
// for each of its own labels. Keys whose labels are unknown to next vanish.
func (m *MapSet) Compose(next *MapSet) *MapSet {
	out := New()
	for _, key := range m.keys {
		for _, mid := range m.values[key] {
			for _, label := range next.values[mid] {
				out.Add(key, label)
			}
		}
	}
	return out
}

// Copy returns an independent copy.
func (m *MapSet) Copy() *MapSet {
	out := New()
	for _, key := range m.keys {
		for _, label := range m.values[key] {
			out.Add(key, label)
		}
	}
	return out
}

// ReadCSV loads `key,label[,label...]` lines. A missing file is an error;
// lines with fewer than two fields are logged and skipped.
func ReadCSV(path string, logger zerolog.Logger) (*MapSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label map: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	m := New()
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				logger.Warn().Str("file", path).Int("line", csvErr.Line).Err(err).Msg("Skipping malformed label line")
				continue
			}
			return nil, fmt.Errorf("failed to read label map %s: %w", path, err)
		}

		key := strings.TrimSpace(fields[0])
		if len(fields) < 2 || key == "" {
			line, _ := reader.FieldPos(0)
			logger.Warn().Str("file", path).Int("line", line).Msg("Skipping label line without a label")
			continue
		}
		for _, label := range fields[1:] {
			if label = strings.TrimSpace(label); label != "" {
				m.Add(key, label)
			}
		}
	}
	return m, nil
}

// WriteCSV writes one line per key: the key followed by its labels.
func (m *MapSet) WriteCSV(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	writer := csv.NewWriter(file)
	record := make([]string, 0, 4)
	for _, key := range m.keys {
		record = append(record[:0], key)
		record = append(record, m.values[key]...)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write label line: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Cluster strips a side/iteration prefix such as "int3_" or "ext3_" from a
// label and returns the bare cluster identifier.
func Cluster(label string) string {
	if i := strings.Index(label, "_"); i >= 0 {
		return label[i+1:]
	}
	return label
}

// Label builds the prefixed label of a cluster on one side of iteration it.
func Label(side string, it int, cluster int) string {
	return fmt.Sprintf("%s%d_%d", side, it, cluster)
}

const (
	// SideInternal prefixes labels of internal nodes.
	SideInternal = "int"
	// SideExternal prefixes labels of external nodes.
	SideExternal = "ext"
)
