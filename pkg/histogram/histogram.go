package histogram

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrSealed is raised when a sealed histogram is mutated, or reported when a
// similarity function receives a histogram that was never sealed.
var ErrSealed = errors.New("histogram: sealed")

// ErrNotSealed is returned by Cosine when a norm was never computed.
var ErrNotSealed = errors.New("histogram: norm not computed, call Seal first")

// Histogram accumulates weights per key. Keys are remembered in first-insertion
// order so every traversal is reproducible.
type Histogram[K comparable] struct {
	counts map[K]float64
	order  []K

	sealed  bool
	twoNorm float64
}

// New creates an empty histogram
func New[K comparable]() *Histogram[K] {
	return &Histogram[K]{counts: make(map[K]float64)}
}

func (h *Histogram[K]) mutable() {
	if h.sealed {
		panic(fmt.Errorf("%w: mutation after Seal", ErrSealed))
	}
}

// Get returns the accumulated weight of k, 0 when absent.
func (h *Histogram[K]) Get(k K) float64 {
	return h.counts[k]
}

// Contains reports whether k has been added since the last Reset.
func (h *Histogram[K]) Contains(k K) bool {
	_, ok := h.counts[k]
	return ok
}

// Increment adds one to k.
func (h *Histogram[K]) Increment(k K) {
	h.Add(k, 1.0)
}

// Add accumulates w into k.
func (h *Histogram[K]) Add(k K, w float64) {
	h.mutable()
	if _, ok := h.counts[k]; !ok {
		h.order = append(h.order, k)
	}
	h.counts[k] += w
}

// Remove drops k entirely.
func (h *Histogram[K]) Remove(k K) {
	h.mutable()
	if _, ok := h.counts[k]; !ok {
		return
	}
	delete(h.counts, k)
	for i, key := range h.order {
		if key == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is owned by the caller.
func (h *Histogram[K]) Keys() []K {
	keys := make([]K, len(h.order))
	copy(keys, h.order)
	return keys
}

// Each visits keys in insertion order without allocating.
func (h *Histogram[K]) Each(fn func(k K, w float64)) {
	for _, k := range h.order {
		fn(k, h.counts[k])
	}
}

// Len returns the number of distinct keys.
func (h *Histogram[K]) Len() int {
	return len(h.order)
}

// Sum returns the total accumulated weight, summed in insertion order.
func (h *Histogram[K]) Sum() float64 {
	return floats.Sum(h.values())
}

func (h *Histogram[K]) values() []float64 {
	vals := make([]float64, len(h.order))
	for i, k := range h.order {
		vals[i] = h.counts[k]
	}
	return vals
}

// Normalize divides every weight by the total. Non-positive totals are left alone.
func (h *Histogram[K]) Normalize() {
	sum := h.Sum()
	if sum <= 0.0 {
		return
	}
	h.Divide(sum)
}

// Divide divides every weight by d.
func (h *Histogram[K]) Divide(d float64) {
	h.mutable()
	for _, k := range h.order {
		h.counts[k] /= d
	}
}

// Merge adds every entry of o into h.
func (h *Histogram[K]) Merge(o *Histogram[K]) {
	for _, k := range o.order {
		h.Add(k, o.counts[k])
	}
}

// MaxKey returns the first key holding the largest positive weight.
func (h *Histogram[K]) MaxKey() (K, bool) {
	var best K
	found := false
	max := 0.0
	for _, k := range h.order {
		if v := h.counts[k]; v > max {
			max = v
			best = k
			found = true
		}
	}
	return best, found
}

// SortedKeysByValue returns keys by descending weight, ties in insertion order.
func (h *Histogram[K]) SortedKeysByValue() []K {
	keys := h.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return h.counts[keys[i]] > h.counts[keys[j]]
	})
	return keys
}

// Reset empties the histogram and unlocks it. The backing storage is reused.
func (h *Histogram[K]) Reset() {
	clear(h.counts)
	h.order = h.order[:0]
	h.sealed = false
	h.twoNorm = 0.0
}

// Seal computes the two-norm and locks the histogram against further
// mutation. The cached norm is valid for as long as the histogram stays sealed.
func (h *Histogram[K]) Seal() {
	h.twoNorm = floats.Norm(h.values(), 2)
	h.sealed = true
}

// Sealed reports whether Seal has been called since the last Reset.
func (h *Histogram[K]) Sealed() bool {
	return h.sealed
}

// TwoNorm returns the cached norm.
func (h *Histogram[K]) TwoNorm() (float64, error) {
	if !h.sealed {
		return 0, ErrNotSealed
	}
	return h.twoNorm, nil
}

func (h *Histogram[K]) String() string {
	var b strings.Builder
	b.WriteString("{ ")
	for _, k := range h.order {
		fmt.Fprintf(&b, "%v=%.2f ", k, h.counts[k])
	}
	b.WriteString("}")
	return b.String()
}

// Cosine returns the cosine similarity of two sealed histograms. A zero norm
// on either side yields 0.
func Cosine[K comparable](a, b *Histogram[K]) (float64, error) {
	if !a.sealed || !b.sealed {
		return 0, ErrNotSealed
	}
	if a.twoNorm == 0 || b.twoNorm == 0 {
		return 0, nil
	}

	short, long := a, b
	if a.Len() > b.Len() {
		short, long = b, a
	}

	dot := 0.0
	for _, k := range short.order {
		dot += short.counts[k] * long.counts[k]
	}
	return dot / a.twoNorm / b.twoNorm, nil
}

// Jaccard compares the key sets of two histograms. Two empty histograms give NaN.
func Jaccard[K comparable](a, b *Histogram[K]) float64 {
	short, long := a, b
	if a.Len() > b.Len() {
		short, long = b, a
	}

	shared := 0
	for _, k := range short.order {
		if long.Contains(k) {
			shared++
		}
	}

	union := a.Len() + b.Len() - shared
	if union == 0 {
		return math.NaN()
	}
	return float64(shared) / float64(union)
}
