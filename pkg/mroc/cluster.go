package mroc

import (
	"math"
	"slices"
)

// Handle addresses a cluster inside a Forest arena
type Handle int

// NoHandle marks a missing parent or child.
const NoHandle Handle = -1

// Cluster is an immutable set of member nodes plus the boundary, the nodes
// adjacent to some member but not members themselves. Both are kept sorted.
type Cluster struct {
	members  []int64
	boundary []int64
}

// NewCluster builds a cluster from arbitrary slices. Duplicates are removed
// and members are subtracted from the boundary.
func NewCluster(members, boundary []int64) Cluster {
	m := normalize(members)
	return Cluster{
		members:  m,
		boundary: difference(normalize(boundary), m),
	}
}

// Members returns the sorted member IDs. The slice must not be modified.
func (c Cluster) Members() []int64 { return c.members }

// Boundary returns the sorted boundary IDs. The slice must not be modified.
func (c Cluster) Boundary() []int64 { return c.boundary }

// Size is the number of members.
func (c Cluster) Size() int { return len(c.members) }

// Contains reports whether id is a member.
func (c Cluster) Contains(id int64) bool {
	_, ok := slices.BinarySearch(c.members, id)
	return ok
}

// SameMembers is cluster equality: boundaries are ignored.
func (c Cluster) SameMembers(o Cluster) bool {
	return slices.Equal(c.members, o.members)
}

// Jaccard returns |A∩B| / |A∪B| of the member sets, NaN when both are empty.
func Jaccard(a, b Cluster) float64 {
	inter := intersectionSize(a.members, b.members)
	union := len(a.members) + len(b.members) - inter
	if union == 0 {
		return math.NaN()
	}
	return float64(inter) / float64(union)
}

// Merge returns the cluster with members A∪B and boundary
// (boundary A ∪ boundary B) minus the new members.
func Merge(a, b Cluster) Cluster {
	members := union(a.members, b.members)
	return Cluster{
		members:  members,
		boundary: difference(union(a.boundary, b.boundary), members),
	}
}

func normalize(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func union(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func difference(a, b []int64) []int64 {
	out := make([]int64, 0, len(a))
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j < len(b) && b[j] == x {
			continue
		}
		out = append(out, x)
	}
	return out
}

func intersectionSize(a, b []int64) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}
