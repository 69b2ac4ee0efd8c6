package labelmap

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSetAddAndOrder(t *testing.T) {
	m := New()
	m.Add("n2", "int0_1")
	m.Add("n1", "ext0_0")
	m.Add("n2", "int0_1")
	m.Add("n2", "int0_4")

	assert.Equal(t, []string{"n2", "n1"}, m.Keys())
	assert.Equal(t, []string{"int0_1", "int0_4"}, m.Get("n2"))
	assert.True(t, m.Contains("n1", "ext0_0"))
	assert.False(t, m.Contains("n1", "int0_1"))
	assert.Nil(t, m.Get("n3"))
	assert.Equal(t, 2, m.Len())
}

func TestCompose(t *testing.T) {
	prev := New()
	prev.Add("10.0.0.1", "int0_3")
	prev.Add("10.0.0.2", "int0_3")
	prev.Add("asn1", "ext0_3")
	prev.Add("orphan", "int0_9")

	next := New()
	next.Add("int0_3", "int1_0")
	next.Add("ext0_3", "ext1_0")
	next.Add("ext0_3", "ext1_2")

	got := prev.Compose(next)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "asn1"}, got.Keys(), "unmapped labels drop the key")
	assert.Equal(t, []string{"int1_0"}, got.Get("10.0.0.1"))
	assert.Equal(t, []string{"ext1_0", "ext1_2"}, got.Get("asn1"))
}

// composing A->B with B->C agrees with tracing every key through both maps
func TestCompositionLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("compose equals per-key tracing", prop.ForAll(
		func(ab []int, bc []int) bool {
			first, second := New(), New()
			for i, b := range ab {
				first.Add(fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", b))
			}
			for i, c := range bc {
				second.Add(fmt.Sprintf("b%d", i), fmt.Sprintf("c%d", c))
			}

			composed := first.Compose(second)
			for _, key := range first.Keys() {
				want := make([]string, 0)
				for _, mid := range first.Get(key) {
					want = append(want, second.Get(mid)...)
				}
				if len(want) == 0 {
					if composed.Get(key) != nil {
						return false
					}
					continue
				}
				got := composed.Get(key)
				if len(got) != len(want) {
					return false
				}
				for i := range want {
					if got[i] != want[i] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func TestCSVRoundTrip(t *testing.T) {
	m := New()
	m.Add("10.0.0.1", "int0_1")
	m.Add("asn4", "ext0_1")
	m.Add("asn4", "ext0_2")

	path := filepath.Join(t.TempDir(), "cluster0", "map.csv")
	require.NoError(t, m.WriteCSV(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1,int0_1\nasn4,ext0_1,ext0_2\n", string(content))

	back, err := ReadCSV(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, m.Keys(), back.Keys())
	assert.Equal(t, m.Get("asn4"), back.Get("asn4"))
}

func TestReadCSVSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,int0_1\nlonely\nb,ext0_2\n"), 0644))

	m, err := ReadCSV(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"), zerolog.Nop())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClusterAndLabel(t *testing.T) {
	assert.Equal(t, "12", Cluster("int3_12"))
	assert.Equal(t, "12", Cluster("ext3_12"))
	assert.Equal(t, "plain", Cluster("plain"))
	assert.Equal(t, "ext2_5", Label(SideExternal, 2, 5))
}
