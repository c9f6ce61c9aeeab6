package supplier

import (
	mrand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// pcgRng adapts math/rand/v2's PCG source to the Rng interface.
type pcgRng struct{ r *mrand.Rand }

func newPCGRng(seed uint64) *pcgRng {
	return &pcgRng{r: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b9))}
}

func (p *pcgRng) Int63n(n int64) int64 {
	return p.r.Int64N(n)
}

func TestConstantAlwaysReturnsSameValue(t *testing.T) {
	c := NewConstant("fixed")
	require.Equal(t, "fixed", c.Get(Context{}))
	require.Equal(t, "fixed", c.Get(Context{}))
}

func TestCycleWrapsAtEnd(t *testing.T) {
	c := NewCycle([]int{1, 2, 3})
	ctx := Context{}
	var got []int
	for i := 0; i < 7; i++ {
		got = append(got, c.Get(ctx))
	}
	require.Equal(t, []int{1, 2, 3, 1, 2, 3, 1}, got)
}

func TestNewCyclePanicsOnEmptyValues(t *testing.T) {
	require.Panics(t, func() { NewCycle[int](nil) })
}

func TestRangedCycleWrapsAtMax(t *testing.T) {
	r := NewRanged(5, 7, RangedCycle, nil)
	ctx := Context{}
	require.Equal(t, int64(5), r.Get(ctx))
	require.Equal(t, int64(6), r.Get(ctx))
	require.Equal(t, int64(7), r.Get(ctx))
	require.Equal(t, int64(5), r.Get(ctx))
}

func TestRangedRandomStaysInBounds(t *testing.T) {
	r := NewRanged(10, 20, RangedRandom, newPCGRng(1))
	ctx := Context{}
	for i := 0; i < 1000; i++ {
		v := r.Get(ctx)
		require.GreaterOrEqual(t, v, int64(10))
		require.LessOrEqual(t, v, int64(20))
	}
}

func TestNewRangedPanicsWhenMinGreaterThanMax(t *testing.T) {
	require.Panics(t, func() { NewRanged(5, 1, RangedCycle, nil) })
}

func TestNewWeightedRandomPanicsOnNonPositiveTotal(t *testing.T) {
	require.Panics(t, func() {
		NewWeightedRandom([]WeightedChoice[string]{{Value: "a", Weight: 0}}, newPCGRng(1))
	})
}

// TestWeightedRandomEmpiricalFrequencyMatchesConfiguredWeights covers the
// {WRITE:1, READ:3, DELETE:1} over 50,000 draws scenario: READ should land
// in [28500, 31500].
func TestWeightedRandomEmpiricalFrequencyMatchesConfiguredWeights(t *testing.T) {
	w := NewWeightedRandom([]WeightedChoice[string]{
		{Value: "WRITE", Weight: 1},
		{Value: "READ", Weight: 3},
		{Value: "DELETE", Weight: 1},
	}, newPCGRng(42))

	ctx := Context{}
	counts := map[string]int{}
	const n = 50000
	for i := 0; i < n; i++ {
		counts[w.Get(ctx)]++
	}

	require.GreaterOrEqual(t, counts["READ"], 28500)
	require.LessOrEqual(t, counts["READ"], 31500)
}

func TestWeightedRandomSkipsNonPositiveWeightChoices(t *testing.T) {
	w := NewWeightedRandom([]WeightedChoice[string]{
		{Value: "never", Weight: 0},
		{Value: "always", Weight: 1},
	}, newPCGRng(7))

	ctx := Context{}
	for i := 0; i < 100; i++ {
		require.Equal(t, "always", w.Get(ctx))
	}
}
