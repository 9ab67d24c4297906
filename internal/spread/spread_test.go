package spread

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spreadrun/spreadrun/internal/hedge"
)

func TestComputeAppliesRatioAndIntercept(t *testing.T) {
	y := []float64{10, 12, 14}
	x := []float64{2, 3, 4}
	ratio := hedge.Ratio{Beta: []float64{2, 2, math.NaN()}, Intercept: 1}

	got := Compute(y, x, ratio)
	assert.InDelta(t, 5, got[0], 1e-12)
	assert.InDelta(t, 5, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]), "missing ratio makes the spread missing")
}

func TestZScoreWarmupAndFiniteness(t *testing.T) {
	n := 100
	s := make([]float64, n)
	for i := range s {
		s[i] = math.Sin(float64(i) / 5)
	}
	z := ZScore(s, 20)
	require.Len(t, z, n)
	for i := 0; i < 19; i++ {
		assert.True(t, math.IsNaN(z[i]), "warmup position %d", i)
	}
	for i := 19; i < n; i++ {
		assert.False(t, math.IsNaN(z[i]), "position %d", i)
		assert.False(t, math.IsInf(z[i], 0), "position %d", i)
	}
}

func TestZScoreZeroDeviationWindow(t *testing.T) {
	s := []float64{3, 3, 3, 3, 3, 3, 3}
	z := ZScore(s, 4)
	for i, v := range z {
		assert.True(t, math.IsNaN(v), "constant window at %d must be missing, got %g", i, v)
	}
}

func TestZScoreKnownValue(t *testing.T) {
	// Window [1, 2, 3]: mean 2, population std sqrt(2/3).
	s := []float64{1, 2, 3}
	z := ZScore(s, 3)
	assert.InDelta(t, 1/math.Sqrt(2.0/3.0), z[2], 1e-12)
}

func TestHalfLifeOfExactAR1Decay(t *testing.T) {
	// s_t = 0.9^t gives ds_t = -0.1*s_{t-1} identically, so the AR(1) fit
	// recovers phi = -0.1 exactly.
	s := make([]float64, 120)
	s[0] = 1
	for i := 1; i < len(s); i++ {
		s[i] = 0.9 * s[i-1]
	}
	hl := HalfLife(s)
	assert.InDelta(t, math.Ln2/0.1, hl, 1e-6)
}

func TestHalfLifeNonReverting(t *testing.T) {
	trend := make([]float64, 80)
	for i := range trend {
		trend[i] = float64(i)
	}
	assert.True(t, math.IsInf(HalfLife(trend), 1), "trending spread has no half-life")

	short := []float64{1, 2, 3}
	assert.True(t, math.IsInf(HalfLife(short), 1), "too few observations")
}
