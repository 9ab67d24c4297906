package hedge

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiselessPair builds y = 5 + 1.5*x for an upward-drifting x.
func noiselessPair(n int) (y, x []float64) {
	y = make([]float64, n)
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 100 + float64(i) + 3*math.Sin(float64(i)/7)
		y[i] = 5 + 1.5*x[i]
	}
	return y, x
}

func TestStaticOLSExactOnNoiselessPair(t *testing.T) {
	y, x := noiselessPair(250)
	alpha, beta, err := StaticOLS(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, alpha, 1e-8)
	assert.InDelta(t, 1.5, beta, 1e-10)
}

func TestStaticOLSDegenerateInputs(t *testing.T) {
	_, _, err := StaticOLS([]float64{1}, []float64{2})
	require.ErrorIs(t, err, ErrDegenerate)

	// Constant independent leg has zero variance.
	_, _, err = StaticOLS([]float64{1, 2, 3}, []float64{4, 4, 4})
	require.ErrorIs(t, err, ErrDegenerate)

	// NaN-only input reduces to the empty sample.
	nan := math.NaN()
	_, _, err = StaticOLS([]float64{nan, nan}, []float64{nan, nan})
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestStaticOLSIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 300
	y := make([]float64, n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 50 + rng.NormFloat64()*4
		y[i] = 2 + 0.8*x[i] + rng.NormFloat64()*0.3
	}
	a1, b1, err := StaticOLS(y, x)
	require.NoError(t, err)
	a2, b2, err := StaticOLS(y, x)
	require.NoError(t, err)
	assert.Equal(t, a1, a2, "repeated runs on identical input are bit-identical")
	assert.Equal(t, b1, b2)
}

func TestRollingEstimatorWarmupAndRecovery(t *testing.T) {
	y, x := noiselessPair(60)
	est, err := New(Config{Mode: ModeRolling, Window: 20})
	require.NoError(t, err)

	ratio, err := est.Estimate(y, x)
	require.NoError(t, err)
	require.Len(t, ratio.Beta, 60)

	for i := 0; i < 19; i++ {
		assert.True(t, math.IsNaN(ratio.Beta[i]), "warmup position %d", i)
	}
	for i := 19; i < 60; i++ {
		assert.InDelta(t, 1.5, ratio.Beta[i], 1e-8, "position %d", i)
	}
}

func TestRollingEstimatorZeroVarianceWindow(t *testing.T) {
	// Flat x over the whole sample: every window is degenerate.
	y := []float64{1, 2, 3, 4, 5, 6}
	x := []float64{7, 7, 7, 7, 7, 7}
	est, err := New(Config{Mode: ModeRolling, Window: 3})
	require.NoError(t, err)

	ratio, err := est.Estimate(y, x)
	require.NoError(t, err)
	for i, b := range ratio.Beta {
		assert.True(t, math.IsNaN(b), "position %d should be missing, got %g", i, b)
	}
}

func TestRLSConvergesToTrueSlope(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 500
	y := make([]float64, n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 100 + rng.NormFloat64()*5
		y[i] = 3 + 2.0*x[i] + rng.NormFloat64()*0.5
	}
	est, err := New(Config{Mode: ModeRLS, RLSLambda: 0.999})
	require.NoError(t, err)

	ratio, err := est.Estimate(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ratio.Beta[n-1], 0.05)
}

func TestRLSStateStepDeterministic(t *testing.T) {
	s1 := NewRLSState(0.99)
	s2 := NewRLSState(0.99)
	obs := [][2]float64{{10, 5}, {12, 6}, {14, 7}, {16, 8}}
	for _, o := range obs {
		b1 := s1.Step(o[0], o[1])
		b2 := s2.Step(o[0], o[1])
		assert.Equal(t, b1, b2)
	}
	assert.Equal(t, s1.Theta, s2.Theta)
}

func TestKalmanConvergesToTrueSlope(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 600
	y := make([]float64, n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 80 + rng.NormFloat64()*4
		y[i] = -1 + 1.25*x[i] + rng.NormFloat64()*0.4
	}
	est, err := New(Config{Mode: ModeKalman, KalmanQ: 1e-5, KalmanRScale: 1e-2})
	require.NoError(t, err)

	ratio, err := est.Estimate(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, ratio.Beta[n-1], 0.1)
}

func TestAdaptiveEstimatorsCarryForwardMissing(t *testing.T) {
	y, x := noiselessPair(100)
	y[40] = math.NaN()
	x[41] = math.NaN()

	for _, mode := range []string{ModeRLS, ModeKalman} {
		cfg := Config{Mode: mode, RLSLambda: 0.99, KalmanQ: 1e-5, KalmanRScale: 1e-2}
		est, err := New(cfg)
		require.NoError(t, err)
		ratio, err := est.Estimate(y, x)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(ratio.Beta[40]), "%s fills missing y from previous value", mode)
		assert.False(t, math.IsNaN(ratio.Beta[41]), "%s fills missing x from previous value", mode)
	}
}

func TestNewRejectsBadConfigs(t *testing.T) {
	cases := []Config{
		{Mode: "ewma"},
		{Mode: ModeRolling, Window: 1},
		{Mode: ModeRLS, RLSLambda: 0},
		{Mode: ModeRLS, RLSLambda: 1.2},
		{Mode: ModeKalman, KalmanQ: 0, KalmanRScale: 1},
		{Mode: ModeKalman, KalmanQ: 1e-5, KalmanRScale: -1},
	}
	for _, cfg := range cases {
		_, err := New(cfg)
		assert.Error(t, err, "mode=%s", cfg.Mode)
	}
}
