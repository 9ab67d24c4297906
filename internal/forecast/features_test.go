package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFeaturesShapeAndIndex(t *testing.T) {
	n := 50
	y := make([]float64, n)
	x := make([]float64, n)
	spread := make([]float64, n)
	z := make([]float64, n)
	for i := range y {
		x[i] = 100 + float64(i)
		y[i] = 150 + 1.5*float64(i)
		spread[i] = math.Sin(float64(i) / 4)
		z[i] = math.Cos(float64(i) / 6)
	}

	fs := BuildFeatures(y, x, spread, z)
	require.NotZero(t, fs.Len())

	// Rows start once every lag is available and stop before the final
	// timestamp, which has no target.
	assert.Equal(t, MaxLag, fs.Index[0])
	assert.Equal(t, n-2, fs.Index[len(fs.Index)-1])
	assert.Equal(t, n-1-MaxLag, fs.Len())

	for i, row := range fs.X {
		assert.Len(t, row, len(fs.Names), "row %d", i)
		for j, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "row %d col %d", i, j)
		}
	}

	// The target is the next period's spread change.
	for r, idx := range fs.Index {
		want := spread[idx+1] - spread[idx]
		assert.InDelta(t, want, fs.Target[r], 1e-12, "row %d", r)
	}
}

func TestBuildFeaturesDropsIncompleteRows(t *testing.T) {
	n := 40
	y := make([]float64, n)
	x := make([]float64, n)
	spread := make([]float64, n)
	z := make([]float64, n)
	for i := range y {
		x[i] = 100 + float64(i)
		y[i] = 200 + 2*float64(i)
		spread[i] = math.Sin(float64(i) / 3)
		z[i] = math.Cos(float64(i) / 5)
	}
	// A missing z observation poisons every row whose lags reach it.
	z[20] = math.NaN()

	fs := BuildFeatures(y, x, spread, z)
	for _, idx := range fs.Index {
		assert.NotContains(t, []int{20, 21, 22, 23, 25}, idx,
			"rows touching the missing observation through z or its lags are dropped")
	}
}

func TestRMSE(t *testing.T) {
	assert.True(t, math.IsNaN(RMSE(nil, nil)))
	assert.True(t, math.IsNaN(RMSE([]float64{math.NaN()}, []float64{1})))
	assert.InDelta(t, 1.0, RMSE([]float64{1, 3}, []float64{2, 2}), 1e-12)

	// Missing positions are skipped, not treated as errors.
	pred := []float64{1, math.NaN(), 3}
	actual := []float64{1, 100, 3}
	assert.Equal(t, 0.0, RMSE(pred, actual))
}
