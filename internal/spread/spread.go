// Package spread computes the spread between two aligned price legs, its
// rolling z-score, and the rolling cointegration gate that suppresses new
// entries when the pair is not currently in a cointegrated regime.
package spread

import (
	"math"

	"github.com/spreadrun/spreadrun/internal/hedge"
	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// Compute returns y - (intercept + beta*x) elementwise. The spread is missing
// wherever the hedge ratio is missing.
func Compute(y, x []float64, ratio hedge.Ratio) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		b := ratio.Beta[i]
		if math.IsNaN(b) || math.IsNaN(y[i]) || math.IsNaN(x[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = y[i] - ratio.Intercept - b*x[i]
	}
	return out
}

// ZScore normalizes the spread by its rolling mean and population standard
// deviation over window observations. A value is emitted only once the
// trailing window is complete; zero-deviation windows are missing, and no
// output is ever ±Inf.
func ZScore(spread []float64, window int) []float64 {
	mu := timeseries.RollingMean(spread, window)
	sd := timeseries.RollingStd(spread, window, 0)
	out := make([]float64, len(spread))
	for i := range spread {
		if math.IsNaN(mu[i]) || math.IsNaN(sd[i]) || sd[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		z := (spread[i] - mu[i]) / sd[i]
		if math.IsInf(z, 0) {
			z = math.NaN()
		}
		out[i] = z
	}
	return out
}

// HalfLife estimates the spread's mean-reversion half-life in periods from an
// AR(1) fit of the spread change on its lagged level. It returns +Inf when
// the spread shows no mean reversion or carries fewer than 50 observations;
// the value is a diagnostic only.
func HalfLife(spread []float64) float64 {
	var ds, sLag []float64
	prev := math.NaN()
	for _, v := range spread {
		if !math.IsNaN(v) && !math.IsNaN(prev) {
			ds = append(ds, v-prev)
			sLag = append(sLag, prev)
		}
		if !math.IsNaN(v) {
			prev = v
		}
	}
	if len(ds) < 50 {
		return math.Inf(1)
	}
	_, phi, err := hedge.StaticOLS(ds, sLag)
	if err != nil || phi >= 0 {
		return math.Inf(1)
	}
	return -math.Ln2 / phi
}
