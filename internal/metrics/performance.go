// Package metrics computes summary statistics over a backtest's return and
// equity series. Degenerate inputs resolve to neutral values, never to errors
// or infinities.
package metrics

import "math"

// PeriodsPerYear is the annualization factor for a business-day calendar.
const PeriodsPerYear = 252

// Sharpe is the annualized mean/population-standard-deviation ratio of the
// return series. Zero or undefined deviation yields 0.
func Sharpe(returns []float64) float64 {
	n := 0
	var sum, sumSq float64
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		sum += r
		sumSq += r * r
		n++
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return 0
	}
	s := math.Sqrt(float64(PeriodsPerYear)) * mean / math.Sqrt(variance)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// MaxDrawdown is the minimum of (equity - running max) / running max, 0 for
// an empty series.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := math.Inf(-1)
	worst := 0.0
	for _, e := range equity {
		if math.IsNaN(e) {
			continue
		}
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (e - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// HitRate is the fraction of non-zero returns that are positive, 0 when
// there are none.
func HitRate(returns []float64) float64 {
	nonZero, wins := 0, 0
	for _, r := range returns {
		if math.IsNaN(r) || r == 0 {
			continue
		}
		nonZero++
		if r > 0 {
			wins++
		}
	}
	if nonZero == 0 {
		return 0
	}
	return float64(wins) / float64(nonZero)
}

// TotalReturn is the final equity value minus 1, 0 for an empty series.
func TotalReturn(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	last := equity[len(equity)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return 0
	}
	return last - 1
}
