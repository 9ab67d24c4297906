// Package label assigns triple-barrier outcome labels to candidate entry
// timestamps and builds the dataset for the optional meta-classifier gate.
package label

import (
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// TripleBarrier labels each timestamp except the final one with +1 if the
// upper barrier (series[t] + ptMult*vol[t]) is touched first within
// maxHorizon forward steps, -1 if the lower barrier (series[t] -
// slMult*vol[t]) is touched first, and 0 if neither, including when the
// remaining horizon is truncated by the end of data. When both barriers would
// first be touched at the same forward step, the upper barrier wins; the
// tie-break is arbitrary but kept as documented behavior. The final timestamp
// has no forward window and is left missing.
func TripleBarrier(series, vol []float64, ptMult, slMult float64, maxHorizon int) ([]float64, error) {
	n := len(series)
	if len(vol) != n {
		return nil, fmt.Errorf("triple barrier: series/vol length mismatch: %d vs %d", n, len(vol))
	}
	if maxHorizon < 1 {
		return nil, fmt.Errorf("triple barrier: horizon must be >= 1, got %d", maxHorizon)
	}
	v := timeseries.FillEdges(vol)

	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 0; i < n-1; i++ {
		start, sig := series[i], v[i]
		if math.IsNaN(start) || math.IsNaN(sig) {
			continue
		}
		upper := start + ptMult*sig
		lower := start - slMult*sig

		end := i + maxHorizon
		if end > n-1 {
			end = n - 1
		}
		lbl := 0.0
		for j := i + 1; j <= end; j++ {
			s := series[j]
			if math.IsNaN(s) {
				continue
			}
			if s >= upper {
				lbl = 1
				break
			}
			if s <= lower {
				lbl = -1
				break
			}
		}
		out[i] = lbl
	}
	return out, nil
}
