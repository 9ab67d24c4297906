package timeseries

import "math"

// Rolling statistics over a trailing window of w observations. Outputs are
// written into preallocated buffers indexed by timestamp position; a window
// that is incomplete or contains a missing value yields NaN.

// RollingMean computes the trailing mean over w observations.
func RollingMean(x []float64, w int) []float64 {
	out := nanSlice(len(x))
	if w <= 0 || len(x) < w {
		return out
	}
	sum, nans := 0.0, 0
	for i, v := range x {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= w {
			old := x[i-w]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= w-1 && nans == 0 {
			out[i] = sum / float64(w)
		}
	}
	return out
}

// RollingStd computes the trailing standard deviation over w observations.
// ddof follows the usual convention: 0 for population, 1 for sample.
func RollingStd(x []float64, w, ddof int) []float64 {
	out := nanSlice(len(x))
	if w <= ddof || len(x) < w {
		return out
	}
	sum, sumSq, nans := 0.0, 0.0, 0
	for i, v := range x {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
			sumSq += v * v
		}
		if i >= w {
			old := x[i-w]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
				sumSq -= old * old
			}
		}
		if i >= w-1 && nans == 0 {
			mean := sum / float64(w)
			variance := (sumSq - float64(w)*mean*mean) / float64(w-ddof)
			if variance < 0 {
				variance = 0 // guard against catastrophic cancellation
			}
			out[i] = math.Sqrt(variance)
		}
	}
	return out
}

// RollingCov computes the trailing sample covariance of y and x over w
// observations.
func RollingCov(y, x []float64, w int) []float64 {
	out := nanSlice(len(x))
	if w < 2 || len(x) < w || len(y) != len(x) {
		return out
	}
	sumY, sumX, sumXY, nans := 0.0, 0.0, 0.0, 0
	for i := range x {
		if math.IsNaN(y[i]) || math.IsNaN(x[i]) {
			nans++
		} else {
			sumY += y[i]
			sumX += x[i]
			sumXY += y[i] * x[i]
		}
		if i >= w {
			if math.IsNaN(y[i-w]) || math.IsNaN(x[i-w]) {
				nans--
			} else {
				sumY -= y[i-w]
				sumX -= x[i-w]
				sumXY -= y[i-w] * x[i-w]
			}
		}
		if i >= w-1 && nans == 0 {
			out[i] = (sumXY - sumY*sumX/float64(w)) / float64(w-1)
		}
	}
	return out
}

// RollingVar computes the trailing sample variance over w observations.
func RollingVar(x []float64, w int) []float64 {
	out := RollingStd(x, w, 1)
	for i, v := range out {
		if !math.IsNaN(v) {
			out[i] = v * v
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
