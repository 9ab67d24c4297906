// Package forecast holds the predictive-model collaborator contract the core
// consumes, together with the reference implementations the pipeline ships:
// a feature builder over the spread/z history, a purged-CV ridge regressor
// for the next spread change, a naive baseline, and the logistic
// meta-classifier behind the optional probability gate.
package forecast

import "math"

var featureLags = []int{1, 2, 3, 5}

// MaxLag is the deepest lag any feature column reaches back.
const MaxLag = 5

// FeatureSet is a feature matrix whose rows are a subset of the trading
// index. Index maps each row to its position in the aligned series; Target is
// the next-period spread change. Rows with any non-finite feature or target
// are dropped at construction.
type FeatureSet struct {
	Names  []string
	Index  []int
	X      [][]float64
	Target []float64
}

func (f *FeatureSet) Len() int { return len(f.X) }

// BuildFeatures derives the model inputs from the aligned legs and the
// spread/z series: levels, short z moving averages, leg returns, the spread
// change, and lags 1/2/3/5 of z, spread and the spread change. The target is
// the following period's spread change.
func BuildFeatures(y, x, spread, z []float64) *FeatureSet {
	n := len(spread)
	yRet := pctChange(y)
	xRet := pctChange(x)
	dS := diff(spread)

	zMA3 := rollingMean(z, 3)
	zMA5 := rollingMean(z, 5)

	names := []string{"spread", "z", "z_ma3", "z_ma5", "y_ret", "x_ret", "ds"}
	for _, l := range featureLags {
		names = append(names,
			lagName("z_lag", l), lagName("s_lag", l), lagName("ds_lag", l))
	}

	fs := &FeatureSet{Names: names}
	row := make([]float64, 0, len(names))
	for i := 0; i < n-1; i++ { // final timestamp has no target
		row = row[:0]
		row = append(row, spread[i], z[i], zMA3[i], zMA5[i], yRet[i], xRet[i], dS[i])
		ok := i >= MaxLag
		for _, l := range featureLags {
			if !ok {
				break
			}
			row = append(row, z[i-l], spread[i-l], dS[i-l])
		}
		if !ok || !allFinite(row) {
			continue
		}
		target := dS[i+1]
		if !finite(target) {
			continue
		}
		fs.Index = append(fs.Index, i)
		fs.X = append(fs.X, append([]float64(nil), row...))
		fs.Target = append(fs.Target, target)
	}
	return fs
}

func lagName(prefix string, l int) string {
	return prefix + string(rune('0'+l))
}

func pctChange(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 || x[i-1] == 0 || math.IsNaN(x[i-1]) || math.IsNaN(x[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-1] - 1
	}
	return out
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] - x[i-1]
	}
	return out
}

func rollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.NaN()
		if i < w-1 {
			continue
		}
		sum := 0.0
		ok := true
		for j := i - w + 1; j <= i; j++ {
			if math.IsNaN(x[j]) {
				ok = false
				break
			}
			sum += x[j]
		}
		if ok {
			out[i] = sum / float64(w)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(row []float64) bool {
	for _, v := range row {
		if !finite(v) {
			return false
		}
	}
	return true
}
