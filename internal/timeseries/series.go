// Package timeseries provides the aligned series primitives shared by the
// hedge, spread and backtest layers. Missing values are represented as NaN;
// a value leaves the package as NaN or finite, never as ±Inf.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrEmptySeries = errors.New("empty series")

// Series is a real-valued time series on a strictly increasing timestamp
// index. NaN marks a missing value.
type Series struct {
	Times  []time.Time
	Values []float64
}

func New(times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, fmt.Errorf("times/values length mismatch: %d vs %d", len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return Series{}, fmt.Errorf("timestamps not strictly increasing at position %d (%s)", i, times[i].Format("2006-01-02"))
		}
	}
	return Series{Times: times, Values: values}, nil
}

func (s Series) Len() int { return len(s.Values) }

// ForwardFill replaces each NaN with the most recent preceding value.
// Leading NaNs are left in place.
func (s Series) ForwardFill() Series {
	out := make([]float64, len(s.Values))
	last := math.NaN()
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return Series{Times: s.Times, Values: out}
}

// AlignPair forward-fills both series and intersects them on their common
// timestamps, so that both legs are defined at every index point. It fails
// when the intersection is empty or still carries missing values (which can
// only happen at the very start of a leg).
func AlignPair(a, b Series) (Series, Series, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return Series{}, Series{}, ErrEmptySeries
	}
	a, b = a.ForwardFill(), b.ForwardFill()

	var (
		times  []time.Time
		av, bv []float64
	)
	i, j := 0, 0
	for i < a.Len() && j < b.Len() {
		switch {
		case a.Times[i].Before(b.Times[j]):
			i++
		case b.Times[j].Before(a.Times[i]):
			j++
		default:
			if !math.IsNaN(a.Values[i]) && !math.IsNaN(b.Values[j]) {
				times = append(times, a.Times[i])
				av = append(av, a.Values[i])
				bv = append(bv, b.Values[j])
			}
			i++
			j++
		}
	}
	if len(times) == 0 {
		return Series{}, Series{}, fmt.Errorf("aligning pair: %w: no overlapping timestamps", ErrEmptySeries)
	}
	return Series{Times: times, Values: av}, Series{Times: times, Values: bv}, nil
}

// Shift moves values forward by k positions (out[i] = x[i-k]), filling the
// vacated head with NaN. Callers use this to lag adaptive hedge ratios by one
// period before trading on them.
func Shift(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = x[i-k]
		}
	}
	return out
}

// Diff returns first differences with NaN at position 0.
func Diff(x []float64) []float64 {
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

// PctChange returns simple returns with NaN at position 0. A zero or missing
// previous value yields NaN, never ±Inf.
func PctChange(x []float64) []float64 {
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

// FillNaN replaces missing values with v.
func FillNaN(x []float64, v float64) []float64 {
	out := make([]float64, len(x))
	for i, f := range x {
		if math.IsNaN(f) {
			out[i] = v
		} else {
			out[i] = f
		}
	}
	return out
}

// FillEdges back-fills then forward-fills missing values, the treatment the
// sizing volatility series gets before it divides anything.
func FillEdges(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if !math.IsNaN(out[i]) {
			next = out[i]
		} else {
			out[i] = next
		}
	}
	last := math.NaN()
	for i := range out {
		if !math.IsNaN(out[i]) {
			last = out[i]
		} else {
			out[i] = last
		}
	}
	return out
}

// Sanitize maps NaN and ±Inf to 0 in place and returns x. Every numeric
// value handed outward (JSON artifacts, report fields) passes through here.
func Sanitize(x []float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
		}
	}
	return x
}

// SanitizeValue is the scalar form of Sanitize.
func SanitizeValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
