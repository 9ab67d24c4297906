package hedge

import (
	"fmt"
	"math"
)

// KalmanState carries the filter state for time-varying linear regression
// y_t = a_t + b_t*x_t + e_t, where theta = [a, b] follows a 2-dimensional
// random walk with process noise q*I observed through measurement noise r.
type KalmanState struct {
	Theta [2]float64
	P     [2][2]float64
	Q     float64
	R     float64
}

// NewKalmanState initializes the filter with a large-diagonal prior.
func NewKalmanState(q, r float64) *KalmanState {
	return &KalmanState{
		P: [2][2]float64{{1e6, 0}, {0, 1e6}},
		Q: q,
		R: r,
	}
}

// Step runs one predict/update cycle and returns the posterior slope.
func (s *KalmanState) Step(y, x float64) float64 {
	// Predict: F = I, so only the covariance inflates.
	s.P[0][0] += s.Q
	s.P[1][1] += s.Q

	// Update with H = [1, x].
	h := [2]float64{1, x}
	pH := [2]float64{
		s.P[0][0]*h[0] + s.P[0][1]*h[1],
		s.P[1][0]*h[0] + s.P[1][1]*h[1],
	}
	innov := y - (h[0]*s.Theta[0] + h[1]*s.Theta[1])
	sVar := h[0]*pH[0] + h[1]*pH[1] + s.R

	k := [2]float64{pH[0] / sVar, pH[1] / sVar}
	s.Theta[0] += k[0] * innov
	s.Theta[1] += k[1] * innov

	var next [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			next[i][j] = s.P[i][j] - k[i]*pH[j]
		}
	}
	s.P = next
	return s.Theta[1]
}

type kalmanEstimator struct {
	q      float64
	rScale float64
}

func (kalmanEstimator) Name() string { return ModeKalman }

// Estimate scales the observation noise by a fraction of the dependent leg's
// empirical change variance, falling back to a small floor when that variance
// is degenerate.
func (e kalmanEstimator) Estimate(y, x []float64) (Ratio, error) {
	if len(y) != len(x) {
		return Ratio{}, fmt.Errorf("kalman hedge: length mismatch %d vs %d", len(y), len(x))
	}
	r := diffVariance(y) * e.rScale
	if r <= 0 || math.IsNaN(r) {
		r = 1e-3
	}
	state := NewKalmanState(e.q, r)
	out := make([]float64, len(x))
	lastY, lastX := math.NaN(), math.NaN()
	for i := range x {
		yi, xi := y[i], x[i]
		if math.IsNaN(yi) {
			yi = lastY
		}
		if math.IsNaN(xi) {
			xi = lastX
		}
		if math.IsNaN(yi) || math.IsNaN(xi) {
			out[i] = math.NaN()
			continue
		}
		lastY, lastX = yi, xi
		out[i] = state.Step(yi, xi)
	}
	return Ratio{Beta: out}, nil
}

func diffVariance(y []float64) float64 {
	var sum, sumSq float64
	n := 0
	for i := 1; i < len(y); i++ {
		d := y[i] - y[i-1]
		if math.IsNaN(d) {
			continue
		}
		sum += d
		sumSq += d * d
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	mean := sum / float64(n)
	return (sumSq - float64(n)*mean*mean) / float64(n)
}
