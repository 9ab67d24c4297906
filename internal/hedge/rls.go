package hedge

import (
	"fmt"
	"math"
)

// RLSState is the carried state of the recursive least squares filter:
// theta = [intercept, slope] with covariance P, updated one observation at a
// time under forgetting factor lambda. Each Step returns the updated slope,
// so the scan can be exercised at any single step in isolation.
type RLSState struct {
	Theta  [2]float64
	P      [2][2]float64
	Lambda float64
}

// NewRLSState initializes the filter with a zero coefficient vector and a
// large-diagonal covariance prior.
func NewRLSState(lambda float64) *RLSState {
	return &RLSState{
		P:      [2][2]float64{{1e6, 0}, {0, 1e6}},
		Lambda: lambda,
	}
}

// Step folds one observation into the state and returns the posterior slope.
func (s *RLSState) Step(y, x float64) float64 {
	phi := [2]float64{1, x}

	// P*phi and phi'*P*phi
	pPhi := [2]float64{
		s.P[0][0]*phi[0] + s.P[0][1]*phi[1],
		s.P[1][0]*phi[0] + s.P[1][1]*phi[1],
	}
	denom := s.Lambda + phi[0]*pPhi[0] + phi[1]*pPhi[1]

	k := [2]float64{pPhi[0] / denom, pPhi[1] / denom}
	err := y - (phi[0]*s.Theta[0] + phi[1]*s.Theta[1])
	s.Theta[0] += k[0] * err
	s.Theta[1] += k[1] * err

	// P = (P - K * phi' * P) / lambda; phi'P is the transpose of P*phi since
	// P stays symmetric.
	var next [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			next[i][j] = (s.P[i][j] - k[i]*pPhi[j]) / s.Lambda
		}
	}
	s.P = next
	return s.Theta[1]
}

type rlsEstimator struct{ lambda float64 }

func (rlsEstimator) Name() string { return ModeRLS }

// Estimate processes observations strictly in index order; later state
// depends on all prior state. Missing observations are carried forward from
// the last defined value of each leg before updating.
func (e rlsEstimator) Estimate(y, x []float64) (Ratio, error) {
	if len(y) != len(x) {
		return Ratio{}, fmt.Errorf("rls hedge: length mismatch %d vs %d", len(y), len(x))
	}
	state := NewRLSState(e.lambda)
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
