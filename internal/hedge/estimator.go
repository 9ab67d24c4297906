// Package hedge estimates the loading of the independent leg that flattens a
// linear combination of two price series into a stationary spread. Four
// interchangeable variants are exposed behind one interface and selected by
// configuration tag.
//
// None of the adaptive variants lag their own output: ratio[t] is conditioned
// on data up to and including t, and call sites must shift it forward by one
// period before sizing positions with it.
package hedge

import (
	"errors"
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

const (
	ModeStatic  = "static"
	ModeRolling = "rolling"
	ModeRLS     = "rls"
	ModeKalman  = "kalman"
)

var ErrDegenerate = errors.New("degenerate regression input")

// Ratio is a hedge ratio aligned to the price pair's index. Beta is constant
// for the static variant, which is also the only variant with a non-zero
// intercept.
type Ratio struct {
	Beta      []float64
	Intercept float64
}

// Estimator produces a hedge ratio from an aligned price pair.
type Estimator interface {
	Name() string
	Estimate(y, x []float64) (Ratio, error)
}

// Config selects and parameterizes an estimator variant.
type Config struct {
	Mode         string  `yaml:"mode"`
	Window       int     `yaml:"window"`         // rolling variant
	RLSLambda    float64 `yaml:"rls_lambda"`     // forgetting factor, (0,1]
	KalmanQ      float64 `yaml:"kalman_q"`       // process noise
	KalmanRScale float64 `yaml:"kalman_r_scale"` // observation noise as a fraction of diff(y) variance
}

// New returns the estimator for cfg.Mode.
func New(cfg Config) (Estimator, error) {
	switch cfg.Mode {
	case ModeStatic:
		return staticEstimator{}, nil
	case ModeRolling:
		if cfg.Window < 2 {
			return nil, fmt.Errorf("rolling hedge window must be >= 2, got %d", cfg.Window)
		}
		return rollingEstimator{window: cfg.Window}, nil
	case ModeRLS:
		if cfg.RLSLambda <= 0 || cfg.RLSLambda > 1 {
			return nil, fmt.Errorf("rls lambda must be in (0,1], got %g", cfg.RLSLambda)
		}
		return rlsEstimator{lambda: cfg.RLSLambda}, nil
	case ModeKalman:
		if cfg.KalmanQ <= 0 || cfg.KalmanRScale <= 0 {
			return nil, fmt.Errorf("kalman q and r_scale must be > 0, got q=%g r_scale=%g", cfg.KalmanQ, cfg.KalmanRScale)
		}
		return kalmanEstimator{q: cfg.KalmanQ, rScale: cfg.KalmanRScale}, nil
	default:
		return nil, fmt.Errorf("unknown hedge mode %q (want static, rolling, rls or kalman)", cfg.Mode)
	}
}

// StaticOLS regresses y on x with an intercept over the full sample and
// returns (intercept, slope). At least 2 observations and non-zero variance
// in x are required.
func StaticOLS(y, x []float64) (alpha, beta float64, err error) {
	n := 0
	var sumX, sumY, sumXX, sumXY float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		sumX += x[i]
		sumY += y[i]
		sumXX += x[i] * x[i]
		sumXY += x[i] * y[i]
		n++
	}
	if n < 2 {
		return 0, 0, fmt.Errorf("static OLS: %w: need at least 2 observations, have %d", ErrDegenerate, n)
	}
	den := sumXX - sumX*sumX/float64(n)
	if den <= 0 {
		return 0, 0, fmt.Errorf("static OLS: %w: zero variance in independent leg", ErrDegenerate)
	}
	beta = (sumXY - sumX*sumY/float64(n)) / den
	alpha = (sumY - beta*sumX) / float64(n)
	return alpha, beta, nil
}

type staticEstimator struct{}

func (staticEstimator) Name() string { return ModeStatic }

func (staticEstimator) Estimate(y, x []float64) (Ratio, error) {
	alpha, beta, err := StaticOLS(y, x)
	if err != nil {
		return Ratio{}, err
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = beta
	}
	return Ratio{Beta: out, Intercept: alpha}, nil
}

type rollingEstimator struct{ window int }

func (rollingEstimator) Name() string { return ModeRolling }

// Estimate computes cov(y,x)/var(x) over a trailing window. Incomplete
// windows and windows with numerically zero variance are missing, not errors.
func (e rollingEstimator) Estimate(y, x []float64) (Ratio, error) {
	if len(y) != len(x) {
		return Ratio{}, fmt.Errorf("rolling hedge: length mismatch %d vs %d", len(y), len(x))
	}
	cov := timeseries.RollingCov(y, x, e.window)
	variance := timeseries.RollingVar(x, e.window)
	out := make([]float64, len(x))
	for i := range out {
		if math.IsNaN(cov[i]) || math.IsNaN(variance[i]) || variance[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cov[i] / variance[i]
	}
	return Ratio{Beta: out}, nil
}
