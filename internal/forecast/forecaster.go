package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/cv"
)

const (
	KindNaive = "naive"
	KindRidge = "ridge"
)

var ErrInsufficientRows = errors.New("too few feature rows to train")

// Forecaster predicts the next-period spread change for the rows of a
// feature set. Predictions are out-of-sample: each value is produced by a
// model trained only on a purged fold's training indices, and rows not
// covered by any test fold stay missing.
type Forecaster interface {
	Name() string
	FitPredict(fs *FeatureSet, folds []cv.Fold) ([]float64, error)
}

// New returns the forecaster registered under kind.
func New(kind string, alphas []float64) (Forecaster, error) {
	switch kind {
	case KindNaive:
		return Naive{}, nil
	case KindRidge:
		return NewRidge(alphas), nil
	default:
		return nil, fmt.Errorf("unknown forecaster %q (want naive or ridge)", kind)
	}
}

// Naive predicts a zero spread change everywhere, the no-information
// baseline every model is benchmarked against.
type Naive struct{}

func (Naive) Name() string { return KindNaive }

func (Naive) FitPredict(fs *FeatureSet, _ []cv.Fold) ([]float64, error) {
	if fs.Len() == 0 {
		return nil, fmt.Errorf("naive forecaster: %w: empty feature set", ErrInsufficientRows)
	}
	return make([]float64, fs.Len()), nil
}

// RMSE is the root mean squared error over positions where both prediction
// and actual are defined. It returns NaN when nothing overlaps.
func RMSE(pred, actual []float64) float64 {
	var sum float64
	n := 0
	for i := range pred {
		if i >= len(actual) || math.IsNaN(pred[i]) || math.IsNaN(actual[i]) {
			continue
		}
		d := pred[i] - actual[i]
		sum += d * d
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n))
}
