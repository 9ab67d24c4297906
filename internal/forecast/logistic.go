package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/cv"
)

// ErrMetaTooSmall marks a meta dataset too thin to train the probability
// gate; the pipeline trades without the gate in that case.
var ErrMetaTooSmall = errors.New("meta dataset too small")

// MetaClassifier is an L2-regularized logistic regression on standardized
// features, fit by gradient descent. Probabilities are out-of-sample through
// the purged folds, like the regressor's predictions.
type MetaClassifier struct {
	L2           float64
	LearningRate float64
	Iterations   int
}

// NewMetaClassifier returns a classifier with sane defaults.
func NewMetaClassifier() MetaClassifier {
	return MetaClassifier{L2: 1.0, LearningRate: 0.1, Iterations: 500}
}

// FitPredictProba returns out-of-sample success probabilities aligned to the
// rows of X. Fewer than 100 rows or a single-class label vector is
// ErrMetaTooSmall, not a degenerate fit.
func (c MetaClassifier) FitPredictProba(x [][]float64, y []int, folds []cv.Fold) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("meta classifier: feature/label length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < 100 || singleClass(y) {
		return nil, fmt.Errorf("meta classifier: %w: %d rows", ErrMetaTooSmall, len(x))
	}

	proba := make([]float64, len(x))
	for i := range proba {
		proba[i] = math.NaN()
	}
	covered := false
	for _, fold := range folds {
		if len(fold.Train) < 20 || len(fold.Test) == 0 {
			continue
		}
		trainY := make([]int, 0, len(fold.Train))
		for _, t := range fold.Train {
			trainY = append(trainY, y[t])
		}
		if singleClass(trainY) {
			continue
		}
		model := c.fit(x, y, fold.Train)
		for _, t := range fold.Test {
			if t < len(x) {
				proba[t] = model.proba(x[t])
				covered = true
			}
		}
	}
	if !covered {
		return nil, fmt.Errorf("meta classifier: %w: no fold produced probabilities", ErrMetaTooSmall)
	}
	return proba, nil
}

type logitModel struct {
	mean, scale []float64
	weights     []float64
	bias        float64
}

func (m *logitModel) proba(row []float64) float64 {
	s := m.bias
	for j, v := range row {
		s += m.weights[j] * (v - m.mean[j]) / m.scale[j]
	}
	return 1 / (1 + math.Exp(-s))
}

func (c MetaClassifier) fit(x [][]float64, y []int, train []int) *logitModel {
	k := len(x[0])
	mean, scale := columnStats(x, train, k)

	std := make([][]float64, len(train))
	for i, t := range train {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = (x[t][j] - mean[j]) / scale[j]
		}
		std[i] = row
	}

	w := make([]float64, k)
	bias := 0.0
	n := float64(len(train))
	for iter := 0; iter < c.Iterations; iter++ {
		grad := make([]float64, k)
		gradB := 0.0
		for i, t := range train {
			s := bias
			for j := 0; j < k; j++ {
				s += w[j] * std[i][j]
			}
			p := 1 / (1 + math.Exp(-s))
			e := p - float64(y[t])
			for j := 0; j < k; j++ {
				grad[j] += e * std[i][j]
			}
			gradB += e
		}
		for j := 0; j < k; j++ {
			w[j] -= c.LearningRate * (grad[j]/n + c.L2*w[j]/n)
		}
		bias -= c.LearningRate * gradB / n
	}
	return &logitModel{mean: mean, scale: scale, weights: w, bias: bias}
}

func columnStats(x [][]float64, train []int, k int) (mean, scale []float64) {
	mean = make([]float64, k)
	scale = make([]float64, k)
	for j := 0; j < k; j++ {
		var sum, sumSq float64
		for _, t := range train {
			v := x[t][j]
			sum += v
			sumSq += v * v
		}
		n := float64(len(train))
		mean[j] = sum / n
		variance := sumSq/n - mean[j]*mean[j]
		if variance <= 0 {
			scale[j] = 1
		} else {
			scale[j] = math.Sqrt(variance)
		}
	}
	return mean, scale
}

func singleClass(y []int) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y[1:] {
		if v != first {
			return false
		}
	}
	return true
}
