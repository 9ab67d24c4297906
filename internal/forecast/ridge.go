package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/cv"
)

// Ridge is an L2-regularized linear regressor solved in closed form on
// standardized features. Within each purged fold the regularization strength
// is picked from Alphas by error on the trailing fifth of the training
// window, then the model refits on the whole training set and predicts only
// that fold's test block.
type Ridge struct {
	Alphas []float64
}

// NewRidge returns a ridge forecaster; a nil alpha grid gets a log-spaced
// default.
func NewRidge(alphas []float64) Ridge {
	if len(alphas) == 0 {
		alphas = []float64{1e-3, 1e-2, 1e-1, 1, 10, 100}
	}
	return Ridge{Alphas: alphas}
}

func (Ridge) Name() string { return KindRidge }

func (r Ridge) FitPredict(fs *FeatureSet, folds []cv.Fold) ([]float64, error) {
	if fs.Len() < 30 {
		return nil, fmt.Errorf("ridge forecaster: %w: %d rows, need at least 30", ErrInsufficientRows, fs.Len())
	}
	preds := make([]float64, fs.Len())
	for i := range preds {
		preds[i] = math.NaN()
	}
	covered := false
	for _, fold := range folds {
		if len(fold.Train) < len(fs.Names)+2 || len(fold.Test) == 0 {
			continue
		}
		model, err := r.fitBest(fs, fold.Train)
		if err != nil {
			continue
		}
		for _, t := range fold.Test {
			if t < fs.Len() {
				preds[t] = model.predict(fs.X[t])
				covered = true
			}
		}
	}
	if !covered {
		return nil, fmt.Errorf("ridge forecaster: %w: no fold produced predictions", ErrInsufficientRows)
	}
	return preds, nil
}

func (r Ridge) fitBest(fs *FeatureSet, train []int) (*ridgeModel, error) {
	holdout := len(train) / 5
	if holdout < 1 {
		holdout = 1
	}
	fit, val := train[:len(train)-holdout], train[len(train)-holdout:]

	bestErr := math.Inf(1)
	bestAlpha := r.Alphas[0]
	for _, alpha := range r.Alphas {
		m, err := fitRidge(fs, fit, alpha)
		if err != nil {
			continue
		}
		var sse float64
		for _, t := range val {
			d := m.predict(fs.X[t]) - fs.Target[t]
			sse += d * d
		}
		if sse < bestErr {
			bestErr, bestAlpha = sse, alpha
		}
	}
	return fitRidge(fs, train, bestAlpha)
}

type ridgeModel struct {
	mean, scale []float64
	weights     []float64
	intercept   float64
}

func (m *ridgeModel) predict(row []float64) float64 {
	out := m.intercept
	for j, v := range row {
		out += m.weights[j] * (v - m.mean[j]) / m.scale[j]
	}
	return out
}

func fitRidge(fs *FeatureSet, train []int, alpha float64) (*ridgeModel, error) {
	k := len(fs.Names)
	mean, scale := standardizeStats(fs, train)

	// Normal equations on standardized features with a centered target; the
	// intercept is the training target mean.
	var yMean float64
	for _, t := range train {
		yMean += fs.Target[t]
	}
	yMean /= float64(len(train))

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)
	row := make([]float64, k)
	for _, t := range train {
		for j := 0; j < k; j++ {
			row[j] = (fs.X[t][j] - mean[j]) / scale[j]
		}
		yc := fs.Target[t] - yMean
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * yc
		}
	}
	for i := 0; i < k; i++ {
		xtx[i][i] += alpha
	}
	w, err := solveLinear(xtx, xty)
	if err != nil {
		return nil, err
	}
	return &ridgeModel{mean: mean, scale: scale, weights: w, intercept: yMean}, nil
}

func standardizeStats(fs *FeatureSet, train []int) (mean, scale []float64) {
	k := len(fs.Names)
	mean = make([]float64, k)
	scale = make([]float64, k)
	for j := 0; j < k; j++ {
		var sum, sumSq float64
		for _, t := range train {
			v := fs.X[t][j]
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

// solveLinear solves Ax = b for a small dense system via Gaussian elimination
// with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for j := col; j <= n; j++ {
				m[r][j] -= f * m[col][j]
			}
		}
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		x[i] = m[i][n]
		for j := i + 1; j < n; j++ {
			x[i] -= m[i][j] * x[j]
		}
		x[i] /= m[i][i]
	}
	return x, nil
}
