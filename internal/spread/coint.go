package spread

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/hedge"
)

var ErrShortWindow = errors.New("window too short for cointegration test")

// PValueCache memoizes cointegration p-values across runs so parameter sweeps
// over the same pair skip recomputation. Implementations live in the provider
// package; a nil cache disables memoization.
type PValueCache interface {
	GetPValue(ctx context.Context, key string) (float64, bool)
	SetPValue(ctx context.Context, key string, p float64)
}

// EngleGrangerTest runs the two-step Engle-Granger cointegration test: OLS of
// y on x with an intercept, then an augmented Dickey-Fuller regression (no
// constant) with a fixed number of lagged difference terms on the residuals.
// It returns the ADF tau statistic and its p-value.
//
// The p-value interpolates the MacKinnon (2010) finite-sample response
// surface for the two-variable, constant-trend case through its published
// 1/5/10% points, log-linearly between them and clamped outside. The
// three-point surface is accurate where the gate decides, p between roughly
// 0.01 and 0.10.
func EngleGrangerTest(y, x []float64, lags int) (tau, p float64, err error) {
	if lags < 0 {
		return 0, 0, fmt.Errorf("adf lags must be >= 0, got %d", lags)
	}
	if len(y) != len(x) {
		return 0, 0, fmt.Errorf("cointegration test: length mismatch %d vs %d", len(y), len(x))
	}
	alpha, beta, err := hedge.StaticOLS(y, x)
	if err != nil {
		return 0, 0, fmt.Errorf("cointegration test: %w", err)
	}
	resid := make([]float64, 0, len(y))
	for i := range y {
		if math.IsNaN(y[i]) || math.IsNaN(x[i]) {
			continue
		}
		resid = append(resid, y[i]-alpha-beta*x[i])
	}

	tau, err = adfTau(resid, lags)
	if err != nil {
		return 0, 0, err
	}
	return tau, mackinnonP(tau, len(resid)), nil
}

// adfTau fits de_t = gamma*e_{t-1} + sum_i delta_i*de_{t-i} and returns the
// t-statistic of gamma. The residuals of the cointegrating regression are
// mean zero by construction, so the ADF regression carries no constant.
func adfTau(e []float64, lags int) (float64, error) {
	m := len(e)
	nObs := m - 1 - lags
	k := lags + 1
	if nObs < k+10 {
		return 0, fmt.Errorf("%w: %d usable observations for %d regressors", ErrShortWindow, nObs, k)
	}

	de := make([]float64, m-1)
	for i := 1; i < m; i++ {
		de[i-1] = e[i] - e[i-1]
	}

	// Row t of the design matrix: [e_t, de_{t-1}, ..., de_{t-lags}] against
	// target de_t, where e_t is the level lagged one period relative to the
	// difference it explains.
	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xtz := make([]float64, k)
	row := make([]float64, k)
	for t := lags; t < len(de); t++ {
		row[0] = e[t]
		for j := 1; j <= lags; j++ {
			row[j] = de[t-j]
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xtz[i] += row[i] * de[t]
		}
	}

	inv, err := invertSymmetric(xtx)
	if err != nil {
		return 0, fmt.Errorf("adf regression: %w", err)
	}
	coef := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coef[i] += inv[i][j] * xtz[j]
		}
	}

	var rss float64
	for t := lags; t < len(de); t++ {
		fit := coef[0] * e[t]
		for j := 1; j <= lags; j++ {
			fit += coef[j] * de[t-j]
		}
		r := de[t] - fit
		rss += r * r
	}
	sigma2 := rss / float64(nObs-k)
	se := math.Sqrt(sigma2 * inv[0][0])
	if se == 0 || math.IsNaN(se) {
		return 0, fmt.Errorf("adf regression: %w: zero standard error", ErrShortWindow)
	}
	return coef[0] / se, nil
}

// MacKinnon (2010) response-surface coefficients for the Engle-Granger tau
// distribution, two variables, constant trend: cv = b0 + b1/T + b2/T^2.
var mackinnonSurface = []struct {
	p  float64
	b0 float64
	b1 float64
	b2 float64
}{
	{0.01, -3.89644, -10.9519, -22.527},
	{0.05, -3.33613, -6.1101, -6.823},
	{0.10, -3.04445, -4.2412, -2.720},
}

func mackinnonP(tau float64, t int) float64 {
	tf := float64(t)
	cv := make([]float64, len(mackinnonSurface))
	lp := make([]float64, len(mackinnonSurface))
	for i, s := range mackinnonSurface {
		cv[i] = s.b0 + s.b1/tf + s.b2/(tf*tf)
		lp[i] = math.Log(s.p)
	}
	var logP float64
	switch {
	case tau <= cv[0]:
		logP = lp[0] + (tau-cv[0])*(lp[1]-lp[0])/(cv[1]-cv[0])
	case tau >= cv[len(cv)-1]:
		n := len(cv) - 1
		logP = lp[n] + (tau-cv[n])*(lp[n]-lp[n-1])/(cv[n]-cv[n-1])
	default:
		for i := 1; i < len(cv); i++ {
			if tau <= cv[i] {
				logP = lp[i-1] + (tau-cv[i-1])*(lp[i]-lp[i-1])/(cv[i]-cv[i-1])
				break
			}
		}
	}
	p := math.Exp(logP)
	if p < 1e-6 {
		p = 1e-6
	}
	if p > 0.9999 {
		p = 0.9999
	}
	return p
}

// GateConfig parameterizes the rolling cointegration gate.
type GateConfig struct {
	Window     int     // trailing window length per test
	PThreshold float64 // gate opens when p <= threshold
	Lags       int     // ADF lag order
	Stride     int     // evaluate every Stride timestamps; <=1 means every one
	Cache      PValueCache
	CacheKey   string // cache key prefix, typically pair+window
}

// RollingCointegrationGate evaluates the Engle-Granger test on the trailing
// window ending strictly before each timestamp and opens the gate when the
// p-value is at or below the threshold. Timestamps without a full trailing
// window fail closed, as do windows on which the test itself degenerates.
//
// The gate is walk-forward: the value at t sees only data before t. With
// Stride > 1 the test runs every Stride timestamps and the last decision is
// carried forward in between, a documented approximation for the most
// expensive primitive in the pipeline (one hypothesis test per timestamp).
func RollingCointegrationGate(ctx context.Context, y, x []float64, cfg GateConfig) ([]bool, error) {
	n := len(y)
	if len(x) != n {
		return nil, fmt.Errorf("cointegration gate: length mismatch %d vs %d", n, len(x))
	}
	if cfg.Window < 20 {
		return nil, fmt.Errorf("%w: gate window %d, need at least 20", ErrShortWindow, cfg.Window)
	}
	stride := cfg.Stride
	if stride < 1 {
		stride = 1
	}

	gate := make([]bool, n)
	lastGate := false
	tested := 0
	for t := cfg.Window; t < n; t++ {
		if (t-cfg.Window)%stride != 0 {
			gate[t] = lastGate
			continue
		}
		p, ok := cachedP(ctx, cfg, t)
		if !ok {
			var err error
			_, p, err = EngleGrangerTest(y[t-cfg.Window:t], x[t-cfg.Window:t], cfg.Lags)
			if err != nil {
				// Degenerate window: fail closed and move on.
				log.Debug().Err(err).Int("t", t).Msg("cointegration test degenerate, gate closed")
				lastGate = false
				continue
			}
			storeP(ctx, cfg, t, p)
		}
		tested++
		lastGate = p <= cfg.PThreshold
		gate[t] = lastGate
	}
	log.Debug().Int("tests", tested).Int("window", cfg.Window).Int("stride", stride).
		Msg("rolling cointegration gate evaluated")
	return gate, nil
}

func cachedP(ctx context.Context, cfg GateConfig, t int) (float64, bool) {
	if cfg.Cache == nil {
		return 0, false
	}
	return cfg.Cache.GetPValue(ctx, fmt.Sprintf("%s:%d", cfg.CacheKey, t))
}

func storeP(ctx context.Context, cfg GateConfig, t int, p float64) {
	if cfg.Cache == nil {
		return
	}
	cfg.Cache.SetPValue(ctx, fmt.Sprintf("%s:%d", cfg.CacheKey, t), p)
}

// invertSymmetric inverts a small symmetric matrix via Gauss-Jordan
// elimination with partial pivoting.
func invertSymmetric(a [][]float64) ([][]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], a[i])
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, errors.New("singular design matrix")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		pv := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= f * aug[col][j]
			}
		}
	}
	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = aug[i][n:]
	}
	return inv, nil
}
