// Package pipeline wires the full run: load pair, estimate the hedge ratio,
// gate on rolling cointegration, forecast the next spread change through
// purged cross-validation, walk the position state machine and simulate
// cost-adjusted PnL. One Runner executes one parameter configuration over one
// pair; concurrency across configurations belongs to the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/backtest"
	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/cv"
	"github.com/spreadrun/spreadrun/internal/forecast"
	"github.com/spreadrun/spreadrun/internal/hedge"
	"github.com/spreadrun/spreadrun/internal/label"
	"github.com/spreadrun/spreadrun/internal/metrics"
	"github.com/spreadrun/spreadrun/internal/position"
	"github.com/spreadrun/spreadrun/internal/provider"
	"github.com/spreadrun/spreadrun/internal/spread"
	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// ErrInsufficientData marks a run with fewer rows than a downstream stage
// requires; the message explains the shortfall.
var ErrInsufficientData = errors.New("insufficient data")

// Diagnostics are informational outputs that do not affect trading.
type Diagnostics struct {
	StaticBeta   float64 `json:"static_beta"`
	FullSampleP  float64 `json:"full_sample_p"`
	HalfLifeDays float64 `json:"half_life_days"`
	GateCoverage float64 `json:"gate_coverage"` // share of traded rows with entries allowed
	ModelRMSE    float64 `json:"model_rmse"`
	NaiveRMSE    float64 `json:"naive_rmse"`
	MetaGateUsed bool    `json:"meta_gate_used"`
}

// Performance summarizes the simulated strategy.
type Performance struct {
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	HitRate     float64 `json:"hit_rate"`
	TotalReturn float64 `json:"total_return"`
	Turnover    float64 `json:"turnover"`
	Trades      int     `json:"trades"`
	Entries     int     `json:"entries"`
}

// Report is the sanitized, presentation-safe output of one run.
type Report struct {
	RunID       string           `json:"run_id"`
	TickerY     string           `json:"ticker_y"`
	TickerX     string           `json:"ticker_x"`
	Start       string           `json:"start"`
	End         string           `json:"end"`
	HedgeMode   string           `json:"hedge_mode"`
	AlignedRows int              `json:"aligned_rows"`
	TradedRows  int              `json:"traded_rows"` // aligned rows minus warm-up
	Diagnostics Diagnostics      `json:"diagnostics"`
	Performance Performance      `json:"performance"`
	Result      *backtest.Result `json:"-"` // full series, written as its own artifact
}

// Runner executes one configuration end to end.
type Runner struct {
	cfg    *config.Config
	prices provider.AlignedPriceProvider
	cache  spread.PValueCache // optional, may be nil
}

func NewRunner(cfg *config.Config, prices provider.AlignedPriceProvider, cache spread.PValueCache) *Runner {
	return &Runner{cfg: cfg, prices: prices, cache: cache}
}

// Run executes the full pipeline. It either completes over the whole index
// range or fails outright; nothing is partially computed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	start, _ := r.cfg.StartTime()
	end, _ := r.cfg.EndTime()

	ySeries, xSeries, err := r.prices.LoadPair(ctx, r.cfg.Pair.TickerY, r.cfg.Pair.TickerX, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading pair %s/%s: %w", r.cfg.Pair.TickerY, r.cfg.Pair.TickerX, err)
	}
	y, x, times := ySeries.Values, xSeries.Values, ySeries.Times
	n := len(y)

	minRows := r.cfg.Strategy.ZWindow + forecast.MaxLag + 10
	if r.cfg.Coint.Enabled && r.cfg.Coint.Window+10 > minRows {
		minRows = r.cfg.Coint.Window + 10
	}
	if n < minRows {
		return nil, fmt.Errorf("%w: %d aligned rows, need at least %d for the configured windows",
			ErrInsufficientData, n, minRows)
	}
	log.Info().Str("pair", r.pairKey()).Int("rows", n).Msg("pair loaded")

	// Full-sample cointegration diagnostic and static hedge ratio.
	diag := Diagnostics{}
	if _, beta, err := hedge.StaticOLS(y, x); err == nil {
		diag.StaticBeta = beta
	}
	if _, p, err := spread.EngleGrangerTest(y, x, r.cfg.Coint.Lags); err == nil {
		diag.FullSampleP = p
	} else {
		diag.FullSampleP = math.NaN()
	}

	// Trading hedge ratio; adaptive variants are lagged one period here, at
	// the call site, so no same-bar information reaches position sizing.
	estimator, err := hedge.New(hedge.Config{
		Mode:         r.cfg.Hedge.Mode,
		Window:       r.cfg.Hedge.Window,
		RLSLambda:    r.cfg.Hedge.RLSLambda,
		KalmanQ:      r.cfg.Hedge.KalmanQ,
		KalmanRScale: r.cfg.Hedge.KalmanRScale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	ratio, err := estimator.Estimate(y, x)
	if err != nil {
		return nil, fmt.Errorf("estimating hedge ratio (%s): %w", estimator.Name(), err)
	}
	if estimator.Name() != hedge.ModeStatic {
		ratio.Beta = timeseries.Shift(ratio.Beta, 1)
	}

	// Rolling cointegration gate, walk-forward by construction.
	var gate []bool
	if r.cfg.Coint.Enabled {
		gate, err = spread.RollingCointegrationGate(ctx, y, x, spread.GateConfig{
			Window:     r.cfg.Coint.Window,
			PThreshold: r.cfg.Coint.PThreshold,
			Lags:       r.cfg.Coint.Lags,
			Stride:     r.cfg.Coint.Stride,
			Cache:      r.cache,
			CacheKey:   fmt.Sprintf("%s:%d:%d", r.pairKey(), r.cfg.Coint.Window, r.cfg.Coint.Lags),
		})
		if err != nil {
			return nil, fmt.Errorf("cointegration gate: %w", err)
		}
	}

	s := spread.Compute(y, x, ratio)
	z := spread.ZScore(s, r.cfg.Strategy.ZWindow)
	diag.HalfLifeDays = spread.HalfLife(s)

	// Forecast the next spread change out-of-sample through purged folds.
	fs := forecast.BuildFeatures(y, x, s, z)
	if fs.Len() < 30 {
		return nil, fmt.Errorf("%w: %d complete feature rows after dropping incomplete ones, need at least 30",
			ErrInsufficientData, fs.Len())
	}
	kfold, err := cv.New(r.cfg.Model.Folds, r.cfg.Model.Embargo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	folds := kfold.Split(fs.Len())

	fc, err := forecast.New(r.cfg.Model.Kind, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	predDS, err := fc.FitPredict(fs, folds)
	if err != nil {
		return nil, fmt.Errorf("training %s forecaster: %w", fc.Name(), err)
	}
	diag.ModelRMSE = forecast.RMSE(predDS, fs.Target)
	diag.NaiveRMSE = forecast.RMSE(make([]float64, fs.Len()), fs.Target)

	predZ := predictedZ(s, predDS, fs.Index, r.cfg.Strategy.ZWindow)

	// Optional meta-classifier probability gate.
	allowed := combineGates(gate, nil, n)
	if r.cfg.Meta.Enabled {
		metaGate, used := r.metaGate(fs, predZ, z, n)
		diag.MetaGateUsed = used
		if used {
			allowed = combineGates(gate, metaGate, n)
		}
	}

	// Drop warm-up rows: trading needs both the realized and predicted z.
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(z[i]) && !math.IsNaN(predZ[i]) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no rows survive the z-score and forecast warm-up", ErrInsufficientData)
	}

	zT := take(z, keep)
	predZT := take(predZ, keep)
	betaT := take(ratio.Beta, keep)
	yT, xT := take(y, keep), take(x, keep)
	timesT := takeTimes(times, keep)
	allowedT := takeBool(allowed, keep)

	yRet := timeseries.FillNaN(timeseries.PctChange(yT), 0)
	xRet := timeseries.FillNaN(timeseries.PctChange(xT), 0)
	leg := make([]float64, len(keep))
	for i := range leg {
		leg[i] = yRet[i] - betaT[i]*xRet[i]
	}

	positions, err := position.Run(position.Config{
		EntryZ:   r.cfg.Strategy.EntryZ,
		ExitZ:    r.cfg.Strategy.ExitZ,
		TimeStop: r.cfg.Strategy.TimeStop,
	}, predZT, zT, allowedT)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	var sizing []float64
	if r.cfg.Strategy.VolTarget {
		sizing, err = position.VolTargetSizing(position.SizingConfig{
			VolWindow: r.cfg.Strategy.VolWindow,
			ZCap:      r.cfg.Strategy.ZCap,
			MaxSize:   r.cfg.Strategy.MaxSize,
		}, predZT, leg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
	}

	result, err := backtest.Simulate(positions, leg, sizing, r.cfg.CostPerLeg())
	if err != nil {
		return nil, fmt.Errorf("simulating: %w", err)
	}
	result.Timestamps = timesT

	if allowedT == nil {
		diag.GateCoverage = 1
	} else {
		open := 0
		for _, ok := range allowedT {
			if ok {
				open++
			}
		}
		diag.GateCoverage = float64(open) / float64(len(allowedT))
	}

	report := &Report{
		RunID:       result.RunID,
		TickerY:     r.cfg.Pair.TickerY,
		TickerX:     r.cfg.Pair.TickerX,
		Start:       r.cfg.Pair.Start,
		End:         r.cfg.Pair.End,
		HedgeMode:   estimator.Name(),
		AlignedRows: n,
		TradedRows:  len(keep),
		Diagnostics: diag,
		Performance: Performance{
			Sharpe:      metrics.Sharpe(result.Returns),
			MaxDrawdown: metrics.MaxDrawdown(result.Equity),
			HitRate:     metrics.HitRate(result.Returns),
			TotalReturn: metrics.TotalReturn(result.Equity),
			Turnover:    result.Turnover,
			Trades:      result.Trades,
			Entries:     result.Entries,
		},
		Result: result,
	}
	report.Sanitize()

	log.Info().Str("run_id", report.RunID).
		Float64("sharpe", report.Performance.Sharpe).
		Float64("total_return", report.Performance.TotalReturn).
		Int("trades", report.Performance.Trades).
		Msg("backtest complete")
	return report, nil
}

func (r *Runner) pairKey() string {
	return r.cfg.Pair.TickerY + "-" + r.cfg.Pair.TickerX
}

// metaGate trains the secondary classifier on triple-barrier outcomes and
// returns a per-timestamp entry permission. When the meta dataset is too thin
// the gate is skipped entirely rather than trading on a degenerate fit.
func (r *Runner) metaGate(fs *forecast.FeatureSet, predZ, z []float64, n int) ([]bool, bool) {
	entry := r.cfg.Meta.TrainEntryZ
	if entry <= 0 {
		entry = r.cfg.Strategy.EntryZ
	}
	ds, err := label.BuildMetaDataset(fs.Index, fs.X, predZ, z, label.MetaConfig{
		EntryZ:     entry,
		VolWindow:  r.cfg.Strategy.VolWindow,
		PTMult:     r.cfg.Meta.PTMult,
		SLMult:     r.cfg.Meta.SLMult,
		MaxHorizon: r.cfg.Meta.Horizon,
	})
	if err != nil {
		log.Warn().Err(err).Msg("meta dataset build failed, gate skipped")
		return nil, false
	}
	kfold := cv.PurgedKFold{NSplits: r.cfg.Model.Folds, Embargo: r.cfg.Model.Embargo}
	proba, err := forecast.NewMetaClassifier().FitPredictProba(ds.X, ds.Y, kfold.Split(len(ds.X)))
	if err != nil {
		if errors.Is(err, forecast.ErrMetaTooSmall) {
			log.Warn().Int("rows", len(ds.X)).Msg("meta dataset too small, gate skipped")
		} else {
			log.Warn().Err(err).Msg("meta classifier failed, gate skipped")
		}
		return nil, false
	}

	// Rows without an out-of-sample probability stay closed; entries only
	// ever happen on candidate rows, so everything else is closed by default.
	gate := make([]bool, n)
	for row, idx := range ds.Index {
		if !math.IsNaN(proba[row]) && proba[row] >= r.cfg.Meta.Threshold {
			gate[idx] = true
		}
	}
	return gate, true
}

// predictedZ reconstructs the predicted next-period z-score: the predicted
// next spread level (S_t + forecast change) normalized by the spread's
// current rolling mean and deviation.
func predictedZ(s, predDS []float64, featIndex []int, window int) []float64 {
	n := len(s)
	mu := timeseries.RollingMean(s, window)
	sd := timeseries.RollingStd(s, window, 0)

	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for row, idx := range featIndex {
		d := predDS[row]
		if math.IsNaN(d) || math.IsNaN(s[idx]) || math.IsNaN(mu[idx]) || math.IsNaN(sd[idx]) || sd[idx] == 0 {
			continue
		}
		pz := (s[idx] + d - mu[idx]) / sd[idx]
		if math.IsInf(pz, 0) {
			continue
		}
		out[idx] = pz
	}
	return out
}

func combineGates(coint, meta []bool, n int) []bool {
	if coint == nil && meta == nil {
		return nil
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = (coint == nil || coint[i]) && (meta == nil || meta[i])
	}
	return out
}

// Sanitize maps every non-finite numeric field to 0 so the report is safe to
// hand to any presentation layer.
func (rep *Report) Sanitize() {
	d := &rep.Diagnostics
	d.StaticBeta = timeseries.SanitizeValue(d.StaticBeta)
	d.FullSampleP = timeseries.SanitizeValue(d.FullSampleP)
	d.HalfLifeDays = timeseries.SanitizeValue(d.HalfLifeDays)
	d.GateCoverage = timeseries.SanitizeValue(d.GateCoverage)
	d.ModelRMSE = timeseries.SanitizeValue(d.ModelRMSE)
	d.NaiveRMSE = timeseries.SanitizeValue(d.NaiveRMSE)

	p := &rep.Performance
	p.Sharpe = timeseries.SanitizeValue(p.Sharpe)
	p.MaxDrawdown = timeseries.SanitizeValue(p.MaxDrawdown)
	p.HitRate = timeseries.SanitizeValue(p.HitRate)
	p.TotalReturn = timeseries.SanitizeValue(p.TotalReturn)
	p.Turnover = timeseries.SanitizeValue(p.Turnover)

	if rep.Result != nil {
		timeseries.Sanitize(rep.Result.PnL)
		timeseries.Sanitize(rep.Result.Returns)
		timeseries.Sanitize(rep.Result.Equity)
		if rep.Result.Sizing != nil {
			timeseries.Sanitize(rep.Result.Sizing)
		}
	}
}

func take(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func takeBool(x []bool, idx []int) []bool {
	if x == nil {
		return nil
	}
	out := make([]bool, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func takeTimes(x []time.Time, idx []int) []time.Time {
	out := make([]time.Time, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}
