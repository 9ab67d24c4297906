package pipeline

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/forecast"
	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// fixedPairProvider serves one synthetic aligned pair regardless of range.
type fixedPairProvider struct {
	y, x timeseries.Series
}

func (p *fixedPairProvider) LoadPair(context.Context, string, string, time.Time, time.Time) (timeseries.Series, timeseries.Series, error) {
	return p.y, p.x, nil
}

// syntheticPair builds a cointegrated pair y = 5 + 1.5*x + AR(1) noise on a
// daily calendar.
func syntheticPair(n int, seed int64) *fixedPairProvider {
	rng := rand.New(rand.NewSource(seed))
	times := make([]time.Time, n)
	y := make([]float64, n)
	x := make([]float64, n)
	t0 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	level := 100.0
	resid := 0.0
	for i := 0; i < n; i++ {
		times[i] = t0.AddDate(0, 0, i)
		level += rng.NormFloat64() * 0.8
		resid = 0.3*resid + rng.NormFloat64()*0.6
		x[i] = level
		y[i] = 5 + 1.5*level + resid
	}
	return &fixedPairProvider{
		y: timeseries.Series{Times: times, Values: y},
		x: timeseries.Series{Times: times, Values: x},
	}
}

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.Strategy.ZWindow = 30
	cfg.Strategy.EntryZ = 1.5
	cfg.Strategy.ExitZ = 0.5
	cfg.Hedge.Mode = "static"
	cfg.Coint.Enabled = false
	cfg.Model.Kind = "naive"
	cfg.Meta.Enabled = false
	return cfg
}

func TestRunEndToEndWithNaiveForecaster(t *testing.T) {
	const n = 400
	cfg := baseConfig()
	r := NewRunner(cfg, syntheticPair(n, 42), nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, n, report.AlignedRows)
	// The z-score needs a full 30-observation window and the feature lags
	// reach 5 deeper into it; the final timestamp has no target.
	assert.Equal(t, n-cfg.Strategy.ZWindow-forecast.MaxLag, report.TradedRows)

	assert.InDelta(t, 1.5, report.Diagnostics.StaticBeta, 0.1)
	assert.Less(t, report.Diagnostics.HalfLifeDays, 20.0, "fast-reverting synthetic residual")
	assert.Equal(t, 1.0, report.Diagnostics.GateCoverage, "no gate configured")

	require.NotNil(t, report.Result)
	require.Len(t, report.Result.Positions, report.TradedRows)
	require.Len(t, report.Result.Timestamps, report.TradedRows)
	for i, p := range report.Result.Positions {
		assert.Contains(t, []int{-1, 0, 1}, p, "position %d", i)
	}
	for i, e := range report.Result.Equity {
		assert.False(t, math.IsNaN(e) || math.IsInf(e, 0), "equity %d", i)
	}
	assert.False(t, math.IsNaN(report.Performance.Sharpe))
	assert.False(t, math.IsInf(report.Performance.Sharpe, 0))
	assert.GreaterOrEqual(t, report.Performance.Turnover, 0.0)
}

func TestRunIsDeterministicAcrossInvocations(t *testing.T) {
	cfg := baseConfig()
	provider := syntheticPair(400, 7)

	first, err := NewRunner(cfg, provider, nil).Run(context.Background())
	require.NoError(t, err)
	second, err := NewRunner(cfg, provider, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Result.Positions, second.Result.Positions)
	assert.Equal(t, first.Result.Returns, second.Result.Returns)
	assert.Equal(t, first.Performance, second.Performance)
}

func TestRunWithRidgeAndCointegrationGate(t *testing.T) {
	cfg := baseConfig()
	cfg.Model.Kind = "ridge"
	cfg.Coint.Enabled = true
	cfg.Coint.Window = 60
	cfg.Coint.Stride = 5

	report, err := NewRunner(cfg, syntheticPair(400, 42), nil).Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.Diagnostics.GateCoverage, 0.0)
	assert.LessOrEqual(t, report.Diagnostics.GateCoverage, 1.0)
	assert.Greater(t, report.Diagnostics.GateCoverage, 0.5, "cointegrated pair keeps the gate mostly open")
	assert.Less(t, report.Diagnostics.FullSampleP, 0.05)
	assert.Greater(t, report.Diagnostics.ModelRMSE, 0.0)
}

func TestRunWithVolTargetSizing(t *testing.T) {
	cfg := baseConfig()
	cfg.Strategy.VolTarget = true

	report, err := NewRunner(cfg, syntheticPair(400, 11), nil).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Result.Sizing)
	for i, s := range report.Result.Sizing {
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "sizing %d", i)
		assert.LessOrEqual(t, math.Abs(s), cfg.Strategy.MaxSize, "sizing %d", i)
	}
}

func TestRunWithMetaGateEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.Model.Kind = "ridge"
	cfg.Meta.Enabled = true

	// The run completes whether or not the meta dataset is rich enough to
	// train the gate; a thin dataset downgrades to an ungated run.
	report, err := NewRunner(cfg, syntheticPair(500, 42), nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	if report.Diagnostics.MetaGateUsed {
		assert.LessOrEqual(t, report.Diagnostics.GateCoverage, 1.0)
	}
}

func TestRunRejectsShortHistory(t *testing.T) {
	cfg := baseConfig()
	_, err := NewRunner(cfg, syntheticPair(20, 1), nil).Run(context.Background())
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Strategy.EntryZ = 0
	_, err := NewRunner(cfg, syntheticPair(400, 1), nil).Run(context.Background())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
