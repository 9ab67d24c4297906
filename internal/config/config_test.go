package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.0002, cfg.CostPerLeg(), 1e-15, "2 bps per leg")
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	body := `
pair:
  ticker_y: KO
  ticker_x: PEP
strategy:
  entry_z: 2.0
hedge:
  mode: kalman
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "KO", cfg.Pair.TickerY)
	assert.Equal(t, "PEP", cfg.Pair.TickerX)
	assert.Equal(t, 2.0, cfg.Strategy.EntryZ)
	assert.Equal(t, "kalman", cfg.Hedge.Mode)
	// Untouched fields keep their defaults.
	assert.Equal(t, 60, cfg.Strategy.ZWindow)
	assert.Equal(t, "csv", cfg.Data.Source)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingOrBadFile(t *testing.T) {
	_, err := Load("/nonexistent/run.yaml")
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pair: ["), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.Pair.TickerY = "" },
		func(c *Config) { c.Pair.TickerX = c.Pair.TickerY },
		func(c *Config) { c.Pair.Start = "not-a-date" },
		func(c *Config) { c.Pair.End = "2019-01-01" }, // before start
		func(c *Config) { c.Strategy.EntryZ = 0 },
		func(c *Config) { c.Strategy.EntryZ = -1 },
		func(c *Config) { c.Strategy.ExitZ = 5 }, // >= entry
		func(c *Config) { c.Strategy.CostBps = -1 },
		func(c *Config) { c.Strategy.ZWindow = 2 },
		func(c *Config) { c.Strategy.ZWindow = 99999 },
		func(c *Config) { c.Strategy.TimeStop = -1 },
		func(c *Config) { c.Strategy.VolTarget = true; c.Strategy.ZCap = 0 },
		func(c *Config) { c.Hedge.Mode = "ewma" },
		func(c *Config) { c.Hedge.Window = 1 },
		func(c *Config) { c.Coint.Window = 5 },
		func(c *Config) { c.Coint.PThreshold = 0 },
		func(c *Config) { c.Coint.PThreshold = 1.5 },
		func(c *Config) { c.Model.Folds = 1 },
		func(c *Config) { c.Model.Embargo = -1 },
		func(c *Config) { c.Meta.Enabled = true; c.Meta.Horizon = 0 },
		func(c *Config) { c.Meta.Enabled = true; c.Meta.Threshold = 1.2 },
		func(c *Config) { c.Data.Source = "ftp" },
		func(c *Config) { c.Data.CSVDir = "" },
		func(c *Config) { c.Data.Source = "postgres"; c.Data.PostgresDSN = "" },
	}
	for i, m := range mutate {
		cfg := Default()
		m(cfg)
		err := cfg.Validate()
		require.Error(t, err, "case %d", i)
		assert.ErrorIs(t, err, ErrInvalidConfig, "case %d", i)
	}
}
