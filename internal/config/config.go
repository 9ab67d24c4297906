// Package config loads and validates the run configuration. Validation runs
// before any computation begins: an invalid configuration is a single
// descriptive failure, never a partially computed run.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks input-validity failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Window bounds accepted for any rolling statistic.
const (
	MinWindow = 5
	MaxWindow = 2520 // ten business years
)

type PairConfig struct {
	TickerY string `yaml:"ticker_y"`
	TickerX string `yaml:"ticker_x"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

type DataConfig struct {
	Source        string `yaml:"source"` // csv or postgres
	CSVDir        string `yaml:"csv_dir"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`
	RedisAddr     string `yaml:"redis_addr"` // optional p-value cache
}

type StrategyConfig struct {
	EntryZ    float64 `yaml:"entry_z"`
	ExitZ     float64 `yaml:"exit_z"`
	CostBps   float64 `yaml:"cost_bps"` // per leg, basis points
	ZWindow   int     `yaml:"z_window"`
	TimeStop  int     `yaml:"time_stop"` // bars; 0 disables
	VolTarget bool    `yaml:"vol_target"`
	VolWindow int     `yaml:"vol_window"`
	ZCap      float64 `yaml:"z_cap"`
	MaxSize   float64 `yaml:"max_size"`
}

type HedgeConfig struct {
	Mode         string  `yaml:"mode"` // static, rolling, rls, kalman
	Window       int     `yaml:"window"`
	RLSLambda    float64 `yaml:"rls_lambda"`
	KalmanQ      float64 `yaml:"kalman_q"`
	KalmanRScale float64 `yaml:"kalman_r_scale"`
}

type CointConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Window     int     `yaml:"window"`
	PThreshold float64 `yaml:"p_threshold"`
	Lags       int     `yaml:"lags"`
	Stride     int     `yaml:"stride"` // 1 tests every timestamp
}

type ModelConfig struct {
	Kind    string `yaml:"kind"` // naive or ridge
	Folds   int    `yaml:"folds"`
	Embargo int    `yaml:"embargo"`
}

type MetaConfig struct {
	Enabled     bool    `yaml:"enabled"`
	PTMult      float64 `yaml:"pt_mult"`
	SLMult      float64 `yaml:"sl_mult"`
	Horizon     int     `yaml:"horizon"`
	Threshold   float64 `yaml:"threshold"`
	TrainEntryZ float64 `yaml:"train_entry_z"` // 0 means use entry_z
}

type Config struct {
	Pair      PairConfig     `yaml:"pair"`
	Data      DataConfig     `yaml:"data"`
	Strategy  StrategyConfig `yaml:"strategy"`
	Hedge     HedgeConfig    `yaml:"hedge"`
	Coint     CointConfig    `yaml:"coint"`
	Model     ModelConfig    `yaml:"model"`
	Meta      MetaConfig     `yaml:"meta"`
	OutputDir string         `yaml:"output_dir"`
	LogLevel  string         `yaml:"log_level"`
}

// Default mirrors the research pipeline's defaults.
func Default() *Config {
	return &Config{
		Pair: PairConfig{TickerY: "AAPL", TickerX: "MSFT", Start: "2020-01-01", End: "2024-12-31"},
		Data: DataConfig{Source: "csv", CSVDir: "data"},
		Strategy: StrategyConfig{
			EntryZ: 1.5, ExitZ: 0.0, CostBps: 2.0, ZWindow: 60,
			VolWindow: 20, ZCap: 3.0, MaxSize: 10,
		},
		Hedge: HedgeConfig{Mode: "rolling", Window: 120, RLSLambda: 0.99, KalmanQ: 1e-5, KalmanRScale: 1e-2},
		Coint: CointConfig{Enabled: true, Window: 252, PThreshold: 0.05, Lags: 1, Stride: 1},
		Model: ModelConfig{Kind: "ridge", Folds: 5, Embargo: 5},
		Meta:  MetaConfig{PTMult: 1.5, SLMult: 1.0, Horizon: 20, Threshold: 0.55},
		OutputDir: "artifacts",
		LogLevel:  "info",
	}
}

// Load reads a yaml file over the defaults. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// CostPerLeg converts the configured basis points to a decimal fraction.
func (c *Config) CostPerLeg() float64 { return c.Strategy.CostBps / 1e4 }

// StartTime / EndTime parse the configured date range.
func (c *Config) StartTime() (time.Time, error) {
	return time.Parse("2006-01-02", c.Pair.Start)
}

func (c *Config) EndTime() (time.Time, error) {
	return time.Parse("2006-01-02", c.Pair.End)
}

// Validate rejects the configuration before any computation begins.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Pair.TickerY == "" || c.Pair.TickerX == "" {
		return fail("both tickers are required")
	}
	if c.Pair.TickerY == c.Pair.TickerX {
		return fail("tickers must differ, got %s twice", c.Pair.TickerY)
	}
	start, err := c.StartTime()
	if err != nil {
		return fail("bad start date %q: %v", c.Pair.Start, err)
	}
	end, err := c.EndTime()
	if err != nil {
		return fail("bad end date %q: %v", c.Pair.End, err)
	}
	if !end.After(start) {
		return fail("end date %s must be after start date %s", c.Pair.End, c.Pair.Start)
	}

	s := c.Strategy
	if !(s.EntryZ > 0) || math.IsInf(s.EntryZ, 0) || math.IsNaN(s.EntryZ) {
		return fail("entry_z must be finite and > 0, got %g", s.EntryZ)
	}
	if s.ExitZ >= s.EntryZ || math.IsInf(s.ExitZ, 0) || math.IsNaN(s.ExitZ) {
		return fail("exit_z must be finite and < entry_z (%g), got %g", s.EntryZ, s.ExitZ)
	}
	if s.CostBps < 0 {
		return fail("cost_bps must be >= 0, got %g", s.CostBps)
	}
	if s.ZWindow < MinWindow || s.ZWindow > MaxWindow {
		return fail("z_window %d outside [%d, %d]", s.ZWindow, MinWindow, MaxWindow)
	}
	if s.TimeStop < 0 {
		return fail("time_stop must be >= 0, got %d", s.TimeStop)
	}
	if s.VolTarget && (s.VolWindow < 2 || s.ZCap <= 0 || s.MaxSize <= 0) {
		return fail("vol targeting needs vol_window >= 2, z_cap > 0 and max_size > 0")
	}

	switch c.Hedge.Mode {
	case "static", "rls", "kalman":
	case "rolling":
		if c.Hedge.Window < MinWindow || c.Hedge.Window > MaxWindow {
			return fail("hedge window %d outside [%d, %d]", c.Hedge.Window, MinWindow, MaxWindow)
		}
	default:
		return fail("unknown hedge mode %q", c.Hedge.Mode)
	}

	if c.Coint.Enabled {
		if c.Coint.Window < 20 || c.Coint.Window > MaxWindow {
			return fail("coint window %d outside [20, %d]", c.Coint.Window, MaxWindow)
		}
		if c.Coint.PThreshold <= 0 || c.Coint.PThreshold >= 1 {
			return fail("coint p_threshold must be in (0,1), got %g", c.Coint.PThreshold)
		}
	}

	if c.Model.Folds < 2 {
		return fail("model folds must be >= 2, got %d", c.Model.Folds)
	}
	if c.Model.Embargo < 0 {
		return fail("model embargo must be >= 0, got %d", c.Model.Embargo)
	}

	if c.Meta.Enabled {
		if c.Meta.PTMult <= 0 || c.Meta.SLMult <= 0 || c.Meta.Horizon < 1 {
			return fail("meta gate needs pt_mult > 0, sl_mult > 0 and horizon >= 1")
		}
		if c.Meta.Threshold <= 0 || c.Meta.Threshold >= 1 {
			return fail("meta threshold must be in (0,1), got %g", c.Meta.Threshold)
		}
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVDir == "" {
			return fail("csv source needs csv_dir")
		}
	case "postgres":
		if c.Data.PostgresDSN == "" {
			return fail("postgres source needs postgres_dsn")
		}
	default:
		return fail("unknown data source %q (want csv or postgres)", c.Data.Source)
	}
	return nil
}
