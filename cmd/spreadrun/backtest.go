package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spreadrun/spreadrun/internal/backtest"
	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/pipeline"
	"github.com/spreadrun/spreadrun/internal/provider"
	"github.com/spreadrun/spreadrun/internal/spread"
)

func backtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the pair spread backtest pipeline",
		Long:  "Load an aligned price pair, estimate the hedge ratio, gate on rolling cointegration, forecast the spread change and simulate the strategy with costs.",
		RunE:  runBacktest,
	}
	addBacktestFlags(cmd.Flags())
	return cmd
}

func addBacktestFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to yaml config (defaults apply when empty)")
	fs.String("tickers", "", "override pair as Y,X, e.g. AAPL,MSFT")
	fs.Float64("entry-z", 0, "override entry z threshold")
	fs.Float64("exit-z", 0, "override exit z threshold (pass with --entry-z)")
	fs.Int("z-window", 0, "override rolling z window")
	fs.String("hedge-mode", "", "override hedge mode: static, rolling, rls, kalman")
	fs.Bool("no-coint-gate", false, "disable the rolling cointegration gate")
	fs.String("log-level", "", "debug, info, warn or error")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(fs, cfg)
	setLogLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	prices, cache, cleanup, err := buildCollaborators(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := pipeline.NewRunner(cfg, prices, cache)
	report, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	writer := backtest.NewWriter(cfg.OutputDir)
	if _, err := writer.WriteJSON("report", report); err != nil {
		return err
	}
	path, err := writer.WriteJSON("series", report.Result)
	if err != nil {
		return err
	}

	log.Info().
		Str("pair", report.TickerY+"/"+report.TickerX).
		Str("hedge", report.HedgeMode).
		Float64("sharpe", report.Performance.Sharpe).
		Float64("max_drawdown", report.Performance.MaxDrawdown).
		Float64("hit_rate", report.Performance.HitRate).
		Float64("total_return", report.Performance.TotalReturn).
		Str("artifacts", path).
		Msg("backtest finished")
	return nil
}

func applyOverrides(fs *pflag.FlagSet, cfg *config.Config) {
	if v, _ := fs.GetString("tickers"); v != "" {
		parts := strings.SplitN(v, ",", 2)
		if len(parts) == 2 {
			cfg.Pair.TickerY = strings.ToUpper(strings.TrimSpace(parts[0]))
			cfg.Pair.TickerX = strings.ToUpper(strings.TrimSpace(parts[1]))
		}
	}
	if v, _ := fs.GetFloat64("entry-z"); v != 0 {
		cfg.Strategy.EntryZ = v
	}
	if fs.Changed("exit-z") {
		cfg.Strategy.ExitZ, _ = fs.GetFloat64("exit-z")
	}
	if v, _ := fs.GetInt("z-window"); v != 0 {
		cfg.Strategy.ZWindow = v
	}
	if v, _ := fs.GetString("hedge-mode"); v != "" {
		cfg.Hedge.Mode = v
	}
	if v, _ := fs.GetBool("no-coint-gate"); v {
		cfg.Coint.Enabled = false
	}
	if v, _ := fs.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
}

// buildCollaborators wires the configured price provider (always behind the
// rate-limited circuit breaker) and the optional redis p-value cache.
func buildCollaborators(cmd *cobra.Command, cfg *config.Config) (provider.AlignedPriceProvider, spread.PValueCache, func(), error) {
	cleanup := func() {}

	var inner provider.AlignedPriceProvider
	switch cfg.Data.Source {
	case "csv":
		inner = provider.NewCSVProvider(cfg.Data.CSVDir)
	case "postgres":
		db, err := provider.OpenPostgres(cfg.Data.PostgresDSN)
		if err != nil {
			return nil, nil, cleanup, err
		}
		inner = provider.NewPostgresProvider(db, cfg.Data.PostgresTable, 0)
		cleanup = func() { _ = db.Close() }
	default:
		return nil, nil, cleanup, fmt.Errorf("%w: unknown data source %q", config.ErrInvalidConfig, cfg.Data.Source)
	}
	prices := provider.NewGuarded(inner, provider.DefaultGuardConfig())

	var cache spread.PValueCache
	if cfg.Data.RedisAddr != "" {
		client, err := provider.OpenRedis(cmd.Context(), cfg.Data.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Data.RedisAddr).Msg("redis unavailable, p-value cache disabled")
		} else {
			cache = provider.NewRedisCache(client, "", 0)
			prev := cleanup
			cleanup = func() { _ = client.Close(); prev() }
		}
	}
	return prices, cache, cleanup, nil
}
