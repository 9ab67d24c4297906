package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "spreadrun"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// Optional .env for Postgres/Redis DSNs; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Mean-reversion pair spread evaluation and backtesting",
		Version: version,
		Long: `spreadrun evaluates whether two co-moving price series trade as a
mean-reverting spread and simulates a rule-based strategy against it:
adaptive hedge ratios, a rolling cointegration gate, purged walk-forward
forecasting and a cost-aware position simulator.`,
	}
	rootCmd.AddCommand(backtestCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
