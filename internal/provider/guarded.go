package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// GuardConfig tunes the protective wrapper around a provider.
type GuardConfig struct {
	RPS              float64       // token-bucket refill rate
	Burst            int           // token-bucket capacity
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // time before the breaker half-opens
}

// DefaultGuardConfig is conservative enough for any daily-bar source.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RPS:              5,
		Burst:            10,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Guarded wraps an AlignedPriceProvider with a rate limiter and a circuit
// breaker, so a misbehaving collaborator degrades to fast failures instead of
// hammering its backend.
type Guarded struct {
	inner   AlignedPriceProvider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuarded(inner AlignedPriceProvider, cfg GuardConfig) *Guarded {
	settings := gobreaker.Settings{
		Name:    "price-provider",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("provider circuit breaker state change")
		},
	}
	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

type pair struct {
	y, x timeseries.Series
}

func (g *Guarded) LoadPair(ctx context.Context, tickerY, tickerX string, start, end time.Time) (timeseries.Series, timeseries.Series, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return timeseries.Series{}, timeseries.Series{}, fmt.Errorf("rate limiter: %w", err)
	}
	result, err := g.breaker.Execute(func() (interface{}, error) {
		y, x, err := g.inner.LoadPair(ctx, tickerY, tickerX, start, end)
		if err != nil {
			return nil, err
		}
		return pair{y: y, x: x}, nil
	})
	if err != nil {
		return timeseries.Series{}, timeseries.Series{}, err
	}
	p := result.(pair)
	return p.y, p.x, nil
}
