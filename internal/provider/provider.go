// Package provider supplies aligned price pairs to the pipeline. The core
// consumes only the AlignedPriceProvider contract; the CSV and Postgres
// implementations, the guarded wrapper and the redis cache are collaborator
// plumbing the core never depends on directly.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// ErrNoData marks a provider returning nothing for the requested range. No
// retry policy lives here; retries, if any, belong to the collaborator.
var ErrNoData = errors.New("no price data for requested range")

// AlignedPriceProvider returns two price series sharing an identical ordered
// timestamp index with no missing values inside the range.
type AlignedPriceProvider interface {
	LoadPair(ctx context.Context, tickerY, tickerX string, start, end time.Time) (y, x timeseries.Series, err error)
}

func alignOrFail(tickerY, tickerX string, y, x timeseries.Series) (timeseries.Series, timeseries.Series, error) {
	ya, xa, err := timeseries.AlignPair(y, x)
	if err != nil {
		return timeseries.Series{}, timeseries.Series{}, fmt.Errorf("%w: aligning %s/%s: %v", ErrNoData, tickerY, tickerX, err)
	}
	return ya, xa, nil
}
