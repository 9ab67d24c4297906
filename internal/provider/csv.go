package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// CSVProvider reads daily closes from <dir>/<TICKER>.csv files with a
// "date,close" header.
type CSVProvider struct {
	Dir string
}

func NewCSVProvider(dir string) *CSVProvider { return &CSVProvider{Dir: dir} }

func (p *CSVProvider) LoadPair(ctx context.Context, tickerY, tickerX string, start, end time.Time) (timeseries.Series, timeseries.Series, error) {
	y, err := p.loadSeries(ctx, tickerY, start, end)
	if err != nil {
		return timeseries.Series{}, timeseries.Series{}, err
	}
	x, err := p.loadSeries(ctx, tickerX, start, end)
	if err != nil {
		return timeseries.Series{}, timeseries.Series{}, err
	}
	return alignOrFail(tickerY, tickerX, y, x)
}

func (p *CSVProvider) loadSeries(ctx context.Context, ticker string, start, end time.Time) (timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return timeseries.Series{}, err
	}
	path := filepath.Join(p.Dir, strings.ToUpper(ticker)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("%w: ticker %s: %v", ErrNoData, ticker, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var (
		times  []time.Time
		values []float64
	)
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			continue
		}
		ts, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("bad date on line %d of %s: %w", i+1, path, err)
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("bad close on line %d of %s: %w", i+1, path, err)
		}
		times = append(times, ts)
		values = append(values, v)
	}
	if len(times) == 0 {
		return timeseries.Series{}, fmt.Errorf("%w: ticker %s between %s and %s", ErrNoData,
			ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	s, err := timeseries.New(times, values)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("loading %s: %w", ticker, err)
	}
	log.Debug().Str("ticker", ticker).Int("rows", s.Len()).Msg("loaded csv series")
	return s, nil
}
