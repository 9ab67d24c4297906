package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// PostgresProvider reads daily closes from a prices table keyed by symbol
// and timestamp.
type PostgresProvider struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
}

// NewPostgresProvider wraps an open sqlx handle. table defaults to
// "daily_prices" when empty.
func NewPostgresProvider(db *sqlx.DB, table string, timeout time.Duration) *PostgresProvider {
	if table == "" {
		table = "daily_prices"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresProvider{db: db, table: table, timeout: timeout}
}

// OpenPostgres opens and pings a Postgres connection.
func OpenPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

type priceRow struct {
	TS    time.Time `db:"ts"`
	Close float64   `db:"close"`
}

func (p *PostgresProvider) LoadPair(ctx context.Context, tickerY, tickerX string, start, end time.Time) (timeseries.Series, timeseries.Series, error) {
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

func (p *PostgresProvider) loadSeries(ctx context.Context, ticker string, start, end time.Time) (timeseries.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT ts, close FROM %s
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC`, p.table)

	var rows []priceRow
	if err := p.db.SelectContext(ctx, &rows, query, ticker, start, end); err != nil {
		return timeseries.Series{}, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return timeseries.Series{}, fmt.Errorf("%w: ticker %s between %s and %s", ErrNoData,
			ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	times := make([]time.Time, len(rows))
	values := make([]float64, len(rows))
	for i, r := range rows {
		times[i] = r.TS
		values[i] = r.Close
	}
	s, err := timeseries.New(times, values)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("loading %s: %w", ticker, err)
	}
	log.Debug().Str("ticker", ticker).Int("rows", s.Len()).Msg("loaded postgres series")
	return s, nil
}
