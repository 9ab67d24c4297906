package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, ticker, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(content), 0o644))
}

func date(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestCSVProviderLoadsAndAlignsPair(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL", "date,close\n2024-01-02,185.5\n2024-01-03,186.0\n2024-01-04,184.0\n")
	writeCSV(t, dir, "MSFT", "date,close\n2024-01-03,370.0\n2024-01-04,372.5\n2024-01-05,371.0\n")

	p := NewCSVProvider(dir)
	y, x, err := p.LoadPair(context.Background(), "AAPL", "MSFT", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)

	// Intersection of the two calendars.
	require.Equal(t, 2, y.Len())
	assert.Equal(t, date("2024-01-03"), y.Times[0])
	assert.Equal(t, []float64{186.0, 184.0}, y.Values)
	assert.Equal(t, []float64{370.0, 372.5}, x.Values)
}

func TestCSVProviderFiltersDateRange(t *testing.T) {
	dir := t.TempDir()
	rows := "date,close\n2024-01-02,10\n2024-02-02,11\n2024-03-02,12\n"
	writeCSV(t, dir, "AAA", rows)
	writeCSV(t, dir, "BBB", rows)

	p := NewCSVProvider(dir)
	y, _, err := p.LoadPair(context.Background(), "AAA", "BBB", date("2024-02-01"), date("2024-02-28"))
	require.NoError(t, err)
	require.Equal(t, 1, y.Len())
	assert.Equal(t, 11.0, y.Values[0])
}

func TestCSVProviderMissingTicker(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAA", "date,close\n2024-01-02,10\n")

	p := NewCSVProvider(dir)
	_, _, err := p.LoadPair(context.Background(), "AAA", "ZZZ", date("2024-01-01"), date("2024-01-31"))
	require.ErrorIs(t, err, ErrNoData)
}

func TestCSVProviderEmptyRange(t *testing.T) {
	dir := t.TempDir()
	rows := "date,close\n2024-01-02,10\n"
	writeCSV(t, dir, "AAA", rows)
	writeCSV(t, dir, "BBB", rows)

	p := NewCSVProvider(dir)
	_, _, err := p.LoadPair(context.Background(), "AAA", "BBB", date("2025-01-01"), date("2025-01-31"))
	require.ErrorIs(t, err, ErrNoData)
}

func TestCSVProviderRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAA", "date,close\nnot-a-date,10\n")
	writeCSV(t, dir, "BBB", "date,close\n2024-01-02,10\n")

	p := NewCSVProvider(dir)
	_, _, err := p.LoadPair(context.Background(), "AAA", "BBB", date("2024-01-01"), date("2024-01-31"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad date")
}
