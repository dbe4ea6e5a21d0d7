package yfinance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func sampleRows() []models.HistoricalRow {
	return []models.HistoricalRow{
		{Symbol: "AAPL", Date: day(2024, 4, 10), Open: 98, High: 101, Low: 95, Close: 100, Volume: 1000},
		{Symbol: "AAPL", Date: day(2024, 4, 11), Open: 100, High: 112, Low: 99, Close: 104, Volume: 3000},
		{Symbol: "AAPL", Date: day(2024, 4, 12), Open: 104, High: 107, Low: 103, Close: 106, Volume: 2000},
	}
}

func newTestProvider(fetch fetchFunc) *Provider {
	return &Provider{
		fetch: fetch,
		now:   func() time.Time { return day(2024, 4, 15) },
	}
}

func TestSnapshot(t *testing.T) {
	var periods []string
	p := newTestProvider(func(symbol, period string, withQuote bool) (tickerData, error) {
		periods = append(periods, period)
		assert.True(t, withQuote)
		if symbol == "ZZZZ" {
			return tickerData{}, errUnknownSymbol
		}
		return tickerData{Name: "Apple Inc.", Price: 109.2, Rows: sampleRows()}, nil
	})

	snaps, err := p.Snapshot(context.Background(), []string{"AAPL", "ZZZZ"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, []string{"1y", "1y"}, periods)

	s := snaps[0]
	assert.Equal(t, "Apple Inc.", s.Name)
	assert.Equal(t, 109.2, s.LastTradePriceOnly)
	assert.Equal(t, 104.0, s.PreviousClose)
	assert.Equal(t, 104.0, s.Open)
	assert.Equal(t, 112.0, s.YearHigh)
	assert.Equal(t, 95.0, s.YearLow)
	assert.Equal(t, 2000.0, s.AverageDailyVolume)
	assert.InDelta(t, 5.2, s.Change, 1e-9)
	assert.InDelta(t, 0.05, s.ChangeInPercent, 1e-9)

	assert.False(t, snaps[1].Valid())
	assert.Equal(t, "ZZZZ", snaps[1].Symbol)
}

func TestSnapshotFallsBackToLastClose(t *testing.T) {
	s := snapshotFrom("AAPL", tickerData{Rows: sampleRows()})
	assert.Equal(t, "AAPL", s.Name)
	assert.Equal(t, 106.0, s.LastTradePriceOnly)
	assert.InDelta(t, 2.0, s.Change, 1e-9)
}

func TestSnapshotError(t *testing.T) {
	p := newTestProvider(func(string, string, bool) (tickerData, error) {
		return tickerData{}, errors.New("rate limited")
	})
	_, err := p.Snapshot(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestHistoricalFiltersRange(t *testing.T) {
	p := newTestProvider(func(symbol, period string, withQuote bool) (tickerData, error) {
		assert.Equal(t, "5d", period)
		assert.False(t, withQuote)
		return tickerData{Rows: sampleRows()}, nil
	})

	rows, err := p.Historical(context.Background(), []string{"AAPL"}, day(2024, 4, 11), day(2024, 4, 12))
	require.NoError(t, err)
	require.Len(t, rows["AAPL"], 2)
	assert.Equal(t, day(2024, 4, 11), rows["AAPL"][0].Date)
}

func TestHistoricalCancelled(t *testing.T) {
	p := newTestProvider(func(string, string, bool) (tickerData, error) {
		t.Fatal("fetch after cancel")
		return tickerData{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Historical(ctx, []string{"AAPL"}, day(2024, 4, 1), day(2024, 4, 12))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPeriodFor(t *testing.T) {
	assert.Equal(t, "5d", periodFor(2*24*time.Hour))
	assert.Equal(t, "3mo", periodFor(90*24*time.Hour))
	assert.Equal(t, "1y", periodFor(300*24*time.Hour))
	assert.Equal(t, "max", periodFor(20*365*24*time.Hour))
}

func TestNotFound(t *testing.T) {
	assert.True(t, notFound(errors.New("Symbol Not Found")))
	assert.False(t, notFound(errors.New("timeout")))
}
