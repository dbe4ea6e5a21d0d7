// Package yfinance implements market.Provider on top of the go-yfinance
// scraper, for hosts where the plain chart endpoint is blocked.
package yfinance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	yfmodels "github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

const volumeWindowDays = 63

// tickerData what one lookup returns, before it becomes a snapshot
type tickerData struct {
	Name      string
	Price     float64
	MarketCap float64
	Rows      []models.HistoricalRow
}

var errUnknownSymbol = errors.New("unknown symbol")

type fetchFunc func(symbol, period string, withQuote bool) (tickerData, error)

// Provider reads one ticker at a time through go-yfinance
type Provider struct {
	fetch fetchFunc
	now   func() time.Time
}

// NewProvider ...
func NewProvider() *Provider {
	return &Provider{fetch: fetchTicker, now: time.Now}
}

// Snapshot implements market.Provider. The library has no context support,
// so ctx is checked between symbols.
func (p *Provider) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, len(symbols))
	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.fetch(symbol, "1y", true)
		if errors.Is(err, errUnknownSymbol) {
			out[i] = models.Snapshot{Symbol: symbol}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("yfinance %s: %w", symbol, err)
		}
		out[i] = snapshotFrom(symbol, data)
	}
	return out, nil
}

// Historical implements market.Provider
func (p *Provider) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	period := periodFor(p.now().Sub(from))
	out := make(map[string][]models.HistoricalRow, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.fetch(symbol, period, false)
		if errors.Is(err, errUnknownSymbol) {
			out[symbol] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("yfinance %s: %w", symbol, err)
		}
		out[symbol] = between(data.Rows, from, to)
	}
	return out, nil
}

func fetchTicker(symbol, period string, withQuote bool) (tickerData, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return tickerData{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	bars, err := t.History(yfmodels.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: false,
	})
	if err != nil {
		if notFound(err) {
			return tickerData{}, errUnknownSymbol
		}
		return tickerData{}, fmt.Errorf("failed to get historical prices: %w", err)
	}
	if len(bars) == 0 {
		return tickerData{}, errUnknownSymbol
	}

	var data tickerData
	for _, bar := range bars {
		if bar.Close == 0 {
			continue
		}
		y, m, d := bar.Date.Date()
		row := models.HistoricalRow{
			Symbol:   symbol,
			Date:     time.Date(y, m, d, 0, 0, 0, 0, time.Local),
			Open:     bar.Open,
			Close:    bar.Close,
			High:     bar.High,
			Low:      bar.Low,
			Volume:   float64(bar.Volume),
			AdjClose: bar.AdjClose,
		}
		if row.AdjClose == 0 {
			row.AdjClose = row.Close
		}
		data.Rows = append(data.Rows, row)
	}
	if !withQuote {
		return data, nil
	}

	if info, err := t.Info(); err == nil && info != nil {
		data.Name = info.LongName
		if data.Name == "" {
			data.Name = info.ShortName
		}
		data.MarketCap = float64(info.MarketCap)
		data.Price = info.CurrentPrice
	}
	if quote, err := t.Quote(); err == nil && quote != nil && quote.RegularMarketPrice > 0 {
		data.Price = quote.RegularMarketPrice
	}
	return data, nil
}

func snapshotFrom(symbol string, data tickerData) models.Snapshot {
	snap := models.Snapshot{
		Symbol:             symbol,
		Name:               data.Name,
		LastTradePriceOnly: data.Price,
		MarketCap:          data.MarketCap,
	}
	if snap.Name == "" {
		snap.Name = symbol
	}

	rows := data.Rows
	n := len(rows)
	if n == 0 {
		return snap
	}
	last := rows[n-1]
	snap.Open = last.Open
	snap.DaysHigh = last.High
	snap.DaysLow = last.Low
	snap.Volume = last.Volume
	snap.LastTradeAt = last.Date
	if snap.LastTradePriceOnly == 0 {
		snap.LastTradePriceOnly = last.Close
	}
	if n >= 2 {
		snap.PreviousClose = rows[n-2].Close
	}

	snap.YearHigh, snap.YearLow = last.High, last.Low
	for _, row := range rows {
		if row.High > snap.YearHigh {
			snap.YearHigh = row.High
		}
		if row.Low > 0 && row.Low < snap.YearLow {
			snap.YearLow = row.Low
		}
	}

	window := rows
	if n > volumeWindowDays {
		window = rows[n-volumeWindowDays:]
	}
	snap.AverageDailyVolume = services.AverageVolume(window, snap.Volume)
	closes := services.Closes(rows)
	snap.FiftyDayAverage = services.SMA(closes, 50)
	snap.TwoHundredDayAvg = services.SMA(closes, 200)

	if snap.PreviousClose != 0 {
		snap.Change = snap.LastTradePriceOnly - snap.PreviousClose
		snap.ChangeInPercent = snap.Change / snap.PreviousClose
	}
	return snap
}

// periodFor smallest Yahoo period string covering span
func periodFor(span time.Duration) string {
	days := int(span.Hours()/24) + 1
	switch {
	case days <= 5:
		return "5d"
	case days <= 31:
		return "1mo"
	case days <= 92:
		return "3mo"
	case days <= 183:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	case days <= 1827:
		return "5y"
	case days <= 3653:
		return "10y"
	}
	return "max"
}

func between(rows []models.HistoricalRow, from, to time.Time) []models.HistoricalRow {
	lo := truncateDay(from)
	hi := truncateDay(to)
	var out []models.HistoricalRow
	for _, row := range rows {
		day := truncateDay(row.Date)
		if day.Before(lo) || day.After(hi) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func notFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no data")
}
