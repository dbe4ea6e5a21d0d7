// Package alpaca serves market data from the Alpaca data API.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

type dataClient interface {
	GetSnapshots(symbols []string, req marketdata.GetSnapshotRequest) (map[string]*marketdata.Snapshot, error)
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

type assetClient interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
}

// Provider implements market.Provider. Asset names come from the trading API.
type Provider struct {
	data   dataClient
	assets assetClient
	now    func() time.Time
}

// NewProvider ...
func NewProvider(apiKey, apiSecret, baseURL string) *Provider {
	return &Provider{
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		assets: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		now: time.Now,
	}
}

// Snapshot implements market.Provider. The SDK calls are blocking and do not
// take a context, so ctx is only checked between calls.
func (p *Provider) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	snaps, err := p.data.GetSnapshots(symbols, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("alpaca snapshots: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := p.now()
	bars, err := p.data.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     now.AddDate(-1, 0, 0),
		End:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars: %w", err)
	}

	out := make([]models.Snapshot, len(symbols))
	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, ok := snaps[symbol]
		if !ok || snap == nil {
			out[i] = models.Snapshot{Symbol: symbol}
			continue
		}
		// unknown or inactive assets stay nameless so they are skipped downstream
		name := ""
		if asset, err := p.assets.GetAsset(symbol); err == nil && asset != nil {
			name = asset.Name
		}
		out[i] = toSnapshot(symbol, name, snap, bars[symbol])
	}
	return out, nil
}

// Historical implements market.Provider
func (p *Provider) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	bars, err := p.data.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]models.HistoricalRow, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = toRows(symbol, bars[symbol])
	}
	return out, nil
}

func toRows(symbol string, bars []marketdata.Bar) []models.HistoricalRow {
	rows := make([]models.HistoricalRow, 0, len(bars))
	for _, bar := range bars {
		y, m, d := bar.Timestamp.Date()
		rows = append(rows, models.HistoricalRow{
			Symbol:   symbol,
			Date:     time.Date(y, m, d, 0, 0, 0, 0, time.Local),
			Open:     bar.Open,
			Close:    bar.Close,
			High:     bar.High,
			Low:      bar.Low,
			Volume:   float64(bar.Volume),
			AdjClose: bar.Close,
		})
	}
	return rows
}

func toSnapshot(symbol, name string, s *marketdata.Snapshot, history []marketdata.Bar) models.Snapshot {
	out := models.Snapshot{Symbol: symbol, Name: name}
	if s.LatestTrade != nil {
		out.LastTradePriceOnly = s.LatestTrade.Price
		out.LastTradeAt = s.LatestTrade.Timestamp
	}
	if s.DailyBar != nil {
		out.Open = s.DailyBar.Open
		out.DaysHigh = s.DailyBar.High
		out.DaysLow = s.DailyBar.Low
		out.Volume = float64(s.DailyBar.Volume)
		if out.LastTradePriceOnly == 0 {
			out.LastTradePriceOnly = s.DailyBar.Close
		}
	}
	if s.PrevDailyBar != nil {
		out.PreviousClose = s.PrevDailyBar.Close
	}
	if out.PreviousClose != 0 {
		out.Change = out.LastTradePriceOnly - out.PreviousClose
		out.ChangeInPercent = out.Change / out.PreviousClose
	}

	rows := toRows(symbol, history)
	if len(rows) > 0 {
		out.YearHigh, out.YearLow = rows[0].High, rows[0].Low
		for _, row := range rows[1:] {
			if row.High > out.YearHigh {
				out.YearHigh = row.High
			}
			if row.Low < out.YearLow {
				out.YearLow = row.Low
			}
		}
		window := rows
		if len(rows) > 63 {
			window = rows[len(rows)-63:]
		}
		out.AverageDailyVolume = services.AverageVolume(window, out.Volume)
		closes := services.Closes(rows)
		out.FiftyDayAverage = services.SMA(closes, 50)
		out.TwoHundredDayAvg = services.SMA(closes, 200)
	}
	return out
}
