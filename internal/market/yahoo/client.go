// Package yahoo reads quotes and daily history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// DefaultBaseURL public chart API host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const (
	userAgent        = "Mozilla/5.0 (compatible; stockbot/1.0)"
	volumeWindowDays = 63
)

var errNotFound = errors.New("symbol not found")

// Client implements market.Provider over the chart endpoint
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient baseURL may be empty for DefaultBaseURL
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Snapshot builds a snapshot per symbol from a year of daily candles
func (c *Client) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, len(symbols))
	errs := make([]error, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			q := url.Values{"range": {"1y"}, "interval": {"1d"}}
			res, err := c.chart(ctx, symbol, q)
			switch {
			case errors.Is(err, errNotFound):
				out[i] = models.Snapshot{Symbol: symbol}
			case err != nil:
				errs[i] = err
			default:
				out[i] = snapshotFromChart(symbol, res)
			}
		}(i, symbol)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Historical daily rows for [from, to], oldest first. Unknown symbols get no rows.
func (c *Client) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	out := make(map[string][]models.HistoricalRow, len(symbols))
	q := url.Values{
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10)},
		"interval": {"1d"},
		"events":   {"history"},
	}
	for _, symbol := range symbols {
		res, err := c.chart(ctx, symbol, q)
		if errors.Is(err, errNotFound) {
			out[symbol] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		out[symbol] = rowsFromChart(symbol, res)
	}
	return out, nil
}

func (c *Client) chart(ctx context.Context, symbol string, q url.Values) (chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return chartResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return chartResult{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chartResult{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	var parsed chartResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode == http.StatusNotFound {
		return chartResult{}, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return chartResult{}, fmt.Errorf("yahoo chart %s: status %d", symbol, resp.StatusCode)
	}
	if decodeErr != nil {
		return chartResult{}, fmt.Errorf("yahoo chart %s: %w", symbol, decodeErr)
	}
	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return chartResult{}, errNotFound
		}
		return chartResult{}, fmt.Errorf("yahoo chart %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return chartResult{}, errNotFound
	}
	return parsed.Chart.Result[0], nil
}

func rowsFromChart(symbol string, res chartResult) []models.HistoricalRow {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	q := res.Indicators.Quote[0]
	var adj []float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}
	zone := time.FixedZone(res.Meta.ExchangeTimezoneName, res.Meta.GMTOffset)

	rows := make([]models.HistoricalRow, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == 0 {
			continue
		}
		y, m, d := time.Unix(ts, 0).In(zone).Date()
		row := models.HistoricalRow{
			Symbol:   symbol,
			Date:     time.Date(y, m, d, 0, 0, 0, 0, time.Local),
			Open:     at(q.Open, i),
			Close:    closePrice,
			High:     at(q.High, i),
			Low:      at(q.Low, i),
			Volume:   at(q.Volume, i),
			AdjClose: at(adj, i),
		}
		if row.AdjClose == 0 {
			row.AdjClose = closePrice
		}
		rows = append(rows, row)
	}
	return rows
}

func snapshotFromChart(symbol string, res chartResult) models.Snapshot {
	meta := res.Meta
	rows := rowsFromChart(symbol, res)
	snap := models.Snapshot{
		Symbol:             symbol,
		Name:               meta.name(),
		LastTradePriceOnly: meta.RegularMarketPrice,
		DaysHigh:           meta.RegularMarketDayHigh,
		DaysLow:            meta.RegularMarketDayLow,
		Volume:             meta.RegularMarketVolume,
		YearHigh:           meta.FiftyTwoWeekHigh,
		YearLow:            meta.FiftyTwoWeekLow,
		PreviousClose:      meta.ChartPreviousClose,
	}
	if snap.Name == "" {
		snap.Name = symbol
	}
	if meta.RegularMarketTime > 0 {
		snap.LastTradeAt = time.Unix(meta.RegularMarketTime, 0)
	}

	if n := len(rows); n > 0 {
		last := rows[n-1]
		snap.Open = last.Open
		if snap.LastTradePriceOnly == 0 {
			snap.LastTradePriceOnly = last.Close
		}
		if snap.DaysHigh == 0 {
			snap.DaysHigh = last.High
		}
		if snap.DaysLow == 0 {
			snap.DaysLow = last.Low
		}
		if snap.Volume == 0 {
			snap.Volume = last.Volume
		}
		if n >= 2 {
			snap.PreviousClose = rows[n-2].Close
		}
		window := rows
		if n > volumeWindowDays {
			window = rows[n-volumeWindowDays:]
		}
		snap.AverageDailyVolume = services.AverageVolume(window, snap.Volume)
		closes := services.Closes(rows)
		snap.FiftyDayAverage = services.SMA(closes, 50)
		snap.TwoHundredDayAvg = services.SMA(closes, 200)
	}

	if snap.PreviousClose != 0 {
		snap.Change = snap.LastTradePriceOnly - snap.PreviousClose
		snap.ChangeInPercent = snap.Change / snap.PreviousClose
	}
	return snap
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
