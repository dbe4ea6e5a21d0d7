// Package sina reads US quotes from the Sina Finance hq feed.
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/luckfunc/stockbot/internal/models"
)

// DefaultBaseURL quote feed host
const DefaultBaseURL = "https://hq.sinajs.cn"

const (
	referer   = "https://finance.sina.com.cn"
	usPrefix  = "gb_"
	minFields = 27
)

// Client implements market.SnapshotSource. The feed has no history.
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
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Snapshot fetches every symbol in one request
func (c *Client) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	codes := make([]string, len(symbols))
	for i, s := range symbols {
		codes[i] = usPrefix + strings.ToLower(s)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list="+strings.Join(codes, ","), nil)
	if err != nil {
		return nil, err
	}
	// the feed rejects requests without a finance referer
	req.Header.Set("Referer", referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sina quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sina quote: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sina quote: %w", err)
	}
	utf8Body, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("sina quote: decode: %w", err)
	}

	quotes := parseFeed(string(utf8Body))
	out := make([]models.Snapshot, len(symbols))
	for i, s := range symbols {
		snap, ok := quotes[strings.ToLower(s)]
		if !ok {
			snap = models.Snapshot{}
		}
		snap.Symbol = s
		out[i] = snap
	}
	return out, nil
}

// parseFeed maps lower-case symbol to snapshot. Lines look like
// var hq_str_gb_aapl="name,price,pct,time,change,...";
func parseFeed(data string) map[string]models.Snapshot {
	out := map[string]models.Snapshot{}
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "var hq_str_"+usPrefix) {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		code := strings.TrimPrefix(line[:eq], "var hq_str_"+usPrefix)
		parts := strings.Split(line[eq+1:], "\"")
		if len(parts) < 2 {
			continue
		}
		snap, ok := parseQuote(parts[1])
		if !ok {
			continue
		}
		out[code] = snap
	}
	return out
}

func parseQuote(raw string) (models.Snapshot, bool) {
	values := strings.Split(raw, ",")
	if len(values) < minFields {
		return models.Snapshot{}, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		return v
	}

	snap := models.Snapshot{
		Name:               strings.TrimSpace(values[0]),
		LastTradePriceOnly: f(1),
		ChangeInPercent:    f(2) / 100,
		Change:             f(4),
		Open:               f(5),
		DaysHigh:           f(6),
		DaysLow:            f(7),
		YearHigh:           f(8),
		YearLow:            f(9),
		Volume:             f(10),
		AverageDailyVolume: f(11),
		MarketCap:          f(12),
		EPS:                f(13),
		PreviousClose:      f(26),
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSpace(values[3]), time.Local); err == nil {
		snap.LastTradeAt = t
	}
	return snap, snap.Name != ""
}
