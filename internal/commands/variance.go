package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// Variance compares the first open and last close of a date range
type Variance struct {
	descriptor
	deps Deps
}

// NewVariance ...
func NewVariance(d Deps) *Variance {
	return &Variance{
		descriptor: descriptor{
			name:     "variance",
			triggers: regexp.MustCompile(`(?i)^\b(variance|v)\b`),
			aliases:  []string{"variance", "v"},
			example:  "variance $AAPL 2016-04-01 2016-05-01",
		},
		deps: d,
	}
}

// Help implements Helper
func (c *Variance) Help(_ context.Context, self models.SelfInfo) (string, error) {
	return "Provides the open price for the first date, close price for the second date, " +
		"the price variance between the two as well as the highest and lowest values " +
		"for the timeframe.\n" + rangeHelp(self, c.aliases, c.deps.defaultDays()), nil
}

// VarianceReport price movement over a range
type VarianceReport struct {
	First, Last   models.HistoricalRow
	Change        float64
	ChangePercent float64
	Low, High     float64
}

// NewVarianceReport rows must be non-empty and oldest first
func NewVarianceReport(rows []models.HistoricalRow) VarianceReport {
	r := VarianceReport{
		First: rows[0],
		Last:  rows[len(rows)-1],
		Low:   rows[0].Low,
		High:  rows[0].High,
	}
	r.Change = r.Last.Close - r.First.Open
	if r.First.Open > 0 {
		r.ChangePercent = r.Change / r.First.Open * 100
	}
	for _, row := range rows[1:] {
		if row.Low < r.Low {
			r.Low = row.Low
		}
		if row.High > r.High {
			r.High = row.High
		}
	}
	return r
}

// Run implements Command
func (c *Variance) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
	symbols := services.ExtractSymbols(msg.Text)
	if len(symbols) == 0 {
		return nil, services.ErrNoSymbols
	}
	dates := services.ExtractDates(msg.Text, c.deps.now(), c.deps.defaultDays())

	history, err := c.deps.Provider.Historical(ctx, symbols, dates.From, dates.To)
	if err != nil {
		return nil, err
	}

	var out []models.Response
	for _, symbol := range symbols {
		rows := history[symbol]
		if len(rows) == 0 {
			continue
		}
		r := NewVarianceReport(rows)

		var b strings.Builder
		fmt.Fprintf(&b, "*%s*\n", services.SymbolLink(symbol))
		fmt.Fprintf(&b, "%s Open Price: $%s\n", services.LongDate(r.First.Date), services.FormatFixed(r.First.Open, 2))
		fmt.Fprintf(&b, "%s Close Price: $%s\n", services.LongDate(r.Last.Date), services.FormatFixed(r.Last.Close, 2))
		fmt.Fprintf(&b, "Open/Close Variance: $%s (%s%%)\n", services.FormatFixed(r.Change, 2), services.FormatFixed(r.ChangePercent, 2))
		fmt.Fprintf(&b, "Lowest Price: $%s\n", services.FormatFixed(r.Low, 2))
		fmt.Fprintf(&b, "Highest Price: $%s\n", services.FormatFixed(r.High, 2))
		fmt.Fprintf(&b, "Low/High Difference: $%s", services.FormatFixed(r.High-r.Low, 2))

		out = append(out, attachmentResponse(models.Attachment{
			Fallback: strings.TrimSpace("Variance for " + symbol + " " + services.SymbolTrend(r.Change)),
			Color:    services.SymbolColor(r.Change),
			Text:     b.String(),
		}))
	}
	if len(out) == 0 {
		return nil, services.ErrNoValidSymbols
	}
	return out, nil
}
