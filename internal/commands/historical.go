package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

const columnGap = 3

// Historical a monospaced OHLCV table per symbol
type Historical struct {
	descriptor
	deps Deps
}

// NewHistorical ...
func NewHistorical(d Deps) *Historical {
	return &Historical{
		descriptor: descriptor{
			name:     "historical",
			triggers: regexp.MustCompile(`(?i)^\b(historical|h)\b`),
			aliases:  []string{"historical", "h"},
			example:  "historical $AAPL 30d",
		},
		deps: d,
	}
}

// Help implements Helper
func (c *Historical) Help(_ context.Context, self models.SelfInfo) (string, error) {
	return "Provides a formatted table with a row for each date the symbol was traded " +
		"that includes the date, open and close prices, high and low prices, volume, " +
		"and the adjusted close price. A chart for the time period is also included.\n" +
		rangeHelp(self, c.aliases, c.deps.defaultDays()), nil
}

// Run implements Command
func (c *Historical) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
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
		out = append(out, attachmentResponse(models.Attachment{
			Fallback: "Historical results for " + symbol,
			Color:    models.ColorNeutral,
			Text:     "```\n" + historicalTable(symbol, rows) + "```",
			ImageURL: services.SymbolChart(symbol, len(rows)),
		}))
	}
	if len(out) == 0 {
		return nil, services.ErrNoValidSymbols
	}
	return out, nil
}

func historicalTable(symbol string, rows []models.HistoricalRow) string {
	headers := []string{"Symbol", "Date", "Open", "Close", "High", "Low", "Range", "Volume", "Adj Close"}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = []string{
			symbol,
			row.Date.Format("2006-01-02"),
			"$" + services.FormatFixed(row.Open, 2),
			"$" + services.FormatFixed(row.Close, 2),
			"$" + services.FormatFixed(row.High, 2),
			"$" + services.FormatFixed(row.Low, 2),
			"$" + services.FormatFixed(row.High-row.Low, 2),
			services.FormatFixed(row.Volume, 0),
			"$" + services.FormatFixed(row.AdjClose, 2),
		}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, line := range cells {
		for i, cell := range line {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeLine := func(values []string) {
		for i, v := range values {
			if i == len(values)-1 {
				b.WriteString(v)
				continue
			}
			b.WriteString(services.PadRight(v, widths[i]+columnGap))
		}
		b.WriteString("\n")
	}
	writeLine(headers)
	for _, line := range cells {
		writeLine(line)
	}
	return b.String()
}

func rangeHelp(self models.SelfInfo, aliases []string, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "_If no arguments are provided, the default length of time is the last %d days._\n", days)
	fmt.Fprintf(&b, "Triggers: [%s]\n", strings.Join(aliases, ", "))
	b.WriteString("Example commands:\n")
	for _, args := range []string{"", " 30 days", " 30d", " 2016-04-01", " 2016-04-01 2016-05-01"} {
		fmt.Fprintf(&b, "`@%s %s $AAPL%s`\n", self.Name, aliases[0], args)
	}
	return strings.TrimRight(b.String(), "\n")
}
