package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

const (
	analysisWindowDays = 180
	// enough calendar days for a 200 session average
	analysisLookbackDays = 300
)

// Analysis price, volume, trend and support/resistance summary
type Analysis struct {
	descriptor
	deps Deps
}

// NewAnalysis ...
func NewAnalysis(d Deps) *Analysis {
	return &Analysis{
		descriptor: descriptor{
			name:     "analysis",
			triggers: regexp.MustCompile(`(?i)^\b(analyze|analysis|a)\b`),
			aliases:  []string{"analyze", "analysis", "a"},
		},
		deps: d,
	}
}

// Help implements Helper
func (c *Analysis) Help(_ context.Context, self models.SelfInfo) (string, error) {
	return "Provides a technical summary: price and volume against typical ranges, " +
		"moving average distance, 1 day, 90 day and year to date returns, and pivot " +
		"support and resistance levels with how often they were tested.\n" +
		fmt.Sprintf("Triggers: [%s]\n", strings.Join(c.aliases, ", ")) +
		fmt.Sprintf("To run command, type: `@%s %s $AAPL`", self.Name, c.aliases[0]), nil
}

// AnalysisReport derived values for one symbol
type AnalysisReport struct {
	Snapshot models.Snapshot

	CloseDiff float64
	Band      string

	AverageRange float64
	Typical      services.PriceRange
	Extreme      services.PriceRange

	AverageVolume float64
	VolumeDiff    float64

	MA50, MA200           float64
	MA50Delta, MA200Delta float64

	OneDay     services.Return
	NinetyDay  services.Return
	YearToDate services.Return

	Levels    services.PivotLevels
	HasLevels bool
}

// NewAnalysisReport rows may span more than the analysis window; only the
// last analysisWindowDays feed the ranges, volume and touch counts.
func NewAnalysisReport(snap models.Snapshot, rows []models.HistoricalRow, now time.Time) AnalysisReport {
	r := AnalysisReport{Snapshot: snap}
	last := snap.LastTradePriceOnly

	r.CloseDiff = services.CloseDiffPercent(last, snap.PreviousClose)
	r.Band = services.ClassifyCloseDiff(r.CloseDiff)

	recent := rowsSince(rows, now.AddDate(0, 0, -analysisWindowDays))
	r.AverageRange = services.AverageRange(recent)
	r.Typical = services.TypicalRange(snap.PreviousClose, r.AverageRange)
	r.Extreme = services.ExtremeRange(snap.PreviousClose, r.AverageRange)

	r.AverageVolume = services.AverageVolume(recent, snap.AverageDailyVolume)
	r.VolumeDiff = services.VolumeDiffPercent(r.AverageVolume, snap.Volume)

	closes := services.Closes(rows)
	r.MA50 = snap.FiftyDayAverage
	if r.MA50 == 0 {
		r.MA50 = services.SMA(closes, 50)
	}
	r.MA200 = snap.TwoHundredDayAvg
	if r.MA200 == 0 {
		r.MA200 = services.SMA(closes, 200)
	}
	r.MA50Delta = services.MovingAverageDelta(last, r.MA50)
	r.MA200Delta = services.MovingAverageDelta(last, r.MA200)

	r.OneDay = services.OneDayReturn(last, snap.PreviousClose)
	r.NinetyDay = services.PeriodReturn(rows, services.NinetyDayTarget(now), last)
	r.YearToDate = services.PeriodReturn(rows, services.YearStartTarget(now), last)

	if prev, ok := priorSession(rows, now); ok {
		r.Levels = services.CountTouches(services.Pivots(prev), recent, snap.Open)
		r.HasLevels = true
	}
	return r
}

// Run implements Command
func (c *Analysis) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
	snaps, err := validSnapshots(ctx, c.deps.Provider, services.ExtractSymbols(msg.Text))
	if err != nil {
		return nil, err
	}

	now := c.deps.now()
	from := now.AddDate(0, 0, -analysisLookbackDays)
	if ytd := services.YearStartTarget(now).AddDate(0, 0, -7); ytd.Before(from) {
		from = ytd
	}
	symbols := make([]string, len(snaps))
	for i, s := range snaps {
		symbols[i] = s.Symbol
	}
	history, err := c.deps.Provider.Historical(ctx, symbols, from, now)
	if err != nil {
		return nil, err
	}

	out := make([]models.Response, 0, len(snaps))
	for _, s := range snaps {
		report := NewAnalysisReport(s, history[s.Symbol], now)
		out = append(out, attachmentResponse(models.Attachment{
			Fallback: "Analysis for " + s.Symbol,
			Color:    models.ColorNeutral,
			Text:     report.Text(),
		}))
	}
	return out, nil
}

// Text chat markup of the report
func (r AnalysisReport) Text() string {
	s := r.Snapshot
	f := services.FormatFixed

	var b strings.Builder
	fmt.Fprintf(&b, "*%s (%s)*\n\n", s.Name, services.SymbolLink(s.Symbol))

	b.WriteString("*Price & Volume*\n\n    Price\n")
	fmt.Fprintf(&b, "        *$%s* %s (%s%%)\n", f(s.LastTradePriceOnly, 2), f(s.Change, 2), f(s.ChangeInPercent*100, 2))
	fmt.Fprintf(&b, "        %s%% *%s* from yesterday's close ($%s)\n", f(r.CloseDiff, 2), r.Band, f(s.PreviousClose, 2))
	fmt.Fprintf(&b, "        Today: L: $%s  O: $%s  H: $%s\n", f(s.DaysLow, 2), f(s.Open, 2), f(s.DaysHigh, 2))
	fmt.Fprintf(&b, "            Average Price Range: *%s* to *%s* : ± %s pts, ± %s%%\n",
		f(r.Typical.Low, 2), f(r.Typical.High, 2), f(r.Typical.Points, 2), f(r.Typical.Percent, 2))
	fmt.Fprintf(&b, "            Extreme Price Range: *%s* to *%s* : ± %s pts, ± %s%%\n\n",
		f(r.Extreme.Low, 2), f(r.Extreme.High, 2), f(r.Extreme.Points, 2), f(r.Extreme.Percent, 2))

	b.WriteString("    Volume\n")
	fmt.Fprintf(&b, "        *%s* shares, *%s%%* compared to typical daily volume\n", f(s.Volume, 0), f(r.VolumeDiff, 2))
	fmt.Fprintf(&b, "        Typical daily volume is *%s* shares\n\n", f(r.AverageVolume, 0))

	b.WriteString("*Trend*\n\n")
	writeAverage(&b, "50 day", r.MA50, r.MA50Delta)
	writeAverage(&b, "200 day", r.MA200, r.MA200Delta)
	b.WriteString("\n")
	writeReturn(&b, "1 day", r.OneDay)
	writeReturn(&b, "90 day", r.NinetyDay)
	writeReturn(&b, "Year to date", r.YearToDate)

	if r.HasLevels {
		l := r.Levels
		b.WriteString("\n*Support & Resistance Levels*\n\n    Resistance Above\n")
		for i := 2; i >= 0; i-- {
			fmt.Fprintf(&b, "       L%d: %s type *%s*\n", i+1, f(l.Resistance[i].Value, 2), l.Resistance[i].Text())
		}
		fmt.Fprintf(&b, "\n    *Pivot Point:* %s\n\n    Support Below\n", f(l.Pivot, 2))
		for i := 0; i < 3; i++ {
			fmt.Fprintf(&b, "       L%d: %s type *%s*\n", i+1, f(l.Support[i].Value, 2), l.Support[i].Text())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeAverage(b *strings.Builder, label string, average, delta float64) {
	if average == 0 {
		fmt.Fprintf(b, "    %s average: n/a\n", label)
		return
	}
	fmt.Fprintf(b, "    %s average: $%s, price is *%s%%* %s\n",
		label, services.FormatFixed(average, 2), services.FormatFixed(delta, 2), aboveBelow(delta))
}

func writeReturn(b *strings.Builder, label string, r services.Return) {
	if !r.OK {
		fmt.Fprintf(b, "    %s return: n/a\n", label)
		return
	}
	since := ""
	if !r.Date.IsZero() {
		since = " since " + services.LongDate(r.Date)
	}
	fmt.Fprintf(b, "    %s return: $%s (%s%%)%s\n",
		label, services.FormatFixed(r.Change, 2), services.FormatFixed(r.Percent, 2), since)
}

func aboveBelow(delta float64) string {
	if delta < 0 {
		return "below"
	}
	return "above"
}

func rowsSince(rows []models.HistoricalRow, since time.Time) []models.HistoricalRow {
	for i, row := range rows {
		if !row.Date.Before(since) {
			return rows[i:]
		}
	}
	return nil
}

// priorSession the latest row dated before today
func priorSession(rows []models.HistoricalRow, now time.Time) (models.HistoricalRow, bool) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Date.Before(today) {
			return rows[i], true
		}
	}
	return models.HistoricalRow{}, false
}
