package services

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/luckfunc/stockbot/internal/models"
)

// Close diff bands
const (
	BandExtremeDown = "extreme down"
	BandStrongDown  = "strong down"
	BandDown        = "down"
	BandFlat        = "flat"
	BandUp          = "up"
	BandStrongUp    = "strong up"
	BandExtremeUp   = "extreme up"
)

// CloseDiffPercent move from the previous close, in percent
func CloseDiffPercent(last, previousClose float64) float64 {
	if previousClose == 0 || last == 0 {
		return 0
	}
	return (last - previousClose) / previousClose * 100
}

// ClassifyCloseDiff names the band of a percent move. The bands mirror each
// other at 2, 4 and 9 points.
func ClassifyCloseDiff(p float64) string {
	switch {
	case p < -9:
		return BandExtremeDown
	case p < -4:
		return BandStrongDown
	case p < -2:
		return BandDown
	case p > 9:
		return BandExtremeUp
	case p > 4:
		return BandStrongUp
	case p > 2:
		return BandUp
	}
	return BandFlat
}

// PriceRange a band around the previous close
type PriceRange struct {
	Low     float64
	High    float64
	Points  float64
	Percent float64
}

// AverageRange mean of |high-low| over rows
func AverageRange(rows []models.HistoricalRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	diffs := make([]float64, len(rows))
	for i, row := range rows {
		diffs[i] = math.Abs(row.High - row.Low)
	}
	return stat.Mean(diffs, nil)
}

// TypicalRange previous close ± half the average range
func TypicalRange(previousClose, avgRange float64) PriceRange {
	return priceRange(previousClose, avgRange/2)
}

// ExtremeRange previous close ± the full average range
func ExtremeRange(previousClose, avgRange float64) PriceRange {
	return priceRange(previousClose, avgRange)
}

func priceRange(previousClose, points float64) PriceRange {
	r := PriceRange{
		Low:    previousClose - points,
		High:   previousClose + points,
		Points: points,
	}
	if previousClose != 0 {
		r.Percent = points / previousClose * 100
	}
	return r
}

// AverageVolume mean daily volume of rows, or fallback when there are none
func AverageVolume(rows []models.HistoricalRow, fallback float64) float64 {
	if len(rows) == 0 {
		return fallback
	}
	volumes := make([]float64, len(rows))
	for i, row := range rows {
		volumes[i] = row.Volume
	}
	return stat.Mean(volumes, nil)
}

// VolumeDiffPercent negative when current volume is below average
func VolumeDiffPercent(average, current float64) float64 {
	if average == 0 || current == 0 {
		return 0
	}
	return -100 * (average - current) / average
}

// Level a support or resistance price with how often history touched it
type Level struct {
	Value   float64
	Touches int
}

// Text touch classification of the level
func (l Level) Text() string {
	return LevelText(l.Touches)
}

// PivotLevels classic floor trader levels. Index 0 is L1.
type PivotLevels struct {
	Pivot      float64
	Resistance [3]Level
	Support    [3]Level
}

// Pivots computes the levels from the prior session
func Pivots(prev models.HistoricalRow) PivotLevels {
	h, c, l := prev.High, prev.Close, prev.Low
	pivot := (h + c + l) / 3

	var p PivotLevels
	p.Pivot = pivot
	p.Resistance[0].Value = 2*pivot - l
	p.Support[0].Value = 2*pivot - h
	spread := p.Resistance[0].Value - p.Support[0].Value
	p.Resistance[1].Value = pivot + spread
	p.Support[1].Value = pivot - spread
	p.Resistance[2].Value = h + 2*(pivot-l)
	p.Support[2].Value = l - 2*(h-pivot)
	return p
}

// CountTouches counts rows whose high (low) sits within a tolerance of each
// resistance (support). The tolerance is 1% of open, or 0.05 without an open.
// A row counts toward the first level it touches only.
func CountTouches(levels PivotLevels, rows []models.HistoricalRow, open float64) PivotLevels {
	adj := 0.05
	if open != 0 {
		adj = open * 0.01
	}
	within := func(price, level float64) bool {
		return price >= level-adj && price < level+adj
	}

	for i := range levels.Resistance {
		levels.Resistance[i].Touches = 0
		levels.Support[i].Touches = 0
	}
	for _, row := range rows {
		for i := range levels.Resistance {
			if within(row.High, levels.Resistance[i].Value) {
				levels.Resistance[i].Touches++
				break
			}
		}
		for i := range levels.Support {
			if within(row.Low, levels.Support[i].Value) {
				levels.Support[i].Touches++
				break
			}
		}
	}
	return levels
}

// LevelText single (0-1), double, triple, triple+
func LevelText(count int) string {
	switch {
	case count == 2:
		return "double"
	case count == 3:
		return "triple"
	case count > 3:
		return "triple+"
	}
	return "single"
}

// Closes close prices of rows in order
func Closes(rows []models.HistoricalRow) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row.Close
	}
	return out
}

// SMA simple moving average of the last period closes, 0 with too little data
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sma := talib.Sma(closes, period)
	if len(sma) == 0 {
		return 0
	}
	v := sma[len(sma)-1]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// MovingAverageDelta percent distance of last from the average
func MovingAverageDelta(last, average float64) float64 {
	if average == 0 {
		return 0
	}
	return (last - average) / average * 100
}

// Return change against a reference close
type Return struct {
	Base    float64
	Date    time.Time
	Change  float64
	Percent float64
	OK      bool
}

// OneDayReturn last against the previous close
func OneDayReturn(last, previousClose float64) Return {
	return newReturn(previousClose, time.Time{}, last)
}

// PeriodReturn last against the close of the row nearest target
func PeriodReturn(rows []models.HistoricalRow, target time.Time, last float64) Return {
	row, ok := NearestRow(rows, target)
	if !ok {
		return Return{}
	}
	return newReturn(row.Close, row.Date, last)
}

func newReturn(base float64, date time.Time, last float64) Return {
	if base == 0 {
		return Return{}
	}
	change := last - base
	return Return{
		Base:    base,
		Date:    date,
		Change:  change,
		Percent: change / base * 100,
		OK:      true,
	}
}

// NearestRow the row dated closest to target
func NearestRow(rows []models.HistoricalRow, target time.Time) (models.HistoricalRow, bool) {
	if len(rows) == 0 {
		return models.HistoricalRow{}, false
	}
	best := rows[0]
	bestDiff := absDuration(rows[0].Date.Sub(target))
	for _, row := range rows[1:] {
		if d := absDuration(row.Date.Sub(target)); d < bestDiff {
			best, bestDiff = row, d
		}
	}
	return best, true
}

// NinetyDayTarget the date 90 days before now
func NinetyDayTarget(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -90)
}

// YearStartTarget last day of the prior calendar year
func YearStartTarget(now time.Time) time.Time {
	return time.Date(now.Year()-1, time.December, 31, 0, 0, 0, 0, now.Location())
}

// ValidSnapshots drops unknown symbols; all unknown is ErrNoValidSymbols
func ValidSnapshots(snaps []models.Snapshot) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Valid() {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoValidSymbols
	}
	return out, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
