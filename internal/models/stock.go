package models

import "time"

// Snapshot point-in-time trading data for one symbol.
// An empty Name marks a symbol the provider does not know.
type Snapshot struct {
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name"`
	LastTradePriceOnly float64   `json:"lastTradePriceOnly"`
	LastTradeAt        time.Time `json:"lastTradeAt"`
	Change             float64   `json:"change"`
	ChangeInPercent    float64   `json:"changeInPercent"` // fraction, 0.05 == 5%
	DaysLow            float64   `json:"daysLow"`
	DaysHigh           float64   `json:"daysHigh"`
	Open               float64   `json:"open"`
	PreviousClose      float64   `json:"previousClose"`
	Volume             float64   `json:"volume"`
	AverageDailyVolume float64   `json:"averageDailyVolume"`
	FiftyDayAverage    float64   `json:"fiftyDayMovingAverage"`
	TwoHundredDayAvg   float64   `json:"twoHundredDayMovingAverage"`
	YearHigh           float64   `json:"yearHigh"`
	YearLow            float64   `json:"yearLow"`
	OneYearTarget      float64   `json:"oneYearTargetPrice"`
	EPS                float64   `json:"earningsPerShare"`
	MarketCap          float64   `json:"marketCapitalization"`
}

// Valid reports whether the provider recognized the symbol
func (s Snapshot) Valid() bool {
	return s.Symbol != "" && s.Name != ""
}

// HistoricalRow one trading day for one symbol
type HistoricalRow struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	Close    float64   `json:"close"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Volume   float64   `json:"volume"`
	AdjClose float64   `json:"adjClose"`
}
