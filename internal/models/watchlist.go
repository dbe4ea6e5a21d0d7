package models

import (
	"sort"
	"time"
)

// AlertDirection which way a price alert fired
type AlertDirection string

const (
	AlertUp   AlertDirection = "up"
	AlertDown AlertDirection = "down"
)

// PriceAlerts last time an alert went out per direction; nil means never (or reset).
type PriceAlerts struct {
	Up   *time.Time `json:"up"`
	Down *time.Time `json:"down"`
}

// Get returns the stamp for a direction
func (a PriceAlerts) Get(dir AlertDirection) *time.Time {
	if dir == AlertUp {
		return a.Up
	}
	return a.Down
}

// Reset clears both directions and stamps dir with at
func (a *PriceAlerts) Reset(dir AlertDirection, at time.Time) {
	a.Up, a.Down = nil, nil
	stamp := at
	if dir == AlertUp {
		a.Up = &stamp
	} else {
		a.Down = &stamp
	}
}

// WatchEntry one watched symbol in a user's portfolio
type WatchEntry struct {
	Symbol  string      `json:"symbol"`
	Alerts  PriceAlerts `json:"alerts"`
	AddedAt time.Time   `json:"added_at"`
}

// Portfolio a user's watchlist keyed by symbol
type Portfolio map[string]WatchEntry

// Symbols returns the watched symbols sorted
func (p Portfolio) Symbols() []string {
	out := make([]string, 0, len(p))
	for symbol := range p {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
