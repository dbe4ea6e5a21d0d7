package models

import "time"

const dateLayout = "2006-01-02"

// DateRange a from/to window of calendar days
type DateRange struct {
	From time.Time
	To   time.Time
	Days int
}

// FromString returns From as YYYY-MM-DD
func (r DateRange) FromString() string { return r.From.Format(dateLayout) }

// ToString returns To as YYYY-MM-DD
func (r DateRange) ToString() string { return r.To.Format(dateLayout) }
