package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/luckfunc/stockbot/internal/models"
)

// DefaultDays window used when a message names no dates
const DefaultDays = 5

var (
	symbolPattern    = regexp.MustCompile(`(?i)\$[a-z]+`)
	shortDaysPattern = regexp.MustCompile(`(?i)[0-9]+d`)
	longDaysPattern  = regexp.MustCompile(`(?i)[0-9]+ day`)
	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`)
	nonDigit         = regexp.MustCompile(`\D`)
)

// ContainsSymbol reports whether text mentions at least one $SYMBOL
func ContainsSymbol(text string) bool {
	return symbolPattern.MatchString(text)
}

// ExtractSymbols returns every $symbol in text, uppercased without the $,
// in the order they appear. Repeats are kept.
func ExtractSymbols(text string) []string {
	matches := symbolPattern.FindAllString(text, -1)
	symbols := make([]string, 0, len(matches))
	for _, m := range matches {
		symbols = append(symbols, strings.ToUpper(strings.TrimPrefix(m, "$")))
	}
	return symbols
}

// ExtractDates finds the date window a message asks for.
// "30d" and then "30 days" move From back; ISO dates are checked last and win.
func ExtractDates(text string, now time.Time, defaultDays int) models.DateRange {
	if defaultDays <= 0 {
		defaultDays = DefaultDays
	}
	today := startOfDay(now)
	to := today
	from := today.AddDate(0, 0, -defaultDays)

	if m := shortDaysPattern.FindString(text); m != "" {
		if n, ok := leadingCount(m); ok {
			from = today.AddDate(0, 0, -n)
		}
	}
	if m := longDaysPattern.FindString(text); m != "" {
		if n, ok := leadingCount(m); ok {
			from = today.AddDate(0, 0, -n)
		}
	}

	var dates []time.Time
	for _, token := range isoDatePattern.FindAllString(text, -1) {
		d, err := time.ParseInLocation("2006-1-2", token, now.Location())
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	switch len(dates) {
	case 1:
		from = dates[0]
	case 2:
		from, to = dates[0], dates[1]
	}

	return models.DateRange{
		From: from,
		To:   to,
		Days: int(math.Abs(math.Round(to.Sub(from).Hours() / 24))),
	}
}

func leadingCount(token string) (int, bool) {
	n, err := strconv.Atoi(nonDigit.ReplaceAllString(token, ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
