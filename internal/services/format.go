package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckfunc/stockbot/internal/models"
)

// FormatFixed rounds value to decimals places and groups thousands with commas.
func FormatFixed(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	s := decimal.NewFromFloat(value).StringFixed(int32(decimals))

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if sign == "-" && strings.Trim(intPart+frac, "0.") == "" {
		sign = ""
	}

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// PadRight pads s with spaces up to width runes
func PadRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// SymbolLink chat markup linking a symbol to its quote page
func SymbolLink(symbol string) string {
	return fmt.Sprintf("<https://finance.yahoo.com/quote/%s|%s>", symbol, symbol)
}

// SymbolChart image URL of a price chart; daily candles past one day
func SymbolChart(symbol string, days int) string {
	period := "i5"
	if days > 1 {
		period = "d"
	}
	return fmt.Sprintf("https://finviz.com/chart.ashx?t=%s&ty=c&ta=1&p=%s", symbol, period)
}

// SymbolColor attachment color for a price change
func SymbolColor(amt float64) string {
	switch {
	case amt > 0:
		return models.ColorPositive
	case amt < 0:
		return models.ColorNegative
	}
	return models.ColorNeutral
}

// SymbolTrend emoji marker for a price change
func SymbolTrend(amt float64) string {
	switch {
	case amt > 0:
		return ":chart_with_upwards_trend:"
	case amt < 0:
		return ":chart_with_downwards_trend:"
	}
	return ""
}

// ShortDate formats like "Jan 2nd"
func ShortDate(t time.Time) string {
	return t.Format("Jan ") + ordinal(t.Day())
}

// LongDate formats like "Jan 2nd, 2006"
func LongDate(t time.Time) string {
	return ShortDate(t) + t.Format(", 2006")
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
