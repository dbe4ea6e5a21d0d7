package commands

import (
	"fmt"
	"strings"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// quoteCard the text shared by snapshot and quote replies
func quoteCard(s models.Snapshot) string {
	var b strings.Builder
	trend := services.SymbolTrend(s.Change)
	if trend != "" {
		b.WriteString(trend + " ")
	}
	fmt.Fprintf(&b, "*%s (%s)*\n", s.Name, services.SymbolLink(s.Symbol))
	fmt.Fprintf(&b, "$%s %s (%s%%)",
		services.FormatFixed(s.LastTradePriceOnly, 2),
		services.FormatFixed(s.Change, 2),
		services.FormatFixed(s.ChangeInPercent*100, 2))
	if !s.LastTradeAt.IsZero() {
		fmt.Fprintf(&b, " - %s, %s", services.ShortDate(s.LastTradeAt), s.LastTradeAt.Format("3:04pm"))
	}
	b.WriteString("\n")
	if s.DaysLow != 0 && s.DaysHigh != 0 {
		fmt.Fprintf(&b, "Days Range: $%s - $%s\n",
			services.FormatFixed(s.DaysLow, 2), services.FormatFixed(s.DaysHigh, 2))
	}
	if s.Volume != 0 {
		fmt.Fprintf(&b, "Volume: %s", services.FormatFixed(s.Volume, 0))
	}
	return strings.TrimRight(b.String(), "\n")
}
