package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// Quote a near real time quote with an intraday chart
type Quote struct {
	descriptor
	deps Deps
}

// NewQuote ...
func NewQuote(d Deps) *Quote {
	return &Quote{
		descriptor: descriptor{
			name:     "quote",
			triggers: regexp.MustCompile(`(?i)^\b(quote|q)\b`),
			aliases:  []string{"quote", "q"},
		},
		deps: d,
	}
}

// Help implements Helper
func (c *Quote) Help(_ context.Context, self models.SelfInfo) (string, error) {
	return "Provides a near real time quote for the requested symbol. Information " +
		"includes current price, volume, day range, and a 1 day chart.\n" +
		fmt.Sprintf("Triggers: [%s]\n", strings.Join(c.aliases, ", ")) +
		fmt.Sprintf("To run command, type: `@%s %s $AAPL`", self.Name, c.aliases[0]), nil
}

// Run implements Command
func (c *Quote) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
	snaps, err := validSnapshots(ctx, c.deps.Provider, services.ExtractSymbols(msg.Text))
	if err != nil {
		return nil, err
	}

	out := make([]models.Response, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, attachmentResponse(models.Attachment{
			Fallback: strings.TrimSpace("Quote for " + s.Symbol + " " + services.SymbolTrend(s.Change)),
			Color:    services.SymbolColor(s.Change),
			Text:     quoteCard(s),
			ImageURL: services.SymbolChart(s.Symbol, 1),
		}))
	}
	return out, nil
}
