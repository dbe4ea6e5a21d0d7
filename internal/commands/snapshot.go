package commands

import (
	"context"
	"regexp"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// Snapshot posts a short quote card per symbol. On the passive path it stays
// quiet when nothing valid was mentioned.
type Snapshot struct {
	descriptor
	deps Deps
}

// NewSnapshot ...
func NewSnapshot(d Deps) *Snapshot {
	return &Snapshot{
		descriptor: descriptor{
			name:     SnapshotName,
			triggers: regexp.MustCompile(`(?i)^\b(snapshot)\b`),
		},
		deps: d,
	}
}

// Run implements Command
func (c *Snapshot) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
	symbols := services.ExtractSymbols(msg.Text)
	if len(symbols) == 0 {
		return nil, services.ErrNoSymbols
	}
	return c.RunSymbols(ctx, msg, symbols)
}

// RunSymbols implements SymbolRunner
func (c *Snapshot) RunSymbols(ctx context.Context, _ *models.Message, symbols []string) ([]models.Response, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	snaps, err := c.deps.Provider.Snapshot(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var out []models.Response
	for _, s := range snaps {
		if !s.Valid() {
			continue
		}
		out = append(out, attachmentResponse(models.Attachment{
			Fallback: "Snapshot for " + s.Symbol,
			Color:    services.SymbolColor(s.Change),
			Text:     quoteCard(s),
		}))
	}
	return out, nil
}
