package commands

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/market"
	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

// WatchlistStore the part of storage the watchlist command needs
type WatchlistStore interface {
	GetPortfolio(ctx context.Context, userID string) (models.Portfolio, error)
	AddSymbols(ctx context.Context, userID string, symbols []string) (models.Portfolio, error)
	RemoveSymbols(ctx context.Context, userID string, symbols []string) (models.Portfolio, error)
}

// SymbolRunner is implemented by commands that can run on a symbol list the
// caller already filtered
type SymbolRunner interface {
	RunSymbols(ctx context.Context, msg *models.Message, symbols []string) ([]models.Response, error)
}

// Deps shared collaborators of the built-in commands
type Deps struct {
	Provider    market.Provider
	Store       WatchlistStore
	Renderer    services.WatchlistRenderer
	Log         zerolog.Logger
	Now         func() time.Time
	DefaultDays int
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) defaultDays() int {
	if d.DefaultDays <= 0 {
		return services.DefaultDays
	}
	return d.DefaultDays
}

// Builtin every command in registration order
func Builtin(d Deps) []Command {
	return []Command{
		NewSnapshot(d),
		NewQuote(d),
		NewHistorical(d),
		NewAnalysis(d),
		NewVariance(d),
		NewWatchlist(d),
	}
}

// descriptor carries the static identity of a command
type descriptor struct {
	name     string
	triggers *regexp.Regexp
	aliases  []string
	example  string
}

func (d descriptor) Name() string             { return d.name }
func (d descriptor) Triggers() *regexp.Regexp { return d.triggers }
func (d descriptor) Aliases() []string        { return d.aliases }

func (d descriptor) Example() string {
	if d.example != "" {
		return d.example
	}
	if len(d.aliases) == 0 {
		return d.name
	}
	return d.aliases[0] + " $AAPL"
}

// validSnapshots fetches snapshots and keeps known symbols only
func validSnapshots(ctx context.Context, provider market.Provider, symbols []string) ([]models.Snapshot, error) {
	if len(symbols) == 0 {
		return nil, services.ErrNoSymbols
	}
	snaps, err := provider.Snapshot(ctx, symbols)
	if err != nil {
		return nil, err
	}
	return services.ValidSnapshots(snaps)
}

func attachmentResponse(a models.Attachment) models.Response {
	if a.MrkdwnIn == nil {
		a.MrkdwnIn = []string{"text", "pretext"}
	}
	return models.Response{Attachments: []models.Attachment{a}}
}
