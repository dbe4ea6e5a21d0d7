package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
)

var (
	addAction    = regexp.MustCompile(`(?i)\b(add|create|start)\b`)
	removeAction = regexp.MustCompile(`(?i)\b(remove|delete|stop)\b`)
)

const notWatching = "Not currently watching any symbols"

// Watchlist lists, adds and removes the symbols a user watches
type Watchlist struct {
	descriptor
	deps Deps
}

// NewWatchlist ...
func NewWatchlist(d Deps) *Watchlist {
	return &Watchlist{
		descriptor: descriptor{
			name:     "watchlist",
			triggers: regexp.MustCompile(`(?i)^\b(watchlist|wl|w)\b`),
			aliases:  []string{"watchlist", "wl", "w"},
			example:  "watchlist add $AAPL",
		},
		deps: d,
	}
}

// Help implements Helper
func (c *Watchlist) Help(_ context.Context, self models.SelfInfo) (string, error) {
	var b strings.Builder
	b.WriteString("Provides a way to keep a list of symbols to monitor. Symbols can be added or removed, " +
		"and you get a direct message when one moves more than 5% in a day.\n")
	fmt.Fprintf(&b, "Triggers: [%s]\n", strings.Join(c.aliases, ", "))
	b.WriteString("Example commands:\n")
	fmt.Fprintf(&b, "`@%s %s`\n", self.Name, c.aliases[0])
	fmt.Fprintf(&b, "`@%s %s add $AAPL`\n", self.Name, c.aliases[0])
	fmt.Fprintf(&b, "`@%s %s remove $AAPL`", self.Name, c.aliases[0])
	return b.String(), nil
}

// Run implements Command
func (c *Watchlist) Run(ctx context.Context, msg *models.Message) ([]models.Response, error) {
	if c.deps.Store == nil {
		return nil, errors.New("Sorry, the watchlist is not available")
	}
	symbols := services.ExtractSymbols(msg.Text)

	switch {
	case addAction.MatchString(msg.Text):
		return c.add(ctx, msg.User, symbols)
	case removeAction.MatchString(msg.Text):
		return c.remove(ctx, msg.User, symbols)
	}
	return c.list(ctx, msg.User)
}

func (c *Watchlist) list(ctx context.Context, user string) ([]models.Response, error) {
	portfolio, err := c.deps.Store.GetPortfolio(ctx, user)
	if err != nil {
		return nil, err
	}
	resp := watchingResponse(portfolio, "")
	if len(portfolio) == 0 || c.deps.Renderer == nil {
		return []models.Response{resp}, nil
	}

	// the text reply stands on its own if the image cannot be produced
	snaps, err := c.deps.Provider.Snapshot(ctx, portfolio.Symbols())
	if err != nil {
		c.deps.Log.Warn().Err(err).Str("user", user).Msg("watchlist quotes unavailable")
		return []models.Response{resp}, nil
	}
	valid, err := services.ValidSnapshots(snaps)
	if err != nil {
		return []models.Response{resp}, nil
	}
	img, err := c.deps.Renderer.Render(ctx, "Watchlist", valid, c.deps.now())
	if err != nil {
		c.deps.Log.Warn().Err(err).Str("user", user).Msg("watchlist render failed")
		return []models.Response{resp}, nil
	}
	resp.Image = img
	return []models.Response{resp}, nil
}

func (c *Watchlist) add(ctx context.Context, user string, symbols []string) ([]models.Response, error) {
	snaps, err := validSnapshots(ctx, c.deps.Provider, symbols)
	if err != nil {
		return nil, err
	}
	valid := make([]string, len(snaps))
	for i, s := range snaps {
		valid[i] = s.Symbol
	}
	portfolio, err := c.deps.Store.AddSymbols(ctx, user, valid)
	if err != nil {
		return nil, err
	}
	return []models.Response{watchingResponse(portfolio, "Symbols added to watchlist")}, nil
}

func (c *Watchlist) remove(ctx context.Context, user string, symbols []string) ([]models.Response, error) {
	if len(symbols) == 0 {
		return nil, services.ErrNoSymbols
	}
	portfolio, err := c.deps.Store.RemoveSymbols(ctx, user, symbols)
	if err != nil {
		return nil, err
	}
	return []models.Response{watchingResponse(portfolio, "Symbols removed from watchlist")}, nil
}

// watchingResponse fallback defaults to the plain symbol list
func watchingResponse(p models.Portfolio, fallback string) models.Response {
	symbols := p.Symbols()
	text := notWatching
	if len(symbols) > 0 {
		links := make([]string, len(symbols))
		for i, s := range symbols {
			links[i] = services.SymbolLink(s)
		}
		text = "Currently watching: " + strings.Join(links, ", ")
	}
	if fallback == "" {
		fallback = notWatching
		if len(symbols) > 0 {
			fallback = "Currently watching: " + strings.Join(symbols, ", ")
		}
	}
	return attachmentResponse(models.Attachment{Fallback: fallback, Text: text})
}
