// Package alerts watches every stored watchlist and messages users when a
// symbol moves sharply.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/market"
	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/services"
	"github.com/luckfunc/stockbot/internal/storage"
)

const (
	// DefaultThreshold fractional daily move that triggers an alert
	DefaultThreshold = 0.05
	// DefaultSendTimeout bound on a single alert message
	DefaultSendTimeout = 30 * time.Second
)

// Store the part of storage the alerter needs
type Store interface {
	All(ctx context.Context) (map[string]models.Portfolio, error)
	UpdateAlerts(ctx context.Context, userID, symbol string, fn func(*models.PriceAlerts) error) error
}

// Notifier delivers direct messages
type Notifier interface {
	SendDirect(ctx context.Context, userID string, resp models.Response) error
}

// AlerterConfig ...
type AlerterConfig struct {
	Store     Store
	Provider  market.SnapshotSource
	Notifier  Notifier
	Log       zerolog.Logger
	Threshold float64
	// SendTimeout defaults to DefaultSendTimeout
	SendTimeout time.Duration
	Now         func() time.Time
}

// TickResult what one polling pass did
type TickResult struct {
	Symbols    int
	Triggered  int
	Sent       int
	Suppressed int
	Failed     int
}

// Alerter polls snapshots for all watched symbols
type Alerter struct {
	store     Store
	provider  market.SnapshotSource
	notifier  Notifier
	log       zerolog.Logger
	threshold float64
	timeout   time.Duration
	now       func() time.Time
}

// NewAlerter ...
func NewAlerter(cfg AlerterConfig) *Alerter {
	a := &Alerter{
		store:     cfg.Store,
		provider:  cfg.Provider,
		notifier:  cfg.Notifier,
		log:       cfg.Log.With().Str("job", "watchlist_alerts").Logger(),
		threshold: cfg.Threshold,
		timeout:   cfg.SendTimeout,
		now:       cfg.Now,
	}
	if a.threshold <= 0 {
		a.threshold = DefaultThreshold
	}
	if a.timeout <= 0 {
		a.timeout = DefaultSendTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Name implements scheduler.Job
func (a *Alerter) Name() string {
	return "watchlist_alerts"
}

// Run implements scheduler.Job
func (a *Alerter) Run(ctx context.Context) error {
	res, err := a.Tick(ctx)
	if err != nil {
		return err
	}
	if res.Triggered > 0 {
		a.log.Info().
			Int("symbols", res.Symbols).
			Int("triggered", res.Triggered).
			Int("sent", res.Sent).
			Int("suppressed", res.Suppressed).
			Int("failed", res.Failed).
			Msg("Alert pass completed")
	}
	return nil
}

// Tick runs one polling pass
func (a *Alerter) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	portfolios, err := a.store.All(ctx)
	if err != nil {
		return res, fmt.Errorf("load portfolios: %w", err)
	}

	holders := map[string][]string{}
	for user, p := range portfolios {
		for symbol := range p {
			holders[symbol] = append(holders[symbol], user)
		}
	}
	if len(holders) == 0 {
		a.log.Debug().Msg("No watched symbols")
		return res, nil
	}

	symbols := make([]string, 0, len(holders))
	for symbol := range holders {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	res.Symbols = len(symbols)

	snaps, err := a.provider.Snapshot(ctx, symbols)
	if err != nil {
		return res, fmt.Errorf("snapshot %d symbols: %w", len(symbols), err)
	}

	for _, snap := range snaps {
		if !snap.Valid() || math.Abs(snap.ChangeInPercent) <= a.threshold {
			continue
		}
		res.Triggered++
		dir := models.AlertDown
		if snap.ChangeInPercent > 0 {
			dir = models.AlertUp
		}

		users := holders[snap.Symbol]
		sort.Strings(users)
		for _, user := range users {
			sent, err := a.notify(ctx, user, snap, dir)
			switch {
			case err != nil:
				res.Failed++
				a.log.Error().Err(err).Str("user", user).Str("symbol", snap.Symbol).Msg("Alert failed")
			case sent:
				res.Sent++
			default:
				res.Suppressed++
			}
		}
	}
	return res, nil
}

// notify sends at most one alert per user, symbol, direction and day. The
// stamp is reserved in one short transaction before sending and released in
// another if the send fails, so no transaction is held open across the send.
func (a *Alerter) notify(ctx context.Context, user string, snap models.Snapshot, dir models.AlertDirection) (bool, error) {
	now := a.now()
	reserved := false
	var previous models.PriceAlerts
	err := a.store.UpdateAlerts(ctx, user, snap.Symbol, func(alerts *models.PriceAlerts) error {
		if last := alerts.Get(dir); last != nil && sameDay(*last, now) {
			return nil
		}
		previous = *alerts
		alerts.Reset(dir, now)
		reserved = true
		return nil
	})
	if errors.Is(err, storage.ErrNotWatched) {
		// removed from the watchlist since the pass started
		return false, nil
	}
	if err != nil || !reserved {
		return false, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	sendErr := a.notifier.SendDirect(sendCtx, user, alertResponse(snap, dir))
	if sendErr == nil {
		return true, nil
	}

	sendErr = fmt.Errorf("send alert: %w", sendErr)
	if err := a.release(ctx, user, snap.Symbol, dir, now, previous); err != nil {
		return false, errors.Join(sendErr, err)
	}
	return false, sendErr
}

// release restores the alert state saved before a reservation, unless another
// pass has stamped the entry since.
func (a *Alerter) release(ctx context.Context, user, symbol string, dir models.AlertDirection, stamp time.Time, previous models.PriceAlerts) error {
	err := a.store.UpdateAlerts(context.WithoutCancel(ctx), user, symbol, func(alerts *models.PriceAlerts) error {
		if last := alerts.Get(dir); last == nil || last.UnixMilli() != stamp.UnixMilli() {
			return nil
		}
		*alerts = previous
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotWatched) {
		return fmt.Errorf("release alert: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func alertResponse(s models.Snapshot, dir models.AlertDirection) models.Response {
	pct := services.FormatFixed(math.Abs(s.ChangeInPercent*100), 2)
	text := fmt.Sprintf("%s *%s (%s)* is %s %s%% today at $%s (%s)",
		services.SymbolTrend(s.ChangeInPercent),
		s.Name,
		services.SymbolLink(s.Symbol),
		dir,
		pct,
		services.FormatFixed(s.LastTradePriceOnly, 2),
		services.FormatFixed(s.Change, 2))
	return models.Response{Attachments: []models.Attachment{{
		Fallback: fmt.Sprintf("Price alert: %s %s %s%%", s.Symbol, dir, pct),
		Color:    services.SymbolColor(s.ChangeInPercent),
		Text:     text,
		MrkdwnIn: []string{"text"},
	}}}
}
