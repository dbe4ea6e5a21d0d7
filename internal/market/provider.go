// Package market fetches quotes and daily history from market-data providers.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luckfunc/stockbot/internal/models"
)

// Provider market-data collaborator
type Provider interface {
	// Snapshot returns one snapshot per requested symbol in request order.
	// Unknown symbols come back with an empty Name instead of an error.
	Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error)
	// Historical returns daily rows per symbol, oldest first.
	Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error)
}

// SnapshotSource provides quotes only
type SnapshotSource interface {
	Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error)
}

// ProviderError a provider call failed. Its message is safe to show users and
// never includes the cause; log Err for that.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("Sorry, market data is unavailable right now: %s timed out", e.Op)
	}
	return fmt.Sprintf("Sorry, market data is unavailable right now: %s failed", e.Op)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err came from a provider call
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// Split serves snapshots from one source and history from another
type Split struct {
	Quotes  SnapshotSource
	History Provider
}

// Snapshot implements Provider
func (s Split) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	return s.Quotes.Snapshot(ctx, symbols)
}

// Historical implements Provider
func (s Split) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	return s.History.Historical(ctx, symbols, from, to)
}
