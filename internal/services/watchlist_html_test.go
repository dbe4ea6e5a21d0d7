package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/models"
)

func TestRenderWatchlistHTML(t *testing.T) {
	rows := buildRowViews([]models.Snapshot{
		{Symbol: "AAPL", Name: "Apple Inc.", LastTradePriceOnly: 1234.5, Change: 12.5, ChangeInPercent: 0.0102},
		{Symbol: "TSLA", Name: "Tesla, Inc.", LastTradePriceOnly: 200, Change: -3, ChangeInPercent: -0.015},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "1,234.50", rows[0].Price)
	assert.Equal(t, "+1.02%", rows[0].Pct)
	assert.Equal(t, "up", rows[0].Class)
	assert.Equal(t, "-3.00", rows[1].Chg)
	assert.Equal(t, "down", rows[1].Class)

	html, err := renderWatchlistHTML(watchlistView{Title: "Watchlist", Rows: rows})
	require.NoError(t, err)
	assert.Contains(t, html, "Apple Inc.")
	assert.Contains(t, html, `class="num down"`)

	empty, err := renderWatchlistHTML(watchlistView{Title: "Watchlist"})
	require.NoError(t, err)
	assert.Contains(t, empty, "Not currently watching any symbols")
}

func TestEstimateWatchlistHeight(t *testing.T) {
	assert.Equal(t, estimateWatchlistHeight(0), estimateWatchlistHeight(1))
	assert.Equal(t, int64(48), estimateWatchlistHeight(3)-estimateWatchlistHeight(2))
}
