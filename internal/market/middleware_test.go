package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/pkg/logger"
)

type stubProvider struct {
	snaps []models.Snapshot
	err   error
	block bool
}

func (p *stubProvider) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.snaps, p.err
}

func (p *stubProvider) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	if p.err != nil {
		return nil, p.err
	}
	return map[string][]models.HistoricalRow{}, nil
}

type countingCounter struct {
	mu     *sync.Mutex
	counts map[string]float64
	key    string
}

func newCountingCounter() *countingCounter {
	return &countingCounter{mu: &sync.Mutex{}, counts: map[string]float64{}}
}

// With keys counts by label values only, dropping the label names
func (c *countingCounter) With(labelValues ...string) metrics.Counter {
	key := c.key
	for i := 1; i < len(labelValues); i += 2 {
		key += labelValues[i] + "|"
	}
	return &countingCounter{mu: c.mu, counts: c.counts, key: key}
}

func (c *countingCounter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[c.key] += delta
}

type nopHistogram struct{}

func (nopHistogram) With(...string) metrics.Histogram { return nopHistogram{} }
func (nopHistogram) Observe(float64)                  {}

func TestTimeoutMiddlewareWrapsErrors(t *testing.T) {
	cause := errors.New(`yahoo chart AAPL: Get "https://query1.finance.yahoo.com": dial tcp: i/o timeout`)
	svc := NewTimeoutMiddleware(time.Second, &stubProvider{err: cause})

	_, err := svc.Snapshot(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, "Sorry, market data is unavailable right now: snapshot failed", err.Error())
	assert.NotContains(t, err.Error(), "dial tcp")
	assert.ErrorIs(t, err, cause)

	_, err = svc.Historical(context.Background(), []string{"AAPL"}, time.Now(), time.Now())
	assert.True(t, IsProviderError(err))
}

func TestTimeoutMiddlewareExpires(t *testing.T) {
	svc := NewTimeoutMiddleware(10*time.Millisecond, &stubProvider{block: true})

	_, err := svc.Snapshot(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "snapshot timed out")
}

func TestMiddlewareChainPassesResults(t *testing.T) {
	counter := newCountingCounter()
	inner := &stubProvider{snaps: []models.Snapshot{{Symbol: "AAPL", Name: "Apple Inc."}}}

	var svc Provider = inner
	svc = NewLoggingMiddleware(logger.Nop(), svc)
	svc = NewInstrumentingMiddleware(counter, nopHistogram{}, svc)
	svc = NewTimeoutMiddleware(time.Second, svc)

	snaps, err := svc.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "Apple Inc.", snaps[0].Name)
	assert.Equal(t, float64(1), counter.counts["Snapshot|false|"])

	inner.err = errors.New("down")
	inner.snaps = nil
	_, err = svc.Snapshot(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Equal(t, float64(1), counter.counts["Snapshot|true|"])
	assert.Equal(t, float64(1), counter.counts["Snapshot|false|"])
}

func TestSplitRoutesCalls(t *testing.T) {
	quotes := &stubProvider{snaps: []models.Snapshot{{Symbol: "AAPL", Name: "from quotes"}}}
	history := &stubProvider{err: errors.New("history down")}
	s := Split{Quotes: quotes, History: history}

	snaps, err := s.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "from quotes", snaps[0].Name)

	_, err = s.Historical(context.Background(), []string{"AAPL"}, time.Now(), time.Now())
	assert.EqualError(t, err, "history down")
}
