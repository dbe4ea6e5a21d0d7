package market

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/models"
)

// loggingMiddleware wraps Provider and logs every call
type loggingMiddleware struct {
	log zerolog.Logger
	svc Provider
}

// NewLoggingMiddleware ...
func NewLoggingMiddleware(log zerolog.Logger, svc Provider) Provider {
	return &loggingMiddleware{log: log, svc: svc}
}

func (s *loggingMiddleware) Snapshot(ctx context.Context, symbols []string) (snaps []models.Snapshot, err error) {
	defer func(begin time.Time) {
		s.event(err).
			Str("method", "Snapshot").
			Str("symbols", strings.Join(symbols, ",")).
			Int("results", len(snaps)).
			Dur("elapsed", time.Since(begin)).
			Msg("provider call")
	}(time.Now())
	return s.svc.Snapshot(ctx, symbols)
}

func (s *loggingMiddleware) Historical(ctx context.Context, symbols []string, from, to time.Time) (rows map[string][]models.HistoricalRow, err error) {
	defer func(begin time.Time) {
		s.event(err).
			Str("method", "Historical").
			Str("symbols", strings.Join(symbols, ",")).
			Str("from", from.Format("2006-01-02")).
			Str("to", to.Format("2006-01-02")).
			Dur("elapsed", time.Since(begin)).
			Msg("provider call")
	}(time.Now())
	return s.svc.Historical(ctx, symbols, from, to)
}

func (s *loggingMiddleware) event(err error) *zerolog.Event {
	if err != nil {
		return s.log.Error().Err(err)
	}
	return s.log.Debug()
}

// instrumentingMiddleware wraps Provider and records request metrics
type instrumentingMiddleware struct {
	reqCount    metrics.Counter
	reqDuration metrics.Histogram
	svc         Provider
}

// NewInstrumentingMiddleware ...
func NewInstrumentingMiddleware(reqCount metrics.Counter, reqDuration metrics.Histogram, svc Provider) Provider {
	return &instrumentingMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		svc:         svc,
	}
}

func (s *instrumentingMiddleware) Snapshot(ctx context.Context, symbols []string) (snaps []models.Snapshot, err error) {
	defer func(begin time.Time) { s.recordMetrics("Snapshot", begin, err) }(time.Now())
	return s.svc.Snapshot(ctx, symbols)
}

func (s *instrumentingMiddleware) Historical(ctx context.Context, symbols []string, from, to time.Time) (rows map[string][]models.HistoricalRow, err error) {
	defer func(begin time.Time) { s.recordMetrics("Historical", begin, err) }(time.Now())
	return s.svc.Historical(ctx, symbols, from, to)
}

func (s *instrumentingMiddleware) recordMetrics(method string, startTime time.Time, err error) {
	labels := []string{
		"method", method,
		"error", strconv.FormatBool(err != nil),
	}
	s.reqCount.With(labels...).Add(1)
	s.reqDuration.With(labels...).Observe(time.Since(startTime).Seconds())
}

// timeoutMiddleware bounds every call and turns failures into ProviderError
type timeoutMiddleware struct {
	timeout time.Duration
	svc     Provider
}

// NewTimeoutMiddleware ...
func NewTimeoutMiddleware(timeout time.Duration, svc Provider) Provider {
	return &timeoutMiddleware{timeout: timeout, svc: svc}
}

func (s *timeoutMiddleware) Snapshot(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	snaps, err := s.svc.Snapshot(ctx, symbols)
	if err != nil {
		return nil, wrap("snapshot", err)
	}
	return snaps, nil
}

func (s *timeoutMiddleware) Historical(ctx context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rows, err := s.svc.Historical(ctx, symbols, from, to)
	if err != nil {
		return nil, wrap("historical", err)
	}
	return rows, nil
}

func (s *timeoutMiddleware) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func wrap(op string, err error) error {
	if IsProviderError(err) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}
