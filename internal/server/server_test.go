package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockbot/internal/commands"
	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/internal/scheduler"
	"github.com/luckfunc/stockbot/pkg/logger"
)

type fixedSize int

func (n fixedSize) Len() int { return int(n) }

type fixedJobs []scheduler.EntryInfo

func (j fixedJobs) Entries() []scheduler.EntryInfo { return j }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := commands.NewRegistry(logger.Nop())
	for _, cmd := range commands.Builtin(commands.Deps{}) {
		require.NoError(t, reg.Register(cmd))
	}

	gatherer := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockbot_test_total", Help: "test"})
	gatherer.MustRegister(counter)
	counter.Add(3)

	return New(Config{
		Log:      logger.Nop(),
		Commands: reg,
		Jobs:     fixedJobs{{Name: "watchlist_alerts", Schedule: "@every 5m0s"}},
		Dedup:    fixedSize(4),
		Self:     func() models.SelfInfo { return models.SelfInfo{ID: "B1", Name: "stockbot"} },
		Gatherer: gatherer,
		Started:  time.Now().Add(-time.Minute),
		Version:  "test",
	})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestIndexListsCommands(t *testing.T) {
	rec := get(t, newTestServer(t), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "stockbot")
	assert.Contains(t, body, "quote")
	assert.Contains(t, body, "watchlist")
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stockbot", resp.Bot)
	assert.Equal(t, 4, resp.DedupSymbols)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(59))
	assert.Contains(t, resp.Commands, "snapshot")
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "watchlist_alerts", resp.Jobs[0].Name)
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(t), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockbot_test_total 3")
}
