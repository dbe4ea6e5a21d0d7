package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aaplChart = `{"chart":{"result":[{"meta":{"symbol":"AAPL","longName":"Apple Inc.","gmtoffset":-14400,
"exchangeTimezoneName":"America/New_York","regularMarketPrice":110,"regularMarketTime":1704387600,
"regularMarketDayHigh":111,"regularMarketDayLow":104,"regularMarketVolume":5000,
"fiftyTwoWeekHigh":150,"fiftyTwoWeekLow":90,"chartPreviousClose":95},
"timestamp":[1704205800,1704292200,1704378600],
"indicators":{"quote":[{"open":[98,101,105],"high":[102,106,111],"low":[97,100,104],
"close":[100,null,110],"volume":[1000,2000,3000]}],"adjclose":[{"adjclose":[99.5,null,109.5]}]}}],"error":null}}`

const notFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"):
			_, _ = w.Write([]byte(aaplChart))
		case strings.HasSuffix(r.URL.Path, "/BOOM"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFound))
		}
	}))
}

func TestSnapshot(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	snaps, err := c.Snapshot(context.Background(), []string{"AAPL", "ZZZZ"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	aapl := snaps[0]
	assert.True(t, aapl.Valid())
	assert.Equal(t, "Apple Inc.", aapl.Name)
	assert.Equal(t, 110.0, aapl.LastTradePriceOnly)
	assert.Equal(t, 105.0, aapl.Open)
	// the null close row is skipped, so the prior close is 100
	assert.Equal(t, 100.0, aapl.PreviousClose)
	assert.Equal(t, 10.0, aapl.Change)
	assert.InDelta(t, 0.1, aapl.ChangeInPercent, 1e-9)
	assert.Equal(t, 5000.0, aapl.Volume)
	assert.Equal(t, 2000.0, aapl.AverageDailyVolume)
	assert.Equal(t, 150.0, aapl.YearHigh)

	assert.Equal(t, "ZZZZ", snaps[1].Symbol)
	assert.False(t, snaps[1].Valid())
}

func TestSnapshotServerError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	_, err := c.Snapshot(context.Background(), []string{"AAPL", "BOOM"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHistorical(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)
	rows, err := c.Historical(context.Background(), []string{"AAPL", "ZZZZ"}, from, from.AddDate(0, 0, 3))
	require.NoError(t, err)

	aapl := rows["AAPL"]
	require.Len(t, aapl, 2)
	assert.Equal(t, "2024-01-02", aapl[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-04", aapl[1].Date.Format("2006-01-02"))
	assert.Equal(t, 99.5, aapl[0].AdjClose)
	assert.Equal(t, 3000.0, aapl[1].Volume)

	assert.Empty(t, rows["ZZZZ"])
}
