package commands

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luckfunc/stockbot/internal/models"
)

type fakeProvider struct {
	snaps   map[string]models.Snapshot
	history map[string][]models.HistoricalRow
	err     error

	mu       sync.Mutex
	requests [][]string
}

func (p *fakeProvider) Snapshot(_ context.Context, symbols []string) ([]models.Snapshot, error) {
	p.mu.Lock()
	p.requests = append(p.requests, symbols)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]models.Snapshot, len(symbols))
	for i, s := range symbols {
		snap, ok := p.snaps[s]
		if !ok {
			snap = models.Snapshot{Symbol: s}
		}
		out[i] = snap
	}
	return out, nil
}

func (p *fakeProvider) Historical(_ context.Context, symbols []string, from, to time.Time) (map[string][]models.HistoricalRow, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := map[string][]models.HistoricalRow{}
	for _, s := range symbols {
		for _, row := range p.history[s] {
			if !row.Date.Before(from) && !row.Date.After(to) {
				out[s] = append(out[s], row)
			}
		}
	}
	return out, nil
}

type fakeStore struct {
	mu    sync.Mutex
	users map[string]models.Portfolio
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]models.Portfolio{}}
}

func (s *fakeStore) GetPortfolio(_ context.Context, user string) (models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyOf(user), nil
}

func (s *fakeStore) AddSymbols(_ context.Context, user string, symbols []string) (models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[user]
	if !ok {
		p = models.Portfolio{}
		s.users[user] = p
	}
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if _, ok := p[sym]; !ok {
			p[sym] = models.WatchEntry{Symbol: sym}
		}
	}
	return s.copyOf(user), nil
}

func (s *fakeStore) RemoveSymbols(_ context.Context, user string, symbols []string) (models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		delete(s.users[user], strings.ToUpper(sym))
	}
	return s.copyOf(user), nil
}

func (s *fakeStore) copyOf(user string) models.Portfolio {
	out := models.Portfolio{}
	for k, v := range s.users[user] {
		out[k] = v
	}
	return out
}

type fakeRenderer struct {
	err     error
	symbols []string
}

func (r *fakeRenderer) Render(_ context.Context, _ string, snaps []models.Snapshot, _ time.Time) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range snaps {
		r.symbols = append(r.symbols, s.Symbol)
	}
	sort.Strings(r.symbols)
	return []byte("png"), nil
}

var testNow = time.Date(2024, 4, 15, 14, 0, 0, 0, time.Local)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func aapl() models.Snapshot {
	return models.Snapshot{
		Symbol:             "AAPL",
		Name:               "Apple Inc.",
		LastTradePriceOnly: 110,
		Change:             10,
		ChangeInPercent:    0.1,
		PreviousClose:      100,
		Open:               100,
		DaysLow:            99,
		DaysHigh:           111,
		Volume:             1500,
		LastTradeAt:        testNow,
	}
}

func tsla() models.Snapshot {
	return models.Snapshot{
		Symbol:             "TSLA",
		Name:               "Tesla, Inc.",
		LastTradePriceOnly: 190,
		Change:             -10,
		ChangeInPercent:    -0.05,
		PreviousClose:      200,
	}
}

func testDeps(p *fakeProvider) Deps {
	return Deps{
		Provider: p,
		Now:      func() time.Time { return testNow },
	}
}

func message(text string) *models.Message {
	return &models.Message{
		Type:  models.TypeMessage,
		Event: models.EventDirectMention,
		Text:  text,
		User:  "U1",
	}
}
