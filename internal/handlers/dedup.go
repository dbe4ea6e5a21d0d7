package handlers

import (
	"sync"
	"time"
)

// DefaultCooldown how long a passively looked up symbol stays quiet
const DefaultCooldown = 300 * time.Second

// DedupEntry last passive lookup of a symbol
type DedupEntry struct {
	Symbol      string
	LastSeenAt  time.Time
	RepeatCount int
}

// DedupWindow suppresses repeat passive lookups of a symbol within a cooldown.
// Entries are never evicted, so memory grows with the number of distinct
// symbols seen during the process lifetime.
type DedupWindow struct {
	mu       sync.Mutex
	cooldown time.Duration
	entries  map[string]DedupEntry
}

// NewDedupWindow cooldown <= 0 means DefaultCooldown
func NewDedupWindow(cooldown time.Duration) *DedupWindow {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &DedupWindow{
		cooldown: cooldown,
		entries:  map[string]DedupEntry{},
	}
}

// Admit returns the symbols that may be looked up now, in caller order.
// New symbols start at count 1; symbols past the cooldown are refreshed and
// counted again; symbols still cooling down are dropped and left untouched.
func (w *DedupWindow) Admit(symbols []string, now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	keep := make([]bool, len(symbols))
	for i := len(symbols) - 1; i >= 0; i-- {
		symbol := symbols[i]
		entry, seen := w.entries[symbol]
		switch {
		case !seen:
			w.entries[symbol] = DedupEntry{Symbol: symbol, LastSeenAt: now, RepeatCount: 1}
			keep[i] = true
		case now.Sub(entry.LastSeenAt) >= w.cooldown:
			entry.LastSeenAt = now
			entry.RepeatCount++
			w.entries[symbol] = entry
			keep[i] = true
		}
	}

	admitted := make([]string, 0, len(symbols))
	for i, symbol := range symbols {
		if keep[i] {
			admitted = append(admitted, symbol)
		}
	}
	return admitted
}

// Entry current state of a symbol
func (w *DedupWindow) Entry(symbol string) (DedupEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[symbol]
	return e, ok
}

// Len number of symbols ever admitted
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
