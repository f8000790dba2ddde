// Package ledger tracks the running net open quantity per underlying.
// Both the decision engine and the risk manager mutate it, so every
// access goes through one mutex held only for the read-modify-write.
package ledger

import (
	"sync"
	"time"

	"github.com/nvarley/signalrunner/internal/observ"
)

// Entry is the per-underlying record: net quantity plus last-touched
// metadata for the most recent fill.
type Entry struct {
	Quantity      int
	InstrumentKey string
	AlertID       string
	TouchedAt     time.Time
}

// Book is the in-memory quantity ledger. Zero value is not usable; call
// New.
type Book struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func New() *Book {
	return &Book{entries: make(map[string]Entry)}
}

// Add increments the net quantity for an underlying after a confirmed
// open fill.
func (b *Book) Add(underlying, instrumentKey, alertID string, qty int, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[underlying]
	e.Quantity += qty
	e.InstrumentKey = instrumentKey
	e.AlertID = alertID
	e.TouchedAt = now
	b.entries[underlying] = e
}

// Reduce decrements the net quantity and returns how much was actually
// reduced. A reduce larger than the ledgered quantity clamps at zero:
// a duplicate or oversized close must not drive the book negative.
func (b *Book) Reduce(underlying string, qty int, now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[underlying]
	if !ok || e.Quantity <= 0 {
		return 0
	}
	reduced := qty
	if reduced > e.Quantity {
		observ.Warn("ledger_reduce_clamped", map[string]any{
			"underlying": underlying, "requested": qty, "held": e.Quantity})
		reduced = e.Quantity
	}
	e.Quantity -= reduced
	e.TouchedAt = now
	b.entries[underlying] = e
	return reduced
}

// Quantity returns the net open quantity for an underlying.
func (b *Book) Quantity(underlying string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[underlying].Quantity
}

// Get returns the full entry for an underlying.
func (b *Book) Get(underlying string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[underlying]
	return e, ok
}
