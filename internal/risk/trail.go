// Package risk supervises open positions with an adaptive trailing
// stop: breakeven arming, peak tracking, drawdown exit, and a hard
// timeout.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvarley/signalrunner/internal/broker"
	"github.com/nvarley/signalrunner/internal/id"
	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/journal"
	"github.com/nvarley/signalrunner/internal/ledger"
	"github.com/nvarley/signalrunner/internal/notify"
	"github.com/nvarley/signalrunner/internal/observ"
)

// Entry is one supervised position. BreakevenHit never reverts and
// Highest never decreases for the life of the entry.
type Entry struct {
	Instrument   instrument.Canonical
	EntryPrice   float64
	Quantity     int
	Highest      float64
	BreakevenHit bool
	CreatedAt    time.Time
}

type Config struct {
	BreakevenTriggerPct float64
	TrailDrawdownPct    float64
	Timeout             time.Duration
	TickInterval        time.Duration
}

// Manager owns the supervised-entry map. Entries are created by the
// decision engine after a confirmed open fill and destroyed here on
// exit. The map lock is never held across a gateway call.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*Entry

	gw   broker.Gateway
	book *ledger.Book
	jrnl journal.Journal
	sink notify.Notifier
	cfg  Config
	now  func() time.Time
}

func NewManager(gw broker.Gateway, book *ledger.Book, jrnl journal.Journal, sink notify.Notifier, cfg Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		entries: make(map[string]*Entry),
		gw:      gw,
		book:    book,
		jrnl:    jrnl,
		sink:    sink,
		cfg:     cfg,
		now:     now,
	}
}

// Track registers a freshly opened position for supervision.
func (m *Manager) Track(inst instrument.Canonical, entryPrice float64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[inst.Key()] = &Entry{
		Instrument: inst,
		EntryPrice: entryPrice,
		Quantity:   qty,
		Highest:    entryPrice,
		CreatedAt:  m.now(),
	}
	observ.ActiveTrails.Set(float64(len(m.entries)))
}

// Untrack drops supervision for an instrument that was closed outside
// the trail loop, such as a manual sell signal.
func (m *Manager) Untrack(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	observ.ActiveTrails.Set(float64(len(m.entries)))
}

// ReduceQuantity shrinks a supervised entry after a partial close. The
// entry is dropped once nothing is left to supervise.
func (m *Manager) ReduceQuantity(key string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.Quantity -= qty
	if e.Quantity <= 0 {
		delete(m.entries, key)
	}
	observ.ActiveTrails.Set(float64(len(m.entries)))
}

// Active returns the number of supervised positions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns a copy of one entry for inspection.
func (m *Manager) Snapshot(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Run evaluates every entry on a fixed interval until ctx is cancelled.
// An in-flight tick always finishes before shutdown.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one supervision pass. Entries are evaluated sequentially;
// a missing price skips that entry for this tick only.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.mu.Lock()
		e, ok := m.entries[key]
		if !ok {
			m.mu.Unlock()
			continue
		}
		snapshot := *e
		m.mu.Unlock()

		price, err := m.gw.Snapshot(ctx, snapshot.Instrument)
		if err != nil {
			observ.Warn("trail_no_price", map[string]any{
				"key": key, "error": err.Error()})
			continue
		}

		exited := m.applyPrice(ctx, key, price)
		if exited {
			continue
		}

		// Timeout runs after the price check so a price exit on the
		// same tick wins.
		if m.now().Sub(snapshot.CreatedAt) > m.cfg.Timeout {
			m.exit(ctx, key, "timeout", price)
		}
	}
}

// applyPrice folds one sampled price into the entry's state machine and
// reports whether a drawdown exit fired.
func (m *Manager) applyPrice(ctx context.Context, key string, price float64) bool {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return false
	}

	if !e.BreakevenHit && price >= e.EntryPrice*(1+m.cfg.BreakevenTriggerPct/100) {
		e.BreakevenHit = true
		observ.Log("trail_breakeven", map[string]any{"key": key, "price": price})
	}
	if !e.BreakevenHit {
		m.mu.Unlock()
		return false
	}

	if price > e.Highest {
		e.Highest = price
		m.mu.Unlock()
		return false
	}
	floor := e.Highest * (1 - m.cfg.TrailDrawdownPct/100)
	if price < floor {
		m.mu.Unlock()
		m.exit(ctx, key, "trail", price)
		return true
	}
	m.mu.Unlock()
	return false
}

// exit closes the position and removes the entry. The entry is deleted
// only after the close order is accepted, so a failed submission is
// retried next tick; within one tick the sequential pass guarantees at
// most one close per entry.
func (m *Manager) exit(ctx context.Context, key, reason string, price float64) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	snapshot := *e
	m.mu.Unlock()

	fill, err := m.gw.SubmitClose(ctx, broker.CloseOrder{
		Instrument: snapshot.Instrument,
		Quantity:   snapshot.Quantity,
	})
	if err != nil {
		observ.OrderFailures.Inc()
		observ.Error("trail_close_failed", map[string]any{
			"key": key, "reason": reason, "error": err.Error()})
		return
	}

	m.mu.Lock()
	delete(m.entries, key)
	observ.ActiveTrails.Set(float64(len(m.entries)))
	m.mu.Unlock()

	m.book.Reduce(snapshot.Instrument.Underlying, snapshot.Quantity, m.now())

	if err := m.jrnl.Record(journal.TradeRecord{
		ID:        id.New(),
		Timestamp: m.now(),
		Symbol:    key,
		Qty:       snapshot.Quantity,
		Price:     fill.Price,
		Action:    "close",
		Reason:    reason,
	}); err != nil {
		observ.Warn("journal_write_failed", map[string]any{"key": key, "error": err.Error()})
	}

	m.sink.Notify(fmt.Sprintf("🔴 *Closed %s*\n> Reason: %s\n> Price: $%.2f  Qty: %d",
		snapshot.Instrument, reason, fill.Price, snapshot.Quantity))

	m.gw.ReleaseMarketData(snapshot.Instrument)

	observ.TrailExits.WithLabelValues(reason).Inc()
	observ.OrdersSubmitted.WithLabelValues("close").Inc()
	observ.Log("trail_exit", map[string]any{
		"key": key, "reason": reason, "price": price, "qty": snapshot.Quantity})
}
