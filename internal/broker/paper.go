package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nvarley/signalrunner/internal/id"
	"github.com/nvarley/signalrunner/internal/instrument"
)

// Paper is an in-memory gateway for dry-run mode and tests. Orders fill
// immediately at the current set price; tests drive prices with SetPrice.
type Paper struct {
	mu        sync.Mutex
	prices    map[string]float64
	positions map[string]int
	fills     []Fill
	orders    []string // "open AAPL..5", audit trail for tests
	released  map[string]int
	now       func() time.Time
}

func NewPaper(now func() time.Time) *Paper {
	if now == nil {
		now = time.Now
	}
	return &Paper{
		prices:    make(map[string]float64),
		positions: make(map[string]int),
		released:  make(map[string]int),
		now:       now,
	}
}

// SetPrice sets the quoted price for an instrument key. NaN simulates a
// market-data failure.
func (p *Paper) SetPrice(key string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[key] = price
}

func (p *Paper) Snapshot(_ context.Context, inst instrument.Canonical) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[inst.Key()]
	if !ok || math.IsNaN(price) {
		return 0, &GatewayError{Op: "snapshot", Key: inst.Key(), Cause: fmt.Errorf("no market data")}
	}
	return price, nil
}

func (p *Paper) OpenPositionCount(_ context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, qty := range p.positions {
		if qty != 0 {
			n++
		}
	}
	return n, nil
}

func (p *Paper) SubmitOpen(_ context.Context, o OpenOrder) (Fill, error) {
	return p.fill("open", o.Instrument, o.Quantity)
}

func (p *Paper) SubmitClose(_ context.Context, o CloseOrder) (Fill, error) {
	return p.fill("close", o.Instrument, -o.Quantity)
}

func (p *Paper) SubmitBracket(_ context.Context, o BracketOrder) (Fill, error) {
	return p.fill("bracket", o.Instrument, o.Quantity)
}

func (p *Paper) SubmitNativeTrail(_ context.Context, o TrailOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, fmt.Sprintf("trail %s %d", o.Instrument.Key(), o.Quantity))
	return nil
}

func (p *Paper) ReleaseMarketData(inst instrument.Canonical) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released[inst.Key()]++
}

// Fills returns every fill so far, oldest first.
func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// Orders returns the audit trail of submissions.
func (p *Paper) Orders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.orders))
	copy(out, p.orders)
	return out
}

// Released returns how many times market data was released for a key.
func (p *Paper) Released(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released[key]
}

func (p *Paper) fill(kind string, inst instrument.Canonical, qty int) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := inst.Key()
	price, ok := p.prices[key]
	if !ok || math.IsNaN(price) {
		return Fill{}, &GatewayError{Op: kind, Key: key, Cause: fmt.Errorf("no market data")}
	}
	p.positions[key] += qty
	f := Fill{
		OrderID:  id.New(),
		Price:    price,
		Quantity: qty,
		FilledAt: p.now(),
	}
	p.fills = append(p.fills, f)
	p.orders = append(p.orders, fmt.Sprintf("%s %s %d", kind, key, qty))
	return f, nil
}
