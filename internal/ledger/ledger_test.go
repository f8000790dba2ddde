package ledger

import (
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 7, 7, 14, 0, 0, 0, time.UTC)

func TestAddAccumulates(t *testing.T) {
	b := New()
	b.Add("SPY", "SPY260707C00450000", "a1", 3, t0)
	b.Add("SPY", "SPY260707C00455000", "a2", 2, t0.Add(time.Minute))

	if got := b.Quantity("SPY"); got != 5 {
		t.Fatalf("quantity = %d, want 5", got)
	}
	e, ok := b.Get("SPY")
	if !ok {
		t.Fatalf("expected entry")
	}
	if e.InstrumentKey != "SPY260707C00455000" || e.AlertID != "a2" {
		t.Errorf("entry should carry the latest fill metadata: %+v", e)
	}
}

func TestReduceClampsAtZero(t *testing.T) {
	b := New()
	b.Add("SPY", "k", "a1", 3, t0)

	if got := b.Reduce("SPY", 10, t0); got != 3 {
		t.Fatalf("reduced = %d, want clamp to 3", got)
	}
	if got := b.Quantity("SPY"); got != 0 {
		t.Fatalf("quantity = %d, want 0", got)
	}
	// A duplicate close against an empty book is a no-op.
	if got := b.Reduce("SPY", 1, t0); got != 0 {
		t.Fatalf("reduced = %d, want 0", got)
	}
}

func TestReduceUnknownUnderlying(t *testing.T) {
	b := New()
	if got := b.Reduce("TSLA", 1, t0); got != 0 {
		t.Fatalf("reduced = %d, want 0", got)
	}
}

func TestConcurrentAddReduce(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Add("SPY", "k", "a", 2, t0)
		}()
		go func() {
			defer wg.Done()
			b.Reduce("SPY", 1, t0)
		}()
	}
	wg.Wait()

	if got := b.Quantity("SPY"); got < 50 || got > 100 {
		t.Fatalf("quantity = %d, want between 50 and 100", got)
	}
}
