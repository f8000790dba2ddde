package decision

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvarley/signalrunner/internal/broker"
	"github.com/nvarley/signalrunner/internal/config"
	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/journal"
	"github.com/nvarley/signalrunner/internal/ledger"
	"github.com/nvarley/signalrunner/internal/risk"
	"github.com/nvarley/signalrunner/internal/signal"
)

// stubParser returns a canned intent so tests pin engine behavior
// without re-testing the normalizer.
type stubParser struct {
	intent signal.TradeIntent
	ok     bool
}

func (s stubParser) Normalize(alert signal.RawAlert) (signal.TradeIntent, bool) {
	out := s.intent
	out.AlertID = alert.ID
	return out, s.ok
}

type memJournal struct {
	mu      sync.Mutex
	records []journal.TradeRecord
}

func (j *memJournal) Record(t journal.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, t)
	return nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) all() []journal.TradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]journal.TradeRecord, len(j.records))
	copy(out, j.records)
	return out
}

type memSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *memSink) Notify(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, text)
}

func testClock() time.Time {
	return time.Date(2026, 7, 7, 14, 0, 0, 0, time.UTC)
}

func buyIntent() signal.TradeIntent {
	return signal.TradeIntent{
		Underlying:  "SPY",
		Strike:      450,
		Right:       signal.RightCall,
		Instruction: signal.InstrBuy,
	}
}

type fixture struct {
	gw     *broker.Paper
	book   *ledger.Book
	jrnl   *memJournal
	sink   *memSink
	trails *risk.Manager
}

func newFixture() *fixture {
	gw := broker.NewPaper(testClock)
	book := ledger.New()
	jrnl := &memJournal{}
	sink := &memSink{}
	trails := risk.NewManager(gw, book, jrnl, sink, risk.Config{
		BreakevenTriggerPct: 5,
		TrailDrawdownPct:    20,
		Timeout:             30 * time.Minute,
		TickInterval:        time.Second,
	}, testClock)
	return &fixture{gw: gw, book: book, jrnl: jrnl, sink: sink, trails: trails}
}

func (f *fixture) engine(parser signal.Parser, cfg Config) *Engine {
	resolver := instrument.NewResolver([]string{"SPY"}, false, testClock)
	return NewEngine(parser, resolver, f.gw, f.book, f.trails, f.jrnl, f.sink, cfg, testClock)
}

func baseConfig() Config {
	return Config{
		ExitMode:           config.ExitAdaptive,
		PerSignalUSD:       1000,
		PerAddUSD:          500,
		TrimPercent:        50,
		MinPrice:           0.10,
		MaxPrice:           15,
		ContractMultiplier: 100,
	}
}

// Key for the daily-defaulted SPY 450 call with the test clock.
const spyKey = "SPY260707C00450000"

func TestProcessOpensSizedPosition(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "100"})

	// floor(1000 / (2.50 * 100)) = 4 contracts.
	if got := f.book.Quantity("SPY"); got != 4 {
		t.Fatalf("ledger quantity = %d, want 4", got)
	}
	orders := f.gw.Orders()
	if len(orders) != 1 || orders[0] != "open "+spyKey+" 4" {
		t.Fatalf("orders = %v, want one open of 4", orders)
	}
	recs := f.jrnl.all()
	if len(recs) != 1 || recs[0].Action != "open" || recs[0].Qty != 4 {
		t.Fatalf("journal = %+v, want one open of 4", recs)
	}
	if f.trails.Active() != 1 {
		t.Errorf("trail entries = %d, want 1 in adaptive mode", f.trails.Active())
	}
	if f.gw.Released(spyKey) != 1 {
		t.Errorf("market data released %d times, want 1", f.gw.Released(spyKey))
	}
	if len(f.sink.msgs) != 1 || !strings.Contains(f.sink.msgs[0], "Entered") {
		t.Errorf("notifications = %v, want one entry message", f.sink.msgs)
	}
}

func TestProcessAddUsesAddAllocation(t *testing.T) {
	f := newFixture()
	intent := buyIntent()
	intent.Instruction = signal.InstrAdd
	e := f.engine(stubParser{intent: intent, ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "101"})

	// floor(500 / 250) = 2 contracts.
	if got := f.book.Quantity("SPY"); got != 2 {
		t.Fatalf("ledger quantity = %d, want 2", got)
	}
	recs := f.jrnl.all()
	if len(recs) != 1 || recs[0].Action != "add" {
		t.Fatalf("journal = %+v, want one add", recs)
	}
}

func TestProcessSkipsWhenAllocationTooSmall(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 12)

	e.Process(context.Background(), signal.RawAlert{ID: "102"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("orders = %v, want none when allocation buys zero contracts", f.gw.Orders())
	}
	if got := f.book.Quantity("SPY"); got != 0 {
		t.Fatalf("ledger quantity = %d, want 0", got)
	}
}

func TestProcessPriceBand(t *testing.T) {
	for _, price := range []float64{0.05, 20} {
		f := newFixture()
		e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())
		f.gw.SetPrice(spyKey, price)

		e.Process(context.Background(), signal.RawAlert{ID: "103"})

		if len(f.gw.Orders()) != 0 {
			t.Fatalf("price %v: orders = %v, want none outside band", price, f.gw.Orders())
		}
	}
}

func TestProcessNoMarketData(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())

	e.Process(context.Background(), signal.RawAlert{ID: "104"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("orders = %v, want none without a price", f.gw.Orders())
	}
}

func TestProcessRejectedAlert(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{ok: false}, baseConfig())
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "105"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("rejected alert must not trade: %v", f.gw.Orders())
	}
}

func TestProcessSmallAndHedgeSkipped(t *testing.T) {
	for _, instr := range []signal.Instruction{signal.InstrSmall, signal.InstrHedge} {
		f := newFixture()
		intent := buyIntent()
		intent.Instruction = instr
		e := f.engine(stubParser{intent: intent, ok: true}, baseConfig())
		f.gw.SetPrice(spyKey, 2.5)

		e.Process(context.Background(), signal.RawAlert{ID: "106"})

		if len(f.gw.Orders()) != 0 {
			t.Fatalf("%s alert must not trade: %v", instr, f.gw.Orders())
		}
	}
}

func TestProcessRestrictedUnderlying(t *testing.T) {
	f := newFixture()
	cfg := baseConfig()
	cfg.Restricted = []string{"spy"}
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, cfg)
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "107"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("restricted underlying must not trade: %v", f.gw.Orders())
	}
}

func TestProcessUnparseableIntent(t *testing.T) {
	f := newFixture()
	intent := signal.TradeIntent{Underlying: "SPY", Instruction: signal.InstrBuy}
	e := f.engine(stubParser{intent: intent, ok: true}, baseConfig())

	e.Process(context.Background(), signal.RawAlert{ID: "108"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("incomplete intent must not trade: %v", f.gw.Orders())
	}
}

func TestProcessSellClosesFullPosition(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 2.5)
	e.Process(context.Background(), signal.RawAlert{ID: "109"})

	intent := buyIntent()
	intent.Instruction = signal.InstrSell
	e2 := f.engine(stubParser{intent: intent, ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 3.0)
	e2.Process(context.Background(), signal.RawAlert{ID: "110"})

	if got := f.book.Quantity("SPY"); got != 0 {
		t.Fatalf("ledger quantity = %d, want 0 after full sell", got)
	}
	if f.trails.Active() != 0 {
		t.Errorf("trail entries = %d, want 0 after sell", f.trails.Active())
	}
	recs := f.jrnl.all()
	if len(recs) != 2 || recs[1].Action != "close" || recs[1].Reason != "sell" {
		t.Fatalf("journal = %+v, want open then sell close", recs)
	}
}

func TestProcessTrimClosesHalf(t *testing.T) {
	f := newFixture()
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 2.0)
	e.Process(context.Background(), signal.RawAlert{ID: "111"})
	if got := f.book.Quantity("SPY"); got != 5 {
		t.Fatalf("setup: ledger quantity = %d, want 5", got)
	}

	intent := buyIntent()
	intent.Instruction = signal.InstrTrim
	e2 := f.engine(stubParser{intent: intent, ok: true}, baseConfig())
	e2.Process(context.Background(), signal.RawAlert{ID: "112"})

	// floor(5 * 50%) = 2 contracts closed, 3 remain.
	if got := f.book.Quantity("SPY"); got != 3 {
		t.Fatalf("ledger quantity = %d, want 3 after trim", got)
	}
	recs := f.jrnl.all()
	if len(recs) != 2 || recs[1].Reason != "trim" || recs[1].Qty != 2 {
		t.Fatalf("journal = %+v, want trim close of 2", recs)
	}
}

func TestProcessSellWithoutPosition(t *testing.T) {
	f := newFixture()
	intent := buyIntent()
	intent.Instruction = signal.InstrSell
	e := f.engine(stubParser{intent: intent, ok: true}, baseConfig())
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "113"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("sell without a position must not trade: %v", f.gw.Orders())
	}
}

func TestProcessBracketMode(t *testing.T) {
	f := newFixture()
	cfg := baseConfig()
	cfg.ExitMode = config.ExitBracket
	cfg.TakeProfitPct = 20
	cfg.StopLossPct = 10
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, cfg)
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "114"})

	orders := f.gw.Orders()
	if len(orders) != 1 || !strings.HasPrefix(orders[0], "bracket ") {
		t.Fatalf("orders = %v, want one bracket", orders)
	}
	if f.trails.Active() != 0 {
		t.Errorf("bracket mode must not register trail supervision")
	}
}

func TestProcessBracketModeSkipsSell(t *testing.T) {
	f := newFixture()
	cfg := baseConfig()
	cfg.ExitMode = config.ExitBracket
	intent := buyIntent()
	intent.Instruction = signal.InstrSell
	e := f.engine(stubParser{intent: intent, ok: true}, cfg)
	f.gw.SetPrice(spyKey, 2.5)
	f.book.Add("SPY", spyKey, "x", 4, testClock())

	e.Process(context.Background(), signal.RawAlert{ID: "115"})

	if len(f.gw.Orders()) != 0 {
		t.Fatalf("broker-managed exits must ignore sell signals: %v", f.gw.Orders())
	}
}

func TestProcessNativeTrailMode(t *testing.T) {
	f := newFixture()
	cfg := baseConfig()
	cfg.ExitMode = config.ExitNativeTrail
	cfg.NativeTrailPct = 15
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, cfg)
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "116"})

	orders := f.gw.Orders()
	if len(orders) != 2 {
		t.Fatalf("orders = %v, want open then trail", orders)
	}
	if orders[0] != "open "+spyKey+" 4" || orders[1] != "trail "+spyKey+" 4" {
		t.Fatalf("orders = %v, want open then native trail", orders)
	}
}

func TestProcessSinglePositionMode(t *testing.T) {
	f := newFixture()
	cfg := baseConfig()
	cfg.SinglePosition = true
	e := f.engine(stubParser{intent: buyIntent(), ok: true}, cfg)
	f.gw.SetPrice(spyKey, 2.5)

	e.Process(context.Background(), signal.RawAlert{ID: "117"})
	if got := f.book.Quantity("SPY"); got != 4 {
		t.Fatalf("first alert should open: quantity = %d", got)
	}

	e.Process(context.Background(), signal.RawAlert{ID: "118"})
	if got := f.book.Quantity("SPY"); got != 4 {
		t.Fatalf("second alert must not stack: quantity = %d", got)
	}
}
