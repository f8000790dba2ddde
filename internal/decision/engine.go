// Package decision orchestrates one alert's path from text to order:
// normalize, resolve, price-gate, size, dispatch, and register risk
// supervision. Every guard is a skip-with-log, never a crash and never
// a retry.
package decision

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nvarley/signalrunner/internal/broker"
	"github.com/nvarley/signalrunner/internal/config"
	"github.com/nvarley/signalrunner/internal/id"
	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/journal"
	"github.com/nvarley/signalrunner/internal/ledger"
	"github.com/nvarley/signalrunner/internal/notify"
	"github.com/nvarley/signalrunner/internal/observ"
	"github.com/nvarley/signalrunner/internal/risk"
	"github.com/nvarley/signalrunner/internal/signal"
)

type Config struct {
	ExitMode           config.ExitMode
	PerSignalUSD       float64
	PerAddUSD          float64
	TrimPercent        float64
	MinPrice           float64
	MaxPrice           float64
	ContractMultiplier float64
	SinglePosition     bool
	TakeProfitPct      float64
	StopLossPct        float64
	NativeTrailPct     float64
	Restricted         []string
}

// Engine owns the alert-to-order path. It shares the quantity ledger
// and the trail manager with the risk loop; everything else is its own.
type Engine struct {
	parser     signal.Parser
	resolver   *instrument.Resolver
	gw         broker.Gateway
	book       *ledger.Book
	trails     *risk.Manager
	jrnl       journal.Journal
	sink       notify.Notifier
	cfg        Config
	restricted map[string]bool
	now        func() time.Time
}

func NewEngine(
	parser signal.Parser,
	resolver *instrument.Resolver,
	gw broker.Gateway,
	book *ledger.Book,
	trails *risk.Manager,
	jrnl journal.Journal,
	sink notify.Notifier,
	cfg Config,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	restricted := make(map[string]bool, len(cfg.Restricted))
	for _, s := range cfg.Restricted {
		restricted[strings.ToUpper(s)] = true
	}
	return &Engine{
		parser:     parser,
		resolver:   resolver,
		gw:         gw,
		book:       book,
		trails:     trails,
		jrnl:       jrnl,
		sink:       sink,
		cfg:        cfg,
		restricted: restricted,
		now:        now,
	}
}

// Process consumes one alert. The caller guarantees ascending-id order
// and at-most-once delivery; no deduplication happens here.
func (e *Engine) Process(ctx context.Context, alert signal.RawAlert) {
	observ.AlertsProcessed.Inc()

	intent, ok := e.parser.Normalize(alert)
	if !ok {
		e.skip(alert.ID, "reject")
		return
	}

	// Single-position mode still computes the parse for its side
	// effects, then refuses to stack a new position.
	if e.cfg.SinglePosition {
		open, err := e.gw.OpenPositionCount(ctx)
		if err != nil {
			e.skip(alert.ID, "position_check_failed")
			return
		}
		if open > 0 {
			e.skip(alert.ID, "single_position")
			return
		}
	}

	// Broker-managed exit modes own the close side entirely; only
	// opening signals pass.
	if e.cfg.ExitMode == config.ExitBracket || e.cfg.ExitMode == config.ExitNativeTrail {
		if intent.Instruction != signal.InstrBuy && intent.Instruction != signal.InstrAdd {
			e.skip(alert.ID, "exit_managed")
			return
		}
	}

	if intent.Instruction == signal.InstrSmall || intent.Instruction == signal.InstrHedge {
		e.skip(alert.ID, "small_hedge")
		return
	}

	if !intent.Usable() {
		observ.Warn("alert_unparseable", map[string]any{
			"alert_id": alert.ID, "underlying": intent.Underlying,
			"strike": intent.Strike, "right": string(intent.Right),
			"instr": string(intent.Instruction)})
		e.skip(alert.ID, "unparseable")
		return
	}

	if e.restricted[intent.Underlying] {
		e.skip(alert.ID, "restricted")
		return
	}

	inst := e.resolver.Resolve(intent.Underlying, intent.ExpMonth, intent.ExpDay, intent.Strike, intent.Right)

	price, err := e.gw.Snapshot(ctx, inst)
	if err != nil {
		e.skip(alert.ID, "price_unavailable")
		return
	}
	defer e.gw.ReleaseMarketData(inst)

	if price <= 0 || math.IsNaN(price) {
		e.skip(alert.ID, "bad_price")
		return
	}
	if price < e.cfg.MinPrice || price > e.cfg.MaxPrice {
		observ.Log("price_out_of_band", map[string]any{
			"alert_id": alert.ID, "key": inst.Key(), "price": price})
		e.skip(alert.ID, "price_band")
		return
	}

	switch intent.Instruction {
	case signal.InstrSell, signal.InstrTrim:
		e.processClose(ctx, intent, inst)
	default:
		e.processOpen(ctx, intent, inst, price)
	}
}

// processClose sizes and submits the closing order for SELL and TRIM.
func (e *Engine) processClose(ctx context.Context, intent signal.TradeIntent, inst instrument.Canonical) {
	held := e.book.Quantity(intent.Underlying)
	if held <= 0 {
		e.skip(intent.AlertID, "no_position")
		return
	}

	closeQty := held
	reason := "sell"
	if intent.Instruction == signal.InstrTrim {
		closeQty = int(math.Floor(float64(held) * e.cfg.TrimPercent / 100))
		reason = "trim"
	}
	if closeQty <= 0 {
		e.skip(intent.AlertID, "zero_qty")
		return
	}

	fill, err := e.gw.SubmitClose(ctx, broker.CloseOrder{Instrument: inst, Quantity: closeQty})
	if err != nil {
		observ.OrderFailures.Inc()
		observ.Error("close_failed", map[string]any{
			"alert_id": intent.AlertID, "key": inst.Key(), "error": err.Error()})
		return
	}
	observ.OrdersSubmitted.WithLabelValues("close").Inc()

	e.book.Reduce(intent.Underlying, closeQty, e.now())

	// Keep the trail manager consistent with the broker: a full sell
	// ends supervision, a trim shrinks the supervised quantity.
	if e.trails != nil {
		if intent.Instruction == signal.InstrSell {
			e.trails.Untrack(inst.Key())
		} else {
			e.trails.ReduceQuantity(inst.Key(), closeQty)
		}
	}

	e.record(journal.TradeRecord{
		Symbol: inst.Key(), Qty: closeQty, Price: fill.Price,
		Action: "close", Reason: reason,
	})
	e.sink.Notify(fmt.Sprintf("🔴 *Closed %s*\n> Signal: %s\n> Price: $%.2f  Qty: %d",
		inst, intent.Instruction, fill.Price, closeQty))

	observ.Log("position_closed", map[string]any{
		"alert_id": intent.AlertID, "key": inst.Key(),
		"qty": closeQty, "price": fill.Price, "reason": reason})
}

// processOpen sizes a new entry from the per-signal allocation and
// dispatches it in the configured exit mode.
func (e *Engine) processOpen(ctx context.Context, intent signal.TradeIntent, inst instrument.Canonical, price float64) {
	alloc := e.cfg.PerSignalUSD
	action := "open"
	if intent.Instruction == signal.InstrAdd {
		alloc = e.cfg.PerAddUSD
		action = "add"
	}

	qty := int(math.Floor(alloc / (price * e.cfg.ContractMultiplier)))
	if qty <= 0 {
		observ.Log("allocation_too_small", map[string]any{
			"alert_id": intent.AlertID, "key": inst.Key(), "price": price, "alloc": alloc})
		e.skip(intent.AlertID, "zero_qty")
		return
	}

	var fill broker.Fill
	var err error
	if e.cfg.ExitMode == config.ExitBracket {
		fill, err = e.gw.SubmitBracket(ctx, broker.BracketOrder{
			Instrument: inst,
			Quantity:   qty,
			TakeProfit: round1(price * (1 + e.cfg.TakeProfitPct/100)),
			StopLoss:   round1(price * (1 - e.cfg.StopLossPct/100)),
		})
	} else {
		fill, err = e.gw.SubmitOpen(ctx, broker.OpenOrder{Instrument: inst, Quantity: qty})
	}
	if err != nil {
		observ.OrderFailures.Inc()
		observ.Error("open_failed", map[string]any{
			"alert_id": intent.AlertID, "key": inst.Key(), "error": err.Error()})
		return
	}
	kind := "open"
	if e.cfg.ExitMode == config.ExitBracket {
		kind = "bracket"
	}
	observ.OrdersSubmitted.WithLabelValues(kind).Inc()

	e.book.Add(intent.Underlying, inst.Key(), intent.AlertID, qty, e.now())

	e.record(journal.TradeRecord{
		Symbol: inst.Key(), Qty: qty, Price: fill.Price,
		Action: action, Reason: "signal",
	})
	e.sink.Notify(fmt.Sprintf("🟢 *Entered %s*\n> Signal: %s\n> Price: $%.2f  Qty: %d",
		inst, intent.Instruction, fill.Price, qty))

	switch e.cfg.ExitMode {
	case config.ExitNativeTrail:
		if err := e.gw.SubmitNativeTrail(ctx, broker.TrailOrder{
			Instrument: inst, Quantity: qty, TrailPercent: e.cfg.NativeTrailPct,
		}); err != nil {
			observ.OrderFailures.Inc()
			observ.Error("native_trail_failed", map[string]any{
				"alert_id": intent.AlertID, "key": inst.Key(), "error": err.Error()})
		} else {
			observ.OrdersSubmitted.WithLabelValues("trail").Inc()
		}
	case config.ExitAdaptive:
		if e.trails != nil {
			e.trails.Track(inst, fill.Price, qty)
		}
	}

	observ.Log("position_opened", map[string]any{
		"alert_id": intent.AlertID, "key": inst.Key(),
		"qty": qty, "price": fill.Price, "action": action})
}

func (e *Engine) record(t journal.TradeRecord) {
	t.ID = id.New()
	t.Timestamp = e.now()
	if err := e.jrnl.Record(t); err != nil {
		observ.Warn("journal_write_failed", map[string]any{
			"symbol": t.Symbol, "error": err.Error()})
	}
}

func (e *Engine) skip(alertID, reason string) {
	observ.AlertsSkipped.WithLabelValues(reason).Inc()
	observ.Log("alert_skipped", map[string]any{"alert_id": alertID, "reason": reason})
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
