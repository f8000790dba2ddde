// Package app wires the polling loop, the decision engine, and the
// trail supervisor into one long-running process.
package app

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nvarley/signalrunner/internal/chat"
	"github.com/nvarley/signalrunner/internal/observ"
	"github.com/nvarley/signalrunner/internal/risk"
	"github.com/nvarley/signalrunner/internal/signal"
)

// Poller yields the newest alerts from the chat channel, newest first.
type Poller interface {
	Poll(ctx context.Context, limit int) []signal.RawAlert
}

// Processor consumes one alert end to end.
type Processor interface {
	Process(ctx context.Context, alert signal.RawAlert)
}

type Config struct {
	PollInterval time.Duration
	PollLimit    int
	MaxAlertAge  time.Duration
	CutoffHour   int
	CutoffMinute int
}

// Runner drives the ingest loop. Alerts are processed strictly one at
// a time in ascending id order; the risk loop runs beside it.
type Runner struct {
	poller Poller
	cursor *chat.Cursor
	engine Processor
	trails *risk.Manager
	cfg    Config
	now    func() time.Time
}

func NewRunner(poller Poller, cursor *chat.Cursor, engine Processor, trails *risk.Manager, cfg Config, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = 5
	}
	return &Runner{poller: poller, cursor: cursor, engine: engine, trails: trails, cfg: cfg, now: now}
}

// Run blocks until ctx is cancelled. The in-flight alert and the
// in-flight trail tick both finish before it returns.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if r.trails != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.trails.Run(ctx)
		}()
	}

	observ.Log("runner_started", map[string]any{
		"poll_interval_ms": r.cfg.PollInterval.Milliseconds(),
		"poll_limit":       r.cfg.PollLimit,
	})

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			observ.Log("runner_stopped", nil)
			return
		case <-ticker.C:
			if r.pastCutoff() {
				continue
			}
			r.pollOnce(ctx)
		}
	}
}

// pollOnce fetches a batch, drops already-seen and stale alerts, and
// processes the remainder oldest first. The cursor advances whether or
// not an order comes out of the alert.
func (r *Runner) pollOnce(ctx context.Context) {
	batch := r.poller.Poll(ctx, r.cfg.PollLimit)
	if len(batch) == 0 {
		return
	}

	fresh := batch[:0]
	for _, a := range batch {
		if r.cursor.Seen(a.ID) {
			continue
		}
		if r.stale(a) {
			observ.AlertsSkipped.WithLabelValues("stale").Inc()
			observ.Log("alert_stale", map[string]any{"alert_id": a.ID})
			if err := r.cursor.Advance(a.ID); err != nil {
				observ.Warn("cursor_write_failed", map[string]any{"error": err.Error()})
			}
			continue
		}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		return
	}

	// Chat APIs return newest first; orders must go out oldest first.
	sort.SliceStable(fresh, func(i, j int) bool { return alertSeq(fresh[i].ID) < alertSeq(fresh[j].ID) })

	for _, a := range fresh {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.engine.Process(ctx, a)
		if err := r.cursor.Advance(a.ID); err != nil {
			observ.Warn("cursor_write_failed", map[string]any{"alert_id": a.ID, "error": err.Error()})
		}
	}
}

func alertSeq(id string) uint64 {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// stale rejects alerts older than the freshness window and alerts
// timestamped in the future, which indicate clock skew.
func (r *Runner) stale(a signal.RawAlert) bool {
	if r.cfg.MaxAlertAge <= 0 {
		return false
	}
	issued, ok := a.IssuedAt()
	if !ok {
		return false
	}
	age := r.now().Sub(issued)
	return age > r.cfg.MaxAlertAge || age < -time.Minute
}

// pastCutoff stops new entries after the configured time of day. The
// trail loop keeps running so open positions still get closed.
func (r *Runner) pastCutoff() bool {
	if r.cfg.CutoffHour == 0 && r.cfg.CutoffMinute == 0 {
		return false
	}
	t := r.now()
	return t.Hour() > r.cfg.CutoffHour ||
		(t.Hour() == r.cfg.CutoffHour && t.Minute() >= r.cfg.CutoffMinute)
}
