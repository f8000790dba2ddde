// Package broker defines the execution gateway boundary: instrument
// pricing, order submission, and market-data lifecycle. Every call may
// fail; callers log and abandon the current alert or tick, never retry
// in-line.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nvarley/signalrunner/internal/instrument"
)

// OpenOrder buys to open at market.
type OpenOrder struct {
	Instrument instrument.Canonical
	Quantity   int
}

// CloseOrder sells to close at market.
type CloseOrder struct {
	Instrument instrument.Canonical
	Quantity   int
}

// BracketOrder is an open order with attached take-profit and stop-loss
// children.
type BracketOrder struct {
	Instrument instrument.Canonical
	Quantity   int
	TakeProfit float64
	StopLoss   float64
}

// TrailOrder is a broker-native trailing stop attached at entry.
type TrailOrder struct {
	Instrument   instrument.Canonical
	Quantity     int
	TrailPercent float64
}

// Fill reports a confirmed execution.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
	FilledAt time.Time `json:"filled_at"`
}

// Gateway is the broker execution boundary consumed by the decision
// engine and the risk manager.
type Gateway interface {
	// Snapshot resolves the instrument and returns a live or snapshot
	// price. Implementations keep the market-data line open until
	// ReleaseMarketData is called for the instrument.
	Snapshot(ctx context.Context, inst instrument.Canonical) (float64, error)

	// OpenPositionCount reports how many non-flat positions the broker
	// currently holds for the account.
	OpenPositionCount(ctx context.Context) (int, error)

	SubmitOpen(ctx context.Context, o OpenOrder) (Fill, error)
	SubmitClose(ctx context.Context, o CloseOrder) (Fill, error)
	SubmitBracket(ctx context.Context, o BracketOrder) (Fill, error)
	SubmitNativeTrail(ctx context.Context, o TrailOrder) error

	// ReleaseMarketData drops the subscription opened by Snapshot.
	// Best effort; failures are logged inside.
	ReleaseMarketData(inst instrument.Canonical)
}

// GatewayError classifies a gateway failure for logging.
type GatewayError struct {
	Op    string // "snapshot", "open", "close", "bracket", "trail", "positions"
	Key   string
	Cause error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("broker %s %s: %v", e.Op, e.Key, e.Cause)
}

func (e *GatewayError) Unwrap() error { return e.Cause }
