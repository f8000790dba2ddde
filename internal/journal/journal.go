// Package journal records every executed open and close as an
// append-only trade log.
package journal

import "time"

// TradeRecord is one executed order.
type TradeRecord struct {
	ID        string
	Timestamp time.Time
	Symbol    string // canonical instrument key
	Qty       int
	Price     float64
	Action    string // "open", "add", "close"
	Reason    string // "signal", "trim", "sell", "trail", "timeout"
}

// Journal is the append-only trade log.
type Journal interface {
	Record(TradeRecord) error
	Close() error
}
