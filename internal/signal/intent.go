package signal

// Instruction is the trade action extracted from an alert.
type Instruction string

const (
	InstrNone  Instruction = ""
	InstrBuy   Instruction = "BUY"
	InstrAdd   Instruction = "ADD"
	InstrSell  Instruction = "SELL"
	InstrTrim  Instruction = "TRIM"
	InstrSmall Instruction = "SMALL"
	InstrHedge Instruction = "HEDGE"
)

// Right is the option side.
type Right string

const (
	RightNone Right = ""
	RightCall Right = "call"
	RightPut  Right = "put"
)

// Letter returns the single-character OCC form.
func (r Right) Letter() string {
	switch r {
	case RightCall:
		return "C"
	case RightPut:
		return "P"
	}
	return ""
}

func rightFromLetter(c byte) Right {
	switch c {
	case 'c', 'C':
		return RightCall
	case 'p', 'P':
		return RightPut
	}
	return RightNone
}

// TradeIntent is the structured result of normalizing one alert.
// ExpMonth/ExpDay are zero when the alert carried no explicit date; the
// instrument resolver fills in the default expiration in that case.
type TradeIntent struct {
	Underlying  string
	ExpMonth    int
	ExpDay      int
	Strike      float64
	Right       Right
	Instruction Instruction
	AlertID     string
}

// Usable reports whether the intent carries enough fields to price and
// size an order. Unusable intents are logged and skipped downstream,
// never acted on.
func (t TradeIntent) Usable() bool {
	return t.Underlying != "" && t.Strike > 0 && t.Right != RightNone && t.Instruction != InstrNone
}
