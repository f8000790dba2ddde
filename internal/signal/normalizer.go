package signal

import (
	"strings"
	"time"

	"github.com/nvarley/signalrunner/internal/observ"
)

// Parser turns one raw alert into a trade intent. Implementations must
// be pure: a fixed alert and vocabulary always produce the same intent.
type Parser interface {
	// Normalize returns the extracted intent. ok is false when the alert
	// must not reach the decision engine at all (reject keyword hit).
	Normalize(alert RawAlert) (intent TradeIntent, ok bool)
}

// Normalizer is the general-dialect parser. It applies an ordered chain
// of heuristics: structured ticker/expiration layouts first, then the
// free-form token rules, loosest last.
type Normalizer struct {
	kw         Keywords
	defaultBuy bool
	now        func() time.Time
}

func NewNormalizer(kw Keywords, defaultBuy bool, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{kw: NewKeywords(kw), defaultBuy: defaultBuy, now: now}
}

func (n *Normalizer) Normalize(alert RawAlert) (TradeIntent, bool) {
	text := alert.CombinedText()

	if n.kw.rejected(text) {
		observ.Warn("alert_rejected", map[string]any{"alert_id": alert.ID})
		return TradeIntent{AlertID: alert.ID}, false
	}

	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "ticker") && strings.Contains(lowered, "expiration") {
		return n.structured(alert, text), true
	}
	return n.freeForm(alert, text), true
}

// structured parses the labeled "Ticker: X Expiration: M/D ..." layout.
func (n *Normalizer) structured(alert RawAlert, text string) TradeIntent {
	intent := TradeIntent{AlertID: alert.ID}
	tokens := tokenize(text)

	slashIdx := -1
	for i, tok := range tokens {
		if strings.Contains(strings.ToLower(tok), "ticker") && i+1 < len(tokens) && intent.Underlying == "" {
			intent.Underlying = strings.ToUpper(tokens[i+1])
		}
		if slashIdx < 0 {
			if m, d, ok := parseDate(tok); ok {
				intent.ExpMonth, intent.ExpDay = m, d
				slashIdx = i
			}
		}
	}
	for _, tok := range tokens {
		if strike, right, ok := parseStrikeToken(tok); ok {
			intent.Strike, intent.Right = strike, right
			break
		}
	}
	for i, tok := range tokens {
		if slashIdx >= 0 && i >= slashIdx {
			break
		}
		if instr := n.kw.instructionFor(tok); instr != InstrNone {
			intent.Instruction = instr
			break
		}
	}
	if intent.Instruction == InstrNone && n.defaultBuy {
		intent.Instruction = InstrBuy
	}
	return intent
}

// freeForm parses the unlabeled dialects: tokenize, translate DTE
// tokens, locate strike+right via the matcher chain, then instruction,
// then ticker, then an explicit date override.
func (n *Normalizer) freeForm(alert RawAlert, text string) TradeIntent {
	intent := TradeIntent{AlertID: alert.ID}
	tokens := rewriteDTE(tokenize(text), n.now())

	var sm strikeMatch
	matched := false
	for _, matcher := range strikeMatchers {
		if m, ok := matcher(tokens, n.kw); ok {
			sm = completeRight(m, n.kw)
			matched = true
			break
		}
	}
	if matched {
		intent.Strike = sm.strike
		intent.Right = sm.right
		tokens = sm.tokens
	}

	// Instruction: prefer a keyword ahead of the contract fields, then
	// accept one trailing the fields ("AAPL 150p 07/15 BOT").
	limit := len(tokens)
	if matched {
		limit = sm.orderLimit
	}
	tokens, intent.Instruction = n.extractInstruction(tokens, limit)
	if intent.Instruction == InstrNone && n.defaultBuy {
		intent.Instruction = InstrBuy
	}

	if sm.ticker != "" && !n.kw.isInstruction(sm.ticker) {
		intent.Underlying = strings.ToUpper(sm.ticker)
	}
	if intent.Underlying == "" {
		intent.Underlying = n.inferTicker(tokens)
	}

	// An explicit M/D token anywhere overrides derived dates.
	for _, tok := range tokens {
		if m, d, ok := parseDate(tok); ok {
			intent.ExpMonth, intent.ExpDay = m, d
			break
		}
	}
	return intent
}

// extractInstruction removes and returns the first instruction keyword
// found below limit, falling back to the first one at or above it.
func (n *Normalizer) extractInstruction(tokens []string, limit int) ([]string, Instruction) {
	for pass := 0; pass < 2; pass++ {
		for i, tok := range tokens {
			below := i < limit
			if pass == 0 && !below || pass == 1 && below {
				continue
			}
			if instr := n.kw.instructionFor(tok); instr != InstrNone {
				return removeAt(tokens, i), instr
			}
		}
	}
	return tokens, InstrNone
}

// inferTicker locates the underlying when no matcher pinned it down:
// a $TICKER cashtag first, then the alphabetic neighbor of the strike
// or date token, preceding before following.
func (n *Normalizer) inferTicker(tokens []string) string {
	for _, tok := range tokens {
		if cashTagRe.MatchString(tok) {
			return strings.ToUpper(tok[1:])
		}
	}
	anchor := func(tok string) bool {
		if strikeRightRe.MatchString(tok) || wordStrikeRe.MatchString(tok) {
			return true
		}
		_, _, isDate := parseDate(tok)
		return isDate
	}
	for i, tok := range tokens {
		if !anchor(tok) {
			continue
		}
		if i > 0 && isAlpha(tokens[i-1]) && !n.kw.isInstruction(tokens[i-1]) {
			return strings.ToUpper(tokens[i-1])
		}
	}
	for i, tok := range tokens {
		if !anchor(tok) {
			continue
		}
		if i+1 < len(tokens) && isAlpha(tokens[i+1]) && !n.kw.isInstruction(tokens[i+1]) {
			return strings.ToUpper(tokens[i+1])
		}
	}
	return ""
}
