package signal

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	wordStrikeRe   = regexp.MustCompile(`(?i)^(\d+(\.\d+)?)(call|put)$`)
	strikeRightRe  = regexp.MustCompile(`^(\d+(\.\d+)?)([cCpP])$`)
	dollarStrikeRe = regexp.MustCompile(`^\$(\d+(\.\d+)?)([cCpP])$`)
	bareDollarRe   = regexp.MustCompile(`^\$(\d+(\.\d+)?)$`)
	numberRe       = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// strikeMatch is the partial result of one strike/right matcher.
// orderLimit is the token index that bounds the instruction-keyword
// search; ticker is filled only when the matcher itself pins it down.
type strikeMatch struct {
	strike     float64
	right      Right
	ticker     string
	orderLimit int
	tokens     []string // token stream, possibly rewritten
}

// strikeMatcher attempts one layout; returns false when the layout does
// not appear in the stream. Matchers are tried in order of decreasing
// strictness and the first hit wins.
type strikeMatcher func(tokens []string, kw Keywords) (strikeMatch, bool)

var strikeMatchers = []strikeMatcher{
	matchWordStrike,
	matchCompactStrike,
	matchDollarStrike,
	matchBareDollarStrike,
	matchStandaloneRight,
}

// matchWordStrike handles "150call" / "152.5put". The ticker usually
// sits two tokens back ("BTO AAPL 150call ...").
func matchWordStrike(tokens []string, _ Keywords) (strikeMatch, bool) {
	for k, tok := range tokens {
		m := wordStrikeRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		strike, _ := strconv.ParseFloat(m[1], 64)
		right := RightPut
		if strings.EqualFold(m[3], "call") {
			right = RightCall
		}
		ticker := ""
		if k >= 2 && isAlpha(tokens[k-2]) {
			ticker = tokens[k-2]
		}
		return strikeMatch{strike: round2(strike), right: right, ticker: ticker, orderLimit: k, tokens: tokens}, true
	}
	return strikeMatch{}, false
}

// matchCompactStrike handles "150c" / "152.5P".
func matchCompactStrike(tokens []string, _ Keywords) (strikeMatch, bool) {
	for k, tok := range tokens {
		m := strikeRightRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		strike, _ := strconv.ParseFloat(m[1], 64)
		return strikeMatch{
			strike:     round2(strike),
			right:      rightFromLetter(m[3][0]),
			orderLimit: k,
			tokens:     tokens,
		}, true
	}
	return strikeMatch{}, false
}

// matchDollarStrike handles "$150c"; the token is rewritten without the
// dollar sign so later ticker inference sees a plain strike token.
func matchDollarStrike(tokens []string, _ Keywords) (strikeMatch, bool) {
	for k, tok := range tokens {
		m := dollarStrikeRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		strike, _ := strconv.ParseFloat(m[1], 64)
		rewritten := make([]string, len(tokens))
		copy(rewritten, tokens)
		rewritten[k] = tok[1:]
		return strikeMatch{
			strike:     round2(strike),
			right:      rightFromLetter(m[3][0]),
			orderLimit: k,
			tokens:     rewritten,
		}, true
	}
	return strikeMatch{}, false
}

// matchBareDollarStrike handles "SPY $400", a bare dollar amount
// immediately preceded by a ticker-like token. The right is left open
// for the standalone-right pass.
func matchBareDollarStrike(tokens []string, _ Keywords) (strikeMatch, bool) {
	for k, tok := range tokens {
		m := bareDollarRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		if k == 0 || !isAlpha(tokens[k-1]) {
			continue
		}
		strike, _ := strconv.ParseFloat(m[1], 64)
		rewritten := make([]string, len(tokens))
		copy(rewritten, tokens)
		rewritten[k] = tok[1:]
		return strikeMatch{
			strike:     round2(strike),
			ticker:     tokens[k-1],
			orderLimit: k,
			tokens:     rewritten,
		}, true
	}
	return strikeMatch{}, false
}

// matchStandaloneRight handles the loosest dialect where the side is its
// own word: "AAPL 150 calls". The strike is the preceding numeric token.
func matchStandaloneRight(tokens []string, _ Keywords) (strikeMatch, bool) {
	for k, tok := range tokens {
		var right Right
		switch strings.ToLower(tok) {
		case "c", "call", "calls":
			right = RightCall
		case "p", "put", "puts":
			right = RightPut
		default:
			continue
		}
		sm := strikeMatch{right: right, orderLimit: k, tokens: tokens}
		if k >= 1 && numberRe.MatchString(tokens[k-1]) {
			strike, _ := strconv.ParseFloat(tokens[k-1], 64)
			sm.strike = round2(strike)
		}
		if k >= 2 && isAlpha(tokens[k-2]) {
			sm.ticker = tokens[k-2]
		}
		return sm, true
	}
	return strikeMatch{}, false
}

// parseStrikeToken parses the "150c" and "150call" strike forms used by
// the labeled layout.
func parseStrikeToken(tok string) (float64, Right, bool) {
	if m := strikeRightRe.FindStringSubmatch(tok); m != nil {
		strike, _ := strconv.ParseFloat(m[1], 64)
		return round2(strike), rightFromLetter(m[3][0]), true
	}
	if m := wordStrikeRe.FindStringSubmatch(tok); m != nil {
		strike, _ := strconv.ParseFloat(m[1], 64)
		right := RightPut
		if strings.EqualFold(m[3], "call") {
			right = RightCall
		}
		return round2(strike), right, true
	}
	return 0, RightNone, false
}

// completeRight fills the right on a match that located only a strike
// (the bare-dollar layout) by scanning for a standalone side word.
func completeRight(sm strikeMatch, kw Keywords) strikeMatch {
	if sm.right != RightNone {
		return sm
	}
	if m2, ok := matchStandaloneRight(sm.tokens, kw); ok {
		sm.right = m2.right
		if sm.ticker == "" {
			sm.ticker = m2.ticker
		}
	}
	return sm
}
