package signal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	splitRe   = regexp.MustCompile(`[\s\n:,*]+|\*\*`)
	dteRe     = regexp.MustCompile(`(?i)^(\d+)dte$`)
	dateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	alphaRe   = regexp.MustCompile(`^[a-zA-Z]+$`)
	cashTagRe = regexp.MustCompile(`^\$[a-zA-Z]+$`)
)

// tokenize splits alert text on whitespace, punctuation, and markdown
// markers, dropping filler tokens the services pad their messages with.
func tokenize(text string) []string {
	raw := splitRe.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		switch tok {
		case "", "N/A", "@", "exp":
			continue
		}
		out = append(out, tok)
	}
	return out
}

// rewriteDTE replaces <N>DTE tokens with an explicit M/D date using
// business-day arithmetic, so the date rules downstream see one format.
func rewriteDTE(tokens []string, now time.Time) []string {
	for i, tok := range tokens {
		m := dteRe.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		days, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		d := businessDay(now, days)
		tokens[i] = fmt.Sprintf("%d/%d", int(d.Month()), d.Day())
	}
	return tokens
}

// businessDay adds dte calendar days to now and rolls forward over
// weekends.
func businessDay(now time.Time, dte int) time.Time {
	d := now.AddDate(0, 0, dte)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// parseDate extracts month/day from a M/D token; ok is false otherwise.
func parseDate(tok string) (month, day int, ok bool) {
	m := dateRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, 0, false
	}
	month, _ = strconv.Atoi(m[1])
	day, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, false
	}
	return month, day, true
}

func isAlpha(tok string) bool { return alphaRe.MatchString(tok) }

func round2(x float64) float64 {
	if x < 0 {
		return float64(int(x*100-0.5)) / 100
	}
	return float64(int(x*100+0.5)) / 100
}

func removeAt(tokens []string, i int) []string {
	out := make([]string, 0, len(tokens)-1)
	out = append(out, tokens[:i]...)
	return append(out, tokens[i+1:]...)
}
