package signal

import "strings"

// Keywords is the caller-supplied signal vocabulary. All comparisons are
// case-insensitive; sets are lowercased once at construction.
type Keywords struct {
	Buy    []string
	Add    []string
	Sell   []string
	Trim   []string
	Small  []string
	Hedge  []string
	Reject []string
}

// NewKeywords lowercases every set so lookups need no per-call work.
func NewKeywords(k Keywords) Keywords {
	lower := func(xs []string) []string {
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = strings.ToLower(x)
		}
		return out
	}
	return Keywords{
		Buy:    lower(k.Buy),
		Add:    lower(k.Add),
		Sell:   lower(k.Sell),
		Trim:   lower(k.Trim),
		Small:  lower(k.Small),
		Hedge:  lower(k.Hedge),
		Reject: lower(k.Reject),
	}
}

func member(set []string, tok string) bool {
	tok = strings.ToLower(tok)
	for _, s := range set {
		if s == tok {
			return true
		}
	}
	return false
}

// instructionFor maps a token to its instruction, or InstrNone.
// Add is checked before Buy so vocabularies that list "add" in both sets
// still size it from the per-add allocation.
func (k Keywords) instructionFor(tok string) Instruction {
	switch {
	case member(k.Add, tok):
		return InstrAdd
	case member(k.Buy, tok):
		return InstrBuy
	case member(k.Sell, tok):
		return InstrSell
	case member(k.Trim, tok):
		return InstrTrim
	case member(k.Small, tok):
		return InstrSmall
	case member(k.Hedge, tok):
		return InstrHedge
	}
	return InstrNone
}

// isInstruction reports whether tok belongs to any instruction set.
func (k Keywords) isInstruction(tok string) bool {
	return k.instructionFor(tok) != InstrNone
}

// rejected reports whether text contains any reject keyword as a
// case-insensitive substring.
func (k Keywords) rejected(text string) bool {
	lowered := strings.ToLower(text)
	for _, w := range k.Reject {
		if w != "" && strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}
