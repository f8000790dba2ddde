// Package instrument resolves parsed alert fields into canonical option
// contracts.
package instrument

import (
	"fmt"
	"strings"
	"time"

	"github.com/nvarley/signalrunner/internal/signal"
)

// Canonical is a fully resolved instrument. Expiry carries a real year;
// Daily marks same-day expiring classes.
type Canonical struct {
	Underlying string
	Expiry     time.Time
	Strike     float64
	Right      signal.Right
	Daily      bool
}

// Key returns the OCC-style identifier, e.g. "AAPL260620C00150000".
// For an equity (no right) it is just the underlying.
func (c Canonical) Key() string {
	if c.Right == signal.RightNone {
		return c.Underlying
	}
	return fmt.Sprintf("%s%s%s%08d",
		c.Underlying,
		c.Expiry.Format("060102"),
		c.Right.Letter(),
		int(c.Strike*1000))
}

func (c Canonical) String() string {
	if c.Right == signal.RightNone {
		return c.Underlying
	}
	return fmt.Sprintf("%s %s %.2f%s",
		c.Underlying, c.Expiry.Format("2006-01-02"), c.Strike, c.Right.Letter())
}

// Resolver applies the expiration defaulting and year-rollover rules.
// Resolve is total: it never fails, and callers validate ticker/strike
// before trusting the result.
type Resolver struct {
	daily         map[string]bool
	fridayHoliday bool
	now           func() time.Time
}

// NewResolver builds a resolver. dailyExpiry lists underlyings whose
// options expire same-day; fridayHoliday shifts the weekly default back
// one day when the coming Friday is a market holiday.
func NewResolver(dailyExpiry []string, fridayHoliday bool, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	daily := make(map[string]bool, len(dailyExpiry))
	for _, u := range dailyExpiry {
		daily[strings.ToUpper(u)] = true
	}
	return &Resolver{daily: daily, fridayHoliday: fridayHoliday, now: now}
}

// Resolve turns parsed fields into a canonical contract. A zero
// month/day means the alert carried no explicit date: daily-expiry
// underlyings default to today, everything else to the next business
// Friday. Explicit dates are kept and only the year is inferred, rolling
// into next year when the date has already passed.
func (r *Resolver) Resolve(ticker string, month, day int, strike float64, right signal.Right) Canonical {
	ticker = strings.ToUpper(ticker)
	today := r.today()
	daily := r.daily[ticker]

	var expiry time.Time
	if month == 0 || day == 0 {
		if daily {
			expiry = today
		} else {
			expiry = r.nextFriday(today)
		}
	} else {
		expiry = time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if expiry.Before(today) {
			expiry = expiry.AddDate(1, 0, 0)
		}
	}

	return Canonical{
		Underlying: ticker,
		Expiry:     expiry,
		Strike:     strike,
		Right:      right,
		Daily:      daily,
	}
}

func (r *Resolver) today() time.Time {
	y, m, d := r.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *Resolver) nextFriday(today time.Time) time.Time {
	inc := (int(time.Friday) - int(today.Weekday()) + 7) % 7
	if r.fridayHoliday {
		inc--
	}
	if inc < 0 {
		inc = 0
	}
	return today.AddDate(0, 0, inc)
}
