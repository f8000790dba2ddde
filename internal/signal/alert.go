package signal

import (
	"strings"
	"time"
)

// Embed is an optional structured block attached to a chat message.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RawAlert is one chat message as delivered by the channel API. IDs are
// large integers serialized as strings and increase monotonically.
type RawAlert struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds"`
	Timestamp string  `json:"timestamp"` // ISO-8601
}

// CombinedText joins the message body with the first embed's title and
// description, which is where most alert services put the actual signal.
func (a RawAlert) CombinedText() string {
	var b strings.Builder
	b.WriteString(a.Content)
	if len(a.Embeds) > 0 {
		if t := a.Embeds[0].Title; t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
		if d := a.Embeds[0].Description; d != "" {
			b.WriteString(" ")
			b.WriteString(d)
		}
	}
	return b.String()
}

// IssuedAt parses the alert timestamp; ok is false when it is absent or
// malformed.
func (a RawAlert) IssuedAt() (time.Time, bool) {
	if a.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999-07:00"} {
		if ts, err := time.Parse(layout, a.Timestamp); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
