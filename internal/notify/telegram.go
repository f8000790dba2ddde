package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nvarley/signalrunner/internal/observ"
)

// Telegram sends messages through the bot sendMessage endpoint.
// Disabled (missing token or chat id) instances silently drop messages
// so call sites never have to branch.
type Telegram struct {
	botToken   string
	chatID     string
	enabled    bool
	httpClient *http.Client
}

func NewTelegram(botToken, chatID string, enabled bool) *Telegram {
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		enabled:    enabled && botToken != "" && chatID != "",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (t *Telegram) Notify(text string) {
	if !t.enabled {
		return
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {text},
		"parse_mode": {"Markdown"},
	}
	resp, err := t.httpClient.Post(endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		observ.Warn("notify_failed", map[string]any{"error": err.Error()})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		observ.Warn("notify_failed", map[string]any{"status": resp.StatusCode})
	}
}
