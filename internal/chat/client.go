// Package chat polls the alert channel and owns the durable
// last-processed-id cursor.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nvarley/signalrunner/internal/observ"
	"github.com/nvarley/signalrunner/internal/signal"
)

// Client fetches recent messages from one channel. The API returns
// newest first; callers reverse before processing.
type Client struct {
	baseURL    string
	authToken  string
	channelID  string
	httpClient *http.Client
}

type ClientConfig struct {
	BaseURL   string
	AuthToken string
	ChannelID string
	TimeoutMs int
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 5000
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		authToken: cfg.AuthToken,
		channelID: cfg.ChannelID,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
	}
}

// Poll fetches up to limit recent messages. A transport or decode
// failure is logged and returns an empty batch; the ingest loop just
// tries again next cycle.
func (c *Client) Poll(ctx context.Context, limit int) []signal.RawAlert {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", c.baseURL, c.channelID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		observ.Error("chat_poll_failed", map[string]any{"error": err.Error()})
		return nil
	}
	req.Header.Set("Authorization", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observ.Error("chat_poll_failed", map[string]any{"error": err.Error()})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		observ.Error("chat_poll_failed", map[string]any{
			"status": resp.StatusCode, "body": string(b)})
		return nil
	}

	var alerts []signal.RawAlert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		observ.Error("chat_poll_decode_failed", map[string]any{"error": err.Error()})
		return nil
	}
	observ.AlertsPolled.Add(float64(len(alerts)))
	return alerts
}
