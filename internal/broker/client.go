package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/observ"
)

// Client talks to the broker bridge over HTTP. The bridge owns the
// actual brokerage session; this client only shapes requests and
// normalizes failures. All calls share one rate limiter so order and
// price traffic cannot starve each other past the bridge's limits.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientConfig struct {
	BaseURL            string
	TimeoutMs          int
	RateLimitPerSecond int
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 5000
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond),
	}
}

type priceResponse struct {
	Price float64 `json:"price"`
}

type positionsResponse struct {
	Open int `json:"open"`
}

func (c *Client) Snapshot(ctx context.Context, inst instrument.Canonical) (float64, error) {
	var pr priceResponse
	q := url.Values{"key": {inst.Key()}}
	if err := c.get(ctx, "/v1/price?"+q.Encode(), &pr); err != nil {
		return 0, &GatewayError{Op: "snapshot", Key: inst.Key(), Cause: err}
	}
	return pr.Price, nil
}

func (c *Client) OpenPositionCount(ctx context.Context) (int, error) {
	var pr positionsResponse
	if err := c.get(ctx, "/v1/positions", &pr); err != nil {
		return 0, &GatewayError{Op: "positions", Cause: err}
	}
	return pr.Open, nil
}

type orderRequest struct {
	Key          string  `json:"key"`
	Side         string  `json:"side"`
	Quantity     int     `json:"quantity"`
	TakeProfit   float64 `json:"take_profit,omitempty"`
	StopLoss     float64 `json:"stop_loss,omitempty"`
	TrailPercent float64 `json:"trail_percent,omitempty"`
}

func (c *Client) SubmitOpen(ctx context.Context, o OpenOrder) (Fill, error) {
	return c.submit(ctx, "open", "/v1/orders/market", orderRequest{
		Key: o.Instrument.Key(), Side: "BUY", Quantity: o.Quantity})
}

func (c *Client) SubmitClose(ctx context.Context, o CloseOrder) (Fill, error) {
	return c.submit(ctx, "close", "/v1/orders/market", orderRequest{
		Key: o.Instrument.Key(), Side: "SELL", Quantity: o.Quantity})
}

func (c *Client) SubmitBracket(ctx context.Context, o BracketOrder) (Fill, error) {
	return c.submit(ctx, "bracket", "/v1/orders/bracket", orderRequest{
		Key: o.Instrument.Key(), Side: "BUY", Quantity: o.Quantity,
		TakeProfit: o.TakeProfit, StopLoss: o.StopLoss})
}

func (c *Client) SubmitNativeTrail(ctx context.Context, o TrailOrder) error {
	_, err := c.submit(ctx, "trail", "/v1/orders/trail", orderRequest{
		Key: o.Instrument.Key(), Side: "SELL", Quantity: o.Quantity,
		TrailPercent: o.TrailPercent})
	return err
}

func (c *Client) ReleaseMarketData(inst instrument.Canonical) {
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/marketdata/"+url.PathEscape(inst.Key()), nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observ.Warn("marketdata_release_failed", map[string]any{
			"key": inst.Key(), "error": err.Error()})
		return
	}
	resp.Body.Close()
}

func (c *Client) submit(ctx context.Context, op, path string, body orderRequest) (Fill, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Fill{}, &GatewayError{Op: op, Key: body.Key, Cause: err}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Fill{}, &GatewayError{Op: op, Key: body.Key, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Fill{}, &GatewayError{Op: op, Key: body.Key, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Fill{}, &GatewayError{Op: op, Key: body.Key, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Fill{}, &GatewayError{Op: op, Key: body.Key,
			Cause: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}

	var fill Fill
	if err := json.NewDecoder(resp.Body).Decode(&fill); err != nil {
		return Fill{}, &GatewayError{Op: op, Key: body.Key, Cause: err}
	}
	return fill, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
