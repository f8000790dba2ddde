package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/signal"
)

func bridgeInstrument() instrument.Canonical {
	return instrument.Canonical{
		Underlying: "SPY",
		Expiry:     time.Date(2026, 7, 7, 0, 0, 0, 0, time.UTC),
		Strike:     450,
		Right:      signal.RightCall,
	}
}

func TestClientSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/price", r.URL.Path)
		require.Equal(t, "SPY260707C00450000", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"price": 2.45}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	price, err := c.Snapshot(context.Background(), bridgeInstrument())
	require.NoError(t, err)
	require.Equal(t, 2.45, price)
}

func TestClientSubmitOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders/market", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "BUY", req["side"])
		require.Equal(t, float64(4), req["quantity"])
		fmt.Fprint(w, `{"order_id":"o1","price":2.5,"quantity":4}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	fill, err := c.SubmitOpen(context.Background(), OpenOrder{Instrument: bridgeInstrument(), Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, "o1", fill.OrderID)
	require.Equal(t, 2.5, fill.Price)
}

func TestClientBracketCarriesLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders/bracket", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 3.0, req["take_profit"])
		require.Equal(t, 2.0, req["stop_loss"])
		fmt.Fprint(w, `{"order_id":"o2","price":2.5,"quantity":2}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.SubmitBracket(context.Background(), BracketOrder{
		Instrument: bridgeInstrument(), Quantity: 2, TakeProfit: 3.0, StopLoss: 2.0,
	})
	require.NoError(t, err)
}

func TestClientErrorWrapsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "margin exceeded", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.SubmitOpen(context.Background(), OpenOrder{Instrument: bridgeInstrument(), Quantity: 1})
	require.Error(t, err)

	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, "open", gerr.Op)
	require.Contains(t, gerr.Error(), "margin exceeded")
}
