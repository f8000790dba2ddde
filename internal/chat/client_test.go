package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPollDecodesMessages(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, `[
			{"id":"102","content":"BTO SPY 450c","timestamp":"2026-07-07T14:00:00Z"},
			{"id":"101","content":"trim AAPL","embeds":[{"title":"alert","description":"150p"}]}
		]`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: "tok", ChannelID: "555"})
	batch := c.Poll(context.Background(), 5)

	if gotAuth != "tok" {
		t.Errorf("authorization = %q, want tok", gotAuth)
	}
	if gotPath != "/channels/555/messages?limit=5" {
		t.Errorf("path = %q", gotPath)
	}
	if len(batch) != 2 || batch[0].ID != "102" || batch[1].ID != "101" {
		t.Fatalf("batch = %+v, want two messages newest first", batch)
	}
	if batch[1].Embeds[0].Description != "150p" {
		t.Errorf("embed not decoded: %+v", batch[1])
	}
}

func TestPollServerErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, ChannelID: "555"})
	if batch := c.Poll(context.Background(), 5); batch != nil {
		t.Fatalf("batch = %+v, want nil on server error", batch)
	}
}

func TestPollBadJSONReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"oops":`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, ChannelID: "555"})
	if batch := c.Poll(context.Background(), 5); batch != nil {
		t.Fatalf("batch = %+v, want nil on decode failure", batch)
	}
}

func TestPollUnreachableServer(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", ChannelID: "555", TimeoutMs: 200})
	if batch := c.Poll(context.Background(), 5); batch != nil {
		t.Fatalf("batch = %+v, want nil when unreachable", batch)
	}
}
