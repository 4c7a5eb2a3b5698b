package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestConsumerDeliversDecodedEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		frames := []string{
			`{"type": "trade", "data": {"trader": "alice", "mint": "TKN", "is_buy": true, "token_amount": 10, "sol_amount": 1}}`,
			`{"type": "mystery"}`,
		}
		for _, frame := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		<-ctx.Done()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	consumer := NewConsumer(wsURL, 10*time.Millisecond, 0, nil)

	got := make(chan Envelope, 2)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = consumer.Run(runCtx, func(env Envelope) {
			select {
			case got <- env:
			default:
			}
		})
	}()

	waitFor := func() Envelope {
		select {
		case env := <-got:
			return env
		case <-ctx.Done():
			t.Fatalf("timed out waiting for an event")
			return Envelope{}
		}
	}
	first := waitFor()
	if first.Kind != KindTrade || first.Trade == nil || first.Trade.Trader != "alice" {
		t.Fatalf("unexpected first event %+v", first)
	}
	second := waitFor()
	if second.Kind != KindUnrecognized {
		t.Fatalf("expected %s, got %s", KindUnrecognized, second.Kind)
	}
}

func TestConsumerReconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		// Drop the connection immediately to force a reconnect.
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	consumer := NewConsumer(wsURL, 5*time.Millisecond, 0, nil)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx, nil) }()

	deadline := time.NewTimer(time.Second)
	defer deadline.Stop()
	for dials.Load() < 2 {
		select {
		case <-deadline.C:
			t.Fatalf("expected at least 2 dials, got %d", dials.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	stop()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConsumerReplaysSubscriptionsOnReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	subs := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Read the subscribe payload, then drop the connection so the
		// consumer has to dial and subscribe again.
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case subs <- string(data):
		default:
		}
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	consumer := NewConsumer(wsURL, 5*time.Millisecond, 0, nil)
	consumer.Subscribe([]byte(`{"subscribe": "swaps"}`))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Run(runCtx, nil) }()

	for i := 0; i < 2; i++ {
		select {
		case got := <-subs:
			if got != `{"subscribe": "swaps"}` {
				t.Fatalf("dial %d: unexpected subscribe payload %q", i+1, got)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for subscribe on dial %d", i+1)
		}
	}
}

func TestConsumerRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	consumer := NewConsumer("ws://127.0.0.1:0", time.Millisecond, 0, nil)
	if err := consumer.Run(ctx, nil); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
