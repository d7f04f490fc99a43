package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockrelayv1/internal/model"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// feedScript runs one scripted connection: it consumes subscribe requests
// for each expected symbol, then writes the given raw frames and closes.
func feedScript(t *testing.T, expectSubs int, frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < expectSubs; i++ {
			var sub struct {
				Type   string `json:"type"`
				Symbol string `json:"symbol"`
			}
			if err := conn.ReadJSON(&sub); err != nil {
				t.Errorf("read subscribe %d: %v", i, err)
				return
			}
			if sub.Type != "subscribe" || sub.Symbol == "" {
				t.Errorf("unexpected subscribe message: %+v", sub)
			}
		}

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestIngestDecodesTradeBatches(t *testing.T) {
	frames := []string{
		// Batched trade: both entries delivered independently.
		`{"type":"trade","data":[{"s":"AAPL","p":175.5,"t":1700000000000,"v":10},{"s":"TSLA","p":245.3,"t":1700000000001,"v":5}]}`,
		// Malformed frame: dropped, never fatal.
		`{not json`,
		// Unknown symbol: ignored, not stored.
		`{"type":"trade","data":[{"s":"ZZZZ","p":1.0,"t":1,"v":1}]}`,
		// Non-trade kind: ignored.
		`{"type":"news","data":[]}`,
		`{"type":"trade","data":[{"s":"AAPL","p":176.0,"t":1700000000002,"v":2}]}`,
	}
	srv := httptest.NewServer(feedScript(t, 2, frames))
	defer srv.Close()

	tickCh := make(chan model.Tick, 16)
	ing := New(Config{
		WSURL:          wsURL(srv),
		Token:          "test-token",
		Symbols:        []string{"AAPL", "TSLA"},
		ReconnectDelay: time.Hour, // no reconnect within this test
	}, func(tk model.Tick) { tickCh <- tk })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ing.Run(ctx)

	want := []model.Tick{
		{Symbol: "AAPL", Price: 175.5, Timestamp: 1700000000000, Volume: 10},
		{Symbol: "TSLA", Price: 245.3, Timestamp: 1700000000001, Volume: 5},
		{Symbol: "AAPL", Price: 176.0, Timestamp: 1700000000002, Volume: 2},
	}
	for i, w := range want {
		select {
		case got := <-tickCh:
			if got != w {
				t.Errorf("tick %d: got %+v, want %+v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}

	select {
	case extra := <-tickCh:
		t.Errorf("unexpected extra tick: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIngestReconnectsAfterClose(t *testing.T) {
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&conns, 1)
		frame := `{"type":"trade","data":[{"s":"AAPL","p":100.0,"t":1,"v":1}]}`
		if n > 1 {
			frame = `{"type":"trade","data":[{"s":"AAPL","p":200.0,"t":2,"v":1}]}`
		}
		feedScript(t, 1, []string{frame})(w, r)
	}))
	defer srv.Close()

	tickCh := make(chan model.Tick, 16)
	ing := New(Config{
		WSURL:          wsURL(srv),
		Token:          "test-token",
		Symbols:        []string{"AAPL"},
		ReconnectDelay: 10 * time.Millisecond,
	}, func(tk model.Tick) { tickCh <- tk })

	reconnects := make(chan struct{}, 16)
	ing.OnReconnect = func() { reconnects <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ing.Run(ctx)

	// First session's tick.
	select {
	case got := <-tickCh:
		if got.Price != 100.0 {
			t.Errorf("first tick price: got %v, want 100.0", got.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first tick")
	}

	// After the server closes, the ingest must dial again on its own.
	select {
	case got := <-tickCh:
		if got.Price != 200.0 {
			t.Errorf("post-reconnect tick price: got %v, want 200.0", got.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-reconnect tick")
	}

	if atomic.LoadInt32(&conns) < 2 {
		t.Errorf("expected at least 2 connections, got %d", conns)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateSubscribed, "subscribed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d): got %q, want %q", tt.state, got, tt.want)
		}
	}
}
