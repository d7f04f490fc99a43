package gateway

import (
	"encoding/json"
	"testing"

	"stockrelayv1/internal/model"
	"stockrelayv1/internal/pricecache"
)

type stockUpdate struct {
	Type string     `json:"type"`
	Data model.Tick `json:"data"`
}

// recvEvent drains one queued message from a client and decodes it.
func recvEvent(t *testing.T, c *Client) stockUpdate {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		var ev stockUpdate
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("invalid event JSON: %v\nraw: %s", err, raw)
		}
		return ev
	default:
		t.Fatal("no queued event")
	}
	return stockUpdate{}
}

func TestBroadcastFanOut(t *testing.T) {
	h := NewHub(pricecache.New())

	c1 := newClient(nil, h)
	c2 := newClient(nil, h)
	c3 := newClient(nil, h)
	for _, c := range []*Client{c1, c2, c3} {
		h.Register(c)
	}

	tick := model.Tick{Symbol: "X", Price: 42.5, Timestamp: 1700000000000, Volume: 7}
	h.Broadcast(tick)

	for i, c := range []*Client{c1, c2, c3} {
		ev := recvEvent(t, c)
		if ev.Type != "stockUpdate" {
			t.Errorf("consumer %d: type %q, want stockUpdate", i+1, ev.Type)
		}
		if ev.Data != tick {
			t.Errorf("consumer %d: data %+v, want %+v", i+1, ev.Data, tick)
		}
		if len(c.send) != 0 {
			t.Errorf("consumer %d: received more than one event", i+1)
		}
	}

	// Consumer 2 disconnects; subsequent ticks reach only 1 and 3.
	h.Unregister(c2)
	if h.ClientCount() != 2 {
		t.Fatalf("ClientCount after unregister: got %d, want 2", h.ClientCount())
	}

	next := model.Tick{Symbol: "X", Price: 43.0, Timestamp: 1700000000001}
	h.Broadcast(next)

	for i, c := range []*Client{c1, c3} {
		if ev := recvEvent(t, c); ev.Data.Price != 43.0 {
			t.Errorf("surviving consumer %d: price %v, want 43.0", i+1, ev.Data.Price)
		}
	}
}

func TestNewConsumerReplay(t *testing.T) {
	cache := pricecache.New()
	cache.Update(model.Tick{Symbol: "AAPL", Price: 175.5, Timestamp: 1})
	cache.Update(model.Tick{Symbol: "GOOGL", Price: 142.8, Timestamp: 2})

	h := NewHub(cache)
	c := newClient(nil, h)
	h.Register(c)

	h.Broadcast(model.Tick{Symbol: "AAPL", Price: 176.0, Timestamp: 3})

	// Replay of the full cache arrives before the broadcast tick.
	replayed := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := recvEvent(t, c)
		replayed[ev.Data.Symbol] = true
		if ev.Data.Timestamp > 2 {
			t.Errorf("broadcast tick arrived before replay finished: %+v", ev.Data)
		}
	}
	if !replayed["AAPL"] || !replayed["GOOGL"] {
		t.Errorf("replay missing symbols: %v", replayed)
	}

	if ev := recvEvent(t, c); ev.Data.Price != 176.0 {
		t.Errorf("post-replay tick: price %v, want 176.0", ev.Data.Price)
	}
}

func TestStalledConsumerRemoved(t *testing.T) {
	orig := sendBufSize
	sendBufSize = 1
	defer func() { sendBufSize = orig }()

	h := NewHub(pricecache.New())
	drops := 0
	h.OnDrop = func() { drops++ }

	stalled := newClient(nil, h)
	healthy := newClient(nil, h)
	h.Register(stalled)
	h.Register(healthy)

	h.Broadcast(model.Tick{Symbol: "X", Price: 1})
	// healthy drains, stalled does not
	recvEvent(t, healthy)

	h.Broadcast(model.Tick{Symbol: "X", Price: 2})

	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount: got %d, want 1 (stalled consumer removed)", h.ClientCount())
	}
	if drops != 1 {
		t.Errorf("OnDrop calls: got %d, want 1", drops)
	}
	if ev := recvEvent(t, healthy); ev.Data.Price != 2 {
		t.Errorf("healthy consumer price: got %v, want 2", ev.Data.Price)
	}

	// A third tick reaches only the healthy consumer; no panic on the
	// removed one.
	h.Broadcast(model.Tick{Symbol: "X", Price: 3})
	if ev := recvEvent(t, healthy); ev.Data.Price != 3 {
		t.Errorf("healthy consumer price: got %v, want 3", ev.Data.Price)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := NewHub(pricecache.New())
	c := newClient(nil, h)
	h.Register(c)

	h.Unregister(c)
	h.Unregister(c) // second call must not panic on a closed channel

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount: got %d, want 0", h.ClientCount())
	}
}
