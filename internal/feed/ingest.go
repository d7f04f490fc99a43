// Package feed owns the persistent streaming connection to the upstream
// price provider. It normalizes trade events into model.Tick values and
// supervises reconnection: on any connection loss it waits a fixed delay
// and dials again, forever.
package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"stockrelayv1/internal/model"
	"stockrelayv1/pkg/finnhub"
)

// State is the feed connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Config holds configuration for the feed ingest.
type Config struct {
	WSURL          string
	Token          string
	Symbols        []string // tracked instrument universe
	ReconnectDelay time.Duration
}

// Ingest subscribes to the tracked universe and delivers normalized ticks.
type Ingest struct {
	cfg      Config
	universe map[string]struct{}
	deliver  func(model.Tick)

	mu    sync.Mutex
	state State

	// Optional metrics hooks
	OnReconnect func()
	OnTick      func()
	OnDrop      func()
}

// New creates an Ingest that hands each accepted tick to deliver.
func New(cfg Config, deliver func(model.Tick)) *Ingest {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	universe := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		universe[s] = struct{}{}
	}
	return &Ingest{cfg: cfg, universe: universe, deliver: deliver}
}

// State returns the current connection state.
func (ing *Ingest) State() State {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.state
}

func (ing *Ingest) setState(s State) {
	ing.mu.Lock()
	ing.state = s
	ing.mu.Unlock()
}

// Run drives the connect/subscribe/listen loop until ctx is cancelled.
// Connection errors are logged, never returned: this is a long-lived
// background task, not a request.
func (ing *Ingest) Run(ctx context.Context) {
	for {
		if err := ing.session(ctx); err != nil {
			log.Printf("[feed] connection lost: %v (reconnecting in %s)", err, ing.cfg.ReconnectDelay)
			if ing.OnReconnect != nil {
				ing.OnReconnect()
			}
		}
		ing.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(ing.cfg.ReconnectDelay):
		}
	}
}

// session performs one full connection lifecycle:
// Disconnected -> Connecting -> Subscribed -> (error) Disconnected.
func (ing *Ingest) session(ctx context.Context) error {
	ing.setState(StateConnecting)

	sock := finnhub.NewSocket(ing.cfg.WSURL, ing.cfg.Token)
	sock.OnTrades = ing.handleTrades

	if err := sock.Connect(ctx); err != nil {
		return err
	}
	defer sock.Close()

	log.Printf("[feed] connected, subscribing to %d symbols", len(ing.cfg.Symbols))
	for _, symbol := range ing.cfg.Symbols {
		if err := sock.Subscribe(symbol); err != nil {
			return err
		}
	}
	ing.setState(StateSubscribed)

	return sock.Listen(ctx)
}

// handleTrades converts each entry of a batched trade message into one Tick.
// Unknown symbols are ignored, not stored; entries without a price are
// treated as malformed and dropped.
func (ing *Ingest) handleTrades(trades []finnhub.TradeData) {
	for _, tr := range trades {
		if _, ok := ing.universe[tr.Symbol]; !ok {
			if ing.OnDrop != nil {
				ing.OnDrop()
			}
			continue
		}
		if tr.Price <= 0 {
			log.Printf("[feed] dropping malformed trade for %s: price=%v", tr.Symbol, tr.Price)
			if ing.OnDrop != nil {
				ing.OnDrop()
			}
			continue
		}

		if ing.OnTick != nil {
			ing.OnTick()
		}
		ing.deliver(model.Tick{
			Symbol:    tr.Symbol,
			Price:     tr.Price,
			Timestamp: tr.Timestamp,
			Volume:    tr.Volume,
		})
	}
}
