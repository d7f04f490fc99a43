// Package snapshot produces the REST-pollable current-state view: one
// enriched record per tracked symbol, from live data when the feed has
// delivered any, from the side cache when it hasn't, and from a synthetic
// generator otherwise. The endpoint backed by this package must always
// have something to serve.
package snapshot

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"stockrelayv1/internal/model"
	"stockrelayv1/internal/pricecache"
	"stockrelayv1/internal/sidecache"
)

// referenceBasePrices are fixed per-symbol base prices used as the
// previous-close baseline and as the anchor for synthetic records.
var referenceBasePrices = map[string]float64{
	"AAPL": 175.50, "TSLA": 245.30, "GOOGL": 142.80, "MSFT": 378.90, "NVDA": 875.20,
	"AMZN": 155.40, "META": 485.60, "NFLX": 445.70, "BA": 205.80, "DIS": 95.30,
	"IBM": 165.40, "AMD": 142.50, "INTC": 43.20, "V": 265.80, "PYPL": 58.90,
	"JPM": 178.40, "GS": 385.60, "TSM": 105.70, "XOM": 118.50, "WMT": 165.20,
}

const defaultBasePrice = 100.0

// sessionStats tracks the observed high/low per symbol since startup.
type sessionStats struct {
	high float64
	low  float64
}

// Generator builds snapshots for the tracked universe.
type Generator struct {
	cache   *pricecache.Cache
	side    sidecache.Store
	symbols []string

	mu        sync.Mutex
	firstSeen map[string]float64 // baseline for symbols without a reference base
	session   map[string]sessionStats
	rng       *rand.Rand
}

// New creates a Generator over the given universe.
func New(cache *pricecache.Cache, side sidecache.Store, symbols []string) *Generator {
	return &Generator{
		cache:     cache,
		side:      side,
		symbols:   symbols,
		firstSeen: make(map[string]float64),
		session:   make(map[string]sessionStats),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Observe records a live tick for baseline and session high/low tracking.
// Called from the feed delivery path.
func (g *Generator) Observe(t model.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.firstSeen[t.Symbol]; !ok {
		g.firstSeen[t.Symbol] = t.Price
	}
	st, ok := g.session[t.Symbol]
	if !ok {
		st = sessionStats{high: t.Price, low: t.Price}
	} else {
		if t.Price > st.high {
			st.high = t.Price
		}
		if t.Price < st.low {
			st.low = t.Price
		}
	}
	g.session[t.Symbol] = st
}

// Snapshot returns one enriched record per tracked symbol. Per-symbol
// priority: live cache, then side cache, then synthetic fallback. The
// result is never empty.
func (g *Generator) Snapshot(ctx context.Context) []model.Quote {
	out := make([]model.Quote, 0, len(g.symbols))
	for _, symbol := range g.symbols {
		if t, ok := g.cache.Get(symbol); ok {
			out = append(out, g.enrich(t))
			continue
		}
		if t, ok := g.side.Get(ctx, symbol); ok {
			out = append(out, g.enrich(t))
			continue
		}
		out = append(out, g.synthetic(symbol))
	}
	return out
}

// enrich derives change statistics for a real tick against the
// previous-close baseline.
func (g *Generator) enrich(t model.Tick) model.Quote {
	base := g.baselineFor(t.Symbol, t.Price)

	g.mu.Lock()
	st, ok := g.session[t.Symbol]
	g.mu.Unlock()
	if !ok {
		st = sessionStats{high: t.Price, low: t.Price}
	}
	// Ticks can reach the cache without passing Observe (side-cache
	// restores); widen the session range so low <= price <= high holds.
	if t.Price > st.high {
		st.high = t.Price
	}
	if t.Price < st.low {
		st.low = t.Price
	}

	change := t.Price - base
	return model.Quote{
		Symbol:        t.Symbol,
		Price:         round2(t.Price),
		PreviousClose: round2(base),
		Change:        round2(change),
		ChangePercent: round2(change / base * 100),
		High:          round2(st.high),
		Low:           round2(st.low),
		Volume:        t.Volume,
		Timestamp:     t.Timestamp,
	}
}

// synthetic produces a bounded pseudo-random record anchored at the
// symbol's reference base price. Non-idempotent across calls by design.
func (g *Generator) synthetic(symbol string) model.Quote {
	base, ok := referenceBasePrices[symbol]
	if !ok {
		base = defaultBasePrice
	}

	g.mu.Lock()
	variation := (g.rng.Float64() - 0.5) * 10 // uniform in [-5, +5)
	highOffset := g.rng.Float64() * 5
	lowOffset := g.rng.Float64() * 5
	g.mu.Unlock()

	price := base + variation
	if price < 1 {
		price = 1
	}
	change := price - base

	return model.Quote{
		Symbol:        symbol,
		Price:         round2(price),
		PreviousClose: round2(base),
		Change:        round2(change),
		ChangePercent: round2(change / base * 100),
		High:          round2(price + highOffset),
		Low:           round2(price - lowOffset),
		Timestamp:     time.Now().UnixMilli(),
	}
}

// baselineFor returns the previous-close baseline: the static reference
// base when one exists, otherwise the first price observed this process
// lifetime.
func (g *Generator) baselineFor(symbol string, price float64) float64 {
	if base, ok := referenceBasePrices[symbol]; ok {
		return base
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if first, ok := g.firstSeen[symbol]; ok {
		return first
	}
	g.firstSeen[symbol] = price
	return price
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
