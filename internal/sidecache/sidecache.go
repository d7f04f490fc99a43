// Package sidecache is a best-effort Redis cache for recent ticks.
// Availability is probed once at startup; if the probe fails the relay runs
// with a disabled no-op store for the rest of its lifetime. Failures on the
// active store are logged and swallowed, never surfaced to tick processing.
package sidecache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"stockrelayv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "stock:"

// Store is the side-cache capability. Both variants satisfy it; callers
// never null-check.
type Store interface {
	// Set persists a tick with the configured TTL, best-effort.
	Set(ctx context.Context, t model.Tick)
	// Get returns the cached tick for symbol, if present and decodable.
	Get(ctx context.Context, symbol string) (model.Tick, bool)
	Enabled() bool
	Close() error
}

// Config configures the Redis side cache.
type Config struct {
	Addr     string
	Password string
	TTL      time.Duration

	// OnError is an optional hook for error accounting on the active store.
	OnError func()
}

// New probes Redis with a short timeout and returns an active store on
// success or the disabled variant on failure. The selection is permanent:
// there is no mid-flight reconnect, unlike the upstream feed.
func New(cfg Config) Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[sidecache] redis unavailable at %s, running without cache: %v", cfg.Addr, err)
		client.Close()
		return Disabled()
	}

	log.Printf("[sidecache] redis connected at %s (ttl %s)", cfg.Addr, cfg.TTL)
	return &redisStore{client: client, ttl: cfg.TTL, onError: cfg.OnError}
}

// Disabled returns the permanently-off variant.
func Disabled() Store {
	return disabledStore{}
}

type redisStore struct {
	client  *goredis.Client
	ttl     time.Duration
	onError func()
}

func (s *redisStore) Set(ctx context.Context, t model.Tick) {
	if err := s.client.Set(ctx, keyPrefix+t.Symbol, t.JSON(), s.ttl).Err(); err != nil {
		log.Printf("[sidecache] set %s failed: %v", t.Symbol, err)
		if s.onError != nil {
			s.onError()
		}
	}
}

func (s *redisStore) Get(ctx context.Context, symbol string) (model.Tick, bool) {
	raw, err := s.client.Get(ctx, keyPrefix+symbol).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[sidecache] get %s failed: %v", symbol, err)
			if s.onError != nil {
				s.onError()
			}
		}
		return model.Tick{}, false
	}
	var t model.Tick
	if err := json.Unmarshal(raw, &t); err != nil {
		log.Printf("[sidecache] get %s: undecodable entry dropped: %v", symbol, err)
		return model.Tick{}, false
	}
	return t, true
}

func (s *redisStore) Enabled() bool { return true }

func (s *redisStore) Close() error { return s.client.Close() }

type disabledStore struct{}

func (disabledStore) Set(context.Context, model.Tick) {}

func (disabledStore) Get(context.Context, string) (model.Tick, bool) {
	return model.Tick{}, false
}

func (disabledStore) Enabled() bool { return false }

func (disabledStore) Close() error { return nil }
