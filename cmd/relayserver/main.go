// cmd/relayserver - Market-data relay.
//
// Subscribes to the upstream price feed, keeps the latest tick per tracked
// symbol, fans updates out to WebSocket consumers, and serves REST snapshot
// and history endpoints. Runs with or without live credentials, with or
// without Redis.
//
// Config (env vars, .env supported):
//
//	RELAY_ADDR          - listen address           (default ":5000")
//	FINNHUB_API_KEY     - feed credential          (default sandbox placeholder)
//	FINNHUB_WS_URL      - streaming endpoint       (default wss://ws.finnhub.io)
//	FINNHUB_REST_URL    - REST base URL            (default https://finnhub.io/api/v1)
//	REDIS_ADDR          - optional side cache      (default "localhost:6379")
//	SYMBOLS             - tracked universe, comma-separated
//	CACHE_TTL_SEC       - side-cache TTL per tick  (default 300)
//	FEED_RECONNECT_SEC  - feed reconnect delay     (default 5)
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockrelayv1/config"
	"stockrelayv1/internal/feed"
	"stockrelayv1/internal/gateway"
	"stockrelayv1/internal/history"
	"stockrelayv1/internal/metrics"
	"stockrelayv1/internal/model"
	"stockrelayv1/internal/pricecache"
	"stockrelayv1/internal/sidecache"
	"stockrelayv1/internal/snapshot"
	"stockrelayv1/pkg/finnhub"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[relayserver] starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("[relayserver] loaded .env")
	}
	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[relayserver] no symbols configured via SYMBOLS")
	}
	log.Printf("[relayserver] tracking %d symbols", len(symbols))

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Side cache: probed once; disabled for the process lifetime on failure.
	side := sidecache.New(sidecache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      time.Duration(cfg.CacheTTLSec) * time.Second,
		OnError:  m.SideCacheErrors.Inc,
	})
	health.SetSideCacheEnabled(side.Enabled())

	cache := pricecache.New()
	snap := snapshot.New(cache, side, symbols)

	hub := gateway.NewHub(cache)
	hub.OnRegister = func(total int) { m.ClientsConnected.Set(float64(total)) }
	hub.OnUnregister = func(total int) { m.ClientsConnected.Set(float64(total)) }
	hub.OnDrop = m.ClientDrops.Inc

	// Feed: single producer, sole writer to the price cache.
	ing := feed.New(feed.Config{
		WSURL:          cfg.FinnhubWSURL,
		Token:          cfg.FinnhubAPIKey,
		Symbols:        symbols,
		ReconnectDelay: cfg.ReconnectDelay,
	}, func(t model.Tick) {
		cache.Update(t)
		snap.Observe(t)
		side.Set(ctx, t)
		hub.Broadcast(t)
		health.SetLastTickTime(time.Now())
	})
	ing.OnReconnect = m.FeedReconnects.Inc
	ing.OnTick = m.TicksTotal.Inc
	ing.OnDrop = m.DroppedTicks.Inc
	go ing.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				health.SetFeedState(ing.State().String())
			}
		}
	}()

	hist := history.New(finnhub.NewClient(cfg.FinnhubRESTURL, cfg.FinnhubAPIKey))

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, snap, hist, m, health)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[relayserver] serving at http://localhost%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[relayserver] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[relayserver] shutting down...")

	// Stop accepting connections, close the feed, close the side cache.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
	hub.CloseAll()
	side.Close()
	log.Println("[relayserver] bye")
}
