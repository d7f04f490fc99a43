// cmd/feedsim - Demo upstream feed simulator.
// Speaks the provider's subscribe/trade protocol so the relay can run end
// to end without live credentials:
//
//	client sends  {"type":"subscribe","symbol":"AAPL"}
//	server sends  {"type":"trade","data":[{"s":"AAPL","p":175.5,"t":...,"v":3}]}
//
// Config (env vars):
//
//	FEEDSIM_ADDR         - listen address               (default ":9001")
//	FEEDSIM_INTERVAL_MS  - trade broadcast interval ms  (default "500")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type tradeData struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Timestamp int64   `json:"t"`
	Volume    float64 `json:"v"`
}

type tradeMsg struct {
	Type string      `json:"type"`
	Data []tradeData `json:"data"`
}

// session holds one connected relay and its subscribed symbols.
type session struct {
	conn *websocket.Conn

	mu      sync.Mutex
	symbols map[string]float64 // symbol -> current simulated price
}

// walkPrice applies a tiny random walk (±0.1%) to simulate price movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 1 {
		next = 1
	}
	return next
}

func (s *session) readSubscriptions() {
	defer s.conn.Close()
	for {
		var req struct {
			Type   string `json:"type"`
			Symbol string `json:"symbol"`
		}
		if err := s.conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Type != "subscribe" || req.Symbol == "" {
			continue
		}
		s.mu.Lock()
		if _, ok := s.symbols[req.Symbol]; !ok {
			// Seed a plausible starting price per symbol.
			s.symbols[req.Symbol] = 50 + rand.Float64()*400
		}
		s.mu.Unlock()
		log.Printf("[feedsim] subscribed: %s", req.Symbol)
	}
}

func (s *session) broadcastLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for range ticker.C {
		s.mu.Lock()
		batch := make([]tradeData, 0, len(s.symbols))
		for symbol, price := range s.symbols {
			next := walkPrice(price)
			s.symbols[symbol] = next
			batch = append(batch, tradeData{
				Symbol:    symbol,
				Price:     next,
				Timestamp: time.Now().UnixMilli(),
				Volume:    float64(rand.Intn(100) + 1),
			})
		}
		s.mu.Unlock()

		if len(batch) == 0 {
			continue
		}
		msg, err := json.Marshal(tradeMsg{Type: "trade", Data: batch})
		if err != nil {
			continue
		}
		s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[feedsim] upgrade error: %v", err)
			return
		}
		log.Printf("[feedsim] client connected: %s", r.RemoteAddr)

		s := &session{conn: conn, symbols: make(map[string]float64)}
		go s.broadcastLoop(interval)
		s.readSubscriptions()
		log.Printf("[feedsim] client disconnected: %s", r.RemoteAddr)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[feedsim] starting demo feed simulator...")

	addr := envOrDefault("FEEDSIM_ADDR", ":9001")
	intervalMs := envIntOrDefault("FEEDSIM_INTERVAL_MS", 500)
	interval := time.Duration(intervalMs) * time.Millisecond

	http.HandleFunc("/", wsHandler(interval))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedsim"}`)
	})

	log.Printf("[feedsim] listening on %s (point FINNHUB_WS_URL at ws://localhost%s)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[feedsim] server error: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
