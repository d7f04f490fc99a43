package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockrelayv1/internal/history"
	"stockrelayv1/internal/metrics"
	"stockrelayv1/internal/snapshot"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetCORS sets CORS headers for REST endpoints. The browser UI is served
// from a different origin.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, snap *snapshot.Generator, hist *history.Proxy, m *metrics.Metrics, health *metrics.HealthStatus) {
	// Push channel
	mux.HandleFunc("/ws", hub.HandleWS)

	// REST: full current-state snapshot. Always 200 with data, real or
	// synthetic; this endpoint keeps client UIs populated.
	mux.HandleFunc("/api/stock_data", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if m != nil {
			m.SnapshotRequests.Inc()
		}
		json.NewEncoder(w).Encode(snap.Snapshot(r.Context()))
	})

	// REST: historical candles, /api/stock/{symbol}/history
	mux.HandleFunc("/api/stock/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		symbol, ok := historySymbol(r.URL.Path)
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		resolution := r.URL.Query().Get("resolution")
		from := parseUnix(r.URL.Query().Get("from"))
		to := parseUnix(r.URL.Query().Get("to"))

		start := time.Now()
		candles, err := hist.History(r.Context(), symbol, resolution, from, to)
		if m != nil {
			m.HistoryDur.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if errors.Is(err, history.ErrNoData) {
				if m != nil {
					m.HistoryRequests.WithLabelValues("no_data").Inc()
				}
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"error": "No data found"})
				return
			}
			log.Printf("[gateway] history %s failed: %v", symbol, err)
			if m != nil {
				m.HistoryRequests.WithLabelValues("error").Inc()
			}
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "Failed to fetch historical data"})
			return
		}

		if m != nil {
			m.HistoryRequests.WithLabelValues("ok").Inc()
		}
		json.NewEncoder(w).Encode(candles)
	})

	// Health + Prometheus metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health.SetWSClients(hub.ClientCount())
		health.ServeHTTP(w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
}

// historySymbol extracts the symbol from /api/stock/{symbol}/history.
func historySymbol(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/api/stock/")
	symbol, tail, found := strings.Cut(rest, "/")
	if !found || symbol == "" || tail != "history" {
		return "", false
	}
	return symbol, true
}

func parseUnix(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
