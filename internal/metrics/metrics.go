package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	TicksTotal     prometheus.Counter
	FeedReconnects prometheus.Counter
	DroppedTicks   prometheus.Counter

	ClientsConnected prometheus.Gauge
	ClientDrops      prometheus.Counter

	SideCacheErrors prometheus.Counter

	SnapshotRequests prometheus.Counter
	HistoryRequests  *prometheus.CounterVec // labels: status
	HistoryDur       prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_ticks_total",
			Help: "Total accepted ticks from the upstream feed",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_feed_reconnects_total",
			Help: "Total upstream feed reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_dropped_ticks_total",
			Help: "Upstream entries dropped (malformed or outside the universe)",
		}),
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ws_clients",
			Help: "Currently connected push-channel consumers",
		}),
		ClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_ws_client_drops_total",
			Help: "Consumers dropped for stalled delivery",
		}),
		SideCacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_sidecache_errors_total",
			Help: "Best-effort side cache operation failures",
		}),
		SnapshotRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_snapshot_requests_total",
			Help: "Snapshot endpoint requests served",
		}),
		HistoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_history_requests_total",
			Help: "History endpoint requests by outcome",
		}, []string{"status"}),
		HistoryDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_history_duration_seconds",
			Help:    "Upstream history proxy latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.FeedReconnects,
		m.DroppedTicks,
		m.ClientsConnected,
		m.ClientDrops,
		m.SideCacheErrors,
		m.SnapshotRequests,
		m.HistoryRequests,
		m.HistoryDur,
	)

	return m
}

// HealthStatus represents the relay health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedState        string    `json:"feed_state"`
	LastTickTime     time.Time `json:"last_tick_time"`
	SideCacheEnabled bool      `json:"sidecache_enabled"`
	WSClients        int       `json:"ws_clients"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		FeedState: "disconnected",
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedState(s string) {
	h.mu.Lock()
	h.FeedState = s
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSideCacheEnabled(v bool) {
	h.mu.Lock()
	h.SideCacheEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetWSClients(n int) {
	h.mu.Lock()
	h.WSClients = n
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint. The relay is intentionally
// healthy even with the feed down and the side cache disabled; it still
// serves synthetic snapshots.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string `json:"status"`
		Uptime           string `json:"uptime"`
		FeedState        string `json:"feed_state"`
		LastTickTime     string `json:"last_tick_time"`
		TickAge          string `json:"tick_age"`
		SideCacheEnabled bool   `json:"sidecache_enabled"`
		WSClients        int    `json:"ws_clients"`
	}{
		Status:           "ok",
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		FeedState:        h.FeedState,
		LastTickTime:     h.LastTickTime.Format(time.RFC3339),
		TickAge:          tickAge,
		SideCacheEnabled: h.SideCacheEnabled,
		WSClients:        h.WSClients,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
