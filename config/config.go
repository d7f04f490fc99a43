package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Finnhub credentials and endpoints
	FinnhubAPIKey  string
	FinnhubWSURL   string
	FinnhubRESTURL string

	// Infrastructure
	ListenAddr    string
	RedisAddr     string
	RedisPassword string

	// Relay behaviour
	Symbols        string // comma-separated symbol universe
	CacheTTLSec    int    // side-cache TTL per tick, seconds
	ReconnectDelay time.Duration
}

// SandboxToken is the demo placeholder credential. The provider rejects
// subscriptions made with it but the relay still starts and serves
// synthetic snapshots.
const SandboxToken = "sandbox_token"

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	apiKey := getEnv("FINNHUB_API_KEY", SandboxToken)
	if apiKey == SandboxToken {
		log.Println("[config] FINNHUB_API_KEY not set, using sandbox placeholder (live data unavailable)")
	}

	return &Config{
		FinnhubAPIKey:  apiKey,
		FinnhubWSURL:   getEnv("FINNHUB_WS_URL", "wss://ws.finnhub.io"),
		FinnhubRESTURL: getEnv("FINNHUB_REST_URL", "https://finnhub.io/api/v1"),

		ListenAddr:    getEnv("RELAY_ADDR", ":5000"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		Symbols: getEnv("SYMBOLS",
			"AAPL,TSLA,GOOGL,MSFT,NVDA,AMZN,META,NFLX,BA,DIS,"+
				"IBM,AMD,INTC,V,PYPL,JPM,GS,TSM,XOM,WMT"),
		CacheTTLSec:    envIntOrDefault("CACHE_TTL_SEC", 300),
		ReconnectDelay: time.Duration(envIntOrDefault("FEED_RECONNECT_SEC", 5)) * time.Second,
	}
}

// ParseSymbols parses the Symbols string into the tracked instrument universe.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(p))
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[config] ignoring invalid value for %s: %q", key, v)
	}
	return def
}
