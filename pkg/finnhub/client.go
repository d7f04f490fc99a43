package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultRESTURL is the production REST base URL.
const DefaultRESTURL = "https://finnhub.io/api/v1"

// StatusOK and StatusNoData are the candle response status markers.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// CandleResponse is the provider's parallel-array candle payload.
type CandleResponse struct {
	Status string    `json:"s"`
	Times  []int64   `json:"t"`
	Opens  []float64 `json:"o"`
	Highs  []float64 `json:"h"`
	Lows   []float64 `json:"l"`
	Closes []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

// Client is a REST client for the candle endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a REST client with a 10s request timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// Candles fetches OHLCV data for one symbol over [from, to] unix seconds.
// A non-200 response or an undecodable body is a transport error; the
// response status marker is returned as-is for the caller to interpret.
func (c *Client) Candles(ctx context.Context, symbol, resolution string, from, to int64) (CandleResponse, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", resolution)
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/stock/candle?"+q.Encode(), nil)
	if err != nil {
		return CandleResponse{}, fmt.Errorf("finnhub candles: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CandleResponse{}, fmt.Errorf("finnhub candles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CandleResponse{}, fmt.Errorf("finnhub candles: unexpected status %s", resp.Status)
	}

	var out CandleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CandleResponse{}, fmt.Errorf("finnhub candles: decode: %w", err)
	}
	return out, nil
}
