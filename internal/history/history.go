// Package history serves historical OHLCV candles for one instrument by
// proxying a time-ranged request to the provider's REST endpoint and
// zipping the parallel-array response into Candle values.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockrelayv1/internal/model"
	"stockrelayv1/pkg/finnhub"
)

// ErrNoData is the expected outcome for illiquid symbols, empty ranges, or
// provider quota limits. Callers map it to a 404, distinct from transport
// failure.
var ErrNoData = errors.New("no data found")

const (
	defaultResolution = "D"
	defaultLookback   = 7 * 24 * time.Hour
)

// Proxy issues candle requests against the upstream REST API. Stateless;
// safe for concurrent use.
type Proxy struct {
	client *finnhub.Client
}

// New creates a Proxy over the given REST client.
func New(client *finnhub.Client) *Proxy {
	return &Proxy{client: client}
}

// History fetches candles for symbol over [from, to] unix seconds, ascending
// by time. Zero from/to fall back to a 7-day window ending now; an empty
// resolution defaults to daily.
func (p *Proxy) History(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Candle, error) {
	if resolution == "" {
		resolution = defaultResolution
	}
	if to <= 0 {
		to = time.Now().Unix()
	}
	if from <= 0 {
		from = to - int64(defaultLookback/time.Second)
	}

	resp, err := p.client.Candles(ctx, symbol, resolution, from, to)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	switch resp.Status {
	case finnhub.StatusOK:
		return zip(resp)
	case finnhub.StatusNoData:
		return nil, fmt.Errorf("history %s: %w", symbol, ErrNoData)
	default:
		return nil, fmt.Errorf("history %s: upstream status %q", symbol, resp.Status)
	}
}

// zip converts the parallel arrays into candles. Mismatched array lengths
// mean a corrupt payload; nothing partially parsed is ever returned.
func zip(resp finnhub.CandleResponse) ([]model.Candle, error) {
	n := len(resp.Times)
	if len(resp.Opens) != n || len(resp.Highs) != n || len(resp.Lows) != n ||
		len(resp.Closes) != n || len(resp.Volume) != n {
		return nil, fmt.Errorf("history: mismatched candle arrays (t=%d o=%d h=%d l=%d c=%d v=%d)",
			n, len(resp.Opens), len(resp.Highs), len(resp.Lows), len(resp.Closes), len(resp.Volume))
	}

	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = model.Candle{
			Time:   resp.Times[i],
			Open:   resp.Opens[i],
			High:   resp.Highs[i],
			Low:    resp.Lows[i],
			Close:  resp.Closes[i],
			Volume: resp.Volume[i],
		}
	}
	return candles, nil
}
