package model

// Candle represents one OHLCV bar from the provider's history endpoint.
// Time is the bar start in unix seconds. Candles are produced transiently
// per request and never cached server-side.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
