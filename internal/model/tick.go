package model

import "encoding/json"

// Tick represents a single normalized price observation from the upstream feed.
// Timestamp is kept in the provider's native unit (epoch milliseconds).
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Volume    float64 `json:"volume"`
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (t *Tick) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}

// Quote is a tick enriched at the snapshot layer with change statistics
// relative to a previous-close baseline and a session high/low.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}
