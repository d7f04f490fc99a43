// Package finnhub is a minimal client for the Finnhub streaming trade feed
// and the candle REST endpoint. It covers only what the relay needs:
// subscribe-per-symbol over WebSocket, trade batch decoding, and time-ranged
// candle queries.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWSURL is the production streaming endpoint.
const DefaultWSURL = "wss://ws.finnhub.io"

// TradeData is one entry of a batched trade message.
type TradeData struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Timestamp int64   `json:"t"` // epoch milliseconds
	Volume    float64 `json:"v"`
}

// wsEnvelope is the outer shape of every inbound feed message.
type wsEnvelope struct {
	Type string      `json:"type"`
	Data []TradeData `json:"data"`
	Msg  string      `json:"msg"`
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Socket is a single streaming connection to the feed. It is not reusable
// after Listen returns; callers owning the reconnect policy create a fresh
// Socket per attempt.
type Socket struct {
	Dialer *websocket.Dialer

	url  string
	conn *websocket.Conn

	// OnTrades receives every decoded trade batch.
	OnTrades func([]TradeData)
}

// NewSocket creates a Socket for the given base URL and API token.
// The token is passed as a query parameter, matching the provider protocol.
func NewSocket(baseURL, token string) *Socket {
	return &Socket{
		Dialer: websocket.DefaultDialer,
		url:    baseURL + "?token=" + token,
	}
}

// Connect dials the streaming endpoint.
func (s *Socket) Connect(ctx context.Context) error {
	conn, resp, err := s.Dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("finnhub ws dial: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("finnhub ws dial: %w", err)
	}
	s.conn = conn
	return nil
}

// Subscribe sends one subscribe request for a symbol.
func (s *Socket) Subscribe(symbol string) error {
	if s.conn == nil {
		return errors.New("finnhub ws: not connected")
	}
	return s.conn.WriteJSON(subscribeMsg{Type: "subscribe", Symbol: symbol})
}

// Listen reads feed messages until the connection fails or ctx is cancelled.
// Trade batches are handed to OnTrades; malformed frames are logged and
// skipped. The returned error is the transport error that ended the loop,
// or nil on ctx cancellation.
func (s *Socket) Listen(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("finnhub ws: not connected")
	}

	// Unblock ReadMessage when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("finnhub ws read: %w", err)
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[finnhub] dropping malformed frame: %v", err)
			continue
		}

		switch env.Type {
		case "trade":
			if s.OnTrades != nil && len(env.Data) > 0 {
				s.OnTrades(env.Data)
			}
		case "ping":
			s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			s.conn.WriteJSON(map[string]string{"type": "pong"})
		case "error":
			// Subscription rejections (bad token, quota) arrive here.
			// Not fatal: the connection stays up, just with no data.
			log.Printf("[finnhub] feed error message: %s", env.Msg)
		default:
			// Unknown message kinds are ignored.
		}
	}
}

// Close sends a close frame and tears down the connection.
func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
