// Package feed streams closed OHLCV candles from the exchange websocket.
// Authentication uses an API key plus a time-based one-time code generated
// from the shared secret at dial time. The read loop pushes parsed candles
// to the caller and reconnects with exponential backoff on any failure.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"ratchet-systemv1/internal/model"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
)

const (
	heartbeatInterval = 10 * time.Second
	readDeadline      = 30 * time.Second
	baseRetryDelay    = 2 * time.Second
	maxRetryDelay     = 60 * time.Second
)

// Config configures the feed client.
type Config struct {
	URL        string // websocket endpoint, e.g. "wss://stream.example.com/candles"
	APIKey     string
	TOTPSecret string   // base32 secret for the one-time auth code
	Symbols    []string // instruments to subscribe
}

// candleMessage is the wire format for one closed candle.
type candleMessage struct {
	Type   string  `json:"type"` // "candle"
	Symbol string  `json:"symbol"`
	TS     int64   `json:"ts"` // bar close time, Unix seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Feed is the websocket candle client.
type Feed struct {
	cfg    Config
	dialer *websocket.Dialer

	// OnCandle receives every parsed candle. Must not block; the ring
	// buffer downstream absorbs bursts.
	OnCandle func(model.Candle)
	// OnReconnect is called before each reconnect attempt (optional).
	OnReconnect func()
}

// New creates a feed client.
func New(cfg Config) (*Feed, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("feed: url and api key are required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("feed: at least one symbol is required")
	}
	return &Feed{cfg: cfg, dialer: websocket.DefaultDialer}, nil
}

// Run connects and streams candles until ctx is cancelled. Connection
// failures are retried with exponential backoff; the backoff resets after
// a healthy session.
func (f *Feed) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A session that lasted a while was healthy: reset the backoff.
		if time.Since(start) > time.Minute {
			attempt = 0
		}
		attempt++

		delay := backoff(attempt)
		log.Printf("[feed] session ended: %v (reconnecting in %v)", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session dials, authenticates, subscribes and reads until an error.
func (f *Feed) session(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-API-Key", f.cfg.APIKey)
	if f.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(f.cfg.TOTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("generate auth code: %w", err)
		}
		header.Set("X-Auth-Code", code)
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %s)", f.cfg.URL, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", f.cfg.URL)

	sub := map[string]interface{}{
		"action":  "subscribe",
		"channel": "candles",
		"symbols": f.cfg.Symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[feed] subscribed to %d symbols", len(f.cfg.Symbols))

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Heartbeat loop. Closing the connection unblocks ReadMessage.
	hbDone := make(chan struct{})
	defer close(hbDone)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					log.Printf("[feed] ping write error: %v", err)
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		candle, ok, err := parseCandle(raw)
		if err != nil {
			log.Printf("[feed] parse error: %v", err)
			continue
		}
		if !ok {
			continue // control or ack frame
		}
		if f.OnCandle != nil {
			f.OnCandle(candle)
		}
	}
}

// parseCandle decodes one wire frame. Returns ok=false for non-candle
// frames (subscription acks, heartbeats).
func parseCandle(raw []byte) (model.Candle, bool, error) {
	var msg candleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Candle{}, false, fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Type != "candle" {
		return model.Candle{}, false, nil
	}
	if msg.Symbol == "" {
		return model.Candle{}, false, fmt.Errorf("candle frame missing symbol")
	}
	if msg.TS <= 0 {
		return model.Candle{}, false, fmt.Errorf("candle frame for %s has bad ts %d", msg.Symbol, msg.TS)
	}
	return model.Candle{
		Symbol: msg.Symbol,
		TS:     time.Unix(msg.TS, 0).UTC(),
		Open:   msg.Open,
		High:   msg.High,
		Low:    msg.Low,
		Close:  msg.Close,
		Volume: msg.Volume,
	}, true, nil
}

// backoff returns the exponential reconnect delay for the given attempt.
func backoff(attempt int) time.Duration {
	d := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt-1)))
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
