package feed

import (
	"testing"
	"time"
)

func TestParseCandle(t *testing.T) {
	raw := []byte(`{"type":"candle","symbol":"BTC/USDT","ts":1700000000,"open":100,"high":105,"low":98,"close":103,"volume":12.5}`)

	c, ok, err := parseCandle(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ok {
		t.Fatal("candle frame not recognized")
	}
	if c.Symbol != "BTC/USDT" {
		t.Errorf("symbol: got %q", c.Symbol)
	}
	if c.TS != time.Unix(1700000000, 0).UTC() {
		t.Errorf("ts: got %v", c.TS)
	}
	if c.Open != 100 || c.High != 105 || c.Low != 98 || c.Close != 103 || c.Volume != 12.5 {
		t.Errorf("ohlcv: got %+v", c)
	}
}

func TestParseCandle_NonCandleFrames(t *testing.T) {
	for _, raw := range []string{
		`{"type":"subscribed","symbols":["BTC/USDT"]}`,
		`{"type":"heartbeat"}`,
		`{}`,
	} {
		_, ok, err := parseCandle([]byte(raw))
		if err != nil {
			t.Errorf("frame %s: unexpected error %v", raw, err)
		}
		if ok {
			t.Errorf("frame %s: treated as candle", raw)
		}
	}
}

func TestParseCandle_BadFrames(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"candle","ts":1700000000}`,            // missing symbol
		`{"type":"candle","symbol":"BTC/USDT","ts":0}`, // bad ts
	} {
		_, ok, err := parseCandle([]byte(raw))
		if err == nil {
			t.Errorf("frame %s: expected error", raw)
		}
		if ok {
			t.Errorf("frame %s: treated as candle", raw)
		}
	}
}

func TestBackoff(t *testing.T) {
	if got := backoff(1); got != baseRetryDelay {
		t.Errorf("attempt 1: got %v want %v", got, baseRetryDelay)
	}
	if got := backoff(2); got != 2*baseRetryDelay {
		t.Errorf("attempt 2: got %v want %v", got, 2*baseRetryDelay)
	}
	if got := backoff(30); got != maxRetryDelay {
		t.Errorf("attempt 30: got %v want cap %v", got, maxRetryDelay)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{URL: "wss://x", APIKey: "k"}); err == nil {
		t.Error("no symbols accepted")
	}
	if _, err := New(Config{APIKey: "k", Symbols: []string{"BTC/USDT"}}); err == nil {
		t.Error("missing url accepted")
	}
	if _, err := New(Config{URL: "wss://x", APIKey: "k", Symbols: []string{"BTC/USDT"}}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
