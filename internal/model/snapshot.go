package model

import (
	"encoding/json"
	"math"
	"time"
)

// Snapshot is one closed candle plus the derived indicator values the
// decision engine reads. Indicator fields are NaN until their warm-up
// window is satisfied; the engine treats NaN as "no value", never as an
// error. A Snapshot is immutable once produced.
type Snapshot struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	EMA      float64 `json:"ema"`
	BBLower  float64 `json:"bb_lower"`
	BBMiddle float64 `json:"bb_middle"`
	BBUpper  float64 `json:"bb_upper"`
	MFI      float64 `json:"mfi"`
	ATR      float64 `json:"atr"`
}

// PricesValid reports whether all raw price fields are finite numbers.
// A snapshot failing this check must not cause any state transition.
func (s *Snapshot) PricesValid() bool {
	return isFinite(s.Open) && isFinite(s.High) && isFinite(s.Low) &&
		isFinite(s.Close) && isFinite(s.Volume)
}

// IndicatorsReady reports whether every indicator field carries a finite
// value, i.e. all warm-up windows are satisfied.
func (s *Snapshot) IndicatorsReady() bool {
	return isFinite(s.EMA) && isFinite(s.BBLower) && isFinite(s.BBMiddle) &&
		isFinite(s.BBUpper) && isFinite(s.MFI) && isFinite(s.ATR)
}

// JSON returns the JSON-encoded snapshot.
func (s *Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
