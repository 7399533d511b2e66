package model

import (
	"encoding/json"
	"time"
)

// RegimeCategory is the oracle's categorical market-state classification.
type RegimeCategory string

const (
	RegimeBull    RegimeCategory = "BULL"
	RegimeBear    RegimeCategory = "BEAR"
	RegimeNeutral RegimeCategory = "NEUTRAL"
)

// RegimeSignal is one prediction from the external regime classifier.
// The signal is optional per step: a missing signal means NEUTRAL, which
// is the permissive default.
type RegimeSignal struct {
	Symbol     string                     `json:"symbol"`
	TS         time.Time                  `json:"ts"`
	Category   RegimeCategory             `json:"category"`
	Confidence map[RegimeCategory]float64 `json:"confidence,omitempty"`
}

// JSON returns the JSON-encoded signal.
func (r *RegimeSignal) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
