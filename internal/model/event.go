package model

import (
	"encoding/json"
	"time"
)

// ExitReason tags which bound produced an ExitEvent.
type ExitReason string

const (
	ExitRatchetStop ExitReason = "ratchet_stop"
	ExitHardStop    ExitReason = "hard_stop"
)

// EntryEvent signals that an armed setup triggered. Events are emitted,
// not retained: the execution layer consumes them immediately.
type EntryEvent struct {
	Symbol         string    `json:"symbol"`
	TS             time.Time `json:"ts"`
	Side           Side      `json:"side"`
	ReferencePrice float64   `json:"reference_price"` // candle close at trigger
	StopPrice      float64   `json:"stop_price"`      // initial protective stop
}

// ExitEvent signals that an open position's stop or hard ceiling was
// crossed this step.
type ExitEvent struct {
	Symbol         string     `json:"symbol"`
	TS             time.Time  `json:"ts"`
	Side           Side       `json:"side"`
	ReferencePrice float64    `json:"reference_price"` // crossed level
	StopPrice      float64    `json:"stop_price"`      // ratchet stop at exit
	EntryPrice     float64    `json:"entry_price"`
	Reason         ExitReason `json:"reason"`
}

// JSON returns the JSON-encoded entry event.
func (e *EntryEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// JSON returns the JSON-encoded exit event.
func (e *ExitEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
