package model

import "time"

// Side identifies the direction of a setup or position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is one open trade owned by the engine instance managing its
// instrument. CurrentStop only ever moves toward the favorable side:
// non-decreasing for longs, non-increasing for shorts.
type Position struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	EntryTS     time.Time `json:"entry_ts"`
	InitialStop float64   `json:"initial_stop"`
	CurrentStop float64   `json:"current_stop"`
}

// HardStopLevel returns the fixed worst-case exit price for the given
// loss fraction (e.g. 0.10 = 10% below entry for a long).
func (p *Position) HardStopLevel(fraction float64) float64 {
	if p.Side == SideShort {
		return p.EntryPrice * (1 + fraction)
	}
	return p.EntryPrice * (1 - fraction)
}
