// Package indicator provides incremental technical indicator calculations
// over candle data for the snapshot pipeline.
//
// All indicators implement the Indicator interface, receiving candles one
// at a time and producing float64 values. Until an indicator's warm-up
// window is satisfied, Value() returns NaN — the engine reads NaN as
// "undefined", never as an error.
package indicator

import "ratchet-systemv1/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA", "ATR").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value; NaN until Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
