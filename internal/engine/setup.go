package engine

import (
	"math"

	"ratchet-systemv1/internal/model"
)

// Setup and invalidation predicates. All are pure functions of the
// current snapshot. Comparisons involving NaN are false in Go, so an
// unwarmed indicator evaluates to "no setup" without special casing;
// invalidation predicates use explicit guards because their OR shape
// would otherwise not inherit that behavior symmetrically.

// longSetup: price dipped below the lower band while the whole band
// structure sits above trend (bb_lower > ema AND low > ema AND
// close < bb_lower).
func longSetup(s *model.Snapshot) bool {
	return s.BBLower > s.EMA && s.Low > s.EMA && s.Close < s.BBLower
}

// shortSetup: mirror of longSetup below trend.
func shortSetup(s *model.Snapshot) bool {
	return s.BBUpper < s.EMA && s.High < s.EMA && s.Close > s.BBUpper
}

// longInvalidated: band or price fell back under trend
// (bb_lower < ema OR low < ema). NaN operands invalidate nothing.
func longInvalidated(s *model.Snapshot) bool {
	if math.IsNaN(s.BBLower) || math.IsNaN(s.EMA) || math.IsNaN(s.Low) {
		return false
	}
	return s.BBLower < s.EMA || s.Low < s.EMA
}

// shortInvalidated: mirror of longInvalidated.
func shortInvalidated(s *model.Snapshot) bool {
	if math.IsNaN(s.BBUpper) || math.IsNaN(s.EMA) || math.IsNaN(s.High) {
		return false
	}
	return s.BBUpper > s.EMA || s.High > s.EMA
}
