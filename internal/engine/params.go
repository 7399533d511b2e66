package engine

import "fmt"

// FilterStage selects where the regime gate is consulted.
type FilterStage string

const (
	// StageSetup blocks unfavorable setups from arming (stricter: fewer
	// persisted armed states).
	StageSetup FilterStage = "setup"
	// StageTrigger lets setups arm freely but suppresses entries unless
	// the regime matches the favorable category (looser: more persisted
	// armed states).
	StageTrigger FilterStage = "trigger"
	// StageNone disables the regime gate entirely.
	StageNone FilterStage = "none"
)

// ParseFilterStage validates a configured stage string.
func ParseFilterStage(s string) (FilterStage, error) {
	switch FilterStage(s) {
	case StageSetup, StageTrigger, StageNone:
		return FilterStage(s), nil
	}
	return "", fmt.Errorf("invalid regime filter stage %q (want setup|trigger|none)", s)
}

// Params holds the engine's tunables. Zero values are not usable; start
// from DefaultParams.
type Params struct {
	// ATRRiskFactor scales the ATR distance of the initial stop and the
	// recomputed trail.
	ATRRiskFactor float64

	// MFILowerThreshold gates long triggers (MFI must be below it).
	MFILowerThreshold float64

	// MFIHigherThreshold gates short triggers (MFI must be above it).
	MFIHigherThreshold float64

	// HardStopFraction is the unconditional worst-case loss bound,
	// independent of the ratchet.
	HardStopFraction float64

	// RegimeFilterStage selects where the regime gate applies.
	RegimeFilterStage FilterStage
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		ATRRiskFactor:      1.4,
		MFILowerThreshold:  40,
		MFIHigherThreshold: 60,
		HardStopFraction:   0.10,
		RegimeFilterStage:  StageSetup,
	}
}
