package engine

import "ratchet-systemv1/internal/model"

// gate adapts the external regime classifier into permit/forbid checks.
// The gate is advisory only: it never mutates tracker or position state.
type gate struct {
	stage FilterStage
}

// category resolves the effective regime for a step. A missing signal is
// NEUTRAL, the permissive default.
func (gate) category(sig *model.RegimeSignal) model.RegimeCategory {
	if sig == nil || sig.Category == "" {
		return model.RegimeNeutral
	}
	return sig.Category
}

// allowsSetup reports whether a side may arm this step. At the setup
// stage the unfavorable regime forbids the side (BEAR forbids longs,
// BULL forbids shorts); NEUTRAL permits both.
func (g gate) allowsSetup(side model.Side, cat model.RegimeCategory) bool {
	if g.stage != StageSetup {
		return true
	}
	if side == model.SideLong {
		return cat != model.RegimeBear
	}
	return cat != model.RegimeBull
}

// allowsTrigger reports whether a trigger may fire this step. At the
// trigger stage the regime must equal the favorable category; a
// suppressed trigger leaves the armed state untouched.
func (g gate) allowsTrigger(side model.Side, cat model.RegimeCategory) bool {
	if g.stage != StageTrigger {
		return true
	}
	if side == model.SideLong {
		return cat == model.RegimeBull
	}
	return cat == model.RegimeBear
}
