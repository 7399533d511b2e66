package engine

import (
	"math"

	"ratchet-systemv1/internal/model"
)

// Ratchet stop engine. The defining safety property: CurrentStop never
// loosens. Every update goes through max (long) or min (short) against
// the previous value, so monotonicity holds by construction.

// openPosition creates a Position from the triggering snapshot.
// Initial stop sits one ATR-risk unit away from the close.
func openPosition(side model.Side, s *model.Snapshot, p Params) *model.Position {
	stop := s.Close - p.ATRRiskFactor*s.ATR
	if side == model.SideShort {
		stop = s.Close + p.ATRRiskFactor*s.ATR
	}
	return &model.Position{
		Symbol:      s.Symbol,
		Side:        side,
		EntryPrice:  s.Close,
		EntryTS:     s.TS,
		InitialStop: stop,
		CurrentStop: stop,
	}
}

// tightenStop recomputes the stop for one step. The stop only moves once
// price has crossed the band midline in the trade's favor; the candidate
// is whichever of the fresh ATR trail or the midline is tighter, and the
// result never regresses past the previous stop. Returns true when the
// stop moved.
func tightenStop(pos *model.Position, s *model.Snapshot, p Params) bool {
	if math.IsNaN(s.BBMiddle) || math.IsNaN(s.ATR) {
		return false // undefined indicators: stop carries forward
	}

	prev := pos.CurrentStop
	if pos.Side == model.SideLong {
		if s.Close < s.BBMiddle {
			return false
		}
		trail := s.Close - p.ATRRiskFactor*s.ATR
		candidate := trail
		if trail < s.BBMiddle {
			candidate = s.BBMiddle // midline is the tighter (higher) bound
		}
		pos.CurrentStop = math.Max(prev, candidate)
	} else {
		if s.Close > s.BBMiddle {
			return false
		}
		trail := s.Close + p.ATRRiskFactor*s.ATR
		candidate := trail
		if trail > s.BBMiddle {
			candidate = s.BBMiddle // midline is the tighter (lower) bound
		}
		pos.CurrentStop = math.Min(prev, candidate)
	}
	return pos.CurrentStop != prev
}

// checkBreach tests the ratchet stop and the hard ceiling against the
// bar's extreme. As price moves against the position it meets the
// tighter of the two bounds first, so that bound decides the exit
// reason. Returns the ExitEvent and true on a breach.
func checkBreach(pos *model.Position, s *model.Snapshot, p Params) (model.ExitEvent, bool) {
	hard := pos.HardStopLevel(p.HardStopFraction)

	var level float64
	reason := model.ExitRatchetStop
	if pos.Side == model.SideLong {
		level = math.Max(pos.CurrentStop, hard)
		if pos.CurrentStop < hard {
			reason = model.ExitHardStop
		}
		if s.Low > level {
			return model.ExitEvent{}, false
		}
	} else {
		level = math.Min(pos.CurrentStop, hard)
		if pos.CurrentStop > hard {
			reason = model.ExitHardStop
		}
		if s.High < level {
			return model.ExitEvent{}, false
		}
	}

	return model.ExitEvent{
		Symbol:         pos.Symbol,
		TS:             s.TS,
		Side:           pos.Side,
		ReferencePrice: level,
		StopPrice:      pos.CurrentStop,
		EntryPrice:     pos.EntryPrice,
		Reason:         reason,
	}, true
}
