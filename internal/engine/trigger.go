package engine

import "ratchet-systemv1/internal/model"

// Trigger detection uses bar-magnifier semantics: the intrabar extreme
// crossing the band is sufficient, because a real fill can happen on the
// extreme, not only on the close. Both functions are stateless over the
// previous and current snapshot; NaN operands compare false.

// longTrigger: high crosses above bb_lower with depressed money flow.
func longTrigger(prev, cur *model.Snapshot, p Params) bool {
	return cur.High > cur.BBLower &&
		prev.High <= prev.BBLower &&
		cur.MFI < p.MFILowerThreshold
}

// shortTrigger: low crosses below bb_upper with elevated money flow.
func shortTrigger(prev, cur *model.Snapshot, p Params) bool {
	return cur.Low < cur.BBUpper &&
		prev.Low >= prev.BBUpper &&
		cur.MFI > p.MFIHigherThreshold
}
