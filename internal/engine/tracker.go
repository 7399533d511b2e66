package engine

import "time"

// SetupState is the per-side automaton state: Idle (zero value) or Armed.
type SetupState struct {
	Armed      bool
	ArmedSince time.Time
}

// step applies one transition. Evaluation order is fixed:
//  1. invalidation clears the state, winning over everything else
//  2. a raw setup (already gate-filtered by the caller) arms an idle side
//  3. otherwise the state carries forward
//
// The long and short instances share no fields and must both be stepped
// from the same snapshot.
func (st *SetupState) step(setup, invalidated bool, ts time.Time) {
	if invalidated {
		st.Armed = false
		st.ArmedSince = time.Time{}
		return
	}
	if !st.Armed && setup {
		st.Armed = true
		st.ArmedSince = ts
	}
}
