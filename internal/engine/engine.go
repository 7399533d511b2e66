// Package engine implements the per-instrument decision core: a pair of
// setup automatons, bar-magnifier trigger detection, and a ratcheting
// protective stop, composed into entry/exit events.
//
// The engine is a strictly sequential stream processor. Callers feed one
// snapshot per step in increasing timestamp order; the engine performs
// no I/O and holds no locks, so replaying an identical snapshot sequence
// from a fresh engine always yields identical output. Run one Engine per
// instrument; instruments share no state.
package engine

import (
	"errors"
	"fmt"
	"math"

	"ratchet-systemv1/internal/model"
)

// ErrOutOfOrder is returned by Step for a snapshot whose timestamp does
// not strictly increase. Replay treats it as fatal; live callers drop
// the step and report degradation.
var ErrOutOfOrder = errors.New("snapshot timestamp out of order")

// Result is the outcome of one step. At most one of Entry/Exit is set;
// the remaining fields expose queryable state for publication.
type Result struct {
	Entry *model.EntryEvent
	Exit  *model.ExitEvent

	LongArmed  bool
	ShortArmed bool

	// Stop is the open position's current stop, NaN when flat.
	Stop float64
}

// Engine owns the decision state for one instrument: two independent
// SetupStates and at most one open Position.
type Engine struct {
	symbol string
	params Params
	gate   gate

	long  SetupState
	short SetupState
	pos   *model.Position

	prev    model.Snapshot // last structurally valid snapshot
	hasPrev bool
	lastTS  int64 // UnixNano of the newest accepted step
	started bool
}

// New creates an engine for one instrument.
func New(symbol string, params Params) *Engine {
	return &Engine{
		symbol: symbol,
		params: params,
		gate:   gate{stage: params.RegimeFilterStage},
	}
}

// Symbol returns the instrument this engine manages.
func (e *Engine) Symbol() string { return e.symbol }

// Position returns the open position, or nil when flat. The returned
// pointer is owned by the engine; callers must not mutate it.
func (e *Engine) Position() *model.Position { return e.pos }

// LongState and ShortState expose the setup automatons for inspection.
func (e *Engine) LongState() SetupState  { return e.long }
func (e *Engine) ShortState() SetupState { return e.short }

// Step folds one snapshot into the engine state, in this order:
//  1. breach check for an open position, against the stop carried into
//     this step
//  2. ratchet tightening for a surviving position
//  3. both setup automatons, from the same snapshot
//  4. trigger detection and entry composition (at most one new entry,
//     only when flat and not exited this step)
//
// A snapshot with non-finite prices causes no transition: prior state
// carries forward unchanged.
func (e *Engine) Step(s model.Snapshot, regime *model.RegimeSignal) (Result, error) {
	ts := s.TS.UnixNano()
	if e.started && ts <= e.lastTS {
		return Result{}, fmt.Errorf("%w: %s at %s", ErrOutOfOrder, e.symbol, s.TS.UTC())
	}
	e.started = true
	e.lastTS = ts

	if !s.PricesValid() {
		return e.result(), nil
	}

	res := Result{}
	cat := e.gate.category(regime)

	exited := false
	if e.pos != nil {
		if exit, breached := checkBreach(e.pos, &s, e.params); breached {
			res.Exit = &exit
			e.pos = nil
			exited = true
		} else {
			tightenStop(e.pos, &s, e.params)
		}
	}

	// Both sides transition from this step's snapshot; neither reads the
	// other's post-transition state.
	e.long.step(longSetup(&s) && e.gate.allowsSetup(model.SideLong, cat), longInvalidated(&s), s.TS)
	e.short.step(shortSetup(&s) && e.gate.allowsSetup(model.SideShort, cat), shortInvalidated(&s), s.TS)

	// At most one new entry per step. A step that exited does not also
	// enter: the exit fill consumes the bar.
	if e.pos == nil && !exited && e.hasPrev && s.IndicatorsReady() {
		switch {
		case e.long.Armed && longTrigger(&e.prev, &s, e.params) && e.gate.allowsTrigger(model.SideLong, cat):
			e.pos = openPosition(model.SideLong, &s, e.params)
		case e.short.Armed && shortTrigger(&e.prev, &s, e.params) && e.gate.allowsTrigger(model.SideShort, cat):
			e.pos = openPosition(model.SideShort, &s, e.params)
		}
		if e.pos != nil {
			res.Entry = &model.EntryEvent{
				Symbol:         e.symbol,
				TS:             s.TS,
				Side:           e.pos.Side,
				ReferencePrice: s.Close,
				StopPrice:      e.pos.InitialStop,
			}
		}
	}

	e.prev = s
	e.hasPrev = true

	res.LongArmed = e.long.Armed
	res.ShortArmed = e.short.Armed
	res.Stop = e.currentStop()
	return res, nil
}

// result reports current state without any transition (invalid steps).
func (e *Engine) result() Result {
	return Result{
		LongArmed:  e.long.Armed,
		ShortArmed: e.short.Armed,
		Stop:       e.currentStop(),
	}
}

func (e *Engine) currentStop() float64 {
	if e.pos == nil {
		return math.NaN()
	}
	return e.pos.CurrentStop
}
