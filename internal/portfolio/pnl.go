// Package portfolio tracks completed round trips and P&L statistics.
//
// The engine holds at most one position per symbol, so accounting reduces
// to matching each exit against the entry that opened it. Returns are
// tracked as fractions of entry price; equity assumes full reinvestment.
package portfolio

import (
	"sync"
	"time"

	"ratchet-systemv1/internal/model"
)

// RoundTrip is one completed entry/exit pair.
type RoundTrip struct {
	Symbol     string           `json:"symbol"`
	Side       model.Side       `json:"side"`
	EntryTS    time.Time        `json:"entry_ts"`
	EntryPrice float64          `json:"entry_price"`
	ExitTS     time.Time        `json:"exit_ts"`
	ExitPrice  float64          `json:"exit_price"`
	Reason     model.ExitReason `json:"reason"`
	Return     float64          `json:"return"` // fractional, e.g. 0.02 = +2%
}

// PnLTracker accumulates round trips and running equity.
type PnLTracker struct {
	mu     sync.RWMutex
	trips  []RoundTrip
	open   map[string]openEntry // symbol -> pending entry
	equity float64              // cumulative growth factor, starts at 1
	peak   float64
	maxDD  float64
}

type openEntry struct {
	side  model.Side
	ts    time.Time
	price float64
}

// NewPnLTracker creates an empty tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{
		open:   make(map[string]openEntry),
		equity: 1,
		peak:   1,
	}
}

// RecordEntry registers an opened position. A second entry for the same
// symbol before an exit replaces the first (should not happen; the engine
// enforces one position per symbol).
func (p *PnLTracker) RecordEntry(symbol string, side model.Side, ts time.Time, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[symbol] = openEntry{side: side, ts: ts, price: price}
}

// RecordExit closes the pending entry for the symbol and returns the
// completed round trip. ok is false when no entry is pending.
func (p *PnLTracker) RecordExit(symbol string, ts time.Time, price float64, reason model.ExitReason) (RoundTrip, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.open[symbol]
	if !ok {
		return RoundTrip{}, false
	}
	delete(p.open, symbol)

	ret := (price - entry.price) / entry.price
	if entry.side == model.SideShort {
		ret = -ret
	}

	trip := RoundTrip{
		Symbol:     symbol,
		Side:       entry.side,
		EntryTS:    entry.ts,
		EntryPrice: entry.price,
		ExitTS:     ts,
		ExitPrice:  price,
		Reason:     reason,
		Return:     ret,
	}
	p.trips = append(p.trips, trip)

	p.equity *= 1 + ret
	if p.equity > p.peak {
		p.peak = p.equity
	}
	if dd := (p.peak - p.equity) / p.peak; dd > p.maxDD {
		p.maxDD = dd
	}
	return trip, true
}

// Trips returns a snapshot of all completed round trips.
func (p *PnLTracker) Trips() []RoundTrip {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]RoundTrip, len(p.trips))
	copy(cp, p.trips)
	return cp
}

// Summary aggregates round-trip statistics.
type Summary struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"` // 0..1, 0 when no trades
	TotalReturn  float64 `json:"total_return"`
	AvgReturn    float64 `json:"avg_return"`
	BestReturn   float64 `json:"best_return"`
	WorstReturn  float64 `json:"worst_return"`
	MaxDrawdown  float64 `json:"max_drawdown"` // worst fraction below peak equity
	RatchetExits int     `json:"ratchet_exits"`
	HardExits    int     `json:"hard_exits"`
	OpenEntries  int     `json:"open_entries"`
}

// GetSummary computes statistics over all recorded round trips.
func (p *PnLTracker) GetSummary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Summary{
		Trades:      len(p.trips),
		TotalReturn: p.equity - 1,
		MaxDrawdown: p.maxDD,
		OpenEntries: len(p.open),
	}
	if len(p.trips) == 0 {
		return s
	}

	var sum float64
	s.BestReturn = p.trips[0].Return
	s.WorstReturn = p.trips[0].Return
	for _, t := range p.trips {
		sum += t.Return
		if t.Return > 0 {
			s.Wins++
		}
		if t.Return > s.BestReturn {
			s.BestReturn = t.Return
		}
		if t.Return < s.WorstReturn {
			s.WorstReturn = t.Return
		}
		switch t.Reason {
		case model.ExitRatchetStop:
			s.RatchetExits++
		case model.ExitHardStop:
			s.HardExits++
		}
	}
	s.WinRate = float64(s.Wins) / float64(len(p.trips))
	s.AvgReturn = sum / float64(len(p.trips))
	return s
}
