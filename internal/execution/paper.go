// Package execution simulates fills for the decision engine's entry and
// exit events. The engine only decides; this layer models what an order
// placed on those decisions would have cost, including slippage.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ratchet-systemv1/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID    string           `json:"order_id"`
	Symbol     string           `json:"symbol"`
	Side       model.Side       `json:"side"`
	Action     string           `json:"action"` // "open" or "close"
	Price      float64          `json:"price"`  // fill price after slippage
	Slippage   float64          `json:"slippage"`
	EventTS    time.Time        `json:"event_ts"` // candle time of the decision
	FilledAt   time.Time        `json:"filled_at"`
	ExitReason model.ExitReason `json:"exit_reason,omitempty"` // close fills only
}

// PaperExecutor simulates order execution without broker calls.
// Useful for replay and live paper trading.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64

	// Simulation parameters
	slippageBps float64 // basis points of slippage (e.g., 5 = 0.05%)

	// OnFill is called after each simulated fill (optional).
	OnFill func(Fill)

	now func() time.Time // injectable clock for tests
}

// NewPaperExecutor creates a paper trading executor.
// slippageBps controls simulated slippage in basis points.
func NewPaperExecutor(slippageBps float64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 256),
		slippageBps: slippageBps,
		now:         time.Now,
	}
}

// Fills returns a snapshot of all fills.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// ExecuteEntry simulates opening a position at the entry event's
// reference price. Slippage moves the fill against the position:
// longs fill higher, shorts fill lower.
func (p *PaperExecutor) ExecuteEntry(_ context.Context, ev model.EntryEvent) Fill {
	slip := ev.ReferencePrice * p.slippageBps / 10000
	price := ev.ReferencePrice
	if ev.Side == model.SideLong {
		price += slip
	} else {
		price -= slip
	}
	fill := p.record(ev.Symbol, ev.Side, "open", price, slip, ev.TS, "")
	log.Printf("[paper] open %s %s price=%.4f (slip=%.4f) order=%s",
		ev.Side, ev.Symbol, price, slip, fill.OrderID)
	return fill
}

// ExecuteExit simulates closing a position at the crossed stop level.
// Slippage again moves against the position: a long exit sells lower,
// a short exit buys higher.
func (p *PaperExecutor) ExecuteExit(_ context.Context, ev model.ExitEvent) Fill {
	slip := ev.ReferencePrice * p.slippageBps / 10000
	price := ev.ReferencePrice
	if ev.Side == model.SideLong {
		price -= slip
	} else {
		price += slip
	}
	fill := p.record(ev.Symbol, ev.Side, "close", price, slip, ev.TS, ev.Reason)
	log.Printf("[paper] close %s %s price=%.4f (slip=%.4f) reason=%s order=%s",
		ev.Side, ev.Symbol, price, slip, ev.Reason, fill.OrderID)
	return fill
}

func (p *PaperExecutor) record(symbol string, side model.Side, action string, price, slip float64, eventTS time.Time, reason model.ExitReason) Fill {
	p.mu.Lock()
	p.orderSeq++
	fill := Fill{
		OrderID:    fmt.Sprintf("PAPER-%d", p.orderSeq),
		Symbol:     symbol,
		Side:       side,
		Action:     action,
		Price:      price,
		Slippage:   slip,
		EventTS:    eventTS,
		FilledAt:   p.now(),
		ExitReason: reason,
	}
	p.fills = append(p.fills, fill)
	onFill := p.OnFill
	p.mu.Unlock()

	if onFill != nil {
		onFill(fill)
	}
	return fill
}
