// Package replay reads historical candles and regime signals from SQLite
// and feeds them through the decision engine at configurable speed. Replay
// and live share the same engine code, so a replay over the candles the
// live engine saw reproduces its decisions exactly.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"ratchet-systemv1/internal/model"
)

// Replayer emits stored candles for one symbol in time order.
type Replayer struct {
	reader model.CandleReader
}

// New creates a Replayer backed by a candle reader.
func New(reader model.CandleReader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all candles for the symbol into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as
// fast as possible. fromTS filters candles to those after this Unix
// timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, symbol string, fromTS int64, speed float64, outCh chan<- model.Candle) error {
	candles, err := r.reader.ReadCandles(symbol, fromTS)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		log.Printf("[replay] no candles found for %s", symbol)
		return nil
	}

	log.Printf("[replay] loaded %d candles for %s, speed=%.1fx", len(candles), symbol, speed)

	var prevTS time.Time
	emitted := 0

	for _, c := range candles {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d candles", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between candles
		if speed > 0 && !prevTS.IsZero() {
			gap := c.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = c.TS

		select {
		case outCh <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
		emitted++
	}

	log.Printf("[replay] completed: %d candles replayed", emitted)
	return nil
}

// RegimeTimeline serves point-in-time regime lookups over a stored signal
// history, so a replayed bar sees exactly the signal that was current when
// it closed.
type RegimeTimeline struct {
	signals []model.RegimeSignal // sorted by TS ascending
}

// NewRegimeTimeline builds a timeline from stored signals. The input is
// sorted defensively; readers already return ascending order.
func NewRegimeTimeline(signals []model.RegimeSignal) *RegimeTimeline {
	sorted := make([]model.RegimeSignal, len(signals))
	copy(sorted, signals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })
	return &RegimeTimeline{signals: sorted}
}

// At returns the latest signal at or before t, or nil when none exists
// yet. maxAge bounds signal staleness the same way the live cache does
// (<= 0 disables the check).
func (tl *RegimeTimeline) At(t time.Time, maxAge time.Duration) *model.RegimeSignal {
	// Binary search for the first signal after t.
	idx := sort.Search(len(tl.signals), func(i int) bool {
		return tl.signals[i].TS.After(t)
	})
	if idx == 0 {
		return nil
	}
	sig := tl.signals[idx-1]
	if maxAge > 0 && t.Sub(sig.TS) > maxAge {
		return nil
	}
	out := sig
	return &out
}
