package portfolio

import (
	"math"
	"testing"
	"time"

	"ratchet-systemv1/internal/model"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPnLTracker_LongRoundTrip(t *testing.T) {
	p := NewPnLTracker()
	t0 := time.Unix(1000, 0).UTC()

	p.RecordEntry("BTC/USDT", model.SideLong, t0, 100)
	trip, ok := p.RecordExit("BTC/USDT", t0.Add(time.Hour), 105, model.ExitRatchetStop)
	if !ok {
		t.Fatal("exit without matching entry")
	}
	if !approx(trip.Return, 0.05) {
		t.Errorf("return: got %v want 0.05", trip.Return)
	}
	if trip.Side != model.SideLong || trip.Reason != model.ExitRatchetStop {
		t.Errorf("trip: %+v", trip)
	}
}

func TestPnLTracker_ShortRoundTrip(t *testing.T) {
	p := NewPnLTracker()
	t0 := time.Unix(1000, 0).UTC()

	p.RecordEntry("BTC/USDT", model.SideShort, t0, 100)
	trip, ok := p.RecordExit("BTC/USDT", t0.Add(time.Hour), 90, model.ExitRatchetStop)
	if !ok {
		t.Fatal("exit without matching entry")
	}
	// Price fell 10%, short gains 10%.
	if !approx(trip.Return, 0.10) {
		t.Errorf("short return: got %v want 0.10", trip.Return)
	}
}

func TestPnLTracker_ExitWithoutEntry(t *testing.T) {
	p := NewPnLTracker()
	if _, ok := p.RecordExit("BTC/USDT", time.Now(), 100, model.ExitHardStop); ok {
		t.Error("exit with no pending entry reported ok")
	}
}

func TestPnLTracker_Summary(t *testing.T) {
	p := NewPnLTracker()
	t0 := time.Unix(1000, 0).UTC()

	// +10%, -5%, +2%
	seq := []struct {
		entry, exit float64
		reason      model.ExitReason
	}{
		{100, 110, model.ExitRatchetStop},
		{100, 95, model.ExitHardStop},
		{100, 102, model.ExitRatchetStop},
	}
	for i, s := range seq {
		ts := t0.Add(time.Duration(i) * time.Hour)
		p.RecordEntry("BTC/USDT", model.SideLong, ts, s.entry)
		p.RecordExit("BTC/USDT", ts.Add(30*time.Minute), s.exit, s.reason)
	}

	sum := p.GetSummary()
	if sum.Trades != 3 || sum.Wins != 2 {
		t.Errorf("trades/wins: got %d/%d want 3/2", sum.Trades, sum.Wins)
	}
	if !approx(sum.WinRate, 2.0/3.0) {
		t.Errorf("win rate: got %v", sum.WinRate)
	}
	wantTotal := 1.10*0.95*1.02 - 1
	if !approx(sum.TotalReturn, wantTotal) {
		t.Errorf("total return: got %v want %v", sum.TotalReturn, wantTotal)
	}
	if !approx(sum.AvgReturn, (0.10-0.05+0.02)/3) {
		t.Errorf("avg return: got %v", sum.AvgReturn)
	}
	if !approx(sum.BestReturn, 0.10) || !approx(sum.WorstReturn, -0.05) {
		t.Errorf("best/worst: got %v/%v", sum.BestReturn, sum.WorstReturn)
	}
	if sum.RatchetExits != 2 || sum.HardExits != 1 {
		t.Errorf("exit reasons: ratchet=%d hard=%d", sum.RatchetExits, sum.HardExits)
	}
	// Peak was 1.10 after the first trade, trough 1.045 after the second.
	if !approx(sum.MaxDrawdown, 0.05) {
		t.Errorf("max drawdown: got %v want 0.05", sum.MaxDrawdown)
	}
}

func TestPnLTracker_EmptySummary(t *testing.T) {
	p := NewPnLTracker()
	sum := p.GetSummary()
	if sum.Trades != 0 || sum.WinRate != 0 || sum.TotalReturn != 0 || sum.MaxDrawdown != 0 {
		t.Errorf("empty summary: %+v", sum)
	}
}

func TestPnLTracker_OpenEntriesCounted(t *testing.T) {
	p := NewPnLTracker()
	p.RecordEntry("BTC/USDT", model.SideLong, time.Now(), 100)
	if got := p.GetSummary().OpenEntries; got != 1 {
		t.Errorf("open entries: got %d want 1", got)
	}
}
