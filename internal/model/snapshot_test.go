package model

import (
	"math"
	"testing"
	"time"
)

func finiteSnapshot() Snapshot {
	return Snapshot{
		Symbol: "BTC/USDT",
		TS:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:   100, High: 105, Low: 98, Close: 102, Volume: 5000,
		EMA: 95, BBLower: 99, BBMiddle: 101, BBUpper: 103, MFI: 42, ATR: 2.5,
	}
}

func TestSnapshot_PricesValid(t *testing.T) {
	s := finiteSnapshot()
	if !s.PricesValid() {
		t.Fatal("expected finite snapshot to be valid")
	}

	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"nan close", func(s *Snapshot) { s.Close = math.NaN() }},
		{"nan low", func(s *Snapshot) { s.Low = math.NaN() }},
		{"inf high", func(s *Snapshot) { s.High = math.Inf(1) }},
		{"neg inf open", func(s *Snapshot) { s.Open = math.Inf(-1) }},
		{"nan volume", func(s *Snapshot) { s.Volume = math.NaN() }},
	}
	for _, tc := range cases {
		s := finiteSnapshot()
		tc.mutate(&s)
		if s.PricesValid() {
			t.Errorf("%s: expected PricesValid=false", tc.name)
		}
	}
}

func TestSnapshot_IndicatorsReady(t *testing.T) {
	s := finiteSnapshot()
	if !s.IndicatorsReady() {
		t.Fatal("expected warm snapshot to report ready")
	}

	s.ATR = math.NaN()
	if s.IndicatorsReady() {
		t.Error("NaN ATR: expected IndicatorsReady=false")
	}

	s = finiteSnapshot()
	s.BBMiddle = math.Inf(1)
	if s.IndicatorsReady() {
		t.Error("Inf BBMiddle: expected IndicatorsReady=false")
	}
}

func TestPosition_HardStopLevel(t *testing.T) {
	long := Position{Side: SideLong, EntryPrice: 100}
	if got := long.HardStopLevel(0.10); math.Abs(got-90) > 1e-9 {
		t.Errorf("long hard stop: expected 90, got %v", got)
	}
	short := Position{Side: SideShort, EntryPrice: 100}
	if got := short.HardStopLevel(0.10); math.Abs(got-110) > 1e-9 {
		t.Errorf("short hard stop: expected 110, got %v", got)
	}
}
