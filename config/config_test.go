package config

import (
	"math"
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if math.Abs(cfg.ATRRiskFactor-1.4) > 1e-9 {
		t.Errorf("ATRRiskFactor: got %v want 1.4", cfg.ATRRiskFactor)
	}
	if cfg.MFILowerThreshold != 40 || cfg.MFIHigherThreshold != 60 {
		t.Errorf("MFI thresholds: got %v/%v want 40/60", cfg.MFILowerThreshold, cfg.MFIHigherThreshold)
	}
	if math.Abs(cfg.HardStopFraction-0.10) > 1e-9 {
		t.Errorf("HardStopFraction: got %v want 0.10", cfg.HardStopFraction)
	}
	if cfg.RegimeFilterStage != "setup" {
		t.Errorf("RegimeFilterStage: got %q want setup", cfg.RegimeFilterStage)
	}
	if cfg.EMAPeriod != 500 || cfg.BBPeriod != 50 {
		t.Errorf("indicator periods: got EMA=%d BB=%d want 500/50", cfg.EMAPeriod, cfg.BBPeriod)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ATR_RISK_FACTOR", "2.0")
	t.Setenv("REGIME_FILTER_STAGE", "trigger")
	t.Setenv("MFI_LOWER_THRESHOLD", "not-a-number")

	cfg := Load()
	if cfg.ATRRiskFactor != 2.0 {
		t.Errorf("ATRRiskFactor override: got %v want 2.0", cfg.ATRRiskFactor)
	}
	if cfg.RegimeFilterStage != "trigger" {
		t.Errorf("RegimeFilterStage override: got %q", cfg.RegimeFilterStage)
	}
	// Malformed value falls back to the default.
	if cfg.MFILowerThreshold != 40 {
		t.Errorf("malformed float: got %v want fallback 40", cfg.MFILowerThreshold)
	}
}

func TestParseSymbols(t *testing.T) {
	cfg := &Config{Symbols: " BTC/USDT, ETH/USDT ,,SOL/USDT "}
	got := cfg.ParseSymbols()
	want := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSymbols: got %v want %v", got, want)
	}
}
