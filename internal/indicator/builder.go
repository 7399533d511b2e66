package indicator

import "ratchet-systemv1/internal/model"

// Config specifies the indicator set behind a snapshot pipeline.
type Config struct {
	EMAPeriod int
	BBPeriod  int
	BBStdDev  float64
	MFIPeriod int
	ATRPeriod int
}

// DefaultConfig matches the production strategy: EMA 500, BB(50, 2.0),
// MFI 14, ATR 14.
func DefaultConfig() Config {
	return Config{
		EMAPeriod: 500,
		BBPeriod:  50,
		BBStdDev:  2.0,
		MFIPeriod: 14,
		ATRPeriod: 14,
	}
}

// Builder folds raw candles into engine snapshots. One Builder per
// instrument; designed for single-goroutine usage — no locks needed.
type Builder struct {
	ema *EMA
	bb  *Bollinger
	mfi *MFI
	atr *ATR
}

// NewBuilder creates a snapshot builder with the given indicator config.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		ema: NewEMA(cfg.EMAPeriod),
		bb:  NewBollinger(cfg.BBPeriod, cfg.BBStdDev),
		mfi: NewMFI(cfg.MFIPeriod),
		atr: NewATR(cfg.ATRPeriod),
	}
}

// Fold feeds one closed candle to every indicator and returns the
// resulting snapshot. Unwarmed indicator fields are NaN.
func (b *Builder) Fold(c model.Candle) model.Snapshot {
	b.ema.Update(c)
	b.bb.Update(c)
	b.mfi.Update(c)
	b.atr.Update(c)

	lower, middle, upper := b.bb.Bands()
	return model.Snapshot{
		Symbol: c.Symbol,
		TS:     c.TS,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,

		EMA:      b.ema.Value(),
		BBLower:  lower,
		BBMiddle: middle,
		BBUpper:  upper,
		MFI:      b.mfi.Value(),
		ATR:      b.atr.Value(),
	}
}
