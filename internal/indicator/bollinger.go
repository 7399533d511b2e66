package indicator

import (
	"math"

	"ratchet-systemv1/internal/model"
)

// Bollinger calculates Bollinger Bands: an SMA midline with upper/lower
// bands at stdDev standard deviations (population, matching TA-Lib).
// Keeps a ring of closes plus running sums for O(1) updates.
type Bollinger struct {
	period int
	stdDev float64

	buf   []float64
	idx   int
	sum   float64
	sumSq float64
	count int
}

// NewBollinger creates Bollinger Bands with the given period and
// deviation multiplier (e.g., 50 and 2.0).
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{
		period: period,
		stdDev: stdDev,
		buf:    make([]float64, period),
	}
}

func (b *Bollinger) Name() string { return "BB" }

func (b *Bollinger) Update(candle model.Candle) {
	price := candle.Close
	old := b.buf[b.idx]
	b.buf[b.idx] = price
	b.idx = (b.idx + 1) % b.period

	b.sum += price - old
	b.sumSq += price*price - old*old
	b.count++
}

func (b *Bollinger) Ready() bool { return b.count >= b.period }

// Value returns the midline (SMA); use Bands for all three values.
func (b *Bollinger) Value() float64 {
	lower, middle, upper := b.Bands()
	_, _ = lower, upper
	return middle
}

// Bands returns (lower, middle, upper); all NaN until Ready.
func (b *Bollinger) Bands() (lower, middle, upper float64) {
	if !b.Ready() {
		nan := math.NaN()
		return nan, nan, nan
	}
	n := float64(b.period)
	mean := b.sum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0 // float drift on near-constant series
	}
	dev := b.stdDev * math.Sqrt(variance)
	return mean - dev, mean, mean + dev
}
