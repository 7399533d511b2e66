package indicator

import (
	"math"

	"ratchet-systemv1/internal/model"
)

// ATR calculates Average True Range with Wilder smoothing: the first
// value is an SMA of true ranges, then ATR = (prev*(n-1) + TR) / n.
type ATR struct {
	period int

	current   float64
	sum       float64
	count     int
	prevClose float64
	havePrev  bool
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(candle model.Candle) {
	tr := candle.High - candle.Low
	if a.havePrev {
		tr = math.Max(tr, math.Abs(candle.High-a.prevClose))
		tr = math.Max(tr, math.Abs(candle.Low-a.prevClose))
	}
	a.prevClose = candle.Close
	a.havePrev = true

	a.count++
	if a.count <= a.period {
		a.sum += tr
		if a.count == a.period {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	n := float64(a.period)
	a.current = (a.current*(n-1) + tr) / n
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return math.NaN()
	}
	return a.current
}
