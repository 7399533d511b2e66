package indicator

import (
	"math"

	"ratchet-systemv1/internal/model"
)

// MFI calculates the Money Flow Index: a volume-weighted RSI over the
// typical price (h+l+c)/3. Keeps a ring of signed raw money flows.
type MFI struct {
	period int

	flows []float64 // signed: positive flow > 0, negative flow < 0
	idx   int
	count int

	prevTP   float64
	havePrev bool
	posSum   float64
	negSum   float64
}

// NewMFI creates a new MFI indicator with the given period.
func NewMFI(period int) *MFI {
	return &MFI{
		period: period,
		flows:  make([]float64, period),
	}
}

func (m *MFI) Name() string { return "MFI" }

func (m *MFI) Update(candle model.Candle) {
	tp := (candle.High + candle.Low + candle.Close) / 3
	if !m.havePrev {
		m.prevTP = tp
		m.havePrev = true
		return // the first candle has no direction
	}

	raw := tp * candle.Volume
	flow := 0.0
	switch {
	case tp > m.prevTP:
		flow = raw
	case tp < m.prevTP:
		flow = -raw
	}
	m.prevTP = tp

	old := m.flows[m.idx]
	if old > 0 {
		m.posSum -= old
	} else {
		m.negSum += old // old is negative
	}
	m.flows[m.idx] = flow
	m.idx = (m.idx + 1) % m.period
	if flow > 0 {
		m.posSum += flow
	} else {
		m.negSum -= flow
	}
	m.count++
}

func (m *MFI) Ready() bool { return m.count >= m.period }

func (m *MFI) Value() float64 {
	if !m.Ready() {
		return math.NaN()
	}
	total := m.posSum + m.negSum
	if total == 0 {
		return 50 // flat window: no dominant flow
	}
	return 100 * m.posSum / total
}
