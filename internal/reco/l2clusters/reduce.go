package l2clusters

import (
	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// accumulator folds cells into a measurement. Cells must be added in
// increasing input index so every implementation sums in the same order
// and produces bit-identical results.
type accumulator struct {
	n      int
	sumW   float64
	sum0   float64
	sum1   float64
	sum00  float64
	sum11  float64
	charge float64
}

func (a *accumulator) add(c l1cells.Cell) {
	w := c.Activation
	if w <= 0 {
		// Cells without a usable charge still count geometrically.
		w = 1
	}
	ch0, ch1 := float64(c.Channel0), float64(c.Channel1)
	a.n++
	a.sumW += w
	a.sum0 += w * ch0
	a.sum1 += w * ch1
	a.sum00 += w * ch0 * ch0
	a.sum11 += w * ch1 * ch1
	a.charge += c.Activation
}

func (a *accumulator) measurement(m l1cells.Module, anchor int) Measurement {
	mean0 := a.sum0 / a.sumW
	mean1 := a.sum1 / a.sumW
	var0 := max(a.sum00/a.sumW-mean0*mean0, 0)
	var1 := max(a.sum11/a.sumW-mean1*mean1, 0)

	u, v := m.LocalPosition(mean0, mean1)
	p0, p1 := m.Pitch[0], m.Pitch[1]
	return Measurement{
		ModuleID: m.ID,
		Local:    [2]float64{u, v},
		Variance: [2]float64{
			var0*p0*p0 + p0*p0/12,
			var1*p1*p1 + p1*p1/12,
		},
		CellCount:       a.n,
		TotalActivation: a.charge,
		Anchor:          anchor,
	}
}
