package l5seeds

import (
	"math"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l4grid"
)

// Seed is a scored spacepoint triplet with strictly increasing radius.
type Seed struct {
	Inner, Middle, Outer int // spacepoint indices
	Weight               float64
	Z0                   float64 // z at r = 0 from the inner doublet (mm)
	Curvature            float64 // signed 1/(2R) in the middle frame (1/mm)
	Impact               float64 // transverse impact estimate (mm)
}

// Find searches every middle spacepoint in index order and concatenates
// the kept seeds.
func Find(sps []l3spacepoints.Spacepoint, grid *l4grid.Grid, finder FinderConfig, filter FilterConfig) []Seed {
	out := []Seed{}
	for m := range sps {
		out = append(out, findForMiddle(sps, grid, m, finder, filter)...)
	}
	return out
}

// FindParallel is Find with the middle spacepoints spread across the
// device. The output is identical to Find.
func FindParallel(device *kernel.Device, sps []l3spacepoints.Spacepoint, grid *l4grid.Grid, finder FinderConfig, filter FilterConfig) []Seed {
	perMiddle := make([][]Seed, len(sps))
	device.For(len(sps), func(m int) {
		perMiddle[m] = findForMiddle(sps, grid, m, finder, filter)
	})
	out := []Seed{}
	for _, seeds := range perMiddle {
		out = append(out, seeds...)
	}
	return out
}

// doublet is a middle-frame description of one inner or outer candidate.
type doublet struct {
	index    int
	u, v     float64 // conformal coordinates in the middle frame
	cot      float64 // cot(theta) of the segment, inner to outer
	errCot2  float64 // variance of cot
	z0       float64
	r        float64
	moduleID uint64
}

// triplet is an accepted inner-outer combination before filtering.
type triplet struct {
	outer     doublet
	curvature float64
	impact    float64
	sigma     float64
}

func findForMiddle(sps []l3spacepoints.Spacepoint, grid *l4grid.Grid, m int, fc FinderConfig, flt FilterConfig) []Seed {
	mid := sps[m]
	rM := mid.R()
	if rM < fc.RMin || rM > fc.RMax || rM == 0 {
		return nil
	}

	p, z := grid.Locate(mid.Phi(), mid.Z())
	var inners, outers []doublet
	for _, b := range grid.Neighbors(p, z, fc.PhiNeighbors, fc.ZNeighbors) {
		for _, i := range grid.Bin(b) {
			if i == m || sps[i].ModuleID == mid.ModuleID {
				continue
			}
			if d, ok := makeDoublet(mid, sps[i], i, fc); ok {
				if d.r < rM {
					inners = append(inners, d)
				} else {
					outers = append(outers, d)
				}
			}
		}
	}
	if len(inners) == 0 || len(outers) == 0 {
		return nil
	}

	top := newTopK(flt.MaxSeedsPerMiddle)
	rMin := fc.minHelixRadius()
	var accepted []triplet
	for _, in := range inners {
		accepted = accepted[:0]
		for _, out := range outers {
			if out.moduleID == in.moduleID {
				continue
			}
			if t, ok := makeTriplet(in, out, rM, rMin, fc); ok {
				accepted = append(accepted, t)
			}
		}

		for k, t := range accepted {
			compat := 0
			for j, o := range accepted {
				if j == k || compat >= flt.CompatSeedLimit {
					continue
				}
				if math.Abs(o.curvature-t.curvature) < flt.CompatCurvatureTolerance &&
					math.Abs(o.outer.r-t.outer.r) >= flt.MinCompatDeltaR {
					compat++
				}
			}
			top.insert(Seed{
				Inner:     in.index,
				Middle:    m,
				Outer:     t.outer.index,
				Weight:    -flt.ImpactWeight*t.impact - flt.UncertaintyWeight*t.sigma + flt.CompatSeedWeight*float64(compat),
				Z0:        in.z0,
				Curvature: t.curvature,
				Impact:    t.impact,
			})
		}
	}
	return top.seeds()
}

// makeDoublet applies the doublet cuts and maps the candidate into the
// conformal frame centred on the middle spacepoint with its x axis along
// the middle's radial direction.
func makeDoublet(mid, sp l3spacepoints.Spacepoint, index int, fc FinderConfig) (doublet, bool) {
	rM, r := mid.R(), sp.R()
	inner, outer := sp, mid
	dR := rM - r
	if r > rM {
		inner, outer = mid, sp
		dR = r - rM
	}
	if dR <= 0 || dR < fc.DeltaRMin || dR > fc.DeltaRMax {
		return doublet{}, false
	}

	dz := outer.Z() - inner.Z()
	cot := dz / dR
	if math.Abs(cot) > fc.CotThetaMax {
		return doublet{}, false
	}
	z0 := inner.Z() - inner.R()*cot
	if z0 < fc.CollisionZMin || z0 > fc.CollisionZMax {
		return doublet{}, false
	}

	cosPhi, sinPhi := mid.Global[0]/rM, mid.Global[1]/rM
	dx := sp.Global[0] - mid.Global[0]
	dy := sp.Global[1] - mid.Global[1]
	xp := dx*cosPhi + dy*sinPhi
	yp := dy*cosPhi - dx*sinPhi
	iDR2 := 1 / (dx*dx + dy*dy)
	if math.IsInf(iDR2, 0) {
		return doublet{}, false
	}

	// cot(theta) is refined with the true transverse distance.
	cot = dz * math.Sqrt(iDR2)
	errCot2 := ((mid.VarianceZ() + sp.VarianceZ()) + cot*cot*(mid.VarianceR()+sp.VarianceR())) * iDR2

	return doublet{
		index:    index,
		u:        xp * iDR2,
		v:        yp * iDR2,
		cot:      cot,
		errCot2:  errCot2,
		z0:       z0,
		r:        r,
		moduleID: sp.ModuleID,
	}, true
}

// makeTriplet applies the triplet cuts. In the conformal frame a circle
// through the middle spacepoint becomes the line v = A*u + B, with helix
// radius sqrt(1+A^2)/(2|B|).
func makeTriplet(in, out doublet, rM, rMin float64, fc FinderConfig) (triplet, bool) {
	sigma2 := in.errCot2 + out.errCot2
	sigma := math.Sqrt(sigma2)
	if math.Abs(in.cot-out.cot) > sigma+fc.DeltaCotThetaTolerance {
		return triplet{}, false
	}

	du := out.u - in.u
	if du == 0 {
		return triplet{}, false
	}
	a := (out.v - in.v) / du
	b := in.v - a*in.u
	s2 := 1 + a*a

	if rMin > 0 && b*b/s2 > 1/(4*rMin*rMin) {
		return triplet{}, false
	}
	curvature := b / math.Sqrt(s2)
	if fc.CurvatureSign != 0 && curvature*float64(fc.CurvatureSign) < 0 {
		return triplet{}, false
	}

	impact := math.Abs((a - b*rM) * rM)
	if impact > fc.ImpactMax || math.IsNaN(impact) {
		return triplet{}, false
	}
	return triplet{outer: out, curvature: curvature, impact: impact, sigma: sigma}, true
}
