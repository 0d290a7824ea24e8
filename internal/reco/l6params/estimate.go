package l6params

import (
	"math"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l5seeds"
)

// ptPerTeslaMM converts helix radius (mm) times field (T) into pT (GeV).
const ptPerTeslaMM = 0.299792458e-3

// collinearTolerance is the relative turning below which three points are
// treated as a straight line.
const collinearTolerance = 1e-12

// TrackParameters are perigee parameters with respect to the beam line.
type TrackParameters struct {
	SeedIndex int
	ModuleID  uint64 // module of the inner spacepoint
	D0        float64
	Z0        float64
	Phi       float64 // azimuth of the direction at the inner spacepoint
	Theta     float64
	QOverP    float64 // 1/GeV; zero for the straight-line limit
	// Covariance is ordered (d0, z0, phi, theta, q/p).
	Covariance [5][5]float64
}

// Pt returns the transverse momentum in GeV, or +Inf for the straight-line
// limit.
func (p TrackParameters) Pt() float64 {
	if p.QOverP == 0 {
		return math.Inf(1)
	}
	return math.Abs(math.Sin(p.Theta) / p.QOverP)
}

// Charge returns the sign of QOverP.
func (p TrackParameters) Charge() int {
	switch {
	case p.QOverP > 0:
		return 1
	case p.QOverP < 0:
		return -1
	}
	return 0
}

// EstimatorConfig holds the resolution assumptions of the estimate.
type EstimatorConfig struct {
	SigmaD0     float64 // mm
	SigmaZ0     float64 // mm
	SigmaPhi    float64 // rad
	SigmaTheta  float64 // rad
	SigmaQOPRel float64 // relative
}

// DefaultEstimatorConfig returns the built-in resolutions.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfigFromTuning(config.EmptyTuningConfig())
}

// EstimatorConfigFromTuning builds an EstimatorConfig from a loaded
// TuningConfig.
func EstimatorConfigFromTuning(cfg *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		SigmaD0:     cfg.GetSigmaD0(),
		SigmaZ0:     cfg.GetSigmaZ0(),
		SigmaPhi:    cfg.GetSigmaPhi(),
		SigmaTheta:  cfg.GetSigmaTheta(),
		SigmaQOPRel: cfg.GetSigmaQOPRel(),
	}
}

// Estimate returns one parameter set per seed, in seed order. Only the z
// component of the field is used.
func Estimate(sps []l3spacepoints.Spacepoint, seeds []l5seeds.Seed, field [3]float64, cfg EstimatorConfig) []TrackParameters {
	out := make([]TrackParameters, len(seeds))
	for i, s := range seeds {
		out[i] = estimate(sps[s.Inner], sps[s.Middle], sps[s.Outer], field[2], cfg)
		out[i].SeedIndex = i
	}
	return out
}

// EstimateParallel is Estimate with one work item per seed spread across
// the device. The output is identical to Estimate.
func EstimateParallel(device *kernel.Device, sps []l3spacepoints.Spacepoint, seeds []l5seeds.Seed, field [3]float64, cfg EstimatorConfig) []TrackParameters {
	out := make([]TrackParameters, len(seeds))
	device.For(len(seeds), func(i int) {
		s := seeds[i]
		out[i] = estimate(sps[s.Inner], sps[s.Middle], sps[s.Outer], field[2], cfg)
		out[i].SeedIndex = i
	})
	return out
}

func estimate(in, mid, out l3spacepoints.Spacepoint, bz float64, cfg EstimatorConfig) TrackParameters {
	x1, y1 := in.Global[0], in.Global[1]
	x2, y2 := mid.Global[0], mid.Global[1]
	x3, y3 := out.Global[0], out.Global[1]

	cross := (x2-x1)*(y3-y2) - (y2-y1)*(x3-x2)
	scale := math.Hypot(x2-x1, y2-y1) * math.Hypot(x3-x2, y3-y2)

	var p TrackParameters
	if bz == 0 || math.Abs(cross) <= collinearTolerance*scale {
		p = straightLine(in, out)
	} else {
		p = helix(in, mid, out, cross, bz)
	}
	p.ModuleID = in.ModuleID
	p.Covariance = covariance(p, in, cfg)
	return p
}

// straightLine is the infinite-momentum limit through the inner and outer
// spacepoints.
func straightLine(in, out l3spacepoints.Spacepoint) TrackParameters {
	x1, y1, z1 := in.Global[0], in.Global[1], in.Global[2]
	dx, dy := out.Global[0]-x1, out.Global[1]-y1
	s := math.Hypot(dx, dy)
	if s == 0 {
		return TrackParameters{Phi: in.Phi(), Theta: 0, Z0: z1}
	}
	ux, uy := dx/s, dy/s
	along := x1*ux + y1*uy
	px, py := x1-along*ux, y1-along*uy

	phi := math.Atan2(uy, ux)
	theta := math.Atan2(s, out.Global[2]-z1)
	return TrackParameters{
		D0:    -px*math.Sin(phi) + py*math.Cos(phi),
		Z0:    z1 - along/math.Tan(theta),
		Phi:   phi,
		Theta: theta,
	}
}

// helix fits the circle through the three transverse points and derives
// the perigee at its point of closest approach to the beam line.
func helix(in, mid, out l3spacepoints.Spacepoint, cross, bz float64) TrackParameters {
	x1, y1, z1 := in.Global[0], in.Global[1], in.Global[2]
	x2, y2 := mid.Global[0], mid.Global[1]
	x3, y3 := out.Global[0], out.Global[1]

	d := 2 * (x1*(y2-y3) + x2*(y3-y1) + x3*(y1-y2))
	s1, s2, s3 := x1*x1+y1*y1, x2*x2+y2*y2, x3*x3+y3*y3
	cx := (s1*(y2-y3) + s2*(y3-y1) + s3*(y1-y2)) / d
	cy := (s1*(x3-x2) + s2*(x1-x3) + s3*(x2-x1)) / d
	radius := math.Hypot(x1-cx, y1-cy)

	// Counter-clockwise motion has the tangent at +90 deg from the radius.
	turn := 1.0
	if cross < 0 {
		turn = -1
	}
	tangent := func(x, y float64) float64 {
		return math.Atan2(turn*(x-cx), -turn*(y-cy))
	}
	arc := func(ax, ay, bx, by float64) float64 {
		ux, uy := ax-cx, ay-cy
		vx, vy := bx-cx, by-cy
		return radius * math.Abs(math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy))
	}

	sTotal := arc(x1, y1, x3, y3)
	theta := math.Atan2(sTotal, out.Global[2]-z1)

	dist := math.Hypot(cx, cy)
	px, py := x1, y1
	if dist > 0 {
		k := 1 - radius/dist
		px, py = cx*k, cy*k
	}
	phi0 := tangent(px, py)
	zPCA := z1 - arc(px, py, x1, y1)/math.Tan(theta)

	charge := -math.Copysign(1, turn) * math.Copysign(1, bz)
	pt := ptPerTeslaMM * math.Abs(bz) * radius

	return TrackParameters{
		D0:     -px*math.Sin(phi0) + py*math.Cos(phi0),
		Z0:     zPCA,
		Phi:    tangent(x1, y1),
		Theta:  theta,
		QOverP: charge * math.Sin(theta) / pt,
	}
}

func covariance(p TrackParameters, in l3spacepoints.Spacepoint, cfg EstimatorConfig) [5][5]float64 {
	var c [5][5]float64
	c[0][0] = cfg.SigmaD0*cfg.SigmaD0 + in.Covariance[0] + in.Covariance[4]
	c[1][1] = cfg.SigmaZ0*cfg.SigmaZ0 + in.VarianceZ()
	c[2][2] = cfg.SigmaPhi * cfg.SigmaPhi
	c[3][3] = cfg.SigmaTheta * cfg.SigmaTheta
	if p.QOverP != 0 {
		c[4][4] = math.Pow(cfg.SigmaQOPRel*p.QOverP, 2)
	} else {
		c[4][4] = cfg.SigmaQOPRel * cfg.SigmaQOPRel
	}
	return c
}
