package l6params

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l5seeds"
)

func point(module uint64, x, y, z float64) l3spacepoints.Spacepoint {
	return l3spacepoints.Spacepoint{
		Global:     [3]float64{x, y, z},
		Covariance: [9]float64{1e-3, 0, 0, 0, 1e-3, 0, 0, 0, 4e-3},
		ModuleID:   module,
	}
}

// helixPoints places three points on a circle of the given radius that
// starts at the origin heading along +x and turns counter-clockwise.
func helixPoints(radius, z0, cot float64) []l3spacepoints.Spacepoint {
	var sps []l3spacepoints.Spacepoint
	for i, r := range []float64{50, 100, 150} {
		s := 2 * radius * math.Asin(r/(2*radius))
		x := r * math.Sqrt(1-r*r/(4*radius*radius))
		y := r * r / (2 * radius)
		sps = append(sps, point(uint64(10+i), x, y, z0+s*cot))
	}
	return sps
}

var oneSeed = []l5seeds.Seed{{Inner: 0, Middle: 1, Outer: 2}}

func TestEstimateHelix(t *testing.T) {
	const radius = 200.0
	sps := helixPoints(radius, 3, 0.5)
	got := Estimate(sps, oneSeed, [3]float64{0, 0, 2}, DefaultEstimatorConfig())
	require.Len(t, got, 1)
	p := got[0]

	assert.Equal(t, 0, p.SeedIndex)
	assert.Equal(t, uint64(10), p.ModuleID)
	assert.Equal(t, -1, p.Charge(), "counter-clockwise in +Bz is negative")
	assert.InDelta(t, 0.299792458e-3*2*radius, p.Pt(), 1e-9)
	assert.InDelta(t, math.Atan2(1, 0.5), p.Theta, 1e-9)
	assert.InDelta(t, 2*math.Asin(50/(2*radius)), p.Phi, 1e-9)
	assert.InDelta(t, 0, p.D0, 1e-9)
	assert.InDelta(t, 3, p.Z0, 1e-9)
}

func TestEstimateFieldSignFlipsCharge(t *testing.T) {
	sps := helixPoints(300, 0, 0)
	pos := Estimate(sps, oneSeed, [3]float64{0, 0, -2}, DefaultEstimatorConfig())[0]
	neg := Estimate(sps, oneSeed, [3]float64{0, 0, 2}, DefaultEstimatorConfig())[0]
	assert.Equal(t, 1, pos.Charge())
	assert.Equal(t, -1, neg.Charge())
	assert.InDelta(t, -neg.QOverP, pos.QOverP, 1e-15)
	assert.InDelta(t, math.Pi/2, pos.Theta, 1e-12)
}

func TestEstimateStraightLine(t *testing.T) {
	const phi = 0.3
	var sps []l3spacepoints.Spacepoint
	for i, r := range []float64{50, 100, 150} {
		sps = append(sps, point(uint64(i), r*math.Cos(phi), r*math.Sin(phi), 2+0.5*r))
	}
	p := Estimate(sps, oneSeed, [3]float64{0, 0, 2}, DefaultEstimatorConfig())[0]

	assert.Zero(t, p.QOverP)
	assert.Zero(t, p.Charge())
	assert.True(t, math.IsInf(p.Pt(), 1))
	assert.InDelta(t, phi, p.Phi, 1e-12)
	assert.InDelta(t, math.Atan2(1, 0.5), p.Theta, 1e-12)
	assert.InDelta(t, 0, p.D0, 1e-9)
	assert.InDelta(t, 2, p.Z0, 1e-9)
}

func TestEstimateStraightLineImpact(t *testing.T) {
	var sps []l3spacepoints.Spacepoint
	for i, r := range []float64{50, 100, 150} {
		sps = append(sps, point(uint64(i), math.Sqrt(r*r-400), 20, 0))
	}
	p := Estimate(sps, oneSeed, [3]float64{0, 0, 2}, DefaultEstimatorConfig())[0]
	assert.InDelta(t, 0, p.Phi, 1e-12)
	assert.InDelta(t, 20, p.D0, 1e-9)
	assert.InDelta(t, 0, p.Z0, 1e-9)
}

func TestEstimateZeroFieldIsStraight(t *testing.T) {
	sps := helixPoints(200, 0, 0.2)
	p := Estimate(sps, oneSeed, [3]float64{}, DefaultEstimatorConfig())[0]
	assert.Zero(t, p.QOverP)
	assert.False(t, math.IsNaN(p.Phi))
	assert.False(t, math.IsNaN(p.Theta))
}

func TestEstimateCovarianceAndDeterminism(t *testing.T) {
	sps := helixPoints(500, 1, -0.3)
	seeds := []l5seeds.Seed{oneSeed[0], oneSeed[0]}
	cfg := DefaultEstimatorConfig()

	a := Estimate(sps, seeds, [3]float64{0, 0, 2}, cfg)
	b := Estimate(sps, seeds, [3]float64{0, 0, 2}, cfg)
	require.Len(t, a, 2)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a[1].SeedIndex)

	c := a[0].Covariance
	assert.InDelta(t, cfg.SigmaD0*cfg.SigmaD0+2e-3, c[0][0], 1e-15)
	assert.InDelta(t, cfg.SigmaZ0*cfg.SigmaZ0+4e-3, c[1][1], 1e-15)
	for i := 0; i < 5; i++ {
		assert.Positive(t, c[i][i])
		for j := 0; j < 5; j++ {
			if i != j {
				assert.Zero(t, c[i][j])
			}
		}
	}
	assert.Empty(t, Estimate(sps, nil, [3]float64{0, 0, 2}, cfg))
}

func TestEstimateParallelMatchesSequential(t *testing.T) {
	var sps []l3spacepoints.Spacepoint
	var seeds []l5seeds.Seed
	for i := 0; i < 300; i++ {
		radius := 150 + 10*float64(i)
		cot := -1 + 2*float64(i%21)/20
		base := len(sps)
		sps = append(sps, helixPoints(radius, float64(i%7)-3, cot)...)
		seeds = append(seeds, l5seeds.Seed{Inner: base, Middle: base + 1, Outer: base + 2})
	}
	cfg := DefaultEstimatorConfig()

	for _, field := range [][3]float64{{0, 0, 2}, {0, 0, -1}, {}} {
		want := Estimate(sps, seeds, field, cfg)
		for _, workers := range []int{1, 3, 8} {
			got := EstimateParallel(kernel.NewDevice(workers, 0), sps, seeds, field, cfg)
			require.Len(t, got, len(seeds))
			assert.Equal(t, want, got, "field %v workers %d", field, workers)
		}
	}
	assert.Empty(t, EstimateParallel(kernel.NewDevice(2, 0), sps, nil, [3]float64{0, 0, 2}, cfg))
}
