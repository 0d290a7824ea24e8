package l5seeds

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l4grid"
)

func point(module uint64, x, y, z float64) l3spacepoints.Spacepoint {
	return l3spacepoints.Spacepoint{
		Global:     [3]float64{x, y, z},
		Covariance: [9]float64{1e-4, 0, 0, 0, 1e-4, 0, 0, 0, 1e-4},
		ModuleID:   module,
	}
}

func polar(module uint64, r, phi, z float64) l3spacepoints.Spacepoint {
	return point(module, r*math.Cos(phi), r*math.Sin(phi), z)
}

func find(t *testing.T, sps []l3spacepoints.Spacepoint, fc FinderConfig, flt FilterConfig) []Seed {
	t.Helper()
	g, err := l4grid.Build(sps, l4grid.DefaultConfig())
	require.NoError(t, err)
	return Find(sps, g, fc, flt)
}

func TestFindStraightTrack(t *testing.T) {
	sps := []l3spacepoints.Spacepoint{
		polar(1, 50, 0.3, 25),
		polar(2, 100, 0.3, 50),
		polar(3, 150, 0.3, 75),
	}
	seeds := find(t, sps, DefaultFinderConfig(), DefaultFilterConfig())
	require.Len(t, seeds, 1)

	s := seeds[0]
	assert.Equal(t, [3]int{0, 1, 2}, [3]int{s.Inner, s.Middle, s.Outer})
	assert.InDelta(t, 0, s.Impact, 1e-9)
	assert.InDelta(t, 0, s.Curvature, 1e-12)
	assert.InDelta(t, 0, s.Z0, 1e-9)
	assert.Less(t, s.Weight, 0.0)
}

func TestFindRejectsSameModule(t *testing.T) {
	sps := []l3spacepoints.Spacepoint{
		polar(1, 50, 0.3, 25),
		polar(2, 100, 0.3, 50),
		polar(1, 150, 0.3, 75),
	}
	assert.Empty(t, find(t, sps, DefaultFinderConfig(), DefaultFilterConfig()))
}

func TestFindMinPtCut(t *testing.T) {
	// Circle of radius 200 mm through the beam line.
	const radius = 200.0
	var sps []l3spacepoints.Spacepoint
	for i, r := range []float64{50, 100, 150} {
		sps = append(sps, point(uint64(i+1), r*math.Sqrt(1-r*r/(4*radius*radius)), r*r/(2*radius), 0))
	}

	// 2 T and 0.5 GeV need R >= 834 mm.
	assert.Empty(t, find(t, sps, DefaultFinderConfig(), DefaultFilterConfig()))

	fc := DefaultFinderConfig()
	fc.MinPt = 0.1
	seeds := find(t, sps, fc, DefaultFilterConfig())
	require.Len(t, seeds, 1)
	assert.InDelta(t, 1/(2*radius), math.Abs(seeds[0].Curvature), 1e-6)
	assert.InDelta(t, 0, seeds[0].Impact, 1e-6)

	sign := 1
	if seeds[0].Curvature > 0 {
		sign = -1
	}
	fc.CurvatureSign = sign
	assert.Empty(t, find(t, sps, fc, DefaultFilterConfig()))
	fc.CurvatureSign = -sign
	assert.Len(t, find(t, sps, fc, DefaultFilterConfig()), 1)

	fc.CurvatureSign = 0
	fc.BField = [3]float64{}
	fc.MinPt = 0.5
	assert.Len(t, find(t, sps, fc, DefaultFilterConfig()), 1, "zero field disables the pT cut")
}

func TestFindImpactCut(t *testing.T) {
	var sps []l3spacepoints.Spacepoint
	for i, r := range []float64{50, 100, 150} {
		sps = append(sps, point(uint64(i+1), math.Sqrt(r*r-400), 20, 0))
	}
	fc := DefaultFinderConfig()
	fc.MinPt = 0
	fc.PhiNeighbors = 2
	assert.Empty(t, find(t, sps, fc, DefaultFilterConfig()))

	fc.ImpactMax = 30
	seeds := find(t, sps, fc, DefaultFilterConfig())
	require.Len(t, seeds, 1)
	assert.InDelta(t, 20, seeds[0].Impact, 1)
}

func TestFindCotThetaCompatibility(t *testing.T) {
	sps := []l3spacepoints.Spacepoint{
		polar(1, 50, 0.3, 0),
		polar(2, 100, 0.3, 0),
		polar(3, 150, 0.3, 30),
	}
	assert.Empty(t, find(t, sps, DefaultFinderConfig(), DefaultFilterConfig()))
}

func TestFindEmpty(t *testing.T) {
	seeds := find(t, nil, DefaultFinderConfig(), DefaultFilterConfig())
	assert.NotNil(t, seeds)
	assert.Empty(t, seeds)
}

// trackEvent generates straight tracks from the beam line crossing three
// barrel layers segmented into 16 azimuthal modules, plus noise.
func trackEvent(seed uint64, tracks, noise int) []l3spacepoints.Spacepoint {
	rng := rand.New(rand.NewPCG(seed, 99))
	module := func(layer int, phi float64) uint64 {
		sector := int(math.Floor((phi + math.Pi) / (2 * math.Pi) * 16))
		return uint64(layer*100 + sector)
	}
	var sps []l3spacepoints.Spacepoint
	for k := 0; k < tracks; k++ {
		phi := (rng.Float64()*2 - 1) * math.Pi
		cot := rng.Float64()*2 - 1
		z0 := rng.Float64()*20 - 10
		for layer, r := range []float64{50, 100, 150} {
			sps = append(sps, polar(module(layer, phi), r, phi, z0+r*cot))
		}
	}
	for k := 0; k < noise; k++ {
		layer := rng.IntN(3)
		r := 50 * float64(layer+1)
		phi := (rng.Float64()*2 - 1) * math.Pi
		sps = append(sps, polar(module(layer, phi), r, phi, rng.Float64()*300-150))
	}
	return sps
}

func TestSeedTripletValidity(t *testing.T) {
	sps := trackEvent(5, 40, 60)
	fc := DefaultFinderConfig()
	flt := DefaultFilterConfig()
	flt.MaxSeedsPerMiddle = 3
	seeds := find(t, sps, fc, flt)
	require.NotEmpty(t, seeds)

	perMiddle := map[int]int{}
	prevMiddle := -1
	for i, s := range seeds {
		in, mid, out := sps[s.Inner], sps[s.Middle], sps[s.Outer]
		assert.Less(t, in.R(), mid.R())
		assert.Less(t, mid.R(), out.R())
		assert.NotEqual(t, in.ModuleID, mid.ModuleID)
		assert.NotEqual(t, mid.ModuleID, out.ModuleID)
		assert.NotEqual(t, in.ModuleID, out.ModuleID)
		assert.LessOrEqual(t, s.Impact, fc.ImpactMax)
		assert.GreaterOrEqual(t, s.Middle, prevMiddle, "concatenated by middle")
		if i > 0 && seeds[i-1].Middle == s.Middle {
			assert.GreaterOrEqual(t, seeds[i-1].Weight, s.Weight)
		}
		prevMiddle = s.Middle
		perMiddle[s.Middle]++
	}
	for m, n := range perMiddle {
		assert.LessOrEqual(t, n, flt.MaxSeedsPerMiddle, "middle %d", m)
	}
}

func TestFindParallelMatchesSequential(t *testing.T) {
	sps := trackEvent(9, 80, 100)
	g, err := l4grid.Build(sps, l4grid.DefaultConfig())
	require.NoError(t, err)

	want := Find(sps, g, DefaultFinderConfig(), DefaultFilterConfig())
	for i := 0; i < 3; i++ {
		got := FindParallel(kernel.NewDevice(4, 0), sps, g, DefaultFinderConfig(), DefaultFilterConfig())
		assert.Equal(t, want, got)
	}
}

func TestCompatSeedBonus(t *testing.T) {
	// Two outers on the same straight line share the curvature and differ
	// in radius, so each triplet gains one compatible seed.
	sps := []l3spacepoints.Spacepoint{
		polar(1, 50, 0.3, 25),
		polar(2, 100, 0.3, 50),
		polar(3, 150, 0.3, 75),
		polar(4, 200, 0.3, 100),
	}
	flt := DefaultFilterConfig()
	seeds := find(t, sps, DefaultFinderConfig(), flt)

	var forMiddle1 []Seed
	for _, s := range seeds {
		if s.Middle == 1 {
			forMiddle1 = append(forMiddle1, s)
		}
	}
	require.Len(t, forMiddle1, 2)
	for _, s := range forMiddle1 {
		assert.Greater(t, s.Weight, flt.CompatSeedWeight-1)
	}
	assert.Equal(t, 3, forMiddle1[0].Outer, "longer lever arm has the smaller cot uncertainty")
}

func TestTopKTieBreak(t *testing.T) {
	top := newTopK(2)
	top.insert(Seed{Inner: 5, Outer: 1, Weight: 1})
	top.insert(Seed{Inner: 2, Outer: 9, Weight: 1})
	top.insert(Seed{Inner: 2, Outer: 3, Weight: 1})
	top.insert(Seed{Inner: 0, Outer: 0, Weight: 0.5})

	got := top.seeds()
	require.Len(t, got, 2)
	assert.Equal(t, [2]int{2, 3}, [2]int{got[0].Inner, got[0].Outer})
	assert.Equal(t, [2]int{2, 9}, [2]int{got[1].Inner, got[1].Outer})

	top.insert(Seed{Inner: 7, Weight: 4})
	assert.Equal(t, 7, top.seeds()[0].Inner)
	assert.Nil(t, newTopK(0).seeds())
}
