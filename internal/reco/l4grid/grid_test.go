package l4grid

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
)

func sp(r, phi, z float64) l3spacepoints.Spacepoint {
	return l3spacepoints.Spacepoint{Global: [3]float64{r * math.Cos(phi), r * math.Sin(phi), z}}
}

func randomSpacepoints(n int) []l3spacepoints.Spacepoint {
	rng := rand.New(rand.NewPCG(1, 2))
	out := make([]l3spacepoints.Spacepoint, n)
	for i := range out {
		out[i] = sp(30+rng.Float64()*500, (rng.Float64()*2-1)*math.Pi, (rng.Float64()*2-1)*700)
		out[i].MeasurementIndex = i
	}
	return out
}

func TestBuildCoversEverySpacepointOnce(t *testing.T) {
	sps := randomSpacepoints(2000)
	g, err := Build(sps, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, g.Offsets, g.Bins()+1)
	assert.Equal(t, 0, g.Offsets[0])
	assert.Equal(t, len(sps), g.Offsets[g.Bins()])

	seen := make([]int, len(sps))
	for b := 0; b < g.Bins(); b++ {
		prev := -1
		for _, i := range g.Bin(b) {
			seen[i]++
			assert.Greater(t, i, prev, "bin %d sorted", b)
			prev = i
			p, z := g.Locate(sps[i].Phi(), sps[i].Z())
			assert.Equal(t, b, g.Index(p, z))
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "spacepoint %d", i)
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	sps := randomSpacepoints(3000)
	want, err := Build(sps, DefaultConfig())
	require.NoError(t, err)
	got, err := BuildParallel(kernel.NewDevice(4, 0), sps, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBuildEmpty(t *testing.T) {
	g, err := Build(nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, g.Entries)
	assert.Equal(t, 64*20, g.Bins())
}

func TestZClampsToEdgeBins(t *testing.T) {
	cfg := Config{PhiEdges: UniformEdges(-math.Pi, math.Pi, 4), ZEdges: UniformEdges(-10, 10, 2)}
	g, err := Build([]l3spacepoints.Spacepoint{sp(50, 0.1, -500), sp(50, 0.1, 500), sp(50, 0.1, 10)}, cfg)
	require.NoError(t, err)

	_, z := g.Locate(0.1, -500)
	assert.Equal(t, 0, z)
	_, z = g.Locate(0.1, 500)
	assert.Equal(t, 1, z)
	_, z = g.Locate(0.1, 10)
	assert.Equal(t, 1, z)
	assert.Len(t, g.Entries, 3)
}

func TestAzimuthWraparound(t *testing.T) {
	cfg := Config{PhiEdges: UniformEdges(-math.Pi, math.Pi, 8), ZEdges: UniformEdges(-100, 100, 1)}
	sps := []l3spacepoints.Spacepoint{
		sp(50, math.Pi-0.01, 0),  // last bin
		sp(50, -math.Pi+0.01, 0), // first bin
		sp(50, 0, 0),
	}
	g, err := Build(sps, cfg)
	require.NoError(t, err)

	assert.Equal(t, 7, g.NeighborPhi(0, -1))
	assert.Equal(t, 0, g.NeighborPhi(7, 1))
	assert.Equal(t, 2, g.NeighborPhi(7, 3))

	p, _ := g.Locate(sps[1].Phi(), 0)
	require.Equal(t, 0, p)
	var found []int
	for _, b := range g.Neighbors(p, 0, 1, 0) {
		found = append(found, g.Bin(b)...)
	}
	assert.ElementsMatch(t, []int{0, 1}, found)

	// atan2 may return exactly pi; it belongs to the last bin.
	p, _ = g.Locate(math.Pi, 0)
	assert.Equal(t, 7, p)
}

func TestNeighborsDeduplicatesSmallGrid(t *testing.T) {
	cfg := Config{PhiEdges: UniformEdges(-math.Pi, math.Pi, 2), ZEdges: UniformEdges(-100, 100, 3)}
	g, err := Build(nil, cfg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{0, 1, 3, 4}, g.Neighbors(0, 0, 3, 1))
	assert.ElementsMatch(t, []int{3, 4, 5}, g.Neighbors(1, 1, 0, 5))
}

func TestNonUniformPhiEdges(t *testing.T) {
	tc := config.EmptyTuningConfig()
	tc.PhiEdges = []float64{-math.Pi, -1, 0, 0.5, math.Pi}
	cfg := ConfigFromTuning(tc)

	g, err := Build([]l3spacepoints.Spacepoint{sp(10, 0.25, 0), sp(10, 2, 0)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, g.PhiBins())
	p, _ := g.Locate(0.25, 0)
	assert.Equal(t, 2, p)
	p, _ = g.Locate(2, 0)
	assert.Equal(t, 3, p)
}

func TestBuildRejectsBadEdges(t *testing.T) {
	_, err := Build(nil, Config{PhiEdges: []float64{0}, ZEdges: UniformEdges(0, 1, 1)})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = Build(nil, Config{PhiEdges: UniformEdges(-math.Pi, math.Pi, 2), ZEdges: []float64{1, 1}})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestBuildRejectsPartialAzimuth(t *testing.T) {
	z := UniformEdges(-100, 100, 2)
	for _, edges := range [][]float64{
		{-1, 0, 1},
		{-math.Pi, 0, 3},
		{-3, 0, math.Pi},
	} {
		_, err := Build(nil, Config{PhiEdges: edges, ZEdges: z})
		assert.ErrorIs(t, err, config.ErrInvalid, "edges %v", edges)
		_, err = BuildParallel(kernel.NewDevice(2, 0), nil, Config{PhiEdges: edges, ZEdges: z})
		assert.ErrorIs(t, err, config.ErrInvalid, "edges %v", edges)
	}

	_, err := Build(nil, Config{PhiEdges: []float64{-3.1415926, 0, 3.1415926}, ZEdges: z})
	assert.NoError(t, err)
}
