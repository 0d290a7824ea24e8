package l4grid

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
)

// Config holds the bin edges of a grid.
type Config struct {
	PhiEdges []float64 // ascending, spanning [-pi, pi]
	ZEdges   []float64 // ascending (mm)
}

// UniformEdges returns n+1 evenly spaced edges from lo to hi.
func UniformEdges(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi
	return edges
}

// DefaultConfig returns the built-in binning.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. Explicit
// edges take precedence over the uniform bin counts.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := Config{
		PhiEdges: cfg.PhiEdges,
		ZEdges:   cfg.ZEdges,
	}
	if len(c.PhiEdges) == 0 {
		c.PhiEdges = UniformEdges(-math.Pi, math.Pi, cfg.GetPhiBins())
	}
	if len(c.ZEdges) == 0 {
		c.ZEdges = UniformEdges(cfg.GetZMin(), cfg.GetZMax(), cfg.GetZBins())
	}
	return c
}

// phiSpanTolerance allows edges read back from text to round off pi.
const phiSpanTolerance = 1e-6

func (c Config) validate() error {
	for _, e := range []struct {
		name  string
		edges []float64
	}{{"phi", c.PhiEdges}, {"z", c.ZEdges}} {
		if len(e.edges) < 2 {
			return fmt.Errorf("%w: %s edges need at least two values", config.ErrInvalid, e.name)
		}
		for i := 1; i < len(e.edges); i++ {
			if !(e.edges[i] > e.edges[i-1]) {
				return fmt.Errorf("%w: %s edges not strictly ascending at %d", config.ErrInvalid, e.name, i)
			}
		}
	}
	first, last := c.PhiEdges[0], c.PhiEdges[len(c.PhiEdges)-1]
	if first > -math.Pi+phiSpanTolerance || last < math.Pi-phiSpanTolerance {
		return fmt.Errorf("%w: phi edges [%f, %f] do not cover [-pi, pi]", config.ErrInvalid, first, last)
	}
	return nil
}

// Grid is a phi x z binning of spacepoint indices. Bin (p, z) has flat
// index p*ZBins()+z and owns Entries[Offsets[b]:Offsets[b+1]], sorted by
// spacepoint index.
type Grid struct {
	PhiEdges []float64
	ZEdges   []float64
	Offsets  []int
	Entries  []int
}

// PhiBins returns the number of azimuth bins.
func (g *Grid) PhiBins() int { return len(g.PhiEdges) - 1 }

// ZBins returns the number of z bins.
func (g *Grid) ZBins() int { return len(g.ZEdges) - 1 }

// Bins returns the total number of bins.
func (g *Grid) Bins() int { return g.PhiBins() * g.ZBins() }

// Index returns the flat bin index of (p, z).
func (g *Grid) Index(p, z int) int { return p*g.ZBins() + z }

// Bin returns the spacepoint indices in flat bin b.
func (g *Grid) Bin(b int) []int { return g.Entries[g.Offsets[b]:g.Offsets[b+1]] }

// Locate returns the (phi, z) bin of a position. Values outside the edges
// are clamped to the first or last bin.
func (g *Grid) Locate(phi, z float64) (int, int) {
	return locate(g.PhiEdges, phi), locate(g.ZEdges, z)
}

func locate(edges []float64, v float64) int {
	i := sort.Search(len(edges), func(i int) bool { return edges[i] > v }) - 1
	return min(max(i, 0), len(edges)-2)
}

// NeighborPhi returns the phi bin d steps away from p, wrapping around so
// that bin 0 and the last bin are neighbours.
func (g *Grid) NeighborPhi(p, d int) int {
	n := g.PhiBins()
	return ((p+d)%n + n) % n
}

// Neighbors returns the flat indices of the bins within dPhi azimuth steps
// (wrapped) and dZ z steps (clamped) of (p, z), including (p, z) itself.
// Each bin appears once even when the window is wider than the grid.
func (g *Grid) Neighbors(p, z, dPhi, dZ int) []int {
	zLo := max(z-dZ, 0)
	zHi := min(z+dZ, g.ZBins()-1)

	var seen []int
	var out []int
	for d := -dPhi; d <= dPhi; d++ {
		np := g.NeighborPhi(p, d)
		dup := false
		for _, s := range seen {
			if s == np {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, np)
		for nz := zLo; nz <= zHi; nz++ {
			out = append(out, g.Index(np, nz))
		}
	}
	return out
}

func newGrid(cfg Config) (*Grid, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g := &Grid{PhiEdges: cfg.PhiEdges, ZEdges: cfg.ZEdges}
	g.Offsets = make([]int, g.Bins()+1)
	return g, nil
}

// Build bins the spacepoints: count per bin, prefix sum, scatter. Every
// spacepoint lands in exactly one bin.
func Build(sps []l3spacepoints.Spacepoint, cfg Config) (*Grid, error) {
	g, err := newGrid(cfg)
	if err != nil {
		return nil, err
	}

	bins := make([]int, len(sps))
	for i, sp := range sps {
		p, z := g.Locate(sp.Phi(), sp.Z())
		bins[i] = g.Index(p, z)
		g.Offsets[bins[i]+1]++
	}
	for b := 1; b < len(g.Offsets); b++ {
		g.Offsets[b] += g.Offsets[b-1]
	}

	cursor := make([]int, g.Bins())
	copy(cursor, g.Offsets[:g.Bins()])
	g.Entries = make([]int, len(sps))
	for i, b := range bins {
		g.Entries[cursor[b]] = i
		cursor[b]++
	}
	return g, nil
}

// BuildParallel is Build with the locate, count and scatter passes spread
// across the device. Bins are sorted afterwards so the result equals Build.
func BuildParallel(device *kernel.Device, sps []l3spacepoints.Spacepoint, cfg Config) (*Grid, error) {
	g, err := newGrid(cfg)
	if err != nil {
		return nil, err
	}

	nb := g.Bins()
	bins := make([]int, len(sps))
	counts := make([]atomic.Int64, nb)
	device.For(len(sps), func(i int) {
		p, z := g.Locate(sps[i].Phi(), sps[i].Z())
		bins[i] = g.Index(p, z)
		counts[bins[i]].Add(1)
	})
	for b := 0; b < nb; b++ {
		g.Offsets[b+1] = g.Offsets[b] + int(counts[b].Load())
	}

	cursor := make([]atomic.Int64, nb)
	for b := range cursor {
		cursor[b].Store(int64(g.Offsets[b]))
	}
	g.Entries = make([]int, len(sps))
	device.For(len(sps), func(i int) {
		slot := cursor[bins[i]].Add(1) - 1
		g.Entries[slot] = i
	})
	device.For(nb, func(b int) {
		sort.Ints(g.Bin(b))
	})
	return g, nil
}
