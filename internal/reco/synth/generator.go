package synth

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/seedline/internal/reco/l1cells"
	"github.com/banshee-data/seedline/internal/reco/pipeline"
)

// Config controls event generation.
type Config struct {
	Events      int
	Tracks      int     // tracks per event
	NoiseCells  int     // random cells per event
	PtMin       float64 // GeV
	PtMax       float64 // GeV
	CotThetaMax float64
	ZSpread     float64    // half width of the vertex z distribution (mm)
	BField      [3]float64 // Tesla
	Seed        uint64
}

// DefaultConfig returns a small workload.
func DefaultConfig() Config {
	return Config{
		Events:      10,
		Tracks:      20,
		NoiseCells:  50,
		PtMin:       1,
		PtMax:       10,
		CotThetaMax: 1,
		ZSpread:     20,
		BField:      [3]float64{0, 0, 2},
		Seed:        1,
	}
}

// Track is the generated truth of one particle.
type Track struct {
	Pt       float64
	Phi0     float64
	CotTheta float64
	Z0       float64
	Charge   int
}

// Generator produces events for one barrel. It implements pipeline.Source.
type Generator struct {
	cfg     Config
	barrel  Barrel
	layouts []layout
	geom    *l1cells.Geometry
	next    int
}

// NewGenerator builds the barrel geometry and returns a generator.
func NewGenerator(cfg Config, barrel Barrel) (*Generator, error) {
	if cfg.PtMin <= 0 || cfg.PtMax < cfg.PtMin {
		return nil, fmt.Errorf("synth: invalid pT range [%g, %g]", cfg.PtMin, cfg.PtMax)
	}
	geom, err := barrel.Geometry()
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	return &Generator{cfg: cfg, barrel: barrel, layouts: barrel.layouts(), geom: geom}, nil
}

// Geometry returns the generated module table.
func (g *Generator) Geometry() *l1cells.Geometry { return g.geom }

// Next returns the next event, or io.EOF after cfg.Events events.
func (g *Generator) Next(ctx context.Context) (*pipeline.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.next >= g.cfg.Events {
		return nil, io.EOF
	}
	ev, _ := g.Event(int64(g.next))
	g.next++
	return ev, nil
}

// Event generates event id. The same id always yields the same event.
func (g *Generator) Event(id int64) (*pipeline.Event, []Track) {
	rng := rand.New(rand.NewPCG(g.cfg.Seed, uint64(id)))
	deposits := make(map[cellKey]float64)

	tracks := make([]Track, g.cfg.Tracks)
	for i := range tracks {
		tr := Track{
			Pt:       g.cfg.PtMin + rng.Float64()*(g.cfg.PtMax-g.cfg.PtMin),
			Phi0:     (rng.Float64()*2 - 1) * math.Pi,
			CotTheta: (rng.Float64()*2 - 1) * g.cfg.CotThetaMax,
			Z0:       (rng.Float64()*2 - 1) * g.cfg.ZSpread,
			Charge:   1,
		}
		if rng.IntN(2) == 0 {
			tr.Charge = -1
		}
		tracks[i] = tr
		g.deposit(rng, tr, deposits)
	}

	ids := g.geom.IDs()
	for i := 0; i < g.cfg.NoiseCells && len(ids) > 0; i++ {
		mod, _ := g.geom.Module(ids[rng.IntN(len(ids))])
		n0, n1 := mod.Channels()
		k := cellKey{module: mod.ID, ch0: rng.IntN(n0), ch1: rng.IntN(n1)}
		deposits[k] += 0.05 + 0.2*rng.Float64()
	}

	cells := make([]l1cells.Cell, 0, len(deposits))
	for k, a := range deposits {
		cells = append(cells, l1cells.Cell{ModuleID: k.module, Channel0: k.ch0, Channel1: k.ch1, Activation: a})
	}
	return pipeline.NewEvent(id, cells), tracks
}

type cellKey struct {
	module   uint64
	ch0, ch1 int
}

// deposit adds the cells a track leaves on every layer it crosses.
func (g *Generator) deposit(rng *rand.Rand, tr Track, deposits map[cellKey]float64) {
	for li, l := range g.layouts {
		x, y, s, ok := g.crossing(tr, l.radius)
		if !ok {
			return
		}
		z := tr.Z0 + s*tr.CotTheta
		id, ok := g.barrel.locate(li, l, x, y, z)
		if !ok {
			continue
		}
		mod, _ := g.geom.Module(id)

		// Project onto the module plane.
		rot := mod.Placement.Rotation()
		cx, cy, cz := mod.Placement.T[3], mod.Placement.T[7], mod.Placement.T[11]
		dx, dy, dz := x-cx, y-cy, z-cz
		u := rot[0]*dx + rot[3]*dy + rot[6]*dz
		v := rot[1]*dx + rot[4]*dy + rot[7]*dz
		ch0, ch1, on := mod.ChannelAt(u, v)
		if !on {
			continue
		}
		shareCharge(rng, mod, u, v, ch0, ch1, deposits)
	}
}

// crossing returns where a track from the beam line first reaches radius
// r and the transverse path length to get there.
func (g *Generator) crossing(tr Track, r float64) (x, y, s float64, ok bool) {
	bz := g.cfg.BField[2]
	if bz == 0 {
		return r * math.Cos(tr.Phi0), r * math.Sin(tr.Phi0), r, true
	}
	radius := tr.Pt / (0.299792458e-3 * math.Abs(bz))
	if r >= 2*radius {
		return 0, 0, 0, false
	}

	// Positive charge in +Bz turns clockwise.
	turn := -float64(tr.Charge)
	if bz < 0 {
		turn = -turn
	}
	cx := -turn * radius * math.Sin(tr.Phi0)
	cy := turn * radius * math.Cos(tr.Phi0)

	alpha := 2 * math.Asin(r/(2*radius))
	// Rotate the centre-to-origin vector by the turning angle.
	ox, oy := -cx, -cy
	ca, sa := math.Cos(turn*alpha), math.Sin(turn*alpha)
	return cx + ca*ox - sa*oy, cy + sa*ox + ca*oy, radius * alpha, true
}

// shareCharge spreads one crossing over the hit channel and the
// neighbours towards which the crossing is displaced.
func shareCharge(rng *rand.Rand, mod l1cells.Module, u, v float64, ch0, ch1 int, deposits map[cellKey]float64) {
	n0, n1 := mod.Channels()
	cu, cv := mod.LocalPosition(float64(ch0), float64(ch1))
	d0, d1 := 1, 1
	if u < cu {
		d0 = -1
	}
	if v < cv {
		d1 = -1
	}

	add := func(a, b int, q float64) {
		if a < 0 || b < 0 || a >= n0 || b >= n1 {
			return
		}
		deposits[cellKey{module: mod.ID, ch0: a, ch1: b}] += q
	}
	add(ch0, ch1, 0.6+0.4*rng.Float64())
	shareU := rng.Float64() < 0.5
	shareV := rng.Float64() < 0.4
	if shareU {
		add(ch0+d0, ch1, 0.2+0.3*rng.Float64())
	}
	if shareV {
		add(ch0, ch1+d1, 0.2+0.3*rng.Float64())
	}
	if shareU && shareV && rng.Float64() < 0.5 {
		add(ch0+d0, ch1+d1, 0.1+0.2*rng.Float64())
	}
}
