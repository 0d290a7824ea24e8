package synth

import (
	"math"

	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// Barrel describes a detector of cylindrical layers tiled with flat
// modules.
type Barrel struct {
	Radii      []float64  // layer radii (mm)
	HalfLength [2]float64 // module half extent along u (phi) and v (z) (mm)
	Pitch      [2]float64 // channel pitch (mm)
	ZHalf      float64    // half length of each layer (mm)
}

// DefaultBarrel returns a five-layer barrel.
func DefaultBarrel() Barrel {
	return Barrel{
		Radii:      []float64{50, 90, 130, 180, 240},
		HalfLength: [2]float64{8, 25},
		Pitch:      [2]float64{0.1, 0.4},
		ZHalf:      250,
	}
}

// layout is the module tiling of one layer.
type layout struct {
	radius  float64
	sectors int
	rings   int
}

func (b Barrel) layouts() []layout {
	out := make([]layout, len(b.Radii))
	for i, r := range b.Radii {
		out[i] = layout{
			radius:  r,
			sectors: int(math.Ceil(2 * math.Pi * r / (2 * b.HalfLength[0]))),
			rings:   int(math.Ceil(b.ZHalf / b.HalfLength[1])),
		}
	}
	return out
}

// ModuleID encodes layer, ring and sector into a module identifier.
func ModuleID(layer, ring, sector int) uint64 {
	return uint64(layer+1)*1_000_000 + uint64(ring)*1_000 + uint64(sector)
}

// ringCentre returns the z centre of ring k.
func (b Barrel) ringCentre(l layout, k int) float64 {
	return -float64(l.rings)*b.HalfLength[1] + b.HalfLength[1] + 2*b.HalfLength[1]*float64(k)
}

// Geometry builds the module table.
func (b Barrel) Geometry() (*l1cells.Geometry, error) {
	var mods []l1cells.Module
	for li, l := range b.layouts() {
		dphi := 2 * math.Pi / float64(l.sectors)
		for k := 0; k < l.rings; k++ {
			for s := 0; s < l.sectors; s++ {
				mods = append(mods, l1cells.Module{
					ID:         ModuleID(li, k, s),
					Placement:  l1cells.BarrelPlacement(l.radius, float64(s)*dphi, b.ringCentre(l, k)),
					Pitch:      b.Pitch,
					HalfLength: b.HalfLength,
				})
			}
		}
	}
	return l1cells.NewGeometry(mods)
}

// locate returns the module of layer li closest to a global point.
func (b Barrel) locate(li int, l layout, x, y, z float64) (uint64, bool) {
	dphi := 2 * math.Pi / float64(l.sectors)
	phi := math.Atan2(y, x)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	sector := int(math.Round(phi/dphi)) % l.sectors

	ring := int(math.Floor((z + float64(l.rings)*b.HalfLength[1]) / (2 * b.HalfLength[1])))
	if ring < 0 || ring >= l.rings {
		return 0, false
	}
	return ModuleID(li, ring, sector), true
}
