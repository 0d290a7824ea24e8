package l1cells

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownModule is returned when a record references a module that is
// not in the geometry table.
var ErrUnknownModule = errors.New("unknown module")

// IdentityTransform4x4 is a 4x4 identity matrix for placement transforms.
// T is row-major: [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33]
var IdentityTransform4x4 = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// Placement is a rigid module -> global transform.
// T is 4x4 row-major with the rotation in the upper-left 3x3 block and the
// translation in the last column.
type Placement struct {
	T [16]float64
}

// Apply maps a local point into global coordinates.
func (p Placement) Apply(x, y, z float64) (float64, float64, float64) {
	T := p.T
	gx := T[0]*x + T[1]*y + T[2]*z + T[3]
	gy := T[4]*x + T[5]*y + T[6]*z + T[7]
	gz := T[8]*x + T[9]*y + T[10]*z + T[11]
	return gx, gy, gz
}

// Rotation returns the 3x3 rotation block, row-major.
func (p Placement) Rotation() [9]float64 {
	T := p.T
	return [9]float64{T[0], T[1], T[2], T[4], T[5], T[6], T[8], T[9], T[10]}
}

// NewPlacement builds a placement from local axis directions expressed in
// global coordinates and a global centre. The axes are taken as the
// rotation matrix columns and are expected to be orthonormal.
func NewPlacement(u, v, w, centre [3]float64) Placement {
	return Placement{T: [16]float64{
		u[0], v[0], w[0], centre[0],
		u[1], v[1], w[1], centre[1],
		u[2], v[2], w[2], centre[2],
		0, 0, 0, 1,
	}}
}

// BarrelPlacement returns the placement of a flat module tangent to a
// cylinder of the given radius at azimuth phi and longitudinal offset z.
// Local u runs along increasing phi, local v along global z, and the normal
// points away from the beam line.
func BarrelPlacement(radius, phi, z float64) Placement {
	c, s := math.Cos(phi), math.Sin(phi)
	return NewPlacement(
		[3]float64{-s, c, 0},
		[3]float64{0, 0, 1},
		[3]float64{c, s, 0},
		[3]float64{radius * c, radius * s, z},
	)
}

// Module describes one flat detector surface.
type Module struct {
	ID         uint64
	Placement  Placement
	Pitch      [2]float64 // channel pitch along u and v (mm)
	HalfLength [2]float64 // half extent along u and v (mm)
}

// LocalPosition returns the local (u, v) centre of a channel pair.
func (m Module) LocalPosition(ch0, ch1 float64) (float64, float64) {
	u := -m.HalfLength[0] + (ch0+0.5)*m.Pitch[0]
	v := -m.HalfLength[1] + (ch1+0.5)*m.Pitch[1]
	return u, v
}

// Channels returns the number of channels along u and v.
func (m Module) Channels() (int, int) {
	n0, n1 := 0, 0
	if m.Pitch[0] > 0 {
		n0 = int(math.Round(2 * m.HalfLength[0] / m.Pitch[0]))
	}
	if m.Pitch[1] > 0 {
		n1 = int(math.Round(2 * m.HalfLength[1] / m.Pitch[1]))
	}
	return n0, n1
}

// ChannelAt returns the channel pair containing the local point and
// whether the point lies on the module.
func (m Module) ChannelAt(u, v float64) (int, int, bool) {
	if m.Pitch[0] <= 0 || m.Pitch[1] <= 0 {
		return 0, 0, false
	}
	ch0 := int(math.Floor((u + m.HalfLength[0]) / m.Pitch[0]))
	ch1 := int(math.Floor((v + m.HalfLength[1]) / m.Pitch[1]))
	n0, n1 := m.Channels()
	if ch0 < 0 || ch1 < 0 || ch0 >= n0 || ch1 >= n1 {
		return ch0, ch1, false
	}
	return ch0, ch1, true
}

// Geometry is the read-only module table shared by every stage and worker.
// It must not be modified after NewGeometry returns.
type Geometry struct {
	modules map[uint64]Module
	ids     []uint64
}

// NewGeometry builds a geometry table. Duplicate ids and non-positive
// pitches are rejected.
func NewGeometry(modules []Module) (*Geometry, error) {
	g := &Geometry{
		modules: make(map[uint64]Module, len(modules)),
		ids:     make([]uint64, 0, len(modules)),
	}
	for _, m := range modules {
		if _, dup := g.modules[m.ID]; dup {
			return nil, fmt.Errorf("duplicate module id %d", m.ID)
		}
		if m.Pitch[0] <= 0 || m.Pitch[1] <= 0 {
			return nil, fmt.Errorf("module %d: pitch must be positive, got %v", m.ID, m.Pitch)
		}
		g.modules[m.ID] = m
		g.ids = append(g.ids, m.ID)
	}
	sort.Slice(g.ids, func(i, j int) bool { return g.ids[i] < g.ids[j] })
	return g, nil
}

// Module returns the module with the given id.
func (g *Geometry) Module(id uint64) (Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Lookup returns the module with the given id or an error wrapping
// ErrUnknownModule.
func (g *Geometry) Lookup(id uint64) (Module, error) {
	m, ok := g.modules[id]
	if !ok {
		return Module{}, fmt.Errorf("%w: %d", ErrUnknownModule, id)
	}
	return m, nil
}

// Len returns the number of modules.
func (g *Geometry) Len() int { return len(g.ids) }

// IDs returns module ids in ascending order. The slice is a copy.
func (g *Geometry) IDs() []uint64 {
	out := make([]uint64, len(g.ids))
	copy(out, g.ids)
	return out
}
