package l3spacepoints

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l1cells"
	"github.com/banshee-data/seedline/internal/reco/l2clusters"
)

// Spacepoint is a measurement expressed in global coordinates.
type Spacepoint struct {
	Global           [3]float64 // x, y, z (mm)
	Covariance       [9]float64 // row-major 3x3 (mm^2)
	MeasurementIndex int
	ModuleID         uint64
}

// R returns the transverse radius.
func (s Spacepoint) R() float64 { return math.Hypot(s.Global[0], s.Global[1]) }

// Phi returns the azimuth in (-pi, pi].
func (s Spacepoint) Phi() float64 { return math.Atan2(s.Global[1], s.Global[0]) }

// Z returns the longitudinal coordinate.
func (s Spacepoint) Z() float64 { return s.Global[2] }

// VarianceR returns the covariance projected on the radial direction.
func (s Spacepoint) VarianceR() float64 {
	r2 := s.Global[0]*s.Global[0] + s.Global[1]*s.Global[1]
	if r2 == 0 {
		return 0
	}
	x, y := s.Global[0], s.Global[1]
	c := s.Covariance
	return (x*x*c[0] + 2*x*y*c[1] + y*y*c[4]) / r2
}

// VarianceZ returns the z variance.
func (s Spacepoint) VarianceZ() float64 { return s.Covariance[8] }

// Form builds one spacepoint per measurement, in measurement order.
func Form(measurements []l2clusters.Measurement, geom *l1cells.Geometry) ([]Spacepoint, error) {
	out := make([]Spacepoint, len(measurements))
	for i, m := range measurements {
		sp, err := project(i, m, geom)
		if err != nil {
			return nil, err
		}
		out[i] = sp
	}
	return out, nil
}

// FormParallel is Form with the measurements spread across the device.
// Each item is independent; the first module lookup failure is returned.
func FormParallel(device *kernel.Device, measurements []l2clusters.Measurement, geom *l1cells.Geometry) ([]Spacepoint, error) {
	out := make([]Spacepoint, len(measurements))
	errs := make([]error, len(measurements))
	device.For(len(measurements), func(i int) {
		out[i], errs[i] = project(i, measurements[i], geom)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func project(i int, m l2clusters.Measurement, geom *l1cells.Geometry) (Spacepoint, error) {
	mod, err := geom.Lookup(m.ModuleID)
	if err != nil {
		return Spacepoint{}, fmt.Errorf("spacepoint for measurement %d: %w", i, err)
	}
	x, y, z := mod.Placement.Apply(m.Local[0], m.Local[1], 0)
	return Spacepoint{
		Global:           [3]float64{x, y, z},
		Covariance:       Covariance(mod.Placement, m.Variance),
		MeasurementIndex: i,
		ModuleID:         m.ModuleID,
	}, nil
}

// Covariance rotates the local diagonal covariance diag(varU, varV, 0)
// into the global frame: R * D * R^T.
func Covariance(p l1cells.Placement, variance [2]float64) [9]float64 {
	rot := p.Rotation()
	r := mat.NewDense(3, 3, rot[:])
	d := mat.NewDiagDense(3, []float64{variance[0], variance[1], 0})

	var rd, cov mat.Dense
	rd.Mul(r, d)
	cov.Mul(&rd, r.T())

	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = cov.At(i, j)
		}
	}
	return out
}
