package validate

import (
	"math"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/l2clusters"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l5seeds"
	"github.com/banshee-data/seedline/internal/reco/l6params"
)

// Collection names used in reports.
const (
	CollectionLinks        = "links"
	CollectionMeasurements = "measurements"
	CollectionSpacepoints  = "spacepoints"
	CollectionSeeds        = "seeds"
	CollectionParameters   = "parameters"
)

// Collections are the outputs of one variant for one event.
type Collections struct {
	CellLinks    []int
	Measurements []l2clusters.Measurement
	Spacepoints  []l3spacepoints.Spacepoint
	Seeds        []l5seeds.Seed
	Parameters   []l6params.TrackParameters
}

// ClusterKey identifies a measurement by its module and anchor cell.
type ClusterKey struct {
	ModuleID uint64
	Anchor   int
}

// SeedKey identifies a seed by the clusters behind its three spacepoints.
type SeedKey [3]ClusterKey

// linkEntry is the cluster a single cell was folded into.
type linkEntry struct {
	Cell   int
	Anchor int
}

// TolFromTuning builds a Tolerance from a loaded TuningConfig.
func TolFromTuning(cfg *config.TuningConfig) Tolerance {
	return Tolerance{Rel: cfg.GetRelTolerance(), Abs: cfg.GetAbsTolerance()}
}

// CompareEvent compares every collection of a candidate against the
// reference.
func CompareEvent(ref, cand Collections, tol Tolerance) []Diagnostics {
	return []Diagnostics{
		compareLinks(ref, cand),
		compareMeasurements(ref, cand, tol),
		compareSpacepoints(ref, cand, tol),
		compareSeeds(ref, cand, tol),
		compareParameters(ref, cand, tol),
	}
}

func (c Collections) clusterKey(measurement int) ClusterKey {
	if measurement < 0 || measurement >= len(c.Measurements) {
		return ClusterKey{Anchor: -1}
	}
	m := c.Measurements[measurement]
	return ClusterKey{ModuleID: m.ModuleID, Anchor: m.Anchor}
}

func (c Collections) spacepointKey(sp int) ClusterKey {
	if sp < 0 || sp >= len(c.Spacepoints) {
		return ClusterKey{Anchor: -1}
	}
	return c.clusterKey(c.Spacepoints[sp].MeasurementIndex)
}

func (c Collections) seedKey(seed int) SeedKey {
	if seed < 0 || seed >= len(c.Seeds) {
		return SeedKey{{Anchor: -1}, {Anchor: -1}, {Anchor: -1}}
	}
	s := c.Seeds[seed]
	return SeedKey{c.spacepointKey(s.Inner), c.spacepointKey(s.Middle), c.spacepointKey(s.Outer)}
}

func (c Collections) linkEntries() []linkEntry {
	out := make([]linkEntry, len(c.CellLinks))
	for i, m := range c.CellLinks {
		out[i] = linkEntry{Cell: i, Anchor: c.clusterKey(m).Anchor}
	}
	return out
}

func compareLinks(ref, cand Collections) Diagnostics {
	key := func(_ int, e linkEntry) int { return e.Cell }
	return Compare(CollectionLinks, ref.linkEntries(), cand.linkEntries(), Matcher[linkEntry, int]{
		ReferenceKey: key,
		CandidateKey: key,
		Equal:        func(a, b linkEntry) bool { return a == b },
	})
}

func compareMeasurements(ref, cand Collections, tol Tolerance) Diagnostics {
	key := func(_ int, m l2clusters.Measurement) ClusterKey {
		return ClusterKey{ModuleID: m.ModuleID, Anchor: m.Anchor}
	}
	return Compare(CollectionMeasurements, ref.Measurements, cand.Measurements, Matcher[l2clusters.Measurement, ClusterKey]{
		ReferenceKey: key,
		CandidateKey: key,
		Equal:        ApproxEqual[l2clusters.Measurement](tol),
		Deviation: func(a, b l2clusters.Measurement) float64 {
			return math.Hypot(a.Local[0]-b.Local[0], a.Local[1]-b.Local[1])
		},
	})
}

func compareSpacepoints(ref, cand Collections, tol Tolerance) Diagnostics {
	return Compare(CollectionSpacepoints, ref.Spacepoints, cand.Spacepoints, Matcher[l3spacepoints.Spacepoint, ClusterKey]{
		ReferenceKey: func(i int, _ l3spacepoints.Spacepoint) ClusterKey { return ref.spacepointKey(i) },
		CandidateKey: func(i int, _ l3spacepoints.Spacepoint) ClusterKey { return cand.spacepointKey(i) },
		Equal:        ApproxEqual[l3spacepoints.Spacepoint](tol, "MeasurementIndex"),
		Deviation: func(a, b l3spacepoints.Spacepoint) float64 {
			return math.Sqrt(sq(a.Global[0]-b.Global[0]) + sq(a.Global[1]-b.Global[1]) + sq(a.Global[2]-b.Global[2]))
		},
	})
}

func compareSeeds(ref, cand Collections, tol Tolerance) Diagnostics {
	return Compare(CollectionSeeds, ref.Seeds, cand.Seeds, Matcher[l5seeds.Seed, SeedKey]{
		ReferenceKey: func(i int, _ l5seeds.Seed) SeedKey { return ref.seedKey(i) },
		CandidateKey: func(i int, _ l5seeds.Seed) SeedKey { return cand.seedKey(i) },
		Equal:        ApproxEqual[l5seeds.Seed](tol, "Inner", "Middle", "Outer"),
		Deviation:    func(a, b l5seeds.Seed) float64 { return math.Abs(a.Weight - b.Weight) },
	})
}

func compareParameters(ref, cand Collections, tol Tolerance) Diagnostics {
	return Compare(CollectionParameters, ref.Parameters, cand.Parameters, Matcher[l6params.TrackParameters, SeedKey]{
		ReferenceKey: func(_ int, p l6params.TrackParameters) SeedKey { return ref.seedKey(p.SeedIndex) },
		CandidateKey: func(_ int, p l6params.TrackParameters) SeedKey { return cand.seedKey(p.SeedIndex) },
		Equal:        ApproxEqual[l6params.TrackParameters](tol, "SeedIndex"),
		Deviation: func(a, b l6params.TrackParameters) float64 {
			return max(
				math.Abs(a.D0-b.D0),
				math.Abs(a.Z0-b.Z0),
				math.Abs(a.Phi-b.Phi),
				math.Abs(a.Theta-b.Theta),
				math.Abs(a.QOverP-b.QOverP),
			)
		},
	})
}

func sq(x float64) float64 { return x * x }
