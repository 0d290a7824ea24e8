package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l1cells"
	"github.com/banshee-data/seedline/internal/reco/l2clusters"
	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/l4grid"
	"github.com/banshee-data/seedline/internal/reco/l5seeds"
	"github.com/banshee-data/seedline/internal/reco/l6params"
	"github.com/banshee-data/seedline/internal/reco/validate"
)

// Variant names.
const (
	ReferenceName   = "reference"
	AcceleratedName = "accelerated"
)

// Variant is one implementation of the full reconstruction chain.
type Variant interface {
	Name() string
	Process(ev *Event) (*Result, error)
}

// StageDurations records the wall time of each stage of one event.
type StageDurations struct {
	Cluster     time.Duration `json:"cluster"`
	Spacepoints time.Duration `json:"spacepoints"`
	Grid        time.Duration `json:"grid"`
	Seeds       time.Duration `json:"seeds"`
	Parameters  time.Duration `json:"parameters"`
}

// Total returns the sum of all stages.
func (d StageDurations) Total() time.Duration {
	return d.Cluster + d.Spacepoints + d.Grid + d.Seeds + d.Parameters
}

// Result holds every collection a variant produced for one event. It is
// read-only once returned.
type Result struct {
	EventID      int64
	Variant      string
	CellLinks    []int
	Measurements []l2clusters.Measurement
	Spacepoints  []l3spacepoints.Spacepoint
	Grid         *l4grid.Grid
	Seeds        []l5seeds.Seed
	Parameters   []l6params.TrackParameters
	ClusterStats l2clusters.Stats
	Durations    StageDurations
}

// Collections returns the result in the form the validator consumes.
func (r *Result) Collections() validate.Collections {
	return validate.Collections{
		CellLinks:    r.CellLinks,
		Measurements: r.Measurements,
		Spacepoints:  r.Spacepoints,
		Seeds:        r.Seeds,
		Parameters:   r.Parameters,
	}
}

// chain runs the five stages with pluggable implementations.
type chain struct {
	name      string
	geom      *l1cells.Geometry
	settings  Settings
	clusterer l2clusters.Clusterer
	form      func([]l2clusters.Measurement, *l1cells.Geometry) ([]l3spacepoints.Spacepoint, error)
	bin       func([]l3spacepoints.Spacepoint, l4grid.Config) (*l4grid.Grid, error)
	seed      func([]l3spacepoints.Spacepoint, *l4grid.Grid, l5seeds.FinderConfig, l5seeds.FilterConfig) []l5seeds.Seed
	estimate  func([]l3spacepoints.Spacepoint, []l5seeds.Seed, [3]float64, l6params.EstimatorConfig) []l6params.TrackParameters
}

// NewReference returns the variant built from the sequential stages.
func NewReference(settings Settings, geom *l1cells.Geometry) Variant {
	return &chain{
		name:      ReferenceName,
		geom:      geom,
		settings:  settings,
		clusterer: l2clusters.NewSequentialClusterer(),
		form:      l3spacepoints.Form,
		bin:       l4grid.Build,
		seed:      l5seeds.Find,
		estimate:  l6params.Estimate,
	}
}

// NewAccelerated returns the variant built from the parallel stages. It
// fails if the clustering partition does not fit the device.
func NewAccelerated(settings Settings, geom *l1cells.Geometry, device *kernel.Device) (Variant, error) {
	clusterer, err := l2clusters.NewParallelClusterer(settings.Cluster, device)
	if err != nil {
		return nil, fmt.Errorf("accelerated variant: %w", err)
	}
	return &chain{
		name:      AcceleratedName,
		geom:      geom,
		settings:  settings,
		clusterer: clusterer,
		form: func(ms []l2clusters.Measurement, g *l1cells.Geometry) ([]l3spacepoints.Spacepoint, error) {
			return l3spacepoints.FormParallel(device, ms, g)
		},
		bin: func(sps []l3spacepoints.Spacepoint, cfg l4grid.Config) (*l4grid.Grid, error) {
			return l4grid.BuildParallel(device, sps, cfg)
		},
		seed: func(sps []l3spacepoints.Spacepoint, g *l4grid.Grid, fc l5seeds.FinderConfig, flt l5seeds.FilterConfig) []l5seeds.Seed {
			return l5seeds.FindParallel(device, sps, g, fc, flt)
		},
		estimate: func(sps []l3spacepoints.Spacepoint, seeds []l5seeds.Seed, field [3]float64, cfg l6params.EstimatorConfig) []l6params.TrackParameters {
			return l6params.EstimateParallel(device, sps, seeds, field, cfg)
		},
	}, nil
}

func (c *chain) Name() string { return c.name }

// Process runs all stages on one event. A stage error fails the event.
func (c *chain) Process(ev *Event) (*Result, error) {
	res := &Result{EventID: ev.ID, Variant: c.name}

	start := time.Now()
	clusters, err := c.clusterer.Cluster(ev.Cells, c.geom)
	if err != nil {
		return nil, fmt.Errorf("%s: event %d: cluster: %w", c.name, ev.ID, err)
	}
	res.CellLinks = clusters.CellLinks
	res.Measurements = clusters.Measurements
	res.ClusterStats = clusters.Stats
	res.Durations.Cluster = time.Since(start)
	if clusters.Stats.ForcedPartitions > 0 {
		diagf("%s: event %d: %d forced partition cuts", c.name, ev.ID, clusters.Stats.ForcedPartitions)
	}

	start = time.Now()
	res.Spacepoints, err = c.form(res.Measurements, c.geom)
	if err != nil {
		return nil, fmt.Errorf("%s: event %d: spacepoints: %w", c.name, ev.ID, err)
	}
	res.Durations.Spacepoints = time.Since(start)

	start = time.Now()
	res.Grid, err = c.bin(res.Spacepoints, c.settings.Grid)
	if err != nil {
		return nil, fmt.Errorf("%s: event %d: grid: %w", c.name, ev.ID, err)
	}
	res.Durations.Grid = time.Since(start)

	start = time.Now()
	res.Seeds = c.seed(res.Spacepoints, res.Grid, c.settings.Finder, c.settings.Filter)
	res.Durations.Seeds = time.Since(start)

	start = time.Now()
	res.Parameters = c.estimate(res.Spacepoints, res.Seeds, c.settings.Finder.BField, c.settings.Estimator)
	res.Durations.Parameters = time.Since(start)

	tracef("%s: event %d: cells=%d measurements=%d spacepoints=%d seeds=%d rounds=%d took=%s",
		c.name, ev.ID, len(ev.Cells), len(res.Measurements), len(res.Spacepoints),
		len(res.Seeds), res.ClusterStats.MaxRounds, res.Durations.Total())
	return res, nil
}
