package l2clusters

import (
	"errors"

	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// ErrUnsortedCells is returned when the input is not grouped by module and
// sorted by channel.
var ErrUnsortedCells = errors.New("cells are not sorted by module and channel")

// Measurement is one cluster reduced to a local 2D position.
type Measurement struct {
	ModuleID        uint64
	Local           [2]float64 // activation-weighted (u, v) in module frame (mm)
	Variance        [2]float64 // (mm^2), includes the pitch^2/12 floor
	CellCount       int
	TotalActivation float64
	// Anchor is the input index of the cluster's lowest-indexed cell. It
	// identifies the cluster independently of output order.
	Anchor int
}

// Stats summarises one clustering call.
type Stats struct {
	Partitions       int
	ForcedPartitions int // partitions cut without a channel gap
	MaxRounds        int // labelling rounds of the slowest partition
}

// Result holds the clustering outputs for one event.
type Result struct {
	Measurements []Measurement
	// CellLinks[i] is the index in Measurements of the measurement cell i
	// was folded into.
	CellLinks []int
	Stats     Stats
}

// Clusterer groups cells into measurements.
type Clusterer interface {
	Cluster(cells []l1cells.Cell, geom *l1cells.Geometry) (*Result, error)
}

// Config holds clustering parameters.
type Config struct {
	TargetPartitionSize int  // maximum cells per partition
	CellsPerThread      int  // cells owned by each thread of a group
	CanonicalOrder      bool // sort output by Anchor after the launch
}

// DefaultConfig returns the built-in clustering defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		TargetPartitionSize: cfg.GetTargetPartitionSize(),
		CellsPerThread:      cfg.GetCellsPerThread(),
		CanonicalOrder:      cfg.GetCanonicalOrder(),
	}
}

func emptyResult() *Result {
	return &Result{Measurements: []Measurement{}, CellLinks: []int{}}
}
