package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid tuning configuration")

// TuningConfig represents the root configuration for reconstruction tuning.
// Every field is optional; the Get* accessors supply defaults for anything
// the file leaves out, so partial configs are safe.
type TuningConfig struct {
	// Clustering
	TargetPartitionSize *int  `json:"target_partition_size,omitempty" yaml:"target_partition_size,omitempty"`
	CellsPerThread      *int  `json:"cells_per_thread,omitempty" yaml:"cells_per_thread,omitempty"`
	LocalMemoryBytes    *int  `json:"local_memory_bytes,omitempty" yaml:"local_memory_bytes,omitempty"`
	Workers             *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	CanonicalOrder      *bool `json:"canonical_order,omitempty" yaml:"canonical_order,omitempty"`

	// Spatial binning
	PhiBins  *int      `json:"phi_bins,omitempty" yaml:"phi_bins,omitempty"`
	PhiEdges []float64 `json:"phi_edges,omitempty" yaml:"phi_edges,omitempty"`
	ZMin     *float64  `json:"z_min,omitempty" yaml:"z_min,omitempty"`
	ZMax     *float64  `json:"z_max,omitempty" yaml:"z_max,omitempty"`
	ZBins    *int      `json:"z_bins,omitempty" yaml:"z_bins,omitempty"`
	ZEdges   []float64 `json:"z_edges,omitempty" yaml:"z_edges,omitempty"`

	// Seed finder
	RMin                   *float64 `json:"r_min,omitempty" yaml:"r_min,omitempty"`
	RMax                   *float64 `json:"r_max,omitempty" yaml:"r_max,omitempty"`
	DeltaRMin              *float64 `json:"delta_r_min,omitempty" yaml:"delta_r_min,omitempty"`
	DeltaRMax              *float64 `json:"delta_r_max,omitempty" yaml:"delta_r_max,omitempty"`
	CotThetaMax            *float64 `json:"cot_theta_max,omitempty" yaml:"cot_theta_max,omitempty"`
	CollisionZMin          *float64 `json:"collision_z_min,omitempty" yaml:"collision_z_min,omitempty"`
	CollisionZMax          *float64 `json:"collision_z_max,omitempty" yaml:"collision_z_max,omitempty"`
	ImpactMax              *float64 `json:"impact_max,omitempty" yaml:"impact_max,omitempty"`
	MinPt                  *float64 `json:"min_pt,omitempty" yaml:"min_pt,omitempty"`
	DeltaCotThetaTolerance *float64 `json:"delta_cot_theta_tolerance,omitempty" yaml:"delta_cot_theta_tolerance,omitempty"`
	CurvatureSign          *int     `json:"curvature_sign,omitempty" yaml:"curvature_sign,omitempty"`
	PhiNeighbors           *int     `json:"phi_neighbors,omitempty" yaml:"phi_neighbors,omitempty"`
	ZNeighbors             *int     `json:"z_neighbors,omitempty" yaml:"z_neighbors,omitempty"`

	// Seed filter
	MaxSeedsPerMiddle        *int     `json:"max_seeds_per_middle,omitempty" yaml:"max_seeds_per_middle,omitempty"`
	ImpactWeight             *float64 `json:"impact_weight,omitempty" yaml:"impact_weight,omitempty"`
	UncertaintyWeight        *float64 `json:"uncertainty_weight,omitempty" yaml:"uncertainty_weight,omitempty"`
	CompatSeedWeight         *float64 `json:"compat_seed_weight,omitempty" yaml:"compat_seed_weight,omitempty"`
	CompatSeedLimit          *int     `json:"compat_seed_limit,omitempty" yaml:"compat_seed_limit,omitempty"`
	CompatCurvatureTolerance *float64 `json:"compat_curvature_tolerance,omitempty" yaml:"compat_curvature_tolerance,omitempty"`
	MinCompatDeltaR          *float64 `json:"min_compat_delta_r,omitempty" yaml:"min_compat_delta_r,omitempty"`

	// Field and track parameter estimation
	BField      []float64 `json:"b_field,omitempty" yaml:"b_field,omitempty"` // Tesla, (x, y, z)
	SigmaD0     *float64  `json:"sigma_d0,omitempty" yaml:"sigma_d0,omitempty"`
	SigmaZ0     *float64  `json:"sigma_z0,omitempty" yaml:"sigma_z0,omitempty"`
	SigmaPhi    *float64  `json:"sigma_phi,omitempty" yaml:"sigma_phi,omitempty"`
	SigmaTheta  *float64  `json:"sigma_theta,omitempty" yaml:"sigma_theta,omitempty"`
	SigmaQOPRel *float64  `json:"sigma_qop_rel,omitempty" yaml:"sigma_qop_rel,omitempty"`

	// Validation
	RelTolerance *float64 `json:"rel_tolerance,omitempty" yaml:"rel_tolerance,omitempty"`
	AbsTolerance *float64 `json:"abs_tolerance,omitempty" yaml:"abs_tolerance,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every accessor then reports its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		TargetPartitionSize: ptrInt(e.GetTargetPartitionSize()),
		CellsPerThread:      ptrInt(e.GetCellsPerThread()),
		LocalMemoryBytes:    ptrInt(e.GetLocalMemoryBytes()),
		Workers:             ptrInt(e.GetWorkers()),
		CanonicalOrder:      ptrBool(e.GetCanonicalOrder()),

		PhiBins: ptrInt(e.GetPhiBins()),
		ZMin:    ptrFloat64(e.GetZMin()),
		ZMax:    ptrFloat64(e.GetZMax()),
		ZBins:   ptrInt(e.GetZBins()),

		RMin:                   ptrFloat64(e.GetRMin()),
		RMax:                   ptrFloat64(e.GetRMax()),
		DeltaRMin:              ptrFloat64(e.GetDeltaRMin()),
		DeltaRMax:              ptrFloat64(e.GetDeltaRMax()),
		CotThetaMax:            ptrFloat64(e.GetCotThetaMax()),
		CollisionZMin:          ptrFloat64(e.GetCollisionZMin()),
		CollisionZMax:          ptrFloat64(e.GetCollisionZMax()),
		ImpactMax:              ptrFloat64(e.GetImpactMax()),
		MinPt:                  ptrFloat64(e.GetMinPt()),
		DeltaCotThetaTolerance: ptrFloat64(e.GetDeltaCotThetaTolerance()),
		CurvatureSign:          ptrInt(e.GetCurvatureSign()),
		PhiNeighbors:           ptrInt(e.GetPhiNeighbors()),
		ZNeighbors:             ptrInt(e.GetZNeighbors()),

		MaxSeedsPerMiddle:        ptrInt(e.GetMaxSeedsPerMiddle()),
		ImpactWeight:             ptrFloat64(e.GetImpactWeight()),
		UncertaintyWeight:        ptrFloat64(e.GetUncertaintyWeight()),
		CompatSeedWeight:         ptrFloat64(e.GetCompatSeedWeight()),
		CompatSeedLimit:          ptrInt(e.GetCompatSeedLimit()),
		CompatCurvatureTolerance: ptrFloat64(e.GetCompatCurvatureTolerance()),
		MinCompatDeltaR:          ptrFloat64(e.GetMinCompatDeltaR()),

		BField:      []float64{0, 0, 2.0},
		SigmaD0:     ptrFloat64(e.GetSigmaD0()),
		SigmaZ0:     ptrFloat64(e.GetSigmaZ0()),
		SigmaPhi:    ptrFloat64(e.GetSigmaPhi()),
		SigmaTheta:  ptrFloat64(e.GetSigmaTheta()),
		SigmaQOPRel: ptrFloat64(e.GetSigmaQOPRel()),

		RelTolerance: ptrFloat64(e.GetRelTolerance()),
		AbsTolerance: ptrFloat64(e.GetAbsTolerance()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The format is chosen by extension (.json, .yaml, .yml). Files over 1MB are
// rejected. Fields omitted from the file retain their default values.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/reco/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/reco/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TargetPartitionSize != nil && *c.TargetPartitionSize <= 0 {
		return fmt.Errorf("%w: target_partition_size must be positive, got %d", ErrInvalid, *c.TargetPartitionSize)
	}
	if c.CellsPerThread != nil && *c.CellsPerThread <= 0 {
		return fmt.Errorf("%w: cells_per_thread must be positive, got %d", ErrInvalid, *c.CellsPerThread)
	}
	if c.LocalMemoryBytes != nil && *c.LocalMemoryBytes <= 0 {
		return fmt.Errorf("%w: local_memory_bytes must be positive, got %d", ErrInvalid, *c.LocalMemoryBytes)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalid, *c.Workers)
	}

	if c.PhiBins != nil && *c.PhiBins <= 0 {
		return fmt.Errorf("%w: phi_bins must be positive, got %d", ErrInvalid, *c.PhiBins)
	}
	if len(c.PhiEdges) > 0 {
		if err := checkEdges("phi_edges", c.PhiEdges); err != nil {
			return err
		}
		first, last := c.PhiEdges[0], c.PhiEdges[len(c.PhiEdges)-1]
		if math.Abs(first+math.Pi) > 1e-6 || math.Abs(last-math.Pi) > 1e-6 {
			return fmt.Errorf("%w: phi_edges must span [-pi, pi], got [%f, %f]", ErrInvalid, first, last)
		}
	}
	if c.ZBins != nil && *c.ZBins <= 0 {
		return fmt.Errorf("%w: z_bins must be positive, got %d", ErrInvalid, *c.ZBins)
	}
	if c.GetZMin() >= c.GetZMax() {
		return fmt.Errorf("%w: z_min (%f) must be below z_max (%f)", ErrInvalid, c.GetZMin(), c.GetZMax())
	}
	if len(c.ZEdges) > 0 {
		if err := checkEdges("z_edges", c.ZEdges); err != nil {
			return err
		}
	}

	if c.GetRMin() >= c.GetRMax() {
		return fmt.Errorf("%w: r_min (%f) must be below r_max (%f)", ErrInvalid, c.GetRMin(), c.GetRMax())
	}
	if c.GetDeltaRMin() < 0 || c.GetDeltaRMin() >= c.GetDeltaRMax() {
		return fmt.Errorf("%w: delta_r range [%f, %f] is empty", ErrInvalid, c.GetDeltaRMin(), c.GetDeltaRMax())
	}
	if c.GetCotThetaMax() <= 0 {
		return fmt.Errorf("%w: cot_theta_max must be positive, got %f", ErrInvalid, c.GetCotThetaMax())
	}
	if c.GetCollisionZMin() > c.GetCollisionZMax() {
		return fmt.Errorf("%w: collision_z_min must not exceed collision_z_max", ErrInvalid)
	}
	if c.GetImpactMax() < 0 {
		return fmt.Errorf("%w: impact_max must be non-negative, got %f", ErrInvalid, c.GetImpactMax())
	}
	if c.GetMinPt() < 0 {
		return fmt.Errorf("%w: min_pt must be non-negative, got %f", ErrInvalid, c.GetMinPt())
	}
	if s := c.GetCurvatureSign(); s < -1 || s > 1 {
		return fmt.Errorf("%w: curvature_sign must be -1, 0 or 1, got %d", ErrInvalid, s)
	}
	if c.GetPhiNeighbors() < 0 || c.GetZNeighbors() < 0 {
		return fmt.Errorf("%w: neighbour ranges must be non-negative", ErrInvalid)
	}

	if c.MaxSeedsPerMiddle != nil && *c.MaxSeedsPerMiddle <= 0 {
		return fmt.Errorf("%w: max_seeds_per_middle must be positive, got %d", ErrInvalid, *c.MaxSeedsPerMiddle)
	}
	if c.CompatSeedLimit != nil && *c.CompatSeedLimit < 0 {
		return fmt.Errorf("%w: compat_seed_limit must be non-negative, got %d", ErrInvalid, *c.CompatSeedLimit)
	}

	if c.BField != nil && len(c.BField) != 3 {
		return fmt.Errorf("%w: b_field must have 3 components, got %d", ErrInvalid, len(c.BField))
	}

	if c.GetRelTolerance() < 0 || c.GetAbsTolerance() < 0 {
		return fmt.Errorf("%w: tolerances must be non-negative", ErrInvalid)
	}

	return nil
}

func checkEdges(name string, edges []float64) error {
	if len(edges) < 2 {
		return fmt.Errorf("%w: %s needs at least 2 edges, got %d", ErrInvalid, name, len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return fmt.Errorf("%w: %s must be strictly increasing (index %d)", ErrInvalid, name, i)
		}
	}
	return nil
}

// GetTargetPartitionSize returns the target_partition_size value or the default.
func (c *TuningConfig) GetTargetPartitionSize() int {
	if c.TargetPartitionSize == nil {
		return 1024 // default
	}
	return *c.TargetPartitionSize
}

// GetCellsPerThread returns the cells_per_thread value or the default.
func (c *TuningConfig) GetCellsPerThread() int {
	if c.CellsPerThread == nil {
		return 8 // default
	}
	return *c.CellsPerThread
}

// GetLocalMemoryBytes returns the local_memory_bytes value or the default.
// The default mirrors the 48KiB shared memory of a typical GPU block.
func (c *TuningConfig) GetLocalMemoryBytes() int {
	if c.LocalMemoryBytes == nil {
		return 48 * 1024 // default
	}
	return *c.LocalMemoryBytes
}

// GetWorkers returns the workers value or the default. Zero means
// GOMAXPROCS workers.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0 // default
	}
	return *c.Workers
}

// GetCanonicalOrder returns the canonical_order value or the default.
func (c *TuningConfig) GetCanonicalOrder() bool {
	if c.CanonicalOrder == nil {
		return true // default
	}
	return *c.CanonicalOrder
}

// GetPhiBins returns the phi_bins value or the default.
func (c *TuningConfig) GetPhiBins() int {
	if c.PhiBins == nil {
		return 64 // default
	}
	return *c.PhiBins
}

// GetZMin returns the z_min value or the default (mm).
func (c *TuningConfig) GetZMin() float64 {
	if c.ZMin == nil {
		return -500 // default
	}
	return *c.ZMin
}

// GetZMax returns the z_max value or the default (mm).
func (c *TuningConfig) GetZMax() float64 {
	if c.ZMax == nil {
		return 500 // default
	}
	return *c.ZMax
}

// GetZBins returns the z_bins value or the default.
func (c *TuningConfig) GetZBins() int {
	if c.ZBins == nil {
		return 20 // default
	}
	return *c.ZBins
}

// GetRMin returns the r_min value or the default (mm).
func (c *TuningConfig) GetRMin() float64 {
	if c.RMin == nil {
		return 0 // default
	}
	return *c.RMin
}

// GetRMax returns the r_max value or the default (mm).
func (c *TuningConfig) GetRMax() float64 {
	if c.RMax == nil {
		return 600 // default
	}
	return *c.RMax
}

// GetDeltaRMin returns the delta_r_min value or the default (mm).
func (c *TuningConfig) GetDeltaRMin() float64 {
	if c.DeltaRMin == nil {
		return 5 // default
	}
	return *c.DeltaRMin
}

// GetDeltaRMax returns the delta_r_max value or the default (mm).
func (c *TuningConfig) GetDeltaRMax() float64 {
	if c.DeltaRMax == nil {
		return 160 // default
	}
	return *c.DeltaRMax
}

// GetCotThetaMax returns the cot_theta_max value or the default.
// 7.40627 corresponds to |eta| < 2.7.
func (c *TuningConfig) GetCotThetaMax() float64 {
	if c.CotThetaMax == nil {
		return 7.40627 // default
	}
	return *c.CotThetaMax
}

// GetCollisionZMin returns the collision_z_min value or the default (mm).
func (c *TuningConfig) GetCollisionZMin() float64 {
	if c.CollisionZMin == nil {
		return -150 // default
	}
	return *c.CollisionZMin
}

// GetCollisionZMax returns the collision_z_max value or the default (mm).
func (c *TuningConfig) GetCollisionZMax() float64 {
	if c.CollisionZMax == nil {
		return 150 // default
	}
	return *c.CollisionZMax
}

// GetImpactMax returns the impact_max value or the default (mm).
func (c *TuningConfig) GetImpactMax() float64 {
	if c.ImpactMax == nil {
		return 10 // default
	}
	return *c.ImpactMax
}

// GetMinPt returns the min_pt value or the default (GeV).
func (c *TuningConfig) GetMinPt() float64 {
	if c.MinPt == nil {
		return 0.5 // default
	}
	return *c.MinPt
}

// GetDeltaCotThetaTolerance returns the delta_cot_theta_tolerance value or the default.
func (c *TuningConfig) GetDeltaCotThetaTolerance() float64 {
	if c.DeltaCotThetaTolerance == nil {
		return 0.05 // default
	}
	return *c.DeltaCotThetaTolerance
}

// GetCurvatureSign returns the curvature_sign value or the default (any sign).
func (c *TuningConfig) GetCurvatureSign() int {
	if c.CurvatureSign == nil {
		return 0 // default
	}
	return *c.CurvatureSign
}

// GetPhiNeighbors returns the phi_neighbors value or the default.
func (c *TuningConfig) GetPhiNeighbors() int {
	if c.PhiNeighbors == nil {
		return 1 // default
	}
	return *c.PhiNeighbors
}

// GetZNeighbors returns the z_neighbors value or the default.
func (c *TuningConfig) GetZNeighbors() int {
	if c.ZNeighbors == nil {
		return 1 // default
	}
	return *c.ZNeighbors
}

// GetMaxSeedsPerMiddle returns the max_seeds_per_middle value or the default.
func (c *TuningConfig) GetMaxSeedsPerMiddle() int {
	if c.MaxSeedsPerMiddle == nil {
		return 5 // default
	}
	return *c.MaxSeedsPerMiddle
}

// GetImpactWeight returns the impact_weight value or the default.
func (c *TuningConfig) GetImpactWeight() float64 {
	if c.ImpactWeight == nil {
		return 1.0 // default
	}
	return *c.ImpactWeight
}

// GetUncertaintyWeight returns the uncertainty_weight value or the default.
func (c *TuningConfig) GetUncertaintyWeight() float64 {
	if c.UncertaintyWeight == nil {
		return 10.0 // default
	}
	return *c.UncertaintyWeight
}

// GetCompatSeedWeight returns the compat_seed_weight value or the default.
func (c *TuningConfig) GetCompatSeedWeight() float64 {
	if c.CompatSeedWeight == nil {
		return 200.0 // default
	}
	return *c.CompatSeedWeight
}

// GetCompatSeedLimit returns the compat_seed_limit value or the default.
func (c *TuningConfig) GetCompatSeedLimit() int {
	if c.CompatSeedLimit == nil {
		return 2 // default
	}
	return *c.CompatSeedLimit
}

// GetCompatCurvatureTolerance returns the compat_curvature_tolerance value or the default (1/mm).
func (c *TuningConfig) GetCompatCurvatureTolerance() float64 {
	if c.CompatCurvatureTolerance == nil {
		return 1e-4 // default
	}
	return *c.CompatCurvatureTolerance
}

// GetMinCompatDeltaR returns the min_compat_delta_r value or the default (mm).
func (c *TuningConfig) GetMinCompatDeltaR() float64 {
	if c.MinCompatDeltaR == nil {
		return 5 // default
	}
	return *c.MinCompatDeltaR
}

// GetBField returns the b_field value or the default (2T along z).
func (c *TuningConfig) GetBField() [3]float64 {
	if len(c.BField) != 3 {
		return [3]float64{0, 0, 2.0} // default
	}
	return [3]float64{c.BField[0], c.BField[1], c.BField[2]}
}

// GetSigmaD0 returns the sigma_d0 value or the default (mm).
func (c *TuningConfig) GetSigmaD0() float64 {
	if c.SigmaD0 == nil {
		return 0.1 // default
	}
	return *c.SigmaD0
}

// GetSigmaZ0 returns the sigma_z0 value or the default (mm).
func (c *TuningConfig) GetSigmaZ0() float64 {
	if c.SigmaZ0 == nil {
		return 0.1 // default
	}
	return *c.SigmaZ0
}

// GetSigmaPhi returns the sigma_phi value or the default (rad).
func (c *TuningConfig) GetSigmaPhi() float64 {
	if c.SigmaPhi == nil {
		return 0.02 // default
	}
	return *c.SigmaPhi
}

// GetSigmaTheta returns the sigma_theta value or the default (rad).
func (c *TuningConfig) GetSigmaTheta() float64 {
	if c.SigmaTheta == nil {
		return 0.02 // default
	}
	return *c.SigmaTheta
}

// GetSigmaQOPRel returns the sigma_qop_rel value or the default.
func (c *TuningConfig) GetSigmaQOPRel() float64 {
	if c.SigmaQOPRel == nil {
		return 0.1 // default
	}
	return *c.SigmaQOPRel
}

// GetRelTolerance returns the rel_tolerance value or the default.
func (c *TuningConfig) GetRelTolerance() float64 {
	if c.RelTolerance == nil {
		return 1e-6 // default
	}
	return *c.RelTolerance
}

// GetAbsTolerance returns the abs_tolerance value or the default.
func (c *TuningConfig) GetAbsTolerance() float64 {
	if c.AbsTolerance == nil {
		return 1e-6 // default
	}
	return *c.AbsTolerance
}
