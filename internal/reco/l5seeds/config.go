package l5seeds

import (
	"github.com/banshee-data/seedline/internal/config"
)

// FinderConfig holds the doublet and triplet cuts.
type FinderConfig struct {
	RMin, RMax               float64 // middle spacepoint radius window (mm)
	DeltaRMin, DeltaRMax     float64 // radial distance between doublet members (mm)
	CotThetaMax              float64
	CollisionZMin            float64 // doublet z at r = 0 (mm)
	CollisionZMax            float64
	ImpactMax                float64 // transverse impact parameter (mm)
	MinPt                    float64 // GeV
	DeltaCotThetaTolerance   float64
	CurvatureSign            int // 0 accepts both signs
	PhiNeighbors, ZNeighbors int
	BField                   [3]float64 // Tesla; only the z component is used
}

// FilterConfig holds the triplet scoring weights.
type FilterConfig struct {
	MaxSeedsPerMiddle        int
	ImpactWeight             float64
	UncertaintyWeight        float64
	CompatSeedWeight         float64
	CompatSeedLimit          int
	CompatCurvatureTolerance float64
	MinCompatDeltaR          float64 // mm
}

// DefaultFinderConfig returns the built-in cuts.
func DefaultFinderConfig() FinderConfig {
	return FinderConfigFromTuning(config.EmptyTuningConfig())
}

// DefaultFilterConfig returns the built-in scoring.
func DefaultFilterConfig() FilterConfig {
	return FilterConfigFromTuning(config.EmptyTuningConfig())
}

// FinderConfigFromTuning builds a FinderConfig from a loaded TuningConfig.
func FinderConfigFromTuning(cfg *config.TuningConfig) FinderConfig {
	return FinderConfig{
		RMin:                   cfg.GetRMin(),
		RMax:                   cfg.GetRMax(),
		DeltaRMin:              cfg.GetDeltaRMin(),
		DeltaRMax:              cfg.GetDeltaRMax(),
		CotThetaMax:            cfg.GetCotThetaMax(),
		CollisionZMin:          cfg.GetCollisionZMin(),
		CollisionZMax:          cfg.GetCollisionZMax(),
		ImpactMax:              cfg.GetImpactMax(),
		MinPt:                  cfg.GetMinPt(),
		DeltaCotThetaTolerance: cfg.GetDeltaCotThetaTolerance(),
		CurvatureSign:          cfg.GetCurvatureSign(),
		PhiNeighbors:           cfg.GetPhiNeighbors(),
		ZNeighbors:             cfg.GetZNeighbors(),
		BField:                 cfg.GetBField(),
	}
}

// FilterConfigFromTuning builds a FilterConfig from a loaded TuningConfig.
func FilterConfigFromTuning(cfg *config.TuningConfig) FilterConfig {
	return FilterConfig{
		MaxSeedsPerMiddle:        cfg.GetMaxSeedsPerMiddle(),
		ImpactWeight:             cfg.GetImpactWeight(),
		UncertaintyWeight:        cfg.GetUncertaintyWeight(),
		CompatSeedWeight:         cfg.GetCompatSeedWeight(),
		CompatSeedLimit:          cfg.GetCompatSeedLimit(),
		CompatCurvatureTolerance: cfg.GetCompatCurvatureTolerance(),
		MinCompatDeltaR:          cfg.GetMinCompatDeltaR(),
	}
}

// minHelixRadius returns the helix radius in mm of a track at the minimum
// pT, or 0 when the cut is disabled.
func (c FinderConfig) minHelixRadius() float64 {
	bz := c.BField[2]
	if c.MinPt <= 0 || bz == 0 {
		return 0
	}
	if bz < 0 {
		bz = -bz
	}
	return 1000 * c.MinPt / (0.299792458 * bz)
}
