package pipeline

import (
	"github.com/banshee-data/seedline/internal/config"
	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l2clusters"
	"github.com/banshee-data/seedline/internal/reco/l4grid"
	"github.com/banshee-data/seedline/internal/reco/l5seeds"
	"github.com/banshee-data/seedline/internal/reco/l6params"
	"github.com/banshee-data/seedline/internal/reco/validate"
)

// Settings bundles the per-stage configuration of a variant.
type Settings struct {
	Cluster          l2clusters.Config
	Grid             l4grid.Config
	Finder           l5seeds.FinderConfig
	Filter           l5seeds.FilterConfig
	Estimator        l6params.EstimatorConfig
	Tolerance        validate.Tolerance
	Workers          int
	LocalMemoryLimit int
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return SettingsFromTuning(config.EmptyTuningConfig())
}

// SettingsFromTuning builds Settings from a loaded TuningConfig.
func SettingsFromTuning(cfg *config.TuningConfig) Settings {
	return Settings{
		Cluster:          l2clusters.ConfigFromTuning(cfg),
		Grid:             l4grid.ConfigFromTuning(cfg),
		Finder:           l5seeds.FinderConfigFromTuning(cfg),
		Filter:           l5seeds.FilterConfigFromTuning(cfg),
		Estimator:        l6params.EstimatorConfigFromTuning(cfg),
		Tolerance:        validate.TolFromTuning(cfg),
		Workers:          cfg.GetWorkers(),
		LocalMemoryLimit: cfg.GetLocalMemoryBytes(),
	}
}

// Device returns the execution resources described by the settings.
func (s Settings) Device() *kernel.Device {
	return kernel.NewDevice(s.Workers, s.LocalMemoryLimit)
}
