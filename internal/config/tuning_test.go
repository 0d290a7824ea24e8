package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.TargetPartitionSize == nil || *cfg.TargetPartitionSize != 1024 {
		t.Errorf("Expected TargetPartitionSize 1024, got %v", cfg.TargetPartitionSize)
	}
	if cfg.CanonicalOrder == nil || *cfg.CanonicalOrder != true {
		t.Errorf("Expected CanonicalOrder true, got %v", cfg.CanonicalOrder)
	}
	if cfg.MaxSeedsPerMiddle == nil || *cfg.MaxSeedsPerMiddle != 5 {
		t.Errorf("Expected MaxSeedsPerMiddle 5, got %v", cfg.MaxSeedsPerMiddle)
	}

	if cfg.GetCellsPerThread() != 8 {
		t.Errorf("GetCellsPerThread() = %d, want 8", cfg.GetCellsPerThread())
	}
	if cfg.GetBField() != [3]float64{0, 0, 2.0} {
		t.Errorf("GetBField() = %v, want [0 0 2]", cfg.GetBField())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEmptyTuningConfig_GettersReturnDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	def := DefaultTuningConfig()

	if cfg.GetTargetPartitionSize() != def.GetTargetPartitionSize() {
		t.Errorf("target partition size mismatch: %d vs %d", cfg.GetTargetPartitionSize(), def.GetTargetPartitionSize())
	}
	if cfg.GetDeltaRMax() != def.GetDeltaRMax() {
		t.Errorf("delta_r_max mismatch: %f vs %f", cfg.GetDeltaRMax(), def.GetDeltaRMax())
	}
	if cfg.GetLocalMemoryBytes() != 48*1024 {
		t.Errorf("GetLocalMemoryBytes() = %d, want %d", cfg.GetLocalMemoryBytes(), 48*1024)
	}
}

func TestLoadTuningConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "target_partition_size": 256,
  "cells_per_thread": 4,
  "phi_bins": 32,
  "b_field": [0, 0, 4.0],
  "max_seeds_per_middle": 3
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetTargetPartitionSize() != 256 {
		t.Errorf("Expected TargetPartitionSize 256, got %d", cfg.GetTargetPartitionSize())
	}
	if cfg.GetCellsPerThread() != 4 {
		t.Errorf("Expected CellsPerThread 4, got %d", cfg.GetCellsPerThread())
	}
	if cfg.GetPhiBins() != 32 {
		t.Errorf("Expected PhiBins 32, got %d", cfg.GetPhiBins())
	}
	if cfg.GetBField()[2] != 4.0 {
		t.Errorf("Expected Bz 4.0, got %f", cfg.GetBField()[2])
	}
	// Omitted fields fall back to defaults.
	if cfg.GetZBins() != 20 {
		t.Errorf("Expected default ZBins 20, got %d", cfg.GetZBins())
	}
}

func TestLoadTuningConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.yaml")

	testYAML := `
target_partition_size: 512
delta_r_min: 10
delta_r_max: 120
phi_edges: [-3.141592653589793, -1.0, 0.0, 1.0, 3.141592653589793]
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	if cfg.GetTargetPartitionSize() != 512 {
		t.Errorf("Expected TargetPartitionSize 512, got %d", cfg.GetTargetPartitionSize())
	}
	if cfg.GetDeltaRMin() != 10 || cfg.GetDeltaRMax() != 120 {
		t.Errorf("Expected delta_r [10,120], got [%f,%f]", cfg.GetDeltaRMin(), cfg.GetDeltaRMax())
	}
	if len(cfg.PhiEdges) != 5 {
		t.Errorf("Expected 5 phi edges, got %d", len(cfg.PhiEdges))
	}
}

func TestLoadTuningConfig_RejectsExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.toml")
	if err := os.WriteFile(configPath, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("expected error for .toml extension")
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	if _, err := LoadTuningConfig("/nonexistent/tuning.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadTuningConfig_InvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(configPath, []byte(`{"target_partition_size": 0}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid in chain, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *TuningConfig)
		wantErr bool
	}{
		{"defaults", func(c *TuningConfig) {}, false},
		{"negative cells per thread", func(c *TuningConfig) { c.CellsPerThread = ptrInt(-1) }, true},
		{"inverted z range", func(c *TuningConfig) { c.ZMin = ptrFloat64(10); c.ZMax = ptrFloat64(-10) }, true},
		{"empty delta r", func(c *TuningConfig) { c.DeltaRMin = ptrFloat64(50); c.DeltaRMax = ptrFloat64(50) }, true},
		{"bad curvature sign", func(c *TuningConfig) { c.CurvatureSign = ptrInt(2) }, true},
		{"short b field", func(c *TuningConfig) { c.BField = []float64{0, 2} }, true},
		{"non-monotonic z edges", func(c *TuningConfig) { c.ZEdges = []float64{0, 10, 5} }, true},
		{"phi edges not spanning", func(c *TuningConfig) { c.PhiEdges = []float64{-1, 0, 1} }, true},
		{"phi edges spanning", func(c *TuningConfig) { c.PhiEdges = []float64{-math.Pi, 0, math.Pi} }, false},
		{"zero max seeds", func(c *TuningConfig) { c.MaxSeedsPerMiddle = ptrInt(0) }, true},
		{"negative tolerance", func(c *TuningConfig) { c.RelTolerance = ptrFloat64(-1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTuningConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetTargetPartitionSize() != DefaultTuningConfig().GetTargetPartitionSize() {
		t.Errorf("defaults file disagrees with built-in default: %d", cfg.GetTargetPartitionSize())
	}
	if cfg.GetMaxSeedsPerMiddle() != 5 {
		t.Errorf("Expected MaxSeedsPerMiddle 5 from defaults file, got %d", cfg.GetMaxSeedsPerMiddle())
	}
}
