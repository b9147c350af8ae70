package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// Config holds the engine configuration.
type Config struct {
	SaveDir       string `json:"save_dir"`
	Seed          int64  `json:"seed"`
	GeneratorType string `json:"generator_type"` // "default" or "flat"

	// Window and detail.
	WindowWidth  int     `json:"window_width"` // regions per side
	TargetLevel  uint8   `json:"target_level"` // finest detail level wanted near the viewer
	BaseDistance float64 `json:"base_distance"`

	// Generation.
	Workers            int     `json:"workers"`
	NearBudget         int     `json:"near_budget"`
	FarBudget          int     `json:"far_budget"`
	NearLevelThreshold uint8   `json:"near_level_threshold"`
	GenerationTier     string  `json:"generation_tier"`
	SelectorRate       float64 `json:"selector_rate"` // selector runs per second

	// Persistence.
	QualityMode     string `json:"quality_mode"`
	SaveIntervalSec int    `json:"save_interval_sec"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SaveDir:            "./data",
		GeneratorType:      "default",
		WindowWidth:        5,
		TargetLevel:        0,
		BaseDistance:       64,
		Workers:            4,
		NearBudget:         32,
		FarBudget:          64,
		NearLevelThreshold: 4,
		GenerationTier:     lod.TierSurface.String(),
		SelectorRate:       20,
		QualityMode:        "high",
		SaveIntervalSec:    5,
	}
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["save-dir"] {
		cfg.SaveDir = fromFile.SaveDir
	}
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["generator"] {
		cfg.GeneratorType = fromFile.GeneratorType
	}
	if !explicitFlags["window-width"] {
		cfg.WindowWidth = fromFile.WindowWidth
	}
	if !explicitFlags["target-level"] {
		cfg.TargetLevel = fromFile.TargetLevel
	}
	if !explicitFlags["base-distance"] {
		cfg.BaseDistance = fromFile.BaseDistance
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["near-budget"] {
		cfg.NearBudget = fromFile.NearBudget
	}
	if !explicitFlags["far-budget"] {
		cfg.FarBudget = fromFile.FarBudget
	}
	if !explicitFlags["near-level"] {
		cfg.NearLevelThreshold = fromFile.NearLevelThreshold
	}
	if !explicitFlags["tier"] {
		cfg.GenerationTier = fromFile.GenerationTier
	}
	if !explicitFlags["selector-rate"] {
		cfg.SelectorRate = fromFile.SelectorRate
	}
	if !explicitFlags["quality"] {
		cfg.QualityMode = fromFile.QualityMode
	}
	if !explicitFlags["save-interval"] {
		cfg.SaveIntervalSec = fromFile.SaveIntervalSec
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.WindowWidth <= 0 {
		errs = append(errs, fmt.Errorf("window_width must be positive, got %d", c.WindowWidth))
	}
	if c.TargetLevel > uint8(lod.RegionLevel) {
		errs = append(errs, fmt.Errorf("target_level must be at most %d, got %d", lod.RegionLevel, c.TargetLevel))
	}
	if c.BaseDistance <= 0 {
		errs = append(errs, fmt.Errorf("base_distance must be positive, got %g", c.BaseDistance))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.NearBudget < 0 || c.FarBudget < 0 {
		errs = append(errs, fmt.Errorf("budgets must not be negative, got %d/%d", c.NearBudget, c.FarBudget))
	}
	if tier, err := lod.ParseTier(c.GenerationTier); err != nil {
		errs = append(errs, err)
	} else if tier == lod.TierEmpty {
		errs = append(errs, errors.New("generation_tier must not be empty"))
	}
	if c.SelectorRate <= 0 {
		errs = append(errs, fmt.Errorf("selector_rate must be positive, got %g", c.SelectorRate))
	}
	if c.QualityMode == "" {
		errs = append(errs, errors.New("quality_mode is required"))
	}
	if c.SaveIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("save_interval_sec must be positive, got %d", c.SaveIntervalSec))
	}
	return errors.Join(errs...)
}

// Tier returns the parsed generation tier. Call Validate first.
func (c *Config) Tier() lod.Tier {
	t, _ := lod.ParseTier(c.GenerationTier)
	return t
}

// Policy returns the detail policy described by the config.
func (c *Config) Policy() lod.DetailPolicy {
	return lod.DetailPolicy{BaseDistance: c.BaseDistance, Finest: lod.DetailLevel(c.TargetLevel)}
}

// SaveInterval returns the delay between background saves.
func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalSec) * time.Second
}
