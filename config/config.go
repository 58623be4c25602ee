// config/config.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package config holds the tunables that control deconfliction. They are
// loaded once and passed explicitly into the engine's entry points.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sarplan/deconflict/util"
)

// Tunables are the knobs of the deconfliction engine. Fields
// absent from a tunables file keep their defaults.
type Tunables struct {
	// MinShare is the fraction of a nest's weight split evenly among the
	// PVs with positive weight as a floor.
	MinShare float64 `yaml:"min_share"`

	// MaxBearings caps the number of critical bearings tried per nest.
	MaxBearings int `yaml:"max_bearings"`
	// BearingMergeDeg folds together top-loop edges whose line angles
	// differ by less than this.
	BearingMergeDeg float64 `yaml:"bearing_merge_deg"`
	// EvenBearings selects evenly spaced bearings instead of critical
	// bearings taken from the top loop's edges.
	EvenBearings    bool `yaml:"even_bearings"`
	NumEvenBearings int  `yaml:"num_even_bearings"`

	// Stages is the number of time samples through each PV's window.
	Stages int `yaml:"stages"`

	// Accordion grid sizing.
	GridTargetCells int `yaml:"grid_target_cells"`
	MinCells        int `yaml:"min_cells"`
	MaxCells        int `yaml:"max_cells"`

	// Parallelism bounds concurrent bearing trials; 0 means one per CPU.
	Parallelism int `yaml:"parallelism"`

	ScoreCacheSize   int `yaml:"score_cache_size"`
	FailureCacheSize int `yaml:"failure_cache_size"`

	// MinFootprintScale multiplies each PV's minimum footprint area; the
	// optimizer accepts an undersized rectangle when it cannot grow.
	MinFootprintScale float64 `yaml:"min_footprint_scale"`
}

const maxFileSize = 1 << 20

func Default() *Tunables {
	return &Tunables{
		MinShare:          0.1,
		MaxBearings:       8,
		BearingMergeDeg:   22.5,
		NumEvenBearings:   8,
		Stages:            3,
		GridTargetCells:   12,
		MinCells:          3,
		MaxCells:          25,
		ScoreCacheSize:    4096,
		FailureCacheSize:  256,
		MinFootprintScale: 1,
	}
}

// Load reads a YAML tunables file; fields it doesn't mention keep their
// default values.
func Load(path string) (*Tunables, error) {
	path = filepath.Clean(path)
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("tunables file must have .yaml extension, got %q", ext)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tunables file: %w", err)
	}
	if fi.Size() > maxFileSize {
		return nil, fmt.Errorf("tunables file too large: %d bytes (max %d)", fi.Size(), maxFileSize)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tunables file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Tunables, error) {
	t := Default()
	if err := yaml.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("failed to parse tunables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tunables: %w", err)
	}
	return t, nil
}

func (t *Tunables) Validate() error {
	var e util.ErrorLogger
	e.Push("tunables")

	if t.MinShare < 0 || t.MinShare > 1 {
		e.ErrorString("min_share must be between 0 and 1, got %f", t.MinShare)
	}
	if t.MaxBearings < 1 {
		e.ErrorString("max_bearings must be positive, got %d", t.MaxBearings)
	}
	if t.BearingMergeDeg < 0 || t.BearingMergeDeg >= 90 {
		e.ErrorString("bearing_merge_deg must be in [0,90), got %f", t.BearingMergeDeg)
	}
	if t.EvenBearings && t.NumEvenBearings < 1 {
		e.ErrorString("num_even_bearings must be positive, got %d", t.NumEvenBearings)
	}
	if t.Stages < 1 {
		e.ErrorString("stages must be positive, got %d", t.Stages)
	}
	if t.MinCells < 3 {
		e.ErrorString("min_cells must be at least 3, got %d", t.MinCells)
	}
	if t.MaxCells < t.MinCells {
		e.ErrorString("max_cells %d less than min_cells %d", t.MaxCells, t.MinCells)
	}
	if t.GridTargetCells < 1 {
		e.ErrorString("grid_target_cells must be positive, got %d", t.GridTargetCells)
	}
	if t.Parallelism < 0 {
		e.ErrorString("parallelism must be non-negative, got %d", t.Parallelism)
	}
	if t.ScoreCacheSize < 1 || t.FailureCacheSize < 1 {
		e.ErrorString("cache sizes must be positive")
	}
	if t.MinFootprintScale <= 0 {
		e.ErrorString("min_footprint_scale must be positive, got %f", t.MinFootprintScale)
	}

	e.Pop()
	return e.Err()
}

// Bytes returns the YAML encoding of the tunables.
func (t *Tunables) Bytes() ([]byte, error) {
	return yaml.Marshal(t)
}
