package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/units"
)

// DefaultAlgorithm labels runs whose config does not name the tracker.
const DefaultAlgorithm = "unlabelled"

// EvalConfig is the on-disk configuration for an evaluation run. Every field
// is optional; the Get* methods return the default for anything unset, so a
// partial file is safe.
type EvalConfig struct {
	// Experiment labels (recorded with results, never read by the geometry)
	Algorithm    *string  `json:"algorithm,omitempty"`
	Trial        *int     `json:"trial,omitempty"`
	OcclusionPct *float64 `json:"occlusion_pct,omitempty"`

	// Length unit of the recording's coordinates. Recordings are converted to
	// metres on load; reference, bounds and threshold are always metres.
	Units *string `json:"units,omitempty"`

	// Curve sorting
	Reference            *[3]float64 `json:"reference,omitempty"` // known fixed end of the object
	OrientationThreshold *float64    `json:"orientation_threshold,omitempty"`
	DuplicatePolicy      *string     `json:"duplicate_policy,omitempty"` // attach, dedupe or reject

	// Marker validity bounds applied before sorting (detector specific)
	MarkerMinX *float64 `json:"marker_min_x,omitempty"`
	MarkerMinY *float64 `json:"marker_min_y,omitempty"`
	MarkerMinZ *float64 `json:"marker_min_z,omitempty"`

	// Frame-level parallelism
	Workers *int `json:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultEvalConfig returns a config with every field populated with its default.
func DefaultEvalConfig() *EvalConfig {
	return &EvalConfig{
		Algorithm:            ptrString(DefaultAlgorithm),
		Trial:                ptrInt(0),
		OcclusionPct:         ptrFloat64(0),
		Units:                ptrString(units.Metres),
		Reference:            &[3]float64{},
		OrientationThreshold: ptrFloat64(curve.DefaultOrientationThreshold),
		DuplicatePolicy:      ptrString(curve.DuplicatesAttach.String()),
		Workers:              ptrInt(runtime.GOMAXPROCS(0)),
	}
}

// LoadEvalConfig loads an EvalConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadEvalConfig(path string) (*EvalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &EvalConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *EvalConfig) Validate() error {
	if c.Algorithm != nil && *c.Algorithm == "" {
		return fmt.Errorf("algorithm must not be empty when set")
	}
	if c.Trial != nil && *c.Trial < 0 {
		return fmt.Errorf("trial must be non-negative, got %d", *c.Trial)
	}
	if c.OcclusionPct != nil {
		if v := *c.OcclusionPct; math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("occlusion_pct must be between 0 and 100, got %f", v)
		}
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}
	if c.Reference != nil {
		for i, v := range c.Reference {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("reference[%d] must be finite, got %f", i, v)
			}
		}
	}
	if c.OrientationThreshold != nil {
		if v := *c.OrientationThreshold; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("orientation_threshold must be positive, got %f", v)
		}
	}
	if c.DuplicatePolicy != nil {
		if _, err := curve.ParseDuplicatePolicy(*c.DuplicatePolicy); err != nil {
			return fmt.Errorf("invalid duplicate_policy: %w", err)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetAlgorithm returns the algorithm label or the default.
func (c *EvalConfig) GetAlgorithm() string {
	if c.Algorithm == nil || *c.Algorithm == "" {
		return DefaultAlgorithm
	}
	return *c.Algorithm
}

// GetTrial returns the trial index or 0.
func (c *EvalConfig) GetTrial() int {
	if c.Trial == nil {
		return 0
	}
	return *c.Trial
}

// GetOcclusionPct returns the occlusion percentage or 0.
func (c *EvalConfig) GetOcclusionPct() float64 {
	if c.OcclusionPct == nil {
		return 0
	}
	return *c.OcclusionPct
}

// GetUnits returns the recording length unit or metres.
func (c *EvalConfig) GetUnits() string {
	if c.Units == nil || !units.IsValid(*c.Units) {
		return units.Metres
	}
	return *c.Units
}

// GetReference returns the orientation reference point or the origin.
func (c *EvalConfig) GetReference() curve.Point3 {
	if c.Reference == nil {
		return curve.Point3{}
	}
	return curve.Point3{X: c.Reference[0], Y: c.Reference[1], Z: c.Reference[2]}
}

// GetOrientationThreshold returns the orientation threshold or the default.
func (c *EvalConfig) GetOrientationThreshold() float64 {
	if c.OrientationThreshold == nil {
		return curve.DefaultOrientationThreshold
	}
	return *c.OrientationThreshold
}

// GetDuplicatePolicy returns the duplicate policy or DuplicatesAttach.
// An unparseable value (rejected by Validate) also yields the default.
func (c *EvalConfig) GetDuplicatePolicy() curve.DuplicatePolicy {
	if c.DuplicatePolicy == nil {
		return curve.DuplicatesAttach
	}
	p, err := curve.ParseDuplicatePolicy(*c.DuplicatePolicy)
	if err != nil {
		return curve.DuplicatesAttach
	}
	return p
}

// GetSorterConfig assembles the curve sorter parameters.
func (c *EvalConfig) GetSorterConfig() curve.SorterConfig {
	return curve.SorterConfig{
		OrientationThreshold: c.GetOrientationThreshold(),
		Duplicates:           c.GetDuplicatePolicy(),
	}
}

// GetMarkerMin returns the per-axis marker lower bounds; nil means unbounded.
func (c *EvalConfig) GetMarkerMin() (x, y, z *float64) {
	return c.MarkerMinX, c.MarkerMinY, c.MarkerMinZ
}

// GetWorkers returns the worker count or GOMAXPROCS.
func (c *EvalConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}
