package harness

import (
	"fmt"

	"github.com/banshee-data/dlo-eval/internal/config"
	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/timeutil"
)

// Experiment identifies what produced the tracked curves being scored.
type Experiment struct {
	Algorithm    string  `json:"algorithm"`
	Trial        int     `json:"trial"`
	OcclusionPct float64 `json:"occlusion_pct"`
}

func (e Experiment) String() string {
	return fmt.Sprintf("%s trial=%d occlusion=%g%%", e.Algorithm, e.Trial, e.OcclusionPct)
}

// Bounds drops marker detections below a per-axis minimum. X and Y limits
// are inclusive; a marker must lie strictly above MinZ. Nil limits are
// unbounded. These are properties of the capture setup (table height,
// camera depth), not of the curve geometry.
type Bounds struct {
	MinX, MinY, MinZ *float64
}

// Filter returns the points inside the bounds, preserving order.
func (b *Bounds) Filter(points []curve.Point3) []curve.Point3 {
	if b == nil {
		return points
	}
	out := make([]curve.Point3, 0, len(points))
	for _, p := range points {
		if b.MinX != nil && p.X < *b.MinX {
			continue
		}
		if b.MinY != nil && p.Y < *b.MinY {
			continue
		}
		if b.MinZ != nil && p.Z <= *b.MinZ {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Config holds everything a Harness needs for one run.
type Config struct {
	Experiment Experiment
	// Reference orients every sorted ground-truth curve.
	Reference curve.Point3
	Sorter    curve.SorterConfig
	Bounds    *Bounds
	// Workers bounds the number of frames evaluated concurrently. Zero means 1.
	Workers int
	// Sink, if set, receives the finished run.
	Sink Sink
	// Clock times the run and each frame. Nil uses the wall clock.
	Clock timeutil.Clock
}

// ConfigFromEval builds a harness Config from a loaded EvalConfig.
func ConfigFromEval(cfg *config.EvalConfig) Config {
	hc := Config{
		Experiment: Experiment{
			Algorithm:    cfg.GetAlgorithm(),
			Trial:        cfg.GetTrial(),
			OcclusionPct: cfg.GetOcclusionPct(),
		},
		Reference: cfg.GetReference(),
		Sorter:    cfg.GetSorterConfig(),
		Workers:   cfg.GetWorkers(),
	}
	if x, y, z := cfg.GetMarkerMin(); x != nil || y != nil || z != nil {
		hc.Bounds = &Bounds{MinX: x, MinY: y, MinZ: z}
	}
	return hc
}
