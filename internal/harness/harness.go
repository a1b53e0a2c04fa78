package harness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/dataset"
	"github.com/banshee-data/dlo-eval/internal/monitoring"
	"github.com/banshee-data/dlo-eval/internal/timeutil"
)

// Sink persists finished runs.
type Sink interface {
	RecordRun(ctx context.Context, run *RunResult) error
}

// FrameResult is the outcome of evaluating one frame.
type FrameResult struct {
	Index          int   `json:"index"`
	TimestampNanos int64 `json:"timestamp_nanos,omitempty"`
	MarkerCount    int   `json:"marker_count"`
	// GroundTruthCount is the number of markers left after the bounds filter.
	GroundTruthCount int     `json:"ground_truth_count"`
	TrackedCount     int     `json:"tracked_count"`
	Reversals        int     `json:"reversals"`
	Flipped          bool    `json:"flipped"`
	Error            float64 `json:"error"`
	MaxError         float64 `json:"max_error"`
	ProcessingUs     int64   `json:"processing_us"`
	// Skipped holds the reason a frame could not be scored; empty if scored.
	Skipped string `json:"skipped,omitempty"`

	GroundTruth curve.Curve        `json:"-"`
	Closest     []curve.PointError `json:"-"`
}

// Evaluated reports whether the frame produced an error value.
func (r FrameResult) Evaluated() bool {
	return r.Skipped == ""
}

// Summary aggregates per-frame errors over the evaluated frames.
type Summary struct {
	Frames    int     `json:"frames"`
	Evaluated int     `json:"evaluated"`
	Skipped   int     `json:"skipped"`
	MeanError float64 `json:"mean_error"`
	StdDev    float64 `json:"std_dev"`
	Median    float64 `json:"median"`
	MinError  float64 `json:"min_error"`
	MaxError  float64 `json:"max_error"`
}

// RunResult is a complete evaluation of one recording.
type RunResult struct {
	// RunID is assigned by the Sink; empty if the run was not persisted.
	RunID      string        `json:"run_id,omitempty"`
	Recording  string        `json:"recording,omitempty"`
	Experiment Experiment    `json:"experiment"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Summary    Summary       `json:"summary"`
	Frames     []FrameResult `json:"frames"`
}

// Errors returns the error of every evaluated frame in frame order.
func (r *RunResult) Errors() []float64 {
	out := make([]float64, 0, len(r.Frames))
	for _, f := range r.Frames {
		if f.Evaluated() {
			out = append(out, f.Error)
		}
	}
	return out
}

// Harness evaluates recordings frame by frame.
type Harness struct {
	cfg    Config
	sorter *curve.Sorter
	clock  timeutil.Clock
	logf   func(format string, v ...interface{})
}

// New creates a Harness.
func New(cfg Config) *Harness {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Harness{
		cfg:    cfg,
		sorter: curve.NewSorter(cfg.Sorter),
		clock:  clock,
		logf:   monitoring.Prefixed("harness"),
	}
}

// EvaluateFrame sorts the frame's markers into ground truth and scores the
// tracked curve against it. Precondition failures are reported in Skipped.
func (h *Harness) EvaluateFrame(f dataset.Frame) (res FrameResult) {
	start := h.clock.Now()
	markers := f.MarkerPoints()
	tracked := f.TrackedCurve()
	filtered := h.cfg.Bounds.Filter(markers)

	res = FrameResult{
		Index:            f.Index,
		TimestampNanos:   f.TimestampNanos,
		MarkerCount:      len(markers),
		GroundTruthCount: len(filtered),
		TrackedCount:     len(tracked),
	}
	defer func() { res.ProcessingUs = h.clock.Since(start).Microseconds() }()

	rep, err := h.sorter.SortDetailed(filtered, h.cfg.Reference)
	if err != nil {
		res.Skipped = fmt.Sprintf("sort ground truth: %v", err)
		return res
	}
	res.GroundTruth = rep.Curve
	res.Reversals = rep.Reversals
	res.Flipped = rep.Flipped
	res.GroundTruthCount = len(rep.Curve)

	ce, err := curve.EvaluateCurve(tracked, rep.Curve)
	if err != nil {
		res.Skipped = fmt.Sprintf("evaluate tracked curve: %v", err)
		return res
	}
	res.Error = ce.Mean
	res.MaxError = ce.Max
	res.Closest = ce.Points
	return res
}

// Run evaluates frames concurrently (up to Config.Workers at a time) and
// returns results in input order. Cancelling ctx stops scheduling new frames
// and returns ctx's error.
func (h *Harness) Run(ctx context.Context, recording string, frames []dataset.Frame) (*RunResult, error) {
	run := &RunResult{
		Recording:  recording,
		Experiment: h.cfg.Experiment,
		StartedAt:  h.clock.Now(),
		Frames:     make([]FrameResult, len(frames)),
	}
	h.logf("evaluating %d frames (%s) with %d workers", len(frames), h.cfg.Experiment, h.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run.Frames[i] = h.EvaluateFrame(frames[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, f := range run.Frames {
		if !f.Evaluated() {
			h.logf("frame %d skipped: %s", f.Index, f.Skipped)
		}
	}

	run.Summary = Summarize(run.Frames)
	run.Duration = h.clock.Since(run.StartedAt)
	h.logf("%s: %d/%d frames evaluated, mean error %.4f (sd %.4f, max %.4f) in %v",
		h.cfg.Experiment, run.Summary.Evaluated, run.Summary.Frames,
		run.Summary.MeanError, run.Summary.StdDev, run.Summary.MaxError, run.Duration)

	if h.cfg.Sink != nil {
		if err := h.cfg.Sink.RecordRun(ctx, run); err != nil {
			return run, fmt.Errorf("record run: %w", err)
		}
		h.logf("recorded run %s", run.RunID)
	}
	return run, nil
}

// Summarize aggregates frame results. Skipped frames are counted but do not
// contribute to the statistics.
func Summarize(frames []FrameResult) Summary {
	s := Summary{Frames: len(frames)}
	errs := make([]float64, 0, len(frames))
	for _, f := range frames {
		if f.Evaluated() {
			errs = append(errs, f.Error)
		}
	}
	s.Evaluated = len(errs)
	s.Skipped = s.Frames - s.Evaluated
	if len(errs) == 0 {
		return s
	}

	if len(errs) == 1 {
		s.MeanError = errs[0]
	} else {
		s.MeanError, s.StdDev = stat.MeanStdDev(errs, nil)
	}
	sort.Float64s(errs)
	s.Median = stat.Quantile(0.5, stat.Empirical, errs, nil)
	s.MinError = floats.Min(errs)
	s.MaxError = floats.Max(errs)
	return s
}
