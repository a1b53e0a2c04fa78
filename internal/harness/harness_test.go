package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dlo-eval/internal/config"
	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/dataset"
	"github.com/banshee-data/dlo-eval/internal/monitoring"
	"github.com/banshee-data/dlo-eval/internal/timeutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.Logf = original })
}

func ptr(v float64) *float64 { return &v }

// chainFrame builds a frame whose markers are a scrambled straight cable along
// x at height z, and whose tracked curve is the same cable offset by dy.
func chainFrame(index int, z, dy float64) dataset.Frame {
	return dataset.Frame{
		Index:          index,
		TimestampNanos: int64(index) * 33_000_000,
		Markers:        [][3]float64{{0.2, 0, z}, {0, 0, z}, {0.3, 0, z}, {0.1, 0, z}},
		Tracked:        [][3]float64{{0, dy, z}, {0.15, dy, z}, {0.3, dy, z}},
	}
}

type recordingSink struct {
	runs []*RunResult
	err  error
}

func (s *recordingSink) RecordRun(_ context.Context, run *RunResult) error {
	if s.err != nil {
		return s.err
	}
	run.RunID = "run-1"
	s.runs = append(s.runs, run)
	return nil
}

func TestEvaluateFrame(t *testing.T) {
	h := New(Config{
		Reference: curve.Point3{Z: 1},
		Sorter:    curve.DefaultSorterConfig(),
	})

	t.Run("exact match", func(t *testing.T) {
		res := h.EvaluateFrame(chainFrame(0, 1, 0))
		require.True(t, res.Evaluated(), res.Skipped)
		assert.InDelta(t, 0, res.Error, 1e-12)
		assert.Equal(t, 4, res.MarkerCount)
		assert.Equal(t, 4, res.GroundTruthCount)
		assert.Equal(t, 3, res.TrackedCount)
		assert.Equal(t, curve.Point3{Z: 1}, res.GroundTruth[0], "ground truth starts at the reference end")
		assert.Len(t, res.Closest, 3)
	})

	t.Run("offset tracked curve", func(t *testing.T) {
		res := h.EvaluateFrame(chainFrame(1, 1, 0.02))
		require.True(t, res.Evaluated(), res.Skipped)
		assert.InDelta(t, 0.02, res.Error, 1e-12)
		assert.InDelta(t, 0.02, res.MaxError, 1e-12)
	})

	t.Run("too few markers", func(t *testing.T) {
		f := chainFrame(2, 1, 0)
		f.Markers = f.Markers[:1]
		res := h.EvaluateFrame(f)
		assert.False(t, res.Evaluated())
		assert.Contains(t, res.Skipped, "sort ground truth")
		assert.Contains(t, res.Skipped, "too few points")
	})

	t.Run("empty tracked curve", func(t *testing.T) {
		f := chainFrame(3, 1, 0)
		f.Tracked = nil
		res := h.EvaluateFrame(f)
		assert.False(t, res.Evaluated())
		assert.Contains(t, res.Skipped, "evaluate tracked curve")
	})
}

func TestEvaluateFrameBounds(t *testing.T) {
	h := New(Config{
		Reference: curve.Point3{Z: 1},
		Bounds:    &Bounds{MinZ: ptr(0.58)},
	})

	f := chainFrame(0, 1, 0)
	f.Markers = append(f.Markers, [3]float64{5, 5, 0.2}) // table reflection
	res := h.EvaluateFrame(f)

	require.True(t, res.Evaluated(), res.Skipped)
	assert.Equal(t, 5, res.MarkerCount)
	assert.Equal(t, 4, res.GroundTruthCount)
	assert.InDelta(t, 0, res.Error, 1e-12)
}

func TestBoundsFilter(t *testing.T) {
	pts := []curve.Point3{{X: -0.2, Y: 0, Z: 0.7}, {X: 0, Y: -0.2, Z: 0.7}, {X: 0, Y: 0, Z: 0.5}, {X: 0.1, Y: 0.1, Z: 0.6}}

	var nilBounds *Bounds
	assert.Equal(t, pts, nilBounds.Filter(pts))

	b := &Bounds{MinX: ptr(-0.15), MinY: ptr(-0.15), MinZ: ptr(0.58)}
	assert.Equal(t, []curve.Point3{{X: 0.1, Y: 0.1, Z: 0.6}}, b.Filter(pts))

	// X and Y limits keep points on the edge, the Z limit does not.
	edge := []curve.Point3{{X: -0.15, Y: -0.15, Z: 0.7}, {X: 0, Y: 0, Z: 0.58}}
	assert.Equal(t, []curve.Point3{{X: -0.15, Y: -0.15, Z: 0.7}}, b.Filter(edge))
}

func TestRun(t *testing.T) {
	quietLogs(t)

	frames := []dataset.Frame{
		chainFrame(0, 1, 0.01),
		chainFrame(1, 1, 0.02),
		{Index: 2, Markers: [][3]float64{{0, 0, 1}}, Tracked: [][3]float64{{0, 0, 1}}},
		chainFrame(3, 1, 0.03),
	}
	sink := &recordingSink{}
	h := New(Config{
		Experiment: Experiment{Algorithm: "trackdlo", Trial: 2, OcclusionPct: 25},
		Reference:  curve.Point3{Z: 1},
		Workers:    3,
		Sink:       sink,
	})

	run, err := h.Run(context.Background(), "trial-2.json", frames)
	require.NoError(t, err)

	require.Len(t, run.Frames, 4)
	for i, f := range run.Frames {
		assert.Equal(t, frames[i].Index, f.Index, "results keep input order")
	}
	assert.Equal(t, "trial-2.json", run.Recording)
	assert.Equal(t, "trackdlo", run.Experiment.Algorithm)
	assert.Equal(t, "run-1", run.RunID)
	require.Len(t, sink.runs, 1)

	s := run.Summary
	assert.Equal(t, 4, s.Frames)
	assert.Equal(t, 3, s.Evaluated)
	assert.Equal(t, 1, s.Skipped)
	assert.InDelta(t, 0.02, s.MeanError, 1e-12)
	assert.InDelta(t, 0.01, s.StdDev, 1e-12)
	assert.InDelta(t, 0.02, s.Median, 1e-12)
	assert.InDelta(t, 0.01, s.MinError, 1e-12)
	assert.InDelta(t, 0.03, s.MaxError, 1e-12)

	assert.Len(t, run.Errors(), 3)
}

func TestRunTiming(t *testing.T) {
	quietLogs(t)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h := New(Config{
		Reference: curve.Point3{Z: 1},
		Workers:   1,
		Clock:     timeutil.NewSteppingClock(start, time.Millisecond),
	})

	run, err := h.Run(context.Background(), "", []dataset.Frame{chainFrame(0, 1, 0), chainFrame(1, 1, 0)})
	require.NoError(t, err)

	assert.Equal(t, start, run.StartedAt)
	// One read to start the run, two per frame, one to finish.
	assert.Equal(t, 5*time.Millisecond, run.Duration)
	for _, f := range run.Frames {
		assert.Equal(t, int64(1000), f.ProcessingUs)
	}
}

func TestRunSinkError(t *testing.T) {
	quietLogs(t)

	sinkErr := errors.New("disk full")
	h := New(Config{Reference: curve.Point3{Z: 1}, Sink: &recordingSink{err: sinkErr}})

	run, err := h.Run(context.Background(), "", []dataset.Frame{chainFrame(0, 1, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
	require.NotNil(t, run, "the computed run is still returned")
	assert.Equal(t, 1, run.Summary.Evaluated)
}

func TestRunCancelled(t *testing.T) {
	quietLogs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := New(Config{Reference: curve.Point3{Z: 1}, Workers: 2})
	_, err := h.Run(ctx, "", []dataset.Frame{chainFrame(0, 1, 0), chainFrame(1, 1, 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	one := Summarize([]FrameResult{{Error: 0.4}})
	assert.Equal(t, 1, one.Evaluated)
	assert.Equal(t, 0.4, one.MeanError)
	assert.Equal(t, 0.0, one.StdDev)
	assert.Equal(t, 0.4, one.Median)

	onlySkipped := Summarize([]FrameResult{{Skipped: "no markers"}})
	assert.Equal(t, Summary{Frames: 1, Skipped: 1}, onlySkipped)
}

func TestConfigFromEval(t *testing.T) {
	cfg := config.DefaultEvalConfig()
	alg := "cdcpd"
	cfg.Algorithm = &alg
	z := 0.58
	cfg.MarkerMinZ = &z

	hc := ConfigFromEval(cfg)
	assert.Equal(t, "cdcpd", hc.Experiment.Algorithm)
	assert.Equal(t, curve.DefaultOrientationThreshold, hc.Sorter.OrientationThreshold)
	require.NotNil(t, hc.Bounds)
	assert.Nil(t, hc.Bounds.MinX)
	assert.Equal(t, 0.58, *hc.Bounds.MinZ)

	assert.Nil(t, ConfigFromEval(&config.EvalConfig{}).Bounds)
	assert.Equal(t, "cdcpd trial=0 occlusion=0%", hc.Experiment.String())
}
