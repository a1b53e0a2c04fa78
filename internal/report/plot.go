package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/harness"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no data to plot")

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
	// Curves are roughly as tall as they are wide.
	curvePlotSize = 6 * vg.Inch
)

var (
	errorColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	meanColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	trackedColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Projection selects the two axes a 3D curve is drawn on.
type Projection int

const (
	ProjectXY Projection = iota
	ProjectXZ
	ProjectYZ
)

func (p Projection) String() string {
	switch p {
	case ProjectXZ:
		return "XZ"
	case ProjectYZ:
		return "YZ"
	default:
		return "XY"
	}
}

func (p Projection) labels() (string, string) {
	switch p {
	case ProjectXZ:
		return "X (m)", "Z (m)"
	case ProjectYZ:
		return "Y (m)", "Z (m)"
	default:
		return "X (m)", "Y (m)"
	}
}

func (p Projection) project(c curve.Curve) plotter.XYs {
	pts := make(plotter.XYs, len(c))
	for i, q := range c {
		switch p {
		case ProjectXZ:
			pts[i] = plotter.XY{X: q.X, Y: q.Z}
		case ProjectYZ:
			pts[i] = plotter.XY{X: q.Y, Y: q.Z}
		default:
			pts[i] = plotter.XY{X: q.X, Y: q.Y}
		}
	}
	return pts
}

// ErrorPlot builds the per-frame error plot for a run: one line through the
// evaluated frames and a dashed line at the run mean.
func ErrorPlot(run *harness.RunResult) (*plot.Plot, error) {
	pts := make(plotter.XYs, 0, len(run.Frames))
	for _, f := range run.Frames {
		if f.Evaluated() {
			pts = append(pts, plotter.XY{X: float64(f.Index), Y: f.Error})
		}
	}
	if len(pts) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tracking error - %s", run.Experiment)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Mean distance (m)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("error line: %w", err)
	}
	line.Color = errorColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("error", line)

	first, last := pts[0].X, pts[len(pts)-1].X
	if first == last {
		last = first + 1
	}
	mean, err := plotter.NewLine(plotter.XYs{
		{X: first, Y: run.Summary.MeanError},
		{X: last, Y: run.Summary.MeanError},
	})
	if err != nil {
		return nil, fmt.Errorf("mean line: %w", err)
	}
	mean.Color = meanColor
	mean.Width = vg.Points(1)
	mean.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(mean)
	p.Legend.Add(fmt.Sprintf("mean %.4f", run.Summary.MeanError), mean)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// CurvePlot draws a sorted ground-truth curve and a tracked curve projected
// onto two axes.
func CurvePlot(title string, groundTruth, tracked curve.Curve, proj Projection) (*plot.Plot, error) {
	if len(groundTruth) == 0 && len(tracked) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text, p.Y.Label.Text = proj.labels()
	p.Add(plotter.NewGrid())

	if len(groundTruth) > 0 {
		line, points, err := plotter.NewLinePoints(proj.project(groundTruth))
		if err != nil {
			return nil, fmt.Errorf("ground truth line: %w", err)
		}
		line.Color = errorColor
		points.Color = errorColor
		p.Add(line, points)
		p.Legend.Add("ground truth", line, points)
	}
	if len(tracked) > 0 {
		line, points, err := plotter.NewLinePoints(proj.project(tracked))
		if err != nil {
			return nil, fmt.Errorf("tracked line: %w", err)
		}
		line.Color = trackedColor
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		points.Color = trackedColor
		p.Add(line, points)
		p.Legend.Add("tracked", line, points)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}
