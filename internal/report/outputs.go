package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/fsutil"
	"github.com/banshee-data/dlo-eval/internal/harness"
	"github.com/banshee-data/dlo-eval/internal/monitoring"
	"github.com/banshee-data/dlo-eval/internal/security"
)

var logf = monitoring.Prefixed("report")

// Outputs writes report artifacts through a FileSystem, creating parent
// directories as needed.
type Outputs struct {
	FS fsutil.FileSystem
}

// NewOutputs returns Outputs writing to the local filesystem.
func NewOutputs() *Outputs {
	return &Outputs{FS: fsutil.OSFileSystem{}}
}

// WriteErrorPlot writes the per-frame error plot. The image format follows the
// file extension (png, svg, pdf, ...).
func (o *Outputs) WriteErrorPlot(path string, run *harness.RunResult) error {
	p, err := ErrorPlot(run)
	if err != nil {
		return err
	}
	return o.writePlot(path, p, plotWidth, plotHeight)
}

// WriteCurvePlot writes a ground truth vs tracked CurvePlot.
func (o *Outputs) WriteCurvePlot(path, title string, groundTruth, tracked curve.Curve, proj Projection) error {
	p, err := CurvePlot(title, groundTruth, tracked, proj)
	if err != nil {
		return err
	}
	return o.writePlot(path, p, curvePlotSize, curvePlotSize)
}

// WriteErrorChart writes the interactive error chart as HTML.
func (o *Outputs) WriteErrorChart(path string, runs ...*harness.RunResult) error {
	return o.write(path, func(w io.Writer) error {
		return RenderErrorChart(w, runs...)
	})
}

// WriteJSON writes the run as indented JSON.
func (o *Outputs) WriteJSON(path string, run *harness.RunResult) error {
	return o.write(path, func(w io.Writer) error {
		return ExportJSON(w, run)
	})
}

// WriteAll writes the error plot, chart and JSON for run into dir, named
// after FileStem(run). It returns the paths written.
func (o *Outputs) WriteAll(dir string, run *harness.RunResult) ([]string, error) {
	stem := filepath.Join(dir, FileStem(run))
	paths := []string{stem + "_errors.png", stem + "_errors.html", stem + ".json"}

	if err := o.WriteErrorPlot(paths[0], run); err != nil {
		return nil, err
	}
	if err := o.WriteErrorChart(paths[1], run); err != nil {
		return nil, err
	}
	if err := o.WriteJSON(paths[2], run); err != nil {
		return nil, err
	}
	return paths, nil
}

// FileStem names a run's artifacts from its recording and experiment, safe
// to use as a single path component.
func FileStem(run *harness.RunResult) string {
	rec := strings.TrimSuffix(run.Recording, filepath.Ext(run.Recording))
	e := run.Experiment
	label := fmt.Sprintf("%s_%s_t%d_occ%g", rec, e.Algorithm, e.Trial, e.OcclusionPct)
	return security.SanitizeFilename(label)
}

func (o *Outputs) writePlot(path string, p *plot.Plot, w, h vg.Length) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return fmt.Errorf("plot %s: %w", path, err)
	}
	return o.write(path, func(out io.Writer) error {
		_, err := wt.WriteTo(out)
		return err
	})
}

func (o *Outputs) write(path string, fn func(io.Writer) error) error {
	if err := o.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", path, err)
	}
	f, err := o.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	logf("wrote %s", path)
	return nil
}
