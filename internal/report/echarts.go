package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dlo-eval/internal/harness"
)

// EchartsAssetsHost overrides where the chart loads echarts.js from. Empty
// uses the go-echarts default CDN.
var EchartsAssetsHost = ""

// ErrorChart builds an interactive line chart of per-frame error, one series
// per run, with the run mean marked.
func ErrorChart(runs ...*harness.RunResult) (*charts.Line, error) {
	if len(runs) == 0 {
		return nil, ErrNoData
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "DLO tracking error",
			Width:      "100%",
			Height:     "600px",
			AssetsHost: EchartsAssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Tracking error per frame", Subtitle: subtitle(runs)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean distance (m)", NameLocation: "middle", NameGap: 50}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	plotted := 0
	for _, run := range runs {
		data := make([]opts.LineData, 0, len(run.Frames))
		for _, f := range run.Frames {
			if f.Evaluated() {
				data = append(data, opts.LineData{Value: []interface{}{f.Index, f.Error}})
			}
		}
		if len(data) == 0 {
			continue
		}
		plotted++
		line.AddSeries(run.Experiment.String(), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithMarkLineNameTypeItemOpts(opts.MarkLineNameTypeItem{Name: "mean", Type: "average"}),
		)
	}
	if plotted == 0 {
		return nil, ErrNoData
	}
	return line, nil
}

// RenderErrorChart writes the ErrorChart page as HTML to w.
func RenderErrorChart(w io.Writer, runs ...*harness.RunResult) error {
	line, err := ErrorChart(runs...)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render error chart: %w", err)
	}
	return nil
}

func subtitle(runs []*harness.RunResult) string {
	if len(runs) == 1 {
		s := runs[0].Summary
		return fmt.Sprintf("frames=%d evaluated=%d mean=%.4f sd=%.4f", s.Frames, s.Evaluated, s.MeanError, s.StdDev)
	}
	return fmt.Sprintf("runs=%d", len(runs))
}
