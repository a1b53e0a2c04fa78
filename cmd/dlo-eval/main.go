// Command dlo-eval scores a DLO tracker against motion-capture markers.
//
// Each frame's unordered markers are sorted into a ground-truth curve and the
// tracker's estimate is scored by its mean distance to that curve.
//
//	dlo-eval -frames rope.jsonl -algorithm cdcpd -trial 1 -occlusion 25 -db eval.db -html errors.html
//	dlo-eval -frames rope_mm.json -units mm -out-dir results
//	dlo-eval migrate -db eval.db up
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/dlo-eval/internal/config"
	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/dataset"
	"github.com/banshee-data/dlo-eval/internal/db"
	"github.com/banshee-data/dlo-eval/internal/harness"
	"github.com/banshee-data/dlo-eval/internal/monitoring"
	"github.com/banshee-data/dlo-eval/internal/report"
	"github.com/banshee-data/dlo-eval/internal/units"
	"github.com/banshee-data/dlo-eval/internal/version"
)

const defaultDBPath = "dlo_eval.db"

type options struct {
	frames     string
	configPath string
	dbPath     string

	algorithm  string
	trial      int
	occlusion  float64
	threshold  float64
	duplicates string
	workers    int
	units      string

	outDir     string
	plotPath   string
	htmlPath   string
	jsonPath   string
	curvePath  string
	curveFrame int
	projection string
	quiet      bool
	version    bool

	// set records which flags were given explicitly so they override the config file.
	set map[string]bool
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("dlo-eval", flag.ContinueOnError)
	fs.StringVar(&o.frames, "frames", "", "Recording to evaluate (.json or .jsonl)")
	fs.StringVar(&o.configPath, "config", "", "Evaluation config file (.json)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record the run in (optional)")

	fs.StringVar(&o.algorithm, "algorithm", config.DefaultAlgorithm, "Tracker under evaluation")
	fs.IntVar(&o.trial, "trial", 0, "Trial number")
	fs.Float64Var(&o.occlusion, "occlusion", 0, "Occlusion percentage of the recording")
	fs.Float64Var(&o.threshold, "threshold", curve.DefaultOrientationThreshold, "Orientation flip threshold (distance units)")
	fs.StringVar(&o.duplicates, "duplicates", curve.DuplicatesAttach.String(), "Duplicate marker policy: attach, dedupe or reject")
	fs.IntVar(&o.workers, "workers", 0, "Frames evaluated concurrently (0 = GOMAXPROCS)")
	fs.StringVar(&o.units, "units", units.Metres, "Length unit of the recording: "+units.GetValidUnitsString())

	fs.StringVar(&o.outDir, "out-dir", "", "Write error plot, chart and JSON into this directory")
	fs.StringVar(&o.plotPath, "plot", "", "Write per-frame error plot (png, svg or pdf)")
	fs.StringVar(&o.htmlPath, "html", "", "Write interactive per-frame error chart (html)")
	fs.StringVar(&o.jsonPath, "json", "", "Write the full run result as JSON")
	fs.StringVar(&o.curvePath, "curve-plot", "", "Write ground truth vs tracked curve plot for -curve-frame")
	fs.IntVar(&o.curveFrame, "curve-frame", 0, "Frame index drawn by -curve-plot")
	fs.StringVar(&o.projection, "projection", "xy", "Curve plot projection: xy, xz or yz")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress progress logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	return fs
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := newFlagSet(o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if o.version {
		return o, nil
	}
	if o.frames == "" {
		return nil, fmt.Errorf("-frames is required")
	}
	if _, err := parseProjection(o.projection); err != nil {
		return nil, err
	}
	return o, nil
}

func parseProjection(s string) (report.Projection, error) {
	switch strings.ToLower(s) {
	case "xy":
		return report.ProjectXY, nil
	case "xz":
		return report.ProjectXZ, nil
	case "yz":
		return report.ProjectYZ, nil
	}
	return 0, fmt.Errorf("unknown projection %q", s)
}

// loadConfig reads the config file (or defaults) and applies explicit flags on top.
func loadConfig(o *options) (*config.EvalConfig, error) {
	cfg := config.DefaultEvalConfig()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadEvalConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	if o.set["algorithm"] {
		cfg.Algorithm = &o.algorithm
	}
	if o.set["trial"] {
		cfg.Trial = &o.trial
	}
	if o.set["occlusion"] {
		cfg.OcclusionPct = &o.occlusion
	}
	if o.set["threshold"] {
		cfg.OrientationThreshold = &o.threshold
	}
	if o.set["duplicates"] {
		cfg.DuplicatePolicy = &o.duplicates
	}
	if o.set["workers"] && o.workers > 0 {
		cfg.Workers = &o.workers
	}
	if o.set["units"] {
		cfg.Units = &o.units
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateFlags := flag.NewFlagSet("migrate", flag.ExitOnError)
		dbPath := migrateFlags.String("db", defaultDBPath, "SQLite database path")
		migrateFlags.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(os.Stdout, migrateFlags.Args(), *dbPath); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}
	if o.version {
		fmt.Printf("dlo-eval %s\n", version.String())
		return
	}
	if o.quiet {
		monitoring.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, o *options, stdout io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	rec, err := dataset.LoadRecording(o.frames)
	if err != nil {
		return err
	}
	rec.ConvertToMetres(cfg.GetUnits())

	hc := harness.ConfigFromEval(cfg)
	if o.dbPath != "" {
		database, err := db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
		hc.Sink = db.NewEvaluationStore(database.DB)
	}

	result, err := harness.New(hc).Run(ctx, rec.Name, rec.Frames)
	if err != nil {
		return err
	}

	printSummary(stdout, result)
	return writeOutputs(o, rec, result)
}

func printSummary(w io.Writer, r *harness.RunResult) {
	s := r.Summary
	fmt.Fprintf(w, "%s: %s\n", r.Recording, r.Experiment)
	fmt.Fprintf(w, "  frames=%d evaluated=%d skipped=%d\n", s.Frames, s.Evaluated, s.Skipped)
	fmt.Fprintf(w, "  mean=%.6f sd=%.6f median=%.6f min=%.6f max=%.6f\n",
		s.MeanError, s.StdDev, s.Median, s.MinError, s.MaxError)
	if r.RunID != "" {
		fmt.Fprintf(w, "  run_id=%s\n", r.RunID)
	}
}

func writeOutputs(o *options, rec *dataset.Recording, result *harness.RunResult) error {
	out := report.NewOutputs()
	if o.outDir != "" {
		if _, err := out.WriteAll(o.outDir, result); err != nil {
			return err
		}
	}
	if o.plotPath != "" {
		if err := out.WriteErrorPlot(o.plotPath, result); err != nil {
			return err
		}
	}
	if o.htmlPath != "" {
		if err := out.WriteErrorChart(o.htmlPath, result); err != nil {
			return err
		}
	}
	if o.jsonPath != "" {
		if err := out.WriteJSON(o.jsonPath, result); err != nil {
			return err
		}
	}
	if o.curvePath != "" {
		return writeCurvePlot(out, o, rec, result)
	}
	return nil
}

func writeCurvePlot(out *report.Outputs, o *options, rec *dataset.Recording, result *harness.RunResult) error {
	proj, _ := parseProjection(o.projection)
	for i, fr := range result.Frames {
		if fr.Index != o.curveFrame {
			continue
		}
		title := fmt.Sprintf("%s frame %d (%s)", result.Experiment, fr.Index, proj)
		return out.WriteCurvePlot(o.curvePath, title, fr.GroundTruth, rec.Frames[i].TrackedCurve(), proj)
	}
	return fmt.Errorf("frame %d not in recording", o.curveFrame)
}
