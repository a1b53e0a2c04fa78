package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/harness"
)

// EvalRun is a persisted evaluation run summary.
type EvalRun struct {
	RunID          string          `json:"run_id"`
	Recording      string          `json:"recording"`
	Algorithm      string          `json:"algorithm"`
	Trial          int             `json:"trial"`
	OcclusionPct   float64         `json:"occlusion_pct"`
	FrameCount     int             `json:"frame_count"`
	EvaluatedCount int             `json:"evaluated_count"`
	MeanError      float64         `json:"mean_error"`
	StdDev         float64         `json:"std_dev"`
	MedianError    float64         `json:"median_error"`
	MinError       float64         `json:"min_error"`
	MaxError       float64         `json:"max_error"`
	ParamsJSON     json.RawMessage `json:"params_json,omitempty"`
	StartedAt      int64           `json:"started_at"`
	DurationNs     int64           `json:"duration_ns"`
	CreatedAt      int64           `json:"created_at"`
}

// EvalFrame is one persisted per-frame result.
type EvalFrame struct {
	RunID            string  `json:"run_id"`
	FrameIndex       int     `json:"frame_index"`
	TimestampNanos   int64   `json:"timestamp_nanos"`
	MarkerCount      int     `json:"marker_count"`
	GroundTruthCount int     `json:"ground_truth_count"`
	TrackedCount     int     `json:"tracked_count"`
	Reversals        int     `json:"reversals"`
	Flipped          bool    `json:"flipped"`
	Error            float64 `json:"error"`
	MaxError         float64 `json:"max_error"`
	ProcessingUs     int64   `json:"processing_us"`
	Skipped          string  `json:"skipped,omitempty"`
}

// EvaluationStore persists evaluation runs, their frames and sorted ground truth.
type EvaluationStore struct {
	db *sql.DB
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

// RecordRun stores a finished harness run in one transaction. The run's
// RunID is set only once the transaction commits.
func (s *EvaluationStore) RecordRun(ctx context.Context, run *harness.RunResult) error {
	if run == nil {
		return fmt.Errorf("nil run")
	}
	runID := run.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	params, err := json.Marshal(run.Experiment)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	rec := runFromResult(run)
	rec.RunID = runID
	rec.ParamsJSON = params

	err = retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertRun(ctx, tx, rec); err != nil {
			return err
		}
		for i := range run.Frames {
			f := &run.Frames[i]
			if err := insertFrame(ctx, tx, frameFromResult(runID, f)); err != nil {
				return err
			}
			if err := insertGroundTruth(ctx, tx, runID, f.Index, f.GroundTruth); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	run.RunID = runID
	logf("recorded run %s (%s, %d frames)", run.RunID, run.Experiment, len(run.Frames))
	return nil
}

// InsertRun persists a run summary. If RunID is empty, a UUID is generated.
func (s *EvaluationStore) InsertRun(run *EvalRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		return insertRun(context.Background(), s.db, run)
	})
}

// InsertFrames persists per-frame results for an existing run.
func (s *EvaluationStore) InsertFrames(frames []EvalFrame) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		for i := range frames {
			if err := insertFrame(context.Background(), tx, &frames[i]); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// GetRun returns a single run by ID.
func (s *EvaluationStore) GetRun(runID string) (*EvalRun, error) {
	row := s.db.QueryRow(`
		SELECT `+runColumns+`
		FROM dlo_eval_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs ordered by creation time descending. An empty
// algorithm lists every run.
func (s *EvaluationStore) ListRuns(algorithm string) ([]*EvalRun, error) {
	query := `SELECT ` + runColumns + ` FROM dlo_eval_runs`
	var args []interface{}
	if algorithm != "" {
		query += ` WHERE algorithm = ?`
		args = append(args, algorithm)
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*EvalRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListFrames returns the frames of a run in frame order.
func (s *EvaluationStore) ListFrames(runID string) ([]EvalFrame, error) {
	rows, err := s.db.Query(`
		SELECT run_id, frame_index, timestamp_nanos, marker_count, ground_truth_count,
		       tracked_count, reversals, flipped, error, max_error, processing_us, skipped
		FROM dlo_eval_frames
		WHERE run_id = ?
		ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []EvalFrame
	for rows.Next() {
		var f EvalFrame
		var ts sql.NullInt64
		var errVal, maxErr sql.NullFloat64
		var skipped sql.NullString
		if err := rows.Scan(
			&f.RunID, &f.FrameIndex, &ts, &f.MarkerCount, &f.GroundTruthCount,
			&f.TrackedCount, &f.Reversals, &f.Flipped, &errVal, &maxErr, &f.ProcessingUs, &skipped,
		); err != nil {
			return nil, fmt.Errorf("scan frame row: %w", err)
		}
		f.TimestampNanos = ts.Int64
		f.Error = errVal.Float64
		f.MaxError = maxErr.Float64
		f.Skipped = skipped.String
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// GroundTruth returns the sorted ground-truth curve stored for one frame.
func (s *EvaluationStore) GroundTruth(runID string, frameIndex int) (curve.Curve, error) {
	rows, err := s.db.Query(`
		SELECT x, y, z FROM dlo_ground_truth_points
		WHERE run_id = ? AND frame_index = ?
		ORDER BY seq`, runID, frameIndex)
	if err != nil {
		return nil, fmt.Errorf("query ground truth: %w", err)
	}
	defer rows.Close()

	var c curve.Curve
	for rows.Next() {
		var p curve.Point3
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("scan ground truth row: %w", err)
		}
		c = append(c, p)
	}
	return c, rows.Err()
}

// DeleteRun removes a run and, via cascade, its frames and ground truth.
func (s *EvaluationStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM dlo_eval_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

const runColumns = `run_id, recording, algorithm, trial, occlusion_pct, frame_count, evaluated_count,
		       mean_error, std_dev, median_error, min_error, max_error,
		       params_json, started_at, duration_ns, created_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func insertRun(ctx context.Context, ex execer, r *EvalRun) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixNano()
	}
	var paramsStr interface{}
	if len(r.ParamsJSON) > 0 {
		paramsStr = string(r.ParamsJSON)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO dlo_eval_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Recording, r.Algorithm, r.Trial, r.OcclusionPct, r.FrameCount, r.EvaluatedCount,
		r.MeanError, r.StdDev, r.MedianError, r.MinError, r.MaxError,
		paramsStr, r.StartedAt, r.DurationNs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertFrame(ctx context.Context, ex execer, f *EvalFrame) error {
	var errVal, maxErr, skipped interface{}
	if f.Skipped != "" {
		skipped = f.Skipped
	} else {
		errVal, maxErr = f.Error, f.MaxError
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO dlo_eval_frames (
			run_id, frame_index, timestamp_nanos, marker_count, ground_truth_count,
			tracked_count, reversals, flipped, error, max_error, processing_us, skipped
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.FrameIndex, f.TimestampNanos, f.MarkerCount, f.GroundTruthCount,
		f.TrackedCount, f.Reversals, f.Flipped, errVal, maxErr, f.ProcessingUs, skipped,
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.FrameIndex, err)
	}
	return nil
}

func insertGroundTruth(ctx context.Context, ex execer, runID string, frameIndex int, gt curve.Curve) error {
	for seq, p := range gt {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO dlo_ground_truth_points (run_id, frame_index, seq, x, y, z)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, frameIndex, seq, p.X, p.Y, p.Z,
		); err != nil {
			return fmt.Errorf("insert ground truth frame %d: %w", frameIndex, err)
		}
	}
	return nil
}

func scanRun(row scanner) (*EvalRun, error) {
	var r EvalRun
	var mean, sd, median, lo, hi sql.NullFloat64
	var paramsStr sql.NullString
	err := row.Scan(
		&r.RunID, &r.Recording, &r.Algorithm, &r.Trial, &r.OcclusionPct, &r.FrameCount, &r.EvaluatedCount,
		&mean, &sd, &median, &lo, &hi,
		&paramsStr, &r.StartedAt, &r.DurationNs, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.MeanError, r.StdDev, r.MedianError = mean.Float64, sd.Float64, median.Float64
	r.MinError, r.MaxError = lo.Float64, hi.Float64
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

func runFromResult(run *harness.RunResult) *EvalRun {
	return &EvalRun{
		RunID:          run.RunID,
		Recording:      run.Recording,
		Algorithm:      run.Experiment.Algorithm,
		Trial:          run.Experiment.Trial,
		OcclusionPct:   run.Experiment.OcclusionPct,
		FrameCount:     run.Summary.Frames,
		EvaluatedCount: run.Summary.Evaluated,
		MeanError:      run.Summary.MeanError,
		StdDev:         run.Summary.StdDev,
		MedianError:    run.Summary.Median,
		MinError:       run.Summary.MinError,
		MaxError:       run.Summary.MaxError,
		StartedAt:      run.StartedAt.UnixNano(),
		DurationNs:     run.Duration.Nanoseconds(),
	}
}

func frameFromResult(runID string, f *harness.FrameResult) *EvalFrame {
	return &EvalFrame{
		RunID:            runID,
		FrameIndex:       f.Index,
		TimestampNanos:   f.TimestampNanos,
		MarkerCount:      f.MarkerCount,
		GroundTruthCount: f.GroundTruthCount,
		TrackedCount:     f.TrackedCount,
		Reversals:        f.Reversals,
		Flipped:          f.Flipped,
		Error:            f.Error,
		MaxError:         f.MaxError,
		ProcessingUs:     f.ProcessingUs,
		Skipped:          f.Skipped,
	}
}
