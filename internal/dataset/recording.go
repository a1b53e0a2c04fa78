package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/banshee-data/dlo-eval/internal/curve"
	"github.com/banshee-data/dlo-eval/internal/units"
)

// maxRecordingSize bounds how much we read from disk for one recording.
const maxRecordingSize = 256 * 1024 * 1024

// Frame is one synchronised sample: detected markers plus the tracked estimate.
type Frame struct {
	Index          int          `json:"index"`
	TimestampNanos int64        `json:"timestamp_nanos,omitempty"`
	Markers        [][3]float64 `json:"markers"`
	Tracked        [][3]float64 `json:"tracked"`
}

// MarkerPoints returns the unordered marker detections.
func (f Frame) MarkerPoints() []curve.Point3 {
	return toPoints(f.Markers)
}

// TrackedCurve returns the tracker's ordered estimate.
func (f Frame) TrackedCurve() curve.Curve {
	return curve.Curve(toPoints(f.Tracked))
}

func toPoints(raw [][3]float64) []curve.Point3 {
	out := make([]curve.Point3, len(raw))
	for i, p := range raw {
		out[i] = curve.Point3{X: p[0], Y: p[1], Z: p[2]}
	}
	return out
}

// Recording is an ordered sequence of frames from one trial.
type Recording struct {
	Name   string  `json:"name,omitempty"`
	Frames []Frame `json:"frames"`
}

// LoadRecording reads a .json or .jsonl recording, validates it and returns
// its frames sorted by index.
func LoadRecording(path string) (*Recording, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".jsonl" {
		return nil, fmt.Errorf("recording must have .json or .jsonl extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat recording: %w", err)
	}
	if fileInfo.Size() > maxRecordingSize {
		return nil, fmt.Errorf("recording too large: %d bytes (max %d)", fileInfo.Size(), maxRecordingSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	var rec *Recording
	if ext == ".jsonl" {
		rec, err = parseLines(data)
	} else {
		rec = &Recording{}
		err = json.Unmarshal(data, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse recording %s: %w", filepath.Base(cleanPath), err)
	}
	if rec.Name == "" {
		rec.Name = fileInfo.Name()
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recording %s: %w", filepath.Base(cleanPath), err)
	}
	sort.SliceStable(rec.Frames, func(i, j int) bool {
		return rec.Frames[i].Index < rec.Frames[j].Index
	})
	return rec, nil
}

func parseLines(data []byte) (*Recording, error) {
	rec := &Recording{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(text, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Frames = append(rec.Frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks that the recording has frames and that frame indices are
// unique. Point-level checks (count, finiteness) are left to the evaluation,
// which reports them per frame instead of rejecting the whole recording.
func (r *Recording) Validate() error {
	if len(r.Frames) == 0 {
		return fmt.Errorf("recording has no frames")
	}
	seen := make(map[int]struct{}, len(r.Frames))
	for _, f := range r.Frames {
		if f.Index < 0 {
			return fmt.Errorf("frame index must be non-negative, got %d", f.Index)
		}
		if _, dup := seen[f.Index]; dup {
			return fmt.Errorf("duplicate frame index %d", f.Index)
		}
		seen[f.Index] = struct{}{}
	}
	return nil
}

// ConvertToMetres rescales every marker and tracked point from unit to metres
// in place.
func (r *Recording) ConvertToMetres(unit string) {
	f := units.ToMetresFactor(unit)
	if f == 1 {
		return
	}
	for i := range r.Frames {
		scale(r.Frames[i].Markers, f)
		scale(r.Frames[i].Tracked, f)
	}
}

func scale(points [][3]float64, f float64) {
	for i := range points {
		points[i][0] *= f
		points[i][1] *= f
		points[i][2] *= f
	}
}
