package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dlo-eval/internal/curve"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadRecordingJSON(t *testing.T) {
	path := writeFile(t, "trial.json", `{
  "name": "trial-3",
  "frames": [
    {"index": 1, "timestamp_nanos": 200, "markers": [[0,0,1],[1,0,1]], "tracked": [[0,0.1,1]]},
    {"index": 0, "timestamp_nanos": 100, "markers": [[2,0,1]], "tracked": []}
  ]
}`)

	rec, err := LoadRecording(path)
	require.NoError(t, err)
	assert.Equal(t, "trial-3", rec.Name)
	require.Len(t, rec.Frames, 2)
	assert.Equal(t, 0, rec.Frames[0].Index, "frames are sorted by index")
	assert.Equal(t, int64(200), rec.Frames[1].TimestampNanos)

	assert.Equal(t, []curve.Point3{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}}, rec.Frames[1].MarkerPoints())
	assert.Equal(t, curve.Curve{{X: 0, Y: 0.1, Z: 1}}, rec.Frames[1].TrackedCurve())
	assert.Empty(t, rec.Frames[0].TrackedCurve())
}

func TestLoadRecordingJSONL(t *testing.T) {
	path := writeFile(t, "run.jsonl", `{"index": 0, "markers": [[0,0,0]], "tracked": [[0,0,0]]}

{"index": 1, "markers": [[1,0,0]], "tracked": [[1,0,0]]}
`)

	rec, err := LoadRecording(path)
	require.NoError(t, err)
	assert.Equal(t, "run.jsonl", rec.Name, "name defaults to the file name")
	assert.Len(t, rec.Frames, 2)
}

func TestLoadRecordingErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"extension", writeFile(t, "frames.csv", ""), "extension"},
		{"missing", filepath.Join(t.TempDir(), "gone.json"), "failed to stat"},
		{"malformed json", writeFile(t, "bad.json", `{"frames": [`), "failed to parse"},
		{"malformed line", writeFile(t, "bad.jsonl", "{\"index\": 0}\nnot json\n"), "line 2"},
		{"no frames", writeFile(t, "empty.json", `{"frames": []}`), "no frames"},
		{"duplicate index", writeFile(t, "dup.jsonl", "{\"index\": 4}\n{\"index\": 4}\n"), "duplicate frame index 4"},
		{"negative index", writeFile(t, "neg.json", `{"frames": [{"index": -1}]}`), "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRecording(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConvertToMetres(t *testing.T) {
	rec := &Recording{Frames: []Frame{{
		Index:   0,
		Markers: [][3]float64{{1000, 0, 500}},
		Tracked: [][3]float64{{0, 250, 0}, {10, 0, 0}},
	}}}

	rec.ConvertToMetres("mm")
	assert.Equal(t, [][3]float64{{1, 0, 0.5}}, rec.Frames[0].Markers)
	assert.Equal(t, curve.Curve{{X: 0, Y: 0.25, Z: 0}, {X: 0.01, Y: 0, Z: 0}}, rec.Frames[0].TrackedCurve())

	rec.ConvertToMetres("m")
	assert.Equal(t, [][3]float64{{1, 0, 0.5}}, rec.Frames[0].Markers, "metres is a no-op")
}
