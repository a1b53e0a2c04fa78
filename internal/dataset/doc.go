// Package dataset loads recorded evaluation input: per-frame marker
// detections (unordered) and the tracker's curve estimate for the same frame.
//
// Two encodings are accepted: a single JSON document with a "frames" array
// (.json) and one frame object per line (.jsonl).
package dataset
