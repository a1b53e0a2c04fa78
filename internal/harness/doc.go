// Package harness runs the curve evaluation over a recording: for every frame
// it filters the detected markers, sorts them into a ground-truth curve,
// scores the tracked curve against it and aggregates the per-frame errors.
//
// Experiment labels (algorithm, trial, occlusion) are carried as an immutable
// Experiment value and only travel with the results; the geometry in
// internal/curve never sees them.
package harness
