// Package curve owns the geometry used to score deformable linear object
// (cable, rope) tracking against marker ground truth.
//
// Responsibilities: ordering an unordered marker point set into a single
// polyline (Sorter) and measuring the one-sided mean distance from a tracked
// polyline to a ground-truth polyline (ClosestPoint, EvaluateCurve, MeanError).
// Key types: Point3, Curve, ClosestPointResult.
//
// Dependency rule: curve is a leaf. It performs no I/O, holds no state between
// calls and knows nothing about experiments, storage or logging, so every
// function is safe to call concurrently on independent inputs.
package curve
