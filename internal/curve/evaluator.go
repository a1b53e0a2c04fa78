package curve

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ClosestPointResult is the minimum distance from a query point to a line
// segment and the point on the segment that achieves it.
type ClosestPointResult struct {
	Distance float64
	Point    Point3
}

// ClosestPoint returns the point on segment [start, end] nearest to query.
//
// When the perpendicular foot falls outside the segment the nearer endpoint
// is returned instead (start wins a tie). A zero-length segment degrades to
// the distance from query to start.
func ClosestPoint(start, end, query Point3) ClosestPointResult {
	a := start.Vec()
	ab := r3.Sub(end.Vec(), a)
	ae := r3.Sub(query.Vec(), a)

	abab := r3.Dot(ab, ab)
	if abab == 0 {
		return ClosestPointResult{Distance: r3.Norm(ae), Point: start}
	}

	distance := r3.Norm(r3.Cross(ae, ab)) / math.Sqrt(abab)
	foot := r3.Add(a, r3.Scale(r3.Dot(ae, ab)/abab, ab))

	proj := r3.Dot(r3.Sub(foot, a), ab)
	if proj < 0 || proj > abab {
		distStart := r3.Norm(ae)
		distEnd := r3.Norm(r3.Sub(query.Vec(), end.Vec()))
		if distStart > distEnd {
			return ClosestPointResult{Distance: distEnd, Point: end}
		}
		return ClosestPointResult{Distance: distStart, Point: start}
	}
	return ClosestPointResult{Distance: distance, Point: PointFromVec(foot)}
}

// PointError is the match of one tracked point against the ground truth.
type PointError struct {
	ClosestPointResult
	// Segment is i for the ground-truth segment (gt[i], gt[i+1]) that won.
	Segment int
}

// CurveError is the piecewise error of a tracked curve.
type CurveError struct {
	// Mean is the average over tracked points of the distance to the
	// ground-truth polyline.
	Mean float64
	// Max is the largest per-point distance.
	Max    float64
	Points []PointError
}

// Distances returns the per-point distances in tracked order.
func (e *CurveError) Distances() []float64 {
	out := make([]float64, len(e.Points))
	for i, p := range e.Points {
		out[i] = p.Distance
	}
	return out
}

// MeanError returns the mean, over tracked points, of each point's minimum
// distance to the ground-truth polyline. It is one-sided: ground-truth points
// far from every tracked point do not contribute.
func MeanError(tracked, groundTruth Curve) (float64, error) {
	res, err := EvaluateCurve(tracked, groundTruth)
	if err != nil {
		return 0, err
	}
	return res.Mean, nil
}

// EvaluateCurve is MeanError with the per-point closest points retained.
func EvaluateCurve(tracked, groundTruth Curve) (*CurveError, error) {
	if err := validatePoints(tracked, 1, "tracked curve"); err != nil {
		return nil, err
	}
	if err := validatePoints(groundTruth, 2, "ground truth curve"); err != nil {
		return nil, err
	}

	res := &CurveError{Points: make([]PointError, len(tracked))}
	for idx, q := range tracked {
		best := PointError{ClosestPointResult: ClosestPointResult{Distance: math.Inf(1)}}
		for i := 0; i < len(groundTruth)-1; i++ {
			cp := ClosestPoint(groundTruth[i], groundTruth[i+1], q)
			if cp.Distance < best.Distance {
				best = PointError{ClosestPointResult: cp, Segment: i}
			}
		}
		res.Points[idx] = best
	}

	dists := res.Distances()
	res.Mean = floats.Sum(dists) / float64(len(dists))
	res.Max = floats.Max(dists)
	return res, nil
}
