package curve

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point3 is a 3D coordinate in the sensor frame (metres).
type Point3 struct {
	X, Y, Z float64
}

// Vec returns p as a gonum vector.
func (p Point3) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PointFromVec converts a gonum vector back to a Point3.
func PointFromVec(v r3.Vec) Point3 {
	return Point3{X: v.X, Y: v.Y, Z: v.Z}
}

// IsFinite reports whether all three coordinates are finite numbers.
func (p Point3) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

func (p Point3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Z)
}

// Dot returns the dot product of a and b treated as vectors.
func Dot(a, b Point3) float64 {
	return r3.Dot(a.Vec(), b.Vec())
}

// Cross returns the cross product a × b.
func Cross(a, b Point3) Point3 {
	return PointFromVec(r3.Cross(a.Vec(), b.Vec()))
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point3) float64 {
	return r3.Norm(r3.Sub(a.Vec(), b.Vec()))
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b Point3) float64 {
	return r3.Norm2(r3.Sub(a.Vec(), b.Vec()))
}

// Curve is an ordered polyline: consecutive points are adjacent stations
// along the physical object.
type Curve []Point3

// Clone returns an independent copy of c.
func (c Curve) Clone() Curve {
	return slices.Clone(c)
}

// Reversed returns a reversed copy of c.
func (c Curve) Reversed() Curve {
	out := slices.Clone(c)
	slices.Reverse(out)
	return out
}

// Length returns the arc length of the polyline.
func (c Curve) Length() float64 {
	var total float64
	for i := 1; i < len(c); i++ {
		total += Distance(c[i-1], c[i])
	}
	return total
}

// validatePoints checks the minimum count and that every coordinate is finite.
func validatePoints(points []Point3, minCount int, what string) error {
	if len(points) < minCount {
		return fmt.Errorf("%w: %s has %d points, need at least %d", ErrTooFewPoints, what, len(points), minCount)
	}
	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: %s point %d is %v", ErrNonFinitePoint, what, i, p)
		}
	}
	return nil
}
