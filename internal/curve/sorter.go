package curve

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DefaultOrientationThreshold is the distance in metres from the first
// sorted point to the reference point above which the curve is reversed.
const DefaultOrientationThreshold = 0.05

// DuplicatePolicy selects how exact duplicate coordinates are treated.
type DuplicatePolicy int

const (
	// DuplicatesAttach sorts the input as given. Zero-length edges are never
	// chosen; if only zero-length edges remain the sort fails with
	// ErrUnattachedDuplicates rather than dropping points.
	DuplicatesAttach DuplicatePolicy = iota
	// DuplicatesDedupe removes repeated coordinates (first occurrence wins)
	// before sorting.
	DuplicatesDedupe
	// DuplicatesReject fails with ErrDuplicatePoints if any coordinate repeats.
	DuplicatesReject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicatesAttach:
		return "attach"
	case DuplicatesDedupe:
		return "dedupe"
	case DuplicatesReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy parses the names produced by DuplicatePolicy.String.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "attach":
		return DuplicatesAttach, nil
	case "dedupe":
		return DuplicatesDedupe, nil
	case "reject":
		return DuplicatesReject, nil
	default:
		return DuplicatesAttach, fmt.Errorf("unknown duplicate policy %q (want attach, dedupe or reject)", s)
	}
}

// SorterConfig holds parameters for Sorter.
type SorterConfig struct {
	// OrientationThreshold: a sorted curve whose first point is farther than
	// this from the reference point is reversed. Zero uses the default.
	OrientationThreshold float64
	Duplicates           DuplicatePolicy
}

// DefaultSorterConfig returns production-default sorter parameters.
func DefaultSorterConfig() SorterConfig {
	return SorterConfig{
		OrientationThreshold: DefaultOrientationThreshold,
		Duplicates:           DuplicatesAttach,
	}
}

// SortReport carries the sorted curve and how it was produced.
type SortReport struct {
	Curve Curve
	// Order maps each output position to the index of the input point placed there.
	Order []int
	// Reversals counts branch events: greedy steps that attached to a point
	// other than the one added on the previous step.
	Reversals int
	// Flipped is true when the orientation fix-up reversed the curve.
	Flipped bool
	// Removed is the number of duplicates dropped under DuplicatesDedupe.
	Removed int
}

// Sorter turns an unordered marker set into an ordered curve by greedy
// nearest-neighbour growth from the first point, splicing points that attach
// behind the growing tip back into their place along the path.
//
// The result is a heuristic: noisy detections that make the greedy search
// jump between distant branches can still misorder points.
type Sorter struct {
	cfg SorterConfig
}

// NewSorter creates a Sorter with the given configuration.
func NewSorter(cfg SorterConfig) *Sorter {
	if cfg.OrientationThreshold <= 0 {
		cfg.OrientationThreshold = DefaultOrientationThreshold
	}
	return &Sorter{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Sorter) Config() SorterConfig {
	return s.cfg
}

// SortCurve sorts points with the default configuration.
func SortCurve(points []Point3, reference Point3) (Curve, error) {
	return NewSorter(DefaultSorterConfig()).Sort(points, reference)
}

// Sort orders points into a curve oriented so that it starts near reference.
// The input slice is not modified.
func (s *Sorter) Sort(points []Point3, reference Point3) (Curve, error) {
	rep, err := s.SortDetailed(points, reference)
	if err != nil {
		return nil, err
	}
	return rep.Curve, nil
}

// SortDetailed is Sort with the bookkeeping needed for diagnostics.
func (s *Sorter) SortDetailed(points []Point3, reference Point3) (*SortReport, error) {
	if err := validatePoints(points, 2, "marker set"); err != nil {
		return nil, err
	}
	if !reference.IsFinite() {
		return nil, fmt.Errorf("%w: reference point is %v", ErrNonFinitePoint, reference)
	}

	// source[i] is the input index of the i-th point handed to the search.
	source := make([]int, len(points))
	for i := range source {
		source[i] = i
	}

	switch s.cfg.Duplicates {
	case DuplicatesDedupe:
		source = uniqueIndices(points)
		if len(source) < 2 {
			return nil, fmt.Errorf("%w: %d distinct points after removing duplicates", ErrTooFewPoints, len(source))
		}
	case DuplicatesReject:
		if first, dup, ok := firstDuplicate(points); ok {
			return nil, fmt.Errorf("%w: points %d and %d are both %v", ErrDuplicatePoints, first, dup, points[dup])
		}
	}

	work := make([]Point3, len(source))
	for i, idx := range source {
		work[i] = points[idx]
	}

	order, reversals, err := growPath(work)
	if err != nil {
		return nil, err
	}

	rep := &SortReport{
		Curve:     make(Curve, len(order)),
		Order:     make([]int, len(order)),
		Reversals: reversals,
		Removed:   len(points) - len(work),
	}
	for pos, idx := range order {
		rep.Curve[pos] = work[idx]
		rep.Order[pos] = source[idx]
	}

	if Distance(rep.Curve[0], reference) > s.cfg.OrientationThreshold {
		slices.Reverse(rep.Curve)
		slices.Reverse(rep.Order)
		rep.Flipped = true
	}
	return rep, nil
}

// growPath runs the greedy growth over points and returns the visiting order
// as indices into points.
func growPath(points []Point3) ([]int, int, error) {
	n := len(points)
	dist := squaredDistanceMatrix(points)

	visited := make([]bool, n)
	visited[0] = true
	seq := newSequence(n)

	last := 0
	reversals := 0
	// cursor is the element the next point is inserted after while the
	// reversal count is even and positive: the anchor itself for the first
	// insertion after a branch event, then the point inserted before.
	cursor := 0

	for step := 0; step < n-1; step++ {
		a, b, ok := nearestEdge(dist, visited)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d of %d points left unvisited", ErrUnattachedDuplicates, n-step-1, n)
		}

		if step == 0 {
			seq.pushBack(a)
			seq.pushBack(b)
		} else {
			if a != last {
				reversals++
				cursor = a
			}
			switch {
			case reversals%2 == 1:
				seq.insertBefore(b, a)
			case reversals > 0:
				seq.insertAfter(b, cursor)
				cursor = b
			default:
				seq.pushBack(b)
			}
		}

		visited[b] = true
		last = b
	}
	return seq.indices(), reversals, nil
}

// nearestEdge scans every (visited, unvisited) pair and returns the pair with
// the smallest strictly positive squared distance. Ties keep the first pair
// found in visited-major order.
func nearestEdge(dist *mat.SymDense, visited []bool) (a, b int, ok bool) {
	n := len(visited)
	best := math.Inf(1)
	for m := 0; m < n; m++ {
		if !visited[m] {
			continue
		}
		for k := 0; k < n; k++ {
			if visited[k] {
				continue
			}
			d := dist.At(m, k)
			if d > 0 && d < best {
				best = d
				a, b, ok = m, k, true
			}
		}
	}
	return a, b, ok
}

func squaredDistanceMatrix(points []Point3) *mat.SymDense {
	n := len(points)
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, SquaredDistance(points[i], points[j]))
		}
	}
	return dist
}

// uniqueIndices returns the indices of the first occurrence of each distinct
// coordinate, in input order.
func uniqueIndices(points []Point3) []int {
	seen := make(map[Point3]struct{}, len(points))
	out := make([]int, 0, len(points))
	for i, p := range points {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, i)
	}
	return out
}

func firstDuplicate(points []Point3) (first, dup int, ok bool) {
	seen := make(map[Point3]int, len(points))
	for i, p := range points {
		if j, exists := seen[p]; exists {
			return j, i, true
		}
		seen[p] = i
	}
	return 0, 0, false
}
