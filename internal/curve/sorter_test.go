package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xs(vals ...float64) []Point3 {
	out := make([]Point3, len(vals))
	for i, v := range vals {
		out[i] = Point3{X: v}
	}
	return out
}

// arc returns n evenly spaced points along a rising circular arc.
func arc(n int) Curve {
	c := make(Curve, n)
	for i := range c {
		theta := 0.2 * float64(i)
		c[i] = Point3{X: math.Cos(theta), Y: math.Sin(theta), Z: 0.01 * float64(i)}
	}
	return c
}

func TestSortSimpleChain(t *testing.T) {
	scrambled := xs(2, 0, 3, 1)

	t.Run("reference near start", func(t *testing.T) {
		got, err := SortCurve(scrambled, Point3{X: 0.01})
		require.NoError(t, err)
		assert.Equal(t, Curve(xs(0, 1, 2, 3)), got)
	})

	t.Run("reference near end", func(t *testing.T) {
		got, err := SortCurve(scrambled, Point3{X: 3.01})
		require.NoError(t, err)
		assert.Equal(t, Curve(xs(3, 2, 1, 0)), got)
	})

	t.Run("input left untouched", func(t *testing.T) {
		in := xs(2, 0, 3, 1)
		_, err := SortCurve(in, Point3{})
		require.NoError(t, err)
		assert.Equal(t, xs(2, 0, 3, 1), in)
	})
}

func TestSortDetailedReportsBranchEvents(t *testing.T) {
	// Seeded at x=0, the greedy search alternates sides of the seed: it
	// attaches behind the tip three times (odd, even, odd reversal counts).
	points := xs(0, 3.2, -2.6, -1, 1.5, -3.0)
	s := NewSorter(DefaultSorterConfig())

	t.Run("no flip", func(t *testing.T) {
		rep, err := s.SortDetailed(points, Point3{X: 3.2})
		require.NoError(t, err)
		assert.Equal(t, Curve(xs(3.2, 1.5, 0, -1, -2.6, -3.0)), rep.Curve)
		assert.Equal(t, []int{1, 4, 0, 3, 2, 5}, rep.Order)
		assert.Equal(t, 3, rep.Reversals)
		assert.False(t, rep.Flipped)
		assert.Zero(t, rep.Removed)
	})

	t.Run("flipped toward reference", func(t *testing.T) {
		rep, err := s.SortDetailed(points, Point3{X: -3.0})
		require.NoError(t, err)
		assert.Equal(t, Curve(xs(-3.0, -2.6, -1, 0, 1.5, 3.2)), rep.Curve)
		assert.Equal(t, []int{5, 2, 3, 0, 4, 1}, rep.Order)
		assert.True(t, rep.Flipped)
	})
}

func TestSortOrientationIsCanonical(t *testing.T) {
	c := arc(12)
	ref := Point3{X: c[0].X + 0.01, Y: c[0].Y, Z: c[0].Z}

	forward, err := SortCurve(c, ref)
	require.NoError(t, err)
	backward, err := SortCurve(c.Reversed(), ref)
	require.NoError(t, err)

	if diff := cmp.Diff(forward, backward, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("sorting a curve and its reverse disagree (-forward +backward):\n%s", diff)
	}
	if diff := cmp.Diff(c, forward); diff != "" {
		t.Errorf("sorted arc mismatch (-want +got):\n%s", diff)
	}
}

func TestSortOrientationThreshold(t *testing.T) {
	scrambled := xs(2, 0, 3, 1)

	// With a wide threshold the reference at x=3 is "close enough" to x=0.
	s := NewSorter(SorterConfig{OrientationThreshold: 10})
	got, err := s.Sort(scrambled, Point3{X: 3})
	require.NoError(t, err)
	assert.Equal(t, Curve(xs(0, 1, 2, 3)), got)

	assert.Equal(t, DefaultOrientationThreshold, NewSorter(SorterConfig{}).Config().OrientationThreshold)
}

func TestSortTwoPoints(t *testing.T) {
	got, err := SortCurve(xs(5, 1), Point3{X: 1})
	require.NoError(t, err)
	assert.Equal(t, Curve(xs(1, 5)), got)
}

func TestSortInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		points  []Point3
		ref     Point3
		wantErr error
	}{
		{"empty", nil, Point3{}, ErrTooFewPoints},
		{"single point", xs(1), Point3{}, ErrTooFewPoints},
		{"nan coordinate", []Point3{{X: 0}, {X: math.NaN()}}, Point3{}, ErrNonFinitePoint},
		{"infinite reference", xs(0, 1), Point3{Y: math.Inf(1)}, ErrNonFinitePoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SortCurve(tt.points, tt.ref)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestSortDuplicatePolicies(t *testing.T) {
	a, b, c := Point3{X: 0}, Point3{X: 1}, Point3{X: 2}

	t.Run("attach keeps every point", func(t *testing.T) {
		got, err := SortCurve([]Point3{a, a, b}, a)
		require.NoError(t, err)
		// The duplicate is only reachable through b, so it lands after it.
		assert.Equal(t, Curve{a, b, a}, got)
	})

	t.Run("attach fails when only zero-length edges remain", func(t *testing.T) {
		_, err := SortCurve([]Point3{a, a, a}, a)
		assert.ErrorIs(t, err, ErrUnattachedDuplicates)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("dedupe drops repeats", func(t *testing.T) {
		s := NewSorter(SorterConfig{Duplicates: DuplicatesDedupe})
		rep, err := s.SortDetailed([]Point3{a, c, a, b, c}, a)
		require.NoError(t, err)
		assert.Equal(t, Curve{a, b, c}, rep.Curve)
		assert.Equal(t, []int{0, 3, 1}, rep.Order)
		assert.Equal(t, 2, rep.Removed)
	})

	t.Run("dedupe to a single point", func(t *testing.T) {
		s := NewSorter(SorterConfig{Duplicates: DuplicatesDedupe})
		_, err := s.Sort([]Point3{b, b, b}, a)
		assert.ErrorIs(t, err, ErrTooFewPoints)
	})

	t.Run("reject", func(t *testing.T) {
		s := NewSorter(SorterConfig{Duplicates: DuplicatesReject})
		_, err := s.Sort([]Point3{a, b, c, b}, a)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicatePoints))
		assert.Contains(t, err.Error(), "points 1 and 3")

		got, err := s.Sort([]Point3{c, a, b}, a)
		require.NoError(t, err)
		assert.Equal(t, Curve{a, b, c}, got)
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	for _, p := range []DuplicatePolicy{DuplicatesAttach, DuplicatesDedupe, DuplicatesReject} {
		got, err := ParseDuplicatePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicatesAttach, got)

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)
	assert.Equal(t, "unknown", DuplicatePolicy(99).String())
}

func TestSequenceInsertByIndex(t *testing.T) {
	s := newSequence(5)
	s.pushBack(0)
	s.pushBack(1)
	s.insertBefore(2, 0)
	s.insertAfter(3, 0)
	s.insertAfter(4, 3)
	assert.Equal(t, []int{2, 0, 3, 4, 1}, s.indices())
}
