package curve

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every precondition failure in this package.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTooFewPoints is returned when a point set or curve is too short for the operation.
	ErrTooFewPoints = fmt.Errorf("%w: too few points", ErrInvalidArgument)

	// ErrNonFinitePoint is returned when a coordinate is NaN or infinite.
	ErrNonFinitePoint = fmt.Errorf("%w: non-finite coordinate", ErrInvalidArgument)

	// ErrUnattachedDuplicates is returned when the remaining unvisited points all
	// coincide with the visited ones, so no strictly positive edge exists.
	ErrUnattachedDuplicates = fmt.Errorf("%w: duplicate points cannot be attached", ErrInvalidArgument)

	// ErrDuplicatePoints is returned under DuplicatesReject when the input has exact duplicates.
	ErrDuplicatePoints = fmt.Errorf("%w: duplicate points", ErrInvalidArgument)
)
