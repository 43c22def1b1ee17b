package math

import (
	"errors"
	"math"
	"sort"
)

// ErrOutOfBounds is returned when x falls outside the interpolation knots.
var ErrOutOfBounds = errors.New("x outside interpolation range")

// Point represents a 2D point for interpolation
type Point struct {
	X, Y float64
}

// Interpolator interface for different interpolation methods
type Interpolator interface {
	Interpolate(x float64) (float64, error)
}

// LinearInterpolator implements piecewise linear interpolation without
// extrapolation.
type LinearInterpolator struct {
	points []Point
}

// NewLinearInterpolator creates a new linear interpolator. Points are sorted by
// X; callers must not pass duplicate X values.
func NewLinearInterpolator(points []Point) *LinearInterpolator {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})

	return &LinearInterpolator{points: sorted}
}

// Interpolate performs linear interpolation at point x. A knot returns its own
// value exactly.
func (li *LinearInterpolator) Interpolate(x float64) (float64, error) {
	n := len(li.points)
	if n == 0 {
		return 0, errors.New("need at least 1 point for linear interpolation")
	}
	if math.IsNaN(x) || x < li.points[0].X || x > li.points[n-1].X {
		return 0, ErrOutOfBounds
	}

	// First knot with X >= x
	i := sort.Search(n, func(i int) bool { return li.points[i].X >= x })
	if li.points[i].X == x {
		return li.points[i].Y, nil
	}

	x1, y1 := li.points[i-1].X, li.points[i-1].Y
	x2, y2 := li.points[i].X, li.points[i].Y
	return y1 + (y2-y1)*(x-x1)/(x2-x1), nil
}
