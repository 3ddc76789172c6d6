// Package interp provides the 1-D linear interpolation used to back-fill
// barometric altitude onto GNSS fix entries.
package interp

import "math"

// Interp1 linearly interpolates ys over xs at x. xs must be non-decreasing.
//
// Outside [xs[0], xs[len-1]] the result is NaN; there is deliberately no
// extrapolation or clamping, so a caller can tell "before the first
// barometric sample" apart from a real altitude.
func Interp1(xs, ys []float64, x float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return math.NaN()
	}
	if x < xs[0] || x > xs[len(xs)-1] {
		return math.NaN()
	}
	for i := 0; i < len(xs)-1; i++ {
		x0, x1 := xs[i], xs[i+1]
		if x < x0 || x > x1 {
			continue
		}
		if x1 == x0 {
			return ys[i]
		}
		f := (x - x0) / (x1 - x0)
		return ys[i] + f*(ys[i+1]-ys[i])
	}
	// x == xs[last] with a single-element slice, or exactly the last knot.
	return ys[len(ys)-1]
}
