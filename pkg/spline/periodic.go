package spline

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Wrap extends samples taken over one period [0, 1) by copying the last k
// samples before the start, shifted by -1, and the first k samples after
// the end, shifted by +1.
func Wrap(u []float64, x [][]float64, k int) ([]float64, [][]float64) {
	m := len(u)
	k = min(k, m)

	wu := make([]float64, 0, m+2*k)
	for _, t := range u[m-k:] {
		wu = append(wu, t-1)
	}
	wu = append(wu, u...)
	for _, t := range u[:k] {
		wu = append(wu, t+1)
	}

	wx := make([][]float64, len(x))
	for d, xs := range x {
		row := make([]float64, 0, len(xs)+2*k)
		row = append(row, xs[len(xs)-k:]...)
		row = append(row, xs...)
		row = append(row, xs[:k]...)
		wx[d] = row
	}
	return wu, wx
}

// Periodic fits a degree k curve to samples of one period by wrapping k
// samples around each end before fitting. With s = 0 the curve takes the
// same value at u[0] and u[0]+1.
func Periodic(u []float64, x [][]float64, k int, s float64) (Curve, error) {
	for d, xs := range x {
		if len(xs) != len(u) {
			return nil, fmt.Errorf("%w: coordinate %d has %d samples, expected %d", ErrInvalidInput, d, len(xs), len(u))
		}
	}
	if len(u) <= k {
		return nil, fmt.Errorf("%w: %d samples for degree %d", ErrTooFewPoints, len(u), k)
	}
	wu, wx := Wrap(u, x, k)
	return Fit(wu, wx, k, s)
}

// PeriodicInterp returns a periodic cubic interpolant of the samples y
// taken at x over one period, replicating k samples around each end.
func PeriodicInterp(x, y []float64, k int) (interp.Predictor, error) {
	if k < 1 || len(x) < k {
		return nil, fmt.Errorf("%w: replicating %d of %d samples", ErrInvalidInput, k, len(x))
	}
	if len(y) != len(x) {
		return nil, fmt.Errorf("%w: %d samples at %d positions", ErrInvalidInput, len(y), len(x))
	}
	wx, wy := Wrap(x, [][]float64{y}, k)
	c, err := Fit(wx, wy, 3, 0)
	if err != nil {
		return nil, err
	}
	return c.(*curve).coords[0], nil
}
