// Package spline fits parametric space curves through samples taken at
// increasing parameter values, with optional smoothing, and builds periodic
// curves by wrapping samples around the ends of the parameter range.
//
// Interpolating cubic curves (s = 0) use not-a-knot end conditions and
// therefore pass exactly through every sample. Smoothing cubic curves
// (s > 0) are natural cubic smoothing splines whose total squared residual,
// summed over every coordinate, equals s. When s is at least the residual
// of the least squares cubic polynomial, that polynomial is returned.
package spline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

var (
	// ErrUnsupportedDegree is returned for degrees other than 1 and 3, and
	// for smoothing requested with a linear curve.
	ErrUnsupportedDegree = errors.New("spline: unsupported degree")

	// ErrNotIncreasing is returned when the parameter values are not
	// strictly increasing.
	ErrNotIncreasing = errors.New("spline: parameter values not strictly increasing")

	// ErrTooFewPoints is returned when there are not more samples than the
	// curve degree.
	ErrTooFewPoints = errors.New("spline: too few points")

	// ErrInvalidInput is returned for mismatched lengths, non-finite
	// samples and negative smoothing.
	ErrInvalidInput = errors.New("spline: invalid input")
)

// Curve is a parametric curve in Dim dimensions. Outside the fitted
// parameter range the curve is held at its end values.
type Curve interface {
	// Dim returns the number of coordinates
	Dim() int

	// At evaluates every coordinate at t
	At(t float64) []float64

	// AtAll evaluates the curve at each of ts, one row per parameter value
	AtAll(ts []float64) [][]float64
}

type curve struct {
	coords []interp.Predictor
}

func (c *curve) Dim() int { return len(c.coords) }

func (c *curve) At(t float64) []float64 {
	out := make([]float64, len(c.coords))
	for i, p := range c.coords {
		out[i] = p.Predict(t)
	}
	return out
}

func (c *curve) AtAll(ts []float64) [][]float64 {
	out := make([][]float64, len(ts))
	for i, t := range ts {
		out[i] = c.At(t)
	}
	return out
}

// Fit fits a degree k curve through the samples x, given as one slice per
// coordinate, taken at the parameter values u. s is the smoothing factor;
// zero interpolates. Supported are k = 3 with any s >= 0, and k = 1 with
// s = 0.
func Fit(u []float64, x [][]float64, k int, s float64) (Curve, error) {
	if err := validate(u, x, k, s); err != nil {
		return nil, err
	}

	switch {
	case k == 3 && s == 0:
		return fitNotAKnot(u, x)
	case k == 3:
		return fitSmoothing(u, x, s)
	case k == 1 && s == 0:
		return fitLinear(u, x)
	case k == 1:
		return nil, fmt.Errorf("%w: smoothing needs a cubic curve", ErrUnsupportedDegree)
	}
	return nil, fmt.Errorf("%w: k=%d", ErrUnsupportedDegree, k)
}

func validate(u []float64, x [][]float64, k int, s float64) error {
	if k != 1 && k != 3 {
		return fmt.Errorf("%w: k=%d", ErrUnsupportedDegree, k)
	}
	if len(x) == 0 {
		return fmt.Errorf("%w: no coordinates", ErrInvalidInput)
	}
	if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: smoothing factor %v", ErrInvalidInput, s)
	}
	m := len(u)
	if m <= k {
		return fmt.Errorf("%w: %d samples for degree %d", ErrTooFewPoints, m, k)
	}
	for d, xs := range x {
		if len(xs) != m {
			return fmt.Errorf("%w: coordinate %d has %d samples, expected %d", ErrInvalidInput, d, len(xs), m)
		}
		for i, v := range xs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: coordinate %d sample %d is %v", ErrInvalidInput, d, i, v)
			}
		}
	}
	for i := 1; i < m; i++ {
		if !(u[i] > u[i-1]) {
			return fmt.Errorf("%w: u[%d]=%v, u[%d]=%v", ErrNotIncreasing, i-1, u[i-1], i, u[i])
		}
	}
	return nil
}

func fitNotAKnot(u []float64, x [][]float64) (Curve, error) {
	c := &curve{coords: make([]interp.Predictor, len(x))}
	for d, xs := range x {
		var nak interp.NotAKnotCubic
		if err := nak.Fit(u, xs); err != nil {
			return nil, fmt.Errorf("fitting coordinate %d: %w", d, err)
		}
		c.coords[d] = &nak
	}
	return c, nil
}

func fitLinear(u []float64, x [][]float64) (Curve, error) {
	c := &curve{coords: make([]interp.Predictor, len(x))}
	for d, xs := range x {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(u, xs); err != nil {
			return nil, fmt.Errorf("fitting coordinate %d: %w", d, err)
		}
		c.coords[d] = &pl
	}
	return c, nil
}
