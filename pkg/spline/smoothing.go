package spline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

const (
	minLogLambda  = -20.0
	maxLogLambda  = 20.0
	maxBisections = 100
	relTolerance  = 1e-8
)

// reinsch holds the band system of a natural cubic smoothing spline for a
// fixed set of knots, in the formulation of Reinsch (1967): with Q the
// n x (n-2) second difference matrix and R the (n-2) x (n-2) tridiagonal
// matrix, the interior second derivatives solve (R + λQᵀQ)γ = Qᵀy and the
// fitted values are y - λQγ.
type reinsch struct {
	u []float64
	h []float64
	y [][]float64

	// non-zero entries of column c of Q, on rows c, c+1 and c+2
	qa, qb, qd []float64

	// diagonal and super-diagonal of R
	r0, r1 []float64

	// Qᵀy for every coordinate
	qty [][]float64
}

func newReinsch(u []float64, y [][]float64) *reinsch {
	n := len(u)
	p := n - 2
	r := &reinsch{
		u:   u,
		h:   make([]float64, n-1),
		y:   y,
		qa:  make([]float64, p),
		qb:  make([]float64, p),
		qd:  make([]float64, p),
		r0:  make([]float64, p),
		r1:  make([]float64, p),
		qty: make([][]float64, len(y)),
	}
	for i := range r.h {
		r.h[i] = u[i+1] - u[i]
	}
	for c := 0; c < p; c++ {
		r.qa[c] = 1 / r.h[c]
		r.qb[c] = -1/r.h[c] - 1/r.h[c+1]
		r.qd[c] = 1 / r.h[c+1]
		r.r0[c] = (r.h[c] + r.h[c+1]) / 3
		r.r1[c] = r.h[c+1] / 6
	}
	for d, ys := range y {
		r.qty[d] = make([]float64, p)
		for c := 0; c < p; c++ {
			r.qty[d][c] = r.qa[c]*ys[c] + r.qb[c]*ys[c+1] + r.qd[c]*ys[c+2]
		}
	}
	return r
}

// solve returns the fitted values and the second derivatives at every knot
// (zero at both ends) of each coordinate for the penalty weight lambda.
func (r *reinsch) solve(lambda float64) (g, gamma [][]float64, err error) {
	n := len(r.u)
	p := n - 2
	k := min(2, p-1)

	a := mat.NewSymBandDense(p, k, nil)
	for c := 0; c < p; c++ {
		a.SetSymBand(c, c, r.r0[c]+lambda*(r.qa[c]*r.qa[c]+r.qb[c]*r.qb[c]+r.qd[c]*r.qd[c]))
		if c+1 < p {
			a.SetSymBand(c, c+1, r.r1[c]+lambda*(r.qb[c]*r.qa[c+1]+r.qd[c]*r.qb[c+1]))
		}
		if c+2 < p {
			a.SetSymBand(c, c+2, lambda*r.qd[c]*r.qa[c+2])
		}
	}

	var chol mat.BandCholesky
	if ok := chol.Factorize(a); !ok {
		return nil, nil, fmt.Errorf("smoothing system not positive definite for lambda=%g", lambda)
	}

	g = make([][]float64, len(r.y))
	gamma = make([][]float64, len(r.y))
	for d, ys := range r.y {
		var sol mat.VecDense
		if err := chol.SolveVecTo(&sol, mat.NewVecDense(p, r.qty[d])); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, nil, err
			}
		}

		gd := make([]float64, n)
		for c := 0; c < p; c++ {
			gd[c+1] = sol.AtVec(c)
		}

		fit := append([]float64(nil), ys...)
		for c := 0; c < p; c++ {
			fit[c] -= lambda * r.qa[c] * gd[c+1]
			fit[c+1] -= lambda * r.qb[c] * gd[c+1]
			fit[c+2] -= lambda * r.qd[c] * gd[c+1]
		}
		g[d], gamma[d] = fit, gd
	}
	return g, gamma, nil
}

func (r *reinsch) residual(g [][]float64) float64 {
	var rss float64
	for d, ys := range r.y {
		dist := floats.Distance(ys, g[d], 2)
		rss += dist * dist
	}
	return rss
}

// fitSmoothing fits a natural cubic smoothing spline sharing one penalty
// weight across coordinates, chosen so that the residual equals s. When s
// is at least the residual of the least squares cubic polynomial, that
// polynomial is returned.
func fitSmoothing(u []float64, x [][]float64, s float64) (Curve, error) {
	poly, polyRSS, err := leastSquaresCubic(u, x)
	if err != nil {
		return nil, err
	}
	if s >= polyRSS {
		return poly, nil
	}

	r := newReinsch(u, x)
	lo, hi := minLogLambda, maxLogLambda
	var g, gamma [][]float64
	for i := 0; i < maxBisections; i++ {
		mid := (lo + hi) / 2
		var err error
		g, gamma, err = r.solve(math.Pow(10, mid))
		if err != nil {
			return nil, err
		}
		rss := r.residual(g)
		if math.Abs(rss-s) <= relTolerance*math.Max(s, 1e-300) {
			break
		}
		if rss > s {
			hi = mid
		} else {
			lo = mid
		}
	}

	c := &curve{coords: make([]interp.Predictor, len(x))}
	for d := range x {
		var pc interp.PiecewiseCubic
		pc.FitWithDerivatives(u, g[d], knotSlopes(r.h, g[d], gamma[d]))
		c.coords[d] = &pc
	}
	return c, nil
}

// knotSlopes returns the first derivative at every knot of the cubic spline
// with values g and second derivatives gamma.
func knotSlopes(h, g, gamma []float64) []float64 {
	n := len(g)
	out := make([]float64, n)
	for i := 0; i < n-1; i++ {
		out[i] = (g[i+1]-g[i])/h[i] - h[i]*(2*gamma[i]+gamma[i+1])/6
	}
	last := n - 2
	out[n-1] = (g[n-1]-g[last])/h[last] + h[last]*(gamma[last]+2*gamma[n-1])/6
	return out
}

// leastSquaresCubic fits a cubic polynomial to every coordinate and
// returns it with its total squared residual. The parameter is mapped to
// [0, 1] before building the design matrix.
func leastSquaresCubic(u []float64, x [][]float64) (Curve, float64, error) {
	n := len(u)
	u0, span := u[0], u[n-1]-u[0]

	a := mat.NewDense(n, 4, nil)
	for i, t := range u {
		t = (t - u0) / span
		a.SetRow(i, []float64{1, t, t * t, t * t * t})
	}

	c := &curve{coords: make([]interp.Predictor, len(x))}
	var rss float64
	for d, xs := range x {
		var beta mat.VecDense
		if err := beta.SolveVec(a, mat.NewVecDense(n, xs)); err != nil {
			return nil, 0, fmt.Errorf("least squares cubic: %w", err)
		}
		b := beta.RawVector().Data

		ys := make([]float64, n)
		dy := make([]float64, n)
		for i, t := range u {
			t = (t - u0) / span
			ys[i] = b[0] + t*(b[1]+t*(b[2]+t*b[3]))
			dy[i] = (b[1] + t*(2*b[2]+3*t*b[3])) / span
			e := xs[i] - ys[i]
			rss += e * e
		}
		var pc interp.PiecewiseCubic
		pc.FitWithDerivatives(u, ys, dy)
		c.coords[d] = &pc
	}
	return c, rss, nil
}
