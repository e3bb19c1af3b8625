// Package parametric represents a cardiac cycle as a continuous function
// of normalised time. Every control point of the biventricular model
// follows its own periodic space curve fitted through the populated frames
// of a sequence, so the geometry can be evaluated at any time in [0, 1].
package parametric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/pkg/biv"
	"bivlite/pkg/spline"
	"bivlite/pkg/template"
)

var (
	// ErrInsufficientFrames is returned when a sequence has three populated
	// frames or fewer.
	ErrInsufficientFrames = errors.New("parametric: not enough frames")

	// ErrInvalidTimes is returned for explicit times that are not strictly
	// increasing values in [0, 1), one per frame.
	ErrInvalidTimes = errors.New("parametric: invalid frame times")

	// ErrTimeOutOfRange is returned when evaluating outside [0, 1].
	ErrTimeOutOfRange = errors.New("parametric: time out of range")
)

// Default curve settings.
const (
	DefaultDegree    = 3
	DefaultSmoothing = 0.0
)

// Options holds the fitting settings of a Parametric.
type Options struct {
	degree    int
	smoothing float64
	times     []float64
}

// Option configures New.
type Option func(o *Options)

func optionNew(option ...Option) *Options {
	opts := &Options{
		degree:    DefaultDegree,
		smoothing: DefaultSmoothing,
	}
	for _, o := range option {
		o(opts)
	}
	return opts
}

// WithDegree sets the curve degree, 1 or 3.
func WithDegree(k int) Option {
	return func(o *Options) {
		o.degree = k
	}
}

// WithSmoothing sets the smoothing factor of every control point curve.
// Zero interpolates the frames.
func WithSmoothing(s float64) Option {
	return func(o *Options) {
		o.smoothing = s
	}
}

// WithTimes replaces the frame times with ts, which must hold one strictly
// increasing value in [0, 1) per frame, empty frames included.
func WithTimes(ts []float64) Option {
	return func(o *Options) {
		o.times = append([]float64(nil), ts...)
	}
}

// Parametric is a cardiac cycle as a function of normalised time.
type Parametric struct {
	frames    *biv.Frames
	tmpl      *template.Template
	curves    []spline.Curve
	degree    int
	smoothing float64
}

// New fits a Parametric through the populated frames of a sequence.
//
// The source is not modified: its frames are deep copied, given
// normalised times and stripped of empty frames before fitting. Times
// already normalised and strictly increasing are kept, other times are
// replaced by i/n, where n counts every frame including the empty ones.
func New(frames *biv.Frames, option ...Option) (*Parametric, error) {
	opts := optionNew(option...)

	n := frames.Len()
	if n <= 3 {
		return nil, fmt.Errorf("%w: %d frames", ErrInsufficientFrames, n)
	}

	times, err := cycleTimes(frames, opts.times)
	if err != nil {
		return nil, err
	}

	fitted := frames.Clone()
	if err := fitted.SetTimes(times); err != nil {
		return nil, err
	}
	fitted.DropEmptyInPlace()
	if fitted.Len() <= 3 {
		return nil, fmt.Errorf("%w: %d populated of %d frames", ErrInsufficientFrames, fitted.Len(), n)
	}

	u := fitted.Times()
	cps := make([][]r3.Vec, fitted.Len())
	for i := range cps {
		cps[i] = fitted.At(i).ControlPoints()
	}

	tmpl := fitted.At(0).Template()
	curves := make([]spline.Curve, tmpl.NumControlPoints())
	x := [][]float64{make([]float64, len(u)), make([]float64, len(u)), make([]float64, len(u))}
	for c := range curves {
		for i := range u {
			p := cps[i][c]
			x[0][i], x[1][i], x[2][i] = p.X, p.Y, p.Z
		}
		curve, err := spline.Periodic(u, x, opts.degree, opts.smoothing)
		if err != nil {
			return nil, fmt.Errorf("fitting control point %d: %w", c, err)
		}
		curves[c] = curve
	}

	return &Parametric{
		frames:    fitted,
		tmpl:      tmpl,
		curves:    curves,
		degree:    opts.degree,
		smoothing: opts.smoothing,
	}, nil
}

func cycleTimes(frames *biv.Frames, explicit []float64) ([]float64, error) {
	n := frames.Len()
	if explicit != nil {
		if len(explicit) != n {
			return nil, fmt.Errorf("%w: %d times for %d frames", ErrInvalidTimes, len(explicit), n)
		}
		if !normalised(explicit) {
			return nil, fmt.Errorf("%w: times must increase strictly within [0, 1)", ErrInvalidTimes)
		}
		return explicit, nil
	}

	if current := frames.Times(); normalised(current) {
		return current, nil
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / float64(n)
	}
	return times, nil
}

func normalised(ts []float64) bool {
	for i, t := range ts {
		if !(t >= 0 && t < 1) {
			return false
		}
		if i > 0 && t <= ts[i-1] {
			return false
		}
	}
	return true
}

// Degree returns the curve degree.
func (p *Parametric) Degree() int { return p.degree }

// Smoothing returns the smoothing factor.
func (p *Parametric) Smoothing() float64 { return p.smoothing }

// Frames returns a copy of the populated frames the curves were fitted
// through, with their normalised times.
func (p *Parametric) Frames() *biv.Frames { return p.frames.Clone() }

func checkTime(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: %v", ErrTimeOutOfRange, t)
	}
	return nil
}

// At evaluates the cycle at time t in [0, 1]. The mesh is named after t.
func (p *Parametric) At(t float64) (*biv.Mesh, error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}
	cps := make([]r3.Vec, len(p.curves))
	for c, curve := range p.curves {
		v := curve.At(t)
		cps[c] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	return biv.New(cps, p.tmpl, fmt.Sprintf("t=%.2f", t))
}

// Sample evaluates the cycle at each of ts and returns the meshes as a
// sequence whose times are ts.
func (p *Parametric) Sample(ts []float64) (*biv.Frames, error) {
	for _, t := range ts {
		if err := checkTime(t); err != nil {
			return nil, err
		}
	}
	meshes := make([]*biv.Mesh, len(ts))
	for i, t := range ts {
		m, err := p.At(t)
		if err != nil {
			return nil, err
		}
		meshes[i] = m
	}
	return biv.NewFrames(meshes, ts)
}

// Resample evaluates the cycle at n evenly spaced times i/n.
func (p *Parametric) Resample(n int) (*biv.Frames, error) {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) / float64(n)
	}
	return p.Sample(ts)
}
