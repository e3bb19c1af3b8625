package parametric

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bivlite/internal/testutil"
	"bivlite/pkg/biv"
	"bivlite/pkg/spline"
)

func cycle(t *testing.T, n int) *biv.Frames {
	t.Helper()
	tmpl := testutil.Template(t, testutil.Options{})
	f, err := biv.FromControlPoints(tmpl, testutil.Cycle(n))
	require.NoError(t, err)
	return f
}

func TestParametricKnots(t *testing.T) {
	const n = 10
	frames := cycle(t, n)
	p, err := New(frames)
	require.NoError(t, err)
	assert.Equal(t, DefaultDegree, p.Degree())
	assert.Equal(t, 0.0, p.Smoothing())

	for i := 0; i < n; i++ {
		m, err := p.At(float64(i) / n)
		require.NoError(t, err)
		assert.InDelta(t, frames.At(i).LVEndoVolume(), m.LVEndoVolume(), 1e-9)
		assert.InDelta(t, frames.At(i).RVEpiVolume(), m.RVEpiVolume(), 1e-9)
	}

	fitted := p.Frames()
	require.Equal(t, n, fitted.Len())
	assert.True(t, fitted.IsNormalisedTime())
	assert.InDelta(t, 0.3, fitted.Times()[3], 1e-15)

	// the source keeps its frame numbers
	assert.Equal(t, 3.0, frames.Times()[3])
}

func TestParametricPeriodic(t *testing.T) {
	p, err := New(cycle(t, 12))
	require.NoError(t, err)

	start, err := p.At(0)
	require.NoError(t, err)
	end, err := p.At(1)
	require.NoError(t, err)
	assert.Equal(t, start.ControlPoints(), end.ControlPoints())
	assert.Equal(t, "t=0.00", start.Name())
	assert.Equal(t, "t=1.00", end.Name())

	for _, tt := range []float64{0.04, 0.37, 0.5, 0.81, 0.99} {
		m, err := p.At(tt)
		require.NoError(t, err)
		assert.InEpsilon(t, testutil.Cubed(tt)*testutil.LVEndoVolume, m.LVEndoVolume(), 1e-3, "t=%v", tt)
	}
}

func TestParametricEmptyFrames(t *testing.T) {
	const n = 16
	frames := cycle(t, n)
	require.NoError(t, frames.MakeEmpty(3, 7, 12))

	p, err := New(frames)
	require.NoError(t, err)

	fitted := p.Frames()
	assert.Equal(t, n-3, fitted.Len())
	assert.Empty(t, fitted.EmptyIndices())
	assert.InDelta(t, 4.0/n, fitted.Times()[3], 1e-15)

	assert.Equal(t, []int{3, 7, 12}, frames.EmptyIndices())
	assert.Equal(t, n, frames.Len())

	for _, i := range []int{3, 7, 12} {
		tt := float64(i) / n
		m, err := p.At(tt)
		require.NoError(t, err)
		assert.InEpsilon(t, testutil.Cubed(tt)*testutil.LVEndoVolume, m.LVEndoVolume(), 0.01)
	}
}

func TestParametricTimes(t *testing.T) {
	frames := cycle(t, 6)
	ts := []float64{0, 0.1, 0.3, 0.5, 0.6, 0.9}
	require.NoError(t, frames.SetTimes(ts))

	p, err := New(frames)
	require.NoError(t, err)
	assert.Equal(t, ts, p.Frames().Times())

	custom := []float64{0.05, 0.2, 0.35, 0.5, 0.65, 0.8}
	p, err = New(frames, WithTimes(custom))
	require.NoError(t, err)
	assert.Equal(t, custom, p.Frames().Times())

	for name, bad := range map[string][]float64{
		"length":     {0, 0.5},
		"decreasing": {0, 0.2, 0.1, 0.5, 0.6, 0.7},
		"repeated":   {0, 0.2, 0.2, 0.5, 0.6, 0.7},
		"range":      {0, 0.2, 0.3, 0.5, 0.6, 1},
		"negative":   {-0.1, 0.2, 0.3, 0.5, 0.6, 0.7},
	} {
		_, err := New(frames, WithTimes(bad))
		assert.True(t, errors.Is(err, ErrInvalidTimes), name)
	}
}

func TestParametricInsufficientFrames(t *testing.T) {
	_, err := New(cycle(t, 3))
	assert.True(t, errors.Is(err, ErrInsufficientFrames))

	frames := cycle(t, 6)
	require.NoError(t, frames.MakeEmpty(0, 2, 4))
	_, err = New(frames)
	assert.True(t, errors.Is(err, ErrInsufficientFrames))
}

func TestParametricDegree(t *testing.T) {
	const n = 8
	frames := cycle(t, n)

	p, err := New(frames, WithDegree(1))
	require.NoError(t, err)
	m, err := p.At(2.0 / n)
	require.NoError(t, err)
	assert.InDelta(t, frames.At(2).LVEndoVolume(), m.LVEndoVolume(), 1e-9)

	_, err = New(frames, WithDegree(2))
	assert.True(t, errors.Is(err, spline.ErrUnsupportedDegree))

	_, err = New(frames, WithDegree(1), WithSmoothing(0.1))
	assert.True(t, errors.Is(err, spline.ErrUnsupportedDegree))
}

func TestParametricSmoothing(t *testing.T) {
	p, err := New(cycle(t, 12), WithSmoothing(1e-3))
	require.NoError(t, err)
	assert.Equal(t, 1e-3, p.Smoothing())

	start, err := p.At(0)
	require.NoError(t, err)
	end, err := p.At(1)
	require.NoError(t, err)
	assert.InEpsilon(t, start.LVEndoVolume(), end.LVEndoVolume(), 0.05)
	assert.InEpsilon(t, testutil.Cubed(0.25)*testutil.LVEndoVolume, mustVolume(t, p, 0.25), 0.05)
}

func mustVolume(t *testing.T, p *Parametric, tt float64) float64 {
	t.Helper()
	m, err := p.At(tt)
	require.NoError(t, err)
	return m.LVEndoVolume()
}

func TestParametricSample(t *testing.T) {
	p, err := New(cycle(t, 10))
	require.NoError(t, err)

	ts := []float64{0, 0.25, 0.5, 1}
	f, err := p.Sample(ts)
	require.NoError(t, err)
	require.Equal(t, len(ts), f.Len())
	assert.Equal(t, ts, f.Times())
	assert.Equal(t, "t=0.25", f.At(1).Name())

	r, err := p.Resample(20)
	require.NoError(t, err)
	require.Equal(t, 20, r.Len())
	assert.True(t, r.IsNormalisedTime())
	assert.Empty(t, r.EmptyIndices())

	for _, bad := range []float64{-0.01, 1.01, math.NaN()} {
		_, err := p.At(bad)
		assert.True(t, errors.Is(err, ErrTimeOutOfRange))
		_, err = p.Sample([]float64{0.5, bad})
		assert.True(t, errors.Is(err, ErrTimeOutOfRange))
	}
}
