package cleaning

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/internal/testutil"
	"bivlite/pkg/biv"
	"bivlite/pkg/parametric"
)

const numFrames = 25

func volumeCurve() []float64 {
	y := make([]float64, numFrames)
	for i := range y {
		y[i] = 100 + 20*math.Cos(2*math.Pi*float64(i)/numFrames)
	}
	return y
}

// framesWithVolumes builds frames whose LV endocardial volumes are vols.
func framesWithVolumes(t *testing.T, vols []float64) *biv.Frames {
	t.Helper()
	tmpl := testutil.Template(t, testutil.Options{SkipLandmarks: true})
	cps := make([][]r3.Vec, len(vols))
	for i, v := range vols {
		cps[i] = testutil.ControlPoints(math.Cbrt(v / testutil.LVEndoVolume))
	}
	f, err := biv.FromControlPoints(tmpl, cps)
	require.NoError(t, err)
	return f
}

func TestRelativeMadness(t *testing.T) {
	y := volumeCurve()
	y[10] += 30

	rm := RelativeMadness(y, 3)
	require.Len(t, rm, numFrames)
	assert.InDelta(t, 20.721, rm[10], 1e-3)
	assert.InDelta(t, 0.628, rm[0], 1e-3)
	assert.InDelta(t, -0.628, rm[24], 1e-3)

	flat := RelativeMadness([]float64{1, 1, 1, 1}, 3)
	assert.Equal(t, []float64{0, 0, 0, 0}, flat)
	assert.Empty(t, RelativeMadness(nil, 3))
}

func TestMadLM(t *testing.T) {
	y := volumeCurve()
	y[10] += 30

	m := MadLM(y, 3)
	assert.InDelta(t, 13.724, m[10], 1e-3)
	assert.InDelta(t, -14.091, m[9], 1e-3)
	assert.Equal(t, []int{10}, Spikes(y, 3, 2))
	assert.Empty(t, Spikes(y, 5, 2))
	assert.Empty(t, Spikes(volumeCurve(), 3, 2))
}

func TestQuantile(t *testing.T) {
	y := []float64{3, math.NaN(), 1, 4, 2, math.NaN()}
	assert.Equal(t, 1.0, Quantile(y, 0))
	assert.Equal(t, 4.0, Quantile(y, 1))
	assert.Equal(t, 2.5, Quantile(y, 0.5))
	assert.Equal(t, 1.75, Quantile(y, 0.25))
	assert.Equal(t, 3.25, Quantile(y, 0.75))
	assert.Equal(t, 1.5, IQR(y))

	assert.True(t, math.IsNaN(Quantile([]float64{math.NaN()}, 0.5)))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestOutliers(t *testing.T) {
	y := volumeCurve()
	assert.Empty(t, Outliers(y, 1.5))

	y[4] = 300
	y[17] = math.NaN()
	assert.Equal(t, []int{4}, Outliers(y, 1.5))

	y[20] = -50
	assert.Equal(t, []int{4, 20}, Outliers(y, 1.5))
}

func TestImputeWithoutEmptyFrames(t *testing.T) {
	f := framesWithVolumes(t, volumeCurve())
	c := NewCleaner(DefaultParams(), nil)

	out, err := c.Impute(f, 0)
	require.NoError(t, err)
	assert.True(t, testutil.EqualFloats(f.LVEndoVolumes(), out.LVEndoVolumes()))
	assert.NotSame(t, f.At(0), out.At(0))
}

func TestImpute(t *testing.T) {
	vols := volumeCurve()
	f := framesWithVolumes(t, vols)
	require.NoError(t, f.MakeEmpty(6, 15))
	c := NewCleaner(DefaultParams(), nil)

	out, err := c.Impute(f, 0)
	require.NoError(t, err)
	require.Equal(t, numFrames, out.Len())
	assert.Empty(t, out.EmptyIndices())
	assert.Equal(t, []int{6, 15}, f.EmptyIndices())

	got := out.LVEndoVolumes()
	for i, v := range vols {
		assert.InDelta(t, v, got[i], 0.5, "frame %d", i)
	}
	assert.InDelta(t, vols[0], got[0], 1e-9)
	assert.InDelta(t, float64(3)/numFrames, out.Times()[3], 1e-15)
}

func TestImputeFailure(t *testing.T) {
	f := framesWithVolumes(t, volumeCurve()[:6])
	require.NoError(t, f.MakeEmpty(0, 1, 2))
	c := NewCleaner(DefaultParams(), nil)

	out, err := c.Impute(f, 0)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, parametric.ErrInsufficientFrames))

	res, err := c.Clean(f)
	assert.Nil(t, res)
	assert.Error(t, err)
}

func TestCleanSpike(t *testing.T) {
	vols := volumeCurve()
	spiked := append([]float64(nil), vols...)
	spiked[10] += 30
	f := framesWithVolumes(t, spiked)

	params := DefaultParams()
	params.SecondSmoothing = 0
	res, err := NewCleaner(params, nil).Clean(f)
	require.NoError(t, err)
	assert.Empty(t, res.Empty)
	assert.Empty(t, res.Outliers)
	assert.Equal(t, []int{10}, res.Spikes)

	got := res.Frames.LVEndoVolumes()
	assert.InDelta(t, vols[10], got[10], 0.5)
	assert.InDelta(t, spiked[3], got[3], 1e-9)
	assert.Empty(t, res.Frames.EmptyIndices())

	// the input is left untouched
	assert.InDelta(t, spiked[10], f.At(10).LVEndoVolume(), 1e-9)
}

func TestCleanOutliersAndEmpty(t *testing.T) {
	vols := volumeCurve()
	bad := append([]float64(nil), vols...)
	bad[4] = 400
	f := framesWithVolumes(t, bad)
	require.NoError(t, f.MakeEmpty(18))

	res, err := NewCleaner(DefaultParams(), nil).Clean(f)
	require.NoError(t, err)
	assert.Equal(t, []int{18}, res.Empty)
	assert.Equal(t, []int{4}, res.Outliers)
	require.Equal(t, numFrames, res.Frames.Len())
	assert.Empty(t, res.Frames.EmptyIndices())
}

func TestCleanBatch(t *testing.T) {
	good := framesWithVolumes(t, volumeCurve())
	broken := framesWithVolumes(t, volumeCurve()[:5])
	require.NoError(t, broken.MakeEmpty(0, 1))

	out := NewCleaner(DefaultParams(), nil).CleanBatch(map[string]*biv.Frames{
		"good":   good,
		"broken": broken,
	})
	require.Len(t, out, 2)
	assert.NotNil(t, out["good"])
	assert.Nil(t, out["broken"])
}
