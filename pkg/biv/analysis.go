package biv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"bivlite/internal/models"
)

// Volumes holds the per-frame chamber volumes and myocardial masses of a
// sequence. Empty frames are NaN.
type Volumes struct {
	Frame  []int
	LVEndo []float64
	LVEpi  []float64
	RVEndo []float64
	RVEpi  []float64
	LVM    []float64
	RVM    []float64
}

// Columns returns the volume table columns in reporting order.
func (v *Volumes) Columns() ([]string, [][]float64) {
	return []string{"LV_ENDO", "LV_EPI", "RV_ENDO", "RV_EPI", "LVM", "RVM"},
		[][]float64{v.LVEndo, v.LVEpi, v.RVEndo, v.RVEpi, v.LVM, v.RVM}
}

// Strain maps a strain curve name, such as LV_GLS_2CH, to its values per
// frame.
type Strain map[string][]float64

// LVEndoVolumes returns the left ventricular cavity volume of every frame.
func (f *Frames) LVEndoVolumes() []float64 {
	out := make([]float64, len(f.meshes))
	for i, m := range f.meshes {
		out[i] = m.LVEndoVolume()
	}
	return out
}

// Volumes computes the chamber volumes of every frame and the masses
// obtained with massIndex.
func (f *Frames) Volumes(massIndex float64) *Volumes {
	n := len(f.meshes)
	v := &Volumes{
		Frame:  make([]int, n),
		LVEndo: make([]float64, n),
		LVEpi:  make([]float64, n),
		RVEndo: make([]float64, n),
		RVEpi:  make([]float64, n),
		LVM:    make([]float64, n),
		RVM:    make([]float64, n),
	}
	for i, m := range f.meshes {
		v.Frame[i] = i
		v.LVEndo[i] = m.LVEndoVolume()
		v.LVEpi[i] = m.LVEpiVolume()
		v.RVEndo[i] = m.RVEndoVolume()
		v.RVEpi[i] = m.RVEpiVolume()
		v.LVM[i] = massIndex * (v.LVEpi[i] - v.LVEndo[i])
		v.RVM[i] = massIndex * (v.RVEpi[i] - v.RVEndo[i])
	}
	return v
}

// GLS returns the global longitudinal strain curves relative to the frame
// edFrame: (L - L_ed) / L_ed for each polyline length L.
func (f *Frames) GLS(edFrame int) (Strain, error) {
	return f.strain(models.GLSCurves, edFrame, func(m *Mesh, key models.LandmarkKey) float64 {
		return m.LongArcLength(models.View(key.Section), key.Surface)
	})
}

// GCS returns the global circumferential strain curves relative to the
// frame edFrame.
func (f *Frames) GCS(edFrame int) (Strain, error) {
	return f.strain(models.GCSCurves, edFrame, func(m *Mesh, key models.LandmarkKey) float64 {
		return m.CircArcLength(models.Slice(key.Section), key.Surface)
	})
}

func (f *Frames) strain(curves []models.StrainCurve, edFrame int, arc func(*Mesh, models.LandmarkKey) float64) (Strain, error) {
	if edFrame < 0 || edFrame >= len(f.meshes) {
		return nil, fmt.Errorf("%w: reference frame %d of %d", ErrFrameIndex, edFrame, len(f.meshes))
	}
	out := make(Strain, len(curves))
	for _, c := range curves {
		lengths := make([]float64, len(f.meshes))
		for i, m := range f.meshes {
			lengths[i] = arc(m, c.Key)
		}
		ref := lengths[edFrame]
		values := make([]float64, len(lengths))
		for i, l := range lengths {
			values[i] = (l - ref) / ref
		}
		out[c.Name] = values
	}
	return out, nil
}

// Summary holds the global left ventricular function of a cycle.
type Summary struct {
	// EDV and ESV are the largest and smallest cavity volumes
	EDV float64
	ESV float64

	// SV is the stroke volume, EDV - ESV
	SV float64

	// EF is the ejection fraction, SV / EDV
	EF float64

	// EDFrame and ESFrame locate EDV and ESV, -1 when every frame is empty
	EDFrame int
	ESFrame int

	// LVM and RVM are the mean masses over the populated frames
	LVM float64
	RVM float64
}

// Summary derives end-diastole, end-systole and ejection fraction from the
// left ventricular cavity volumes, ignoring empty frames.
func (f *Frames) Summary(massIndex float64) Summary {
	v := f.Volumes(massIndex)
	s := Summary{
		EDV: math.NaN(), ESV: math.NaN(), SV: math.NaN(), EF: math.NaN(),
		EDFrame: -1, ESFrame: -1,
		LVM: nanMean(v.LVM), RVM: nanMean(v.RVM),
	}
	for i, vol := range v.LVEndo {
		if math.IsNaN(vol) {
			continue
		}
		if s.EDFrame < 0 || vol > s.EDV {
			s.EDV, s.EDFrame = vol, i
		}
		if s.ESFrame < 0 || vol < s.ESV {
			s.ESV, s.ESFrame = vol, i
		}
	}
	if s.EDFrame >= 0 {
		s.SV = s.EDV - s.ESV
		s.EF = s.SV / s.EDV
	}
	return s
}

func nanMean(xs []float64) float64 {
	vals := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
