// Package testutil writes small synthetic template folders and fitted
// models for tests.
//
// The synthetic template has one triangle per anatomical component. The
// triangle of component i uses the vertices 3i, 3i+1 and 3i+2 placed at
// (i+1, 0, 0), (0, 1, 0) and (0, 0, 1), so its contribution to a signed
// volume is (i+1)/6 times the cube of the control point scale. The
// subdivision matrix copies the first 42 control points to the vertices.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/internal/models"
)

// NumVertices is the number of vertices of the synthetic template.
const NumVertices = 3 * models.NumComponents

// Reference volumes of the synthetic template at scale 1.
const (
	LVEndoVolume = (3.0 + 1 + 5) / 6
	RVEndoVolume = (10.0 - 11 + 7 + 12) / 6
	LVEpiVolume  = (4.0 + 11 - 14 + 1 + 2 + 5 + 6) / 6
	RVEpiVolume  = (9.0 - 11 + 14 + 7 + 8 + 12 + 13) / 6
)

// SubdivisionFormat selects how the subdivision matrix is stored.
type SubdivisionFormat int

const (
	DenseText SubdivisionFormat = iota
	MatrixMarket
	Npy
)

// Options tweak the written template.
type Options struct {
	Format SubdivisionFormat

	// SkipLandmarks leaves out ls_points.txt and cs_points.txt
	SkipLandmarks bool
}

// LandmarkTriangle returns the triangle whose three vertices form the
// polyline of a strain curve. Longitudinal curves use triangles 0..3 and
// circumferential curves 4..12, in reporting order.
func LandmarkTriangle(key models.LandmarkKey) int {
	for i, c := range models.GLSCurves {
		if c.Key == key {
			return i
		}
	}
	for i, c := range models.GCSCurves {
		if c.Key == key {
			return len(models.GLSCurves) + i
		}
	}
	return -1
}

// ArcLength returns the polyline length of triangle i at scale 1.
func ArcLength(i int) float64 {
	return math.Hypot(float64(i+1), 1) + math.Sqrt2
}

// ControlPoints returns the control points of the synthetic model scaled by s.
func ControlPoints(s float64) []r3.Vec {
	cps := make([]r3.Vec, models.NumControlPoints)
	for i := 0; i < models.NumComponents; i++ {
		cps[3*i] = r3.Vec{X: s * float64(i+1)}
		cps[3*i+1] = r3.Vec{Y: s}
		cps[3*i+2] = r3.Vec{Z: s}
	}
	return cps
}

// Scale is the periodic control point scale used for time varying models.
func Scale(t float64) float64 {
	return 1 + 0.2*math.Cos(2*math.Pi*t)
}

// WriteTemplate writes the synthetic template to dir.
func WriteTemplate(dir string, opts Options) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := writeSubdivision(dir, opts.Format); err != nil {
		return err
	}

	var elems, mats strings.Builder
	for i := 0; i < models.NumComponents-1; i++ {
		fmt.Fprintf(&elems, "%d %d %d\n", 3*i+1, 3*i+2, 3*i+3)
		fmt.Fprintf(&mats, "%d %s\n", i, models.Component(i))
	}
	if err := writeFile(dir, "ETIndicesSorted.txt", elems.String()); err != nil {
		return err
	}
	if err := writeFile(dir, "ETIndicesMaterials.txt", mats.String()); err != nil {
		return err
	}
	t := int(models.ThruWall)
	thru := fmt.Sprintf("%d\t%d\t%d\n", 3*t+1, 3*t+2, 3*t+3)
	if err := writeFile(dir, "thru_wall_et_indices.txt", thru); err != nil {
		return err
	}

	if opts.SkipLandmarks {
		return nil
	}

	var ls strings.Builder
	ls.WriteString("Index\tView\tSurface\n")
	for _, c := range models.GLSCurves {
		writeLandmarkRows(&ls, c.Key)
	}
	if err := writeFile(dir, "ls_points.txt", ls.String()); err != nil {
		return err
	}

	var cs strings.Builder
	cs.WriteString("Index\tView\tSurface\n")
	for _, c := range models.GCSCurves {
		writeLandmarkRows(&cs, c.Key)
	}
	return writeFile(dir, "cs_points.txt", cs.String())
}

// WriteModel writes a fitted model file with the given control points.
func WriteModel(path string, cps []r3.Vec, frame int) error {
	var b strings.Builder
	b.WriteString("x,y,z,Frame\n")
	for _, p := range cps {
		fmt.Fprintf(&b, "%.16f,%.16f,%.16f,%d\n", p.X, p.Y, p.Z, frame)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeLandmarkRows(b *strings.Builder, key models.LandmarkKey) {
	tri := LandmarkTriangle(key)
	for v := 3 * tri; v < 3*tri+3; v++ {
		fmt.Fprintf(b, "%d\t%s\t%s\n", v, key.Section, key.Surface)
	}
}

func subdivisionData() []float64 {
	data := make([]float64, NumVertices*models.NumControlPoints)
	for i := 0; i < NumVertices; i++ {
		data[i*models.NumControlPoints+i] = 1
	}
	return data
}

func writeSubdivision(dir string, format SubdivisionFormat) error {
	data := subdivisionData()
	switch format {
	case MatrixMarket:
		var b strings.Builder
		b.WriteString("%%MatrixMarket matrix coordinate real general\n")
		fmt.Fprintf(&b, "%d %d %d\n", NumVertices, models.NumControlPoints, NumVertices)
		for i := 0; i < NumVertices; i++ {
			fmt.Fprintf(&b, "%d %d 1.0\n", i+1, i+1)
		}
		return writeFile(dir, "subdivision_matrix.mtx", b.String())
	case Npy:
		w, err := gonpy.NewFileWriter(filepath.Join(dir, "subdivision_matrix.npy"))
		if err != nil {
			return err
		}
		w.Shape = []int{NumVertices, models.NumControlPoints}
		w.Version = 2
		return w.WriteFloat64(data)
	default:
		var b strings.Builder
		for i := 0; i < NumVertices; i++ {
			row := data[i*models.NumControlPoints : (i+1)*models.NumControlPoints]
			for j, v := range row {
				if j > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "%g", v)
			}
			b.WriteByte('\n')
		}
		return writeFile(dir, "subdivision_matrix.txt", b.String())
	}
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}
