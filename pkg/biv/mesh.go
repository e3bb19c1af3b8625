// Package biv builds biventricular surface meshes from fitted control
// points and derives cardiac measurements from them: chamber volumes,
// myocardial masses and strain arc lengths for single frames, and volume
// and strain curves for whole cardiac cycles.
package biv

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/internal/models"
	"bivlite/pkg/mesh"
	"bivlite/pkg/template"
)

// DefaultMassIndex is the myocardial density, in g/mL, used to turn wall
// volumes into masses.
const DefaultMassIndex = 1.05

var (
	// ErrShape is returned when control points or frame arrays have the
	// wrong size.
	ErrShape = errors.New("biv: inconsistent shape")

	// ErrFrameIndex is returned for a reference frame outside the sequence.
	ErrFrameIndex = errors.New("biv: frame index out of range")
)

// Mesh is the biventricular surface of one frame.
//
// A Mesh is either populated, with one control point per template column,
// or empty. An empty mesh has no geometry and every derived measurement
// is NaN. Clear turns a populated mesh into an empty one; there is no way
// back.
type Mesh struct {
	// name identifies the mesh, e.g. "frame_3"
	name string

	// controlPoints is nil for an empty mesh
	controlPoints []r3.Vec

	// surface holds the subdivided vertices and the template elements
	surface *mesh.Mesh

	// tmpl is shared and never modified
	tmpl *template.Template
}

// New creates a mesh from control points and a template.
//
// Parameters:
//   - controlPoints: either empty or exactly one point per template column
//   - tmpl: the loaded template model
//   - name: the mesh label
//
// Returns:
//   - The mesh with its vertices computed as the subdivision matrix applied
//     to the control points, or ErrShape for a wrong point count
func New(controlPoints []r3.Vec, tmpl *template.Template, name string) (*Mesh, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrShape)
	}
	n := len(controlPoints)
	if n != 0 && n != tmpl.NumControlPoints() {
		return nil, fmt.Errorf("%w: %d control points, expected %d", ErrShape, n, tmpl.NumControlPoints())
	}

	var cps []r3.Vec
	if n > 0 {
		cps = append(cps, controlPoints...)
	}

	surface, err := mesh.New(name, subdivide(tmpl, cps),
		append([][3]int(nil), tmpl.Elements...),
		tmpl.MaterialIDs(),
		append([]int(nil), tmpl.ElementIDs...))
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	return &Mesh{
		name:          name,
		controlPoints: cps,
		surface:       surface,
		tmpl:          tmpl,
	}, nil
}

// Empty returns an empty mesh on the template. tmpl must not be nil.
func Empty(tmpl *template.Template, name string) *Mesh {
	m, err := New(nil, tmpl, name)
	if err != nil {
		panic(err)
	}
	return m
}

// Load creates a mesh on the template stored in folder, resolved through
// the cache.
func Load(controlPoints []r3.Vec, folder string, cache *template.Cache, name string) (*Mesh, error) {
	tmpl, err := cache.Get(folder)
	if err != nil {
		return nil, err
	}
	return New(controlPoints, tmpl, name)
}

// subdivide returns S·C, one vertex per subdivision row.
func subdivide(tmpl *template.Template, cps []r3.Vec) []r3.Vec {
	if len(cps) == 0 {
		return nil
	}
	c := mat.NewDense(len(cps), 3, nil)
	for i, p := range cps {
		c.SetRow(i, []float64{p.X, p.Y, p.Z})
	}

	var v mat.Dense
	v.Mul(tmpl.Subdivision, c)

	rows, _ := v.Dims()
	nodes := make([]r3.Vec, rows)
	for i := range nodes {
		nodes[i] = r3.Vec{X: v.At(i, 0), Y: v.At(i, 1), Z: v.At(i, 2)}
	}
	return nodes
}

// Name returns the mesh label.
func (m *Mesh) Name() string { return m.name }

// Template returns the shared template.
func (m *Mesh) Template() *template.Template { return m.tmpl }

// IsEmpty reports whether the mesh has no control points.
func (m *Mesh) IsEmpty() bool { return len(m.controlPoints) == 0 }

// Clear drops the control points and vertices of the mesh.
func (m *Mesh) Clear() {
	m.controlPoints = nil
	m.surface.Nodes = nil
}

// ControlPoints returns a copy of the control points.
func (m *Mesh) ControlPoints() []r3.Vec {
	return append([]r3.Vec(nil), m.controlPoints...)
}

// Nodes returns the subdivided vertices. The slice must not be modified.
func (m *Mesh) Nodes() []r3.Vec { return m.surface.Nodes }

// Elements returns the triangles of the template, thru-wall patch included.
// The slice must not be modified.
func (m *Mesh) Elements() [][3]int { return m.surface.Elements }

// Surface returns the full triangulated surface. The mesh must not be
// modified.
func (m *Mesh) Surface() *mesh.Mesh { return m.surface }

// Clone returns a deep copy sharing only the template.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		name:          m.name,
		controlPoints: m.ControlPoints(),
		surface:       m.surface.Clone(),
		tmpl:          m.tmpl,
	}
}

func (m *Mesh) component(s models.Surface, openValve bool) *mesh.Mesh {
	mats := s.Materials(openValve)
	ids := make([]int, len(mats))
	for i, c := range mats {
		ids[i] = int(c)
	}
	return m.surface.SelectComponent(s.Label, ids...)
}

// LVEndo extracts the left ventricular endocardium. With openValve false
// the aortic and mitral valve planes close the surface.
func (m *Mesh) LVEndo(openValve bool) *mesh.Mesh { return m.component(models.LVEndo, openValve) }

// RVEndo extracts the right ventricular endocardium. With openValve false
// the pulmonary and tricuspid valve planes close the surface.
func (m *Mesh) RVEndo(openValve bool) *mesh.Mesh { return m.component(models.RVEndo, openValve) }

// RVLVEpi extracts the combined epicardium of both ventricles.
func (m *Mesh) RVLVEpi(openValve bool) *mesh.Mesh { return m.component(models.RVLVEpi, openValve) }

// LVEpi extracts the left ventricular epicardium, closed against the right
// ventricle by the septum and the thru-wall patch.
func (m *Mesh) LVEpi(openValve bool) *mesh.Mesh { return m.component(models.LVEpi, openValve) }

// RVEpi extracts the right ventricular epicardium.
func (m *Mesh) RVEpi(openValve bool) *mesh.Mesh { return m.component(models.RVEpi, openValve) }

func (m *Mesh) closedVolume(s models.Surface, flip ...models.Component) float64 {
	if m.IsEmpty() {
		return math.NaN()
	}
	surf := m.component(s, false)
	for _, c := range flip {
		surf.FlipElements(int(c))
	}
	return surf.SignedVolume()
}

// LVEndoVolume returns the left ventricular cavity volume.
func (m *Mesh) LVEndoVolume() float64 {
	return m.closedVolume(models.LVEndo)
}

// RVEndoVolume returns the right ventricular cavity volume. The septum is
// wound for the left ventricle and is flipped first.
func (m *Mesh) RVEndoVolume() float64 {
	return m.closedVolume(models.RVEndo, models.RVSeptum)
}

// LVEpiVolume returns the volume enclosed by the left ventricular
// epicardium. The thru-wall patch is flipped first.
func (m *Mesh) LVEpiVolume() float64 {
	return m.closedVolume(models.LVEpi, models.ThruWall)
}

// RVEpiVolume returns the volume enclosed by the right ventricular
// epicardium. The septum is flipped first.
func (m *Mesh) RVEpiVolume() float64 {
	return m.closedVolume(models.RVEpi, models.RVSeptum)
}

// LVMass returns massIndex times the left ventricular wall volume.
func (m *Mesh) LVMass(massIndex float64) float64 {
	if m.IsEmpty() {
		return math.NaN()
	}
	return massIndex * (m.LVEpiVolume() - m.LVEndoVolume())
}

// RVMass returns massIndex times the right ventricular wall volume.
func (m *Mesh) RVMass(massIndex float64) float64 {
	if m.IsEmpty() {
		return math.NaN()
	}
	return massIndex * (m.RVEpiVolume() - m.RVEndoVolume())
}

// LongArcLength returns the length of the longitudinal polyline of surface
// in view. It is NaN for an empty mesh or a polyline with fewer than two
// vertices.
func (m *Mesh) LongArcLength(view models.View, surface models.WallSurface) float64 {
	return m.arcLength(m.tmpl.Longitudinal[models.LongKey(view, surface)])
}

// CircArcLength returns the length of the circumferential polyline of
// surface on slice.
func (m *Mesh) CircArcLength(slice models.Slice, surface models.WallSurface) float64 {
	return m.arcLength(m.tmpl.Circumferential[models.CircKey(slice, surface)])
}

func (m *Mesh) arcLength(polyline []int) float64 {
	if m.IsEmpty() || len(polyline) < 2 {
		return math.NaN()
	}
	nodes := m.surface.Nodes
	var length float64
	for i := 1; i < len(polyline); i++ {
		length += r3.Norm(r3.Sub(nodes[polyline[i]], nodes[polyline[i-1]]))
	}
	return length
}

// String summarises the mesh.
func (m *Mesh) String() string {
	present := make(map[int]bool)
	for _, mat := range m.surface.Materials {
		present[mat] = true
	}
	ids := make([]int, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = models.Component(id).String()
	}

	var b strings.Builder
	b.WriteString("<BivMesh>\n")
	fmt.Fprintf(&b, "  Label: %s\n", m.name)
	fmt.Fprintf(&b, "  Control points: %d\n", len(m.controlPoints))
	fmt.Fprintf(&b, "  Vertices: %d\n", m.surface.NumNodes())
	fmt.Fprintf(&b, "  Faces: %d\n", m.surface.NumElements())
	fmt.Fprintf(&b, "  Components: %s", strings.Join(names, ", "))
	return b.String()
}
