// Package mesh provides a minimal triangulated surface container with
// material tagging, component selection and enclosed-volume computation.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrShape is returned when the arrays of a mesh do not line up.
var ErrShape = errors.New("mesh: inconsistent shape")

// Mesh is a named triangulated surface.
//
// Elements index into Nodes. Materials holds one label per element and
// ElementIDs a secondary per-element label (the element id of the source
// table). A Mesh returned by SelectComponent or Clone owns its arrays.
type Mesh struct {
	// Name identifies the surface, e.g. "LV_ENDO"
	Name string

	// Nodes are the vertex positions
	Nodes []r3.Vec

	// Elements are triangles given as three node indices
	Elements [][3]int

	// Materials labels each element
	Materials []int

	// ElementIDs is the secondary label of each element
	ElementIDs []int
}

// New creates a mesh and checks that its arrays are consistent. ids may be
// nil, in which case elements are numbered sequentially.
func New(name string, nodes []r3.Vec, elements [][3]int, materials, ids []int) (*Mesh, error) {
	if len(materials) != len(elements) {
		return nil, fmt.Errorf("%w: %d elements but %d materials", ErrShape, len(elements), len(materials))
	}
	if ids == nil {
		ids = make([]int, len(elements))
		for i := range ids {
			ids[i] = i
		}
	}
	if len(ids) != len(elements) {
		return nil, fmt.Errorf("%w: %d elements but %d element ids", ErrShape, len(elements), len(ids))
	}
	// an empty node array is allowed: it stands for a surface without geometry
	if len(nodes) > 0 {
		for i, e := range elements {
			for _, v := range e {
				if v < 0 || v >= len(nodes) {
					return nil, fmt.Errorf("%w: element %d references node %d (have %d nodes)", ErrShape, i, v, len(nodes))
				}
			}
		}
	}
	return &Mesh{
		Name:       name,
		Nodes:      nodes,
		Elements:   elements,
		Materials:  materials,
		ElementIDs: ids,
	}, nil
}

// NumNodes returns the number of vertices.
func (m *Mesh) NumNodes() int { return len(m.Nodes) }

// NumElements returns the number of triangles.
func (m *Mesh) NumElements() int { return len(m.Elements) }

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Name:       m.Name,
		Nodes:      append([]r3.Vec(nil), m.Nodes...),
		Elements:   append([][3]int(nil), m.Elements...),
		Materials:  append([]int(nil), m.Materials...),
		ElementIDs: append([]int(nil), m.ElementIDs...),
	}
}

// SelectComponent returns a new mesh holding the elements whose material is
// one of materials. The full node array is copied so that node indices
// (for instance strain landmark tables) stay valid in the result.
func (m *Mesh) SelectComponent(name string, materials ...int) *Mesh {
	keep := make(map[int]bool, len(materials))
	for _, mat := range materials {
		keep[mat] = true
	}

	out := &Mesh{
		Name:  name,
		Nodes: append([]r3.Vec(nil), m.Nodes...),
	}
	for i, mat := range m.Materials {
		if !keep[mat] {
			continue
		}
		out.Elements = append(out.Elements, m.Elements[i])
		out.Materials = append(out.Materials, mat)
		out.ElementIDs = append(out.ElementIDs, m.ElementIDs[i])
	}
	return out
}

// Compact returns a copy of the mesh that only keeps the nodes referenced by
// its elements. Node order is preserved and elements are re-indexed.
func (m *Mesh) Compact() *Mesh {
	if len(m.Nodes) == 0 {
		return m.Clone()
	}
	remap := make([]int, len(m.Nodes))
	for i := range remap {
		remap[i] = -1
	}
	for _, e := range m.Elements {
		for _, v := range e {
			remap[v] = 0
		}
	}

	out := &Mesh{
		Name:       m.Name,
		Materials:  append([]int(nil), m.Materials...),
		ElementIDs: append([]int(nil), m.ElementIDs...),
	}
	for i, r := range remap {
		if r < 0 {
			continue
		}
		remap[i] = len(out.Nodes)
		out.Nodes = append(out.Nodes, m.Nodes[i])
	}
	out.Elements = make([][3]int, len(m.Elements))
	for i, e := range m.Elements {
		out.Elements[i] = [3]int{remap[e[0]], remap[e[1]], remap[e[2]]}
	}
	return out
}

// SignedVolume returns the volume enclosed by the surface using the
// divergence theorem: the sum over triangles (a, b, c) of a·(b×c)/6.
// Elements must be wound consistently outward; a surface wound inward
// yields a negative volume. A mesh without nodes has NaN volume.
func (m *Mesh) SignedVolume() float64 {
	if len(m.Nodes) == 0 {
		return math.NaN()
	}
	var vol float64
	for _, e := range m.Elements {
		a, b, c := m.Nodes[e[0]], m.Nodes[e[1]], m.Nodes[e[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}

// FlipElements reverses the facet orientation of every element tagged with
// material by swapping its last two vertices. The mesh is modified in place
// and the number of flipped elements is returned.
func (m *Mesh) FlipElements(material int) int {
	n := 0
	for i, mat := range m.Materials {
		if mat != material {
			continue
		}
		e := m.Elements[i]
		m.Elements[i] = [3]int{e[0], e[2], e[1]}
		n++
	}
	return n
}

// Area returns the total surface area of the elements.
func (m *Mesh) Area() float64 {
	if len(m.Nodes) == 0 {
		return math.NaN()
	}
	var area float64
	for _, e := range m.Elements {
		a, b, c := m.Nodes[e[0]], m.Nodes[e[1]], m.Nodes[e[2]]
		area += r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
	}
	return area
}

// Bounds returns the axis-aligned bounding box of the nodes referenced by
// the elements. ok is false when the mesh has no elements or no nodes.
func (m *Mesh) Bounds() (lo, hi r3.Vec, ok bool) {
	if len(m.Nodes) == 0 {
		return lo, hi, false
	}
	for _, e := range m.Elements {
		for _, v := range e {
			p := m.Nodes[v]
			if !ok {
				lo, hi, ok = p, p, true
				continue
			}
			lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	return lo, hi, ok
}
