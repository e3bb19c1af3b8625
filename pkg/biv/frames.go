package biv

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/pkg/template"
)

// Frames is an ordered sequence of meshes over a cardiac cycle, each
// paired with a time value. Times are frame numbers or normalised times in
// [0, 1), depending on where the sequence comes from.
//
// Meshes are held by pointer: Slice and DropEmpty return containers that
// share meshes with the source, while Clone copies them.
type Frames struct {
	meshes []*Mesh
	times  []float64
}

// NewFrames pairs meshes with times. A nil times slice numbers the frames
// 0, 1, 2, ...
func NewFrames(meshes []*Mesh, times []float64) (*Frames, error) {
	if times == nil {
		times = make([]float64, len(meshes))
		for i := range times {
			times[i] = float64(i)
		}
	}
	if len(times) != len(meshes) {
		return nil, fmt.Errorf("%w: %d meshes but %d times", ErrShape, len(meshes), len(times))
	}
	return &Frames{
		meshes: append([]*Mesh(nil), meshes...),
		times:  append([]float64(nil), times...),
	}, nil
}

// FromControlPoints builds one frame per control point set, named
// frame_<i>. Every set must match the template.
func FromControlPoints(tmpl *template.Template, cps [][]r3.Vec) (*Frames, error) {
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrShape)
	}
	meshes := make([]*Mesh, len(cps))
	for i, c := range cps {
		if len(c) != tmpl.NumControlPoints() {
			return nil, fmt.Errorf("%w: frame %d has %d control points, expected %d",
				ErrShape, i, len(c), tmpl.NumControlPoints())
		}
		m, err := New(c, tmpl, frameName(i))
		if err != nil {
			return nil, err
		}
		meshes[i] = m
	}
	return NewFrames(meshes, nil)
}

func frameName(i int) string {
	return fmt.Sprintf("frame_%d", i)
}

// Len returns the number of frames.
func (f *Frames) Len() int { return len(f.meshes) }

// At returns the mesh of frame i.
func (f *Frames) At(i int) *Mesh { return f.meshes[i] }

// Meshes returns the meshes in order. The slice is a copy, the meshes are
// shared.
func (f *Frames) Meshes() []*Mesh { return append([]*Mesh(nil), f.meshes...) }

// Times returns a copy of the frame times.
func (f *Frames) Times() []float64 { return append([]float64(nil), f.times...) }

// SetTimes replaces the frame times.
func (f *Frames) SetTimes(times []float64) error {
	if len(times) != len(f.meshes) {
		return fmt.Errorf("%w: %d times for %d frames", ErrShape, len(times), len(f.meshes))
	}
	f.times = append([]float64(nil), times...)
	return nil
}

// Slice returns frames [i, j) in a new container sharing the meshes.
// Clearing or editing a mesh through the slice changes the source too, use
// Clone first when the two must stay independent.
func (f *Frames) Slice(i, j int) *Frames {
	return &Frames{
		meshes: append([]*Mesh(nil), f.meshes[i:j]...),
		times:  append([]float64(nil), f.times[i:j]...),
	}
}

// Clone returns a deep copy of the sequence.
func (f *Frames) Clone() *Frames {
	c := &Frames{
		meshes: make([]*Mesh, len(f.meshes)),
		times:  append([]float64(nil), f.times...),
	}
	for i, m := range f.meshes {
		c.meshes[i] = m.Clone()
	}
	return c
}

// IsNormalisedTime reports whether every time lies in [0, 1).
func (f *Frames) IsNormalisedTime() bool {
	for _, t := range f.times {
		if !(t >= 0 && t < 1) {
			return false
		}
	}
	return true
}

// EmptyIndices returns the indices of the empty frames.
func (f *Frames) EmptyIndices() []int {
	var idx []int
	for i, m := range f.meshes {
		if m.IsEmpty() {
			idx = append(idx, i)
		}
	}
	return idx
}

func (f *Frames) populated() ([]*Mesh, []float64) {
	var meshes []*Mesh
	var times []float64
	for i, m := range f.meshes {
		if m.IsEmpty() {
			continue
		}
		meshes = append(meshes, m)
		times = append(times, f.times[i])
	}
	return meshes, times
}

// DropEmpty returns a new container without the empty frames. The source
// keeps its length and order, but the surviving meshes are shared: MakeEmpty
// or any mesh edit on the result also changes the source. Clone first when
// the two must stay independent.
func (f *Frames) DropEmpty() *Frames {
	meshes, times := f.populated()
	return &Frames{meshes: meshes, times: times}
}

// DropEmptyInPlace removes the empty frames from the container.
func (f *Frames) DropEmptyInPlace() {
	f.meshes, f.times = f.populated()
}

// MakeEmpty clears the meshes at the given indices, in place.
func (f *Frames) MakeEmpty(indices ...int) error {
	for _, i := range indices {
		if i < 0 || i >= len(f.meshes) {
			return fmt.Errorf("%w: frame %d of %d", ErrShape, i, len(f.meshes))
		}
	}
	for _, i := range indices {
		f.meshes[i].Clear()
	}
	return nil
}
