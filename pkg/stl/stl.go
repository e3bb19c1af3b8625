// Package stl writes triangulated surfaces as binary STL files.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/pkg/mesh"
)

// Triangle is one facet of an STL file.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromMesh converts the elements of m to facets, computing each normal from
// the winding of its vertices. An empty mesh yields no facets.
func FromMesh(m *mesh.Mesh) []Triangle {
	if m.NumNodes() == 0 {
		return nil
	}
	out := make([]Triangle, 0, m.NumElements())
	for _, e := range m.Elements {
		a, b, c := m.Nodes[e[0]], m.Nodes[e[1]], m.Nodes[e[2]]
		out = append(out, Triangle{
			Normal:  toFloat32(unitNormal(a, b, c)),
			Vertex1: toFloat32(a),
			Vertex2: toFloat32(b),
			Vertex3: toFloat32(c),
		})
	}
	return out
}

func unitNormal(a, b, c r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	norm := r3.Norm(n)
	if norm == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/norm, n)
}

func toFloat32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Write encodes the facets as binary STL. name is stored in the 80 byte
// header and truncated if longer.
//
// Layout: header (80 bytes), facet count (uint32), then per facet the
// normal and three vertices as little endian float32 followed by a zero
// uint16 attribute.
func Write(w io.Writer, name string, triangles []Triangle) error {
	if uint64(len(triangles)) > math.MaxUint32 {
		return fmt.Errorf("too many triangles: %d", len(triangles))
	}

	var header [80]byte
	copy(header[:], name)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}

	var buf [50]byte
	for _, t := range triangles {
		off := 0
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
				off += 4
			}
		}
		binary.LittleEndian.PutUint16(buf[off:], 0)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// SaveToSTL writes the triangles to a binary STL file.
func SaveToSTL(filename string, triangles []Triangle) error {
	return save(filename, "bivlite", triangles)
}

// SaveMesh writes the elements of m to a binary STL file whose header
// carries the mesh name.
func SaveMesh(filename string, m *mesh.Mesh) error {
	return save(filename, m.Name, FromMesh(m))
}

func save(filename, name string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating STL file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := Write(w, name, triangles); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return file.Close()
}

// ReadHeader returns the header text and the facet count of binary STL
// data.
func ReadHeader(r io.Reader) (name string, count uint32, err error) {
	var header [80]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return "", 0, err
	}
	if err = binary.Read(r, binary.LittleEndian, &count); err != nil {
		return "", 0, err
	}
	end := len(header)
	for end > 0 && header[end-1] == 0 {
		end--
	}
	return string(header[:end]), count, nil
}
