package biv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/pkg/template"
)

// FittedModelHeader is the first line of a fitted model file.
const FittedModelHeader = "x,y,z,Frame"

// ReadFittedModel reads the control points stored in a fitted model file:
// a header line followed by one comma separated row per control point,
// of which the first three columns are used.
func ReadFittedModel(path string) ([]r3.Vec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fitted model: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", ErrShape, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cps []r3.Vec
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("%w: %s row %d has %d columns", ErrShape, path, len(cps)+2, len(rec))
		}
		var xyz [3]float64
		for i := range xyz {
			if xyz[i], err = cast.ToFloat64E(rec[i]); err != nil {
				return nil, fmt.Errorf("%w: %s row %d: bad coordinate %q", ErrShape, path, len(cps)+2, rec[i])
			}
		}
		cps = append(cps, r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return cps, nil
}

// FromFittedModel loads a fitted model file into a mesh.
func FromFittedModel(path string, tmpl *template.Template, name string) (*Mesh, error) {
	cps, err := ReadFittedModel(path)
	if err != nil {
		return nil, err
	}
	m, err := New(cps, tmpl, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteFittedModel writes the control points to path, tagging every row
// with the frame number.
func (m *Mesh) WriteFittedModel(path string, frame int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating fitted model: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, FittedModelHeader)
	for _, p := range m.controlPoints {
		fmt.Fprintf(w, "%.16f,%.16f,%.16f,%d\n", p.X, p.Y, p.Z, frame)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
