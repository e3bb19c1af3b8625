package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"bivlite/pkg/template"
)

// Template writes the synthetic template into a temporary folder and loads
// it.
func Template(t testing.TB, opts Options) *template.Template {
	t.Helper()
	dir := t.TempDir()
	if err := WriteTemplate(dir, opts); err != nil {
		t.Fatalf("writing template: %v", err)
	}
	tmpl, err := template.Load(dir)
	if err != nil {
		t.Fatalf("loading template: %v", err)
	}
	return tmpl
}

// Cycle returns the control points of n frames evenly spread over one
// period, frame i scaled by Scale(i/n).
func Cycle(n int) [][]r3.Vec {
	out := make([][]r3.Vec, n)
	for i := range out {
		out[i] = ControlPoints(Scale(float64(i) / float64(n)))
	}
	return out
}

// Cubed returns the volume scale factor of frame time t.
func Cubed(t float64) float64 {
	s := Scale(t)
	return s * s * s
}

// EqualFloats reports whether a and b hold the same values, treating NaN
// as equal to NaN.
func EqualFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
