// Package visualization renders cardiac cycle measurements and mesh
// geometry as static images using gonum/plot. The output format follows
// the file extension (.png, .svg, .pdf).
package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bivlite/pkg/biv"
	"bivlite/pkg/mesh"
)

// ErrNoData is returned when every value of a plot is NaN.
var ErrNoData = errors.New("visualization: nothing to plot")

// Default image size.
var (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()

	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

// points pairs frame indices with values, skipping NaN values.
func points(ys []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(ys))
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: y})
	}
	return pts
}

// addCurves adds one line with markers per named series and reports how
// many had data.
func addCurves(p *plot.Plot, names []string, series [][]float64) (int, error) {
	added := 0
	for i, ys := range series {
		pts := points(ys)
		if len(pts) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return added, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		scatter.Shape = draw.CircleGlyph{}
		scatter.Radius = vg.Points(2)
		scatter.Color = plotutil.Color(i)

		p.Add(line, scatter)
		p.Legend.Add(names[i], line)
		added++
	}
	return added, nil
}

// SaveVolumeCurves plots the chamber volumes and masses of every frame.
// Empty frames leave gaps.
func SaveVolumeCurves(v *biv.Volumes, path string) error {
	p := newPlot("Volumes", "Frame", "Volume (mL) / Mass (g)")
	names, series := v.Columns()
	n, err := addCurves(p, names, series)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoData
	}
	return p.Save(Width, Height, path)
}

// SaveStrainCurves plots the strain curves named in keys, in that order.
// Keys missing from strain are skipped.
func SaveStrainCurves(title string, strain biv.Strain, keys []string, path string) error {
	p := newPlot(title, "Frame", "Strain")
	names := make([]string, 0, len(keys))
	series := make([][]float64, 0, len(keys))
	for _, k := range keys {
		if values, ok := strain[k]; ok {
			names = append(names, k)
			series = append(series, values)
		}
	}
	n, err := addCurves(p, names, series)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoData
	}

	// zero strain reference
	last := 0
	for _, s := range series {
		last = max(last, len(s)-1)
	}
	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: float64(last), Y: 0}})
	if err != nil {
		return err
	}
	zero.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	zero.Color = color.RGBA{A: 255}
	p.Add(zero)

	return p.Save(Width, Height, path)
}

// projection returns the in-plane coordinates of the plane orthogonal to
// axis and their labels.
func projection(axis string) (func(r3.Vec) (float64, float64), string, string, error) {
	switch axis {
	case "x", "X":
		return func(v r3.Vec) (float64, float64) { return v.Y, v.Z }, "Y", "Z", nil
	case "y", "Y":
		return func(v r3.Vec) (float64, float64) { return v.X, v.Z }, "X", "Z", nil
	case "z", "Z":
		return func(v r3.Vec) (float64, float64) { return v.X, v.Y }, "X", "Y", nil
	default:
		return nil, "", "", fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveNodeProjection plots the vertices of a mesh projected along axis as
// a point cloud.
func SaveNodeProjection(m *biv.Mesh, axis string, path string) error {
	if _, _, _, err := projection(axis); err != nil {
		return err
	}
	if m.IsEmpty() {
		return fmt.Errorf("%w: mesh %s is empty", ErrNoData, m.Name())
	}
	return SaveComponentProjection(m.Surface(), axis, path)
}

// SaveComponentProjection plots the nodes used by the elements of a
// component surface, such as the result of (*biv.Mesh).LVEndo, projected
// along axis. The axes span the bounding box of the component with a small
// margin.
func SaveComponentProjection(c *mesh.Mesh, axis string, path string) error {
	proj, xl, yl, err := projection(axis)
	if err != nil {
		return err
	}

	c = c.Compact()
	lo, hi, ok := c.Bounds()
	if !ok || math.IsNaN(lo.X+lo.Y+lo.Z+hi.X+hi.Y+hi.Z) {
		return fmt.Errorf("%w: component %s has no nodes", ErrNoData, c.Name)
	}

	pts := make(plotter.XYs, len(c.Nodes))
	for i, v := range c.Nodes {
		pts[i].X, pts[i].Y = proj(v)
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}

	p := newPlot(fmt.Sprintf("%s (%s axis)", c.Name, axis), xl, yl)
	p.Add(scatter)

	xMin, yMin := proj(lo)
	xMax, yMax := proj(hi)
	margin := 0.05 * math.Max(xMax-xMin, yMax-yMin)
	if margin == 0 {
		margin = 1
	}
	p.X.Min, p.X.Max = xMin-margin, xMax+margin
	p.Y.Min, p.Y.Max = yMin-margin, yMax+margin

	return p.Save(Height, Height, path)
}

// SaveProjectionSequence writes one node projection per populated frame
// into outputDir.
func SaveProjectionSequence(frames *biv.Frames, axis string, outputDir string) error {
	if _, _, _, err := projection(axis); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i := 0; i < frames.Len(); i++ {
		m := frames.At(i)
		if m.IsEmpty() {
			continue
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("nodes_%s_%03d.png", axis, i))
		if err := SaveNodeProjection(m, axis, filename); err != nil {
			return err
		}
	}
	return nil
}
