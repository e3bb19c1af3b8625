// Package template loads the biventricular template model: the subdivision
// matrix mapping control points to surface vertices, the triangle table with
// its anatomical materials, the thru-wall patch closing the septum gap, and
// the strain landmark polylines.
//
// A template is immutable once loaded and may be shared between meshes.
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"

	"bivlite/internal/models"
)

// File names expected in a template folder.
const (
	SubdivisionSparseFile = "subdivision_matrix.mtx"
	SubdivisionNpyFile    = "subdivision_matrix.npy"
	SubdivisionDenseFile  = "subdivision_matrix.txt"
	SubdivisionMatFile    = "subdivision_matrix_sparse.mat"
	ElementsFile          = "ETIndicesSorted.txt"
	MaterialsFile         = "ETIndicesMaterials.txt"
	ThruWallFile          = "thru_wall_et_indices.txt"
	LongitudinalFile      = "ls_points.txt"
	CircumferentialFile   = "cs_points.txt"
)

var (
	// ErrMissingFile is returned when the folder or a required file is absent.
	ErrMissingFile = errors.New("template: missing file")

	// ErrInvalidTemplate is returned when the template files are inconsistent.
	ErrInvalidTemplate = errors.New("template: invalid template")
)

// LandmarkTable maps a strain polyline key to its ordered vertex indices.
type LandmarkTable map[models.LandmarkKey][]int

// Template is the fixed anatomical model shared by every frame.
type Template struct {
	// Folder is the absolute path the template was loaded from
	Folder string

	// Subdivision maps the control points to the dense vertices (V x C)
	Subdivision *mat.Dense

	// Elements are 0-based vertex index triples, thru-wall patch last
	Elements [][3]int

	// Materials labels each element with its anatomical component
	Materials []models.Component

	// ElementIDs is the element id column of the material table, continued
	// for the thru-wall elements
	ElementIDs []int

	// Longitudinal holds the polylines used for longitudinal strain
	Longitudinal LandmarkTable

	// Circumferential holds the polylines used for circumferential strain
	Circumferential LandmarkTable
}

// NumVertices returns the number of dense vertices produced by subdivision.
func (t *Template) NumVertices() int {
	r, _ := t.Subdivision.Dims()
	return r
}

// NumControlPoints returns the number of control points the subdivision
// matrix expects.
func (t *Template) NumControlPoints() int {
	_, c := t.Subdivision.Dims()
	return c
}

// MaterialIDs returns the element materials as plain integers.
func (t *Template) MaterialIDs() []int {
	ids := make([]int, len(t.Materials))
	for i, m := range t.Materials {
		ids[i] = int(m)
	}
	return ids
}

// Load reads a template folder. It fails if the folder or any of the
// required files is missing, or if the files are inconsistent with each
// other. Landmark tables are optional.
func Load(folder string) (*Template, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving template folder %s: %w", folder, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: template folder %s does not exist", ErrMissingFile, abs)
	}

	subdiv, err := loadSubdivision(abs)
	if err != nil {
		return nil, err
	}
	vertices, controls := subdiv.Dims()
	if controls != models.NumControlPoints {
		return nil, fmt.Errorf("%w: subdivision matrix has %d columns, expected %d",
			ErrInvalidTemplate, controls, models.NumControlPoints)
	}

	elemPath, err := requireFile(abs, ElementsFile)
	if err != nil {
		return nil, err
	}
	faces, err := readTriples(elemPath, false)
	if err != nil {
		return nil, err
	}

	matPath, err := requireFile(abs, MaterialsFile)
	if err != nil {
		return nil, err
	}
	ids, names, err := readMaterialTable(matPath)
	if err != nil {
		return nil, err
	}
	if len(names) != len(faces) {
		return nil, fmt.Errorf("%w: %s has %d rows but %s has %d",
			ErrInvalidTemplate, MaterialsFile, len(names), ElementsFile, len(faces))
	}

	thruPath, err := requireFile(abs, ThruWallFile)
	if err != nil {
		return nil, err
	}
	thru, err := readTriples(thruPath, true)
	if err != nil {
		return nil, err
	}

	materials, err := encodeMaterials(names)
	if err != nil {
		return nil, err
	}

	t := &Template{
		Folder:      abs,
		Subdivision: subdiv,
	}

	t.Elements = append(t.Elements, faces...)
	t.Elements = append(t.Elements, thru...)
	t.Materials = append(t.Materials, materials...)
	t.ElementIDs = append(t.ElementIDs, ids...)
	for i := range thru {
		t.Materials = append(t.Materials, models.ThruWall)
		t.ElementIDs = append(t.ElementIDs, len(faces)+i)
	}

	for i, e := range t.Elements {
		for _, v := range e {
			if v < 0 || v >= vertices {
				return nil, fmt.Errorf("%w: element %d references vertex %d outside [0, %d)",
					ErrInvalidTemplate, i, v+1, vertices)
			}
		}
	}

	if t.Longitudinal, err = loadLandmarks(abs, LongitudinalFile, vertices); err != nil {
		return nil, err
	}
	if t.Circumferential, err = loadLandmarks(abs, CircumferentialFile, vertices); err != nil {
		return nil, err
	}

	return t, nil
}

// loadSubdivision reads the first subdivision matrix encoding found in the
// folder: sparse Matrix Market, NumPy .npy, then dense text.
func loadSubdivision(folder string) (*mat.Dense, error) {
	if p := filepath.Join(folder, SubdivisionSparseFile); fileExists(p) {
		return readMatrixMarket(p)
	}
	if p := filepath.Join(folder, SubdivisionNpyFile); fileExists(p) {
		return readNpyMatrix(p)
	}
	if p := filepath.Join(folder, SubdivisionDenseFile); fileExists(p) {
		return readDenseMatrix(p)
	}
	if fileExists(filepath.Join(folder, SubdivisionMatFile)) {
		// MATLAB files are not read; scipy.io.mmwrite or numpy.save convert them
		return nil, fmt.Errorf("%w: %s in %s must be converted to %s or %s",
			ErrMissingFile, SubdivisionMatFile, folder, SubdivisionSparseFile, SubdivisionNpyFile)
	}
	return nil, fmt.Errorf("%w: no subdivision matrix (%s, %s or %s) in %s, convert %s to %s or %s",
		ErrMissingFile, SubdivisionSparseFile, SubdivisionNpyFile, SubdivisionDenseFile, folder,
		SubdivisionMatFile, SubdivisionSparseFile, SubdivisionNpyFile)
}

// encodeMaterials converts material names to dense integers following the
// sorted order of the distinct names.
func encodeMaterials(names []string) ([]models.Component, error) {
	distinct := make(map[string]bool)
	for _, n := range names {
		distinct[n] = true
	}
	if len(distinct) != models.NumComponents-1 {
		return nil, fmt.Errorf("%w: %s has %d distinct materials, expected %d",
			ErrInvalidTemplate, MaterialsFile, len(distinct), models.NumComponents-1)
	}

	sorted := make([]string, 0, len(distinct))
	for n := range distinct {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	code := make(map[string]models.Component, len(sorted))
	for i, n := range sorted {
		code[n] = models.Component(i)
	}

	out := make([]models.Component, len(names))
	for i, n := range names {
		out[i] = code[n]
	}
	return out, nil
}

func loadLandmarks(folder, name string, vertices int) (LandmarkTable, error) {
	p := filepath.Join(folder, name)
	if !fileExists(p) {
		return LandmarkTable{}, nil
	}
	table, err := readLandmarkTable(p)
	if err != nil {
		return nil, err
	}
	for key, idx := range table {
		for _, v := range idx {
			if v < 0 || v >= vertices {
				return nil, fmt.Errorf("%w: %s polyline %s/%s references vertex %d outside [0, %d)",
					ErrInvalidTemplate, name, key.Section, key.Surface, v, vertices)
			}
		}
	}
	return table, nil
}

func requireFile(folder, name string) (string, error) {
	p := filepath.Join(folder, name)
	if !fileExists(p) {
		return "", fmt.Errorf("%w: cannot find %s", ErrMissingFile, p)
	}
	return p, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
