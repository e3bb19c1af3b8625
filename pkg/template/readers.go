package template

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
	"github.com/spf13/cast"
	"gonum.org/v1/gonum/mat"

	"bivlite/internal/models"
)

// scanLines calls fn with the fields of every non-blank line of the file,
// split on sep or on whitespace when sep is empty. lineNo is 1-based.
func scanLines(path string, sep string, fn func(lineNo int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var fields []string
		if sep == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, sep)
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
		}
		if err := fn(lineNo, fields); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// readTriples reads 1-based vertex index triples and returns them 0-based.
// Tab separated files are accepted when tabs is set, otherwise any
// whitespace separates the columns.
func readTriples(path string, tabs bool) ([][3]int, error) {
	sep := ""
	if tabs {
		sep = "\t"
	}
	var out [][3]int
	err := scanLines(path, sep, func(_ int, fields []string) error {
		if len(fields) < 3 {
			return fmt.Errorf("%w: expected 3 indices, got %d", ErrInvalidTemplate, len(fields))
		}
		var tri [3]int
		for i := 0; i < 3; i++ {
			v, err := cast.ToIntE(fields[i])
			if err != nil {
				return fmt.Errorf("%w: bad index %q", ErrInvalidTemplate, fields[i])
			}
			tri[i] = v - 1
		}
		out = append(out, tri)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readMaterialTable reads "<element id> <material name>" rows.
func readMaterialTable(path string) ([]int, []string, error) {
	var ids []int
	var names []string
	err := scanLines(path, "", func(_ int, fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("%w: expected element id and material name", ErrInvalidTemplate)
		}
		id, err := cast.ToIntE(fields[0])
		if err != nil {
			return fmt.Errorf("%w: bad element id %q", ErrInvalidTemplate, fields[0])
		}
		ids = append(ids, id)
		names = append(names, fields[1])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ids, names, nil
}

// readLandmarkTable reads a tab separated polyline table. The header must
// name an Index and a Surface column, plus a View or Slice column holding
// the section. Rows keep their file order inside each polyline.
func readLandmarkTable(path string) (LandmarkTable, error) {
	table := LandmarkTable{}
	section, surface, index := -1, -1, -1

	err := scanLines(path, "\t", func(_ int, fields []string) error {
		if section < 0 {
			for i, name := range fields {
				switch strings.ToLower(name) {
				case "view", "slice":
					section = i
				case "surface":
					surface = i
				case "index":
					index = i
				}
			}
			if section < 0 || surface < 0 || index < 0 {
				return fmt.Errorf("%w: header must name View, Surface and Index columns", ErrInvalidTemplate)
			}
			return nil
		}

		need := max(section, surface, index)
		if len(fields) <= need {
			return fmt.Errorf("%w: expected at least %d columns", ErrInvalidTemplate, need+1)
		}
		idx, err := cast.ToIntE(fields[index])
		if err != nil {
			return fmt.Errorf("%w: bad vertex index %q", ErrInvalidTemplate, fields[index])
		}
		key := models.LandmarkKey{
			Section: strings.ToUpper(fields[section]),
			Surface: models.WallSurface(strings.ToUpper(fields[surface])),
		}
		table[key] = append(table[key], idx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// readDenseMatrix reads a whitespace separated matrix, one row per line.
func readDenseMatrix(path string) (*mat.Dense, error) {
	var data []float64
	cols := -1
	rows := 0
	err := scanLines(path, "", func(_ int, fields []string) error {
		if cols < 0 {
			cols = len(fields)
		}
		if len(fields) != cols {
			return fmt.Errorf("%w: row has %d values, expected %d", ErrInvalidTemplate, len(fields), cols)
		}
		for _, f := range fields {
			v, err := cast.ToFloat64E(f)
			if err != nil {
				return fmt.Errorf("%w: bad value %q", ErrInvalidTemplate, f)
			}
			data = append(data, v)
		}
		rows++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidTemplate, path)
	}
	return mat.NewDense(rows, cols, data), nil
}

// readMatrixMarket reads a real coordinate Matrix Market file. Indices are
// 1-based and repeated entries are summed.
func readMatrixMarket(path string) (*mat.Dense, error) {
	var m *mat.Dense
	var rows, cols int
	err := scanLines(path, "", func(_ int, fields []string) error {
		if strings.HasPrefix(fields[0], "%") {
			return nil
		}
		if m == nil {
			if len(fields) < 2 {
				return fmt.Errorf("%w: expected a \"rows cols nnz\" size line", ErrInvalidTemplate)
			}
			var err error
			if rows, err = cast.ToIntE(fields[0]); err != nil || rows <= 0 {
				return fmt.Errorf("%w: bad row count %q", ErrInvalidTemplate, fields[0])
			}
			if cols, err = cast.ToIntE(fields[1]); err != nil || cols <= 0 {
				return fmt.Errorf("%w: bad column count %q", ErrInvalidTemplate, fields[1])
			}
			m = mat.NewDense(rows, cols, nil)
			return nil
		}
		if len(fields) < 3 {
			return fmt.Errorf("%w: expected \"row col value\"", ErrInvalidTemplate)
		}
		i, err := cast.ToIntE(fields[0])
		if err != nil || i < 1 || i > rows {
			return fmt.Errorf("%w: row index %q outside [1, %d]", ErrInvalidTemplate, fields[0], rows)
		}
		j, err := cast.ToIntE(fields[1])
		if err != nil || j < 1 || j > cols {
			return fmt.Errorf("%w: column index %q outside [1, %d]", ErrInvalidTemplate, fields[1], cols)
		}
		v, err := cast.ToFloat64E(fields[2])
		if err != nil {
			return fmt.Errorf("%w: bad value %q", ErrInvalidTemplate, fields[2])
		}
		m.Set(i-1, j-1, m.At(i-1, j-1)+v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s has no size line", ErrInvalidTemplate, path)
	}
	return m, nil
}

// readNpyMatrix reads a two dimensional float64 .npy array.
func readNpyMatrix(path string) (*mat.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("%w: %s has shape %v, expected a matrix", ErrInvalidTemplate, path, r.Shape)
	}
	rows, cols := r.Shape[0], r.Shape[1]
	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %s holds %d values for shape %v", ErrInvalidTemplate, path, len(data), r.Shape)
	}
	if r.ColumnMajor {
		m := mat.NewDense(cols, rows, data)
		return mat.DenseCopyOf(m.T()), nil
	}
	return mat.NewDense(rows, cols, data), nil
}
