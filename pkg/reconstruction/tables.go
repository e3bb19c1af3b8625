package reconstruction

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"bivlite/pkg/biv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteVolumesCSV writes one row per frame: the frame index followed by
// the volume and mass columns. Empty frames are written as NaN.
func WriteVolumesCSV(path string, v *biv.Volumes) error {
	names, cols := v.Columns()

	records := make([][]string, 0, len(v.Frame)+1)
	records = append(records, append([]string{"Frame"}, names...))
	for i, frame := range v.Frame {
		row := make([]string, 0, len(cols)+1)
		row = append(row, strconv.Itoa(frame))
		for _, col := range cols {
			row = append(row, formatFloat(col[i]))
		}
		records = append(records, row)
	}
	return writeCSV(path, records)
}

// WriteStrainCSV writes the strain curves named in keys as columns, one
// row per frame. Keys missing from strain are left out.
func WriteStrainCSV(path string, strain biv.Strain, keys []string) error {
	header := []string{"Frame"}
	var cols [][]float64
	n := 0
	for _, k := range keys {
		values, ok := strain[k]
		if !ok {
			continue
		}
		header = append(header, k)
		cols = append(cols, values)
		n = max(n, len(values))
	}

	records := make([][]string, 0, n+1)
	records = append(records, header)
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(cols)+1)
		row = append(row, strconv.Itoa(i))
		for _, col := range cols {
			if i < len(col) {
				row = append(row, formatFloat(col[i]))
			} else {
				row = append(row, "")
			}
		}
		records = append(records, row)
	}
	return writeCSV(path, records)
}

// WriteSummaryCSV writes the cycle summary as name,value rows.
func WriteSummaryCSV(path string, s biv.Summary) error {
	return writeCSV(path, [][]string{
		{"Measure", "Value"},
		{"EDV", formatFloat(s.EDV)},
		{"ESV", formatFloat(s.ESV)},
		{"SV", formatFloat(s.SV)},
		{"EF", formatFloat(s.EF)},
		{"ED_FRAME", strconv.Itoa(s.EDFrame)},
		{"ES_FRAME", strconv.Itoa(s.ESFrame)},
		{"LVM", formatFloat(s.LVM)},
		{"RVM", formatFloat(s.RVM)},
	})
}
