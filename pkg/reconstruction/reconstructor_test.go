package reconstruction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bivlite/internal/testutil"
	"bivlite/pkg/biv"
	"bivlite/pkg/cleaning"
	"bivlite/pkg/stl"
	"bivlite/pkg/template"
)

// writeCase writes a template and a cycle of n fitted models, returning
// the template and input folders.
func writeCase(t *testing.T, n int) (string, string) {
	t.Helper()
	dir := t.TempDir()

	modelDir := filepath.Join(dir, "model")
	require.NoError(t, testutil.WriteTemplate(modelDir, testutil.Options{}))

	inputDir := filepath.Join(dir, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0755))
	for i, cps := range testutil.Cycle(n) {
		path := filepath.Join(inputDir, fmt.Sprintf("case_model_frame_%03d.txt", i))
		require.NoError(t, testutil.WriteModel(path, cps, i))
	}
	return modelDir, inputDir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestProcess(t *testing.T) {
	modelDir, inputDir := writeCase(t, 20)
	out := filepath.Join(t.TempDir(), "out")

	r := NewReconstructor(&Params{
		ModelFolder: modelDir,
		InputDir:    inputDir,
		OutputDir:   out,
	}, nil, nil)
	require.NoError(t, r.Process())

	assert.Equal(t, 20, r.Frames().Len())
	assert.Nil(t, r.CleaningResult())

	s := r.Summary()
	assert.Equal(t, 0, s.EDFrame)
	assert.Equal(t, 10, s.ESFrame)
	assert.InDelta(t, testutil.LVEndoVolume*1.2*1.2*1.2, s.EDV, 1e-9)
	assert.InDelta(t, testutil.LVEndoVolume*0.8*0.8*0.8, s.ESV, 1e-9)
	assert.InDelta(t, 1-0.512/1.728, s.EF, 1e-9)

	for name, values := range r.GLS() {
		assert.Zero(t, values[0], name)
	}
	assert.Len(t, r.GCS(), 9)

	volumes := readCSV(t, filepath.Join(out, "volumes.csv"))
	require.Len(t, volumes, 21)
	assert.Equal(t, []string{"Frame", "LV_ENDO", "LV_EPI", "RV_ENDO", "RV_EPI", "LVM", "RVM"}, volumes[0])
	assert.Equal(t, "0", volumes[1][0])
	assert.Equal(t, formatFloat(r.Volumes().LVEndo[0]), volumes[1][1])

	gls := readCSV(t, filepath.Join(out, "gls.csv"))
	require.Len(t, gls, 21)
	assert.Equal(t, "LV_GLS_2CH", gls[0][1])

	gcs := readCSV(t, filepath.Join(out, "gcs.csv"))
	assert.Len(t, gcs[0], 10)

	summary := readCSV(t, filepath.Join(out, "summary.csv"))
	assert.Equal(t, []string{"ED_FRAME", "0"}, summary[5])

	assert.NoDirExists(t, filepath.Join(out, "stl"))
	assert.NoDirExists(t, filepath.Join(out, "models"))
	assert.NoFileExists(t, filepath.Join(out, "volumes.png"))
}

func TestProcessFull(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	modelDir, inputDir := writeCase(t, 20)
	out := filepath.Join(t.TempDir(), "out")

	r := NewReconstructor(&Params{
		ModelFolder:    modelDir,
		InputDir:       inputDir,
		OutputDir:      out,
		MaxFrames:      22,
		Clean:          true,
		Cleaning:       cleaning.DefaultParams(),
		ResampleFrames: 12,
		SavePlots:      true,
		SaveSTL:        true,
		SaveModels:     true,
		ModelName:      "case",
	}, template.NewCache(0), nil)
	require.NoError(t, r.Process())

	res := r.CleaningResult()
	require.NotNil(t, res)
	assert.Equal(t, []int{20, 21}, res.Empty)
	assert.Empty(t, res.Frames.EmptyIndices())

	assert.Equal(t, 12, r.Frames().Len())
	assert.Empty(t, r.Frames().EmptyIndices())
	for _, v := range r.Volumes().LVEndo {
		assert.False(t, math.IsNaN(v))
	}

	for _, name := range []string{"volumes.png", "gls.png", "gcs.png"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	for _, name := range []string{"LV_ENDO", "RV_ENDO", "LV_EPI", "RV_EPI"} {
		f, err := os.Open(filepath.Join(out, "stl", name+".stl"))
		require.NoError(t, err, name)
		header, count, err := stl.ReadHeader(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, name, header)
		assert.NotZero(t, count, name)
	}

	for i := 0; i < 12; i++ {
		assert.FileExists(t, filepath.Join(out, "models", biv.ModelFileName("case", i)))
	}
}

func TestProcessErrors(t *testing.T) {
	modelDir, inputDir := writeCase(t, 6)

	r := NewReconstructor(&Params{
		ModelFolder: filepath.Join(t.TempDir(), "missing"),
		InputDir:    inputDir,
		OutputDir:   t.TempDir(),
	}, nil, nil)
	assert.Error(t, r.Process())

	r = NewReconstructor(&Params{
		ModelFolder: modelDir,
		InputDir:    t.TempDir(),
		OutputDir:   t.TempDir(),
		MaxFrames:   4,
	}, nil, nil)
	assert.True(t, errors.Is(r.Process(), ErrNoFrames))

	r = NewReconstructor(&Params{
		ModelFolder: modelDir,
		InputDir:    inputDir,
		OutputDir:   t.TempDir(),
		EDFrame:     6,
	}, nil, nil)
	assert.True(t, errors.Is(r.Process(), biv.ErrFrameIndex))

	r = NewReconstructor(&Params{
		ModelFolder:    modelDir,
		InputDir:       inputDir,
		OutputDir:      t.TempDir(),
		ResampleFrames: 10,
		Degree:         2,
	}, nil, nil)
	assert.Error(t, r.Process())
}

func TestWriteStrainCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strain.csv")
	strain := biv.Strain{
		"A": {0, -0.125, math.NaN()},
		"B": {0, 0.5},
	}
	require.NoError(t, WriteStrainCSV(path, strain, []string{"B", "MISSING", "A"}))

	assert.Equal(t, [][]string{
		{"Frame", "B", "A"},
		{"0", "0", "0"},
		{"1", "0.5", "-0.125"},
		{"2", "", "NaN"},
	}, readCSV(t, path))
}
