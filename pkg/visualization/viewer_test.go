package visualization

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"bivlite/internal/models"
	"bivlite/internal/testutil"
	"bivlite/pkg/biv"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func testFrames(t *testing.T, n int) *biv.Frames {
	t.Helper()
	tmpl := testutil.Template(t, testutil.Options{})
	frames, err := biv.FromControlPoints(tmpl, testutil.Cycle(n))
	if err != nil {
		t.Fatalf("Failed to create frames: %v", err)
	}
	return frames
}

func checkPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, pngSignature) {
		t.Errorf("%s is not a PNG file", path)
	}
}

// TestSaveVolumeCurves verifies that volume curves with gaps are rendered
func TestSaveVolumeCurves(t *testing.T) {
	frames := testFrames(t, 10)
	if err := frames.MakeEmpty(2, 7); err != nil {
		t.Fatalf("Failed to empty frames: %v", err)
	}

	path := filepath.Join(t.TempDir(), "volumes.png")
	if err := SaveVolumeCurves(frames.Volumes(biv.DefaultMassIndex), path); err != nil {
		t.Fatalf("Failed to save volume curves: %v", err)
	}
	checkPNG(t, path)
}

// TestSaveVolumeCurvesEmpty verifies that a sequence without geometry is
// reported instead of producing a blank image
func TestSaveVolumeCurvesEmpty(t *testing.T) {
	frames := testFrames(t, 4)
	if err := frames.MakeEmpty(0, 1, 2, 3); err != nil {
		t.Fatalf("Failed to empty frames: %v", err)
	}

	path := filepath.Join(t.TempDir(), "volumes.png")
	err := SaveVolumeCurves(frames.Volumes(biv.DefaultMassIndex), path)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat returned %v", err)
	}
}

// TestSaveStrainCurves verifies strain rendering and key selection
func TestSaveStrainCurves(t *testing.T) {
	frames := testFrames(t, 10)
	gls, err := frames.GLS(0)
	if err != nil {
		t.Fatalf("Failed to compute GLS: %v", err)
	}

	keys := make([]string, 0, len(models.GLSCurves))
	for _, c := range models.GLSCurves {
		keys = append(keys, c.Name)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "gls.png")
	if err := SaveStrainCurves("GLS", gls, keys, path); err != nil {
		t.Fatalf("Failed to save strain curves: %v", err)
	}
	checkPNG(t, path)

	err = SaveStrainCurves("GLS", gls, []string{"UNKNOWN"}, filepath.Join(dir, "none.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for unknown keys, got %v", err)
	}

	nan := biv.Strain{"LV_GLS_2CH": {math.NaN(), math.NaN()}}
	err = SaveStrainCurves("GLS", nan, []string{"LV_GLS_2CH"}, filepath.Join(dir, "nan.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for NaN strain, got %v", err)
	}
}

// TestSaveNodeProjection verifies the projection along every axis
func TestSaveNodeProjection(t *testing.T) {
	frames := testFrames(t, 3)
	dir := t.TempDir()

	for _, axis := range []string{"x", "Y", "z"} {
		path := filepath.Join(dir, fmt.Sprintf("nodes_%s.png", axis))
		if err := SaveNodeProjection(frames.At(0), axis, path); err != nil {
			t.Fatalf("Failed to save %s projection: %v", axis, err)
		}
		checkPNG(t, path)
	}

	if err := SaveNodeProjection(frames.At(0), "w", filepath.Join(dir, "bad.png")); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	if err := frames.MakeEmpty(1); err != nil {
		t.Fatalf("Failed to empty frame: %v", err)
	}
	if err := SaveNodeProjection(frames.At(1), "z", filepath.Join(dir, "empty.png")); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for an empty mesh, got %v", err)
	}
}

// TestSaveComponentProjection verifies that a single component is plotted
// and that a component without elements is reported
func TestSaveComponentProjection(t *testing.T) {
	frames := testFrames(t, 3)
	dir := t.TempDir()

	path := filepath.Join(dir, "lv_endo.png")
	if err := SaveComponentProjection(frames.At(1).LVEndo(false), "x", path); err != nil {
		t.Fatalf("Failed to save component projection: %v", err)
	}
	checkPNG(t, path)

	none := frames.At(1).Surface().SelectComponent("NONE", 999)
	err := SaveComponentProjection(none, "x", filepath.Join(dir, "none.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for a component without elements, got %v", err)
	}

	if err := frames.MakeEmpty(2); err != nil {
		t.Fatalf("Failed to empty frame: %v", err)
	}
	err = SaveComponentProjection(frames.At(2).LVEndo(false), "x", filepath.Join(dir, "empty.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for an empty frame, got %v", err)
	}
}

// TestSaveProjectionSequence verifies that one image is written per
// populated frame
func TestSaveProjectionSequence(t *testing.T) {
	frames := testFrames(t, 4)
	if err := frames.MakeEmpty(2); err != nil {
		t.Fatalf("Failed to empty frame: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "projections")
	if err := SaveProjectionSequence(frames, "z", outputDir); err != nil {
		t.Fatalf("Failed to save projection sequence: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(outputDir, "*.png"))
	if err != nil {
		t.Fatalf("Failed to list output: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("Expected 3 images, got %d", len(files))
	}
	if _, err := os.Stat(filepath.Join(outputDir, "nodes_z_002.png")); !os.IsNotExist(err) {
		t.Error("Expected no image for the empty frame")
	}

	if err := SaveProjectionSequence(frames, "q", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
