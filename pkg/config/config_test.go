package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bivlite/pkg/biv"
	"bivlite/pkg/cleaning"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, biv.DefaultPattern, cfg.Input.Pattern)
	assert.Equal(t, biv.DefaultFrameRegex, cfg.Input.FrameRegex)
	assert.Equal(t, 1.05, cfg.Analysis.MassIndex)
	assert.Equal(t, 3, cfg.Parametric.Degree)
	assert.Equal(t, 1.5, cfg.Cleaning.OutlierD)
	assert.Equal(t, 50.0, cfg.Cleaning.SecondSmoothing)
	assert.Equal(t, 3, cfg.Cleaning.SpikeWindow)
	assert.False(t, cfg.Cleaning.Enabled)

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
template:
  folder: /data/template
  cacheTTL: 5m
input:
  folder: /data/case1
  maxFrames: 30
analysis:
  edFrame: 2
cleaning:
  enabled: true
  spikeThreshold: 3.5
output:
  savePlots: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/template", cfg.Template.Folder)
	assert.Equal(t, "/data/case1", cfg.Input.Folder)
	assert.Equal(t, 30, cfg.Input.MaxFrames)
	assert.Equal(t, 2, cfg.Analysis.EDFrame)
	assert.True(t, cfg.Cleaning.Enabled)
	assert.Equal(t, 3.5, cfg.Cleaning.SpikeThreshold)
	assert.True(t, cfg.Output.SavePlots)

	// untouched values keep their defaults
	assert.Equal(t, biv.DefaultPattern, cfg.Input.Pattern)
	assert.Equal(t, 1.5, cfg.Cleaning.OutlierD)
	assert.Equal(t, 1.05, cfg.Analysis.MassIndex)

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	data := `{
  // comments and trailing commas are allowed
  input: {
    folder: "/data/case2",
    pattern: "*.txt",
  },
  parametric: {
    degree: 1,
    resampleFrames: 20,
  },
  cleaning: {
    enabled: true,
    outlierD: 3,
    firstSmoothing: 0.25,
    secondSmoothing: 7,
    spikeThreshold: 9,
    spikeWindow: 5,
    degree: 3,
  },
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/case2", cfg.Input.Folder)
	assert.Equal(t, "*.txt", cfg.Input.Pattern)
	assert.Equal(t, 1, cfg.Parametric.Degree)
	assert.Equal(t, 20, cfg.Parametric.ResampleFrames)
	assert.Equal(t, Cleaning{
		Enabled:         true,
		OutlierD:        3,
		FirstSmoothing:  0.25,
		SecondSmoothing: 7,
		SpikeThreshold:  9,
		SpikeWindow:     5,
		Degree:          3,
	}, cfg.Cleaning)
}

func TestLoadJSON5CleaningOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	data := `{cleaning: {enabled: true, secondSmoothing: 7, spikeThreshold: 9}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	params := cfg.Cleaning.Params()
	assert.True(t, cfg.Cleaning.Enabled)
	assert.Equal(t, 7.0, params.SecondSmoothing)
	assert.Equal(t, 9.0, params.SpikeThreshold)

	// keys left out keep their defaults
	defaults := cleaning.DefaultParams()
	assert.Equal(t, defaults.OutlierD, params.OutlierD)
	assert.Equal(t, defaults.SpikeWindow, params.SpikeWindow)
	assert.Equal(t, defaults.Degree, params.Degree)
}

func TestCleaningParams(t *testing.T) {
	assert.Equal(t, cleaning.DefaultParams(), DefaultConfig().Cleaning.Params())
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("analysis: [1, 2"), 0644))
	_, err := LoadConfig(broken)
	assert.Error(t, err)

	for name, data := range map[string]string{
		"mass":      "analysis:\n  massIndex: 0\n",
		"degree":    "parametric:\n  degree: 2\n",
		"smoothing": "parametric:\n  degree: 1\n  smoothing: 0.5\n",
		"window":    "cleaning:\n  spikeWindow: 0\n",
		"frames":    "input:\n  maxFrames: -1\n",
		"ttl":       "template:\n  cacheTTL: soon\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		_, err := LoadConfig(path)
		assert.True(t, errors.Is(err, ErrInvalidConfig), name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input.Folder = "/data/case3"
	cfg.Cleaning.Enabled = true
	cfg.Cleaning.FirstSmoothing = 0.5
	cfg.Cleaning.SecondSmoothing = 12
	cfg.Cleaning.SpikeThreshold = 2.5
	cfg.Cleaning.SpikeWindow = 5
	cfg.Output.SaveSTL = true

	for _, name := range []string{"nested/config.yaml", "config.json"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, SaveConfig(cfg, path))

		back, err := LoadConfig(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, back, name)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bivlite.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "massIndex: 1.05")
	assert.Contains(t, string(data), "spikeWindow: 3")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
