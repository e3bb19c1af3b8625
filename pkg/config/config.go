// Package config provides configuration loading and management for bivlite.
// It handles loading configuration from YAML or JSON5 files and provides
// default values.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json5 "github.com/KevinWang15/go-json5"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"bivlite/pkg/biv"
	"bivlite/pkg/cleaning"
	"bivlite/pkg/parametric"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config represents the application configuration
type Config struct {
	// Template model location
	Template struct {
		// Folder holds the subdivision matrix, element and landmark tables
		Folder string `yaml:"folder" json:"folder"`

		// CacheTTL is how long a loaded template is kept, e.g. "10m"; empty
		// keeps it for the whole run
		CacheTTL string `yaml:"cacheTTL" json:"cacheTTL"`
	} `yaml:"template" json:"template"`

	// Input fitted model files
	Input struct {
		// Folder contains one fitted model file per frame
		Folder string `yaml:"folder" json:"folder"`

		// Pattern is the glob selecting model files
		Pattern string `yaml:"pattern" json:"pattern"`

		// FrameRegex extracts the frame number from a file name
		FrameRegex string `yaml:"frameRegex" json:"frameRegex"`

		// MaxFrames pads the cycle with empty frames, 0 disables padding
		MaxFrames int `yaml:"maxFrames" json:"maxFrames"`
	} `yaml:"input" json:"input"`

	// Analysis parameters
	Analysis struct {
		// MassIndex is the myocardial density in g/mL
		MassIndex float64 `yaml:"massIndex" json:"massIndex"`

		// EDFrame is the strain reference frame
		EDFrame int `yaml:"edFrame" json:"edFrame"`
	} `yaml:"analysis" json:"analysis"`

	// Parametric cycle model
	Parametric struct {
		// Degree of the control point curves, 1 or 3
		Degree int `yaml:"degree" json:"degree"`

		// Smoothing factor of the control point curves
		Smoothing float64 `yaml:"smoothing" json:"smoothing"`

		// ResampleFrames resamples the cycle to this many frames, 0 disables
		ResampleFrames int `yaml:"resampleFrames" json:"resampleFrames"`
	} `yaml:"parametric" json:"parametric"`

	// Cleaning of the LV volume curve
	Cleaning Cleaning `yaml:"cleaning" json:"cleaning"`

	// Output parameters
	Output struct {
		// Folder receives the tables, plots and exported files
		Folder string `yaml:"folder" json:"folder"`

		// SavePlots writes volume and strain plots
		SavePlots bool `yaml:"savePlots" json:"savePlots"`

		// SaveSTL writes the components of the end-diastolic frame
		SaveSTL bool `yaml:"saveSTL" json:"saveSTL"`

		// SaveModels writes the processed frames as fitted model files
		SaveModels bool `yaml:"saveModels" json:"saveModels"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" json:"verbose"`
	} `yaml:"output" json:"output"`
}

// Cleaning holds the cleaning settings. The fields mirror cleaning.Params
// so that YAML and JSON5 files share one flat layout.
type Cleaning struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	OutlierD        float64 `yaml:"outlierD" json:"outlierD"`
	FirstSmoothing  float64 `yaml:"firstSmoothing" json:"firstSmoothing"`
	SecondSmoothing float64 `yaml:"secondSmoothing" json:"secondSmoothing"`
	SpikeThreshold  float64 `yaml:"spikeThreshold" json:"spikeThreshold"`
	SpikeWindow     int     `yaml:"spikeWindow" json:"spikeWindow"`
	Degree          int     `yaml:"degree" json:"degree"`
}

func cleaningFrom(enabled bool, p cleaning.Params) Cleaning {
	return Cleaning{
		Enabled:         enabled,
		OutlierD:        p.OutlierD,
		FirstSmoothing:  p.FirstSmoothing,
		SecondSmoothing: p.SecondSmoothing,
		SpikeThreshold:  p.SpikeThreshold,
		SpikeWindow:     p.SpikeWindow,
		Degree:          p.Degree,
	}
}

// Params returns the settings passed to cleaning.NewCleaner.
func (c Cleaning) Params() cleaning.Params {
	return cleaning.Params{
		OutlierD:        c.OutlierD,
		FirstSmoothing:  c.FirstSmoothing,
		SecondSmoothing: c.SecondSmoothing,
		SpikeThreshold:  c.SpikeThreshold,
		SpikeWindow:     c.SpikeWindow,
		Degree:          c.Degree,
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Template.Folder = "model"

	cfg.Input.Pattern = biv.DefaultPattern
	cfg.Input.FrameRegex = biv.DefaultFrameRegex

	cfg.Analysis.MassIndex = biv.DefaultMassIndex
	cfg.Analysis.EDFrame = 0

	cfg.Parametric.Degree = parametric.DefaultDegree
	cfg.Parametric.Smoothing = parametric.DefaultSmoothing

	cfg.Cleaning = cleaningFrom(false, cleaning.DefaultParams())

	cfg.Output.Folder = "output"
	cfg.Output.SavePlots = false
	cfg.Output.SaveSTL = false
	cfg.Output.SaveModels = false
	cfg.Output.Verbose = true

	return cfg
}

// isJSON reports whether the file extension selects the JSON5 format
func isJSON(configPath string) bool {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json", ".json5":
		return true
	}
	return false
}

// LoadConfig loads configuration from a YAML or JSON5 file, chosen by the
// file extension. If the file doesn't exist, it returns the default
// configuration. Values missing from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isJSON(configPath) {
		err = json5.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration, as JSON when the extension is .json
// or .json5 and as YAML otherwise
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isJSON(configPath) {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the ranges of the numeric settings
func (c *Config) Validate() error {
	switch {
	case c.Analysis.MassIndex <= 0:
		return fmt.Errorf("%w: massIndex must be positive, got %v", ErrInvalidConfig, c.Analysis.MassIndex)
	case c.Analysis.EDFrame < 0:
		return fmt.Errorf("%w: edFrame must not be negative, got %d", ErrInvalidConfig, c.Analysis.EDFrame)
	case c.Input.MaxFrames < 0:
		return fmt.Errorf("%w: maxFrames must not be negative, got %d", ErrInvalidConfig, c.Input.MaxFrames)
	case c.Parametric.Degree != 1 && c.Parametric.Degree != 3:
		return fmt.Errorf("%w: degree must be 1 or 3, got %d", ErrInvalidConfig, c.Parametric.Degree)
	case c.Parametric.Smoothing < 0:
		return fmt.Errorf("%w: smoothing must not be negative, got %v", ErrInvalidConfig, c.Parametric.Smoothing)
	case c.Parametric.Degree == 1 && c.Parametric.Smoothing > 0:
		return fmt.Errorf("%w: smoothing requires degree 3", ErrInvalidConfig)
	case c.Parametric.ResampleFrames < 0:
		return fmt.Errorf("%w: resampleFrames must not be negative, got %d", ErrInvalidConfig, c.Parametric.ResampleFrames)
	case c.Cleaning.OutlierD < 0:
		return fmt.Errorf("%w: outlierD must not be negative, got %v", ErrInvalidConfig, c.Cleaning.OutlierD)
	case c.Cleaning.SpikeWindow < 1:
		return fmt.Errorf("%w: spikeWindow must be at least 1, got %d", ErrInvalidConfig, c.Cleaning.SpikeWindow)
	case c.Cleaning.Degree != 1 && c.Cleaning.Degree != 3:
		return fmt.Errorf("%w: cleaning degree must be 1 or 3, got %d", ErrInvalidConfig, c.Cleaning.Degree)
	case c.Cleaning.FirstSmoothing < 0 || c.Cleaning.SecondSmoothing < 0:
		return fmt.Errorf("%w: cleaning smoothing must not be negative", ErrInvalidConfig)
	case c.Cleaning.Degree == 1 && (c.Cleaning.FirstSmoothing > 0 || c.Cleaning.SecondSmoothing > 0):
		return fmt.Errorf("%w: cleaning smoothing requires degree 3", ErrInvalidConfig)
	}
	if c.Template.CacheTTL != "" {
		if _, err := c.CacheTTL(); err != nil {
			return err
		}
	}
	return nil
}

// CacheTTL returns the template cache lifetime, zero when unset
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Template.CacheTTL == "" {
		return 0, nil
	}
	d, err := cast.ToDurationE(c.Template.CacheTTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: cacheTTL %q", ErrInvalidConfig, c.Template.CacheTTL)
	}
	return d, nil
}
