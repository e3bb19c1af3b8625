// Package reconstruction runs the complete analysis of one cardiac cycle:
// fitted models are loaded against a template, optionally cleaned and
// resampled, measured, and written out as tables, plots, STL surfaces and
// model files.
package reconstruction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sgostarter/i/l"

	"bivlite/internal/models"
	"bivlite/pkg/biv"
	"bivlite/pkg/cleaning"
	"bivlite/pkg/mesh"
	"bivlite/pkg/parametric"
	"bivlite/pkg/stl"
	"bivlite/pkg/template"
	"bivlite/pkg/visualization"
)

// ErrNoFrames is returned when the input folder holds no usable model.
var ErrNoFrames = errors.New("reconstruction: no populated frames")

// Params holds the pipeline configuration.
type Params struct {
	// ModelFolder is the template folder shared by every frame
	ModelFolder string

	// InputDir holds one fitted model file per frame
	InputDir string

	// OutputDir receives the tables, plots, STL files and models
	OutputDir string

	// Pattern, FrameRegex and MaxFrames select and order the input files,
	// see biv.FolderOptions
	Pattern    string
	FrameRegex string
	MaxFrames  int

	// MassIndex is the myocardial density in g/mL
	MassIndex float64

	// EDFrame is the reference frame of the strain curves
	EDFrame int

	// Clean enables the outlier and spike cleaning passes
	Clean    bool
	Cleaning cleaning.Params

	// ResampleFrames resamples the cycle through a periodic fit with the
	// given Degree and Smoothing; 0 keeps the input frames
	ResampleFrames int
	Smoothing      float64
	Degree         int

	SavePlots  bool
	SaveSTL    bool
	SaveModels bool

	// ModelName prefixes the written model files, "biv" when empty
	ModelName string
}

// Reconstructor carries one cycle through the pipeline.
type Reconstructor struct {
	params *Params
	cache  *template.Cache
	logger l.Wrapper

	frames   *biv.Frames
	cleaned  *cleaning.Result
	volumes  *biv.Volumes
	gls, gcs biv.Strain
	summary  biv.Summary
}

// NewReconstructor creates a new reconstructor instance with the provided parameters.
//
// Parameters:
//   - params: Configuration of the pipeline
//   - cache: Template cache shared between runs, nil creates a private one
//   - logger: Structured logger, nil discards log entries
//
// Returns:
//   - A new Reconstructor ready to Process
func NewReconstructor(params *Params, cache *template.Cache, logger l.Wrapper) *Reconstructor {
	if cache == nil {
		cache = template.NewCache(0)
	}
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}
	return &Reconstructor{
		params: params,
		cache:  cache,
		logger: logger.WithFields(l.StringField(l.ClsKey, "Reconstructor")),
	}
}

// Process runs the complete pipeline
func (r *Reconstructor) Process() error {
	// Step 1: Load the template
	r.logger.WithFields(l.StringField("folder", r.params.ModelFolder)).Info("loading template")
	tmpl, err := r.cache.Get(r.params.ModelFolder)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	// Step 2: Load the frames
	if err := r.load(tmpl); err != nil {
		return err
	}

	// Step 3: Clean the volume curve
	if r.params.Clean {
		cleaner := cleaning.NewCleaner(r.params.Cleaning, r.logger)
		res, err := cleaner.Clean(r.frames)
		if err != nil {
			return fmt.Errorf("failed to clean frames: %w", err)
		}
		r.logger.WithFields(
			l.IntField("empty", len(res.Empty)),
			l.IntField("outliers", len(res.Outliers)),
			l.IntField("spikes", len(res.Spikes)),
		).Info("cleaned frames")
		r.cleaned = res
		r.frames = res.Frames
	}

	// Step 4: Resample the cycle
	if r.params.ResampleFrames > 0 {
		if err := r.resample(); err != nil {
			return err
		}
	}

	// Step 5: Measure
	if err := r.analyse(); err != nil {
		return err
	}

	// Step 6: Write results
	return r.save()
}

func (r *Reconstructor) load(tmpl *template.Template) error {
	frames, err := biv.FromFolder(r.params.InputDir, tmpl, biv.FolderOptions{
		Pattern:    r.params.Pattern,
		FrameRegex: r.params.FrameRegex,
		MaxFrames:  r.params.MaxFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to load frames: %w", err)
	}
	if frames.Len() == len(frames.EmptyIndices()) {
		return fmt.Errorf("%w in %s", ErrNoFrames, r.params.InputDir)
	}

	r.logger.WithFields(
		l.IntField("frames", frames.Len()),
		l.IntField("empty", len(frames.EmptyIndices())),
	).Info("loaded frames")
	r.frames = frames
	return nil
}

func (r *Reconstructor) resample() error {
	degree := r.params.Degree
	if degree == 0 {
		degree = parametric.DefaultDegree
	}
	p, err := parametric.New(r.frames, parametric.WithDegree(degree), parametric.WithSmoothing(r.params.Smoothing))
	if err != nil {
		return fmt.Errorf("failed to fit cycle: %w", err)
	}
	frames, err := p.Resample(r.params.ResampleFrames)
	if err != nil {
		return fmt.Errorf("failed to resample cycle: %w", err)
	}
	r.logger.WithFields(l.IntField("frames", frames.Len())).Info("resampled cycle")
	r.frames = frames
	return nil
}

func (r *Reconstructor) analyse() error {
	massIndex := r.params.MassIndex
	if massIndex == 0 {
		massIndex = biv.DefaultMassIndex
	}

	var err error
	r.volumes = r.frames.Volumes(massIndex)
	if r.gls, err = r.frames.GLS(r.params.EDFrame); err != nil {
		return fmt.Errorf("failed to compute GLS: %w", err)
	}
	if r.gcs, err = r.frames.GCS(r.params.EDFrame); err != nil {
		return fmt.Errorf("failed to compute GCS: %w", err)
	}
	r.summary = r.frames.Summary(massIndex)

	r.logger.WithFields(
		l.IntField("edFrame", r.summary.EDFrame),
		l.IntField("esFrame", r.summary.ESFrame),
		l.StringField("ef", fmt.Sprintf("%.3f", r.summary.EF)),
	).Info("analysed cycle")
	return nil
}

func curveNames(curves []models.StrainCurve) []string {
	out := make([]string, len(curves))
	for i, c := range curves {
		out[i] = c.Name
	}
	return out
}

func (r *Reconstructor) save() error {
	out := r.params.OutputDir
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	glsKeys, gcsKeys := curveNames(models.GLSCurves), curveNames(models.GCSCurves)

	if err := WriteVolumesCSV(filepath.Join(out, "volumes.csv"), r.volumes); err != nil {
		return err
	}
	if err := WriteStrainCSV(filepath.Join(out, "gls.csv"), r.gls, glsKeys); err != nil {
		return err
	}
	if err := WriteStrainCSV(filepath.Join(out, "gcs.csv"), r.gcs, gcsKeys); err != nil {
		return err
	}
	if err := WriteSummaryCSV(filepath.Join(out, "summary.csv"), r.summary); err != nil {
		return err
	}

	if r.params.SavePlots {
		r.savePlots(glsKeys, gcsKeys)
	}

	if r.params.SaveSTL {
		if err := r.saveSTL(filepath.Join(out, "stl")); err != nil {
			return err
		}
	}

	if r.params.SaveModels {
		name := r.params.ModelName
		if name == "" {
			name = "biv"
		}
		if err := r.frames.SaveAs(name, filepath.Join(out, "models"), true); err != nil {
			return fmt.Errorf("failed to save models: %w", err)
		}
	}

	r.logger.WithFields(l.StringField("folder", out)).Info("results saved")
	return nil
}

// savePlots only warns on failure, a missing plot does not invalidate the
// tables.
func (r *Reconstructor) savePlots(glsKeys, gcsKeys []string) {
	out := r.params.OutputDir
	warn := func(name string, err error) {
		if err != nil {
			r.logger.WithFields(l.StringField("plot", name), l.ErrorField(err)).Warn("plot skipped")
		}
	}
	warn("volumes", visualization.SaveVolumeCurves(r.volumes, filepath.Join(out, "volumes.png")))
	warn("gls", visualization.SaveStrainCurves("GLS", r.gls, glsKeys, filepath.Join(out, "gls.png")))
	warn("gcs", visualization.SaveStrainCurves("GCS", r.gcs, gcsKeys, filepath.Join(out, "gcs.png")))
}

// saveSTL writes the closed surfaces of the end-diastolic frame.
func (r *Reconstructor) saveSTL(dir string) error {
	if r.summary.EDFrame < 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create STL directory: %w", err)
	}

	ed := r.frames.At(r.summary.EDFrame)
	for _, m := range []*mesh.Mesh{ed.LVEndo(false), ed.RVEndo(false), ed.LVEpi(false), ed.RVEpi(false)} {
		path := filepath.Join(dir, m.Name+".stl")
		if err := stl.SaveMesh(path, m); err != nil {
			return fmt.Errorf("failed to save %s: %w", m.Name, err)
		}
	}
	return nil
}

// Frames returns the frames after cleaning and resampling.
func (r *Reconstructor) Frames() *biv.Frames { return r.frames }

// Volumes returns the volume table of the processed frames.
func (r *Reconstructor) Volumes() *biv.Volumes { return r.volumes }

// GLS returns the longitudinal strain curves.
func (r *Reconstructor) GLS() biv.Strain { return r.gls }

// GCS returns the circumferential strain curves.
func (r *Reconstructor) GCS() biv.Strain { return r.gcs }

// Summary returns the global function of the cycle.
func (r *Reconstructor) Summary() biv.Summary { return r.summary }

// CleaningResult returns the cleaning outcome, nil when cleaning was off.
func (r *Reconstructor) CleaningResult() *cleaning.Result { return r.cleaned }
