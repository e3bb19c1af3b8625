package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sgostarter/i/l"

	"bivlite/internal/models"
	"bivlite/pkg/biv"
	"bivlite/pkg/cleaning"
	"bivlite/pkg/config"
	"bivlite/pkg/mesh"
	"bivlite/pkg/parametric"
	"bivlite/pkg/reconstruction"
	"bivlite/pkg/stl"
	"bivlite/pkg/template"
	"bivlite/pkg/visualization"
)

const defaultConfigPath = "bivlite.yaml"

// session holds the flags shared by every command and the configuration
// they override.
type session struct {
	fs *flag.FlagSet

	configPath string
	model      string
	input      string
	output     string

	cfg    *config.Config
	cache  *template.Cache
	logger l.Wrapper
}

func newSession(name string, logger l.Wrapper) *session {
	s := &session{fs: flag.NewFlagSet(name, flag.ExitOnError), logger: logger}
	s.fs.StringVar(&s.configPath, "config", defaultConfigPath, "Configuration file (YAML or JSON5)")
	s.fs.StringVar(&s.model, "model", "", "Template folder (overrides template.folder)")
	s.fs.StringVar(&s.input, "input", "", "Folder of fitted model files (overrides input.folder)")
	s.fs.StringVar(&s.output, "output", "", "Output folder (overrides output.folder)")
	return s
}

// parse parses args, loads the configuration and applies the overrides.
func (s *session) parse(args []string) error {
	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	if s.model != "" {
		cfg.Template.Folder = s.model
	}
	if s.input != "" {
		cfg.Input.Folder = s.input
	}
	if s.output != "" {
		cfg.Output.Folder = s.output
	}
	s.cfg = cfg

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return err
	}
	s.cache = template.NewCache(ttl)

	if !cfg.Output.Verbose {
		s.logger = l.NewNopLoggerWrapper()
	}
	return nil
}

func (s *session) template() (*template.Template, error) {
	return s.cache.Get(s.cfg.Template.Folder)
}

func (s *session) frames() (*biv.Frames, error) {
	if s.cfg.Input.Folder == "" {
		return nil, errors.New("no input folder, set -input or input.folder")
	}
	tmpl, err := s.template()
	if err != nil {
		return nil, err
	}
	return biv.FromFolder(s.cfg.Input.Folder, tmpl, biv.FolderOptions{
		Pattern:    s.cfg.Input.Pattern,
		FrameRegex: s.cfg.Input.FrameRegex,
		MaxFrames:  s.cfg.Input.MaxFrames,
	})
}

func curveNames(curves []models.StrainCurve) []string {
	out := make([]string, len(curves))
	for i, c := range curves {
		out[i] = c.Name
	}
	return out
}

func printSummary(s biv.Summary) {
	fmt.Printf("EDV: %.2f mL (frame %d)\n", s.EDV, s.EDFrame)
	fmt.Printf("ESV: %.2f mL (frame %d)\n", s.ESV, s.ESFrame)
	fmt.Printf("SV:  %.2f mL\n", s.SV)
	fmt.Printf("EF:  %.2f%%\n", 100*s.EF)
	fmt.Printf("LVM: %.2f g\n", s.LVM)
	fmt.Printf("RVM: %.2f g\n", s.RVM)
}

func printColumns(names []string, cols [][]float64) {
	fmt.Printf("%6s", "Frame")
	for _, n := range names {
		fmt.Printf(" %12s", n)
	}
	fmt.Println()

	rows := 0
	for _, c := range cols {
		rows = max(rows, len(c))
	}
	for i := 0; i < rows; i++ {
		fmt.Printf("%6d", i)
		for _, c := range cols {
			if i < len(c) {
				fmt.Printf(" %12.4f", c[i])
			} else {
				fmt.Printf(" %12s", "")
			}
		}
		fmt.Println()
	}
}

func printStrain(title string, strain biv.Strain, keys []string) {
	fmt.Printf("\n%s\n", title)
	names := make([]string, 0, len(keys))
	cols := make([][]float64, 0, len(keys))
	for _, k := range keys {
		if v, ok := strain[k]; ok {
			names = append(names, k)
			cols = append(cols, v)
		}
	}
	printColumns(names, cols)
}

func runInfo(args []string, logger l.Wrapper) error {
	s := newSession("info", logger)
	if err := s.parse(args); err != nil {
		return err
	}
	if s.fs.NArg() != 1 {
		return errors.New("info takes exactly one model file")
	}

	tmpl, err := s.template()
	if err != nil {
		return err
	}
	path := s.fs.Arg(0)
	m, err := biv.FromFittedModel(path, tmpl, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return err
	}

	massIndex := s.cfg.Analysis.MassIndex
	fmt.Println(m)
	fmt.Printf("LV endocardial volume: %.2f mL\n", m.LVEndoVolume())
	fmt.Printf("LV epicardial volume:  %.2f mL\n", m.LVEpiVolume())
	fmt.Printf("RV endocardial volume: %.2f mL\n", m.RVEndoVolume())
	fmt.Printf("RV epicardial volume:  %.2f mL\n", m.RVEpiVolume())
	fmt.Printf("LV mass: %.2f g\n", m.LVMass(massIndex))
	fmt.Printf("RV mass: %.2f g\n", m.RVMass(massIndex))
	for _, c := range []*mesh.Mesh{m.LVEndo(true), m.RVEndo(true), m.RVLVEpi(true)} {
		fmt.Printf("%s area: %.2f mm^2\n", c.Name, c.Area())
	}
	return nil
}

func runVolumes(args []string, logger l.Wrapper) error {
	s := newSession("volumes", logger)
	csvPath := s.fs.String("csv", "", "Also write the table to this CSV file")
	if err := s.parse(args); err != nil {
		return err
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	v := frames.Volumes(s.cfg.Analysis.MassIndex)
	printColumns(v.Columns())
	fmt.Println()
	printSummary(frames.Summary(s.cfg.Analysis.MassIndex))

	if *csvPath != "" {
		return reconstruction.WriteVolumesCSV(*csvPath, v)
	}
	return nil
}

func runStrain(args []string, logger l.Wrapper) error {
	s := newSession("strain", logger)
	ed := s.fs.Int("ed", -1, "Reference frame (default analysis.edFrame)")
	if err := s.parse(args); err != nil {
		return err
	}
	if *ed < 0 {
		*ed = s.cfg.Analysis.EDFrame
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	gls, err := frames.GLS(*ed)
	if err != nil {
		return err
	}
	gcs, err := frames.GCS(*ed)
	if err != nil {
		return err
	}
	printStrain("GLS", gls, curveNames(models.GLSCurves))
	printStrain("GCS", gcs, curveNames(models.GCSCurves))
	return nil
}

func runClean(args []string, logger l.Wrapper) error {
	s := newSession("clean", logger)
	name := s.fs.String("name", "cleaned", "Model name of the written files")
	overwrite := s.fs.Bool("overwrite", false, "Replace an existing output folder")
	if err := s.parse(args); err != nil {
		return err
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	res, err := cleaning.NewCleaner(s.cfg.Cleaning.Params(), s.logger).Clean(frames)
	if err != nil {
		return err
	}

	fmt.Printf("Empty frames:   %v\n", res.Empty)
	fmt.Printf("Outlier frames: %v\n", res.Outliers)
	fmt.Printf("Spike frames:   %v\n", res.Spikes)

	folder := filepath.Join(s.cfg.Output.Folder, *name)
	if err := res.Frames.SaveAs(*name, folder, *overwrite); err != nil {
		return err
	}
	fmt.Printf("Cleaned models saved to: %s\n", folder)
	return nil
}

func runResample(args []string, logger l.Wrapper) error {
	s := newSession("resample", logger)
	n := s.fs.Int("n", 0, "Number of output frames (default parametric.resampleFrames, else the input count)")
	name := s.fs.String("name", "resampled", "Model name of the written files")
	overwrite := s.fs.Bool("overwrite", false, "Replace an existing output folder")
	if err := s.parse(args); err != nil {
		return err
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	if *n <= 0 {
		*n = s.cfg.Parametric.ResampleFrames
	}
	if *n <= 0 {
		*n = frames.Len()
	}

	p, err := parametric.New(frames,
		parametric.WithDegree(s.cfg.Parametric.Degree),
		parametric.WithSmoothing(s.cfg.Parametric.Smoothing))
	if err != nil {
		return err
	}
	out, err := p.Resample(*n)
	if err != nil {
		return err
	}

	folder := filepath.Join(s.cfg.Output.Folder, *name)
	if err := out.SaveAs(*name, folder, *overwrite); err != nil {
		return err
	}
	fmt.Printf("Resampled %d frames to %d, saved to: %s\n", frames.Len(), out.Len(), folder)
	return nil
}

func runProcess(args []string, logger l.Wrapper) error {
	s := newSession("process", logger)
	clean := s.fs.Bool("clean", false, "Clean the volume curve (overrides cleaning.enabled)")
	plots := s.fs.Bool("plots", false, "Save plots (overrides output.savePlots)")
	saveSTL := s.fs.Bool("stl", false, "Save STL surfaces of the ED frame (overrides output.saveSTL)")
	saveModels := s.fs.Bool("models", false, "Save the processed models (overrides output.saveModels)")
	if err := s.parse(args); err != nil {
		return err
	}
	cfg := s.cfg

	params := &reconstruction.Params{
		ModelFolder:    cfg.Template.Folder,
		InputDir:       cfg.Input.Folder,
		OutputDir:      cfg.Output.Folder,
		Pattern:        cfg.Input.Pattern,
		FrameRegex:     cfg.Input.FrameRegex,
		MaxFrames:      cfg.Input.MaxFrames,
		MassIndex:      cfg.Analysis.MassIndex,
		EDFrame:        cfg.Analysis.EDFrame,
		Clean:          cfg.Cleaning.Enabled || *clean,
		Cleaning:       cfg.Cleaning.Params(),
		ResampleFrames: cfg.Parametric.ResampleFrames,
		Smoothing:      cfg.Parametric.Smoothing,
		Degree:         cfg.Parametric.Degree,
		SavePlots:      cfg.Output.SavePlots || *plots,
		SaveSTL:        cfg.Output.SaveSTL || *saveSTL,
		SaveModels:     cfg.Output.SaveModels || *saveModels,
	}

	r := reconstruction.NewReconstructor(params, s.cache, s.logger)
	if err := r.Process(); err != nil {
		return err
	}

	if res := r.CleaningResult(); res != nil {
		fmt.Printf("Cleaned: %d empty, %d outlier and %d spike frames\n", len(res.Empty), len(res.Outliers), len(res.Spikes))
	}
	printSummary(r.Summary())
	fmt.Printf("\nResults saved to: %s\n", params.OutputDir)
	return nil
}

func runSTL(args []string, logger l.Wrapper) error {
	s := newSession("stl", logger)
	frame := s.fs.Int("frame", -1, "Frame to export (default the end-diastolic frame)")
	open := s.fs.Bool("open", false, "Leave the valve planes open")
	if err := s.parse(args); err != nil {
		return err
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	if *frame < 0 {
		*frame = frames.Summary(s.cfg.Analysis.MassIndex).EDFrame
	}
	if *frame < 0 || *frame >= frames.Len() {
		return fmt.Errorf("%w: frame %d of %d", biv.ErrFrameIndex, *frame, frames.Len())
	}
	m := frames.At(*frame)
	if m.IsEmpty() {
		return fmt.Errorf("frame %d is empty", *frame)
	}

	dir := filepath.Join(s.cfg.Output.Folder, "stl")
	for _, c := range []*mesh.Mesh{m.LVEndo(*open), m.RVEndo(*open), m.RVLVEpi(*open), m.LVEpi(*open), m.RVEpi(*open)} {
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.stl", c.Name, *frame))
		if err := saveSTL(path, c); err != nil {
			return err
		}
		fmt.Printf("%s: %d triangles saved to %s\n", c.Name, c.NumElements(), path)
	}
	return nil
}

func saveSTL(path string, m *mesh.Mesh) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return stl.SaveMesh(path, m)
}

func runPlot(args []string, logger l.Wrapper) error {
	s := newSession("plot", logger)
	axis := s.fs.String("axis", "", "Also save node projections along x, y or z")
	if err := s.parse(args); err != nil {
		return err
	}

	frames, err := s.frames()
	if err != nil {
		return err
	}
	out := s.cfg.Output.Folder
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := visualization.SaveVolumeCurves(frames.Volumes(s.cfg.Analysis.MassIndex), filepath.Join(out, "volumes.png")); err != nil {
		return err
	}

	ed := s.cfg.Analysis.EDFrame
	gls, err := frames.GLS(ed)
	if err != nil {
		return err
	}
	gcs, err := frames.GCS(ed)
	if err != nil {
		return err
	}
	for title, strain := range map[string]biv.Strain{"GLS": gls, "GCS": gcs} {
		keys := curveNames(models.GLSCurves)
		if title == "GCS" {
			keys = curveNames(models.GCSCurves)
		}
		err := visualization.SaveStrainCurves(title, strain, keys, filepath.Join(out, strings.ToLower(title)+".png"))
		if errors.Is(err, visualization.ErrNoData) {
			s.logger.WithFields(l.StringField("plot", title)).Warn("no strain data, landmarks missing")
			continue
		}
		if err != nil {
			return err
		}
	}

	if *axis != "" {
		if err := visualization.SaveProjectionSequence(frames, *axis, filepath.Join(out, "projections")); err != nil {
			return err
		}
	}

	fmt.Printf("Plots saved to: %s\n", out)
	return nil
}

func runConfig(args []string, logger l.Wrapper) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath, "Configuration file to create")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists, use -force to overwrite", *path)
	}
	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	logger.WithFields(l.StringField("path", *path)).Debug("default configuration written")
	fmt.Printf("Default configuration written to: %s\n", *path)
	return nil
}
