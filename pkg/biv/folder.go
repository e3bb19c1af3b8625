package biv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"bivlite/pkg/template"
)

// Default file name conventions of fitted model folders.
const (
	DefaultPattern    = "*_model_frame_*.txt"
	DefaultFrameRegex = `_(\d+)\.txt$`
)

// FolderOptions controls how FromFolder finds and orders model files.
type FolderOptions struct {
	// Pattern is the glob matched against file names in the folder
	Pattern string

	// FrameRegex extracts the frame number from a file name with its first
	// capture group
	FrameRegex string

	// MaxFrames pads the sequence with empty frames up to this length
	MaxFrames int
}

func (o FolderOptions) withDefaults() FolderOptions {
	if o.Pattern == "" {
		o.Pattern = DefaultPattern
	}
	if o.FrameRegex == "" {
		o.FrameRegex = DefaultFrameRegex
	}
	return o
}

// FromFolder loads every fitted model file of folder matching the pattern,
// ordered by the frame number embedded in the file name. The meshes are
// named frame_<i> after their position. Frames missing at the end of the
// cycle can be represented by setting MaxFrames.
func FromFolder(folder string, tmpl *template.Template, opts FolderOptions) (*Frames, error) {
	opts = opts.withDefaults()

	re, err := regexp.Compile(opts.FrameRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid frame regex %q: %w", opts.FrameRegex, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("frame regex %q has no capture group", opts.FrameRegex)
	}

	files, err := filepath.Glob(filepath.Join(folder, opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
	}

	type numbered struct {
		path  string
		frame int
	}
	entries := make([]numbered, 0, len(files))
	for _, p := range files {
		match := re.FindStringSubmatch(filepath.Base(p))
		if match == nil {
			return nil, fmt.Errorf("cannot extract frame number from %s with %q", filepath.Base(p), opts.FrameRegex)
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("bad frame number %q in %s: %w", match[1], filepath.Base(p), err)
		}
		entries = append(entries, numbered{path: p, frame: n})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].frame < entries[j].frame })

	meshes := make([]*Mesh, 0, max(len(entries), opts.MaxFrames))
	for i, e := range entries {
		m, err := FromFittedModel(e.path, tmpl, frameName(i))
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, m)
	}
	for i := len(meshes); i < opts.MaxFrames; i++ {
		meshes = append(meshes, Empty(tmpl, frameName(i)))
	}
	return NewFrames(meshes, nil)
}

// ModelFileName returns the file name SaveAs uses for frame i.
func ModelFileName(model string, i int) string {
	return fmt.Sprintf("%s_model_frame_%03d.txt", model, i)
}

// SaveAs writes one fitted model file per frame into folder. The folder
// must not exist unless overwrite is set, in which case it is replaced.
// Empty frames produce header-only files.
func (f *Frames) SaveAs(model, folder string, overwrite bool) error {
	if _, err := os.Stat(folder); err == nil {
		if !overwrite {
			return fmt.Errorf("output folder %s already exists", folder)
		}
		if err := os.RemoveAll(folder); err != nil {
			return fmt.Errorf("removing %s: %w", folder, err)
		}
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", folder, err)
	}

	for i, m := range f.meshes {
		if err := m.WriteFittedModel(filepath.Join(folder, ModelFileName(model, i)), i); err != nil {
			return err
		}
	}
	return nil
}
