// Package cleaning repairs the left ventricular volume curve of a cardiac
// cycle. Missing frames and volume outliers are imputed from a periodic
// parametric fit of the remaining frames, after which isolated spikes are
// detected and imputed again with a smoother fit.
package cleaning

import (
	"fmt"
	"sort"

	"github.com/sgostarter/i/l"

	"bivlite/pkg/biv"
	"bivlite/pkg/parametric"
)

// Params holds the cleaning settings.
type Params struct {
	// OutlierD scales the interquartile range in the outlier bounds
	OutlierD float64 `yaml:"outlierD" json:"outlierD"`

	// FirstSmoothing is used when imputing missing frames and outliers
	FirstSmoothing float64 `yaml:"firstSmoothing" json:"firstSmoothing"`

	// SecondSmoothing is used when imputing spikes
	SecondSmoothing float64 `yaml:"secondSmoothing" json:"secondSmoothing"`

	// SpikeThreshold is the relative madness above which a frame is a spike
	SpikeThreshold float64 `yaml:"spikeThreshold" json:"spikeThreshold"`

	// SpikeWindow is the relative madness window width
	SpikeWindow int `yaml:"spikeWindow" json:"spikeWindow"`

	// Degree of the parametric curves
	Degree int `yaml:"degree" json:"degree"`
}

// DefaultParams returns the default cleaning settings.
func DefaultParams() Params {
	return Params{
		OutlierD:        1.5,
		FirstSmoothing:  0,
		SecondSmoothing: 50,
		SpikeThreshold:  2,
		SpikeWindow:     3,
		Degree:          3,
	}
}

// Result is the outcome of cleaning one sequence. The indices refer to the
// input frames.
type Result struct {
	Frames   *biv.Frames
	Empty    []int
	Spikes   []int
	Outliers []int
}

// Cleaner imputes and cleans frame sequences.
type Cleaner struct {
	params Params
	logger l.Wrapper
}

// NewCleaner creates a Cleaner. A nil logger discards log entries.
func NewCleaner(params Params, logger l.Wrapper) *Cleaner {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}
	return &Cleaner{
		params: params,
		logger: logger.WithFields(l.StringField(l.ClsKey, "Cleaner")),
	}
}

// Params returns the cleaner settings.
func (c *Cleaner) Params() Params { return c.params }

// Impute replaces the empty frames of a sequence by evaluating a periodic
// fit of the populated ones at i/n. The input is not modified. Without
// empty frames a copy is returned.
func (c *Cleaner) Impute(frames *biv.Frames, smoothing float64) (*biv.Frames, error) {
	out := frames.Clone()
	empty := out.EmptyIndices()
	if len(empty) == 0 {
		return out, nil
	}

	p, err := parametric.New(out, parametric.WithDegree(c.params.Degree), parametric.WithSmoothing(smoothing))
	if err != nil {
		c.logger.WithFields(l.ErrorField(err), l.IntField("frames", out.Len())).Error("parametric fit failed")
		return nil, fmt.Errorf("imputing %d frames: %w", len(empty), err)
	}
	out, err = p.Resample(frames.Len())
	if err != nil {
		c.logger.WithFields(l.ErrorField(err)).Error("resampling failed")
		return nil, err
	}

	c.logger.WithFields(l.IntField("imputed", len(empty))).Debug("imputed empty frames")
	return out, nil
}

// Clean runs the two cleaning passes on a copy of frames:
//  1. LV endocardial volume outliers are emptied and imputed together with
//     the missing frames, using the first smoothing.
//  2. Spikes of the imputed volume curve are emptied and imputed using the
//     second smoothing.
func (c *Cleaner) Clean(frames *biv.Frames) (*Result, error) {
	volumes := frames.LVEndoVolumes()
	res := &Result{
		Empty:    frames.EmptyIndices(),
		Outliers: Outliers(volumes, c.params.OutlierD),
	}
	c.logger.WithFields(
		l.StringField("empty", fmt.Sprint(res.Empty)),
		l.StringField("outliers", fmt.Sprint(res.Outliers)),
	).Debug("first pass")

	out := frames.Clone()
	if err := out.MakeEmpty(res.Outliers...); err != nil {
		return nil, err
	}
	out, err := c.Impute(out, c.params.FirstSmoothing)
	if err != nil {
		return nil, err
	}

	res.Spikes = Spikes(out.LVEndoVolumes(), c.params.SpikeWindow, c.params.SpikeThreshold)
	c.logger.WithFields(l.StringField("spikes", fmt.Sprint(res.Spikes))).Debug("second pass")

	if err := out.MakeEmpty(res.Spikes...); err != nil {
		return nil, err
	}
	if res.Frames, err = c.Impute(out, c.params.SecondSmoothing); err != nil {
		return nil, err
	}
	return res, nil
}

// CleanBatch cleans every case. Cases that fail are logged and map to nil.
func (c *Cleaner) CleanBatch(cases map[string]*biv.Frames) map[string]*Result {
	names := make([]string, 0, len(cases))
	for name := range cases {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*Result, len(cases))
	for _, name := range names {
		res, err := c.Clean(cases[name])
		if err != nil {
			c.logger.WithFields(l.StringField("case", name), l.ErrorField(err)).Error("cleaning failed")
			out[name] = nil
			continue
		}
		out[name] = res
	}
	return out
}
