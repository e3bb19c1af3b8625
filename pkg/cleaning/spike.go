package cleaning

import (
	"math"
	"sort"
)

// RelativeMadness returns the relative median absolute deviation of every
// sample of y. For a window of w samples centred on i, wrapping around the
// ends of y, it is |y[i] - m| minus the median of |y[j] - m| over the
// window, where m is the window median. Even windows are narrowed to the
// next odd width. Values above about 2 mark spikes.
func RelativeMadness(y []float64, w int) []float64 {
	n := len(y)
	h := max((w-1)/2, 0)
	out := make([]float64, n)
	win := make([]float64, 2*h+1)
	dev := make([]float64, len(win))
	for i := range y {
		for j := range win {
			win[j] = y[wrap(i+j-h, n)]
		}
		m := median(win)
		for j, v := range win {
			dev[j] = math.Abs(v - m)
		}
		out[i] = math.Abs(y[i]-m) - median(dev)
	}
	return out
}

// MadLM returns the relative madness of the deviation of every sample from
// the straight line through its two neighbours. y is treated as circular.
func MadLM(y []float64, w int) []float64 {
	n := len(y)
	dev := make([]float64, n)
	for i := range y {
		prev, next := y[wrap(i-1, n)], y[wrap(i+1, n)]
		dev[i] = math.Abs(y[i] - (0.5*(next-prev) + prev))
	}
	return RelativeMadness(dev, w)
}

// Spikes returns the indices where MadLM(y, w) exceeds threshold.
func Spikes(y []float64, w int, threshold float64) []int {
	var idx []int
	for i, v := range MadLM(y, w) {
		if v > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

// median returns NaN when xs holds a NaN.
func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	for _, v := range s {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
