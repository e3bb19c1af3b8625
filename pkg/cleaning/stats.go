package cleaning

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of y ignoring NaN values, interpolating
// linearly between order statistics at position (n-1)p. It is NaN when y
// has no numbers.
func Quantile(y []float64, p float64) float64 {
	s := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			s = append(s, v)
		}
	}
	if len(s) == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	sort.Float64s(s)

	p = math.Min(math.Max(p, 0), 1)
	h := float64(len(s)-1) * p
	lo := int(math.Floor(h))
	hi := min(lo+1, len(s)-1)
	return s[lo] + (h-float64(lo))*(s[hi]-s[lo])
}

// IQR returns the interquartile range of y ignoring NaN values.
func IQR(y []float64) float64 {
	return Quantile(y, 0.75) - Quantile(y, 0.25)
}

// Outliers returns the indices of the values of y below Q1 - d·IQR or
// above Q3 + d·IQR. NaN values are never outliers.
func Outliers(y []float64, d float64) []int {
	q1, q3 := Quantile(y, 0.25), Quantile(y, 0.75)
	lo, hi := q1-d*(q3-q1), q3+d*(q3-q1)

	var idx []int
	for i, v := range y {
		if v < lo || v > hi {
			idx = append(idx, i)
		}
	}
	return idx
}
