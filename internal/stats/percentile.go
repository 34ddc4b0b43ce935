package stats

import (
	"math"
	"sort"
)

// Percentile calculates the p-th percentile (0-100) of counts using linear
// interpolation between closest ranks
func Percentile(counts []int, p float64) float64 {
	if len(counts) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return float64(sorted[lower])
	}
	frac := pos - float64(lower)
	return float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac
}

// Mean returns the arithmetic mean, 0 for no values
func Mean(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	return float64(Sum(counts)) / float64(len(counts))
}
