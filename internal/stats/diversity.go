package stats

import "math"

// Sum returns the sum of all counts
func Sum(counts []int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// ShannonEntropy is the Shannon diversity of a set of species counts, in
// nats. Zero counts are ignored.
func ShannonEntropy(counts []int) float64 {
	total := float64(Sum(counts))
	if total == 0 {
		return 0
	}

	var entropy float64
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / total
			entropy -= p * math.Log(p)
		}
	}
	return entropy
}

// Evenness is Pielou's evenness: entropy over its maximum for the number of
// species present, between 0 and 1
func Evenness(counts []int) float64 {
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	if present <= 1 {
		return 0
	}
	return ShannonEntropy(counts) / math.Log(float64(present))
}

// SimpsonIndex is the Gini-Simpson index: the chance that two random
// observations are of different species
func SimpsonIndex(counts []int) float64 {
	total := float64(Sum(counts))
	if total == 0 {
		return 0
	}

	var sumSquares float64
	for _, c := range counts {
		p := float64(c) / total
		sumSquares += p * p
	}
	return 1 - sumSquares
}
