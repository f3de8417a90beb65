package vector

import "math"

// buildHistogram bins values into n fixed-width bins spanning the
// observed min/max. A value exactly at the upper bound is placed in the
// last bin (spec.md §4.4 step 4); empty bins are retained.
func buildHistogram(values []float64, n int) []HistBin {
	bins := make([]HistBin, n)
	if len(values) == 0 || n <= 0 {
		return bins
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	width := (max - min) / float64(n)
	for i := range bins {
		lo := min + float64(i)*width
		hi := lo + width
		bins[i] = HistBin{BinLo: lo, Value: (lo + hi) / 2}
	}

	if width == 0 {
		// Degenerate case: every sample has the same value.
		bins[0].Count = len(values)
		return bins
	}

	for _, v := range values {
		idx := int(math.Floor((v - min) / width))
		if idx >= n {
			idx = n - 1 // upper-bound value falls into the last bin
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins
}
