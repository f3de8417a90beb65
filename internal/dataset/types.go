// Package dataset loads the OpenPowerlifting-shaped competition results
// into a read-only, struct-of-arrays columnar table (spec.md §3, §4.1):
// parallel slices per field so the vector engine can project a single
// column without copying the rest of the row.
package dataset

import (
	"math"

	"github.com/ironinsights/iron-insights/internal/scoring"
)

// Dataset is the process-wide, immutable columnar table. It is safe for
// concurrent read access by any number of goroutines; it is never
// mutated after Load/Synthesize returns (a reload builds a brand new
// Dataset and swaps the pointer, it never edits one in place).
type Dataset struct {
	Sex          []scoring.Sex
	Equipment    []string
	BodyweightKg []float64
	Squat        []float64 // NaN if absent
	Bench        []float64 // NaN if absent
	Deadlift     []float64 // NaN if absent
	Total        []float64 // NaN if absent
	WeightClass  []string  // canonical label, e.g. "74kg", "120kg+"
	Federation   []string
	Year         []int

	SquatDOTS    []float64
	BenchDOTS    []float64
	DeadliftDOTS []float64
	TotalDOTS    []float64

	path        string
	sizeBytes   int64
	modUnixNano int64
	fingerprint uint64
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.BodyweightKg) }

// MinMaxYear returns the smallest and largest Year values present. Returns
// (0, 0, false) for an empty dataset.
func (d *Dataset) MinMaxYear() (min, max int, ok bool) {
	if len(d.Year) == 0 {
		return 0, 0, false
	}
	min, max = d.Year[0], d.Year[0]
	for _, y := range d.Year[1:] {
		if y < min {
			min = y
		}
		if y > max {
			max = y
		}
	}
	return min, max, true
}

// Fingerprint identifies this dataset's generation for cache keying and
// invalidation (spec.md §3, §4.1, §4.7). It is stable for the lifetime of
// the Dataset and changes whenever Load produces a new one from changed
// source bytes.
func (d *Dataset) Fingerprint() uint64 { return d.fingerprint }

// sentinel is substituted for non-finite DOTS values so they are never
// mistaken for a present, valid score; downstream aggregation explicitly
// skips it (spec.md §4.1).
const sentinel = math.MaxFloat64

func isInvalidDOTS(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v == sentinel
}

// IsInvalidDOTS reports whether v is the sentinel substituted for a
// missing or non-finite DOTS score, for callers outside this package
// that must skip it the same way the loader does (spec.md §4.1).
func IsInvalidDOTS(v float64) bool { return isInvalidDOTS(v) }
