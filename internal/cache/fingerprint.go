package cache

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
)

// schemaVersion is bumped whenever the canonicalized fingerprint inputs
// change shape, so old cache entries never collide with a new encoding
// (spec.md §4.7 "a monotone schema version").
const schemaVersion = 1

// roundPrecision is the number of decimal places the user's
// (bodyweight, lift) tuple is rounded to before hashing, so that small
// floating point noise in client input still hits the same cache entry
// (spec.md §4.7).
const roundPrecision = 1

// Fingerprint canonicalizes req, the histogram bin count, and the
// current dataset fingerprint into a stable cache key. Equipment is
// sorted before hashing so {Raw,Wraps} and {Wraps,Raw} collide, and the
// weight-class label is normalized the same way internal/filter.Apply
// normalizes it.
func Fingerprint(req *filter.Request, histogramBins int, datasetFingerprint uint64) uint64 {
	r := *req
	r.Normalize()

	equip := append([]string(nil), r.Equipment...)
	sort.Strings(equip)

	class := r.WeightClass
	if class != "All" {
		class = dataset.NormalizeWeightClassLabel(class)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "v=%d;ds=%d;sex=%s;lift=%s;equip=%s;class=%s;years=%s;fed=%s;bins=%d;",
		schemaVersion, datasetFingerprint, r.Sex, r.LiftType, strings.Join(equip, ","),
		class, r.YearsFilter, strings.ToLower(r.Federation), histogramBins)

	writeRounded(&b, "bw", r.BodyweightKg)
	writeRounded(&b, "sq", r.Squat)
	writeRounded(&b, "bn", r.Bench)
	writeRounded(&b, "dl", r.Deadlift)
	writeRounded(&b, "tot", r.Total)

	return fnv1a(b.String())
}

func writeRounded(b *strings.Builder, label string, v *float64) {
	if v == nil {
		fmt.Fprintf(b, "%s=;", label)
		return
	}
	scale := math.Pow10(roundPrecision)
	rounded := math.Round(*v*scale) / scale
	fmt.Fprintf(b, "%s=%.1f;", label, rounded)
}

// fnv1a hashes s with the 64-bit FNV-1a algorithm, matching the
// teacher's fnvHash construction in internal/store/cache.go.
func fnv1a(s string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}
