// Package scoring implements the pure, gender-aware strength-scoring
// formulas used across the ingest path (as vectorized column operations)
// and the request path (as scalar per-lifter operations): DOTS,
// Wilks-2020, IPF-GL, and the strength-level classifier.
package scoring

import "math"

// Sex identifies the coefficient set a formula uses.
type Sex uint8

const (
	SexMale Sex = iota
	SexFemale
)

// ParseSex maps the dataset/request encoding ("M"/"F") onto Sex.
func ParseSex(s string) (Sex, bool) {
	switch s {
	case "M":
		return SexMale, true
	case "F":
		return SexFemale, true
	default:
		return SexMale, false
	}
}

// String returns the dataset/request encoding for sex.
func (s Sex) String() string {
	if s == SexFemale {
		return "F"
	}
	return "M"
}

type dotsCoefficients struct{ a, b, c, d, e float64 }

// Coefficients reproduced bit-exactly from spec.md §6.
var dotsMale = dotsCoefficients{
	a: -307.75076, b: 24.0900756, c: -0.1918759221, d: 0.0007391293, e: -1.093e-6,
}

var dotsFemale = dotsCoefficients{
	a: -57.96288, b: 13.6175032, c: -0.1126655495, d: 0.0005158568, e: -1.0706e-6,
}

// DOTS computes the DOTS score for a lift performed at the given
// bodyweight. Returns 0 when the denominator is non-positive or either
// input is non-finite, per spec.md §4.2.
func DOTS(sex Sex, liftKg, bodyweightKg float64) float64 {
	if !isFinite(liftKg) || !isFinite(bodyweightKg) {
		return 0
	}
	c := dotsMale
	if sex == SexFemale {
		c = dotsFemale
	}
	bw2 := bodyweightKg * bodyweightKg
	bw3 := bw2 * bodyweightKg
	bw4 := bw3 * bodyweightKg
	denom := c.a + c.b*bodyweightKg + c.c*bw2 + c.d*bw3 + c.e*bw4
	if denom <= 0 || !isFinite(denom) {
		return 0
	}
	score := liftKg * 500.0 / denom
	if !isFinite(score) {
		return 0
	}
	return score
}

type wilksCoefficients struct{ a, b, c, d, e, f float64 }

var wilksMale = wilksCoefficients{
	a: 47.46178854, b: 8.472061379, c: 0.07369410346,
	d: -0.001395833811, e: 7.07665973070743e-06, f: -1.20804336482315e-08,
}

var wilksFemale = wilksCoefficients{
	a: -125.4255398, b: 13.71219419, c: -0.03307250631,
	d: -0.001050400051, e: 9.38773881462799e-06, f: -2.3334613884954e-08,
}

// Wilks2020 computes the 2020 revision of the Wilks score.
func Wilks2020(sex Sex, liftKg, bodyweightKg float64) float64 {
	if !isFinite(liftKg) || !isFinite(bodyweightKg) {
		return 0
	}
	c := wilksMale
	if sex == SexFemale {
		c = wilksFemale
	}
	bw := bodyweightKg
	bw2, bw3, bw4, bw5 := bw*bw, bw*bw*bw, bw*bw*bw*bw, bw*bw*bw*bw*bw
	denom := c.a + c.b*bw + c.c*bw2 + c.d*bw3 + c.e*bw4 + c.f*bw5
	if denom <= 0 || !isFinite(denom) {
		return 0
	}
	score := liftKg * 600.0 / denom
	if !isFinite(score) {
		return 0
	}
	return score
}

type ipfglCoefficients struct{ a, b, c float64 }

var ipfglMale = ipfglCoefficients{a: 1199.72839, b: 1025.18162, c: 0.00921}
var ipfglFemale = ipfglCoefficients{a: 610.32796, b: 1045.59282, c: 0.03048}

// IPFGL computes IPF GL points for a raw-equipment lift. The coefficient
// set does not vary by equipment category in this implementation (the
// dataset does not distinguish raw/equipped GL tables).
func IPFGL(sex Sex, liftKg, bodyweightKg float64) float64 {
	if !isFinite(liftKg) || !isFinite(bodyweightKg) {
		return 0
	}
	c := ipfglMale
	if sex == SexFemale {
		c = ipfglFemale
	}
	denom := c.b - c.c*bodyweightKg
	if denom <= 0 || !isFinite(denom) {
		return 0
	}
	score := c.a / denom * liftKg
	if !isFinite(score) {
		return 0
	}
	return score
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
