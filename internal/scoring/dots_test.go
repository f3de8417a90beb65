package scoring_test

import (
	"math"
	"testing"

	"github.com/ironinsights/iron-insights/internal/scoring"
)

func TestDOTSKnownValue(t *testing.T) {
	// 180kg squat at 75kg bodyweight, male: spec.md scenario 1 says
	// 124.2 +/- 0.1 under the published coefficients.
	got := scoring.DOTS(scoring.SexMale, 180, 75)
	if math.Abs(got-124.2) > 0.1 {
		t.Errorf("DOTS(180,75,M) = %.4f, want 124.2 +/- 0.1", got)
	}
}

func TestDOTSNonFiniteInputsReturnZero(t *testing.T) {
	cases := []struct {
		lift, bw float64
	}{
		{math.NaN(), 75},
		{180, math.NaN()},
		{math.Inf(1), 75},
		{180, math.Inf(-1)},
	}
	for _, c := range cases {
		if got := scoring.DOTS(scoring.SexMale, c.lift, c.bw); got != 0 {
			t.Errorf("DOTS(%v,%v) = %v, want 0", c.lift, c.bw, got)
		}
	}
}

func TestDOTSZeroOrNegativeBodyweightDenominator(t *testing.T) {
	// At very low bodyweight the male denominator can go non-positive;
	// the function must clamp to 0 rather than return a negative or
	// divide-by-zero score.
	got := scoring.DOTS(scoring.SexMale, 100, 0)
	if got < 0 || math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("DOTS at bw=0 = %v, want a finite non-negative value", got)
	}
}

func TestWilks2020Finite(t *testing.T) {
	got := scoring.Wilks2020(scoring.SexFemale, 300, 60)
	if got <= 0 || math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("Wilks2020 = %v, want a finite positive score", got)
	}
}

func TestIPFGLFinite(t *testing.T) {
	got := scoring.IPFGL(scoring.SexMale, 500, 100)
	if got <= 0 || math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("IPFGL = %v, want a finite positive score", got)
	}
}

func TestStrengthLevelThresholds(t *testing.T) {
	cases := []struct {
		dots float64
		lift scoring.LiftType
		want scoring.Level
	}{
		{149.9, scoring.LiftSquat, scoring.Beginner},
		{150.0, scoring.LiftSquat, scoring.Novice},
		{450.0, scoring.LiftSquat, scoring.Elite},
		{450.1, scoring.LiftSquat, scoring.WorldClass},
		{599.9, scoring.LiftTotal, scoring.Elite},
		{600.0, scoring.LiftTotal, scoring.WorldClass},
	}
	for _, c := range cases {
		if got := scoring.StrengthLevel(c.dots, c.lift, scoring.SexMale); got != c.want {
			t.Errorf("StrengthLevel(%v, %v) = %v, want %v", c.dots, c.lift, got, c.want)
		}
	}
}
