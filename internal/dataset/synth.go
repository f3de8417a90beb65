package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/ironinsights/iron-insights/internal/scoring"
)

var synthEquipment = []string{"Raw", "Wraps", "Single-ply"}
var synthFederations = []string{"USAPL", "USPA", "IPF", "WRPF"}

// Synthesize builds a deterministic sample dataset large enough to
// exercise every response branch (spec.md §4.1), used when the
// configured dataset path is absent. The generator's shape (bodyweight
// mean/stddev per sex, per-lift bodyweight multipliers) is reproduced
// from _examples/original_source/src/data.rs's SampleDataBuilder.
func Synthesize(n int, seed uint64) (*Dataset, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ds := &Dataset{}

	currentYear := 2024
	for i := 0; i < n; i++ {
		sex := scoring.SexMale
		sexByte := byte('M')
		if rng.Float64() >= 0.7 {
			sex = scoring.SexFemale
			sexByte = 'F'
		}

		bwMean, bwStd, sqRatio, bpRatio, dlRatio := 85.0, 15.0, 1.8, 1.3, 2.2
		if sex == scoring.SexFemale {
			bwMean, bwStd, sqRatio, bpRatio, dlRatio = 65.0, 12.0, 1.4, 0.8, 1.8
		}

		bw := clamp(normal(rng, bwMean, bwStd), 40, 200)
		squat := math.Max(bw*sqRatio*randRange(rng, 0.7, 1.3), 50)
		bench := math.Max(bw*bpRatio*randRange(rng, 0.7, 1.3), 30)
		deadlift := math.Max(bw*dlRatio*randRange(rng, 0.7, 1.3), 60)
		total := squat + bench + deadlift

		equipment := synthEquipment[rng.IntN(len(synthEquipment))]
		federation := synthFederations[rng.IntN(len(synthFederations))]
		year := currentYear - rng.IntN(10)

		ds.Sex = append(ds.Sex, sex)
		ds.Equipment = append(ds.Equipment, equipment)
		ds.BodyweightKg = append(ds.BodyweightKg, bw)
		ds.Squat = append(ds.Squat, squat)
		ds.Bench = append(ds.Bench, bench)
		ds.Deadlift = append(ds.Deadlift, deadlift)
		ds.Total = append(ds.Total, total)
		ds.WeightClass = append(ds.WeightClass, weightClassFor(sexByte, bw))
		ds.Federation = append(ds.Federation, federation)
		ds.Year = append(ds.Year, year)
		ds.SquatDOTS = append(ds.SquatDOTS, dotsOrSentinel(sex, squat, bw))
		ds.BenchDOTS = append(ds.BenchDOTS, dotsOrSentinel(sex, bench, bw))
		ds.DeadliftDOTS = append(ds.DeadliftDOTS, dotsOrSentinel(sex, deadlift, bw))
		ds.TotalDOTS = append(ds.TotalDOTS, dotsOrSentinel(sex, total, bw))
	}

	ds.path = "<synthesized>"
	ds.fingerprint = fingerprintOf("<synthesized>", int64(n), int64(seed), n)
	return ds, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func randRange(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// normal draws from N(mean, std) via the Box-Muller transform, seeded
// deterministically through rng.
func normal(rng *rand.Rand, mean, std float64) float64 {
	u1 := rng.Float64()
	if u1 == 0 {
		u1 = 1e-12
	}
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z*std
}
