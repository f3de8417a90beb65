package vector

import (
	"math"
	"math/rand/v2"

	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
	"github.com/ironinsights/iron-insights/internal/scoring"
)

// Config bounds the vector engine's output size (spec.md §6).
type Config struct {
	SampleSize    int
	HistogramBins int
	// SplitTotalForScatter gates the 0.35/0.25/0.40 total-lift split
	// from spec.md §9's open question. NewEngine leaves it as given; the
	// service config (query.split_total_for_scatter) defaults it to true.
	SplitTotalForScatter bool
}

// Engine answers visualization requests over a filtered view.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 50000
	}
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = 50
	}
	return &Engine{cfg: cfg}
}

// liftColumns returns the raw and DOTS column slices selected by lift type.
func liftColumns(ds *dataset.Dataset, liftType string) (raw, dots []float64) {
	switch liftType {
	case "squat":
		return ds.Squat, ds.SquatDOTS
	case "bench":
		return ds.Bench, ds.BenchDOTS
	case "deadlift":
		return ds.Deadlift, ds.DeadliftDOTS
	default: // "total"
		return ds.Total, ds.TotalDOTS
	}
}

// Visualize runs the vector engine over v, producing histograms, scatter
// clouds, and the user's percentiles (spec.md §4.4). fingerprint seeds
// the sampling RNG so repeat requests with the same fingerprint draw the
// same sample (spec.md §4.4 step 3).
func (e *Engine) Visualize(v *filter.View, req *filter.Request, fingerprint uint64) *Payload {
	ds := v.Dataset
	raw, dots := liftColumns(ds, req.LiftType)

	type row struct {
		bw   float64
		raw  float64
		dots float64
		sex  string
	}

	rows := make([]row, 0, v.Len())
	for _, idx := range v.Indices {
		rv, dv := raw[idx], dots[idx]
		if !finite(rv) || rv <= 0 || dataset.IsInvalidDOTS(dv) {
			continue
		}
		sex := "M"
		if ds.Sex[idx].String() == "F" {
			sex = "F"
		}
		rows = append(rows, row{bw: ds.BodyweightKg[idx], raw: rv, dots: dv, sex: sex})
	}

	payload := &Payload{RecordCount: len(rows)}

	// User percentiles are computed over the pre-sample filtered set.
	if bw, ok := req.UserBodyweight(); ok {
		if userLift, ok := req.UserLift(); ok && bw > 0 {
			rawVals := make([]float64, len(rows))
			dotsVals := make([]float64, len(rows))
			for i, r := range rows {
				rawVals[i] = r.raw
				dotsVals[i] = r.dots
			}
			pRaw := percentileBelow(rawVals, userLift)
			payload.UserPercentileRaw = &pRaw

			if sex, ok := scoring.ParseSex(req.Sex); ok {
				userDots := scoring.DOTS(sex, userLift, bw)
				if finite(userDots) && userDots > 0 {
					pDots := percentileBelow(dotsVals, userDots)
					payload.UserPercentileDots = &pDots
				}
			}
		}
	}

	if e.cfg.SplitTotalForScatter && req.LiftType == "total" {
		if total, ok := req.UserLift(); ok {
			sq, bn, dl := filter.SplitTotalForScatter(total)
			payload.UserLiftSplit = &UserLiftSplit{Squat: sq, Bench: bn, Deadlift: dl}
		}
	}

	sample := rows
	if len(rows) > e.cfg.SampleSize {
		sample = sampleRows(rows, e.cfg.SampleSize, fingerprint)
	}

	rawSample := make([]float64, len(sample))
	dotsSample := make([]float64, len(sample))
	payload.RawScatter = make([]ScatterPoint, len(sample))
	payload.DotsScatter = make([]ScatterPoint, len(sample))
	for i, r := range sample {
		rawSample[i] = r.raw
		dotsSample[i] = r.dots
		payload.RawScatter[i] = ScatterPoint{X: r.bw, Y: r.raw, Sex: r.sex}
		payload.DotsScatter[i] = ScatterPoint{X: r.bw, Y: r.dots, Sex: r.sex}
	}

	payload.RawHistogram = buildHistogram(rawSample, e.cfg.HistogramBins)
	payload.DotsHistogram = buildHistogram(dotsSample, e.cfg.HistogramBins)

	return payload
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// sampleRows draws a uniform random sample of size n from rows without
// replacement, seeded by fingerprint for reproducibility across requests
// that canonicalize to the same cache key (spec.md §4.4 step 3).
func sampleRows[T any](rows []T, n int, fingerprint uint64) []T {
	rng := rand.New(rand.NewPCG(fingerprint, fingerprint^0xa5a5a5a5a5a5a5a5))
	// Partial Fisher-Yates: shuffle just enough to select n elements.
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = rows[idx[i]]
	}
	return out
}
