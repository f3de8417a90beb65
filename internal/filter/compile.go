package filter

import (
	"strconv"
	"strings"

	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/scoring"
)

// View is a filtered, non-copying projection over a Dataset: a list of
// row indices into the dataset's parallel column slices, in original
// dataset order (spec.md §4.3 "without copying the underlying columns").
type View struct {
	Dataset *dataset.Dataset
	Indices []int32
}

// Len returns the number of rows the view selects.
func (v *View) Len() int { return len(v.Indices) }

// Apply compiles req against ds and returns the resulting View. Predicates
// are conjoined in the fixed order from spec.md §4.3: sex, equipment,
// weight class, year range, federation. Filtering is monotone: each
// predicate only ever removes rows.
func Apply(ds *dataset.Dataset, req *Request) *View {
	r := *req
	r.Normalize()

	equipSet := make(map[string]bool, len(r.Equipment))
	for _, e := range r.Equipment {
		equipSet[e] = true
	}

	wantClass := ""
	if r.WeightClass != "All" {
		wantClass = dataset.NormalizeWeightClassLabel(r.WeightClass)
	}

	minYear, maxYear, hasYearBound := yearBounds(ds, r.YearsFilter)

	fed := strings.ToLower(r.Federation)
	fedEnabled := fed != "all"

	wantSex, sexEnabled := scoring.ParseSex(r.Sex)
	if r.Sex == "All" {
		sexEnabled = false
	}

	indices := make([]int32, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if sexEnabled && ds.Sex[i] != wantSex {
			continue
		}
		if !equipSet[ds.Equipment[i]] {
			continue
		}
		if wantClass != "" && ds.WeightClass[i] != wantClass {
			continue
		}
		if hasYearBound {
			y := ds.Year[i]
			if y < minYear || y > maxYear {
				continue
			}
		}
		if fedEnabled && !strings.EqualFold(ds.Federation[i], r.Federation) {
			continue
		}
		indices = append(indices, int32(i))
	}

	return &View{Dataset: ds, Indices: indices}
}

// yearBounds resolves the years_filter option against the dataset's
// observed year range. "last_5_years" selects exactly the five
// most-recent year values present (spec.md §8); "all" disables the
// bound; an explicit "YYYY-YYYY" window is used verbatim.
func yearBounds(ds *dataset.Dataset, yearsFilter string) (min, max int, ok bool) {
	switch yearsFilter {
	case "all":
		return 0, 0, false
	case "last_5_years", "":
		maxY, ok2 := 0, false
		_, maxY, ok2 = ds.MinMaxYear()
		if !ok2 {
			return 0, 0, false
		}
		return maxY - 4, maxY, true
	default:
		if lo, hi, ok3 := parseExplicitWindow(yearsFilter); ok3 {
			return lo, hi, true
		}
		return 0, 0, false
	}
}

// ParseExplicitYearWindow parses an explicit "YYYY-YYYY" years_filter
// value, for callers outside this package that need the same window
// resolution logic Apply uses internally (e.g. internal/sqlengine).
func ParseExplicitYearWindow(s string) (lo, hi int, ok bool) {
	return parseExplicitWindow(s)
}

func parseExplicitWindow(s string) (lo, hi int, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	loN, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hiN, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return loN, hiN, true
}
