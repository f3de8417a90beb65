package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
	"github.com/ironinsights/iron-insights/internal/scoring"
)

// liftColumn maps a lift_type onto its SQL column names.
func liftColumn(liftType string) (rawCol, dotsCol string) {
	switch liftType {
	case "squat":
		return "squat_kg", "squat_dots"
	case "bench":
		return "bench_kg", "bench_dots"
	case "deadlift":
		return "deadlift_kg", "deadlift_dots"
	default:
		return "total_kg", "total_dots"
	}
}

// whereClause compiles req into a SQL WHERE clause and bound arguments,
// reproducing internal/filter.Apply's predicate order and semantics
// (spec.md §4.5 "the same filters produce an equivalent row set").
func whereClause(ds *dataset.Dataset, req *filter.Request) (string, []any) {
	r := *req
	r.Normalize()

	clauses := []string{"1=1"}
	var args []any

	if _, ok := scoring.ParseSex(r.Sex); ok {
		clauses = append(clauses, "sex = ?")
		args = append(args, r.Sex)
	}

	if len(r.Equipment) > 0 {
		placeholders := ""
		for i, e := range r.Equipment {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, e)
		}
		clauses = append(clauses, fmt.Sprintf("equipment IN (%s)", placeholders))
	}

	if r.WeightClass != "All" && r.WeightClass != "" {
		clauses = append(clauses, "weight_class = ?")
		args = append(args, dataset.NormalizeWeightClassLabel(r.WeightClass))
	}

	switch r.YearsFilter {
	case "all":
	case "last_5_years", "":
		if _, maxY, ok := ds.MinMaxYear(); ok {
			clauses = append(clauses, "year BETWEEN ? AND ?")
			args = append(args, maxY-4, maxY)
		}
	default:
		// explicit "YYYY-YYYY" windows are resolved the same way the
		// vector-engine filter does; unparseable values disable the bound.
		if lo, hi, ok := filter.ParseExplicitYearWindow(r.YearsFilter); ok {
			clauses = append(clauses, "year BETWEEN ? AND ?")
			args = append(args, lo, hi)
		}
	}

	if r.Federation != "all" && r.Federation != "" {
		clauses = append(clauses, "federation = ? COLLATE NOCASE")
		args = append(args, r.Federation)
	}

	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// GroupPercentiles is one row of percentiles_by's result.
type GroupPercentiles struct {
	Sex       string
	Equipment string
	P25       float64
	P50       float64
	P75       float64
	P90       float64
	P95       float64
	P99       float64
	Count     int64
}

// PercentilesBy computes per-(sex, equipment) percentiles over the
// filtered set (spec.md §4.5). SQLite has no continuous-quantile
// aggregate, so each percentile is the largest value whose PERCENT_RANK()
// is at or below the cutoff; values are not interpolated between
// neighbouring rows.
func (e *Engine) PercentilesBy(ctx context.Context, ds *dataset.Dataset, req *filter.Request) ([]GroupPercentiles, error) {
	rawCol, _ := liftColumn(req.LiftType)
	where, args := whereClause(ds, req)

	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT sex, equipment, %s AS v,
			       PERCENT_RANK() OVER (PARTITION BY sex, equipment ORDER BY %s) AS pr
			FROM lifters
			WHERE %s AND %s IS NOT NULL
		)
		SELECT sex, equipment,
		       MAX(CASE WHEN pr <= 0.25 THEN v END) AS p25,
		       MAX(CASE WHEN pr <= 0.50 THEN v END) AS p50,
		       MAX(CASE WHEN pr <= 0.75 THEN v END) AS p75,
		       MAX(CASE WHEN pr <= 0.90 THEN v END) AS p90,
		       MAX(CASE WHEN pr <= 0.95 THEN v END) AS p95,
		       MAX(CASE WHEN pr <= 0.99 THEN v END) AS p99,
		       COUNT(*) AS n
		FROM ranked
		GROUP BY sex, equipment
	`, rawCol, rawCol, where, rawCol)

	var out []GroupPercentiles
	err := e.Dispatch(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return apperr.Wrap(apperr.EngineUnavailable, "percentiles_by query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var g GroupPercentiles
			var p25, p50, p75, p90, p95, p99 sql.NullFloat64
			if err := rows.Scan(&g.Sex, &g.Equipment, &p25, &p50, &p75, &p90, &p95, &p99, &g.Count); err != nil {
				return apperr.Wrap(apperr.Internal, "scan percentiles_by row", err)
			}
			g.P25, g.P50, g.P75, g.P90, g.P95, g.P99 = p25.Float64, p50.Float64, p75.Float64, p90.Float64, p95.Float64, p99.Float64
			out = append(out, g)
		}
		return rows.Err()
	})
	return out, err
}

// WeightDistributionBin is one row of weight_distribution's result.
type WeightDistributionBin struct {
	BinLo float64
	BinHi float64
	Count int64
}

// WeightDistribution bins the filtered set's selected lift column into n
// fixed-width bins (spec.md §4.5).
func (e *Engine) WeightDistribution(ctx context.Context, ds *dataset.Dataset, req *filter.Request, bins int) ([]WeightDistributionBin, error) {
	if bins <= 0 {
		bins = 50
	}
	rawCol, _ := liftColumn(req.LiftType)
	where, args := whereClause(ds, req)

	boundsQuery := fmt.Sprintf(`SELECT MIN(%s), MAX(%s) FROM lifters WHERE %s AND %s IS NOT NULL`, rawCol, rawCol, where, rawCol)

	var lo, hi sql.NullFloat64
	err := e.Dispatch(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, boundsQuery, args...).Scan(&lo, &hi)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.EngineUnavailable, "weight_distribution bounds query", err)
	}
	if !lo.Valid || !hi.Valid || hi.Float64 <= lo.Float64 {
		return make([]WeightDistributionBin, bins), nil
	}

	width := (hi.Float64 - lo.Float64) / float64(bins)
	out := make([]WeightDistributionBin, bins)
	for i := range out {
		out[i].BinLo = lo.Float64 + float64(i)*width
		out[i].BinHi = out[i].BinLo + width
	}

	countQuery := fmt.Sprintf(`
		SELECT MIN(CAST((%s - ?) / ? AS INTEGER), ? - 1) AS bucket, COUNT(*)
		FROM lifters
		WHERE %s AND %s IS NOT NULL
		GROUP BY bucket
	`, rawCol, where, rawCol)
	countArgs := append([]any{lo.Float64, width, bins}, args...)

	err = e.Dispatch(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, countQuery, countArgs...)
		if err != nil {
			return apperr.Wrap(apperr.EngineUnavailable, "weight_distribution count query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var bucket int
			var n int64
			if err := rows.Scan(&bucket, &n); err != nil {
				return apperr.Wrap(apperr.Internal, "scan weight_distribution row", err)
			}
			if bucket < 0 {
				bucket = 0
			}
			if bucket >= bins {
				bucket = bins - 1
			}
			out[bucket].Count = n
		}
		return rows.Err()
	})
	return out, err
}

// CompetitivePosition is competitive_position's result.
type CompetitivePosition struct {
	Rank       int64
	Total      int64
	Percentile float64
}

// CompetitivePosition computes the user's rank within the filtered set
// for the given lift value (spec.md §4.5).
func (e *Engine) CompetitivePosition(ctx context.Context, ds *dataset.Dataset, req *filter.Request, value float64) (CompetitivePosition, error) {
	rawCol, _ := liftColumn(req.LiftType)
	where, args := whereClause(ds, req)

	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM lifters WHERE %s AND %s IS NOT NULL AND %s < ?) AS below,
			(SELECT COUNT(*) FROM lifters WHERE %s AND %s IS NOT NULL) AS total
	`, where, rawCol, rawCol, where, rawCol)

	var below, total int64
	queryArgs := append(append([]any{}, args...), value)
	queryArgs = append(queryArgs, args...)
	err := e.Dispatch(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, query, queryArgs...).Scan(&below, &total)
	})
	if err != nil {
		return CompetitivePosition{}, apperr.Wrap(apperr.EngineUnavailable, "competitive_position query", err)
	}
	if total == 0 {
		return CompetitivePosition{}, nil
	}
	rank := total - below
	return CompetitivePosition{
		Rank:       rank,
		Total:      total,
		Percentile: roundTenth(100 * float64(total-rank+1) / float64(total)),
	}, nil
}

// SummaryStats is summary_stats's per-lift-column result row.
type SummaryStats struct {
	Lift  string
	N     int64
	Mean  float64
	Stdev float64
	Min   float64
	Max   float64
}

// SummaryStats computes n/mean/stdev/min/max for each lift column over
// the filtered set (spec.md §4.5).
func (e *Engine) SummaryStats(ctx context.Context, ds *dataset.Dataset, req *filter.Request) ([]SummaryStats, error) {
	where, args := whereClause(ds, req)

	var out []SummaryStats
	for _, lift := range []string{"squat", "bench", "deadlift", "total"} {
		col, _ := liftColumn(lift)
		query := fmt.Sprintf(`
			SELECT COUNT(%s), AVG(%s), MIN(%s), MAX(%s)
			FROM lifters WHERE %s AND %s IS NOT NULL
		`, col, col, col, col, where, col)

		var n sql.NullInt64
		var mean, minV, maxV sql.NullFloat64
		err := e.Dispatch(ctx, func(db *sql.DB) error {
			return db.QueryRowContext(ctx, query, args...).Scan(&n, &mean, &minV, &maxV)
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.EngineUnavailable, fmt.Sprintf("summary_stats query for %s", lift), err)
		}

		var stdev float64
		if n.Int64 > 1 {
			varQuery := fmt.Sprintf(`
				SELECT AVG((%s - ?) * (%s - ?))
				FROM lifters WHERE %s AND %s IS NOT NULL
			`, col, col, where, col)
			varArgs := append([]any{mean.Float64, mean.Float64}, args...)
			var variance sql.NullFloat64
			err := e.Dispatch(ctx, func(db *sql.DB) error {
				return db.QueryRowContext(ctx, varQuery, varArgs...).Scan(&variance)
			})
			if err != nil {
				return nil, apperr.Wrap(apperr.EngineUnavailable, fmt.Sprintf("summary_stats variance query for %s", lift), err)
			}
			stdev = math.Sqrt(variance.Float64)
		}

		out = append(out, SummaryStats{
			Lift: lift, N: n.Int64, Mean: mean.Float64, Stdev: stdev, Min: minV.Float64, Max: maxV.Float64,
		})
	}
	return out, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
