package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/scoring"
)

// requiredColumns are the CSV headers the loader must find before it will
// attempt to parse a row (spec.md §4.1). Column names follow the
// OpenPowerlifting bulk-export convention, per
// _examples/original_source/src/data.rs's load_real_data schema.
var requiredColumns = []string{
	"Sex", "Equipment", "BodyweightKg",
	"Best3SquatKg", "Best3BenchKg", "Best3DeadliftKg", "TotalKg",
	"WeightClassKg", "Federation", "Date",
}

const (
	minBodyweightKg = 30.0
	maxBodyweightKg = 300.0
)

// Load reads a columnar CSV dataset from path, validates its schema,
// filters invalid rows, and derives the DOTS and year columns. If path
// does not exist, it falls back to a deterministic synthesized sample
// (spec.md §4.1) rather than failing the request path.
func Load(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Synthesize(10000, 42)
		}
		return nil, apperr.Wrap(apperr.DataUnavailable, "stat dataset file", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.DataUnavailable, "open dataset file", err)
	}
	defer f.Close()

	ds, rows, err := parseCSV(f)
	if err != nil {
		return nil, err
	}

	ds.path = path
	ds.sizeBytes = info.Size()
	ds.modUnixNano = info.ModTime().UnixNano()
	ds.fingerprint = fingerprintOf(path, ds.sizeBytes, ds.modUnixNano, rows)
	return ds, nil
}

func parseCSV(r io.Reader) (*Dataset, int, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Corrupt(), "read CSV header", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, apperr.New(apperr.SchemaMismatch(), fmt.Sprintf("missing required column %q", col))
		}
	}

	ds := &Dataset{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.Corrupt(), "read CSV row", err)
		}
		appendRow(ds, idx, rec)
	}
	return ds, ds.Len(), nil
}

func appendRow(ds *Dataset, idx map[string]int, rec []string) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	sexStr := field("Sex")
	sex, ok := scoring.ParseSex(sexStr)
	if !ok {
		return
	}

	bw, err := strconv.ParseFloat(field("BodyweightKg"), 64)
	if err != nil || bw <= minBodyweightKg-0.01 || bw >= maxBodyweightKg+0.01 {
		return
	}
	// Boundary values (30kg, 300kg exactly) are accepted (spec.md §8);
	// 29.99 and 300.01 are rejected.
	if bw < minBodyweightKg || bw > maxBodyweightKg {
		return
	}

	squat := parseLift(field("Best3SquatKg"))
	bench := parseLift(field("Best3BenchKg"))
	deadlift := parseLift(field("Best3DeadliftKg"))
	total := parseLift(field("TotalKg"))

	if allNonPositive(squat, bench, deadlift, total) {
		return
	}

	year := parseYear(field("Date"))
	sexByte := byte('M')
	if sex == scoring.SexFemale {
		sexByte = 'F'
	}

	sqDots := dotsOrSentinel(sex, squat, bw)
	bnDots := dotsOrSentinel(sex, bench, bw)
	dlDots := dotsOrSentinel(sex, deadlift, bw)
	totDots := dotsOrSentinel(sex, total, bw)

	ds.Sex = append(ds.Sex, sex)
	ds.Equipment = append(ds.Equipment, field("Equipment"))
	ds.BodyweightKg = append(ds.BodyweightKg, bw)
	ds.Squat = append(ds.Squat, squat)
	ds.Bench = append(ds.Bench, bench)
	ds.Deadlift = append(ds.Deadlift, deadlift)
	ds.Total = append(ds.Total, total)
	ds.WeightClass = append(ds.WeightClass, weightClassFor(sexByte, bw))
	ds.Federation = append(ds.Federation, field("Federation"))
	ds.Year = append(ds.Year, year)
	ds.SquatDOTS = append(ds.SquatDOTS, sqDots)
	ds.BenchDOTS = append(ds.BenchDOTS, bnDots)
	ds.DeadliftDOTS = append(ds.DeadliftDOTS, dlDots)
	ds.TotalDOTS = append(ds.TotalDOTS, totDots)
}

func parseLift(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func allNonPositive(vals ...float64) bool {
	for _, v := range vals {
		if v > 0 {
			return false
		}
	}
	return true
}

func dotsOrSentinel(sex scoring.Sex, lift, bw float64) float64 {
	if lift <= 0 {
		return sentinel
	}
	d := scoring.DOTS(sex, lift, bw)
	if d <= 0 {
		return sentinel
	}
	return d
}

func parseYear(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	t, err := time.Parse("2006-01-02", date)
	if err == nil {
		return t.Year()
	}
	return 0
}
