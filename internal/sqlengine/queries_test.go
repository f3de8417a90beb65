package sqlengine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
)

func testEngine(t *testing.T) (*Engine, *dataset.Dataset) {
	t.Helper()
	ds, err := dataset.Synthesize(2000, 5)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e, err := Open(ctx, ds, Config{Threads: 2}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, ds
}

func TestSummaryStatsCountsMatchDataset(t *testing.T) {
	e, ds := testEngine(t)
	req := &filter.Request{Sex: "All", LiftType: "total", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stats, err := e.SummaryStats(ctx, ds, req)
	if err != nil {
		t.Fatalf("SummaryStats: %v", err)
	}
	if len(stats) != 4 {
		t.Fatalf("expected 4 lift rows, got %d", len(stats))
	}
	for _, s := range stats {
		if s.N == 0 {
			t.Errorf("lift %s had zero rows in a synthesized dataset", s.Lift)
		}
		if s.Min > s.Max {
			t.Errorf("lift %s min %f exceeds max %f", s.Lift, s.Min, s.Max)
		}
	}
}

func TestWeightDistributionBinsSumToTotal(t *testing.T) {
	e, ds := testEngine(t)
	req := &filter.Request{Sex: "All", LiftType: "total", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bins, err := e.WeightDistribution(ctx, ds, req, 10)
	if err != nil {
		t.Fatalf("WeightDistribution: %v", err)
	}
	if len(bins) != 10 {
		t.Fatalf("expected 10 bins, got %d", len(bins))
	}
	var sum int64
	for _, b := range bins {
		sum += b.Count
	}
	if sum == 0 {
		t.Error("expected non-zero total count across bins")
	}
}

func TestCompetitivePositionPercentileInRange(t *testing.T) {
	e, ds := testEngine(t)
	req := &filter.Request{Sex: "M", LiftType: "squat", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pos, err := e.CompetitivePosition(ctx, ds, req, 300)
	if err != nil {
		t.Fatalf("CompetitivePosition: %v", err)
	}
	if pos.Percentile < 0 || pos.Percentile > 100 {
		t.Errorf("percentile out of range: %f", pos.Percentile)
	}
	if pos.Rank > pos.Total {
		t.Errorf("rank %d exceeds total %d", pos.Rank, pos.Total)
	}
}
