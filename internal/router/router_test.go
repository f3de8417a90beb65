package router

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironinsights/iron-insights/internal/apperr"
	"github.com/ironinsights/iron-insights/internal/cache"
	"github.com/ironinsights/iron-insights/internal/config"
	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
	"github.com/ironinsights/iron-insights/internal/logx"
	"github.com/ironinsights/iron-insights/internal/vector"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	// A nonexistent dataset path makes the loader fall back to its
	// deterministic synthesized sample (internal/dataset.Load).
	store, err := dataset.NewStore(filepath.Join(t.TempDir(), "missing.csv"), logx.NewLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ve := vector.NewEngine(vector.Config{SampleSize: 1000, HistogramBins: 20})
	c := cache.New(100, time.Minute)
	return New(store, ve, nil, c, config.QueryConfig{SampleSize: 1000, HistogramBins: 20}, logx.NewLogger())
}

func TestVisualizeCachesSecondIdenticalCall(t *testing.T) {
	r := testRouter(t)
	req := &filter.Request{Sex: "All", LiftType: "total", Equipment: []string{"Raw"}, YearsFilter: "all"}

	first, err := r.Visualize(context.Background(), req)
	if err != nil {
		t.Fatalf("Visualize: %v", err)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}

	second, err := r.Visualize(context.Background(), req)
	if err != nil {
		t.Fatalf("Visualize: %v", err)
	}
	if !second.Cached {
		t.Error("second identical call should be cached")
	}
	if string(first.Entry.Encoded) != string(second.Entry.Encoded) {
		t.Error("cached entry bytes should be identical across calls")
	}
}

func TestSQLPathsReportEngineUnavailableWithoutEngine(t *testing.T) {
	r := testRouter(t)
	req := &filter.Request{}
	req.Normalize()

	if _, err := r.Percentiles(context.Background(), req); apperr.KindOf(err) != apperr.EngineUnavailable {
		t.Errorf("expected an EngineUnavailable error with no SQL engine configured, got %v", err)
	}
	if _, err := r.SummaryStats(context.Background(), req); apperr.KindOf(err) != apperr.EngineUnavailable {
		t.Errorf("expected an EngineUnavailable error with no SQL engine configured, got %v", err)
	}
}
