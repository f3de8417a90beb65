package vector

import (
	"testing"

	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/filter"
)

func TestVisualizeRecordCountMatchesView(t *testing.T) {
	ds, err := dataset.Synthesize(5000, 11)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	req := &filter.Request{Sex: "All", LiftType: "total", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all"}
	view := filter.Apply(ds, req)

	eng := NewEngine(Config{SampleSize: 50000, HistogramBins: 20})
	payload := eng.Visualize(view, req, 42)

	if payload.RecordCount == 0 {
		t.Fatal("expected non-zero record count")
	}
	if payload.RecordCount > view.Len() {
		t.Fatalf("payload record count %d exceeds view size %d", payload.RecordCount, view.Len())
	}
	if len(payload.RawHistogram) != 20 {
		t.Errorf("expected 20 histogram bins, got %d", len(payload.RawHistogram))
	}
	if len(payload.RawScatter) != len(payload.DotsScatter) {
		t.Errorf("raw/dots scatter length mismatch: %d vs %d", len(payload.RawScatter), len(payload.DotsScatter))
	}
}

func TestVisualizeSamplingRespectsCapAndIsDeterministic(t *testing.T) {
	ds, err := dataset.Synthesize(8000, 3)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	req := &filter.Request{Sex: "All", LiftType: "total", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all"}
	view := filter.Apply(ds, req)

	eng := NewEngine(Config{SampleSize: 100, HistogramBins: 10})
	p1 := eng.Visualize(view, req, 99)
	p2 := eng.Visualize(view, req, 99)

	if len(p1.RawScatter) != 100 {
		t.Fatalf("expected sample capped at 100, got %d", len(p1.RawScatter))
	}
	if len(p1.RawScatter) != len(p2.RawScatter) {
		t.Fatalf("sample size differs across runs with the same fingerprint")
	}
	for i := range p1.RawScatter {
		if p1.RawScatter[i] != p2.RawScatter[i] {
			t.Fatalf("same fingerprint produced different samples at index %d", i)
		}
	}
}

func TestVisualizeUserPercentile(t *testing.T) {
	ds, err := dataset.Synthesize(3000, 21)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	bw := 90.0
	squat := 500.0
	req := &filter.Request{Sex: "M", LiftType: "squat", Equipment: []string{"Raw", "Wraps", "Single-ply"}, YearsFilter: "all", Federation: "all", BodyweightKg: &bw, Squat: &squat}
	req.Normalize()
	view := filter.Apply(ds, req)

	eng := NewEngine(Config{SampleSize: 50000, HistogramBins: 20})
	payload := eng.Visualize(view, req, 7)

	if payload.UserPercentileRaw == nil {
		t.Fatal("expected a raw percentile for a request with bodyweight and lift set")
	}
	if *payload.UserPercentileRaw < 0 || *payload.UserPercentileRaw > 100 {
		t.Fatalf("percentile out of range: %f", *payload.UserPercentileRaw)
	}
}
