package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironinsights/iron-insights/internal/filter"
)

func TestFingerprintStableAcrossEquipmentOrder(t *testing.T) {
	a := &filter.Request{Sex: "M", LiftType: "total", Equipment: []string{"Raw", "Wraps"}, YearsFilter: "all", Federation: "all"}
	b := &filter.Request{Sex: "M", LiftType: "total", Equipment: []string{"Wraps", "Raw"}, YearsFilter: "all", Federation: "all"}

	if Fingerprint(a, 50, 1) != Fingerprint(b, 50, 1) {
		t.Error("equipment order should not affect the fingerprint")
	}
}

func TestFingerprintChangesWithDatasetGeneration(t *testing.T) {
	req := &filter.Request{Sex: "M", LiftType: "total", Equipment: []string{"Raw"}, YearsFilter: "all", Federation: "all"}
	if Fingerprint(req, 50, 1) == Fingerprint(req, 50, 2) {
		t.Error("fingerprint should change when the dataset fingerprint changes")
	}
}

func TestFingerprintRoundsBodyweightNoise(t *testing.T) {
	bw1, bw2 := 90.001, 90.004
	a := &filter.Request{Sex: "M", LiftType: "squat", Equipment: []string{"Raw"}, YearsFilter: "all", Federation: "all", BodyweightKg: &bw1}
	b := &filter.Request{Sex: "M", LiftType: "squat", Equipment: []string{"Raw"}, YearsFilter: "all", Federation: "all", BodyweightKg: &bw2}

	if Fingerprint(a, 50, 1) != Fingerprint(b, 50, 1) {
		t.Error("sub-precision bodyweight noise should hit the same fingerprint")
	}
}

func TestGetOrBuildSingleFlight(t *testing.T) {
	c := New(100, time.Minute)
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]Entry, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := c.GetOrBuild(42, func() (Entry, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return Entry{RecordCount: 7}, nil
			})
			if err != nil {
				t.Errorf("GetOrBuild: %v", err)
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected exactly one build for concurrent identical fingerprints, got %d", calls.Load())
	}
	for _, e := range results {
		if e.RecordCount != 7 {
			t.Errorf("expected shared result RecordCount=7, got %d", e.RecordCount)
		}
	}
}

func TestSetDatasetFingerprintPurgesOnChange(t *testing.T) {
	c := New(100, time.Minute)
	c.SetDatasetFingerprint(1)
	if _, _, err := c.GetOrBuild(1, func() (Entry, error) { return Entry{RecordCount: 1}, nil }); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if _, _, size := c.Stats(); size != 1 {
		t.Fatalf("expected 1 cached entry, got %d", size)
	}

	c.SetDatasetFingerprint(2)
	if _, _, size := c.Stats(); size != 0 {
		t.Fatalf("expected cache to be purged after dataset fingerprint change, got size %d", size)
	}
}
