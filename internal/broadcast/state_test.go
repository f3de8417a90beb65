package broadcast

import (
	"testing"

	"github.com/ironinsights/iron-insights/internal/scoring"
)

func TestActivityStateRingBufferWrapsInOrder(t *testing.T) {
	a := NewActivityState(3)
	for i := 0; i < 5; i++ {
		a.RecordCalculation(Calculation{LiftType: "squat", DOTS: float64(i)})
	}
	recent := a.RecentCalculations()
	if len(recent) != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", len(recent))
	}
	want := []float64{2, 3, 4}
	for i, c := range recent {
		if c.DOTS != want[i] {
			t.Errorf("recent[%d].DOTS = %v, want %v", i, c.DOTS, want[i])
		}
	}
}

func TestActivityStateCountersAreIndependent(t *testing.T) {
	a := NewActivityState(10)
	a.OnConnect()
	a.OnConnect()
	a.OnSessionLive()
	a.RecordCalculation(Calculation{DOTS: 1})

	snap := a.Snapshot()
	if snap.Connections != 2 {
		t.Errorf("Connections = %d, want 2", snap.Connections)
	}
	if snap.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", snap.ActiveSessions)
	}
	if snap.TotalCalculations != 1 {
		t.Errorf("TotalCalculations = %d, want 1", snap.TotalCalculations)
	}

	a.OnDisconnect()
	if a.Snapshot().Connections != 1 {
		t.Errorf("Connections after disconnect = %d, want 1", a.Snapshot().Connections)
	}
}

func TestUpdateLoadEstimateClampsToOne(t *testing.T) {
	a := NewActivityState(10)
	for i := 0; i < 20; i++ {
		a.OnSessionLive()
	}
	a.UpdateLoadEstimate(10)
	if load := a.Snapshot().ServerLoad; load != 1 {
		t.Errorf("ServerLoad = %v, want 1 (clamped)", load)
	}
}

func TestSessionPhaseString(t *testing.T) {
	cases := map[SessionPhase]string{Handshaking: "handshaking", Live: "live", Closing: "closing"}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(phase), got, want)
		}
	}
}

func TestStrengthLevelClassificationIsMonotone(t *testing.T) {
	levels := []scoring.Level{}
	for _, dots := range []float64{50, 160, 240, 320, 400, 500} {
		levels = append(levels, scoring.StrengthLevel(dots, scoring.LiftSquat, scoring.SexMale))
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Errorf("strength level regressed at increasing DOTS: %v then %v", levels[i-1], levels[i])
		}
	}
}
