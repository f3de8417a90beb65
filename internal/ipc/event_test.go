package ipc

import "testing"

func sampleEventRows() []EventRow {
	return []EventRow{
		{Type: "stats_update", ActiveUsers: 12, TotalConnections: 15, ServerLoad: 0.4},
		{Type: "dots_calculation", StrengthLevel: "elite", DotsScore: 512.3, LiftType: "total"},
	}
}

func TestEncodeDecodeEventsRoundTrip(t *testing.T) {
	rows := sampleEventRows()
	encoded, err := EncodeEvents(rows)
	if err != nil {
		t.Fatalf("EncodeEvents: %v", err)
	}
	decoded, err := DecodeEvents(encoded)
	if err != nil {
		t.Fatalf("DecodeEvents: %v", err)
	}
	if len(decoded) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(decoded), len(rows))
	}
	for i, want := range rows {
		if decoded[i] != want {
			t.Errorf("row %d: got %+v, want %+v", i, decoded[i], want)
		}
	}
}

func TestDecodeEventsRejectsVisualizeFrame(t *testing.T) {
	encoded, err := Encode(samplePayload())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := DecodeEvents(encoded); err == nil {
		t.Error("expected an error decoding a visualize frame as an event frame")
	}
}
