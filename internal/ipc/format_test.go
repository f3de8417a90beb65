package ipc

import (
	"reflect"
	"testing"

	"github.com/ironinsights/iron-insights/internal/vector"
)

func samplePayload() *vector.Payload {
	return &vector.Payload{
		RawHistogram: []vector.HistBin{
			{BinLo: 0, Value: 5, Count: 3},
			{BinLo: 10, Value: 15, Count: 0},
		},
		DotsHistogram: []vector.HistBin{
			{BinLo: 100, Value: 105, Count: 2},
		},
		RawScatter: []vector.ScatterPoint{
			{X: 90, Y: 300, Sex: "M"},
			{X: 65, Y: 150, Sex: "F"},
		},
		DotsScatter: []vector.ScatterPoint{
			{X: 90, Y: 320.5, Sex: "M"},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := samplePayload()
	encoded, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !reflect.DeepEqual(p.RawHistogram, decoded.RawHistogram) {
		t.Errorf("RawHistogram mismatch: got %+v, want %+v", decoded.RawHistogram, p.RawHistogram)
	}
	if !reflect.DeepEqual(p.DotsHistogram, decoded.DotsHistogram) {
		t.Errorf("DotsHistogram mismatch: got %+v, want %+v", decoded.DotsHistogram, p.DotsHistogram)
	}
	if !reflect.DeepEqual(p.RawScatter, decoded.RawScatter) {
		t.Errorf("RawScatter mismatch: got %+v, want %+v", decoded.RawScatter, p.RawScatter)
	}
	if !reflect.DeepEqual(p.DotsScatter, decoded.DotsScatter) {
		t.Errorf("DotsScatter mismatch: got %+v, want %+v", decoded.DotsScatter, p.DotsScatter)
	}
}

func TestEncodeEmptyPayloadRoundTrips(t *testing.T) {
	encoded, err := Encode(&vector.Payload{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.RawHistogram)+len(decoded.DotsHistogram)+len(decoded.RawScatter)+len(decoded.DotsScatter) != 0 {
		t.Error("expected an empty payload to decode with zero rows")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize)); err == nil {
		t.Error("expected an error decoding a zeroed header")
	}
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	encoded, err := Encode(samplePayload())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := append([]byte(nil), encoded...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := Decode(corrupted); err == nil {
		t.Error("expected an error decoding a payload with a flipped body byte")
	}
}
