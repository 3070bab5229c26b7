package models

import (
	"math"
	"testing"
)

func TestScalarFormatProperties(t *testing.T) {
	tests := []struct {
		format ScalarFormat
		bytes  int
		signed bool
		min    float64
		max    float64
	}{
		{FormatUint8, 1, false, 0, 255},
		{FormatInt8, 1, true, -128, 127},
		{FormatUint16, 2, false, 0, 65535},
		{FormatInt16, 2, true, -32768, 32767},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerVoxel(); got != tt.bytes {
			t.Errorf("%s: expected %d bytes per voxel, got %d", tt.format, tt.bytes, got)
		}
		if got := tt.format.Signed(); got != tt.signed {
			t.Errorf("%s: Signed() = %v, expected %v", tt.format, got, tt.signed)
		}
		min, max := tt.format.Range()
		if min != tt.min || max != tt.max {
			t.Errorf("%s: expected range [%g,%g], got [%g,%g]", tt.format, tt.min, tt.max, min, max)
		}
	}
}

func TestRGBALerp(t *testing.T) {
	black := RGBA{}
	white := RGBA{R: 1, G: 1, B: 1, A: 1}

	mid := black.Lerp(white, 0.5)
	for name, got := range map[string]float64{"R": mid.R, "G": mid.G, "B": mid.B, "A": mid.A} {
		if math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Expected %s component 0.5 at midpoint, got %v", name, got)
		}
	}

	if got := black.Lerp(white, 0); got != black {
		t.Errorf("Expected t=0 to return the receiver, got %+v", got)
	}
	if got := black.Lerp(white, 1); got != white {
		t.Errorf("Expected t=1 to return the target, got %+v", got)
	}
}

func TestInvalidInputError(t *testing.T) {
	err := &InvalidInputError{Reason: "empty series"}
	if err.Error() != "invalid input: empty series" {
		t.Errorf("Unexpected error string %q", err.Error())
	}
}
