package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	for _, u := range []string{"", "mm", "ft", "CM"} {
		if IsValid(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestConvertLength(t *testing.T) {
	tests := []struct {
		cm     float64
		target string
		want   float64
	}{
		{100, CM, 100},
		{100, M, 1},
		{2.54, IN, 1},
		{95, IN, 37.40157480314961},
		{95, "unknown", 95},
	}
	for _, tt := range tests {
		got := ConvertLength(tt.cm, tt.target)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ConvertLength(%v, %q) = %v, want %v", tt.cm, tt.target, got, tt.want)
		}
	}
}

func TestInchRoundTrip(t *testing.T) {
	for _, cm := range []float64{0, 1, 63.5, 95.3} {
		back := InchesToCM(CMToInches(cm))
		if math.Abs(back-cm) > 1e-12 {
			t.Errorf("inch round trip of %v cm gave %v", cm, back)
		}
	}
}

func TestFormatLength(t *testing.T) {
	if got := FormatLength(94.54, CM); got != "94.5 cm" {
		t.Errorf("FormatLength = %q, want %q", got, "94.5 cm")
	}
}
