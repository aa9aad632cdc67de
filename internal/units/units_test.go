package units

import "testing"

func TestFactor(t *testing.T) {
	tests := []struct {
		unit string
		want float64
	}{
		{"mm", 1.0},
		{"cm", 10.0},
		{"m", 1000.0},
		{"in", 25.4},
		{"ft", 304.8},
		{"MM", 1.0},
		{"furlongs", 1.0}, // unknown falls back to mm
	}
	for _, tt := range tests {
		if got := Factor(tt.unit); got != tt.want {
			t.Errorf("Factor(%q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"cm", "mm", 10.0},
		{"mm", "cm", 0.1},
		{"m", "mm", 1000.0},
		{"in", "mm", 25.4},
		{"mm", "mm", 1.0},
	}
	for _, tt := range tests {
		if got := ScaleFactor(tt.from, tt.to); got != tt.want {
			t.Errorf("ScaleFactor(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("parsec") {
		t.Error("IsValid(\"parsec\") = true, want false")
	}
	if !IsValid("Mm") {
		t.Error("IsValid should be case-insensitive")
	}
}
