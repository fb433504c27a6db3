package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		v, low, high, w uint32
	}{
		{"below", 1, 2, 8, 2},
		{"inside", 5, 2, 8, 5},
		{"above", 9, 2, 8, 8},
		{"degenerate range", 4, 3, 3, 3},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.low, tt.high); got != tt.w {
			t.Fatalf("%s: Clamp(%d, %d, %d) = %d, want %d", tt.name, tt.v, tt.low, tt.high, got, tt.w)
		}
	}
	if got := Clamp(-0.5, 0.0, 1.0); got != 0.0 {
		t.Fatalf("float Clamp = %v", got)
	}
}
