package tonal

import (
	"math"
	"testing"
)

func TestNoteFromFrequency(t *testing.T) {
	tests := []struct {
		hz     float64
		name   string
		octave int
		cents  float64
	}{
		{440, "A", 4, 0},
		{261.6256, "C", 4, 0},
		{246.9417, "B", 3, 0},
		{466.1638, "A#", 4, 0},
		{55, "A", 1, 0},
		{445, "A", 4, 19.56},
		{1046.502, "C", 6, 0},
	}
	for _, tt := range tests {
		n, ok := NoteFromFrequency(tt.hz)
		if !ok {
			t.Fatalf("NoteFromFrequency(%g) failed", tt.hz)
		}
		if n.Name != tt.name || n.Octave != tt.octave {
			t.Errorf("%g Hz = %s, want %s%d", tt.hz, n, tt.name, tt.octave)
		}
		if math.Abs(n.Cents-tt.cents) > 0.05 {
			t.Errorf("%g Hz cents = %.2f, want %.2f", tt.hz, n.Cents, tt.cents)
		}
	}
}

func TestNoteFromFrequencyInvalid(t *testing.T) {
	for _, hz := range []float64{0, -10, math.NaN()} {
		if _, ok := NoteFromFrequency(hz); ok {
			t.Errorf("NoteFromFrequency(%g) succeeded", hz)
		}
	}
}

func TestNoteFrequency(t *testing.T) {
	if got := NoteFrequency(60); math.Abs(got-261.6256) > 1e-3 {
		t.Errorf("NoteFrequency(60) = %g", got)
	}
}
