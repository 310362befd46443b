package tonal

import (
	"fmt"
	"math"
)

// ReferenceA4 is the concert pitch the note names are derived from
const ReferenceA4 = 440.0

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is the equal-tempered note nearest to a frequency
type Note struct {
	Name   string  `json:"name"`   // pitch class, e.g. "F#"
	Octave int     `json:"octave"` // scientific pitch notation, A4 = 440 Hz
	Cents  float64 `json:"cents"`  // deviation from the note, -50..+50
	MIDI   int     `json:"midi"`
}

// String formats the note as name plus octave, e.g. "A4"
func (n Note) String() string {
	if n.Name == "" {
		return ""
	}
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// NoteFromFrequency returns the nearest note and the deviation in cents.
// Non-positive frequencies return false.
func NoteFromFrequency(hz float64) (Note, bool) {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return Note{}, false
	}

	semitones := 12 * math.Log2(hz/ReferenceA4)
	nearest := int(math.Round(semitones))
	fromC := nearest + 9 // A is 9 semitones above C

	return Note{
		Name:   noteNames[((fromC%12)+12)%12],
		Octave: 4 + floorDiv(fromC, 12),
		Cents:  (semitones - float64(nearest)) * 100,
		MIDI:   69 + nearest,
	}, true
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note
func NoteFrequency(midi int) float64 {
	return ReferenceA4 * math.Pow(2, float64(midi-69)/12)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
