package speech

import (
	"math"
)

// VowelShape is an IPA vowel class inferred from the first two formants
type VowelShape string

const (
	VowelAOpen  VowelShape = "ɑ"
	VowelAFront VowelShape = "a"
	VowelEOpen  VowelShape = "ɛ"
	VowelEClose VowelShape = "e"
	VowelI      VowelShape = "i"
	VowelOOpen  VowelShape = "ɔ"
	VowelOClose VowelShape = "o"
	VowelU      VowelShape = "u"
	VowelSchwa  VowelShape = "ə"
	VowelMixed  VowelShape = "mixed"
	VowelNone   VowelShape = ""
)

// reference F1/F2 pairs (adult female)
var vowelFormants = []struct {
	shape  VowelShape
	f1, f2 float64
}{
	{VowelAOpen, 850, 1220},
	{VowelAFront, 750, 1700},
	{VowelEOpen, 610, 1900},
	{VowelEClose, 390, 2300},
	{VowelI, 310, 2790},
	{VowelOOpen, 500, 1000},
	{VowelOClose, 360, 750},
	{VowelU, 320, 800},
	{VowelSchwa, 500, 1500},
}

// mixedVowelDistance is the F1/F2 distance in Hz beyond which no reference
// vowel is considered a match
const mixedVowelDistance = 400.0

// ClassifyVowel returns the reference vowel nearest to (f1, f2) in the F1/F2
// plane, or VowelMixed if none lies within 400 Hz
func ClassifyVowel(f1, f2 float64) VowelShape {
	if f1 <= 0 || f2 <= 0 {
		return VowelNone
	}

	best := VowelSchwa
	bestDist := math.Inf(1)
	for _, ref := range vowelFormants {
		d := math.Hypot(f1-ref.f1, f2-ref.f2)
		if d < bestDist {
			best, bestDist = ref.shape, d
		}
	}

	if bestDist > mixedVowelDistance {
		return VowelMixed
	}
	return best
}
