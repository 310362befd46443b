package tonal

// Register is the vocal register a pitch is most likely produced in
type Register string

const (
	RegisterUnknown  Register = ""
	RegisterFry      Register = "vocal_fry"
	RegisterChest    Register = "chest"
	RegisterMix      Register = "mix"
	RegisterHead     Register = "head"
	RegisterFalsetto Register = "falsetto"
	RegisterWhistle  Register = "whistle"
)

// RegisterCues are the measurements register classification looks at.
// Zero formants or centroid mean the measurement is unavailable.
type RegisterCues struct {
	F0Hz       float64
	F1Hz       float64
	F2Hz       float64
	CentroidHz float64
}

// register boundaries in Hz (general female voice)
const (
	fryCeiling      = 80.0
	chestCeiling    = 200.0
	lowMixCeiling   = 350.0
	mixCeiling      = 700.0
	headCeiling     = 1400.0
	whistleFloor    = 2000.0
	brightCentroid  = 2000.0
	openF1          = 600.0
	closedF1        = 400.0
	frontF2Boundary = 2000.0
)

// ClassifyRegister maps pitch to a register and uses formants and spectral
// brightness to separate the overlapping middle ranges:
//
//   - below 80 Hz vocal fry, below 200 Hz chest
//   - 200-350 Hz chest with an open F1 (> 600 Hz), otherwise mix
//   - 350-700 Hz head with a closed F1 (< 400 Hz) and front F2 (> 2 kHz),
//     otherwise mix
//   - 700-1400 Hz head when the spectral centroid is above 2 kHz, otherwise
//     falsetto
//   - 1400-2000 Hz head, 2 kHz and above whistle
func ClassifyRegister(cues RegisterCues) Register {
	f0 := cues.F0Hz
	switch {
	case f0 <= 0:
		return RegisterUnknown
	case f0 < fryCeiling:
		return RegisterFry
	case f0 < chestCeiling:
		return RegisterChest
	case f0 < lowMixCeiling:
		if cues.F1Hz > openF1 {
			return RegisterChest
		}
		return RegisterMix
	case f0 < mixCeiling:
		if cues.F1Hz > 0 && cues.F1Hz < closedF1 && cues.F2Hz > frontF2Boundary {
			return RegisterHead
		}
		return RegisterMix
	case f0 < headCeiling:
		if cues.CentroidHz > brightCentroid {
			return RegisterHead
		}
		return RegisterFalsetto
	case f0 < whistleFloor:
		return RegisterHead
	}
	return RegisterWhistle
}

// PassaggioTransition rates how smoothly a register transition is negotiated
type PassaggioTransition string

const (
	TransitionUnknown    PassaggioTransition = "unknown" // no formants to judge by
	TransitionSmooth     PassaggioTransition = "smooth"
	TransitionAcceptable PassaggioTransition = "acceptable"
	TransitionAbrupt     PassaggioTransition = "abrupt"
)

// Passaggio describes a pitch inside one or more voice types' transition
// ranges
type Passaggio struct {
	VoiceTypes []string            `json:"voice_types"` // ranges containing the pitch, high to low
	Smoothness float64             `json:"smoothness"`  // 0-1
	Transition PassaggioTransition `json:"transition"`
}

// passaggio ranges per voice type, in Hz
var passaggioRanges = []struct {
	voice     string
	low, high float64
}{
	{"soprano", 350, 450},
	{"mezzo", 330, 430},
	{"alto", 310, 410},
	{"tenor", 280, 350},
	{"baritone", 250, 320},
	{"bass", 200, 280},
}

// idealPassaggioRatio is the F1/F2 ratio of a balanced transition
const idealPassaggioRatio = 0.3

// DetectPassaggio reports whether f0 lies in a passaggio range and, given
// formants, how smooth the transition is: smoothness falls by 5 per unit of
// deviation of F1/F2 from 0.3. It returns nil outside every range.
func DetectPassaggio(f0, f1, f2 float64) *Passaggio {
	if f0 <= 0 {
		return nil
	}

	var voices []string
	for _, r := range passaggioRanges {
		if f0 >= r.low && f0 <= r.high {
			voices = append(voices, r.voice)
		}
	}
	if len(voices) == 0 {
		return nil
	}

	p := &Passaggio{VoiceTypes: voices, Transition: TransitionUnknown}
	if f1 <= 0 || f2 <= 0 {
		return p
	}

	deviation := f1/f2 - idealPassaggioRatio
	if deviation < 0 {
		deviation = -deviation
	}
	p.Smoothness = max(0, 1-5*deviation)
	switch {
	case p.Smoothness > 0.7:
		p.Transition = TransitionSmooth
	case p.Smoothness > 0.4:
		p.Transition = TransitionAcceptable
	default:
		p.Transition = TransitionAbrupt
	}
	return p
}
