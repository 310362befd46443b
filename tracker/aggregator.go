package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voz/algorithms/speech"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/logging"
)

// FrameAnalysis is everything computed for one frame before merging
type FrameAnalysis struct {
	Timestamp    time.Duration
	Active       bool // VAD decision
	PitchOnly    bool
	Pitch        tonal.PitchEstimate
	Path         PitchPath
	Vibrato      *tonal.VibratoMetrics
	Formants     speech.FormantSet
	VoiceQuality *speech.VoiceQualityMetrics // latest completed window, nil before the first
	Spectral     spectral.SpectralFeatures
	Latency      time.Duration
}

// Stream selects the output channels an Aggregator publishes to
type Stream uint8

const (
	StreamMeasurements Stream = 1 << iota
	StreamPitchResults

	StreamNone Stream = 0
	StreamAll         = StreamMeasurements | StreamPitchResults
)

// Aggregator merges per-frame analyses into AcousticMeasurements, keeps a
// bounded history and publishes measurements and pitch results on buffered
// channels. Publishing never blocks: when a consumer falls behind the record
// is dropped and counted. Streams nobody consumes can be switched off with
// SetStreams so that they neither fill up nor count drops.
type Aggregator struct {
	mu          sync.Mutex
	history     []AcousticMeasurement
	historySize int
	closed      bool
	streams     Stream

	measurements chan AcousticMeasurement
	pitches      chan PitchResult
	dropped      atomic.Int64

	logger logging.Logger
}

// NewAggregator creates an aggregator keeping historySize measurements with
// output channels of bufferSize
func NewAggregator(historySize, bufferSize int) *Aggregator {
	if historySize < 1 {
		historySize = 100
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Aggregator{
		history:      make([]AcousticMeasurement, 0, historySize),
		historySize:  historySize,
		streams:      StreamAll,
		measurements: make(chan AcousticMeasurement, bufferSize),
		pitches:      make(chan PitchResult, bufferSize),
		logger: logging.WithFields(logging.Fields{
			"component": "aggregator",
		}),
	}
}

// Merge builds the measurement for a frame without recording it
func Merge(in FrameAnalysis) AcousticMeasurement {
	m := AcousticMeasurement{
		ID:        uuid.NewString(),
		Timestamp: in.Timestamp,
		Latency:   in.Latency,
	}
	if !in.Active {
		return m
	}

	m.Voiced = in.Pitch.Voiced()
	m.PitchHz = in.Pitch.FrequencyHz
	m.PitchConfidence = in.Pitch.Confidence
	m.Path = in.Path
	if note, ok := tonal.NoteFromFrequency(in.Pitch.FrequencyHz); ok {
		m.Note = note.String()
		m.Cents = note.Cents
	}
	m.Formants = in.Formants
	m.VoiceQuality = in.VoiceQuality
	m.Spectral = in.Spectral
	m.Vibrato = in.Vibrato

	if m.Voiced {
		f1, f2 := in.Formants.F(1), in.Formants.F(2)
		m.Register = tonal.ClassifyRegister(tonal.RegisterCues{
			F0Hz:       m.PitchHz,
			F1Hz:       f1,
			F2Hz:       f2,
			CentroidHz: in.Spectral.SpectralCentroid,
		})
		m.Passaggio = tonal.DetectPassaggio(m.PitchHz, f1, f2)
	}

	if in.PitchOnly {
		m.Confidence = in.Pitch.Confidence
		return m
	}

	// mean over the components present; voice quality is absent until the
	// first window completes
	sum := in.Pitch.Confidence + in.Formants.Confidence + in.Spectral.Confidence
	n := 3.0
	if in.VoiceQuality != nil {
		sum += in.VoiceQuality.Confidence
		n++
	}
	m.Confidence = sum / n
	return m
}

// Aggregate merges, records and publishes one frame
func (a *Aggregator) Aggregate(in FrameAnalysis) AcousticMeasurement {
	m := Merge(in)

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) == a.historySize {
		copy(a.history, a.history[1:])
		a.history = a.history[:a.historySize-1]
	}
	a.history = append(a.history, m)

	if !a.closed && a.streams&StreamMeasurements != 0 {
		select {
		case a.measurements <- m:
		default:
			a.drop("measurement", m.Timestamp)
		}
	}
	return m
}

// PublishPitch publishes a pitch result
func (a *Aggregator) PublishPitch(r PitchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.streams&StreamPitchResults == 0 {
		return
	}
	select {
	case a.pitches <- r:
	default:
		a.drop("pitch", r.Timestamp)
	}
}

func (a *Aggregator) drop(kind string, ts time.Duration) {
	n := a.dropped.Add(1)
	a.logger.Debug("Output full, record dropped", logging.Fields{
		"kind":      kind,
		"timestamp": ts,
		"dropped":   n,
	})
}

// SetStreams selects the channels that are published to. Channels left out
// stay open but receive nothing until Close.
func (a *Aggregator) SetStreams(s Stream) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streams = s
}

// History returns a copy of the retained measurements, oldest first
func (a *Aggregator) History() []AcousticMeasurement {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AcousticMeasurement, len(a.history))
	copy(out, a.history)
	return out
}

// Latest returns the most recent measurement
func (a *Aggregator) Latest() (AcousticMeasurement, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) == 0 {
		return AcousticMeasurement{}, false
	}
	return a.history[len(a.history)-1], true
}

// Measurements is the measurement stream, closed by Close
func (a *Aggregator) Measurements() <-chan AcousticMeasurement {
	return a.measurements
}

// PitchResults is the pitch stream, closed by Close
func (a *Aggregator) PitchResults() <-chan PitchResult {
	return a.pitches
}

// Dropped returns how many records were discarded for slow consumers
func (a *Aggregator) Dropped() int64 {
	return a.dropped.Load()
}

// Close closes both output channels. Later frames are still recorded in the
// history but no longer published.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	close(a.measurements)
	close(a.pitches)
}
