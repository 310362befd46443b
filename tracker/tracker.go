package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voz/algorithms/speech"
	"github.com/RyanBlaney/sonido-voz/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/config"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/stream"
)

// ErrAlreadyRunning is returned by a second call to Run
var ErrAlreadyRunning = errors.New("tracker already running")

// ErrNoAccuratePath is returned by CheckAccurate when the tracker has no
// accurate pitch estimator
var ErrNoAccuratePath = errors.New("no accurate pitch estimator configured")

// accurateHealthTimeout bounds the startup check of the accurate estimator
const accurateHealthTimeout = 2 * time.Second

// Stats are running counters of one tracker
type Stats struct {
	Frames         int64         `json:"frames"`
	ActiveFrames   int64         `json:"active_frames"`
	AccurateFrames int64         `json:"accurate_frames"`
	Fallbacks      int64         `json:"fallbacks"`
	Dropped        int64         `json:"dropped"`
	AverageLatency time.Duration `json:"average_latency"`
}

// Tracker is the real-time analysis pipeline for one audio stream.
//
// A capture callback pushes samples with OnSamples; Run consumes them one hop
// at a time. Each frame passes the voice activity gate, then the pitch path
// (dual-path estimate, smoothing, range adaptation) and, unless the tracker
// is pitch-only, formant, spectral and periodic voice quality analysis, which
// run concurrently on the same immutable frame. Results are merged by the
// Aggregator.
//
// All mutable analysis state (noise floor, smoothing history, profile)
// belongs to the tracker, so independent trackers never interact.
type Tracker struct {
	id     string
	cfg    *config.Config
	logger logging.Logger

	ring      *stream.RingBuffer
	extractor *stream.FrameExtractor

	vad      *temporal.VoiceActivityGate
	pitch    *DualPathEstimator
	smoother *tonal.PitchTrackSmoother
	vibrato  *tonal.VibratoAnalyzer
	adapter  *RangeAdapter
	formants *speech.FormantTracker
	quality  *speech.VoiceQualityAnalyzer
	features *spectral.SpectralFeatureExtractor

	aggregator *Aggregator

	// analysisMu serializes frame processing and calibration
	analysisMu    sync.Mutex
	nextPosition  int64
	sinceQuality  int
	latestQuality *speech.VoiceQualityMetrics

	frames       atomic.Int64
	activeFrames atomic.Int64

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithAccurateEstimator enables the accurate pitch path
func WithAccurateEstimator(est AccurateEstimator) Option {
	return func(t *Tracker) {
		t.pitch.accurate = est
	}
}

// WithStreams limits the output channels the tracker publishes to; see
// Aggregator.SetStreams
func WithStreams(s Stream) Option {
	return func(t *Tracker) {
		t.aggregator.SetStreams(s)
	}
}

// WithProfile starts the tracker with a user profile
func WithProfile(p *UserVoiceProfile) Option {
	return func(t *Tracker) {
		t.adapter.SetProfile(p)
	}
}

// New creates a tracker. When cfg.Pitch.AccurateURL is set a CrepeClient is
// used as the accurate path unless an option overrides it.
func New(cfg *config.Config, opts ...Option) (*Tracker, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	id := uuid.NewString()
	sr := cfg.SampleRate

	ring := stream.NewRingBuffer(cfg.RingCapacity())

	vad := temporal.NewVoiceActivityGate(cfg.VAD.EnergyThreshold, cfg.VAD.HangoverFrames)
	vad.SetCalibration(cfg.VAD.CalibrationChunkMs, cfg.VAD.NoiseFloorMultiplier)

	var accurate AccurateEstimator
	if cfg.Pitch.AccurateURL != "" {
		accurate = NewCrepeClient(cfg.Pitch.AccurateURL, cfg.Pitch.AccurateTimeout)
	}

	t := &Tracker{
		id:        id,
		cfg:       cfg,
		ring:      ring,
		extractor: stream.NewFrameExtractor(ring, sr),
		vad:       vad,
		pitch: NewDualPathEstimator(
			tonal.NewAutocorrelationEstimator(sr, cfg.Pitch.MinFrequency, cfg.Pitch.MaxFrequency),
			accurate,
			DualPathOptions{
				LatencyTarget: cfg.Pitch.LatencyTarget,
				BudgetRatio:   cfg.Pitch.AccurateBudgetRatio,
				Timeout:       cfg.Pitch.AccurateTimeout,
				LatencyWindow: cfg.Pitch.LatencyWindow,
			},
		),
		smoother: tonal.NewPitchTrackSmoother(tonal.SmootherParams{
			MedianWindow:             cfg.Pitch.MedianWindow,
			TransitionThreshold:      cfg.Pitch.TransitionThreshold,
			RejectionScale:           cfg.Pitch.RejectionConfidenceScale,
			MaxConsecutiveRejections: cfg.Pitch.MaxConsecutiveRejections,
			TrackLength:              cfg.Pitch.TrackLength,
		}),
		vibrato: tonal.NewVibratoAnalyzer(tonal.VibratoParams{
			FrameRate:     float64(sr) / float64(cfg.HopSize),
			WindowSeconds: cfg.Pitch.VibratoSeconds,
		}),
		adapter: NewRangeAdapter(nil),
		formants: speech.NewFormantTracker(sr, speech.FormantParams{
			LPCOrder:         cfg.Formant.LPCOrder,
			PreEmphasis:      cfg.Formant.PreEmphasis,
			MaxFormants:      cfg.Formant.MaxFormants,
			SmoothingFactor:  cfg.Formant.SmoothingFactor,
			MinFrequency:     cfg.Formant.MinFrequency,
			MaxFrequency:     cfg.Formant.MaxFrequency,
			MinBandwidth:     cfg.Formant.MinBandwidth,
			MaxBandwidth:     cfg.Formant.MaxBandwidth,
			MinPoleMagnitude: cfg.Formant.MinPoleMagnitude,
			MaxPoleMagnitude: cfg.Formant.MaxPoleMagnitude,
		}),
		quality: speech.NewVoiceQualityAnalyzer(sr, speech.VoiceQualityParams{
			WindowSize:       cfg.VoiceQuality.WindowSize,
			HopSize:          cfg.VoiceQuality.HopSize,
			MinF0:            cfg.VoiceQuality.MinF0,
			MaxF0:            cfg.VoiceQuality.MaxF0,
			VoicingThreshold: cfg.VoiceQuality.VoicingThreshold,
			MinBreakFrames:   cfg.VoiceQuality.MinBreakFrames,
		}),
		features: spectral.NewSpectralFeatureExtractor(spectral.FeatureParams{
			SampleRate:       sr,
			MFCCCoefficients: cfg.Spectral.MFCCCoefficients,
			MelFilters:       cfg.Spectral.MelFilters,
			RolloffThreshold: cfg.Spectral.RolloffThreshold,
			MinVocalHz:       cfg.Spectral.MinVocalHz,
			MaxVocalHz:       cfg.Spectral.MaxVocalHz,
		}),
		aggregator:   NewAggregator(cfg.Output.HistorySize, cfg.Output.BufferSize),
		nextPosition: int64(cfg.WindowSize),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		logger: logging.WithFields(logging.Fields{
			"component":  "tracker",
			"tracker_id": id,
		}),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.pitch.accurate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), accurateHealthTimeout)
		if err := t.CheckAccurate(ctx); err != nil {
			t.logger.Warn("Accurate pitch estimator unavailable, frames fall back to the fast path", logging.Fields{
				"error": err.Error(),
			})
		}
		cancel()
	}

	t.logger.Info("Tracker created", logging.Fields{
		"sample_rate":   sr,
		"window_size":   cfg.WindowSize,
		"hop_size":      cfg.HopSize,
		"pitch_only":    cfg.PitchOnly,
		"accurate_path": t.pitch.accurate != nil,
	})
	return t, nil
}

// CheckAccurate asks the accurate estimator whether its backend is up.
// Estimators without a health check are assumed healthy.
func (t *Tracker) CheckAccurate(ctx context.Context) error {
	if t.pitch.accurate == nil {
		return ErrNoAccuratePath
	}
	hc, ok := t.pitch.accurate.(HealthChecker)
	if !ok {
		return nil
	}
	return hc.Health(ctx)
}

// ID returns the tracker's unique identifier
func (t *Tracker) ID() string {
	return t.id
}

// OnSamples is the capture callback. It never blocks on analysis.
func (t *Tracker) OnSamples(samples []float32) {
	t.ring.Push(samples)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run consumes audio until ctx is done or Stop is called, then closes the
// output channels. Partial frames are not flushed.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer t.aggregator.Close()

	ticker := time.NewTicker(t.cfg.HopDuration())
	defer ticker.Stop()

	t.logger.Debug("Tracker loop started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Tracker loop stopped", logging.Fields{"reason": ctx.Err().Error()})
			return nil
		case <-t.stop:
			t.logger.Debug("Tracker loop stopped", logging.Fields{"reason": "stop"})
			return nil
		case <-t.wake:
		case <-ticker.C:
		}

		for t.Tick(ctx) {
			if ctx.Err() != nil {
				break
			}
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Tick analyzes the latest frame if a full hop of new audio has arrived since
// the previous one. It reports whether a frame was processed. When analysis
// falls behind, intermediate hops are skipped in favour of the newest audio.
func (t *Tracker) Tick(ctx context.Context) bool {
	t.analysisMu.Lock()
	defer t.analysisMu.Unlock()

	frame, ok := t.extractor.Extract(t.cfg.WindowSize)
	if !ok || frame.Position < t.nextPosition {
		return false
	}
	t.nextPosition = frame.Position + int64(t.cfg.HopSize)

	t.processFrame(ctx, frame)
	return true
}

// ProcessBuffer feeds a complete recording hop by hop and returns the
// measurement of every frame. It is the offline counterpart of
// OnSamples plus Run and must not be used while Run is active.
func (t *Tracker) ProcessBuffer(ctx context.Context, samples []float32) []AcousticMeasurement {
	var out []AcousticMeasurement
	hop := t.cfg.HopSize
	for start := 0; start < len(samples); start += hop {
		if ctx.Err() != nil {
			break
		}
		t.ring.Push(samples[start:min(start+hop, len(samples))])
		if t.Tick(ctx) {
			if m, ok := t.aggregator.Latest(); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func (t *Tracker) processFrame(ctx context.Context, frame stream.Frame) {
	start := time.Now()
	t.frames.Add(1)
	t.sinceQuality++

	state := t.vad.Process(frame.Samples)
	if !state.IsActive {
		t.vibrato.Reset()
		latency := time.Since(start)
		t.pitch.RecordLatency(latency)
		t.aggregator.Aggregate(FrameAnalysis{Timestamp: frame.Timestamp(), Latency: latency})
		t.aggregator.PublishPitch(PitchResult{
			Timestamp:  frame.Timestamp(),
			LatencySec: latency.Seconds(),
		})
		return
	}
	t.activeFrames.Add(1)

	analysis := FrameAnalysis{
		Timestamp: frame.Timestamp(),
		Active:    true,
		PitchOnly: t.cfg.PitchOnly,
	}

	var wg sync.WaitGroup
	if !t.cfg.PitchOnly {
		wg.Add(2)
		go func() {
			defer wg.Done()
			analysis.Formants = t.formants.Track(frame.Samples)
		}()
		go func() {
			defer wg.Done()
			analysis.Spectral = t.features.Extract(frame.Samples)
		}()

		if t.sinceQuality >= t.cfg.VoiceQuality.IntervalFrames || t.latestQuality == nil {
			if window, ok := t.qualityWindow(); ok {
				t.sinceQuality = 0
				wg.Add(1)
				go func() {
					defer wg.Done()
					m := t.quality.Analyze(window)
					t.latestQuality = &m
				}()
			}
		}
	}

	est, path := t.pitch.Estimate(ctx, frame)
	smoothed := t.smoother.Process(est)
	if vibrato := t.vibrato.Process(smoothed); vibrato.Type != tonal.VibratoNone {
		analysis.Vibrato = &vibrato
	}
	est = t.adapter.Adapt(smoothed)
	analysis.Pitch = est
	analysis.Path = path

	wg.Wait()
	analysis.VoiceQuality = t.latestQuality

	latency := time.Since(start)
	t.pitch.RecordLatency(latency)
	analysis.Latency = latency

	t.aggregator.Aggregate(analysis)

	result := PitchResult{
		Timestamp:   analysis.Timestamp,
		FrequencyHz: est.FrequencyHz,
		Confidence:  est.Confidence,
		IsVoiced:    est.Voiced(),
		LatencySec:  latency.Seconds(),
	}
	if note, ok := tonal.NoteFromFrequency(est.FrequencyHz); ok {
		result.Note = note.String()
		result.Cents = note.Cents
	}
	t.aggregator.PublishPitch(result)
}

// qualityWindow returns the last AnalysisSeconds of audio, or as much as is
// buffered once at least one contour frame fits
func (t *Tracker) qualityWindow() ([]float64, bool) {
	want := int(t.cfg.VoiceQuality.AnalysisSeconds * float64(t.cfg.SampleRate))
	have := t.ring.Len()
	window, _ := t.quality.FrameGeometry()
	n := min(want, have)
	if n < window {
		return nil, false
	}
	raw, ok := t.ring.Latest(n)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		out[i] = float64(s)
	}
	return out, true
}

// Measurements is the stream of merged measurements. It is closed when Run
// returns.
func (t *Tracker) Measurements() <-chan AcousticMeasurement {
	return t.aggregator.Measurements()
}

// PitchResults is the stream of per-frame pitch results. It is closed when
// Run returns.
func (t *Tracker) PitchResults() <-chan PitchResult {
	return t.aggregator.PitchResults()
}

// History returns the retained measurements, oldest first
func (t *Tracker) History() []AcousticMeasurement {
	return t.aggregator.History()
}

// CalibrateNoiseFloor sets the gate's noise floor from ambient audio recorded
// while the user is silent and returns it
func (t *Tracker) CalibrateNoiseFloor(ambient []float64) (float64, error) {
	t.analysisMu.Lock()
	defer t.analysisMu.Unlock()

	floor, err := t.vad.CalibrateNoiseFloor(ambient, t.cfg.SampleRate)
	if err != nil {
		return 0, err
	}
	t.logger.Info("Noise floor calibrated", logging.Fields{
		"noise_floor":    floor,
		"noise_floor_db": temporal.EnergyDB(floor, temporal.SilenceFloor),
	})
	return floor, nil
}

// SetNoiseFloor restores a stored calibration
func (t *Tracker) SetNoiseFloor(floor float64) {
	t.analysisMu.Lock()
	defer t.analysisMu.Unlock()
	t.vad.SetNoiseFloor(floor)
}

// NoiseFloor returns the gate's current noise floor
func (t *Tracker) NoiseFloor() float64 {
	t.analysisMu.Lock()
	defer t.analysisMu.Unlock()
	return t.vad.NoiseFloor()
}

// SetProfile installs a user profile; nil removes it
func (t *Tracker) SetProfile(p *UserVoiceProfile) {
	t.adapter.SetProfile(p)
	if p != nil {
		t.logger.Info("User profile installed", logging.Fields{
			"min_hz": p.MinFrequencyHz,
			"max_hz": p.MaxFrequencyHz,
		})
	}
}

// Profile returns the installed profile or nil
func (t *Tracker) Profile() *UserVoiceProfile {
	return t.adapter.Profile()
}

// Stats returns the tracker's counters
func (t *Tracker) Stats() Stats {
	return Stats{
		Frames:         t.frames.Load(),
		ActiveFrames:   t.activeFrames.Load(),
		AccurateFrames: t.pitch.AccurateFrames(),
		Fallbacks:      t.pitch.Fallbacks(),
		Dropped:        t.aggregator.Dropped(),
		AverageLatency: t.pitch.AverageLatency(),
	}
}
