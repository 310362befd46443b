package tracker

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/stream"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.HopSize = cfg.WindowSize * 2
	if _, err := New(cfg); err == nil {
		t.Error("New accepted hop larger than window")
	}
}

func TestTrackerSilence(t *testing.T) {
	tr, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	out := tr.ProcessBuffer(context.Background(), make([]float32, testRate))
	if len(out) == 0 {
		t.Fatal("no measurements for one second of silence")
	}
	for i, m := range out {
		if m.Voiced || m.PitchHz != 0 || m.Confidence != 0 || m.Path != PathNone {
			t.Fatalf("measurement %d = %+v, want unvoiced zero-confidence", i, m)
		}
		if len(m.Formants.Formants) != 0 || m.VoiceQuality != nil {
			t.Fatalf("measurement %d ran analysis on silence", i)
		}
	}

	stats := tr.Stats()
	if stats.Frames != int64(len(out)) || stats.ActiveFrames != 0 {
		t.Errorf("Stats = %+v, want %d frames, 0 active", stats, len(out))
	}
}

func TestTrackerTone(t *testing.T) {
	tr, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	out := tr.ProcessBuffer(context.Background(), toFloat32(tone(220, 0.5, testRate)))
	if len(out) < 20 {
		t.Fatalf("got %d measurements, want ~28", len(out))
	}

	for i, m := range out {
		if !m.Voiced || m.Path != PathFast {
			t.Fatalf("measurement %d: voiced %v path %v", i, m.Voiced, m.Path)
		}
		if math.Abs(m.PitchHz-220) > 220*0.02 {
			t.Errorf("measurement %d pitch = %.2f Hz, want 220 ±2%%", i, m.PitchHz)
		}
		if m.Note != "A3" {
			t.Errorf("measurement %d note = %q, want A3", i, m.Note)
		}
		if m.Confidence <= 0 || m.Confidence > 1 {
			t.Errorf("measurement %d confidence = %.3f", i, m.Confidence)
		}
	}

	last := out[len(out)-1]
	if last.VoiceQuality == nil {
		t.Fatal("no voice quality after one second")
	}
	if last.VoiceQuality.Confidence < 0.9 || last.VoiceQuality.JitterPercent > 1 {
		t.Errorf("voice quality = %+v, want steady voicing", *last.VoiceQuality)
	}
	if math.Abs(last.Spectral.FundamentalHz-220) > 220*0.05 {
		t.Errorf("spectral fundamental = %.1f Hz", last.Spectral.FundamentalHz)
	}
	if len(last.Spectral.MFCC) != 13 {
		t.Errorf("MFCC length = %d, want 13", len(last.Spectral.MFCC))
	}
	if last.Vibrato == nil || last.Vibrato.Detected || last.Vibrato.Type != tonal.VibratoStraight {
		t.Errorf("vibrato = %+v, want a straight tone", last.Vibrato)
	}
	if last.Register == tonal.RegisterUnknown {
		t.Error("no register for a voiced frame")
	}
	if last.Passaggio == nil || !slices.Contains(last.Passaggio.VoiceTypes, "bass") {
		t.Errorf("passaggio = %+v, want the bass range", last.Passaggio)
	}

	if h := tr.History(); len(h) != len(out) || h[len(h)-1].ID != last.ID {
		t.Errorf("history does not end with the last measurement")
	}
}

func TestTrackerDetectsVibrato(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 1024
	cfg.HopSize = 256
	tr, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// 220 Hz modulated by ±80 cents at 5 Hz
	signal := make([]float32, 3*testRate)
	phase := 0.0
	for i := range signal {
		cents := 80 * math.Sin(2*math.Pi*5*float64(i)/testRate)
		phase += 2 * math.Pi * 220 * math.Pow(2, cents/1200) / testRate
		signal[i] = float32(0.5 * math.Sin(phase))
	}

	out := tr.ProcessBuffer(context.Background(), signal)
	if len(out) == 0 {
		t.Fatal("no measurements")
	}
	v := out[len(out)-1].Vibrato
	if v == nil || !v.Detected {
		t.Fatalf("vibrato = %+v, want detected", v)
	}
	if v.RateHz < 4 || v.RateHz > 6 {
		t.Errorf("vibrato rate = %.2f Hz, want ~5", v.RateHz)
	}
}

func TestTrackerWithoutStreamsCountsNoDrops(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BufferSize = 4
	signal := toFloat32(tone(220, 0.5, testRate))

	unread, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	unread.ProcessBuffer(context.Background(), signal)
	if unread.Stats().Dropped == 0 {
		t.Fatal("unconsumed channels did not drop")
	}

	offline, err := New(cfg, WithStreams(StreamNone))
	if err != nil {
		t.Fatal(err)
	}
	out := offline.ProcessBuffer(context.Background(), signal)
	if len(out) == 0 {
		t.Fatal("no measurements")
	}
	if got := offline.Stats().Dropped; got != 0 {
		t.Errorf("Dropped = %d with streams off, want 0", got)
	}
}

func TestTrackerPitchOnly(t *testing.T) {
	cfg := testConfig()
	cfg.PitchOnly = true
	tr, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	out := tr.ProcessBuffer(context.Background(), toFloat32(tone(330, 0.5, testRate/2)))
	if len(out) == 0 {
		t.Fatal("no measurements")
	}
	for _, m := range out {
		if len(m.Formants.Formants) != 0 || m.VoiceQuality != nil || m.Spectral.MFCC != nil {
			t.Fatalf("pitch-only tracker ran full analysis: %+v", m)
		}
		if m.Confidence != m.PitchConfidence {
			t.Errorf("confidence %.3f != pitch confidence %.3f", m.Confidence, m.PitchConfidence)
		}
	}
}

func TestTrackerNoiseFloorGatesQuietSignal(t *testing.T) {
	tr, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	// ambient hum louder than the quiet tone that follows
	floor, err := tr.CalibrateNoiseFloor(tone(60, 0.1, testRate))
	if err != nil {
		t.Fatalf("CalibrateNoiseFloor: %v", err)
	}
	again, _ := tr.CalibrateNoiseFloor(tone(60, 0.1, testRate))
	if floor != again || tr.NoiseFloor() != floor {
		t.Errorf("calibration not deterministic: %g vs %g", floor, again)
	}

	out := tr.ProcessBuffer(context.Background(), toFloat32(tone(220, 0.05, testRate/2)))
	for i, m := range out {
		if m.Voiced {
			t.Fatalf("measurement %d voiced below the noise floor", i)
		}
	}
}

func TestTrackerProfileFoldsOctave(t *testing.T) {
	tr, err := New(testConfig(), WithProfile(&UserVoiceProfile{
		MinFrequencyHz:       150,
		MaxFrequencyHz:       300,
		AverageFrequencyHz:   220,
		ConfidenceMultiplier: 1,
	}))
	if err != nil {
		t.Fatal(err)
	}

	out := tr.ProcessBuffer(context.Background(), toFloat32(tone(110, 0.5, testRate/2)))
	if len(out) == 0 {
		t.Fatal("no measurements")
	}
	last := out[len(out)-1]
	if math.Abs(last.PitchHz-220) > 220*0.02 {
		t.Errorf("adapted pitch = %.2f Hz, want 220", last.PitchHz)
	}
}

func TestTrackerAccurateFallback(t *testing.T) {
	acc := &fakeAccurate{fn: func(context.Context, stream.Frame) (tonal.PitchEstimate, error) {
		return tonal.PitchEstimate{}, errors.New("offline")
	}}
	tr, err := New(testConfig(), WithAccurateEstimator(acc))
	if err != nil {
		t.Fatal(err)
	}

	out := tr.ProcessBuffer(context.Background(), toFloat32(tone(220, 0.5, testRate/2)))
	for i, m := range out {
		if m.Path != PathFast || math.Abs(m.PitchHz-220) > 220*0.02 {
			t.Fatalf("measurement %d = %.2f Hz via %v", i, m.PitchHz, m.Path)
		}
	}
	if s := tr.Stats(); s.Fallbacks == 0 || s.AccurateFrames != 0 {
		t.Errorf("Stats = %+v, want fallbacks and no accurate frames", s)
	}
}

func TestTrackerRunStop(t *testing.T) {
	tr, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- tr.Run(ctx) }()

	got := make(chan int, 1)
	go func() {
		n := 0
		for m := range tr.Measurements() {
			if m.Voiced {
				n++
			}
		}
		got <- n
	}()

	signal := toFloat32(tone(220, 0.5, testRate))
	for start := 0; start < len(signal); start += 512 {
		tr.OnSamples(signal[start : start+512])
		time.Sleep(time.Millisecond)
	}

	deadline := time.After(5 * time.Second)
	for tr.Stats().ActiveFrames == 0 {
		select {
		case <-deadline:
			t.Fatal("no frame analyzed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	tr.Stop()
	tr.Stop()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	select {
	case n := <-got:
		if n == 0 {
			t.Error("no voiced measurements streamed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("measurement channel not closed")
	}

	if err := tr.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestTrackersAreIndependent(t *testing.T) {
	a, _ := New(testConfig())
	b, _ := New(testConfig())

	if _, err := a.CalibrateNoiseFloor(tone(60, 0.2, testRate)); err != nil {
		t.Fatal(err)
	}
	if b.NoiseFloor() != 0 {
		t.Errorf("calibrating one tracker changed another: %g", b.NoiseFloor())
	}
	if a.ID() == b.ID() {
		t.Error("trackers share an ID")
	}
}
