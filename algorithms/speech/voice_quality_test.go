package speech

import (
	"math"
	"testing"
)

func tone(freq float64, sampleRate int, seconds float64) []float64 {
	out := make([]float64, int(seconds*float64(sampleRate)))
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestVoiceQualityPureTone(t *testing.T) {
	const sr = 16000
	vqa := NewVoiceQualityAnalyzer(sr, DefaultVoiceQualityParams())
	m := vqa.Analyze(tone(220, sr, 1))

	if m.VoicedFrames < 3 || m.VoicedFrames != m.TotalFrames {
		t.Fatalf("voiced %d of %d frames", m.VoicedFrames, m.TotalFrames)
	}
	if math.Abs(m.MeanF0-220) > 220*0.02 {
		t.Errorf("mean F0 = %g, want ~220", m.MeanF0)
	}
	if m.JitterPercent >= 1 {
		t.Errorf("jitter = %g%%, want < 1%%", m.JitterPercent)
	}
	if m.ShimmerPercent >= 1 {
		t.Errorf("shimmer = %g%%, want < 1%%", m.ShimmerPercent)
	}
	if m.HNRDb <= 10 {
		t.Errorf("HNR = %g dB, want > 10", m.HNRDb)
	}
	if m.Harmonicity <= 0.8 {
		t.Errorf("harmonicity = %g, want > 0.8", m.Harmonicity)
	}
	if len(m.VoiceBreaks) != 0 {
		t.Errorf("unexpected breaks %+v", m.VoiceBreaks)
	}
	if len(m.SubharmonicStrength) != 3 {
		t.Fatalf("subharmonics = %v, want 3 values", m.SubharmonicStrength)
	}
	for i, s := range m.SubharmonicStrength {
		if s > 0.01 {
			t.Errorf("subharmonic F0/%d = %g, want ~0", i+2, s)
		}
	}
	if m.Confidence != 1 {
		t.Errorf("confidence = %g, want 1", m.Confidence)
	}
}

func TestVoiceQualityDetectsBreak(t *testing.T) {
	const sr = 16000
	signal := tone(200, sr, 0.5)
	signal = append(signal, make([]float64, sr/5)...) // 200 ms gap
	signal = append(signal, tone(200, sr, 0.5)...)

	m := NewVoiceQualityAnalyzer(sr, DefaultVoiceQualityParams()).Analyze(signal)
	if len(m.VoiceBreaks) != 1 {
		t.Fatalf("breaks = %+v, want 1", m.VoiceBreaks)
	}
	b := m.VoiceBreaks[0]
	if b.DurationSec < 0.1 || b.DurationSec > 0.3 {
		t.Errorf("break duration = %gs, want ~0.2s", b.DurationSec)
	}
	if b.EndFrame-b.StartFrame < 3 {
		t.Errorf("break spans %d frames", b.EndFrame-b.StartFrame)
	}
	if m.Confidence >= 1 || m.Confidence <= 0 {
		t.Errorf("confidence = %g, want voiced ratio in (0,1)", m.Confidence)
	}
}

func TestVoiceQualityLeadingSilenceIsNotABreak(t *testing.T) {
	const sr = 16000
	signal := append(make([]float64, sr/4), tone(200, sr, 0.5)...)
	m := NewVoiceQualityAnalyzer(sr, DefaultVoiceQualityParams()).Analyze(signal)
	if len(m.VoiceBreaks) != 0 {
		t.Errorf("leading silence reported as break: %+v", m.VoiceBreaks)
	}
}

func TestVoiceQualityTooFewVoicedFrames(t *testing.T) {
	const sr = 16000
	m := NewVoiceQualityAnalyzer(sr, DefaultVoiceQualityParams()).Analyze(make([]float64, sr))
	if m.JitterPercent != 0 || m.ShimmerPercent != 0 || m.HNRDb != 0 || m.Harmonicity != 0 || m.Confidence != 0 {
		t.Errorf("silent metrics = %+v, want zeros", m)
	}
	if m.TotalFrames == 0 || m.VoicedFrames != 0 {
		t.Errorf("frames voiced %d of %d", m.VoicedFrames, m.TotalFrames)
	}
}

func TestVoiceQualityWidensWindowAtHighRates(t *testing.T) {
	vqa := NewVoiceQualityAnalyzer(48000, DefaultVoiceQualityParams())
	window, hop := vqa.FrameGeometry()
	if window != 1280 || hop != 640 {
		t.Errorf("geometry = %d/%d, want 1280/640", window, hop)
	}
}
