package tracker

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/speech"
)

func sampleMeasurement() AcousticMeasurement {
	return AcousticMeasurement{
		ID:              "m-1",
		Timestamp:       1500 * time.Millisecond,
		Voiced:          true,
		PitchHz:         220,
		PitchConfidence: 0.9,
		Note:            "A3",
		Path:            PathAccurate,
		Formants: speech.FormantSet{
			Formants:   []speech.Formant{{FrequencyHz: 700, BandwidthHz: 80, Amplitude: 3}},
			Confidence: 1,
			Vowel:      speech.VowelAOpen,
		},
		Confidence: 0.8,
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := NewEncoder(&buf, format)
			if err != nil {
				t.Fatal(err)
			}
			in := sampleMeasurement()
			if err := enc.Encode(in); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if err := enc.Encode(PitchResult{FrequencyHz: 330, IsVoiced: true}); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			dec, err := NewDecoder(&buf, format)
			if err != nil {
				t.Fatal(err)
			}
			var out AcousticMeasurement
			if err := dec.Decode(&out); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.ID != in.ID || out.Timestamp != in.Timestamp || out.Path != PathAccurate {
				t.Errorf("decoded %+v", out)
			}
			if len(out.Formants.Formants) != 1 || out.Formants.Vowel != speech.VowelAOpen {
				t.Errorf("decoded formants %+v", out.Formants)
			}

			var pr PitchResult
			if err := dec.Decode(&pr); err != nil {
				t.Fatalf("Decode pitch: %v", err)
			}
			if pr.FrequencyHz != 330 || !pr.IsVoiced {
				t.Errorf("decoded pitch %+v", pr)
			}
		})
	}
}

func TestJSONPathByName(t *testing.T) {
	data, err := Marshal(sampleMeasurement(), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"path":"accurate"`) {
		t.Errorf("path not encoded by name: %s", data)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "json": FormatJSON, "jsonl": FormatJSON, "msgpack": FormatMsgpack}
	for in, want := range tests {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}
