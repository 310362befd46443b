package transcode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-voz/logging"
)

// DecodeWAVFile reads a PCM WAV file and downmixes it to mono
func DecodeWAVFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	data.Source = filename
	return data, nil
}

// DecodeWAV reads PCM WAV from r. Samples are scaled to [-1, 1] by the
// source bit depth and channels are averaged.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeWAV",
	})

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels < 1 {
		return nil, fmt.Errorf("wav declares %d channels", channels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	pcm := downmix(buf, channels, bitDepth)
	sampleRate := int(dec.SampleRate)

	logger.Debug("Decoded wav", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"samples":     len(pcm),
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   durationOf(len(pcm), sampleRate),
	}, nil
}

func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	scale := math.Pow(2, float64(bitDepth-1))
	// 8-bit wav is unsigned
	offset := 0.0
	if bitDepth == 8 {
		offset = scale
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(s * 32767))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}
