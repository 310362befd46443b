package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/transcode"
)

// decodeAudio reads WAV natively and anything else through ffmpeg at
// sampleRate
func decodeAudio(ctx context.Context, path string, sampleRate int) (*transcode.AudioData, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		data, err := transcode.DecodeWAVFile(path)
		if err == nil {
			return data, nil
		}
		logging.Debug("Native wav decode failed, trying ffmpeg", logging.Fields{
			"file":  path,
			"error": err.Error(),
		})
	}

	dec := transcode.NewFFmpegDecoder(&transcode.FFmpegConfig{
		TargetSampleRate: sampleRate,
		FFmpegPath:       "ffmpeg",
		Timeout:          transcode.DefaultFFmpegConfig().Timeout,
	})
	if !dec.Available() {
		return nil, fmt.Errorf("%s: only wav is supported without ffmpeg", path)
	}
	return dec.DecodeFile(ctx, path)
}
