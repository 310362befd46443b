package transcode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeFloat32LE interprets raw bytes as little-endian IEEE-754 float32
// samples. This is the websocket and ffmpeg wire format.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeFloat32LE is the inverse of DecodeFloat32LE
func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
