// sonido-voz analyzes the human voice in real time: pitch with note names,
// formants, voice quality and spectral features.
//
// Usage:
//
//	sonido-voz analyze take.wav --format json
//	sonido-voz calibrate room.wav --voice scale.wav -o calibration.yaml
//	sonido-voz serve --addr :8080 --calibration calibration.yaml
package main

import (
	"os"

	"github.com/RyanBlaney/sonido-voz/cmd/sonido-voz/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
