package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/stream"
	"github.com/RyanBlaney/sonido-voz/transcode"
)

// DefaultCrepeURL is where the CREPE model server listens by default
const DefaultCrepeURL = "http://localhost:5002"

type crepeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate"`
}

type crepeResponse struct {
	Pitches     []float64 `json:"pitches"`
	Confidences []float64 `json:"confidences"`
	Timestamps  []float64 `json:"timestamps"`
	Model       string    `json:"model"`
	Error       string    `json:"error"`
}

type crepeHealth struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// CrepeClient is an AccurateEstimator backed by a CREPE HTTP server.
//
// Each frame is sent as base64 raw float32 little-endian PCM. The server
// returns a pitch track at its own step size; the frame's estimate is the
// median of the voiced pitches with their mean confidence.
type CrepeClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewCrepeClient creates a client for baseURL; an empty URL uses DefaultCrepeURL
func NewCrepeClient(baseURL string, timeout time.Duration) *CrepeClient {
	if baseURL == "" {
		baseURL = DefaultCrepeURL
	}
	return &CrepeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger: logging.WithFields(logging.Fields{
			"component": "crepe_client",
			"url":       baseURL,
		}),
	}
}

// Estimate implements AccurateEstimator
func (c *CrepeClient) Estimate(ctx context.Context, frame stream.Frame) (tonal.PitchEstimate, error) {
	pcm := make([]float32, len(frame.Samples))
	for i, s := range frame.Samples {
		pcm[i] = float32(s)
	}

	body, err := json.Marshal(crepeRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(transcode.EncodeFloat32LE(pcm)),
		SampleRate:  frame.SampleRate,
	})
	if err != nil {
		return tonal.PitchEstimate{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return tonal.PitchEstimate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tonal.PitchEstimate{}, fmt.Errorf("crepe request: %w", err)
	}
	defer resp.Body.Close()

	var result crepeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return tonal.PitchEstimate{}, fmt.Errorf("decode crepe response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return tonal.PitchEstimate{}, fmt.Errorf("crepe server returned %d: %s", resp.StatusCode, result.Error)
	}
	if len(result.Pitches) != len(result.Confidences) {
		return tonal.PitchEstimate{}, fmt.Errorf("crepe response has %d pitches and %d confidences",
			len(result.Pitches), len(result.Confidences))
	}

	est := summarizeTrack(result.Pitches, result.Confidences)
	est.Timestamp = frame.Timestamp()

	c.logger.Debug("Crepe estimate", logging.Fields{
		"frequency_hz": est.FrequencyHz,
		"confidence":   est.Confidence,
		"track_length": len(result.Pitches),
	})
	return est, nil
}

// summarizeTrack reduces a model pitch track to one estimate
func summarizeTrack(pitches, confidences []float64) tonal.PitchEstimate {
	var voiced, conf []float64
	for i, p := range pitches {
		if p > 0 {
			voiced = append(voiced, p)
			conf = append(conf, confidences[i])
		}
	}
	if len(voiced) == 0 {
		return tonal.PitchEstimate{}
	}
	return tonal.PitchEstimate{
		FrequencyHz: common.Median(voiced),
		Confidence:  common.Clamp(common.Mean(conf), 0, 1),
	}
}

// Health checks that the server is up and reports itself healthy
func (c *CrepeClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crepe health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crepe health returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var health crepeHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode crepe health: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("crepe server status %q", health.Status)
	}
	return nil
}
