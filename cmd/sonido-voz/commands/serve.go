package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/config"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/tracker"
	"github.com/RyanBlaney/sonido-voz/transcode"
)

var (
	flagServeAddr        string
	flagServeFormat      string
	flagServeCalibration string
	flagServePitchOnly   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Analyze live audio streamed over a websocket",
	Long: `Serve a websocket endpoint at /ws. Each connection gets its own tracker.

Clients send binary messages of mono float32 little-endian samples at the
configured sample rate and receive one message per analyzed frame: text JSON,
or binary msgpack with --format msgpack. GET /health reports liveness.

Example:
  sonido-voz serve --addr :8080 --calibration calibration.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVarP(&flagServeFormat, "format", "f", "json", "Output format (json, msgpack)")
	serveCmd.Flags().StringVar(&flagServeCalibration, "calibration", "", "Calibration file from 'calibrate'")
	serveCmd.Flags().BoolVar(&flagServePitchOnly, "pitch-only", false, "Send pitch results only")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, err := tracker.ParseFormat(flagServeFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var calib *calibration
	if flagServeCalibration != "" {
		if calib, err = loadCalibration(flagServeCalibration); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    flagServeAddr,
		Handler: newStreamServer(ctx, cfg, format, calib, flagServePitchOnly),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Listening", logging.Fields{"addr": flagServeAddr, "format": format})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("Server stopped")
	return nil
}

// streamServer owns one tracker per websocket connection
type streamServer struct {
	ctx       context.Context
	cfg       *config.Config
	format    tracker.Format
	calib     *calibration
	pitchOnly bool
	upgrader  websocket.Upgrader
	logger    logging.Logger
}

func newStreamServer(ctx context.Context, cfg *config.Config, format tracker.Format, calib *calibration, pitchOnly bool) http.Handler {
	s := &streamServer{
		ctx:       ctx,
		cfg:       cfg,
		format:    format,
		calib:     calib,
		pitchOnly: pitchOnly,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.WithFields(logging.Fields{"component": "stream_server"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *streamServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "healthy",
		"sample_rate": s.cfg.SampleRate,
		"format":      s.format,
	})
}

func (s *streamServer) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", logging.Fields{"error": err.Error()})
		return
	}
	defer ws.Close()

	cfg := *s.cfg
	if s.pitchOnly {
		cfg.PitchOnly = true
	}
	streams := tracker.StreamMeasurements
	if s.pitchOnly {
		streams = tracker.StreamPitchResults
	}
	t, err := tracker.New(&cfg, tracker.WithStreams(streams))
	if err != nil {
		s.logger.Error(err, "Failed to create tracker")
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "tracker unavailable"))
		return
	}
	s.calib.apply(t)

	logger := s.logger.WithFields(logging.Fields{
		"tracker_id": t.ID(),
		"remote":     r.RemoteAddr,
	})
	logger.Info("Stream connected")

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.Run(ctx)
		// unblock readLoop when the server shuts down first
		ws.SetReadDeadline(time.Now())
	}()
	go func() {
		defer wg.Done()
		s.writeLoop(ws, t, logger)
	}()

	s.readLoop(ws, t, logger)
	t.Stop()
	wg.Wait()

	stats := t.Stats()
	logger.Info("Stream disconnected", logging.Fields{
		"frames":  stats.Frames,
		"dropped": stats.Dropped,
	})
}

// readLoop feeds binary PCM messages to the tracker until the client goes away
func (s *streamServer) readLoop(ws *websocket.Conn, t *tracker.Tracker, logger logging.Logger) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Read ended", logging.Fields{"error": err.Error()})
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		samples, err := transcode.DecodeFloat32LE(data)
		if err != nil {
			logger.Warn("Dropping malformed audio message", logging.Fields{"error": err.Error()})
			continue
		}
		t.OnSamples(samples)
	}
}

// writeLoop forwards tracker output until the tracker closes its channels
func (s *streamServer) writeLoop(ws *websocket.Conn, t *tracker.Tracker, logger logging.Logger) {
	messageType := websocket.TextMessage
	if s.format == tracker.FormatMsgpack {
		messageType = websocket.BinaryMessage
	}

	send := func(v any) bool {
		data, err := tracker.Marshal(v, s.format)
		if err != nil {
			logger.Error(err, "Failed to encode record")
			return true
		}
		if err := ws.WriteMessage(messageType, data); err != nil {
			logger.Debug("Write ended", logging.Fields{"error": err.Error()})
			return false
		}
		return true
	}

	if s.pitchOnly {
		for r := range t.PitchResults() {
			if !send(r) {
				return
			}
		}
		return
	}

	for m := range t.Measurements() {
		if !send(m) {
			return
		}
	}
}
