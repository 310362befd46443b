package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/stream"
)

// DefaultAccurateBudgetRatio is the share of the latency target the rolling
// average must stay under before the accurate path is used
const DefaultAccurateBudgetRatio = 0.8

// ErrAccurateTimeout is reported when the accurate estimator misses its deadline
var ErrAccurateTimeout = errors.New("accurate estimator timed out")

// AccurateEstimator is a high-accuracy, higher-latency pitch source such as a
// neural model server. Implementations must be safe for concurrent use.
type AccurateEstimator interface {
	Estimate(ctx context.Context, frame stream.Frame) (tonal.PitchEstimate, error)
}

// HealthChecker is implemented by accurate estimators that can report
// whether their backend is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SelectPath chooses the accurate path only when one is available and the
// rolling average latency is below 80% of the target
func SelectPath(avgLatency, target time.Duration, available bool) PitchPath {
	return SelectPathWithBudget(avgLatency, target, DefaultAccurateBudgetRatio, available)
}

// SelectPathWithBudget is SelectPath with an explicit budget ratio
func SelectPathWithBudget(avgLatency, target time.Duration, ratio float64, available bool) PitchPath {
	if !available || target <= 0 {
		return PathFast
	}
	if float64(avgLatency) < ratio*float64(target) {
		return PathAccurate
	}
	return PathFast
}

// LatencyMonitor keeps a rolling window of per-frame processing times
type LatencyMonitor struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

// NewLatencyMonitor creates a monitor averaging the last window samples
func NewLatencyMonitor(window int) *LatencyMonitor {
	if window < 1 {
		window = 1
	}
	return &LatencyMonitor{samples: make([]time.Duration, window)}
}

// Record adds one observation, evicting the oldest
func (m *LatencyMonitor) Record(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sum += d - m.samples[m.next]
	m.samples[m.next] = d
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.full = true
	}
}

// Average returns the mean of the recorded window, 0 when empty
func (m *LatencyMonitor) Average() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.full {
		n = len(m.samples)
	}
	if n == 0 {
		return 0
	}
	return m.sum / time.Duration(n)
}

// DualPathOptions configures a DualPathEstimator
type DualPathOptions struct {
	LatencyTarget time.Duration
	BudgetRatio   float64
	Timeout       time.Duration // bounded wait for the accurate path
	LatencyWindow int
}

// DualPathEstimator dispatches each frame to the fast autocorrelation path or
// to an AccurateEstimator, depending on recent latency. Any accurate failure
// (error, timeout, cancellation) is replaced by the fast estimate of the same
// frame.
type DualPathEstimator struct {
	fast     *tonal.AutocorrelationEstimator
	accurate AccurateEstimator
	latency  *LatencyMonitor
	opts     DualPathOptions

	accurateFrames atomic.Int64
	fallbacks      atomic.Int64

	logger logging.Logger
}

// NewDualPathEstimator creates a dispatcher; accurate may be nil
func NewDualPathEstimator(fast *tonal.AutocorrelationEstimator, accurate AccurateEstimator, opts DualPathOptions) *DualPathEstimator {
	if opts.BudgetRatio <= 0 {
		opts.BudgetRatio = DefaultAccurateBudgetRatio
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 40 * time.Millisecond
	}
	return &DualPathEstimator{
		fast:     fast,
		accurate: accurate,
		latency:  NewLatencyMonitor(opts.LatencyWindow),
		opts:     opts,
		logger: logging.WithFields(logging.Fields{
			"component": "dual_path_estimator",
		}),
	}
}

// Estimate returns the pitch of frame and the path that produced it
func (d *DualPathEstimator) Estimate(ctx context.Context, frame stream.Frame) (tonal.PitchEstimate, PitchPath) {
	path := SelectPathWithBudget(d.latency.Average(), d.opts.LatencyTarget, d.opts.BudgetRatio, d.accurate != nil)

	if path == PathAccurate {
		est, err := d.estimateAccurate(ctx, frame)
		if err == nil {
			d.accurateFrames.Add(1)
			est.Timestamp = frame.Timestamp()
			return est, PathAccurate
		}
		d.fallbacks.Add(1)
		d.logger.Debug("Accurate path failed, using fast path", logging.Fields{
			"error":    err.Error(),
			"position": frame.Position,
		})
	}

	est := d.fast.Estimate(frame.Samples)
	est.Timestamp = frame.Timestamp()
	return est, PathFast
}

// estimateAccurate runs the accurate estimator with a bounded wait. The call
// runs in its own goroutine so an implementation that ignores ctx cannot
// stall the frame loop; its late result is discarded.
func (d *DualPathEstimator) estimateAccurate(ctx context.Context, frame stream.Frame) (tonal.PitchEstimate, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	type result struct {
		est tonal.PitchEstimate
		err error
	}
	done := make(chan result, 1)
	go func() {
		est, err := d.accurate.Estimate(ctx, frame)
		done <- result{est, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return tonal.PitchEstimate{}, fmt.Errorf("accurate estimate: %w", r.err)
		}
		return r.est, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tonal.PitchEstimate{}, ErrAccurateTimeout
		}
		return tonal.PitchEstimate{}, ctx.Err()
	}
}

// RecordLatency feeds the processing time of a whole frame into path selection
func (d *DualPathEstimator) RecordLatency(elapsed time.Duration) {
	d.latency.Record(elapsed)
}

// AverageLatency returns the rolling average frame latency
func (d *DualPathEstimator) AverageLatency() time.Duration {
	return d.latency.Average()
}

// AccurateFrames is the number of frames served by the accurate path
func (d *DualPathEstimator) AccurateFrames() int64 {
	return d.accurateFrames.Load()
}

// Fallbacks is the number of accurate attempts replaced by the fast path
func (d *DualPathEstimator) Fallbacks() int64 {
	return d.fallbacks.Load()
}
