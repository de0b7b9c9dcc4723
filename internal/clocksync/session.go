package clocksync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout is how long Sync waits for a pulse before giving up.
const DefaultTimeout = 10 * time.Second

var (
	ErrUnsupported = errors.New("MIDI clock input is not available")
	ErrNoClock     = errors.New("no MIDI clock received")
	ErrNotEnough   = errors.New("not enough clock pulses to resolve a tempo")
	ErrOutOfRange  = errors.New("clock tempo is outside 30-300 BPM")
)

// Pulse is one timing-clock tick stamped in milliseconds on a monotonic clock.
type Pulse struct {
	At float64
}

// PulseSource delivers clock pulses into a channel between Start and Stop.
// Sends must not block the source; a slow reader may lose pulses.
type PulseSource interface {
	Start(out chan<- Pulse) error
	Stop() error
}

// ProgressFunc observes the session: preview is the display BPM (0 until
// available) and pulses the count so far.
type ProgressFunc func(preview int, pulses int)

type syncConfig struct {
	timeout  time.Duration
	progress ProgressFunc
	buffer   int
}

type Option func(*syncConfig)

func WithTimeout(d time.Duration) Option {
	return func(c *syncConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *syncConfig) {
		c.progress = fn
	}
}

func WithBuffer(n int) Option {
	return func(c *syncConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Sync listens on src until a tempo resolves, no pulse arrives within the
// timeout, or ctx is done. The source is always stopped before returning.
func Sync(ctx context.Context, src PulseSource, opts ...Option) (Result, error) {
	if src == nil {
		return Result{}, ErrUnsupported
	}

	cfg := &syncConfig{
		timeout: DefaultTimeout,
		buffer:  MaxPulses * 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pulses := make(chan Pulse, cfg.buffer)
	if err := src.Start(pulses); err != nil {
		return Result{}, fmt.Errorf("starting clock source: %w", err)
	}
	defer src.Stop()

	est := NewEstimator()
	idle := time.NewTimer(cfg.timeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()

		case <-idle.C:
			return Result{Pulses: est.Count(), Ignored: est.Ignored()}, ErrNoClock

		case p := <-pulses:
			before := est.Count()
			res, done := est.Add(p.At)
			// Only accepted pulses count as a live clock.
			if est.Count() > before {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(cfg.timeout)
			}
			if cfg.progress != nil {
				preview, _ := est.Preview()
				cfg.progress(preview, est.Count())
			}
			if !done {
				continue
			}
			if !InRange(res.BPM) {
				return res, ErrOutOfRange
			}
			return res, nil
		}
	}
}

// Replay is a PulseSource that plays back fixed timestamps, used for
// estimating from recorded pulses.
type Replay struct {
	Pulses []float64
	stop   chan struct{}
}

func (r *Replay) Start(out chan<- Pulse) error {
	r.stop = make(chan struct{})
	go func(stop <-chan struct{}) {
		for _, at := range r.Pulses {
			select {
			case out <- Pulse{At: at}:
			case <-stop:
				return
			}
		}
	}(r.stop)
	return nil
}

func (r *Replay) Stop() error {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	return nil
}

// Estimate runs the estimator over recorded pulse timestamps without a
// timer. If the recording ends before a tempo resolves, the provisional
// result (if any) is returned with ErrNotEnough.
func Estimate(pulses []float64) (Result, error) {
	est := NewEstimator()
	for _, at := range pulses {
		res, done := est.Add(at)
		if !done {
			continue
		}
		if !InRange(res.BPM) {
			return res, ErrOutOfRange
		}
		return res, nil
	}
	if res, ok := est.Provisional(); ok {
		return res, ErrNotEnough
	}
	return Result{Pulses: est.Count(), Ignored: est.Ignored()}, ErrNotEnough
}
