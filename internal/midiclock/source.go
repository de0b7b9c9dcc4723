// Package midiclock feeds MIDI timing-clock messages from an input port into
// clocksync as pulses.
package midiclock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/pkg/logger"
)

var ErrPortNotFound = errors.New("MIDI input port not found")

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Source listens to one MIDI input port and forwards timing-clock ticks
// (0xF8) as pulses. Everything else on the port is ignored.
type Source struct {
	port string
	log  Logger

	mu      sync.Mutex
	in      drivers.In
	stop    func()
	out     chan<- clocksync.Pulse
	start   time.Time
	dropped int
}

type Option func(*Source)

// WithPort selects an input port by name. Without it the first port is used.
func WithPort(name string) Option {
	return func(s *Source) {
		s.port = name
	}
}

func WithLogger(l Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSource(opts ...Option) *Source {
	s := &Source{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ports lists the names of the available MIDI inputs.
func Ports() ([]string, error) {
	drv := drivers.Get()
	if drv == nil {
		return nil, clocksync.ErrUnsupported
	}
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("listing MIDI inputs: %w", err)
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

func (s *Source) findPort() (drivers.In, error) {
	drv := drivers.Get()
	if drv == nil {
		return nil, clocksync.ErrUnsupported
	}
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", clocksync.ErrUnsupported, err)
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: no MIDI inputs", clocksync.ErrUnsupported)
	}
	if s.port == "" {
		return ins[0], nil
	}
	for _, in := range ins {
		if in.String() == s.port {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %w %q", clocksync.ErrUnsupported, ErrPortNotFound, s.port)
}

// Start opens the port and begins forwarding pulses to out.
func (s *Source) Start(out chan<- clocksync.Pulse) error {
	in, err := s.findPort()
	if err != nil {
		return err
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input %q: %w", in.String(), err)
	}

	s.mu.Lock()
	s.in = in
	s.out = out
	s.start = time.Now()
	s.dropped = 0
	s.mu.Unlock()

	// Timing clock is only delivered with time code enabled.
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		s.handle(msg)
	}, midi.UseTimeCode(), midi.HandleError(func(listenErr error) {
		s.log.Warnf("MIDI listener error on %s: %v", in.String(), listenErr)
	}))
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listening on MIDI input %q: %w", in.String(), err)
	}

	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	s.log.Debugf("Listening for MIDI clock on %s", in.String())
	return nil
}

// handle stamps a timing-clock message and forwards it without blocking.
func (s *Source) handle(msg midi.Message) {
	if !msg.Is(midi.TimingClockMsg) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	p := clocksync.Pulse{At: float64(time.Since(s.start)) / float64(time.Millisecond)}
	select {
	case s.out <- p:
	default:
		s.dropped++
	}
}

// Stop ends the listener and closes the port.
func (s *Source) Stop() error {
	s.mu.Lock()
	stop, in, dropped := s.stop, s.in, s.dropped
	s.stop, s.in, s.out = nil, nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if dropped > 0 {
		s.log.Warnf("Dropped %d MIDI clock pulses", dropped)
	}
	if in == nil {
		return nil
	}
	return in.Close()
}

// Dropped reports pulses lost because the receiver was full.
func (s *Source) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
