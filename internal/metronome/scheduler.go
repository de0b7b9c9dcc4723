package metronome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/quadracalc/internal/tempo"
)

const DefaultBeatsPerBar = 4

var (
	ErrInvalidBPM    = errors.New("bpm out of range")
	ErrRunning       = errors.New("metronome already running")
	ErrInvalidLength = errors.New("invalid length")
	ErrMismatch      = errors.New("click track does not match")
)

// Beat is one tick of the metronome. InBar counts from 1; the first beat of
// every bar is accented.
type Beat struct {
	Index  int
	Bar    int
	InBar  int
	Accent bool
	At     time.Time
}

// Interval returns the length of one beat at bpm.
func Interval(bpm int) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) / float64(bpm))
}

func checkBPM(bpm int) error {
	if bpm < tempo.MinBPM || bpm > tempo.MaxBPM {
		return fmt.Errorf("%w: %d", ErrInvalidBPM, bpm)
	}
	return nil
}

// Scheduler emits beats at a fixed interval until its context is cancelled
// or Stop is called. The tempo can change while it runs; the next beat is
// scheduled one new interval after the change.
type Scheduler struct {
	mu          sync.Mutex
	bpm         int
	beatsPerBar int
	running     bool
	retempo     chan time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(bpm, beatsPerBar int) (*Scheduler, error) {
	if err := checkBPM(bpm); err != nil {
		return nil, err
	}
	if beatsPerBar <= 0 {
		beatsPerBar = DefaultBeatsPerBar
	}
	return &Scheduler{bpm: bpm, beatsPerBar: beatsPerBar}, nil
}

func (s *Scheduler) BPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins ticking. The first beat is emitted immediately. The returned
// channel is closed when the scheduler stops. Beats are dropped rather than
// queued when the receiver falls behind.
func (s *Scheduler) Start(ctx context.Context) (<-chan Beat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	beats := make(chan Beat, 1)
	s.running = true
	s.cancel = cancel
	s.retempo = make(chan time.Duration, 1)
	s.done = make(chan struct{})

	go s.loop(ctx, beats, Interval(s.bpm), s.retempo, s.done)
	return beats, nil
}

// SetBPM changes the tempo, taking effect from the next beat when running.
func (s *Scheduler) SetBPM(bpm int) error {
	if err := checkBPM(bpm); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpm = bpm
	if !s.running {
		return nil
	}
	// Only the newest tempo matters.
	select {
	case <-s.retempo:
	default:
	}
	s.retempo <- Interval(bpm)
	return nil
}

// Stop halts the scheduler and waits for its goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, out chan<- Beat, interval time.Duration, retempo <-chan time.Duration, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(out)
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	index := 0
	emit := func(at time.Time) {
		b := Beat{
			Index:  index,
			Bar:    index/s.beatsPerBar + 1,
			InBar:  index%s.beatsPerBar + 1,
			Accent: index%s.beatsPerBar == 0,
			At:     at,
		}
		index++
		select {
		case out <- b:
		default:
		}
	}

	emit(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-retempo:
			ticker.Reset(d)
		case at := <-ticker.C:
			emit(at)
		}
	}
}
