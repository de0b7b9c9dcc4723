package clocksync

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// pulsesAt returns n timestamps spaced for the given tempo, starting at start.
func pulsesAt(bpm float64, n int, start float64) []float64 {
	interval := 60000 / (bpm * PPQN)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*interval
	}
	return out
}

func TestEstimatorResolvesWhenStable(t *testing.T) {
	est := NewEstimator()
	var (
		res  Result
		done bool
	)
	for i, at := range pulsesAt(120, 200, 0) {
		res, done = est.Add(at)
		if done {
			if i+1 != StablePulses {
				t.Errorf("Expected to resolve at %d pulses, resolved at %d", StablePulses, i+1)
			}
			break
		}
	}
	if !done {
		t.Fatal("Estimator never resolved")
	}
	if res.BPM != 120 || !res.Stable {
		t.Errorf("Expected stable 120 BPM, got %+v", res)
	}
	if math.Abs(res.Exact-120) > 1e-6 {
		t.Errorf("Expected exact 120, got %f", res.Exact)
	}
}

func TestEstimatorNeverResolvesBelowMinimum(t *testing.T) {
	est := NewEstimator()
	for i, at := range pulsesAt(100, MinPulses-1, 0) {
		if _, done := est.Add(at); done {
			t.Fatalf("Resolved after only %d pulses", i+1)
		}
	}
	if _, ok := est.Provisional(); ok {
		t.Error("Expected no provisional estimate below 48 pulses")
	}
	if preview, ok := est.Preview(); !ok || preview != 100 {
		t.Errorf("Expected preview 100, got %d (ok=%v)", preview, ok)
	}
}

func TestEstimatorHardCapWhenDrifting(t *testing.T) {
	// 40 pulses at 120 BPM, then the tempo jumps to 125 BPM.
	slow := pulsesAt(120, 40, 0)
	fast := pulsesAt(125, 100, slow[len(slow)-1]+60000/(125.0*PPQN))
	all := append(slow, fast...)

	est := NewEstimator()
	for i, at := range all {
		res, done := est.Add(at)
		if !done {
			continue
		}
		if i+1 != MaxPulses {
			t.Errorf("Expected hard cap at %d pulses, resolved at %d", MaxPulses, i+1)
		}
		if res.Stable {
			t.Error("Expected drifting clock to resolve unstable")
		}
		if res.BPM < 120 || res.BPM > 125 {
			t.Errorf("Expected BPM between 120 and 125, got %d", res.BPM)
		}
		return
	}
	t.Fatal("Estimator never resolved")
}

func TestEstimatorIgnoresMalformedPulses(t *testing.T) {
	est := NewEstimator()
	est.Add(10)
	est.Add(math.NaN())
	est.Add(-5)
	est.Add(10)
	est.Add(math.Inf(1))
	est.Add(5)

	if est.Count() != 1 {
		t.Errorf("Expected 1 accepted pulse, got %d", est.Count())
	}
	if est.Ignored() != 5 {
		t.Errorf("Expected 5 ignored pulses, got %d", est.Ignored())
	}

	est.Reset()
	if est.Count() != 0 || est.Ignored() != 0 {
		t.Errorf("Expected reset estimator, got %d/%d", est.Count(), est.Ignored())
	}
}

func TestEstimateRecorded(t *testing.T) {
	res, err := Estimate(pulsesAt(90, 150, 1000))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if res.BPM != 90 {
		t.Errorf("Expected 90 BPM, got %d", res.BPM)
	}

	res, err = Estimate(pulsesAt(90, 60, 0))
	if !errors.Is(err, ErrNotEnough) {
		t.Fatalf("Expected ErrNotEnough, got %v", err)
	}
	if res.BPM != 90 {
		t.Errorf("Expected provisional 90 BPM, got %d", res.BPM)
	}

	if _, err := Estimate(pulsesAt(400, 100, 0)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
}

type silentSource struct {
	started, stopped bool
}

func (s *silentSource) Start(chan<- Pulse) error { s.started = true; return nil }
func (s *silentSource) Stop() error              { s.stopped = true; return nil }

func TestSyncNilSourceUnsupported(t *testing.T) {
	if _, err := Sync(context.Background(), nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestSyncTimesOutWithoutPulses(t *testing.T) {
	src := &silentSource{}
	_, err := Sync(context.Background(), src, WithTimeout(20*time.Millisecond))
	if !errors.Is(err, ErrNoClock) {
		t.Fatalf("Expected ErrNoClock, got %v", err)
	}
	if !src.started || !src.stopped {
		t.Errorf("Expected source to be started and stopped, got %+v", src)
	}
}

// repeatingSource sends the same timestamp until stopped.
type repeatingSource struct {
	at   float64
	done chan struct{}
}

func (s *repeatingSource) Start(out chan<- Pulse) error {
	s.done = make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				select {
				case out <- Pulse{At: s.at}:
				default:
				}
			}
		}
	}()
	return nil
}

func (s *repeatingSource) Stop() error {
	close(s.done)
	return nil
}

func TestSyncTimesOutOnRejectedPulses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := Sync(ctx, &repeatingSource{at: 0}, WithTimeout(50*time.Millisecond))
	if !errors.Is(err, ErrNoClock) {
		t.Fatalf("Expected ErrNoClock, got %v", err)
	}
	if res.Pulses != 1 {
		t.Errorf("Expected 1 accepted pulse, got %d", res.Pulses)
	}
	if res.Ignored == 0 {
		t.Error("Expected repeated pulses to be counted as ignored")
	}
}

func TestSyncHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sync(ctx, &silentSource{}, WithTimeout(time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSyncReplay(t *testing.T) {
	var lastPulses int
	src := &Replay{Pulses: pulsesAt(128, 120, 0)}

	res, err := Sync(context.Background(), src,
		WithTimeout(time.Second),
		WithProgress(func(preview, pulses int) { lastPulses = pulses }),
	)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.BPM != 128 {
		t.Errorf("Expected 128 BPM, got %d", res.BPM)
	}
	if lastPulses != res.Pulses {
		t.Errorf("Expected progress to report %d pulses, got %d", res.Pulses, lastPulses)
	}
}

type failingSource struct{}

func (failingSource) Start(chan<- Pulse) error { return errors.New("port busy") }
func (failingSource) Stop() error              { return nil }

func TestSyncStartFailure(t *testing.T) {
	if _, err := Sync(context.Background(), failingSource{}); err == nil {
		t.Error("Expected start error to propagate")
	}
}
