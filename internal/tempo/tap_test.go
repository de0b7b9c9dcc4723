package tempo

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func TestFromIntervals(t *testing.T) {
	tests := []struct {
		name      string
		intervals []float64
		wantBPM   int
		wantAcc   float64
		wantErr   error
	}{
		{"steady 120", []float64{500, 500, 500}, 120, 100, nil},
		{"mistap rejected", []float64{500, 5, 505}, 119, 99.5, nil},
		{"two intervals skip rejection", []float64{500, 1000}, 80, 66.67, nil},
		{"non-positive dropped", []float64{0, -10, 600}, 100, 100, nil},
		{"nothing usable", []float64{0, -1}, 0, 0, ErrNotEnoughTaps},
		{"too slow", []float64{2500, 2500}, 0, 0, ErrOutOfRange},
		{"too fast", []float64{150, 150, 150}, 0, 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := FromIntervals(tt.intervals)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}
			if est.BPM != tt.wantBPM {
				t.Errorf("Expected BPM %d, got %d", tt.wantBPM, est.BPM)
			}
			if math.Abs(est.Accuracy-tt.wantAcc) > 0.01 {
				t.Errorf("Expected accuracy %.2f, got %.2f", tt.wantAcc, est.Accuracy)
			}
		})
	}
}

func TestFromIntervalsFallsBackWhenTooFewSurvive(t *testing.T) {
	// Upper median is 1000, so only one interval survives and all four are averaged.
	est, err := FromIntervals([]float64{100, 1000, 2000, 100})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := int(math.Round(60000 / 800.0)); est.BPM != want {
		t.Errorf("Expected BPM %d, got %d", want, est.BPM)
	}
}

func TestAccuracyClampedAtZero(t *testing.T) {
	est, err := FromIntervals([]float64{20, 200, 2000})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if est.Accuracy != 0 {
		t.Errorf("Expected accuracy 0, got %.2f", est.Accuracy)
	}
	if est.BPM != 81 {
		t.Errorf("Expected BPM 81, got %d", est.BPM)
	}
}

func TestEstimatorTapSequences(t *testing.T) {
	e := NewEstimator(DefaultMaxTaps)
	for _, ts := range []float64{0, 500, 1000, 1500} {
		e.Record(ts)
	}
	est, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if est.BPM != 120 || est.Accuracy != 100 || !est.Final || est.Taps != 4 {
		t.Errorf("Expected 120 BPM / 100%% / final / 4 taps, got %+v", est)
	}

	e.Reset()
	for _, ts := range []float64{0, 500, 505, 1010} {
		e.Record(ts)
	}
	est, err = e.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if est.BPM != 119 {
		t.Errorf("Expected 119 BPM, got %d", est.BPM)
	}
}

func TestEstimatorNeedsTwoTaps(t *testing.T) {
	e := NewEstimator(DefaultMaxTaps)

	est, err := e.Record(1000)
	if !errors.Is(err, ErrNotEnoughTaps) {
		t.Fatalf("Expected ErrNotEnoughTaps, got %v", err)
	}
	if est.Taps != 1 {
		t.Errorf("Expected 1 tap, got %d", est.Taps)
	}

	est, err = e.Record(1600)
	if err != nil {
		t.Fatalf("Unexpected error on second tap: %v", err)
	}
	if est.BPM != 100 || est.Final {
		t.Errorf("Expected advisory 100 BPM, got %+v", est)
	}
}

func TestEstimatorWindowCap(t *testing.T) {
	e := NewEstimator(8)
	for i := 0; i < 30; i++ {
		e.Record(float64(i) * 500)
		if e.Count() > 8 {
			t.Fatalf("Window grew to %d taps", e.Count())
		}
	}
	samples := e.Samples()
	if len(samples) != 8 {
		t.Fatalf("Expected 8 samples, got %d", len(samples))
	}
	if samples[0] != 22*500 {
		t.Errorf("Expected oldest sample %v, got %v", 22*500.0, samples[0])
	}
}

func TestEstimatorInvalidCapUsesDefault(t *testing.T) {
	if got := NewEstimator(1).MaxTaps(); got != DefaultMaxTaps {
		t.Errorf("Expected default cap %d, got %d", DefaultMaxTaps, got)
	}
}

func TestTapSessionQuietPeriodFinalizes(t *testing.T) {
	var (
		mu     sync.Mutex
		got    Estimate
		gotErr error
		calls  int
	)
	done := make(chan struct{}, 1)
	s := NewTapSession(DefaultMaxTaps, 20*time.Millisecond, func(est Estimate, err error) {
		mu.Lock()
		got, gotErr = est, err
		calls++
		mu.Unlock()
		done <- struct{}{}
	})
	defer s.Close()

	for _, ts := range []float64{0, 500, 1000} {
		s.Tap(ts)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Quiet period never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotErr != nil {
		t.Fatalf("Unexpected error: %v", gotErr)
	}
	if got.BPM != 120 || !got.Final {
		t.Errorf("Expected final 120 BPM, got %+v", got)
	}
	if calls != 1 {
		t.Errorf("Expected one callback, got %d", calls)
	}
	if s.Count() != 0 {
		t.Errorf("Expected window cleared after finalize, got %d taps", s.Count())
	}
}

func TestTapSessionResetCancelsPendingTask(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewTapSession(DefaultMaxTaps, 20*time.Millisecond, func(Estimate, error) {
		fired <- struct{}{}
	})
	defer s.Close()

	s.Tap(0)
	s.Tap(500)
	if !s.Pending() {
		t.Fatal("Expected a pending finalize after tapping")
	}
	s.Reset()

	select {
	case <-fired:
		t.Error("Listener fired after Reset")
	case <-time.After(100 * time.Millisecond):
	}
	if s.Count() != 0 {
		t.Errorf("Expected empty window, got %d", s.Count())
	}
}

func TestTapSessionExplicitFinalize(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewTapSession(DefaultMaxTaps, time.Hour, func(Estimate, error) {
		fired <- struct{}{}
	})
	defer s.Close()

	if _, err := s.Finalize(); !errors.Is(err, ErrNotEnoughTaps) {
		t.Errorf("Expected ErrNotEnoughTaps on empty session, got %v", err)
	}

	s.Tap(0)
	s.Tap(600)
	est, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if est.BPM != 100 || !est.Final {
		t.Errorf("Expected final 100 BPM, got %+v", est)
	}
	if s.Pending() {
		t.Error("Expected no pending task after Finalize")
	}
	select {
	case <-fired:
		t.Error("Listener should not run for an explicit Finalize")
	default:
	}
}
