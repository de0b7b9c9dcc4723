package metronome

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		bpm  int
		want time.Duration
	}{
		{120, 500 * time.Millisecond},
		{60, time.Second},
		{300, 200 * time.Millisecond},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Interval(tt.bpm); got != tt.want {
			t.Errorf("Interval(%d): expected %v, got %v", tt.bpm, tt.want, got)
		}
	}
}

func TestNewSchedulerRejectsBadBPM(t *testing.T) {
	if _, err := NewScheduler(10, 4); !errors.Is(err, ErrInvalidBPM) {
		t.Errorf("Expected ErrInvalidBPM, got %v", err)
	}
	s, err := NewScheduler(120, 0)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if s.beatsPerBar != DefaultBeatsPerBar {
		t.Errorf("Expected %d beats per bar, got %d", DefaultBeatsPerBar, s.beatsPerBar)
	}
}

func TestSchedulerEmitsAccentedBars(t *testing.T) {
	s, err := NewScheduler(300, 2)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	beats, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	var got []Beat
	timeout := time.After(3 * time.Second)
	for len(got) < 3 {
		select {
		case b := <-beats:
			got = append(got, b)
		case <-timeout:
			t.Fatalf("Expected 3 beats, got %d", len(got))
		}
	}

	if !got[0].Accent || got[0].InBar != 1 || got[0].Bar != 1 {
		t.Errorf("Expected first beat to be accented beat 1 of bar 1, got %+v", got[0])
	}
	if got[1].Accent || got[1].InBar != 2 {
		t.Errorf("Expected second beat unaccented in position 2, got %+v", got[1])
	}
	if !got[2].Accent || got[2].Bar != 2 {
		t.Errorf("Expected third beat to start bar 2, got %+v", got[2])
	}
	if _, err := s.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("Expected ErrRunning on second Start, got %v", err)
	}
}

func TestSchedulerStop(t *testing.T) {
	s, _ := NewScheduler(60, 4)
	beats, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-beats

	s.Stop()
	if s.Running() {
		t.Error("Expected scheduler to be stopped")
	}
	if _, ok := <-beats; ok {
		t.Error("Expected beat channel to be closed")
	}
	s.Stop()
}

func TestSchedulerStopsOnContext(t *testing.T) {
	s, _ := NewScheduler(60, 4)
	ctx, cancel := context.WithCancel(context.Background())
	beats, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-beats:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Expected beat channel to close after cancel")
		}
	}
}

func TestSchedulerSetBPM(t *testing.T) {
	s, _ := NewScheduler(30, 4)
	if err := s.SetBPM(400); !errors.Is(err, ErrInvalidBPM) {
		t.Errorf("Expected ErrInvalidBPM, got %v", err)
	}

	beats, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()
	<-beats

	// At 30 BPM the next beat is 2s away; after retempo it is 200ms away.
	if err := s.SetBPM(300); err != nil {
		t.Fatalf("SetBPM failed: %v", err)
	}
	if s.BPM() != 300 {
		t.Errorf("Expected BPM 300, got %d", s.BPM())
	}
	select {
	case b := <-beats:
		if b.Index != 1 {
			t.Errorf("Expected beat index 1, got %d", b.Index)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Error("Expected a beat at the new tempo")
	}
}

func TestRenderClicks(t *testing.T) {
	c := ClickTrack{BPM: 120, Bars: 2, BeatsPerBar: 4, SampleRate: 8000}
	samples, err := RenderClicks(c)
	if err != nil {
		t.Fatalf("RenderClicks failed: %v", err)
	}
	if c.SamplesPerBeat() != 4000 {
		t.Errorf("Expected 4000 samples per beat, got %d", c.SamplesPerBeat())
	}
	if len(samples) != 8*4000 {
		t.Fatalf("Expected %d samples, got %d", 8*4000, len(samples))
	}

	accent := peak(samples[:4000])
	normal := peak(samples[4000:8000])
	if accent <= 0.45 || accent > AccentGain {
		t.Errorf("Expected accent peak near %.2f, got %.3f", AccentGain, accent)
	}
	if normal <= 0.25 || normal > NormalGain {
		t.Errorf("Expected click peak near %.2f, got %.3f", NormalGain, normal)
	}
	if bar2 := peak(samples[4*4000 : 5*4000]); math.Abs(bar2-accent) > 1e-9 {
		t.Errorf("Expected bar 2 to start with an accent, got peak %.3f", bar2)
	}

	// Silence after the click ends.
	if tail := peak(samples[int(ClickLength*8000)+1 : 4000]); tail != 0 {
		t.Errorf("Expected silence between clicks, got %.4f", tail)
	}
}

func TestRenderClicksValidation(t *testing.T) {
	tests := []ClickTrack{
		{BPM: 20, Bars: 1, SampleRate: 44100},
		{BPM: 120, Bars: 0, SampleRate: 44100},
		{BPM: 120, Bars: 1, SampleRate: 0},
	}
	for _, c := range tests {
		if _, err := RenderClicks(c); err == nil {
			t.Errorf("Expected error for %+v", c)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	c := ClickTrack{BPM: 100, Bars: 1, SampleRate: 44100}
	samples, err := RenderClicks(c)
	if err != nil {
		t.Fatalf("RenderClicks failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := WriteWAV(f, samples, c.SampleRate); err != nil {
		f.Close()
		t.Fatalf("WriteWAV failed: %v", err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	got, sr, err := ReadWAV(r)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if sr != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", sr)
	}
	if len(got) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if math.Abs(got[i]-samples[i]) > 1e-3 {
			t.Fatalf("Sample %d: expected %.5f, got %.5f", i, samples[i], got[i])
		}
	}
}

func writeTestWAV(t *testing.T, samples []float64, sampleRate int) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	return f
}

func TestVerifyWAV(t *testing.T) {
	c := ClickTrack{BPM: 120, Bars: 2, BeatsPerBar: 3, SampleRate: 8000}
	samples, err := RenderClicks(c)
	if err != nil {
		t.Fatalf("RenderClicks failed: %v", err)
	}

	if err := VerifyWAV(writeTestWAV(t, samples, c.SampleRate), c); err != nil {
		t.Errorf("Expected rendered track to verify, got %v", err)
	}

	longer := c
	longer.Bars = 3
	if err := VerifyWAV(writeTestWAV(t, samples, c.SampleRate), longer); !errors.Is(err, ErrMismatch) {
		t.Errorf("Expected ErrMismatch for wrong length, got %v", err)
	}

	otherRate := c
	otherRate.SampleRate = 16000
	if err := VerifyWAV(writeTestWAV(t, samples, c.SampleRate), otherRate); !errors.Is(err, ErrMismatch) {
		t.Errorf("Expected ErrMismatch for wrong sample rate, got %v", err)
	}

	silent := make([]float64, len(samples))
	if err := VerifyWAV(writeTestWAV(t, silent, c.SampleRate), c); !errors.Is(err, ErrMismatch) {
		t.Errorf("Expected ErrMismatch for a silent track, got %v", err)
	}
}

func TestReadWAVInvalid(t *testing.T) {
	if _, _, err := ReadWAV(bytes.NewReader([]byte("INVALID HEADER DATA"))); err == nil {
		t.Error("ReadWAV should fail on invalid data")
	}
}

func TestWriteSMF(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, ClickTrack{BPM: 90, Bars: 2, BeatsPerBar: 3}); err != nil {
		t.Fatalf("WriteSMF failed: %v", err)
	}

	sm, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to read back SMF: %v", err)
	}
	if len(sm.Tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(sm.Tracks))
	}

	var bpm float64
	for _, ev := range sm.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			break
		}
	}
	if math.Abs(bpm-90) > 0.01 {
		t.Errorf("Expected tempo 90, got %.2f", bpm)
	}

	var keys []uint8
	for _, ev := range sm.Tracks[1] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			if ch != DrumChannel {
				t.Errorf("Expected channel %d, got %d", DrumChannel, ch)
			}
			keys = append(keys, key)
		}
	}
	want := []uint8{AccentKey, NormalKey, NormalKey, AccentKey, NormalKey, NormalKey}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d clicks, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Click %d: expected key %d, got %d", i, want[i], keys[i])
		}
	}
}

func TestWriteSMFValidation(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, ClickTrack{BPM: 500, Bars: 1}); !errors.Is(err, ErrInvalidBPM) {
		t.Errorf("Expected ErrInvalidBPM, got %v", err)
	}
}

func peak(samples []float64) float64 {
	var p float64
	for _, s := range samples {
		p = max(p, math.Abs(s))
	}
	return p
}
