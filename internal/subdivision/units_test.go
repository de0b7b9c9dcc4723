package subdivision

import (
	"errors"
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		unit    Unit
		ms      float64
		display string
		raw     string
	}{
		{Milliseconds, 500, "500.00 ms", "500.00"},
		{Seconds, 500, "0.5000 s", "0.5000"},
		{Samples, 500, "22,050 smp", "22050"},
		{Hertz, 500, "2.000 Hz", "2.000"},
		{Milliseconds, 166.67, "166.67 ms", "166.67"},
		{Samples, 2000, "88,200 smp", "88200"},
	}

	for _, tt := range tests {
		f := Formatter{Unit: tt.unit, SampleRate: 44100}
		if got := f.Format(tt.ms); got != tt.display {
			t.Errorf("Format(%v, %s): expected %q, got %q", tt.ms, tt.unit, tt.display, got)
		}
		if got := f.RawValue(tt.ms); got != tt.raw {
			t.Errorf("RawValue(%v, %s): expected %q, got %q", tt.ms, tt.unit, tt.raw, got)
		}
	}
}

func TestSamplesUseConfiguredRate(t *testing.T) {
	f := Formatter{Unit: Samples, SampleRate: 48000}
	if got := f.RawValue(500); got != "24000" {
		t.Errorf("Expected 24000 samples at 48k, got %s", got)
	}
	if got := (Formatter{Unit: Samples}).RawValue(500); got != "22050" {
		t.Errorf("Expected default rate fallback, got %s", got)
	}
}

func TestParseRawRoundTrip(t *testing.T) {
	delays, err := Compute(97, Standard())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// Tolerance per unit: the raw string carries limited precision.
	tolerances := map[Unit]func(ms float64) float64{
		Milliseconds: func(float64) float64 { return 0.005 },
		Seconds:      func(float64) float64 { return 0.05 },
		Samples:      func(float64) float64 { return 1000.0 / 44100 },
		Hertz:        func(ms float64) float64 { return ms * ms / 1000 * 0.0005 * 1.01 },
	}

	for _, unit := range Units() {
		f := Formatter{Unit: unit, SampleRate: 44100}
		for _, d := range delays {
			back, err := f.ParseRaw(f.RawValue(d.Ms))
			if err != nil {
				t.Fatalf("%s: ParseRaw failed: %v", unit, err)
			}
			if diff := math.Abs(back - d.Ms); diff > tolerances[unit](d.Ms) {
				t.Errorf("%s %s: %.4f round-tripped to %.4f", unit, d.Name, d.Ms, back)
			}
		}
	}
}

func TestParseRawRejectsGarbage(t *testing.T) {
	f := Formatter{Unit: Hertz, SampleRate: 44100}
	if _, err := f.ParseRaw("abc"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
	if _, err := f.ParseRaw("0"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for 0 Hz, got %v", err)
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{"ms": Milliseconds, "Seconds": Seconds, " smp ": Samples, "HZ": Hertz}
	for in, want := range tests {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseUnit("bars"); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("Expected ErrInvalidUnit, got %v", err)
	}
}

func TestValidSampleRate(t *testing.T) {
	if !ValidSampleRate(96000) {
		t.Error("Expected 96000 to be valid")
	}
	if ValidSampleRate(22050) {
		t.Error("Expected 22050 to be rejected")
	}
}
