package subdivision

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

type Unit string

const (
	Milliseconds Unit = "ms"
	Seconds      Unit = "seconds"
	Samples      Unit = "samples"
	Hertz        Unit = "hz"
)

const DefaultSampleRate = 44100

var (
	ErrInvalidUnit  = errors.New("unknown display unit")
	ErrInvalidValue = errors.New("value cannot be converted back to milliseconds")
)

// SampleRates lists the rates offered in settings.
var SampleRates = []int{44100, 48000, 88200, 96000, 192000}

func Units() []Unit {
	return []Unit{Milliseconds, Seconds, Samples, Hertz}
}

func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case Milliseconds, Seconds, Samples, Hertz:
		return u, nil
	case "s", "sec":
		return Seconds, nil
	case "smp":
		return Samples, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

func ValidSampleRate(rate int) bool {
	for _, r := range SampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// Formatter renders millisecond values in one display unit.
type Formatter struct {
	Unit       Unit
	SampleRate int
}

func (f Formatter) rate() int {
	if f.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return f.SampleRate
}

func (f Formatter) samples(ms float64) int64 {
	return int64(math.Round(ms / 1000 * float64(f.rate())))
}

// Format returns the display string with its unit suffix.
func (f Formatter) Format(ms float64) string {
	switch f.Unit {
	case Seconds:
		return fmt.Sprintf("%.4f s", ms/1000)
	case Samples:
		return humanize.Comma(f.samples(ms)) + " smp"
	case Hertz:
		return fmt.Sprintf("%.3f Hz", 1000/ms)
	default:
		return fmt.Sprintf("%.2f ms", ms)
	}
}

// RawValue returns the bare number suitable for pasting into a plugin.
func (f Formatter) RawValue(ms float64) string {
	switch f.Unit {
	case Seconds:
		return fmt.Sprintf("%.4f", ms/1000)
	case Samples:
		return strconv.FormatInt(f.samples(ms), 10)
	case Hertz:
		return fmt.Sprintf("%.3f", 1000/ms)
	default:
		return fmt.Sprintf("%.2f", ms)
	}
}

// ParseRaw converts a RawValue string back to milliseconds, within the
// precision of the unit.
func (f Formatter) ParseRaw(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidValue
	}

	switch f.Unit {
	case Seconds:
		return v * 1000, nil
	case Samples:
		return v / float64(f.rate()) * 1000, nil
	case Hertz:
		if v <= 0 {
			return 0, ErrInvalidValue
		}
		return 1000 / v, nil
	default:
		return v, nil
	}
}
