package tempo

import (
	"errors"
	"math"
	"sort"
)

const (
	MinBPM = 30
	MaxBPM = 300

	// DefaultMaxTaps is the size of the sliding tap window.
	DefaultMaxTaps = 12

	// outlierTolerance is the fraction of the median an interval may deviate
	// before it is discarded.
	outlierTolerance = 0.5
)

var (
	ErrNotEnoughTaps = errors.New("at least two taps are needed")
	ErrOutOfRange    = errors.New("estimated tempo is outside 30-300 BPM")
)

// Estimate is the result of one tempo estimation.
type Estimate struct {
	BPM      int     `json:"bpm"`
	Accuracy float64 `json:"accuracy"` // timing consistency, 0-100
	Taps     int     `json:"taps"`
	Final    bool    `json:"final"`
}

// FromIntervals estimates a tempo from inter-tap intervals in milliseconds.
//
// Non-positive intervals are dropped. With three or more intervals, any
// interval deviating from the upper median by more than half the median is
// treated as a mistap, unless that would leave fewer than two intervals.
func FromIntervals(intervals []float64) (Estimate, error) {
	valid := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 && !math.IsInf(iv, 0) && !math.IsNaN(iv) {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return Estimate{}, ErrNotEnoughTaps
	}

	kept := rejectOutliers(valid)

	avg := mean(kept)
	bpm := int(math.Round(60000 / avg))
	if bpm < MinBPM || bpm > MaxBPM {
		return Estimate{}, ErrOutOfRange
	}

	return Estimate{
		BPM:      bpm,
		Accuracy: accuracy(kept, avg),
		Taps:     len(intervals) + 1,
	}, nil
}

func rejectOutliers(valid []float64) []float64 {
	if len(valid) < 3 {
		return valid
	}

	sorted := append([]float64(nil), valid...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	kept := make([]float64, 0, len(valid))
	for _, iv := range valid {
		if math.Abs(iv-median) <= median*outlierTolerance {
			kept = append(kept, iv)
		}
	}
	if len(kept) < 2 {
		return valid
	}
	return kept
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// accuracy maps the coefficient of variation onto 0-100.
func accuracy(xs []float64, avg float64) float64 {
	variance := 0.0
	for _, x := range xs {
		d := x - avg
		variance += d * d
	}
	variance /= float64(len(xs))

	acc := 100 - math.Sqrt(variance)/avg*100
	return math.Max(0, math.Min(100, acc))
}

// Estimator keeps a sliding window of tap timestamps.
// It is not safe for concurrent use; TapSession adds the locking.
type Estimator struct {
	maxTaps int
	taps    []float64
}

func NewEstimator(maxTaps int) *Estimator {
	if maxTaps < 2 {
		maxTaps = DefaultMaxTaps
	}
	return &Estimator{
		maxTaps: maxTaps,
		taps:    make([]float64, 0, maxTaps),
	}
}

// Record appends a tap timestamp (ms) and returns an advisory estimate over
// the current window.
func (e *Estimator) Record(ts float64) (Estimate, error) {
	e.taps = append(e.taps, ts)
	if len(e.taps) > e.maxTaps {
		e.taps = append(e.taps[:0], e.taps[len(e.taps)-e.maxTaps:]...)
	}
	return e.estimate(false)
}

// Finalize returns the authoritative estimate over the full window.
func (e *Estimator) Finalize() (Estimate, error) {
	return e.estimate(true)
}

func (e *Estimator) Reset() {
	e.taps = e.taps[:0]
}

func (e *Estimator) Count() int {
	return len(e.taps)
}

func (e *Estimator) MaxTaps() int {
	return e.maxTaps
}

// Samples returns a copy of the current window.
func (e *Estimator) Samples() []float64 {
	return append([]float64(nil), e.taps...)
}

func (e *Estimator) estimate(final bool) (Estimate, error) {
	if len(e.taps) < 2 {
		return Estimate{Taps: len(e.taps)}, ErrNotEnoughTaps
	}

	intervals := make([]float64, 0, len(e.taps)-1)
	for i := 1; i < len(e.taps); i++ {
		intervals = append(intervals, e.taps[i]-e.taps[i-1])
	}

	est, err := FromIntervals(intervals)
	est.Taps = len(e.taps)
	est.Final = final && err == nil
	return est, err
}
