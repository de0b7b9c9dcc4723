package clocksync

import (
	"math"
)

const (
	// PPQN is the MIDI clock resolution: 24 pulses per quarter note.
	PPQN = 24

	PreviewPulses  = 24
	MinPulses      = 48
	StablePulses   = 72
	MaxPulses      = 96
	StableBPMDelta = 0.5

	MinBPM = 30
	MaxBPM = 300
)

// Result describes a resolved (or provisional) clock estimate.
type Result struct {
	BPM     int     `json:"bpm"`
	Exact   float64 `json:"exact"`
	Pulses  int     `json:"pulses"`
	Stable  bool    `json:"stable"`
	Ignored int     `json:"ignored"`
}

// Estimator accumulates clock pulse timestamps (ms) for one sync session.
type Estimator struct {
	pulses  []float64
	ignored int
}

func NewEstimator() *Estimator {
	return &Estimator{pulses: make([]float64, 0, MaxPulses)}
}

// Add appends a pulse and reports whether the session has resolved.
// Non-finite, negative or out-of-order timestamps are counted and skipped.
func (e *Estimator) Add(ts float64) (Result, bool) {
	if !e.accept(ts) {
		e.ignored++
		return e.result(false), false
	}
	e.pulses = append(e.pulses, ts)

	n := len(e.pulses)
	if n < MinPulses {
		return e.result(false), false
	}
	if n >= MaxPulses {
		return e.result(e.stable()), true
	}
	if n >= StablePulses && e.stable() {
		return e.result(true), true
	}
	return e.result(false), false
}

func (e *Estimator) accept(ts float64) bool {
	if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
		return false
	}
	if n := len(e.pulses); n > 0 && ts <= e.pulses[n-1] {
		return false
	}
	return true
}

// Provisional returns the running estimate once enough pulses are in.
func (e *Estimator) Provisional() (Result, bool) {
	if len(e.pulses) < MinPulses {
		return Result{}, false
	}
	return e.result(false), true
}

// Preview returns a display-only BPM once one quarter note of pulses is in.
func (e *Estimator) Preview() (int, bool) {
	if len(e.pulses) < PreviewPulses {
		return 0, false
	}
	return int(math.Round(bpmFromPulses(e.pulses))), true
}

func (e *Estimator) Count() int {
	return len(e.pulses)
}

func (e *Estimator) Ignored() int {
	return e.ignored
}

func (e *Estimator) Reset() {
	e.pulses = e.pulses[:0]
	e.ignored = 0
}

func (e *Estimator) stable() bool {
	if len(e.pulses) < StablePulses {
		return false
	}
	mid := len(e.pulses) / 2
	first := bpmFromPulses(e.pulses[:mid])
	second := bpmFromPulses(e.pulses[mid:])
	return math.Abs(first-second) < StableBPMDelta
}

func (e *Estimator) result(stable bool) Result {
	exact := bpmFromPulses(e.pulses)
	return Result{
		BPM:     int(math.Round(exact)),
		Exact:   exact,
		Pulses:  len(e.pulses),
		Stable:  stable,
		Ignored: e.ignored,
	}
}

// bpmFromPulses converts the mean pulse interval to BPM at 24 ppqn.
func bpmFromPulses(pulses []float64) float64 {
	if len(pulses) < 2 {
		return 0
	}
	// Timestamps are strictly increasing, so the mean interval is the span
	// divided by the interval count.
	span := pulses[len(pulses)-1] - pulses[0]
	mean := span / float64(len(pulses)-1)
	if mean <= 0 {
		return 0
	}
	return 60000 / (mean * PPQN)
}

// InRange reports whether a BPM is one the calculator accepts.
func InRange(bpm int) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}
