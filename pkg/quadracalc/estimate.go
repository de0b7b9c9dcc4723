package quadracalc

import (
	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/internal/tempo"
)

// EstimateTaps runs a one-shot tap estimate over timestamps (ms), keeping
// only the newest maxTaps of them as a live session would.
func EstimateTaps(timestamps []float64, maxTaps int) (tempo.Estimate, error) {
	est := tempo.NewEstimator(maxTaps)
	for _, ts := range timestamps {
		est.Record(ts)
	}
	res, err := est.Finalize()
	return res, tapError(err)
}

// EstimateClock estimates a tempo from recorded MIDI clock timestamps (ms).
func EstimateClock(pulses []float64) (clocksync.Result, error) {
	res, err := clocksync.Estimate(pulses)
	return res, clockError(err)
}
