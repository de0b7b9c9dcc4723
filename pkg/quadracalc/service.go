package quadracalc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/internal/tempo"
	"github.com/himanishpuri/quadracalc/pkg/logger"
	"github.com/himanishpuri/quadracalc/pkg/models"
)

const (
	DefaultBPM = 120
	MinBPM     = tempo.MinBPM
	MaxBPM     = tempo.MaxBPM

	HalveMinBPM  = 60
	DoubleMaxBPM = 150
)

// Service owns the calculator state: the current tempo, the tap session,
// custom subdivisions, presets, settings and history. All methods are safe
// for concurrent use.
type Service struct {
	mu      sync.Mutex
	storage Storage
	log     Logger
	config  *Config
	start   time.Time

	bpm      int
	settings models.Settings
	customs  []models.CustomSubdivision
	presets  []models.Preset
	history  []models.HistoryEntry

	tap *tempo.TapSession
}

func NewService(opts ...Option) (*Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = defaultStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	s := &Service{
		storage:  stor,
		log:      cfg.Logger,
		config:   cfg,
		start:    cfg.Now(),
		bpm:      DefaultBPM,
		settings: defaultSettings(),
	}
	s.tap = tempo.NewTapSession(cfg.MaxTaps, cfg.QuietPeriod, s.onTapQuiet)

	s.loadState()
	return s, nil
}

// Close stops the tap session and releases the storage.
func (s *Service) Close() error {
	s.tap.Close()
	return s.storage.Close()
}

func (s *Service) CurrentBPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// SetBPM sets the tempo and records it in the history. An error matching
// IsTempoNotSaved means the tempo was set but not persisted.
func (s *Service) SetBPM(bpm int) error {
	if !validBPM(bpm) {
		return invalidInput(fmt.Errorf("%w: got %d", ErrInvalidBPM, bpm), "set bpm",
			"Please enter a valid BPM between 30 and 300.")
	}
	return s.applyBPM(bpm)
}

// NudgeBPM adds delta to the tempo, clamped to 30-300.
func (s *Service) NudgeBPM(delta int) (int, error) {
	s.mu.Lock()
	bpm := clampBPM(s.bpm + delta)
	s.mu.Unlock()

	return bpm, s.applyBPM(bpm)
}

// HalveBPM halves the tempo (rounding half up). Only allowed at 60 BPM or more.
func (s *Service) HalveBPM() (int, error) {
	s.mu.Lock()
	cur := s.bpm
	s.mu.Unlock()

	if cur < HalveMinBPM {
		return cur, invalidInput(ErrCannotHalve, "halve bpm",
			fmt.Sprintf("Cannot halve %d BPM; the result would be below %d.", cur, MinBPM))
	}
	bpm := (cur + 1) / 2
	return bpm, s.applyBPM(bpm)
}

// DoubleBPM doubles the tempo. Only allowed at 150 BPM or less.
func (s *Service) DoubleBPM() (int, error) {
	s.mu.Lock()
	cur := s.bpm
	s.mu.Unlock()

	if cur > DoubleMaxBPM {
		return cur, invalidInput(ErrCannotDouble, "double bpm",
			fmt.Sprintf("Cannot double %d BPM; the result would be above %d.", cur, MaxBPM))
	}
	bpm := cur * 2
	return bpm, s.applyBPM(bpm)
}

// applyBPM sets the tempo, records history and persists both. The tempo
// change always stands; a failed write comes back as a tempoNotSaved warning.
func (s *Service) applyBPM(bpm int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevBPM := s.bpm
	s.bpm = bpm
	s.settings.CurrentBPM = bpm
	if prevBPM != bpm {
		s.log.Debugf("Tempo changed %d -> %d", prevBPM, bpm)
	}

	saveErr := s.saveLocked(KeyState, s.settings)
	if saveErr != nil {
		s.log.Warnf("Failed to persist tempo %d: %v", bpm, saveErr)
	}
	if err := s.recordHistoryLocked(bpm); err != nil && saveErr == nil {
		saveErr = err
	}
	if saveErr != nil {
		return tempoNotSaved(saveErr)
	}
	return nil
}

// Tap records a tap at ts (ms on a monotonic clock) and returns the advisory
// estimate. The tempo only changes when the session finalizes.
func (s *Service) Tap(ts float64) (tempo.Estimate, error) {
	est, err := s.tap.Tap(ts)
	return est, tapError(err)
}

// TapNow records a tap at the current time.
func (s *Service) TapNow() (tempo.Estimate, error) {
	return s.Tap(s.sinceStart())
}

// FinalizeTap ends the tap session now, applies the result and notifies the
// tap listener.
func (s *Service) FinalizeTap() (tempo.Estimate, error) {
	est, err := s.tap.Finalize()
	return est, s.handleTapResult(est, err)
}

// ResetTap discards the tap window without changing the tempo.
func (s *Service) ResetTap() {
	s.tap.Reset()
}

func (s *Service) TapCount() int {
	return s.tap.Count()
}

func (s *Service) onTapQuiet(est tempo.Estimate, err error) {
	s.handleTapResult(est, err)
}

// handleTapResult applies a final estimate and passes the outcome, or a
// tempoNotSaved warning, to the tap listener.
func (s *Service) handleTapResult(est tempo.Estimate, err error) error {
	if err != nil {
		s.log.Debugf("Tap session ended without an estimate: %v", err)
		err = tapError(err)
	} else {
		s.log.Infof("Tap tempo %d BPM (accuracy %.0f%%, %d taps)", est.BPM, est.Accuracy, est.Taps)
		err = s.applyBPM(est.BPM)
	}
	if s.config.TapListener != nil {
		s.config.TapListener(est, err)
	}
	return err
}

func tapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tempo.ErrNotEnoughTaps):
		return tagged(err, KindInsufficientData, "tap tempo", "Keep tapping: at least two taps are needed.")
	case errors.Is(err, tempo.ErrOutOfRange):
		return tagged(err, KindInsufficientData, "tap tempo", "Unable to estimate a tempo between 30 and 300 BPM.")
	default:
		return err
	}
}

// SyncClock listens to src for MIDI clock and applies the resolved tempo.
func (s *Service) SyncClock(ctx context.Context, src clocksync.PulseSource, progress clocksync.ProgressFunc) (clocksync.Result, error) {
	if src == nil {
		return clocksync.Result{}, clockError(clocksync.ErrUnsupported)
	}

	s.log.Infof("Listening for MIDI clock (timeout %s)", s.config.ClockTimeout)
	res, err := clocksync.Sync(ctx, src,
		clocksync.WithTimeout(s.config.ClockTimeout),
		clocksync.WithProgress(progress),
	)
	if err != nil {
		return res, clockError(err)
	}

	s.log.Infof("MIDI clock synced: %d BPM from %d pulses (stable=%v)", res.BPM, res.Pulses, res.Stable)
	return res, s.applyBPM(res.BPM)
}

func clockError(err error) error {
	switch {
	case errors.Is(err, clocksync.ErrUnsupported):
		return tagged(err, KindCapabilityAbsent, "midi sync", "MIDI is not supported on this device.")
	case errors.Is(err, clocksync.ErrNoClock):
		return tagged(err, KindInsufficientData, "midi sync", "No MIDI clock received.")
	case errors.Is(err, clocksync.ErrNotEnough):
		return tagged(err, KindInsufficientData, "midi sync", "Not enough MIDI clock to estimate a tempo.")
	case errors.Is(err, clocksync.ErrOutOfRange):
		return tagged(err, KindInsufficientData, "midi sync", "MIDI clock tempo is outside 30-300 BPM.")
	default:
		return err
	}
}

// Delays returns every subdivision at the current tempo, grouped by category.
func (s *Service) Delays() ([]subdivision.Group, error) {
	return s.DelaysFor(s.CurrentBPM())
}

func (s *Service) DelaysFor(bpm int) ([]subdivision.Group, error) {
	delays, err := subdivision.Compute(bpm, s.allSubdivisions())
	if err != nil {
		return nil, invalidInput(err, "compute delays", "Please enter a valid BPM between 30 and 300.")
	}
	return subdivision.GroupByCategory(delays), nil
}

// DelayFor returns the delay for one factor at bpm.
func (s *Service) DelayFor(bpm int, factor float64) (float64, error) {
	ms, err := subdivision.DelayMs(bpm, factor)
	if err != nil {
		return 0, invalidInput(err, "compute delay", "BPM must be 30-300 and the factor positive.")
	}
	return ms, nil
}

func (s *Service) allSubdivisions() []subdivision.Subdivision {
	subs := subdivision.Standard()
	for _, c := range s.Subdivisions() {
		sub, err := subdivision.NewCustom(c.Name, c.Factor)
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

// Formatter returns a formatter for the configured unit and sample rate.
func (s *Service) Formatter() subdivision.Formatter {
	st := s.Settings()
	return subdivision.Formatter{
		Unit:       subdivision.Unit(st.DisplayMode),
		SampleRate: st.SampleRate,
	}
}

func (s *Service) Format(ms float64) string {
	return s.Formatter().Format(ms)
}

func (s *Service) RawValue(ms float64) string {
	return s.Formatter().RawValue(ms)
}

func (s *Service) ParseRaw(raw string) (float64, error) {
	ms, err := s.Formatter().ParseRaw(raw)
	if err != nil {
		return 0, invalidInput(err, "parse value", "That value cannot be converted to milliseconds.")
	}
	return ms, nil
}

func (s *Service) sinceStart() float64 {
	return float64(s.config.Now().Sub(s.start)) / float64(time.Millisecond)
}

func (s *Service) nowMillis() int64 {
	return s.config.Now().UnixMilli()
}

func validBPM(bpm int) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}

func clampBPM(bpm int) int {
	return max(MinBPM, min(MaxBPM, bpm))
}
