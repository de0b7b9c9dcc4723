package quadracalc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/models"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc/storage"
)

// Storage keys. They match the browser build's localStorage keys so a blob
// exported from one front end loads in another.
const (
	KeyPresets            = "presets"
	KeyLegacyPresets      = "delay_presets"
	KeyCustomSubdivisions = "custom_subdivisions"
	KeyState              = "quadra_state"
	KeyHistory            = "bpm_history"
)

const MaxHistory = 20

func defaultSettings() models.Settings {
	return models.Settings{
		SampleRate:    subdivision.DefaultSampleRate,
		DisplayMode:   string(subdivision.Milliseconds),
		HapticEnabled: true,
	}
}

// loadState reads every blob. Unreadable or invalid blobs are logged and
// replaced by defaults; they never prevent the service from starting.
func (s *Service) loadState() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st models.Settings
	if ok, err := s.loadLocked(KeyState, &st); err != nil {
		s.log.Warnf("Failed to load state: %v", err)
	} else if ok {
		s.settings = sanitizeSettings(st)
		if validBPM(st.CurrentBPM) {
			s.bpm = st.CurrentBPM
		}
	}

	var history []models.HistoryEntry
	if ok, err := s.loadLocked(KeyHistory, &history); err != nil {
		s.log.Warnf("Failed to load history: %v", err)
	} else if ok {
		s.history = sanitizeHistory(history)
	}

	var customs []models.CustomSubdivision
	if ok, err := s.loadLocked(KeyCustomSubdivisions, &customs); err != nil {
		s.log.Warnf("Failed to load custom subdivisions: %v", err)
	} else if ok {
		s.customs = sanitizeCustoms(customs)
	}

	s.presets = s.loadPresetsLocked()
	s.log.Debugf("Loaded %d presets, %d custom subdivisions, %d history entries",
		len(s.presets), len(s.customs), len(s.history))
}

func (s *Service) loadLocked(key string, v any) (bool, error) {
	raw, err := s.storage.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) saveLocked(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.storage.Set(key, string(data)); err != nil {
		return storageFailure(err, "save "+key)
	}
	return nil
}

func sanitizeSettings(st models.Settings) models.Settings {
	def := defaultSettings()
	if !subdivision.ValidSampleRate(st.SampleRate) {
		st.SampleRate = def.SampleRate
	}
	if unit, err := subdivision.ParseUnit(st.DisplayMode); err == nil {
		st.DisplayMode = string(unit)
	} else {
		st.DisplayMode = def.DisplayMode
	}
	return st
}

func sanitizeHistory(in []models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, min(len(in), MaxHistory))
	for _, h := range in {
		if validBPM(h.BPM) {
			out = append(out, h)
		}
		if len(out) == MaxHistory {
			break
		}
	}
	return out
}

func (s *Service) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SettingsUpdate carries the fields to change; nil fields are left alone.
type SettingsUpdate struct {
	SampleRate    *int    `json:"sampleRate,omitempty"`
	DisplayMode   *string `json:"displayMode,omitempty"`
	HapticEnabled *bool   `json:"hapticEnabled,omitempty"`
}

// UpdateSettings validates and persists new settings. On a storage failure
// the previous settings are restored.
func (s *Service) UpdateSettings(u SettingsUpdate) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if u.SampleRate != nil {
		if !subdivision.ValidSampleRate(*u.SampleRate) {
			return s.settings, invalidInput(fmt.Errorf("%w: %d", ErrInvalidSampleRate, *u.SampleRate),
				"update settings", "Sample rate must be 44100, 48000, 88200, 96000 or 192000.")
		}
		next.SampleRate = *u.SampleRate
	}
	if u.DisplayMode != nil {
		unit, err := subdivision.ParseUnit(*u.DisplayMode)
		if err != nil {
			return s.settings, invalidInput(fmt.Errorf("%w: %q", ErrInvalidDisplayMode, *u.DisplayMode),
				"update settings", "Display mode must be ms, seconds, samples or hz.")
		}
		next.DisplayMode = string(unit)
	}
	if u.HapticEnabled != nil {
		next.HapticEnabled = *u.HapticEnabled
	}

	prev := s.settings
	s.settings = next
	if err := s.saveLocked(KeyState, s.settings); err != nil {
		s.settings = prev
		s.log.Warnf("Failed to save settings: %v", err)
		return prev, err
	}
	return next, nil
}

// History returns applied tempos, newest first.
func (s *Service) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryEntry(nil), s.history...)
}

func (s *Service) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.history
	s.history = nil
	if err := s.saveLocked(KeyHistory, []models.HistoryEntry{}); err != nil {
		s.history = prev
		return err
	}
	return nil
}

// recordHistoryLocked prepends bpm unless it repeats the newest entry.
// A failed save rolls the entry back.
func (s *Service) recordHistoryLocked(bpm int) error {
	if len(s.history) > 0 && s.history[0].BPM == bpm {
		return nil
	}

	prev := s.history
	next := make([]models.HistoryEntry, 0, MaxHistory)
	next = append(next, models.HistoryEntry{BPM: bpm, Time: s.nowMillis()})
	next = append(next, prev...)
	if len(next) > MaxHistory {
		next = next[:MaxHistory]
	}

	s.history = next
	if err := s.saveLocked(KeyHistory, s.history); err != nil {
		s.history = prev
		s.log.Warnf("Failed to save history: %v", err)
		return err
	}
	return nil
}
