package quadracalc

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/models"
	"github.com/himanishpuri/quadracalc/pkg/utils"
)

const (
	MaxPresets    = 50
	MaxPresetName = 30
)

// Presets returns the saved presets in insertion order.
func (s *Service) Presets() []models.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Preset, len(s.presets))
	for i, p := range s.presets {
		out[i] = clonePreset(p)
	}
	return out
}

// SavePreset snapshots the current tempo, settings and custom subdivisions
// under name. If the list cannot be persisted the new preset is dropped.
func (s *Service) SavePreset(name string) (models.Preset, error) {
	name = utils.CleanName(name)
	if err := validateName(name, MaxPresetName, "preset"); err != nil {
		return models.Preset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !validBPM(s.bpm) {
		return models.Preset{}, invalidInput(ErrInvalidBPM, "save preset",
			"Please enter a valid BPM between 30 and 300.")
	}
	for _, p := range s.presets {
		if utils.SameName(p.Name, name) {
			return models.Preset{}, tagged(ErrDuplicateName, KindAlreadyExists,
				"save preset", "Preset name already exists.")
		}
	}
	if len(s.presets) >= MaxPresets {
		return models.Preset{}, invalidInput(ErrTooManyPresets, "save preset",
			fmt.Sprintf("Maximum of %d presets allowed.", MaxPresets))
	}

	preset := models.Preset{
		ID:                 utils.GenerateUUID(),
		Name:               name,
		BPM:                s.bpm,
		SampleRate:         s.settings.SampleRate,
		DisplayMode:        s.settings.DisplayMode,
		CustomSubdivisions: append([]models.CustomSubdivision{}, s.customs...),
		Timestamp:          s.nowMillis(),
	}

	s.presets = append(s.presets, preset)
	if err := s.saveLocked(KeyPresets, s.presets); err != nil {
		s.presets = s.presets[:len(s.presets)-1]
		s.log.Warnf("Failed to save preset %q: %v", name, err)
		return models.Preset{}, err
	}

	s.log.Infof("Saved preset %q at %d BPM", name, preset.BPM)
	return clonePreset(preset), nil
}

// GetPreset finds a preset by id, or by name when no id matches.
func (s *Service) GetPreset(ref string) (models.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPresetLocked(ref)
	if idx < 0 {
		return models.Preset{}, presetNotFound(ref)
	}
	return clonePreset(s.presets[idx]), nil
}

// LoadPreset applies a preset: tempo, sample rate, display mode and custom
// subdivisions. Missing sample rate or display mode fall back to defaults.
// A tempoNotSaved warning is returned alongside the loaded preset.
func (s *Service) LoadPreset(ref string) (models.Preset, error) {
	s.mu.Lock()
	idx := s.findPresetLocked(ref)
	if idx < 0 {
		s.mu.Unlock()
		return models.Preset{}, presetNotFound(ref)
	}
	p := clonePreset(s.presets[idx])

	def := defaultSettings()
	prevSettings := s.settings
	s.settings.SampleRate = def.SampleRate
	if subdivision.ValidSampleRate(p.SampleRate) {
		s.settings.SampleRate = p.SampleRate
	}
	s.settings.DisplayMode = def.DisplayMode
	if unit, err := subdivision.ParseUnit(p.DisplayMode); err == nil {
		s.settings.DisplayMode = string(unit)
	}

	if err := s.replaceCustomsLocked(p.CustomSubdivisions); err != nil {
		s.settings = prevSettings
		s.mu.Unlock()
		return models.Preset{}, err
	}
	s.mu.Unlock()

	// applyBPM persists the settings along with the tempo.
	err := s.applyBPM(p.BPM)
	s.log.Infof("Loaded preset %q", p.Name)
	return p, err
}

// DeletePreset removes a preset by id or name.
func (s *Service) DeletePreset(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPresetLocked(ref)
	if idx < 0 {
		return presetNotFound(ref)
	}

	prev := s.presets
	next := make([]models.Preset, 0, len(prev)-1)
	next = append(next, prev[:idx]...)
	next = append(next, prev[idx+1:]...)

	s.presets = next
	if err := s.saveLocked(KeyPresets, s.presets); err != nil {
		s.presets = prev
		return err
	}
	return nil
}

func (s *Service) findPresetLocked(ref string) int {
	for i, p := range s.presets {
		if p.ID != "" && p.ID == ref {
			return i
		}
	}
	ref = utils.CleanName(ref)
	for i, p := range s.presets {
		if utils.SameName(p.Name, ref) {
			return i
		}
	}
	return -1
}

func presetNotFound(ref string) error {
	return tagged(fmt.Errorf("%w: %q", ErrPresetNotFound, ref), KindNotFound,
		"find preset", "Preset not found.")
}

// loadPresetsLocked reads the preset list, falling back to the older
// delay_presets key. Invalid entries are dropped, the list is capped and
// presets without a UUID id get one.
func (s *Service) loadPresetsLocked() []models.Preset {
	var raw []models.Preset
	ok, err := s.loadLocked(KeyPresets, &raw)
	if err != nil {
		s.log.Warnf("Failed to load presets: %v", err)
		return nil
	}
	if !ok {
		ok, err = s.loadLocked(KeyLegacyPresets, &raw)
		if err != nil {
			s.log.Warnf("Failed to load legacy presets: %v", err)
			return nil
		}
		if ok {
			s.log.Infof("Migrating %d presets from %s", len(raw), KeyLegacyPresets)
		}
	}
	return sanitizePresets(raw)
}

func sanitizePresets(raw []models.Preset) []models.Preset {
	out := make([]models.Preset, 0, min(len(raw), MaxPresets))
	for _, p := range raw {
		if p.Name == "" || !validBPM(p.BPM) {
			continue
		}
		if !utils.IsUUID(p.ID) {
			p.ID = utils.GenerateUUID()
		}
		p.CustomSubdivisions = sanitizeCustoms(p.CustomSubdivisions)
		out = append(out, p)
		if len(out) == MaxPresets {
			break
		}
	}
	return out
}

func clonePreset(p models.Preset) models.Preset {
	p.CustomSubdivisions = append([]models.CustomSubdivision{}, p.CustomSubdivisions...)
	return p
}

// IsNotFound reports whether err is a missing preset or subdivision.
func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound || errors.Is(err, ErrPresetNotFound) || errors.Is(err, ErrSubdivisionNotFound)
}
