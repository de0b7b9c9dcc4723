package quadracalc

import (
	"fmt"
	"math"

	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/models"
	"github.com/himanishpuri/quadracalc/pkg/utils"
)

const (
	MaxCustomSubdivisions = 20
	MaxSubdivisionName    = 50
	MaxFactor             = 10.0
)

// Subdivisions returns the user-defined subdivisions in insertion order.
func (s *Service) Subdivisions() []models.CustomSubdivision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CustomSubdivision(nil), s.customs...)
}

// AddSubdivision validates and stores a custom subdivision. The list is
// rolled back if it cannot be persisted.
func (s *Service) AddSubdivision(name string, factor float64) (models.CustomSubdivision, error) {
	name = utils.CleanName(name)
	if err := validateName(name, MaxSubdivisionName, "subdivision"); err != nil {
		return models.CustomSubdivision{}, err
	}
	if !validCustomFactor(factor) {
		return models.CustomSubdivision{}, invalidInput(fmt.Errorf("%w: %v", ErrInvalidFactor, factor),
			"add subdivision", "Please enter a valid factor greater than 0 and at most 10.")
	}

	if isStandardName(name) {
		return models.CustomSubdivision{}, tagged(fmt.Errorf("%w: %q", ErrReservedName, name), KindAlreadyExists,
			"add subdivision", "That name is already used by a standard subdivision.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customs {
		if utils.SameName(c.Name, name) {
			return models.CustomSubdivision{}, tagged(ErrDuplicateName, KindAlreadyExists,
				"add subdivision", "Subdivision name already exists.")
		}
	}
	if len(s.customs) >= MaxCustomSubdivisions {
		return models.CustomSubdivision{}, invalidInput(ErrTooManySubdivisions,
			"add subdivision", fmt.Sprintf("Maximum of %d custom subdivisions allowed.", MaxCustomSubdivisions))
	}

	sub := models.CustomSubdivision{Name: name, Factor: factor}
	prev := s.customs
	s.customs = append(append([]models.CustomSubdivision(nil), prev...), sub)
	if err := s.saveLocked(KeyCustomSubdivisions, s.customs); err != nil {
		s.customs = prev
		s.log.Warnf("Failed to save subdivision %q: %v", name, err)
		return models.CustomSubdivision{}, err
	}

	s.log.Infof("Added custom subdivision %q (x%g)", name, factor)
	return sub, nil
}

// RemoveSubdivision deletes a custom subdivision by name (case-insensitive).
func (s *Service) RemoveSubdivision(name string) error {
	name = utils.CleanName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.customs {
		if utils.SameName(c.Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return tagged(fmt.Errorf("%w: %q", ErrSubdivisionNotFound, name), KindNotFound,
			"remove subdivision", "Subdivision not found.")
	}

	prev := s.customs
	next := make([]models.CustomSubdivision, 0, len(prev)-1)
	next = append(next, prev[:idx]...)
	next = append(next, prev[idx+1:]...)

	s.customs = next
	if err := s.saveLocked(KeyCustomSubdivisions, s.customs); err != nil {
		s.customs = prev
		return err
	}
	return nil
}

// replaceCustomsLocked swaps the whole list, used when loading a preset.
func (s *Service) replaceCustomsLocked(customs []models.CustomSubdivision) error {
	prev := s.customs
	s.customs = sanitizeCustoms(customs)
	if err := s.saveLocked(KeyCustomSubdivisions, s.customs); err != nil {
		s.customs = prev
		return err
	}
	return nil
}

// sanitizeCustoms drops entries that would fail AddSubdivision.
func sanitizeCustoms(in []models.CustomSubdivision) []models.CustomSubdivision {
	out := make([]models.CustomSubdivision, 0, len(in))
	for _, c := range in {
		name := utils.CleanName(c.Name)
		if name == "" || utils.NameLength(name) > MaxSubdivisionName || utils.HasUnsafeChars(name) {
			continue
		}
		if !validCustomFactor(c.Factor) || containsName(out, name) || isStandardName(name) {
			continue
		}
		out = append(out, models.CustomSubdivision{Name: name, Factor: c.Factor})
		if len(out) == MaxCustomSubdivisions {
			break
		}
	}
	return out
}

func containsName(list []models.CustomSubdivision, name string) bool {
	for _, c := range list {
		if utils.SameName(c.Name, name) {
			return true
		}
	}
	return false
}

func isStandardName(name string) bool {
	for _, sub := range subdivision.Standard() {
		if utils.SameName(sub.Name, name) {
			return true
		}
	}
	return false
}

func validCustomFactor(f float64) bool {
	return f > 0 && f <= MaxFactor && !math.IsNaN(f)
}

func validateName(name string, maxLen int, what string) error {
	n := utils.NameLength(name)
	if n == 0 || n > maxLen {
		return invalidInput(fmt.Errorf("%w: %d characters", ErrInvalidName, n), "validate "+what+" name",
			fmt.Sprintf("Please enter a valid %s name (1-%d characters).", what, maxLen))
	}
	if utils.HasUnsafeChars(name) {
		return invalidInput(fmt.Errorf("%w: contains one of <>\"'&", ErrInvalidName), "validate "+what+" name",
			fmt.Sprintf("The %s name cannot contain < > \" ' or &.", what))
	}
	return nil
}
