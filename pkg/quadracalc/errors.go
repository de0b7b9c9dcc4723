package quadracalc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	KindInvalidInput     ftag.Kind = "invalid_input"
	KindInsufficientData ftag.Kind = "insufficient_data"
	KindStorageFailure   ftag.Kind = "storage_failure"
	KindCapabilityAbsent ftag.Kind = "capability_absent"
	KindNotFound         ftag.Kind = "not_found"
	KindAlreadyExists    ftag.Kind = "already_exists"
	KindCancelled        ftag.Kind = "cancelled"
	KindInternal         ftag.Kind = "internal"
)

var (
	ErrInvalidBPM          = errors.New("bpm outside 30-300")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidFactor       = errors.New("invalid factor")
	ErrInvalidSampleRate   = errors.New("unsupported sample rate")
	ErrInvalidDisplayMode  = errors.New("unsupported display mode")
	ErrCannotHalve         = errors.New("bpm too low to halve")
	ErrCannotDouble        = errors.New("bpm too high to double")
	ErrTooManyPresets      = errors.New("preset limit reached")
	ErrTooManySubdivisions = errors.New("custom subdivision limit reached")
	ErrDuplicateName       = errors.New("name already exists")
	ErrPresetNotFound      = errors.New("preset not found")
	ErrSubdivisionNotFound = errors.New("subdivision not found")
	ErrReservedName        = errors.New("name used by a standard subdivision")
	ErrTempoNotSaved       = errors.New("tempo changed but not saved")
)

// Kind classifies err into one of the Kind constants.
func Kind(err error) ftag.Kind {
	if err == nil {
		return ""
	}
	switch k := ftag.Get(err); k {
	case KindInvalidInput, KindInsufficientData, KindStorageFailure,
		KindCapabilityAbsent, KindNotFound, KindAlreadyExists:
		return k
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// UserMessage returns the end-user description attached to err, falling back
// to the error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return err.Error()
}

func tagged(err error, kind ftag.Kind, op, userMsg string) error {
	return fault.Wrap(err, fmsg.WithDesc(op, userMsg), ftag.With(kind))
}

func invalidInput(err error, op, userMsg string) error {
	return tagged(err, KindInvalidInput, op, userMsg)
}

func storageFailure(err error, op string) error {
	return tagged(err, KindStorageFailure, op, "Could not save. Storage may be full.")
}

func tempoNotSaved(err error) error {
	return tagged(fmt.Errorf("%w: %v", ErrTempoNotSaved, err), KindStorageFailure,
		"save tempo", "Tempo changed but could not be saved. Storage may be full.")
}

// IsTempoNotSaved reports whether err only means the new tempo was applied
// in memory but could not be persisted. Callers treat it as a warning.
func IsTempoNotSaved(err error) bool {
	return errors.Is(err, ErrTempoNotSaved)
}
