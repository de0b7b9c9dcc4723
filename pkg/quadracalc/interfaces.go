package quadracalc

import (
	"github.com/himanishpuri/quadracalc/internal/tempo"
)

// Storage is a small key-value store of named string blobs.
// Get returns storage.ErrNotFound for a missing key.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// TapListener is called whenever a tap session finalizes, either on its own
// after the quiet period or through FinalizeTap. err is non-nil when no tempo
// could be estimated.
type TapListener func(est tempo.Estimate, err error)
