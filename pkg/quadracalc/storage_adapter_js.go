//go:build js && wasm

package quadracalc

import (
	"github.com/himanishpuri/quadracalc/pkg/quadracalc/storage"
)

// defaultStorage uses window.localStorage, falling back to memory when it is
// unavailable (private browsing, sandboxed iframes).
func defaultStorage(cfg *Config) (Storage, error) {
	ls, err := storage.NewLocalStorage("")
	if err != nil {
		cfg.Logger.Warnf("localStorage unavailable, settings will not persist: %v", err)
		return storage.NewMemoryStore(storage.MaxBlobBytes), nil
	}
	return ls, nil
}
