//go:build !js && !wasm

package quadracalc

import (
	"github.com/himanishpuri/quadracalc/pkg/quadracalc/storage"
)

// NewSQLiteStorage opens (or creates) the sqlite blob store at dbPath. An
// empty path uses QUADRA_DB_PATH, then storage.DefaultDBFile.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	var (
		db  *storage.DBClient
		err error
	)
	if dbPath == "" {
		db, err = storage.NewDBClient()
	} else {
		db, err = storage.NewDBClientWithPath(dbPath)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

func defaultStorage(cfg *Config) (Storage, error) {
	return NewSQLiteStorage(cfg.DBPath)
}
