//go:build !js && !wasm

package quadracalc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/quadracalc/pkg/logger"
)

func TestDefaultStorageUsesEnvPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "env.sqlite3")
	t.Setenv("QUADRA_DB_PATH", dbPath)

	svc, err := NewService(WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := svc.SetBPM(77); err != nil {
		t.Fatalf("SetBPM failed: %v", err)
	}
	svc.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("Expected database at %s: %v", dbPath, err)
	}

	reopened, err := NewService(WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("Reopening failed: %v", err)
	}
	defer reopened.Close()
	if reopened.CurrentBPM() != 77 {
		t.Errorf("Expected persisted tempo 77, got %d", reopened.CurrentBPM())
	}
}

func TestExplicitPathWins(t *testing.T) {
	t.Setenv("QUADRA_DB_PATH", filepath.Join(t.TempDir(), "ignored.sqlite3"))
	dbPath := filepath.Join(t.TempDir(), "explicit.sqlite3")

	svc, err := NewService(WithDBPath(dbPath), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	svc.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("Expected database at %s: %v", dbPath, err)
	}
}
