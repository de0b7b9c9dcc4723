package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestMemoryStoreQuota(t *testing.T) {
	m := NewMemoryStore(10)

	if err := m.Set("a", "12345"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := m.Set("b", "123456"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
	// Overwriting a key only counts the difference.
	if err := m.Set("a", "1234567890"); err != nil {
		t.Fatalf("Expected overwrite within quota, got %v", err)
	}
	if err := m.Delete("a"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := m.Set("b", "123456"); err != nil {
		t.Errorf("Expected space freed by delete, got %v", err)
	}
}

func TestMemoryStoreUnlimited(t *testing.T) {
	m := NewMemoryStore(0)

	if err := m.Set("big", strings.Repeat("x", 4096)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := m.Set("huge", strings.Repeat("x", MaxBlobBytes+1)); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Expected per-blob cap to apply, got %v", err)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	m.Set("a", "1")
	keys, _ := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "big" {
		t.Errorf("Expected sorted keys, got %v", keys)
	}
}
