package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	if a == b {
		t.Error("Expected two different UUIDs")
	}
	if !IsUUID(a) {
		t.Errorf("Expected %q to parse as a UUID", a)
	}
	if IsUUID("preset-1") {
		t.Error("Expected non-UUID to be rejected")
	}
}

func TestNameHelpers(t *testing.T) {
	if !HasUnsafeChars(`Rock & Roll`) {
		t.Error("Expected & to be unsafe")
	}
	if HasUnsafeChars("Dub Delay") {
		t.Error("Expected plain name to be safe")
	}
	if got := CleanName("  Slapback \t"); got != "Slapback" {
		t.Errorf("Expected trimmed name, got %q", got)
	}
	if got := NameLength("φφφ"); got != 3 {
		t.Errorf("Expected 3 characters, got %d", got)
	}
	if !SameName("Dub", "DUB") {
		t.Error("Expected case-insensitive match")
	}
}

func TestWholeNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want int
		ok   bool
	}{
		{120, 120, true},
		{-5, -5, true},
		{0, 0, true},
		{120.7, 0, false},
		{-0.5, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{1e12, 0, false},
	}
	for _, tt := range tests {
		got, ok := WholeNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("WholeNumber(%v): expected (%d, %v), got (%d, %v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	if err := WriteFileAtomic(path, []byte(`{"bpm":120}`)); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	if string(data) != `{"bpm":120}` {
		t.Errorf("Expected file contents to match, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected temp file to be cleaned up, found %d entries", len(entries))
	}
}
