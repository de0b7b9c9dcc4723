package subdivision

import (
	"errors"
	"math"
	"testing"
)

func findDelay(t *testing.T, delays []Delay, name string) Delay {
	t.Helper()
	for _, d := range delays {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("Subdivision %q not found", name)
	return Delay{}
}

func TestComputeAt120(t *testing.T) {
	delays, err := Compute(120, Standard())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	tests := []struct {
		name string
		ms   float64
	}{
		{"Quarter Note (1/4)", 500.00},
		{"Eighth Note (1/8)", 250.00},
		{"Quarter Note Triplet", 166.67},
		{"Dotted Eighth", 375.00},
		{"Whole Note (1/1)", 2000.00},
		{"Septuplet", 142.86},
		{"4 Bars", 8000.00},
	}
	for _, tt := range tests {
		if got := findDelay(t, delays, tt.name).Ms; got != tt.ms {
			t.Errorf("%s: expected %.2f ms, got %.2f", tt.name, tt.ms, got)
		}
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute(12, Standard()); !errors.Is(err, ErrInvalidBPM) {
		t.Errorf("Expected ErrInvalidBPM for 12 BPM, got %v", err)
	}
	if _, err := Compute(301, Standard()); !errors.Is(err, ErrInvalidBPM) {
		t.Errorf("Expected ErrInvalidBPM for 301 BPM, got %v", err)
	}

	bad := []Subdivision{{Name: "zero", Factor: 0}}
	if _, err := Compute(120, bad); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("Expected ErrInvalidFactor, got %v", err)
	}
	if _, err := DelayMs(120, math.NaN()); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("Expected ErrInvalidFactor for NaN, got %v", err)
	}
}

func TestStandardTableIsCopied(t *testing.T) {
	subs := Standard()
	subs[0].Factor = 99
	if Standard()[0].Factor != 4 {
		t.Error("Mutating the returned table changed the built-in one")
	}
	if len(subs) != 21 {
		t.Errorf("Expected 21 built-in subdivisions, got %d", len(subs))
	}
}

func TestGroupByCategoryOrder(t *testing.T) {
	custom, err := NewCustom("Wide", 2.5)
	if err != nil {
		t.Fatalf("NewCustom failed: %v", err)
	}
	if custom.Note != "2.5x" || custom.Category != Custom {
		t.Errorf("Unexpected custom subdivision %+v", custom)
	}

	delays, err := Compute(100, append(Standard(), custom))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	groups := GroupByCategory(delays)

	want := Categories()
	if len(groups) != len(want) {
		t.Fatalf("Expected %d groups, got %d", len(want), len(groups))
	}
	for i, g := range groups {
		if g.Category != want[i] {
			t.Errorf("Group %d: expected %s, got %s", i, want[i], g.Category)
		}
	}
	if groups[len(groups)-1].Delays[0].Ms != 1500 {
		t.Errorf("Expected custom delay 1500 ms, got %.2f", groups[len(groups)-1].Delays[0].Ms)
	}

	if groups := GroupByCategory(delays[:3]); len(groups) != 1 {
		t.Errorf("Expected empty categories to be omitted, got %d groups", len(groups))
	}
}

func TestNewCustomRejectsNonPositive(t *testing.T) {
	if _, err := NewCustom("x", -1); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("Expected ErrInvalidFactor, got %v", err)
	}
}

func TestQuick(t *testing.T) {
	q, err := Quick(120)
	if err != nil {
		t.Fatalf("Quick failed: %v", err)
	}
	want := map[string]float64{
		"Quarter": 500, "Eighth": 250, "Sixteenth": 125,
		"Triplet": 166.67, "Dotted": 375, "Whole": 2000,
	}
	for _, r := range q {
		if want[r.Label] != r.Ms {
			t.Errorf("%s: expected %.2f, got %.2f", r.Label, want[r.Label], r.Ms)
		}
	}
}
