package subdivision

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	MinBPM = 30
	MaxBPM = 300
)

var (
	ErrInvalidBPM    = errors.New("BPM must be between 30 and 300")
	ErrInvalidFactor = errors.New("factor must be a positive number")
)

type Category string

const (
	Simple   Category = "Simple"
	Dotted   Category = "Dotted"
	Triplet  Category = "Triplet"
	Creative Category = "Creative"
	LFO      Category = "LFO"
	Custom   Category = "Custom"
)

// Categories lists the categories in display order.
func Categories() []Category {
	return []Category{Simple, Dotted, Triplet, Creative, LFO, Custom}
}

// Subdivision is a named multiple of one beat.
type Subdivision struct {
	Name     string   `json:"name"`
	Factor   float64  `json:"factor"`
	Note     string   `json:"note"`
	Category Category `json:"category"`
}

// Delay is a subdivision resolved against a tempo.
type Delay struct {
	Subdivision
	Ms float64 `json:"ms"`
}

// Group holds the delays of one category.
type Group struct {
	Category Category `json:"category"`
	Delays   []Delay  `json:"delays"`
}

var standard = []Subdivision{
	{"Whole Note (1/1)", 4, "4 beats", Simple},
	{"Half Note (1/2)", 2, "2 beats", Simple},
	{"Quarter Note (1/4)", 1, "1 beat", Simple},
	{"Eighth Note (1/8)", 0.5, "1/2 beat", Simple},
	{"Sixteenth Note (1/16)", 0.25, "1/4 beat", Simple},
	{"Thirty-Second (1/32)", 0.125, "1/8 beat", Simple},

	{"Dotted Half", 3, "3 beats", Dotted},
	{"Dotted Quarter", 1.5, "1.5 beats", Dotted},
	{"Dotted Eighth", 0.75, "0.75 beats", Dotted},
	{"Dotted Sixteenth", 0.375, "0.375 beats", Dotted},

	{"Half Note Triplet", 2.0 / 3, "0.67 beats", Triplet},
	{"Quarter Note Triplet", 1.0 / 3, "0.33 beats", Triplet},
	{"Eighth Note Triplet", 1.0 / 6, "0.17 beats", Triplet},
	{"Sixteenth Triplet", 1.0 / 12, "0.083 beats", Triplet},

	{"Golden Ratio", 1.618, "Phi (φ)", Creative},
	{"Golden Ratio Inv", 0.618, "1/φ", Creative},
	{"Quintuplet", 0.4, "1/5 beat", Creative},
	{"Septuplet", 2.0 / 7, "1/7 beat", Creative},

	{"2 Bars", 8, "Slow mod", LFO},
	{"4 Bars", 16, "Very slow", LFO},
	{"Swing Eighth", 2.0 / 3, "Swing feel", LFO},
}

// Standard returns a copy of the built-in subdivision table.
func Standard() []Subdivision {
	return append([]Subdivision(nil), standard...)
}

// NewCustom builds a user-defined subdivision.
func NewCustom(name string, factor float64) (Subdivision, error) {
	if !validFactor(factor) {
		return Subdivision{}, ErrInvalidFactor
	}
	return Subdivision{
		Name:     name,
		Factor:   factor,
		Note:     strconv.FormatFloat(factor, 'f', -1, 64) + "x",
		Category: Custom,
	}, nil
}

// Beat returns the length of one quarter note in ms.
func Beat(bpm int) (float64, error) {
	if bpm < MinBPM || bpm > MaxBPM {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidBPM, bpm)
	}
	return 60000 / float64(bpm), nil
}

// DelayMs returns round2(60000/bpm * factor).
func DelayMs(bpm int, factor float64) (float64, error) {
	beat, err := Beat(bpm)
	if err != nil {
		return 0, err
	}
	if !validFactor(factor) {
		return 0, ErrInvalidFactor
	}
	return Round2(beat * factor), nil
}

// Compute resolves every subdivision against bpm, preserving order.
func Compute(bpm int, subs []Subdivision) ([]Delay, error) {
	out := make([]Delay, 0, len(subs))
	for _, sub := range subs {
		ms, err := DelayMs(bpm, sub.Factor)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sub.Name, err)
		}
		out = append(out, Delay{Subdivision: sub, Ms: ms})
	}
	return out, nil
}

// GroupByCategory buckets delays in display order, omitting empty categories.
func GroupByCategory(delays []Delay) []Group {
	byCat := make(map[Category][]Delay)
	for _, d := range delays {
		byCat[d.Category] = append(byCat[d.Category], d)
	}

	groups := make([]Group, 0, len(byCat))
	for _, cat := range Categories() {
		if ds, ok := byCat[cat]; ok {
			groups = append(groups, Group{Category: cat, Delays: ds})
		}
	}
	return groups
}

// QuickResult is one of the headline values shown next to the tap pad.
type QuickResult struct {
	Label string  `json:"label"`
	Ms    float64 `json:"ms"`
}

var quick = []struct {
	label  string
	factor float64
}{
	{"Quarter", 1},
	{"Eighth", 0.5},
	{"Sixteenth", 0.25},
	{"Triplet", 1.0 / 3},
	{"Dotted", 0.75},
	{"Whole", 4},
}

func Quick(bpm int) ([]QuickResult, error) {
	out := make([]QuickResult, 0, len(quick))
	for _, q := range quick {
		ms, err := DelayMs(bpm, q.factor)
		if err != nil {
			return nil, err
		}
		out = append(out, QuickResult{Label: q.label, Ms: ms})
	}
	return out, nil
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
