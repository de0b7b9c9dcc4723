package models

// CustomSubdivision is a user-defined beat multiple.
type CustomSubdivision struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Preset is a saved snapshot of the calculator. Timestamp is Unix ms.
type Preset struct {
	ID                 string              `json:"id,omitempty"`
	Name               string              `json:"name"`
	BPM                int                 `json:"bpm"`
	SampleRate         int                 `json:"sampleRate,omitempty"`
	DisplayMode        string              `json:"displayMode,omitempty"`
	CustomSubdivisions []CustomSubdivision `json:"customSubdivisions"`
	Timestamp          int64               `json:"timestamp"`
}

// Settings is the persisted calculator state.
type Settings struct {
	SampleRate    int    `json:"sampleRate"`
	DisplayMode   string `json:"displayMode"`
	HapticEnabled bool   `json:"hapticEnabled"`
	CurrentBPM    int    `json:"currentBpm,omitempty"`
}

// HistoryEntry records one applied tempo. Time is Unix ms.
type HistoryEntry struct {
	BPM  int   `json:"bpm"`
	Time int64 `json:"time"`
}
