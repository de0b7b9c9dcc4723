package main

import (
	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/internal/tempo"
	"github.com/himanishpuri/quadracalc/pkg/models"
)

// Request body limits.
const (
	MaxRequestBytes = 64 << 10
	MaxTapSamples   = 1000
	MaxClockPulses  = 10000
)

// DelaysResponse is the response for GET /api/delays
type DelaysResponse struct {
	BPM    int                       `json:"bpm"`
	Unit   string                    `json:"unit"`
	Groups []subdivision.Group       `json:"groups"`
	Quick  []subdivision.QuickResult `json:"quick"`
	Values map[string]string         `json:"formatted"`
}

// TapEstimateRequest is the request body for POST /api/tap/estimate
type TapEstimateRequest struct {
	// Timestamps are tap times in milliseconds on any monotonic clock.
	Timestamps []float64 `json:"timestamps"`
	MaxTaps    int       `json:"maxTaps,omitempty"`
	Apply      bool      `json:"apply,omitempty"`
}

type TapEstimateResponse struct {
	tempo.Estimate
	Applied bool   `json:"applied"`
	Warning string `json:"warning,omitempty"`
}

// ClockEstimateRequest is the request body for POST /api/clock/estimate
type ClockEstimateRequest struct {
	Pulses []float64 `json:"pulses"`
	Apply  bool      `json:"apply,omitempty"`
}

type ClockEstimateResponse struct {
	clocksync.Result
	Applied bool   `json:"applied"`
	Warning string `json:"warning,omitempty"`
}

// BPMRequest is the request body for PUT /api/bpm. Exactly one of BPM,
// Nudge or Action is used, in that order.
type BPMRequest struct {
	BPM    *int   `json:"bpm,omitempty"`
	Nudge  int    `json:"nudge,omitempty"`
	Action string `json:"action,omitempty"` // "halve" or "double"
}

// BPMResponse carries the tempo after a change. Warning is set when the
// tempo was applied but could not be saved.
type BPMResponse struct {
	BPM     int    `json:"bpm"`
	Warning string `json:"warning,omitempty"`
}

type SavePresetRequest struct {
	Name string `json:"name"`
}

type LoadPresetResponse struct {
	models.Preset
	Warning string `json:"warning,omitempty"`
}

type ListPresetsResponse struct {
	Presets []models.Preset `json:"presets"`
	Count   int             `json:"count"`
}

type AddSubdivisionRequest struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

type ListSubdivisionsResponse struct {
	Subdivisions []models.CustomSubdivision `json:"subdivisions"`
	Count        int                        `json:"count"`
}

type HistoryResponse struct {
	History []models.HistoryEntry `json:"history"`
	Count   int                   `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
