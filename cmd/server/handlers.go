package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/logger"
	"github.com/himanishpuri/quadracalc/pkg/models"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service *quadracalc.Service
	config  *ServerConfig
	log     quadracalc.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	StaticDir      string
	AllowedOrigins []string
	AccessLog      bool
}

// NewServer creates a new server instance
func NewServer(service *quadracalc.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps a service error to its HTTP status.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	kind := quadracalc.Kind(err)
	status := statusForKind(string(kind))
	if status >= http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
	} else {
		s.log.Debugf("Request rejected (%s): %v", kind, err)
	}
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Kind:    string(kind),
		Message: quadracalc.UserMessage(err),
		Code:    status,
	})
}

// splitWarning separates a tempo that was applied but not saved from a real
// failure. The warning text goes into the success response.
func splitWarning(err error) (string, error) {
	if quadracalc.IsTempoNotSaved(err) {
		return quadracalc.UserMessage(err), nil
	}
	return "", err
}

func statusForKind(kind string) int {
	switch kind {
	case string(quadracalc.KindInvalidInput):
		return http.StatusBadRequest
	case string(quadracalc.KindInsufficientData):
		return http.StatusUnprocessableEntity
	case string(quadracalc.KindStorageFailure):
		return http.StatusInsufficientStorage
	case string(quadracalc.KindCapabilityAbsent):
		return http.StatusNotImplemented
	case string(quadracalc.KindNotFound):
		return http.StatusNotFound
	case string(quadracalc.KindAlreadyExists):
		return http.StatusConflict
	case string(quadracalc.KindCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			s.respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			s.respondError(w, http.StatusBadRequest, "Request body is empty")
		default:
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		}
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "quadra.calc API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"delays":            "GET /api/delays?bpm=120",
			"tapEstimate":       "POST /api/tap/estimate",
			"clockEstimate":     "POST /api/clock/estimate",
			"bpm":               "GET|PUT /api/bpm",
			"presets":           "GET|POST /api/presets",
			"preset":            "GET|DELETE /api/presets/{id}",
			"loadPreset":        "POST /api/presets/{id}/load",
			"subdivisions":      "GET|POST /api/subdivisions",
			"deleteSubdivision": "DELETE /api/subdivisions/{name}",
			"settings":          "GET|PUT /api/settings",
			"history":           "GET|DELETE /api/history",
			"export":            "GET /api/export",
			"share":             "GET /api/share",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"bpm":    s.service.CurrentBPM(),
	})
}

// handleDelays handles GET /api/delays. The optional bpm query parameter
// overrides the current tempo without changing it.
func (s *Server) handleDelays(w http.ResponseWriter, r *http.Request) {
	bpm := s.service.CurrentBPM()
	if raw := r.URL.Query().Get("bpm"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "bpm must be an integer")
			return
		}
		bpm = v
	}

	groups, err := s.service.DelaysFor(bpm)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	quick, err := subdivision.Quick(bpm)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	f := s.service.Formatter()
	formatted := make(map[string]string)
	for _, g := range groups {
		for _, d := range g.Delays {
			formatted[d.Name] = f.Format(d.Ms)
		}
	}

	s.respondJSON(w, http.StatusOK, DelaysResponse{
		BPM:    bpm,
		Unit:   string(f.Unit),
		Groups: groups,
		Quick:  quick,
		Values: formatted,
	})
}

// handleTapEstimate handles POST /api/tap/estimate
func (s *Server) handleTapEstimate(w http.ResponseWriter, r *http.Request) {
	var req TapEstimateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Timestamps) > MaxTapSamples {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("too many timestamps: %d (maximum: %d)", len(req.Timestamps), MaxTapSamples))
		return
	}

	est, err := quadracalc.EstimateTaps(req.Timestamps, req.MaxTaps)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	resp := TapEstimateResponse{Estimate: est}
	if req.Apply {
		warning, err := splitWarning(s.service.SetBPM(est.BPM))
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		resp.Applied = true
		resp.Warning = warning
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleClockEstimate handles POST /api/clock/estimate
func (s *Server) handleClockEstimate(w http.ResponseWriter, r *http.Request) {
	var req ClockEstimateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Pulses) > MaxClockPulses {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("too many pulses: %d (maximum: %d)", len(req.Pulses), MaxClockPulses))
		return
	}

	res, err := quadracalc.EstimateClock(req.Pulses)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	resp := ClockEstimateResponse{Result: res}
	if req.Apply {
		warning, err := splitWarning(s.service.SetBPM(res.BPM))
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		resp.Applied = true
		resp.Warning = warning
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetBPM handles GET /api/bpm
func (s *Server) handleGetBPM(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, BPMResponse{BPM: s.service.CurrentBPM()})
}

// handlePutBPM handles PUT /api/bpm
func (s *Server) handlePutBPM(w http.ResponseWriter, r *http.Request) {
	var req BPMRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var (
		bpm int
		err error
	)
	switch {
	case req.BPM != nil:
		bpm = *req.BPM
		err = s.service.SetBPM(bpm)
	case req.Nudge != 0:
		bpm, err = s.service.NudgeBPM(req.Nudge)
	case req.Action == "halve":
		bpm, err = s.service.HalveBPM()
	case req.Action == "double":
		bpm, err = s.service.DoubleBPM()
	default:
		s.respondError(w, http.StatusBadRequest, "one of bpm, nudge or action (halve, double) is required")
		return
	}
	warning, err := splitWarning(err)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, BPMResponse{BPM: bpm, Warning: warning})
}

// handleListPresets handles GET /api/presets
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := s.service.Presets()
	if presets == nil {
		presets = []models.Preset{}
	}
	s.respondJSON(w, http.StatusOK, ListPresetsResponse{Presets: presets, Count: len(presets)})
}

// handleSavePreset handles POST /api/presets
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req SavePresetRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	preset, err := s.service.SavePreset(req.Name)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, preset)
}

// handleGetPreset handles GET /api/presets/{id}
func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.service.GetPreset(r.PathValue("id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, preset)
}

// handleLoadPreset handles POST /api/presets/{id}/load
func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.service.LoadPreset(r.PathValue("id"))
	warning, err := splitWarning(err)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, LoadPresetResponse{Preset: preset, Warning: warning})
}

// handleDeletePreset handles DELETE /api/presets/{id}
func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeletePreset(id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.log.Infof("Deleted preset %s", id)
	s.respondJSON(w, http.StatusOK, MessageResponse{Message: "Preset deleted"})
}

// handleListSubdivisions handles GET /api/subdivisions
func (s *Server) handleListSubdivisions(w http.ResponseWriter, r *http.Request) {
	subs := s.service.Subdivisions()
	if subs == nil {
		subs = []models.CustomSubdivision{}
	}
	s.respondJSON(w, http.StatusOK, ListSubdivisionsResponse{Subdivisions: subs, Count: len(subs)})
}

// handleAddSubdivision handles POST /api/subdivisions
func (s *Server) handleAddSubdivision(w http.ResponseWriter, r *http.Request) {
	var req AddSubdivisionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sub, err := s.service.AddSubdivision(req.Name, req.Factor)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sub)
}

// handleDeleteSubdivision handles DELETE /api/subdivisions/{name}
func (s *Server) handleDeleteSubdivision(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveSubdivision(r.PathValue("name")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{Message: "Subdivision removed"})
}

// handleGetSettings handles GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.service.Settings())
}

// handlePutSettings handles PUT /api/settings
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req quadracalc.SettingsUpdate
	if !s.decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.service.UpdateSettings(req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// handleHistory handles GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.service.History()
	if history == nil {
		history = []models.HistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{History: history, Count: len(history)})
}

// handleClearHistory handles DELETE /api/history
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MessageResponse{Message: "History cleared"})
}

// handleExport handles GET /api/export as a JSON download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportJSON()
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.service.ExportFilename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warnf("Failed to write export: %v", err)
	}
}

// handleShare handles GET /api/share
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, s.service.ShareText()); err != nil {
		s.log.Warnf("Failed to write share text: %v", err)
	}
}
