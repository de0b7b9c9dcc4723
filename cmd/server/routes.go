package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Root: the web app when configured, otherwise the endpoint index
	if s.config.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.config.StaticDir)))
	} else {
		mux.HandleFunc("GET /", s.handleRoot)
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	// Calculation
	mux.HandleFunc("GET /api/delays", s.handleDelays)
	mux.HandleFunc("POST /api/tap/estimate", s.handleTapEstimate)
	mux.HandleFunc("POST /api/clock/estimate", s.handleClockEstimate)
	mux.HandleFunc("GET /api/bpm", s.handleGetBPM)
	mux.HandleFunc("PUT /api/bpm", s.handlePutBPM)

	// Presets
	mux.HandleFunc("GET /api/presets", s.handleListPresets)
	mux.HandleFunc("POST /api/presets", s.handleSavePreset)
	mux.HandleFunc("GET /api/presets/{id}", s.handleGetPreset)
	mux.HandleFunc("DELETE /api/presets/{id}", s.handleDeletePreset)
	mux.HandleFunc("POST /api/presets/{id}/load", s.handleLoadPreset)

	// Custom subdivisions
	mux.HandleFunc("GET /api/subdivisions", s.handleListSubdivisions)
	mux.HandleFunc("POST /api/subdivisions", s.handleAddSubdivision)
	mux.HandleFunc("DELETE /api/subdivisions/{name}", s.handleDeleteSubdivision)

	// Settings, history and export
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/share", s.handleShare)

	var handler http.Handler = mux
	if s.config.AccessLog {
		handler = loggingMiddleware(s.log)(handler)
	}

	// Wrap with CORS middleware
	return corsMiddleware(s.config.AllowedOrigins)(handler)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type requestLogger interface {
	Infof(format string, args ...any)
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(log requestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Infof("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, getClientIP(r),
				wrapped.statusCode, time.Since(start).Round(time.Microsecond))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Infof("quadra.calc server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	if s.config.StaticDir != "" {
		s.log.Infof("   Static files: %s", s.config.StaticDir)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Infof("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
