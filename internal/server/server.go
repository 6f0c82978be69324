// Package server provides the HTTP API and live display feeds for signbridge.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/stability"
	"github.com/ayusman/signbridge/internal/store"
)

// Recognizer is the recognition session as seen by the API.
type Recognizer interface {
	Start() (string, error)
	Stop()
	Snapshot() session.Snapshot
	Stats() session.Stats
	SetThreshold(t float64) error
}

// Config holds the server configuration. Every collaborator is optional;
// routes are only mounted for the ones provided.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Recognizer Recognizer
	Display    *DisplayHub
	Preview    *capture.Preview
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router chi.Router
	logger *zap.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Recognizer != nil {
		r.Get("/api/state", s.handleState)
		r.Post("/api/session/start", s.handleStart)
		r.Post("/api/session/stop", s.handleStop)
		r.Put("/api/session/threshold", s.handleThreshold)
	}
	if s.config.Recognizer != nil || s.config.Store != nil {
		r.Get("/api/stats", s.handleStats)
	}

	if s.config.Store != nil {
		api.NewLabelHandler(s.config.Store).Routes(r)
		api.NewHistoryHandler(s.config.Store).Routes(r)
	}

	if s.config.Display != nil {
		r.Handle("/api/display", s.config.Display)
	}
	if s.config.Preview != nil {
		r.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}
	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.config.Recognizer.Snapshot())
}

// handleStart handles POST /api/session/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	runID, err := s.config.Recognizer.Start()
	if err != nil {
		if errors.Is(err, session.ErrAlreadyRunning) {
			api.WriteError(w, http.StatusConflict, "Session already running")
			return
		}
		s.logger.Error("failed to start session", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

// handleStop handles POST /api/session/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.config.Recognizer.Stop()
	api.WriteJSON(w, http.StatusOK, s.config.Recognizer.Snapshot())
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

// handleThreshold handles PUT /api/session/threshold.
func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Threshold == nil {
		api.WriteError(w, http.StatusBadRequest, "Threshold is required")
		return
	}

	if err := s.config.Recognizer.SetThreshold(*req.Threshold); err != nil {
		if errors.Is(err, stability.ErrInvalidConfig) {
			api.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to set threshold", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Failed to set threshold")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]float64{"threshold": *req.Threshold})
}

type statsResponse struct {
	Run    *session.Stats    `json:"run,omitempty"`
	Labels []store.LabelStat `json:"labels,omitempty"`
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if s.config.Recognizer != nil {
		stats := s.config.Recognizer.Stats()
		resp.Run = &stats
	}
	if s.config.Store != nil {
		labels, err := api.NewHistoryHandler(s.config.Store).LabelStats()
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, "Failed to load label statistics")
			return
		}
		resp.Labels = labels
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// HTTPServer returns an http.Server for addr so callers can shut it down.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
