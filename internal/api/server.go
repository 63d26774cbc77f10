// Package api exposes the operator HTTP surface of the engine: puzzle control,
// state, the websocket observer stream, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dyluth/lair/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Options wires the optional handlers into the router.
type Options struct {
	// Stream serves GET /ws.
	Stream http.Handler
	// Health serves GET /healthz.
	Health http.Handler
	// Metrics backs GET /metrics.
	Metrics *orchestrator.Collector
	Logger  logrus.FieldLogger
}

// Server is the operator API.
type Server struct {
	engine *orchestrator.Engine
	opts   Options
	logger logrus.FieldLogger
	server *http.Server
}

// StatusResponse reports the active puzzle after an operator command.
type StatusResponse struct {
	ActivePuzzle int `json:"active_puzzle"`
}

// PuzzlesResponse lists the registered puzzles.
type PuzzlesResponse struct {
	Puzzles      []int `json:"puzzles"`
	ActivePuzzle int   `json:"active_puzzle"`
}

// NewServer creates the API server for engine.
func NewServer(engine *orchestrator.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		engine: engine,
		opts:   opts,
		logger: logger.WithField("component", "api"),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)

	router.Route("/puzzles", func(r chi.Router) {
		r.Get("/", s.handlePuzzles)
		r.Post("/{puzzleID}/start", s.handleStart)
	})
	router.Post("/stop", s.handleStop)
	router.Post("/reset", s.handleReset)
	router.Post("/timer_expired", s.handleTimerExpired)
	router.Get("/state", s.handleState)

	if s.opts.Stream != nil {
		router.Get("/ws", s.opts.Stream.ServeHTTP)
	}
	if s.opts.Health != nil {
		router.Get("/healthz", s.opts.Health.ServeHTTP)
	}
	if s.opts.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("api listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return <-errCh
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "puzzleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid puzzle id %q", chi.URLParam(r, "puzzleID")))
		return
	}

	if err := s.engine.Start(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrUnknownPuzzle) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{ActivePuzzle: s.engine.Active()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, StatusResponse{ActivePuzzle: s.engine.Active()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	writeJSON(w, http.StatusOK, StatusResponse{ActivePuzzle: s.engine.Active()})
}

func (s *Server) handleTimerExpired(w http.ResponseWriter, r *http.Request) {
	s.engine.TimerExpired()
	writeJSON(w, http.StatusOK, StatusResponse{ActivePuzzle: s.engine.Active()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handlePuzzles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PuzzlesResponse{
		Puzzles:      s.engine.Puzzles(),
		ActivePuzzle: s.engine.Active(),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
