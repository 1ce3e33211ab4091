package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/discourselab/poliscope/api/models"
	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/backend"
	"github.com/discourselab/poliscope/internal/config"
	"github.com/discourselab/poliscope/internal/engine"
)

// Error kinds reported to clients. The strings are stable; the
// messages around them are not.
const (
	kindInvalidRequest     = "invalid_request"
	kindEmptyInput         = "empty_input"
	kindSourceUnavailable  = "source_unavailable"
	kindBackendUnavailable = "backend_unavailable"
	kindBackendRejected    = "backend_rejected"
	kindAnalysisFailed     = "analysis_failed"
	kindInternal           = "internal"
)

type Server struct {
	cfg    config.ServerConfig
	router *chi.Mux
	engine *engine.Engine
	server *http.Server
}

func New(cfg *config.Config, eng *engine.Engine) *Server {
	s := &Server{
		cfg:    cfg.Server,
		router: chi.NewRouter(),
		engine: eng,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	// Analyses block on a model round trip, with retries on top.
	s.router.Use(middleware.Timeout(2 * time.Minute))

	s.router.Handle("/metrics", promhttp.Handler())

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/health", s.handleHealth)
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	slog.Info("Handling analyze request")

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	slog.Debug("Received analysis request",
		"text_len", len(req.Text),
		"source", req.Source,
	)

	ctx := r.Context()
	opts := requestOptions(req.Options)

	var (
		result *analysis.Result
		err    error
	)
	switch {
	case req.Text != "":
		result, err = s.engine.AnalyzeText(ctx, req.Text, opts...)
	case req.Source != "":
		result, err = s.engine.AnalyzeSource(ctx, req.Source, opts...)
	default:
		writeError(w, http.StatusBadRequest, kindEmptyInput, "either text or source must be provided")
		return
	}
	if err != nil {
		slog.Error("Analysis request failed", "error", err)
		status, kind := classify(err)
		writeError(w, status, kind, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Encoding analysis result failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	if err != nil {
		slog.Error("Health check request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// requestOptions translates the wire options into engine options,
// skipping fields the client left unset.
func requestOptions(o models.AnalysisOptions) []engine.Option {
	var opts []engine.Option
	if o.Model != "" {
		opts = append(opts, func(eo *engine.Options) { eo.Model = o.Model })
	}
	if o.Language != "" {
		opts = append(opts, func(eo *engine.Options) { eo.Language = o.Language })
	}
	if o.Temperature != nil {
		opts = append(opts, func(eo *engine.Options) { eo.Temperature = o.Temperature })
	}
	return opts
}

func classify(err error) (status int, kind string) {
	switch {
	case errors.Is(err, engine.ErrEmptyInput):
		return http.StatusBadRequest, kindEmptyInput
	case errors.Is(err, engine.ErrSourceUnavailable):
		return http.StatusNotFound, kindSourceUnavailable
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusBadGateway, kindBackendUnavailable
	case errors.Is(err, backend.ErrRejected):
		return http.StatusBadGateway, kindBackendRejected
	case errors.Is(err, engine.ErrAnalysisFailed):
		return http.StatusUnprocessableEntity, kindAnalysisFailed
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Kind: kind})
}

func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("Starting shutdown", "signal", sig)

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
