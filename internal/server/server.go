// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"AlphaSentinel/internal/analysis"
	"AlphaSentinel/internal/model"
	"AlphaSentinel/internal/recorder"
)

// Analyzer runs an analysis for a company name.
type Analyzer interface {
	Analyze(ctx context.Context, companyName string) *analysis.Result
}

// Config wires the server's collaborators.
type Config struct {
	Addr     string
	Analyzer Analyzer
	// History is optional; without it /history answers 404.
	History recorder.Recorder
	Log     zerolog.Logger
	// RequestTimeout bounds a whole request. Zero uses two minutes.
	RequestTimeout time.Duration
}

// Server is the HTTP surface.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	analyzer Analyzer
	history  recorder.Recorder
	log      zerolog.Logger
}

// New creates a server with middleware and routes installed.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		analyzer: cfg.Analyzer,
		history:  cfg.History,
		log:      cfg.Log.With().Str("component", "server").Logger(),
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	s.setupMiddleware(timeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware(timeout time.Duration) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(timeout))

	// The web client is served from another origin.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/analyze", s.handleAnalyze)
	s.router.Get("/history/{ticker}", s.handleHistory)
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type detail struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "AlphaSentinel API is online. Please use the /analyze endpoint.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	CompanyName string `json:"company_name"`
}

// statusFor maps error kinds to HTTP statuses.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.ErrorNotFound:
		return http.StatusNotFound
	case model.ErrorNoData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, detail{Detail: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		writeJSON(w, http.StatusBadRequest, detail{Detail: "Company name is required"})
		return
	}

	res := s.analyzer.Analyze(r.Context(), req.CompanyName)
	if res.Cache != "" {
		w.Header().Set("X-Cache", string(res.Cache))
	}
	if !res.OK() {
		writeJSON(w, statusFor(res.Err.Kind), res.Err)
		return
	}
	writeJSON(w, http.StatusOK, res.Report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, detail{Detail: "History is not enabled"})
		return
	}
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, detail{Detail: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	recs, err := s.history.History(r.Context(), ticker, limit)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, detail{Detail: "History unavailable"})
		return
	}
	if recs == nil {
		recs = []recorder.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
