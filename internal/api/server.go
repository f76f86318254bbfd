package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/practice-engine/internal/config"
	"github.com/terra-clan/practice-engine/internal/session"
	"github.com/terra-clan/practice-engine/internal/storage"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API serves from
type Deps struct {
	Sessions *session.Manager
	Catalog  storage.Catalog
	History  storage.SessionHistory

	// Ready lists named dependencies that must answer for /ready
	Ready map[string]Pinger

	RunRate  float64
	RunBurst int
}

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	deps    Deps
	limiter *sessionLimiter
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		config:  cfg,
		deps:    deps,
		limiter: newSessionLimiter(deps.RunRate, deps.RunBurst, time.Hour),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/topics", s.handleListTopics)

		r.Route("/sessions", func(r chi.Router) {
			timeout := middleware.Timeout(60 * time.Second)

			r.With(timeout).Post("/", s.handleStartSession)
			r.With(timeout).Get("/", s.handleListSessions)

			r.Route("/{id}", func(r chi.Router) {
				// The event stream is long-lived and must not inherit the timeout
				r.Get("/events", s.handleSessionEvents)

				r.Group(func(r chi.Router) {
					r.Use(timeout)

					r.Get("/", s.handleGetSession)
					r.Get("/question", s.handleCurrentQuestion)
					r.With(s.limiter.Middleware).Post("/run", s.handleRunCode)
					r.With(s.limiter.Middleware).Post("/submit", s.handleSubmit)
					r.Post("/next", s.handleNextQuestion)
					r.Post("/pause", s.handlePause)
					r.Post("/resume", s.handleResume)
					r.Post("/hint", s.handleRevealHint)
					r.Get("/solution", s.handleSolution)
					r.Post("/end", s.handleEndSession)
					r.Post("/stop", s.handleStopSession)
				})
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
