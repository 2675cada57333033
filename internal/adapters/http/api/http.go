// Package api declares the ops HTTP surface and shared middleware.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
)

// RouterConfig holds the global middleware settings.
type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// NewRouter builds a chi router carrying the global middleware stack.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(RateLimitByIP(cfg))
	return r
}

// RateLimitByIP limits each client address to cfg.RateLimitRequests per
// cfg.RateLimitWindow. It is a no-op when disabled.
func RateLimitByIP(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

const corsMaxAge = 300

// Server wires the ops HTTP routes.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	corsOrigins   []string
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithCORSOrigins lets browsers on origins read the ops endpoints. No
// origins means no CORS headers are sent.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches the ops routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Group(func(g chi.Router) {
		if len(s.corsOrigins) > 0 {
			g.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.corsOrigins,
				AllowedMethods: []string{http.MethodGet},
				AllowedHeaders: []string{"Accept", RequestIDHeader},
				ExposedHeaders: []string{RequestIDHeader},
				MaxAge:         corsMaxAge,
			}))
		}
		g.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
		g.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
