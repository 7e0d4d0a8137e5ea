// Package stubserver is a local stand-in for the crop prediction service.
// It answers the recommend and weather endpoints from fixed rules and tables
// so the client can run without the real model.
package stubserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cropadvisor/internal/config"
	"cropadvisor/internal/form"
)

// APIPrefix is the path the prediction endpoints are mounted under. It
// matches the default client base URL.
const APIPrefix = "/api"

// MetricsCollector records request latency and count.
// *telemetry.HTTPMetrics satisfies it.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
	RecordRateLimited()
}

// defaultAllowedOrigins are the front-end dev servers allowed by CORS.
var defaultAllowedOrigins = []string{
	"http://localhost:8080",
	"http://127.0.0.1:8080",
}

// Server holds the stub's dependencies. Optional fields may be set between
// NewServer and MountRoutes.
type Server struct {
	Config         config.StubConfig
	Logger         *slog.Logger
	Validator      *form.Validator
	Metrics        MetricsCollector
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string

	// now is the limiter's time source.
	now     func() time.Time
	limiter *ipLimiter
	router  *chi.Mux
}

// NewServer validates the settings and prepares an empty router.
func NewServer(cfg config.StubConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %v", cfg.RateLimitRPS)
	}
	if cfg.Latency < 0 {
		return nil, fmt.Errorf("latency must not be negative, got %v", cfg.Latency)
	}

	return &Server{
		Config:         cfg,
		Logger:         logger,
		Validator:      form.NewValidator(),
		AllowedOrigins: defaultAllowedOrigins,
		now:            time.Now,
		limiter:        newIPLimiter(cfg.RateLimitRPS),
		router:         chi.NewRouter(),
	}, nil
}

// Handler returns the router wrapped in gzip response compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// MountRoutes registers the middleware chain and routes.
//
// Ordering:
//  1. Recoverer      - outermost, catches all panics.
//  2. RequestID      - correlation id for logs and error bodies.
//  3. RealIP         - client address for the limiter.
//  4. RequestLogger  - one structured line per request.
//  5. CORS           - answers preflights before any limiting.
//  6. Metrics        - counts every routed response, 429s included.
//
// The prediction endpoints additionally pass RateLimit then Latency.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.AllowedOrigins))
	s.router.Use(s.MetricsMiddleware)

	s.router.Get("/", s.HandleRoot)
	if s.Gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route(APIPrefix, func(r chi.Router) {
		r.Use(s.RateLimit)
		r.Use(s.Latency)
		r.Get("/", s.HandleRoot)
		r.Post("/recommend", s.HandleRecommend)
		r.Get("/weather", s.HandleWeather)
	})
}
