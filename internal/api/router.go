package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/config"
	"github.com/jfrlite/jfrlite/internal/middleware"
	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// Dependencies are the collaborators the HTTP API is built from.
type Dependencies struct {
	Config      *config.Config
	Targets     targets.Lister
	AuthManager auth.Manager
	Reports     ReportGetter
	Catalog     recordings.Catalog
	ReadyChecks map[string]ReadyCheck
	Logger      *slog.Logger
}

// Handlers returns every request handler the API serves.
func Handlers(d Dependencies) []RequestHandler {
	hs := []RequestHandler{
		NewTargetsGetHandler(d.Targets),
		NewTargetRecordingsGetHandler(d.Targets, d.Catalog),
		NewTargetReportGetHandler(d.Targets, d.Reports, d.Config.Server.HandlerTimeout()),
	}
	if jwtManager, ok := d.AuthManager.(*auth.JWTManager); ok {
		hs = append(hs, NewLoginHandler(jwtManager))
	}
	return hs
}

// NewRouter creates and configures the API router
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)

	// CORS (if enabled)
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
			cfg.CORS.MaxAgeSeconds,
		))
	}

	health := NewHealthHandler(d.ReadyChecks)

	// Public routes (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	dispatcher := NewDispatcher(cfg.Server.WorkerPoolSize, logger)
	authenticate := middleware.Authenticate(d.AuthManager, logger)

	for _, h := range Handlers(d) {
		var handler http.Handler = dispatcher.Wrap(h)
		if h.RequiresAuth() {
			handler = authenticate(handler)
		}
		r.Method(h.Method(), "/api/"+h.APIVersion()+h.Path(), handler)
		logger.Debug("Registered handler",
			"method", h.Method(),
			"path", "/api/"+h.APIVersion()+h.Path(),
			"async", h.IsAsync(),
			"ordered", h.IsOrdered(),
		)
	}

	return r
}

// NewServer wraps the router in an http.Server using the configured timeouts.
// The write timeout is never allowed below the handler timeout.
func NewServer(addr string, handler http.Handler, cfg *config.Config) *http.Server {
	writeTimeout := cfg.Server.WriteTimeout()
	if floor := cfg.Server.HandlerTimeout() + 5*time.Second; writeTimeout < floor {
		writeTimeout = floor
	}
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: writeTimeout,
	}
}
