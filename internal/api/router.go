// Package api provides the ops HTTP server: health, status and the
// Telegram webhook.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/api/handler"
	"github.com/airalert/airalert/internal/api/middleware"
	"github.com/airalert/airalert/internal/api/response"
)

// WebhookPath is where Telegram posts updates in webhook mode.
const WebhookPath = "/telegram/webhook"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Ops         handler.OpsConfig
	Logger      zerolog.Logger
	ServiceName string

	// Metrics is optional.
	Metrics *middleware.Metrics

	// OpsToken protects /v1/ops/status when set.
	OpsToken string

	// Webhook is mounted at WebhookPath when set.
	Webhook http.Handler
}

// NewRouter creates a chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airalert-notifier"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported for "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Ops)

	r.Route("/v1/ops", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.OpsRateLimit))
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.With(middleware.BearerToken(cfg.OpsToken)).Get("/status", opsHandler.SystemStatus)
	})

	if cfg.Webhook != nil {
		r.With(middleware.RateLimitByIP(middleware.WebhookRateLimit)).Post(WebhookPath, cfg.Webhook.ServeHTTP)
	}

	return r
}
