package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/retention-chat/internal/middleware"
	"github.com/capitalize-ai/retention-chat/internal/service"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

// RouterConfig holds what the router needs beyond the service.
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Readiness         map[string]ReadinessCheck
}

// NewRouter builds the conversation service's HTTP routes.
func NewRouter(svc *service.RetentionService, cfg RouterConfig, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(cfg.Readiness)
	conversationHandler := NewConversationHandler(svc, log.Named("handler"))
	messageHandler := NewMessageHandler(svc, log.Named("handler"))

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log.Named("http")))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/start", conversationHandler.Start)
			r.Post("/message", messageHandler.Send)
			r.Post("/offer", messageHandler.Offer)
			r.Get("/{id}", conversationHandler.Get)
		})
	})

	return r
}
