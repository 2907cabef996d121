package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server. The processor receives parsed
// webhook payloads; queryUC backs the run inspection API.
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	processor EventProcessor,
	queryUC interfaces.RunQueryUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	// Reject a broken bundled API document at startup
	if _, err := loadOpenAPIDoc(ctx); err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	healthHandler := NewHealthHandler(queryUC)
	router.Get("/health", healthHandler.Handle)

	// Webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, webhookUC, processor)
	router.Post("/hooks/github/app", webhookHandler.Handle)

	// Run inspection API
	runsHandler := NewRunsHandler(queryUC)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", runsHandler.HandleList)
		r.Get("/runs/{runID}", runsHandler.HandleGet)
	})

	router.Get("/openapi.yaml", handleOpenAPI)

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
