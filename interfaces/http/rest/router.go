package rest

import (
	"net/http"

	"imagio-backend/application/commands/bus"
	querybus "imagio-backend/application/queries/bus"
	"imagio-backend/infrastructure/config"
	"imagio-backend/interfaces/http/rest/handlers"
	"imagio-backend/interfaces/http/rest/middleware"
	"imagio-backend/pkg/auth"
	appErrors "imagio-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	cfg        *config.Config
	logger     *zap.Logger
	genLimiter *auth.DistributedRateLimiter
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithGenerationLimiter switches generation throttling to the shared
// DynamoDB-backed limiter instead of the per-process one.
func (rt *Router) WithGenerationLimiter(limiter *auth.DistributedRateLimiter) *Router {
	rt.genLimiter = limiter
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.imagio.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	errHandler := appErrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	imageHandler := handlers.NewImageHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)
	generationHandler := handlers.NewGenerationHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)

	// API routes
	router.Route("/api/v1", func(r chi.Router) {
		// Apply authentication middleware for API routes
		r.Use(middleware.Authenticate())

		// Image endpoints
		r.Route("/images", func(r chi.Router) {
			r.Post("/", imageHandler.Upload)
			r.Get("/", imageHandler.ListImages)
			r.Get("/{imageID}", imageHandler.GetImage)
			r.Delete("/{imageID}", imageHandler.DeleteImage)
			r.Get("/{imageID}/versions", imageHandler.GetVersions)
			r.Get("/{imageID}/history", imageHandler.GetHistory)

			// Vision analysis endpoints
			r.Get("/{imageID}/text", generationHandler.ExtractText)
			r.Get("/{imageID}/items", generationHandler.RecognizeItems)

			// Generation endpoints get their own throttle on top of the
			// global rate limits
			r.Group(func(r chi.Router) {
				if rt.genLimiter != nil {
					r.Use(middleware.DistributedGenerationRateLimit(rt.genLimiter))
				} else {
					r.Use(middleware.GenerationRateLimit(rt.cfg.GenerationRatePerMinute))
				}
				r.Post("/{imageID}/generations", generationHandler.Generate)
			})
		})

		// Reusable background assets
		r.Get("/backgrounds", imageHandler.ListBackgrounds)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	// Check dependencies (database, etc.)
	// For now, always return ready
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
