package routes

import (
	"net/http"

	"github.com/zatekoja/radreference/internal/api/handlers"
	"github.com/zatekoja/radreference/internal/api/middleware"
	"github.com/zatekoja/radreference/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	helperCardHandler *handlers.HelperCardHandler
	sseHandler        *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	helperCardHandler *handlers.HelperCardHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		helperCardHandler: helperCardHandler,
		sseHandler:        sseHandler,
		cacheMiddleware:   cacheMiddleware,
		metrics:           metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Helper card endpoints
	r.mux.HandleFunc("POST /api/v1/helper-cards/generate", r.helperCardHandler.GenerateCards)
	r.mux.HandleFunc("GET /api/v1/helper-cards/quota", r.helperCardHandler.GetQuota)
	r.mux.HandleFunc("GET /api/v1/helper-cards/search", r.helperCardHandler.SearchCards)

	// Real-time card update streams for open editor sessions
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/helper-cards", r.sseHandler.StreamCardUpdates)
		r.mux.HandleFunc("GET /api/stream/helper-cards/user/{id}", r.sseHandler.StreamUserCardUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
