package handler

import (
	"net/http"
	"strings"

	"github.com/dandantas/magpie/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	requestHandler *RequestHandler
	healthHandler  *HealthHandler
	corsConfig     middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	requestHandler *RequestHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		requestHandler: requestHandler,
		healthHandler:  healthHandler,
		corsConfig:     corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)

	// API endpoints
	mux.HandleFunc("/api/v1/profiles", rt.handleProfiles)
	mux.HandleFunc("/api/v1/profiles/requests/", rt.handleRequestsWithID)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.ClientID(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleProfiles routes the submission endpoint
func (rt *Router) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.requestHandler.Submit(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRequestsWithID routes per-request endpoints
func (rt *Router) handleRequestsWithID(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimPrefix(r.URL.Path, "/api/v1/profiles/requests/")
	if requestID == "" || strings.Contains(requestID, "/") {
		writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.requestHandler.Status(w, r, requestID)
	case http.MethodDelete:
		rt.requestHandler.Cancel(w, r, requestID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
