package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/coordinator"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/health"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// Handler holds the HTTP handlers and dependencies
type Handler struct {
	coordinator *coordinator.Coordinator
	aggregator  *health.Aggregator
	store       repository.Store
	metrics     http.Handler
	basePath    string
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(coord *coordinator.Coordinator, aggregator *health.Aggregator, store repository.Store, metrics http.Handler, basePath string, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coord,
		aggregator:  aggregator,
		store:       store,
		metrics:     metrics,
		basePath:    basePath,
		logger:      logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Recoverer)

	routes := h.createRoutes()

	// If base path is configured, mount routes on that path
	if h.basePath != "" {
		r.Mount(h.basePath, routes)
	} else {
		r.Mount("/", routes)
	}

	return r
}

func (h *Handler) createRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/health", h.GetHealth)
		r.Get("/runs", h.GetRuns)
		r.Get("/checkpoints", h.GetCheckpoints)
		r.Post("/failover", h.TriggerFailover)
		r.Post("/rollback", h.TriggerRollback)
	})

	return r
}

// Healthz handles GET /healthz, the process liveness probe
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)
		next.ServeHTTP(w, r)
	})
}

// errorResponse represents an error response
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// respondError writes an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, errorResponse{Error: message})
}
