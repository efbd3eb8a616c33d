package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"nycsales/internal/services"
)

// HealthHandler exposes the probe endpoints. Probes answer from process
// state and the output tree; they never touch the data endpoints' cache.
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler builds the handler around a HealthService.
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck handles GET /healthz/ready. Not-ready answers 503 so
// orchestrators hold traffic until the pipeline has produced tables.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	status := h.service.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		w.Header().Set("Retry-After", "10")
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck handles GET /healthz/live.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	render.JSON(w, r, h.service.LivenessCheck(r.Context()))
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}

// noStore keeps intermediaries from caching probe answers; a stale
// readiness verdict defeats the probe.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
