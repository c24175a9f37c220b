// Package httpapi is the thin HTTP surface around the live core: the
// websocket upgrade endpoint, health probes, and prometheus metrics. It
// delegates everything else; transport concerns stay isolated here.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgerrors "caretrack/pkg/errors"
)

// HealthChecker is implemented by backing services the readiness probe pings.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler wires the public endpoints.
type Handler struct {
	gateway http.Handler
	checks  map[string]HealthChecker
}

func NewHandler(gateway http.Handler) *Handler {
	return &Handler{gateway: gateway, checks: make(map[string]HealthChecker)}
}

// AddCheck registers a named dependency for the readiness probe. Nil checkers
// are ignored so optional backends can be passed straight through.
func (h *Handler) AddCheck(name string, c HealthChecker) {
	if c != nil {
		h.checks[name] = c
	}
}

// NewRouter builds the chi router for the service.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.gateway.ServeHTTP)
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for name, c := range h.checks {
		if err := c.Health(r.Context()); err != nil {
			writeError(w, pkgerrors.Wrap(pkgerrors.CodePersistence, name+" unavailable", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// endpoint uses the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	writeJSON(w, pkgerrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": pkgerrors.MessageOf(err),
	})
}
