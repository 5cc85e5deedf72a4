package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db      pinger
	timeout time.Duration
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.db.Health(ctx); err != nil {
		slog.Warn("health check failed", "error", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
