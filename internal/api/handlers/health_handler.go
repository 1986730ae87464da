package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// PingFunc checks a dependency the service needs to serve traffic.
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	ping PingFunc
}

// NewHealthHandler reports ready unconditionally when ping is nil.
func NewHealthHandler(ping PingFunc) *HealthHandler { return &HealthHandler{ping: ping} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			logger.L().Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
				Success: false,
				Error:   &types.APIError{Code: "unavailable", Message: "database unavailable"},
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ready"}})
}

// Health is the public API status probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "healthy"}})
}
