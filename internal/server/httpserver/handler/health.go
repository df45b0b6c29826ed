package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// handleHealth handles GET /health. The node is healthy while its process
// serves requests.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
		NodeID: h.node.ID(),
		Joined: h.node.Joined(),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
		NodeID: h.node.ID(),
		Joined: h.node.Joined(),
	}
	if !h.node.IsActive() {
		status.Status = "not_ready"
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrNodeInactive, status)
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}
