package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// Node is the node state the admin handlers report.
type Node interface {
	ID() string
	ThisAddress() domain.Address
	IsActive() bool
	Joined() bool
	Members() []*domain.Member
	PendingTasks() int
}

// Handler serves the admin JSON endpoints.
type Handler struct {
	node   Node
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Handler reporting on node.
func New(node Node, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		node:   node,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /members", h.handleMembers)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(w, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err *domain.DomainError, data any) {
	requestID := getRequestID(w, r)
	resp := NewErrorResponse(requestID, err.Code, err.Error())
	resp.Data = data

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", err.Code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// getRequestID returns the ID the request ID middleware assigned.
func getRequestID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
