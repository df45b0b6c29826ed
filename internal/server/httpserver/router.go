package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/gridmesh/internal/server/httpserver/handler"
)

// RouterConfig holds the dependencies of the admin router.
type RouterConfig struct {
	// Node is reported by /health, /ready and /members.
	Node handler.Node

	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	Logger *slog.Logger
}

// NewRouter builds the admin HTTP handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	h := handler.New(cfg.Node, l)

	mux := http.NewServeMux()
	api := Chain(h, RequestID(), Recover(l), AccessLog(l))
	mux.Handle("GET /health", api)
	mux.Handle("GET /ready", api)
	mux.Handle("GET /members", api)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, RequestID(), Recover(l)))
	}
	return mux
}
