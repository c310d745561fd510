// Package server exposes the Voxhall HTTP surface: the WebSocket room
// ingress, health and readiness probes, the Prometheus scrape endpoint, and
// the bundled browser client.
package server

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/health"
	"github.com/voxhall/voxhall/internal/observe"
	"github.com/voxhall/voxhall/internal/room"
)

//go:embed static
var staticFiles embed.FS

// Server builds the HTTP handler tree around a room manager.
type Server struct {
	cfg     *config.Config
	manager *room.Manager
	metrics *observe.Metrics
	health  *health.Handler
}

// New creates a server. checkers feed the /readyz probe.
func New(cfg *config.Config, m *room.Manager, met *observe.Metrics, checkers ...health.Checker) *Server {
	h := health.New(checkers...)
	h.SetInfo(cfg.App.Name, string(cfg.App.Env))
	return &Server{
		cfg:     cfg,
		manager: m,
		metrics: met,
		health:  h,
	}
}

// Handler returns the full route tree wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/{room_id}/{username}", s.handleSocket)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the subtree exists.
		panic("server: embedded static assets missing: " + err.Error())
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.Handle("GET /", http.FileServerFS(static))

	return observe.Middleware(s.metrics)(mux)
}
