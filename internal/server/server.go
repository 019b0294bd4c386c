// Package server implements the File Server: local-first HTTP serving of
// synced artifacts, redirect fallback to alternate origins, and a
// version-control smart-protocol bridge for the crate index.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/regmirror/regmirror/internal/metrics"
	"github.com/regmirror/regmirror/internal/mirrorcfg"
)

// Server answers the routes of spec §4.I over the synced work directory.
type Server struct {
	cfg     *mirrorcfg.Config
	client  *http.Client
	metrics *metrics.Metrics
}

// New builds a Server bound to cfg's work directory and serve-domain lists.
func New(cfg *mirrorcfg.Config) *Server {
	return &Server{cfg: cfg, client: &http.Client{}, metrics: metrics.New()}
}

// Handler returns the root http.Handler for the mirror's serving layer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/dist/", s.route("dist", s.handleDist))
	mux.HandleFunc("/rustup/", s.route("rustup", s.handleRustup))
	mux.HandleFunc("/crates/", s.route("crates", s.handleCrates))
	mux.HandleFunc("/index/", s.route("index", s.handleIndex))
	mux.HandleFunc("/api/v1/crates/new", s.route("publish", s.handlePublish))
	mux.HandleFunc("/crates.io-index/info/refs", s.route("git-info-refs", s.handleInfoRefs))
	mux.HandleFunc("/crates.io-index/git-upload-pack", s.route("git-upload-pack", s.handleUploadPack))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// route wraps a handler with request logging and a labeled request counter.
func (s *Server) route(label string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("request", "method", r.Method, "path", r.URL.Path)
		s.metrics.RequestsTotal.WithLabelValues(label).Inc()
		next(w, r)
	}
}

// writeJSONError writes the §4.I not-found/error envelope {code, message}.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": message})
}

// trimRoutePrefix strips the leading "/<name>/" route segment.
func trimRoutePrefix(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
