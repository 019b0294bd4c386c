package server

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// handleDist implements "GET /dist/<path>": local-first serve from
// <work_dir>/dist, falling back to rustup.serve_domains in order.
func (s *Server) handleDist(w http.ResponseWriter, r *http.Request) {
	suffix := trimRoutePrefix(r.URL.Path, "/dist/")
	if !safeSuffix(suffix) {
		writeJSONError(w, http.StatusNotFound, "invalid path")
		return
	}
	s.serveLocalOrRedirect(w, r, filepath.Join(s.cfg.DistDir(), filepath.FromSlash(suffix)), "/dist/"+suffix, s.cfg.Rustup.ServeDomains)
}

// handleRustup implements "GET /rustup/<path>" analogously.
func (s *Server) handleRustup(w http.ResponseWriter, r *http.Request) {
	suffix := trimRoutePrefix(r.URL.Path, "/rustup/")
	if !safeSuffix(suffix) {
		writeJSONError(w, http.StatusNotFound, "invalid path")
		return
	}
	s.serveLocalOrRedirect(w, r, filepath.Join(s.cfg.RustupDir(), filepath.FromSlash(suffix)), "/rustup/"+suffix, s.cfg.Rustup.ServeDomains)
}

// handleCrates implements both crate archive route shapes of spec §4.I.
func (s *Server) handleCrates(w http.ResponseWriter, r *http.Request) {
	suffix := trimRoutePrefix(r.URL.Path, "/crates/")
	if !safeSuffix(suffix) {
		writeJSONError(w, http.StatusNotFound, "invalid path")
		return
	}
	segments := strings.Split(strings.Trim(suffix, "/"), "/")

	var name, file string
	switch {
	case len(segments) == 3 && segments[2] == "download":
		name, file = segments[0], segments[0]+"-"+segments[1]+".crate"
	case len(segments) == 2:
		name, file = segments[0], segments[1]
	default:
		writeJSONError(w, http.StatusNotFound, "malformed crate path")
		return
	}

	localPath := filepath.Join(s.cfg.CratesDir(), name, file)
	routeSuffix := "/crates/" + name + "/" + file
	s.serveLocalOrRedirect(w, r, localPath, routeSuffix, s.cfg.Crates.ServeDomains)
}

// handleIndex implements "GET /index/<path>": local disk only, no
// fallback (the index tree is itself the canonical source once cloned).
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	suffix := trimRoutePrefix(r.URL.Path, "/index/")
	if !safeSuffix(suffix) {
		writeJSONError(w, http.StatusNotFound, "invalid path")
		return
	}
	localPath := filepath.Join(s.cfg.IndexDir(), filepath.FromSlash(suffix))
	info, err := os.Stat(localPath)
	if err != nil || !info.Mode().IsRegular() {
		writeJSONError(w, http.StatusNotFound, "index file not found")
		return
	}
	http.ServeFile(w, r, localPath)
}

// serveLocalOrRedirect serves localPath if present, else walks domains in
// order: "localhost" re-checks disk, anything else is probed with HEAD
// and, on 200, answered with a 302 to that origin's equivalent path.
func (s *Server) serveLocalOrRedirect(w http.ResponseWriter, r *http.Request, localPath, routeSuffix string, domains []string) {
	if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() {
		http.ServeFile(w, r, localPath)
		return
	}

	for _, domain := range domains {
		if domain == "localhost" {
			if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() {
				http.ServeFile(w, r, localPath)
				return
			}
			continue
		}

		target, err := redirectURL(domain, routeSuffix)
		if err != nil {
			continue
		}
		if s.headOK(target) {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
	}

	writeJSONError(w, http.StatusNotFound, "artifact not found locally or on any fallback origin")
}

func (s *Server) headOK(target string) bool {
	resp, err := s.client.Head(target) // #nosec G107 - target is an operator-configured fallback origin
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// safeSuffix rejects path-traversal attempts in a route's trailing segment.
func safeSuffix(suffix string) bool {
	return !strings.Contains(suffix, "..")
}

// redirectURL builds the fallback URL for domain+routeSuffix, applying
// the Huawei object-storage filename percent-encoding workaround.
func redirectURL(domain, routeSuffix string) (string, error) {
	full := strings.TrimRight(domain, "/") + routeSuffix
	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(u.Hostname(), "myhuaweicloud.com") {
		dir, file := filepath.Split(u.Path)
		u.RawPath = dir + strings.ReplaceAll(url.PathEscape(file), "+", "%2B")
	}
	return u.String(), nil
}
