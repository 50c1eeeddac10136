package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/version"
)

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"version":     version.Short(),
		"environment": s.config.Server.Environment,
		"mode":        s.config.Render.Mode,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if path.Ext(path.Base(r.URL.Path)) != "" {
		s.handleStatic(w, r)
		return
	}
	s.handlePage(w, r)
}

// handleStatic serves client assets by file name from the assets directory.
// A missing favicon is answered with 204 so browsers stop asking.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	file := filepath.Join(s.config.Render.AssetsDir, name)

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		if name == "favicon.ico" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn(r.Context(), err, "stat asset failed", "file", file)
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, file)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := PreferredLanguage(r.Header.Get("Accept-Language"))
	pagePath := s.pagePath(r.URL.Path)

	html, err := s.renderer.Render(ctx, pagePath, lang)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		s.logger.Debug(ctx, "writing page failed", "error", err.Error())
	}
}

// pagePath strips the configured route base path from a request path.
func (s *Server) pagePath(requestPath string) string {
	base := strings.TrimSuffix(s.config.Render.RouteBasePath, "/")
	if base != "" && (requestPath == base || strings.HasPrefix(requestPath, base+"/")) {
		requestPath = strings.TrimPrefix(requestPath, base)
	}
	if requestPath == "" {
		return "/"
	}
	return requestPath
}

// writeError serves a render failure. A failure document attached to the
// error is served as HTML, anything else as its plain message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusOf(err)

	var pageErr *apperrors.PageError
	if errors.As(err, &pageErr) && pageErr.HTML != "" {
		s.logger.Warn(r.Context(), err, "page rendered with errors", "status", status, "kind", string(apperrors.KindOf(err)))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(pageErr.HTML))
		return
	}

	s.logger.Error(r.Context(), err, "render failed", "status", status, "kind", string(apperrors.KindOf(err)))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
