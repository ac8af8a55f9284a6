package server

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/ashita-ai/vitrine/internal/model"
)

const (
	spaIndex     = "index.html"
	cacheHashed  = "public, max-age=31536000, immutable"
	cacheStatic  = "public, max-age=3600"
	cacheNoStore = "no-cache, no-store, must-revalidate"
)

// spaHandler serves the showcase front end. Any path that is not a file in
// the bundle is a client-side route (/skills, /admin/logs, ...) and gets
// index.html. It is mounted last, so every API route has already been tried.
type spaHandler struct {
	fsys fs.FS
}

func newSPAHandler(fsys fs.FS) http.Handler {
	return &spaHandler{fsys: fsys}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)

	if isAPIPath(urlPath) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "endpoint not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(urlPath, "/")
	if name != "" && name != spaIndex {
		if fi, err := fs.Stat(h.fsys, name); err == nil && !fi.IsDir() {
			w.Header().Set("Cache-Control", cacheControlFor(urlPath))
			http.ServeFileFS(w, r, h.fsys, name)
			return
		}
	}

	// Directories never list; they fall through to the app shell like any route.
	w.Header().Set("Cache-Control", cacheNoStore)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	f, err := h.fsys.Open(spaIndex)
	if err != nil {
		http.Error(w, "ui bundle has no index.html", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, "ui bundle has no index.html", http.StatusInternalServerError)
		return
	}
	if rs, ok := f.(io.ReadSeeker); ok {
		http.ServeContent(w, r, spaIndex, fi.ModTime(), rs)
		return
	}
	http.ServeFileFS(w, r, h.fsys, spaIndex)
}

// isAPIPath reports whether p is under /api. Those paths reaching the SPA
// matched no route and are JSON 404s, not client routes.
func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// cacheControlFor returns the Cache-Control value for a bundle file. The
// build fingerprints everything under /assets/.
func cacheControlFor(urlPath string) string {
	if strings.HasPrefix(urlPath, "/assets/") {
		return cacheHashed
	}
	return cacheStatic
}
