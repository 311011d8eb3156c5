package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/slanderboard/internal/domain"
)

// ServePage serves the pre-built UI bundle from the configured static
// directory. Unknown paths fall back to index.html; without a static
// directory every page is a 404.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	dir := h.Config.Server.StaticDir
	if dir == "" || strings.HasPrefix(r.URL.Path, "/api/") {
		h.writeError(w, http.StatusNotFound, domain.ErrNotFound)
		return
	}

	name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err != nil || info.IsDir() {
		name = filepath.Join(dir, "index.html")
	}
	http.ServeFile(w, r, name)
}
