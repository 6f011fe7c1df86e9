package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parrisma/gofr-doc/internal/convert"
	"github.com/parrisma/gofr-doc/internal/model"
)

// handleGetProxy streams a previously rendered proxy artefact. Unlike the
// catalogue tools this is a raw binary download, not a {status,...}
// envelope, so it talks to the pipeline directly rather than via Call.
func (s *Server) handleGetProxy(w http.ResponseWriter, r *http.Request) {
	info, err := s.auth.ResolveHTTP(r.Context(), r, true)
	if err != nil {
		de := model.AsDomainError(err)
		httpResponse(w, de.Message, statusForKind(de.Kind))
		return
	}

	format, data, err := s.pipeline.GetProxyDocument(r.Context(), info.Group, r.PathValue("guid"))
	if err != nil {
		de := model.AsDomainError(err)
		httpResponse(w, de.Message, statusForKind(de.Kind))
		return
	}

	w.Header().Set("Content-Type", convert.Format(format).MediaType())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleListStockImages returns the names of bundled stock images
// (spec.md §6's GET /images, unauthenticated).
func (s *Server) handleListStockImages(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.images.root)
	if err != nil {
		httpResponseJSON(w, map[string]any{"images": []string{}}, http.StatusOK)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	httpResponseJSON(w, map[string]any{"images": names}, http.StatusOK)
}

// handleGetStockImage serves one bundled stock image file, unauthenticated,
// rejecting any path that would escape the stock-images root.
func (s *Server) handleGetStockImage(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("path")
	clean := filepath.Clean("/" + requested)
	if strings.Contains(requested, "..") {
		httpResponse(w, "invalid image path", http.StatusBadRequest)
		return
	}

	full := filepath.Join(s.images.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.images.root)+string(filepath.Separator)) {
		httpResponse(w, "invalid image path", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		httpResponse(w, "image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, filepath.Base(full), modTimeOf(full), strings.NewReader(string(data)))
}

func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
