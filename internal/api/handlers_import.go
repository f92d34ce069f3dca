package api

import (
	"net/http"

	"github.com/dgallion1/livemark/internal/importer"
	"github.com/dgallion1/livemark/internal/resource"
)

// handleImport converts an uploaded document to markdown. The file arrives
// as multipart form data under the "file" field; the response carries the
// markdown so the client can seed a session with it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		jsonError(w, "parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !importer.IsSupportedExtension(header.Filename) {
		jsonError(w, "unsupported file type: "+header.Filename, http.StatusUnsupportedMediaType)
		return
	}
	imp, err := importer.ForFile(header.Filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	source, err := imp.Import(file, header.Filename)
	if err != nil {
		s.log.Warn("import failed", "filename", header.Filename, "error", err)
		jsonError(w, "import: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]string{
		"filename": header.Filename,
		"source":   source,
	})
}

// handleResource proxies external images and media referenced by rendered
// markup. A fetch that keeps failing degrades to an inline placeholder
// rather than an error, so a dead link never breaks the preview.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		jsonError(w, "missing src parameter", http.StatusBadRequest)
		return
	}
	res, err := s.loader.Fetch(r.Context(), src)
	if err != nil {
		s.log.Warn("resource fetch failed", "url", src, "error", err)
		res = resource.Placeholder()
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(res.Data)
}
