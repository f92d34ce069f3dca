package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/dgallion1/livemark/internal/preview"
	"github.com/dgallion1/livemark/internal/syncer"
	"github.com/go-chi/chi/v5"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes))
		if err == nil && len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
	}

	b := newBridges()
	sess, err := preview.NewSession(preview.Options{
		Renderer: s.renderer,
		Builder:  s.builder,
		Editor:   b.editor,
		Preview:  b.preview,
		Sync: syncer.Config{
			ScrollDebounce:    s.cfg.ScrollDebounce,
			HighlightThrottle: s.cfg.HighlightThrottle,
			RenderDebounce:    s.cfg.RenderDebounce,
			SmoothScroll:      s.cfg.SmoothScroll,
			Bidirectional:     s.cfg.Bidirectional,
		},
		Monitor: s.mon,
		Log:     s.log,
	})
	if err != nil {
		jsonError(w, "create session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Source != "" {
		sess.SetSource(req.Source)
		b.editor.SetText(req.Source)
		// First render is synchronous so the fragment is available right away.
		if err := sess.Render(); err != nil {
			s.log.Warn("initial render failed", "session", sess.ID, "error", err)
		}
	}

	s.sessions.Put(sess)
	s.bridgeMu.Lock()
	s.bridge[sess.ID] = b
	s.bridgeMu.Unlock()

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"session_id": sess.ID})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *preview.Session {
	id := chi.URLParam(r, "sessionID")
	sess := s.sessions.Get(id)
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil
	}
	return sess
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	mappings := 0
	if t := sess.Table(); t != nil {
		mappings = t.Len()
	}
	writeJSON(w, map[string]any{
		"session_id":     sess.ID,
		"state":          sess.State().String(),
		"parse_failures": sess.ParseFailures(),
		"mappings":       mappings,
		"updated_at":     sess.UpdatedAt().Format(time.RFC3339),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if s.sessions.Get(id) == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	s.sessions.Delete(id)
	s.bridgeMu.Lock()
	delete(s.bridge, id)
	s.bridgeMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.cfg.MaxUploadBytes {
		jsonError(w, "source exceeds max size", http.StatusRequestEntityTooLarge)
		return
	}

	source := string(body)
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "application/json" {
		var req struct {
			Source string `json:"source"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		source = req.Source
	}

	sess.SetSource(source)
	if b := s.bridgesFor(sess.ID); b != nil {
		b.editor.SetText(source)
	}
	if r.URL.Query().Get("render") == "now" {
		if err := sess.Render(); err != nil {
			jsonError(w, "render: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, sess.Fragment())
}

func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	t := sess.Table()
	if t == nil {
		writeJSON(w, map[string]any{"mappings": []any{}})
		return
	}
	forward := t.Forward()
	lines := make([]int, 0, len(forward))
	for line := range forward {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	mappings := make([]any, 0, len(lines))
	for _, line := range lines {
		mappings = append(mappings, forward[line])
	}
	writeJSON(w, map[string]any{"mappings": mappings})
}

// eventRequest is what the browser posts for each user interaction. Scroll
// geometry rides along so percentage fallbacks have real numbers to work
// with.
type eventRequest struct {
	Kind     string          `json:"kind"`
	Origin   string          `json:"origin"`
	Position syncer.Position `json:"position"`
	NodeID   string          `json:"node_id"`
	Editor   scrollGeometry  `json:"editor"`
	Preview  scrollGeometry  `json:"preview"`
}

type scrollGeometry struct {
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	ClientHeight float64 `json:"client_height"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind, ok := parseKind(req.Kind)
	if !ok {
		jsonError(w, "unknown event kind: "+req.Kind, http.StatusBadRequest)
		return
	}
	origin := syncer.OriginEditor
	if req.Origin == "preview" {
		origin = syncer.OriginPreview
	}

	if b := s.bridgesFor(sess.ID); b != nil {
		b.editor.SetInfo(syncer.ScrollInfo{Top: req.Editor.Top, Height: req.Editor.Height, ClientHeight: req.Editor.ClientHeight})
		b.preview.SetInfo(syncer.ScrollInfo{Top: req.Preview.Top, Height: req.Preview.Height, ClientHeight: req.Preview.ClientHeight})
	}

	sess.HandleEvent(syncer.Event{
		Kind:      kind,
		Origin:    origin,
		Position:  req.Position,
		NodeID:    req.NodeID,
		Timestamp: time.Now(),
	})
	w.WriteHeader(http.StatusAccepted)
}

func parseKind(kind string) (syncer.EventKind, bool) {
	switch kind {
	case "scroll":
		return syncer.EventScroll, true
	case "cursor":
		return syncer.EventCursor, true
	case "click":
		return syncer.EventClick, true
	case "content_change":
		return syncer.EventContentChange, true
	}
	return 0, false
}

func (s *Server) handleDirectives(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	b := s.bridgesFor(sess.ID)
	if b == nil {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, map[string]any{
		"editor":  b.editor.Latest(),
		"preview": b.preview.Latest(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, map[string]any{
		"sessions":         s.sessions.Len(),
		"metrics":          s.mon.SnapshotAll(),
		"heap_alloc_bytes": mem.HeapAlloc,
		"goroutines":       runtime.NumGoroutine(),
	})
}
