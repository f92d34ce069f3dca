package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/livemark/internal/config"
	"github.com/dgallion1/livemark/internal/filestore"
	"github.com/dgallion1/livemark/internal/linemap"
	"github.com/dgallion1/livemark/internal/perfmon"
	"github.com/dgallion1/livemark/internal/preview"
	"github.com/dgallion1/livemark/internal/render"
	"github.com/dgallion1/livemark/internal/resource"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is previewd's HTTP API: session lifecycle, content updates, sync
// events and the resource proxy.
type Server struct {
	router   chi.Router
	sessions *preview.Store
	renderer *render.Renderer
	builder  *linemap.Builder
	loader   resource.Loader
	files    *filestore.Client // nil when no backend is configured
	mon      *perfmon.Monitor
	log      *slog.Logger
	cfg      config.Config

	bridgeMu sync.Mutex
	bridge   map[string]*bridges

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates and configures the HTTP server. files may be nil.
func NewServer(cfg config.Config, files *filestore.Client, log *slog.Logger) *Server {
	s := &Server{
		sessions: preview.NewStore(cfg.SessionTTL),
		renderer: render.New(render.Options{
			AnnotateLines:    true,
			ImageProxyPrefix: "/api/resources?src=",
		}),
		builder: linemap.NewBuilder(cfg.ConfidenceThreshold, cfg.FallbackWindow, cfg.PrefilterElements),
		loader:  resource.NewHTTPLoader(cfg.ResourceCacheTTL, cfg.MaxResourceBytes, log),
		files:   files,
		mon:     perfmon.New(5 * time.Minute),
		log:     log,
		cfg:     cfg,
		bridge:  make(map[string]*bridges),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/resources", s.handleResource)

	// Authenticated endpoints (open when no key is configured).
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.PreviewAPIKey, s.log))

		r.Post("/api/sessions", s.handleCreateSession)
		r.Get("/api/sessions/{sessionID}", s.handleSessionState)
		r.Delete("/api/sessions/{sessionID}", s.handleDeleteSession)
		r.Put("/api/sessions/{sessionID}/source", s.handleUpdateSource)
		r.Get("/api/sessions/{sessionID}/fragment", s.handleFragment)
		r.Get("/api/sessions/{sessionID}/mapping", s.handleMapping)
		r.Post("/api/sessions/{sessionID}/events", s.handleEvent)
		r.Get("/api/sessions/{sessionID}/directives", s.handleDirectives)

		r.Post("/api/import", s.handleImport)
		r.Get("/api/stats", s.handleStats)

		if s.files != nil {
			r.Get("/api/files", s.handleListFiles)
			r.Get("/api/files/{name}", s.handleReadFile)
			r.Put("/api/files/{name}", s.handleWriteFile)
			r.Delete("/api/files/{name}", s.handleDeleteFile)
			r.Post("/api/files/{name}/rename", s.handleRenameFile)
		}
	})

	s.router = r
}

// Start launches the session janitor.
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sessions.Cleanup(); n > 0 {
					s.log.Info("expired sessions evicted", "count", n)
				}
				s.pruneBridges()
			}
		}
	}()
}

// Stop shuts the janitor down.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// pruneBridges drops bridge state whose session is gone.
func (s *Server) pruneBridges() {
	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()
	for id := range s.bridge {
		if s.sessions.Get(id) == nil {
			delete(s.bridge, id)
		}
	}
}

func (s *Server) bridgesFor(id string) *bridges {
	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()
	return s.bridge[id]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
