// Package preview composes the engine: parse → diff → patch → rebuild
// mapping, one session per open document. A session owns its virtual tree,
// its rendered surface bindings and its sync coordinator; there is no
// process-wide engine state.
package preview

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/livemark/internal/diff"
	"github.com/dgallion1/livemark/internal/linemap"
	"github.com/dgallion1/livemark/internal/memdom"
	"github.com/dgallion1/livemark/internal/patch"
	"github.com/dgallion1/livemark/internal/perfmon"
	"github.com/dgallion1/livemark/internal/render"
	"github.com/dgallion1/livemark/internal/syncer"
	"github.com/dgallion1/livemark/internal/vdom"
)

// Options configures a session. Nil fields get working defaults: an
// in-memory surface, no-op editor/preview adapters, a fresh monitor.
type Options struct {
	Renderer *render.Renderer
	Surface  patch.Surface
	Builder  *linemap.Builder
	Editor   syncer.Editor
	Preview  syncer.Preview
	Sync     syncer.Config
	Monitor  *perfmon.Monitor
	Log      *slog.Logger
}

// Session is one live document. All render cycles go through a single mutex,
// so diff/patch cycles are strictly sequential: a content change arriving
// mid-cycle is either coalesced by the coordinator's debounce or runs after
// the in-flight cycle completes. Two cycles never touch the surface at once.
type Session struct {
	ID string

	mu         sync.Mutex
	source     string
	tree       *vdom.Node // last good tree
	table      *linemap.Table
	parseFails int
	updatedAt  time.Time

	renderer *render.Renderer
	surface  patch.Surface
	applier  *patch.Applier
	builder  *linemap.Builder
	coord    *syncer.Coordinator
	mon      *perfmon.Monitor
	log      *slog.Logger
}

// NewSession creates a session bound to an empty surface.
func NewSession(opts Options) (*Session, error) {
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Options{AnnotateLines: true})
	}
	if opts.Surface == nil {
		opts.Surface = memdom.New()
	}
	if opts.Builder == nil {
		opts.Builder = linemap.NewBuilder(0, 0, 0)
	}
	if opts.Editor == nil {
		opts.Editor = noopEditor{}
	}
	if opts.Preview == nil {
		opts.Preview = noopPreview{}
	}
	if opts.Monitor == nil {
		opts.Monitor = perfmon.New(0)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	s := &Session{
		ID:        NewID(),
		tree:      vdom.NewElement("div"),
		renderer:  opts.Renderer,
		surface:   opts.Surface,
		builder:   opts.Builder,
		mon:       opts.Monitor,
		log:       opts.Log,
		updatedAt: time.Now(),
	}
	s.applier = patch.NewApplier(opts.Surface, opts.Log)
	if err := s.applier.Rebind(s.tree); err != nil {
		return nil, err
	}
	s.coord = syncer.New(opts.Editor, opts.Preview, opts.Sync, opts.Log)
	s.coord.SetRenderFunc(func() {
		if err := s.Render(); err != nil {
			s.log.Warn("render cycle failed", "session", s.ID, "error", err)
		}
	})
	return s, nil
}

// SetSource stores new source text and raises a content-change event; the
// actual re-render happens after the coordinator's render debounce window.
func (s *Session) SetSource(text string) {
	s.mu.Lock()
	s.source = text
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.coord.Handle(syncer.Event{Kind: syncer.EventContentChange, Origin: syncer.OriginEditor})
}

// HandleEvent feeds a scroll/cursor/click event to the coordinator.
func (s *Session) HandleEvent(ev syncer.Event) {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
	if !ev.Timestamp.IsZero() {
		s.mon.Record(perfmon.MetricInput, time.Since(ev.Timestamp))
	}
	s.coord.Handle(ev)
}

// Render runs one full cycle against the current source: parse, diff against
// the previous tree, patch the surface, rebuild the correspondence table. On
// parse failure the previous good tree stays on the surface and the failure
// is counted, never surfaced to the user. If the surface turns out to have
// diverged from the tree after patching, it is wiped and reseeded from the
// new tree so the cycle still converges.
func (s *Session) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycleStart := time.Now()

	parseStart := time.Now()
	tree, err := s.renderer.Tree([]byte(s.source))
	s.mon.Record(perfmon.MetricParse, time.Since(parseStart))
	if err != nil {
		s.parseFails++
		s.log.Warn("parse failed, keeping previous tree", "session", s.ID, "error", err)
		s.mon.Warn("parse_error", err.Error())
		return nil
	}

	diffStart := time.Now()
	ops := diff.Diff(s.tree, tree)
	s.mon.Record(perfmon.MetricDiff, time.Since(diffStart))

	patchStart := time.Now()
	if skipped := s.applier.Apply(ops); skipped > 0 {
		s.mon.Warn("patch_skipped", s.ID)
	}
	err = s.applier.Rebind(tree)
	s.mon.Record(perfmon.MetricPatch, time.Since(patchStart))
	if err != nil {
		s.mon.Warn("surface_diverged", err.Error())
		s.log.Warn("surface diverged, rebuilding", "session", s.ID, "error", err)
		if err := s.rebuildSurface(tree); err != nil {
			return err
		}
	}
	s.tree = tree

	mapStart := time.Now()
	table := s.builder.Build(s.source, s.tree)
	s.mon.Record(perfmon.MetricMapping, time.Since(mapStart))

	s.table = table
	s.coord.SetTable(table)
	s.mon.Record(perfmon.MetricFullCycle, time.Since(cycleStart))
	return nil
}

// rebuildSurface detaches everything under the surface root and reseeds it
// from tree, leaving surface and handle map consistent again. Called with
// s.mu held.
func (s *Session) rebuildSurface(tree *vdom.Node) error {
	root := s.surface.RootHandle()
	for _, h := range s.surface.ChildHandles(root) {
		s.surface.RemoveChild(h)
	}
	empty := vdom.NewElement("div")
	if err := s.applier.Rebind(empty); err != nil {
		return err
	}
	s.applier.Apply(diff.Diff(empty, tree))
	return s.applier.Rebind(tree)
}

// Fragment returns the HTML of the last good tree.
func (s *Session) Fragment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return vdom.RenderHTML(s.tree, true)
}

// Source returns the current source text.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Table returns the last built correspondence table, which may be nil before
// the first render.
func (s *Session) Table() *linemap.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// State returns the coordinator's current synchronization state.
func (s *Session) State() syncer.State { return s.coord.State() }

// ParseFailures returns how many parses were rejected since creation.
func (s *Session) ParseFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseFails
}

// UpdatedAt returns the last time the session saw activity.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Close cancels all scheduled work.
func (s *Session) Close() {
	s.coord.Close()
}

type noopEditor struct{}

func (noopEditor) Text() string                  { return "" }
func (noopEditor) ScrollInfo() syncer.ScrollInfo { return syncer.ScrollInfo{} }
func (noopEditor) SetScrollPercentage(float64)   {}
func (noopEditor) ScrollToLine(int)              {}

type noopPreview struct{}

func (noopPreview) ScrollInfo() syncer.ScrollInfo        { return syncer.ScrollInfo{} }
func (noopPreview) ScrollTo(float64, time.Duration)      {}
func (noopPreview) ScrollIntoView(string, time.Duration) {}
func (noopPreview) Highlight(string)                     {}
