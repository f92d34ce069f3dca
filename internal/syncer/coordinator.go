// Package syncer keeps the text editor and the rendered preview in lock-step.
// All scroll and cursor wiring goes through one Coordinator per session:
// adapters only raise events, the transition logic lives here.
package syncer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/livemark/internal/linemap"
	"github.com/dgallion1/livemark/internal/sched"
)

// State is the coordinator's synchronization state.
type State uint8

const (
	StateIdle State = iota
	StateSyncingFromEditor
	StateSyncingFromPreview
)

func (s State) String() string {
	switch s {
	case StateSyncingFromEditor:
		return "syncing_from_editor"
	case StateSyncingFromPreview:
		return "syncing_from_preview"
	}
	return "idle"
}

// ScrollInfo describes a scrollable surface.
type ScrollInfo struct {
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	ClientHeight float64 `json:"client_height"`
}

// Editor is the host text widget, reduced to what synchronization needs.
type Editor interface {
	Text() string
	ScrollInfo() ScrollInfo
	SetScrollPercentage(p float64)
	ScrollToLine(line int)
}

// Preview is the rendered surface's scroll/highlight face. Programmatic
// scrolls are animated over the given duration.
type Preview interface {
	ScrollInfo() ScrollInfo
	ScrollTo(top float64, d time.Duration)
	ScrollIntoView(nodeID string, d time.Duration)
	Highlight(nodeID string)
}

// Config carries the coordinator's scheduling windows. Zero fields fall back
// to the defaults.
type Config struct {
	ScrollDebounce    time.Duration // coalesce rapid scroll events
	HighlightThrottle time.Duration // cursor highlight cadence
	RenderDebounce    time.Duration // content change -> full re-render
	SmoothScroll      time.Duration // animated transition length
	Bidirectional     bool          // enable the preview -> editor path
}

func (c Config) withDefaults() Config {
	if c.ScrollDebounce <= 0 {
		c.ScrollDebounce = 100 * time.Millisecond
	}
	if c.HighlightThrottle <= 0 {
		c.HighlightThrottle = 100 * time.Millisecond
	}
	if c.RenderDebounce <= 0 {
		c.RenderDebounce = 300 * time.Millisecond
	}
	if c.SmoothScroll <= 0 {
		c.SmoothScroll = 300 * time.Millisecond
	}
	return c
}

// Coordinator owns the bidirectional event flow between one editor and one
// preview. While a sync is in flight in one direction, events from the other
// origin are dropped, not queued: the programmatic scroll a sync issues must
// never re-trigger a sync in the opposite direction.
type Coordinator struct {
	mu    sync.Mutex
	state State
	table *linemap.Table

	editor  Editor
	preview Preview
	cfg     Config
	log     *slog.Logger

	renderFn func()

	editorScroll  *sched.Debouncer
	previewScroll *sched.Debouncer
	highlight     *sched.Throttler
	render        *sched.Debouncer

	lastEditorScroll  Event
	lastPreviewScroll Event
	lastCursor        Event
}

func New(editor Editor, preview Preview, cfg Config, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		state:   StateIdle,
		editor:  editor,
		preview: preview,
		cfg:     cfg.withDefaults(),
		log:     log,
	}
	c.editorScroll = sched.NewDebouncer(c.cfg.ScrollDebounce, c.syncFromEditor)
	c.previewScroll = sched.NewDebouncer(c.cfg.ScrollDebounce, c.syncFromPreview)
	c.highlight = sched.NewThrottler(c.cfg.HighlightThrottle, c.highlightCursor)
	c.render = sched.NewDebouncer(c.cfg.RenderDebounce, func() {
		if fn := c.renderFunc(); fn != nil {
			fn()
		}
	})
	return c
}

// SetRenderFunc installs the full re-render cycle run on (debounced) content
// changes.
func (c *Coordinator) SetRenderFunc(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderFn = fn
}

func (c *Coordinator) renderFunc() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderFn
}

// SetTable swaps in a freshly built correspondence table. The old table is
// replaced whole.
func (c *Coordinator) SetTable(t *linemap.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = t
}

// State returns the current synchronization state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels all pending scheduled work.
func (c *Coordinator) Close() {
	c.editorScroll.Cancel()
	c.previewScroll.Cancel()
	c.highlight.Cancel()
	c.render.Cancel()
}

// Handle routes one event. It never blocks on I/O; scroll events are
// debounced, cursor highlighting is throttled, content changes are debounced
// separately, and clicks sync immediately.
func (c *Coordinator) Handle(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	switch ev.Kind {
	case EventContentChange:
		c.render.Call()

	case EventScroll:
		if ev.Origin == OriginEditor {
			if c.suppressed(OriginEditor) {
				return
			}
			c.mu.Lock()
			c.lastEditorScroll = ev
			c.mu.Unlock()
			c.editorScroll.Call()
			return
		}
		if !c.cfg.Bidirectional || c.suppressed(OriginPreview) {
			return
		}
		c.mu.Lock()
		c.lastPreviewScroll = ev
		c.mu.Unlock()
		c.previewScroll.Call()

	case EventCursor:
		if ev.Origin != OriginEditor || c.suppressed(OriginEditor) {
			return
		}
		c.mu.Lock()
		c.lastCursor = ev
		c.mu.Unlock()
		c.highlight.Call()

	case EventClick:
		if ev.Origin != OriginPreview || !c.cfg.Bidirectional || c.suppressed(OriginPreview) {
			return
		}
		c.mu.Lock()
		c.lastPreviewScroll = ev
		c.mu.Unlock()
		c.syncFromPreview()
	}
}

// suppressed reports whether events from origin must be dropped because a
// sync in the opposite direction is in flight.
func (c *Coordinator) suppressed(origin Origin) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if origin == OriginEditor {
		return c.state == StateSyncingFromPreview
	}
	return c.state == StateSyncingFromEditor
}

// syncFromEditor applies the editor's position to the preview: exact or
// nearest line mapping when one exists, percentage fallback otherwise.
func (c *Coordinator) syncFromEditor() {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateSyncingFromEditor
	ev := c.lastEditorScroll
	table := c.table
	c.mu.Unlock()

	defer c.setIdle()

	if table != nil {
		if m, ok := table.Nearest(ev.Position.Line); ok {
			c.preview.ScrollIntoView(m.NodeID, c.cfg.SmoothScroll)
			return
		}
	}
	info := c.preview.ScrollInfo()
	top := (info.Height - info.ClientHeight) * clamp01(ev.Position.OffsetPercentage)
	c.preview.ScrollTo(top, c.cfg.SmoothScroll)
}

// syncFromPreview is the symmetric path: resolve the preview element back to
// a source line via the reverse map, percentage fallback otherwise.
func (c *Coordinator) syncFromPreview() {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateSyncingFromPreview
	ev := c.lastPreviewScroll
	table := c.table
	c.mu.Unlock()

	defer c.setIdle()

	if table != nil && ev.NodeID != "" {
		if m, ok := table.ByNode(ev.NodeID); ok {
			c.editor.ScrollToLine(m.Line)
			return
		}
	}
	c.editor.SetScrollPercentage(clamp01(ev.Position.OffsetPercentage))
}

// highlightCursor tracks the cursor continuously; it reads state but never
// transitions it, since highlighting cannot feed back.
func (c *Coordinator) highlightCursor() {
	c.mu.Lock()
	ev := c.lastCursor
	table := c.table
	c.mu.Unlock()

	if table == nil {
		return
	}
	if m, ok := table.Nearest(ev.Position.Line); ok {
		c.preview.Highlight(m.NodeID)
	}
}

func (c *Coordinator) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
