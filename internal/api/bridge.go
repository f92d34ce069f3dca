package api

import (
	"sync"
	"time"

	"github.com/dgallion1/livemark/internal/syncer"
)

// Directive is a pending instruction for one of the client's surfaces. The
// coordinator runs server-side; the browser applies whatever directive is
// current the next time it checks in.
type Directive struct {
	Seq        uint64  `json:"seq"`
	Action     string  `json:"action"` // scroll_to | scroll_into_view | highlight | scroll_to_line | set_scroll_percentage
	NodeID     string  `json:"node_id,omitempty"`
	Top        float64 `json:"top,omitempty"`
	Line       int     `json:"line,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
}

// bridges adapts one HTTP client to the coordinator's Editor and Preview
// interfaces: scroll geometry reported by the client is replayed on demand,
// and programmatic scrolls become directives for the client to pick up.
type bridges struct {
	editor  *editorBridge
	preview *previewBridge
}

func newBridges() *bridges {
	return &bridges{editor: &editorBridge{}, preview: &previewBridge{}}
}

type editorBridge struct {
	mu   sync.Mutex
	text string
	info syncer.ScrollInfo
	last Directive
	seq  uint64
}

// SetText mirrors the current document text into the bridge. An empty string
// clears it.
func (b *editorBridge) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}

func (b *editorBridge) SetInfo(info syncer.ScrollInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = info
}

func (b *editorBridge) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *editorBridge) ScrollInfo() syncer.ScrollInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}

func (b *editorBridge) SetScrollPercentage(p float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.last = Directive{Seq: b.seq, Action: "set_scroll_percentage", Percentage: p}
}

func (b *editorBridge) ScrollToLine(line int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.last = Directive{Seq: b.seq, Action: "scroll_to_line", Line: line}
}

func (b *editorBridge) Latest() Directive {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

type previewBridge struct {
	mu   sync.Mutex
	info syncer.ScrollInfo
	last Directive
	seq  uint64
}

func (b *previewBridge) SetInfo(info syncer.ScrollInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = info
}

func (b *previewBridge) ScrollInfo() syncer.ScrollInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}

func (b *previewBridge) ScrollTo(top float64, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.last = Directive{Seq: b.seq, Action: "scroll_to", Top: top, DurationMs: d.Milliseconds()}
}

func (b *previewBridge) ScrollIntoView(nodeID string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.last = Directive{Seq: b.seq, Action: "scroll_into_view", NodeID: nodeID, DurationMs: d.Milliseconds()}
}

func (b *previewBridge) Highlight(nodeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.last = Directive{Seq: b.seq, Action: "highlight", NodeID: nodeID}
}

func (b *previewBridge) Latest() Directive {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
