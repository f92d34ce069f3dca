package preview

import (
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/livemark/internal/memdom"
	"github.com/dgallion1/livemark/internal/syncer"
)

func newTestSession(t *testing.T) (*Session, *memdom.DOM) {
	t.Helper()
	dom := memdom.New()
	s, err := NewSession(Options{Surface: dom})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s, dom
}

func TestSession_FullCycle(t *testing.T) {
	s, dom := newTestSession(t)

	s.SetSource("# Title\n\nFirst paragraph.")
	if err := s.Render(); err != nil {
		t.Fatalf("render: %v", err)
	}

	frag := s.Fragment()
	if !strings.Contains(frag, "<h1") || !strings.Contains(frag, "Title") {
		t.Errorf("fragment missing rendered heading: %s", frag)
	}
	if got := dom.Snapshot().TextContent(); !strings.Contains(got, "First paragraph.") {
		t.Errorf("surface missing rendered text: %q", got)
	}
	table := s.Table()
	if table == nil || table.Len() == 0 {
		t.Fatal("expected a populated correspondence table after render")
	}
	if _, ok := table.ByLine(1); !ok {
		t.Error("expected line 1 mapped from the data-line annotation")
	}
}

func TestSession_IncrementalEdit(t *testing.T) {
	s, dom := newTestSession(t)

	s.SetSource("Hello\n\nWorld")
	if err := s.Render(); err != nil {
		t.Fatalf("first render: %v", err)
	}
	before := dom.Snapshot()

	s.SetSource("Hello\n\nGoodbye")
	if err := s.Render(); err != nil {
		t.Fatalf("second render: %v", err)
	}
	after := dom.Snapshot()

	if len(before.Children) != len(after.Children) {
		t.Errorf("a text-only edit should keep the element structure, got %d -> %d children",
			len(before.Children), len(after.Children))
	}
	if got := after.TextContent(); !strings.Contains(got, "Goodbye") || strings.Contains(got, "World") {
		t.Errorf("expected updated text on the surface, got %q", got)
	}
}

func TestSession_SurfaceDivergenceRecovered(t *testing.T) {
	s, dom := newTestSession(t)

	s.SetSource("one\n\ntwo\n\nthree")
	if err := s.Render(); err != nil {
		t.Fatalf("first render: %v", err)
	}

	// Detach a paragraph behind the applier's back so the surface no longer
	// matches the tree.
	kids := dom.ChildHandles(dom.RootHandle())
	if len(kids) != 3 {
		t.Fatalf("expected 3 paragraphs on the surface, got %d", len(kids))
	}
	dom.RemoveChild(kids[1])

	s.SetSource("one\n\ntwo\n\nfour")
	if err := s.Render(); err != nil {
		t.Fatalf("render after divergence: %v", err)
	}

	got := dom.Snapshot().TextContent()
	for _, want := range []string{"one", "two", "four"} {
		if !strings.Contains(got, want) {
			t.Errorf("surface missing %q after rebuild, got %q", want, got)
		}
	}
	if strings.Contains(got, "three") {
		t.Errorf("surface still carries pre-divergence text: %q", got)
	}

	// Cycles after the rebuild patch incrementally again.
	s.SetSource("one\n\ntwo\n\nfive")
	if err := s.Render(); err != nil {
		t.Fatalf("render after recovery: %v", err)
	}
	if got := dom.Snapshot().TextContent(); !strings.Contains(got, "five") {
		t.Errorf("expected updated text after recovery, got %q", got)
	}
}

func TestSession_MalformedMarkupStillRenders(t *testing.T) {
	s, _ := newTestSession(t)

	// Raw HTML with unterminated tags passes through the markdown pipeline;
	// the fragment parser recovers instead of failing the cycle.
	s.SetSource("before\n\n<div><span>unterminated\n\nafter")
	if err := s.Render(); err != nil {
		t.Fatalf("render: %v", err)
	}
	if s.ParseFailures() != 0 {
		t.Errorf("recoverable markup must not count as a parse failure, got %d", s.ParseFailures())
	}
	frag := s.Fragment()
	if !strings.Contains(frag, "unterminated") {
		t.Errorf("expected recovered content in fragment: %s", frag)
	}
}

func TestSession_RenderDebouncedThroughEvents(t *testing.T) {
	dom := memdom.New()
	s, err := NewSession(Options{
		Surface: dom,
		Sync:    syncer.Config{RenderDebounce: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	s.SetSource("debounced body text")

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if strings.Contains(s.Fragment(), "debounced body text") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("debounced render never reached the surface")
}

func TestSession_EmptySource(t *testing.T) {
	s, dom := newTestSession(t)
	if err := s.Render(); err != nil {
		t.Fatalf("render of empty source: %v", err)
	}
	if len(dom.Snapshot().Children) != 0 {
		t.Errorf("expected empty surface, got %s", s.Fragment())
	}
	if s.Fragment() != "" {
		t.Errorf("expected empty fragment, got %q", s.Fragment())
	}
}

func TestSession_StateIdleAtRest(t *testing.T) {
	s, _ := newTestSession(t)
	if s.State() != syncer.StateIdle {
		t.Errorf("expected idle state, got %s", s.State())
	}
}

func TestSession_UniqueIDs(t *testing.T) {
	a, _ := newTestSession(t)
	b, _ := newTestSession(t)
	if a.ID == b.ID {
		t.Errorf("sessions share id %s", a.ID)
	}
	if len(a.ID) != 26 {
		t.Errorf("expected 26-character id, got %d (%s)", len(a.ID), a.ID)
	}
}
