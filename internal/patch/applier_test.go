package patch_test

import (
	"log/slog"
	"testing"

	"github.com/dgallion1/livemark/internal/diff"
	"github.com/dgallion1/livemark/internal/memdom"
	"github.com/dgallion1/livemark/internal/patch"
	"github.com/dgallion1/livemark/internal/vdom"
)

func mustParse(t *testing.T, fragment string) *vdom.Node {
	t.Helper()
	root, err := vdom.Parse(fragment)
	if err != nil {
		t.Fatalf("parse %q: %v", fragment, err)
	}
	return root
}

// boundSurface builds a surface displaying tree and an applier bound to it.
func boundSurface(t *testing.T, tree *vdom.Node) (*memdom.DOM, *patch.Applier) {
	t.Helper()
	dom := memdom.New()
	a := patch.NewApplier(dom, slog.Default())
	empty := vdom.NewElement("div")
	if err := a.Rebind(empty); err != nil {
		t.Fatalf("bind empty surface: %v", err)
	}
	if skipped := a.Apply(diff.Diff(empty, tree)); skipped != 0 {
		t.Fatalf("seeding surface skipped %d ops", skipped)
	}
	if err := a.Rebind(tree); err != nil {
		t.Fatalf("rebind seeded surface: %v", err)
	}
	return dom, a
}

func TestApplier_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
	}{
		{"text edit", `<p>Hello</p><p>World</p>`, `<p>Hello</p><p>Goodbye</p>`},
		{"tag change", `<p>x</p>`, `<h1>x</h1>`},
		{"append", `<p>a</p>`, `<p>a</p><ul><li>b</li></ul>`},
		{"truncate", `<p>a</p><p>b</p><p>c</p>`, `<p>a</p>`},
		{"attrs", `<p class="a">x</p>`, `<p class="b" data-line="4">x</p>`},
		{"everything", `<h1>T</h1><p>a</p><p>b</p>`, `<h2>T2</h2><p>a</p><ol><li>c</li></ol><hr>`},
		{"empty to doc", ``, `<h1>fresh</h1><p>body</p>`},
		{"doc to empty", `<h1>old</h1><p>body</p>`, ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from := mustParse(t, tc.from)
			to := mustParse(t, tc.to)
			dom, a := boundSurface(t, from)

			if skipped := a.Apply(diff.Diff(from, to)); skipped != 0 {
				t.Fatalf("apply skipped %d ops", skipped)
			}
			if !vdom.Equal(dom.Snapshot(), to) {
				t.Errorf("surface does not match target:\nwant %s\n got %s",
					vdom.RenderHTML(to, true), vdom.RenderHTML(dom.Snapshot(), true))
			}
			if err := a.Rebind(to); err != nil {
				t.Errorf("rebind after apply: %v", err)
			}
		})
	}
}

func TestApplier_UnknownIDSkippedNotFatal(t *testing.T) {
	from := mustParse(t, `<p>a</p><p>b</p>`)
	dom, a := boundSurface(t, from)

	ops := []diff.Op{
		{Type: diff.OpUpdateText, NodeID: "vn-never-issued", Text: "x"},
		{Type: diff.OpUpdateText, NodeID: from.Children[0].Children[0].ID, Text: "A"},
	}
	skipped := a.Apply(ops)
	if skipped != 1 {
		t.Fatalf("expected 1 skipped op, got %d", skipped)
	}
	// The valid op still applied.
	want := mustParse(t, `<p>A</p><p>b</p>`)
	if !vdom.Equal(dom.Snapshot(), want) {
		t.Errorf("valid op after a skipped op did not apply: %s", vdom.RenderHTML(dom.Snapshot(), true))
	}
	if a.SkippedTotal() != 1 {
		t.Errorf("expected lifetime skip count 1, got %d", a.SkippedTotal())
	}
}

func TestApplier_MoveOp(t *testing.T) {
	from := mustParse(t, `<p>a</p><p>b</p><p>c</p>`)
	dom, a := boundSurface(t, from)

	// Move the last paragraph to the front of the root container.
	ops := []diff.Op{{
		Type:     diff.OpMove,
		NodeID:   from.Children[2].ID,
		ParentID: "",
		Index:    0,
	}}
	if skipped := a.Apply(ops); skipped != 0 {
		t.Fatalf("move skipped")
	}
	want := mustParse(t, `<p>c</p><p>a</p><p>b</p>`)
	if !vdom.Equal(dom.Snapshot(), want) {
		t.Errorf("expected reorder, got %s", vdom.RenderHTML(dom.Snapshot(), true))
	}
}

func TestApplier_RemoveInvalidatesHandle(t *testing.T) {
	from := mustParse(t, `<p>a</p><p>b</p>`)
	_, a := boundSurface(t, from)

	target := from.Children[1].ID
	if skipped := a.Apply([]diff.Op{{Type: diff.OpRemove, NodeID: target}}); skipped != 0 {
		t.Fatalf("remove skipped")
	}
	if _, ok := a.Handle(target); ok {
		t.Error("handle should be dropped after removal")
	}
	// A second op against the removed node is skipped, not applied.
	if skipped := a.Apply([]diff.Op{{Type: diff.OpUpdateText, NodeID: target, Text: "x"}}); skipped != 1 {
		t.Errorf("expected stale op to be skipped, got %d", skipped)
	}
}

func TestApplier_RebindDetectsDivergence(t *testing.T) {
	from := mustParse(t, `<p>a</p>`)
	_, a := boundSurface(t, from)

	// Claim the surface shows a different shape than it does.
	wrong := mustParse(t, `<p>a</p><p>phantom</p>`)
	if err := a.Rebind(wrong); err == nil {
		t.Error("expected rebind to report the divergent child count")
	}
}

func TestApplier_RebindSwapsHandleGeneration(t *testing.T) {
	from := mustParse(t, `<p>a</p>`)
	_, a := boundSurface(t, from)

	to := mustParse(t, `<p>a</p>`)
	if _, ok := a.Handle(to.Children[0].ID); ok {
		t.Fatal("new tree ids must not be bound before rebind")
	}
	if err := a.Rebind(to); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if _, ok := a.Handle(to.Children[0].ID); !ok {
		t.Error("new tree ids should be bound after rebind")
	}
	if _, ok := a.Handle(from.Children[0].ID); ok {
		t.Error("superseded tree ids should be discarded by rebind")
	}
}
