// Package patch replays diff output against a live rendered surface. The
// applier is the only component that mutates the surface or the id→handle
// map.
package patch

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/livemark/internal/diff"
	"github.com/dgallion1/livemark/internal/vdom"
)

// Applier owns the mapping from virtual node ids to surface handles and
// applies op sequences in order. Ops are single-shot: a sequence is derived
// fresh from a tree pair and applied exactly once.
type Applier struct {
	surface Surface
	handles map[string]Handle
	log     *slog.Logger
	skipped int
}

// NewApplier wraps a surface. The caller must Rebind with the tree the
// surface currently displays (an empty container for a fresh surface) before
// the first Apply.
func NewApplier(surface Surface, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{
		surface: surface,
		handles: make(map[string]Handle),
		log:     log,
	}
}

// Apply replays ops in the order received. An op referencing an unknown or
// stale id is logged and skipped rather than failing the cycle: a previous
// partial failure must not cascade. It returns the number of ops skipped.
func (a *Applier) Apply(ops []diff.Op) int {
	skippedBefore := a.skipped
	for _, op := range ops {
		a.applyOne(op)
	}
	return a.skipped - skippedBefore
}

func (a *Applier) applyOne(op diff.Op) {
	switch op.Type {
	case diff.OpAdd:
		parent, ok := a.parentHandle(op.ParentID)
		if !ok || op.Node == nil {
			a.skip(op, "unknown parent")
			return
		}
		h := a.surface.CreateSubtree(op.Node)
		a.surface.InsertChild(parent, h, op.Index)
		a.handles[op.Node.ID] = h
	case diff.OpRemove:
		h, ok := a.handles[op.NodeID]
		if !ok {
			a.skip(op, "unknown node")
			return
		}
		a.surface.RemoveChild(h)
		delete(a.handles, op.NodeID)
	case diff.OpUpdateAttr:
		h, ok := a.handles[op.NodeID]
		if !ok {
			a.skip(op, "unknown node")
			return
		}
		a.surface.SetAttributes(h, op.Attrs)
	case diff.OpUpdateText:
		h, ok := a.handles[op.NodeID]
		if !ok {
			a.skip(op, "unknown node")
			return
		}
		a.surface.SetText(h, op.Text)
	case diff.OpMove:
		h, ok := a.handles[op.NodeID]
		if !ok {
			a.skip(op, "unknown node")
			return
		}
		parent, ok := a.parentHandle(op.ParentID)
		if !ok {
			a.skip(op, "unknown parent")
			return
		}
		a.surface.MoveChild(h, parent, op.Index)
	default:
		a.skip(op, "unknown op type")
	}
}

// parentHandle resolves a parent id; the empty id means the surface root.
func (a *Applier) parentHandle(id string) (Handle, bool) {
	if id == "" {
		return a.surface.RootHandle(), true
	}
	h, ok := a.handles[id]
	return h, ok
}

func (a *Applier) skip(op diff.Op, reason string) {
	a.skipped++
	a.log.Warn("patch op skipped",
		"op", string(op.Type),
		"node_id", op.NodeID,
		"reason", reason,
	)
}

// Rebind replaces the handle map by walking tree and surface in lockstep,
// binding the tree root to the surface root. After a successful Apply the two
// must have identical shape; a mismatch means the surface diverged and is
// returned as an error so the caller can rebuild from scratch. Stale handles
// from the superseded tree are discarded wholesale.
func (a *Applier) Rebind(tree *vdom.Node) error {
	fresh := make(map[string]Handle, len(a.handles))
	if err := bind(a.surface, tree, a.surface.RootHandle(), fresh); err != nil {
		return err
	}
	a.handles = fresh
	return nil
}

func bind(s Surface, n *vdom.Node, h Handle, out map[string]Handle) error {
	out[n.ID] = h
	children := s.ChildHandles(h)
	if len(children) != len(n.Children) {
		return fmt.Errorf("surface diverged at %s <%s>: %d children on surface, %d in tree",
			n.ID, n.Tag, len(children), len(n.Children))
	}
	for i, c := range n.Children {
		if err := bind(s, c, children[i], out); err != nil {
			return err
		}
	}
	return nil
}

// Handle returns the surface handle bound to a node id.
func (a *Applier) Handle(id string) (Handle, bool) {
	h, ok := a.handles[id]
	return h, ok
}

// SkippedTotal returns how many ops have been skipped over the applier's
// lifetime, for diagnostics.
func (a *Applier) SkippedTotal() int { return a.skipped }
