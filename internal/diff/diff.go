// Package diff compares two virtual trees and emits the primitive edits that
// turn the first into the second.
//
// The comparison is a single structural pass, not a minimal tree edit
// distance: children are paired by index, a kind or tag change is a wholesale
// Remove+Add of the subtree, and sibling reorders are therefore reported as
// updates rather than moves. That costs extra ops when large sibling lists are
// reordered, which editing sessions almost never do, and keeps the pass O(n).
package diff

import (
	"github.com/dgallion1/livemark/internal/vdom"
)

// OpType identifies a primitive edit.
type OpType string

const (
	OpAdd        OpType = "add"         // insert a subtree under ParentID at Index
	OpRemove     OpType = "remove"      // remove the node NodeID
	OpUpdateAttr OpType = "update_attr" // replace the attribute list of NodeID
	OpUpdateText OpType = "update_text" // replace the text of NodeID
	OpMove       OpType = "move"        // reattach NodeID under ParentID at Index
)

// Op is one primitive edit. Targets (NodeID, ParentID) always refer to ids
// from the old tree, which is what the patch applier's handle map is keyed by;
// Node carries a subtree from the new tree for OpAdd.
//
// Per parent the emission order is: updates from paired children first, then
// removals descending by index, then additions ascending. Applied
// sequentially that order never leaves an index pointing at the wrong
// sibling. The engine never emits OpMove (positional pairing has no way to
// detect one cheaply); it is part of the op set because the applier supports
// it for callers that construct op sequences themselves.
type Op struct {
	Type     OpType
	NodeID   string
	ParentID string
	Index    int
	Node     *vdom.Node
	Attrs    []vdom.Attr
	Text     string
}

// Diff returns the ops that transform old into new. Neither tree is mutated.
// Identical trees produce no ops.
func Diff(old, new *vdom.Node) []Op {
	if old == nil && new == nil {
		return nil
	}
	if old == nil {
		return []Op{{Type: OpAdd, Node: new, Index: 0}}
	}
	if new == nil {
		return []Op{{Type: OpRemove, NodeID: old.ID}}
	}
	var ops []Op
	diffNodes(&ops, old, new, "", 0)
	return ops
}

// diffNodes compares a positionally paired node. parentID/index locate old
// within its parent so a wholesale replacement knows where to reinsert.
func diffNodes(ops *[]Op, old, new *vdom.Node, parentID string, index int) {
	if old.Kind != new.Kind || old.Tag != new.Tag {
		// No identity survives a kind or tag change; replace the subtree.
		*ops = append(*ops,
			Op{Type: OpRemove, NodeID: old.ID},
			Op{Type: OpAdd, ParentID: parentID, Index: index, Node: new},
		)
		return
	}

	switch old.Kind {
	case vdom.KindElement:
		if !vdom.AttrsEqual(old.Attributes, new.Attributes) {
			*ops = append(*ops, Op{Type: OpUpdateAttr, NodeID: old.ID, Attrs: new.Attributes})
		}
		diffChildren(ops, old, new)
	default:
		// Text-bearing kinds: text, comment, cdata, doctype.
		if old.Text != new.Text {
			*ops = append(*ops, Op{Type: OpUpdateText, NodeID: old.ID, Text: new.Text})
		}
	}
}

func diffChildren(ops *[]Op, old, new *vdom.Node) {
	common := min(len(old.Children), len(new.Children))

	for i := 0; i < common; i++ {
		diffNodes(ops, old.Children[i], new.Children[i], old.ID, i)
	}

	// Extra old children go away, highest index first so earlier removals
	// never shift a later target.
	for i := len(old.Children) - 1; i >= common; i-- {
		*ops = append(*ops, Op{Type: OpRemove, NodeID: old.Children[i].ID})
	}

	// Extra new children are appended in order.
	for i := common; i < len(new.Children); i++ {
		*ops = append(*ops, Op{Type: OpAdd, ParentID: old.ID, Index: i, Node: new.Children[i]})
	}
}
