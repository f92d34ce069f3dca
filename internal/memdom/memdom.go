// Package memdom is an in-memory rendered surface: a small mutable DOM the
// patch applier can drive without a browser. previewd keeps one per session
// as the server-side copy of the preview, and the engine tests verify
// diff/patch round-trips against it.
package memdom

import (
	"strings"

	"github.com/dgallion1/livemark/internal/patch"
	"github.com/dgallion1/livemark/internal/vdom"
)

// Node is one live node. The zero value is not usable; nodes are created by
// the DOM from virtual nodes.
type Node struct {
	Kind     vdom.Kind
	Tag      string
	Attrs    []vdom.Attr
	Text     string
	parent   *Node
	children []*Node
}

// DOM is a rendered surface rooted at a single container element.
type DOM struct {
	root *Node
}

// New returns a DOM holding an empty container, matching the empty virtual
// tree a session starts from.
func New() *DOM {
	return &DOM{root: &Node{Kind: vdom.KindElement, Tag: "div"}}
}

func (d *DOM) RootHandle() patch.Handle { return d.root }

func (d *DOM) CreateSubtree(n *vdom.Node) patch.Handle {
	return build(n)
}

func build(n *vdom.Node) *Node {
	node := &Node{
		Kind:  n.Kind,
		Tag:   n.Tag,
		Attrs: append([]vdom.Attr(nil), n.Attributes...),
		Text:  n.Text,
	}
	for _, c := range n.Children {
		child := build(c)
		child.parent = node
		node.children = append(node.children, child)
	}
	return node
}

func (d *DOM) InsertChild(parent, child patch.Handle, index int) {
	p := parent.(*Node)
	c := child.(*Node)
	if index < 0 {
		index = 0
	}
	if index > len(p.children) {
		index = len(p.children)
	}
	c.parent = p
	p.children = append(p.children, nil)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = c
}

func (d *DOM) RemoveChild(child patch.Handle) {
	c := child.(*Node)
	p := c.parent
	if p == nil {
		return
	}
	for i, n := range p.children {
		if n == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	c.parent = nil
}

func (d *DOM) MoveChild(child, parent patch.Handle, index int) {
	d.RemoveChild(child)
	d.InsertChild(parent, child, index)
}

func (d *DOM) SetAttributes(h patch.Handle, attrs []vdom.Attr) {
	h.(*Node).Attrs = append([]vdom.Attr(nil), attrs...)
}

func (d *DOM) SetText(h patch.Handle, text string) {
	h.(*Node).Text = text
}

func (d *DOM) ChildHandles(parent patch.Handle) []patch.Handle {
	p := parent.(*Node)
	out := make([]patch.Handle, len(p.children))
	for i, c := range p.children {
		out[i] = c
	}
	return out
}

// Snapshot converts the current surface state back into a virtual tree with
// fresh ids. Tests compare it against the expected tree with vdom.Equal.
func (d *DOM) Snapshot() *vdom.Node {
	return snapshot(d.root)
}

func snapshot(n *Node) *vdom.Node {
	out := &vdom.Node{
		ID:         vdom.NextID(),
		Kind:       n.Kind,
		Tag:        n.Tag,
		Attributes: append([]vdom.Attr(nil), n.Attrs...),
		Text:       n.Text,
	}
	for _, c := range n.children {
		out.Children = append(out.Children, snapshot(c))
	}
	return out
}

// TextContent returns the concatenated text under a node.
func (n *Node) TextContent() string {
	var buf strings.Builder
	n.writeText(&buf)
	return buf.String()
}

func (n *Node) writeText(buf *strings.Builder) {
	if n.Kind == vdom.KindText {
		buf.WriteString(n.Text)
	}
	for _, c := range n.children {
		c.writeText(buf)
	}
}
