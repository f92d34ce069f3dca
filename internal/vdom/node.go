// Package vdom holds the virtual document tree the preview engine diffs and
// patches. Trees are immutable by convention: the parser creates them, the diff
// engine reads them, and nobody mutates a tree once it has been handed out.
package vdom

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// Kind identifies what a Node represents.
type Kind uint8

const (
	KindElement Kind = iota
	KindText
	KindComment
	KindCDATA
	KindDoctype
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComment:
		return "comment"
	case KindCDATA:
		return "cdata"
	case KindDoctype:
		return "doctype"
	}
	return "unknown"
}

// Attr is a single attribute. Order is preserved from the source markup.
type Attr struct {
	Key string
	Val string
}

// Node is one node of a virtual document tree.
//
// ID is synthetic and unique across all trees created in this process, never
// derived from content. A full re-parse always produces fresh IDs.
type Node struct {
	ID         string
	Kind       Kind
	Tag        string // elements only
	Attributes []Attr // elements only
	Children   []*Node
	Text       string // text, comment, cdata, doctype
	SourceLine int    // 1-based line in the originating source, 0 when unknown
}

var idCounter atomic.Uint64

// NextID returns a fresh node id. IDs are process-unique so handles from a
// superseded tree can never collide with handles from its replacement.
func NextID() string {
	return "vn" + strconv.FormatUint(idCounter.Add(1), 10)
}

// NewElement creates an element node with a fresh id.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{ID: NextID(), Kind: KindElement, Tag: tag, Attributes: attrs}
}

// NewText creates a text node with a fresh id.
func NewText(text string) *Node {
	return &Node{ID: NextID(), Kind: KindText, Text: text}
}

// Append adds children to an element node and returns it.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns the value of the named attribute and whether it is present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attributes {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the concatenated text of the node and its descendants.
func (n *Node) TextContent() string {
	var buf strings.Builder
	n.writeText(&buf)
	return buf.String()
}

func (n *Node) writeText(buf *strings.Builder) {
	if n.Kind == KindText {
		buf.WriteString(n.Text)
	}
	for _, c := range n.Children {
		c.writeText(buf)
	}
}

// Walk visits n and every descendant in document order. Returning false from
// fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Equal reports structural equality: kind, tag, attributes (order included),
// text and child order all match. IDs and source lines are ignored.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Tag != b.Tag || a.Text != b.Text {
		return false
	}
	if len(a.Attributes) != len(b.Attributes) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Attributes {
		if a.Attributes[i] != b.Attributes[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// AttrsEqual reports whether two attribute lists are identical, order included.
func AttrsEqual(a, b []Attr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
