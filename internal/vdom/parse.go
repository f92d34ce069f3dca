package vdom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LineAttr is the attribute the renderer injects on block elements to record
// the 1-based source line they were generated from. Nodes carrying it get an
// exact line correspondence; everything else is matched fuzzily.
const LineAttr = "data-line"

// ParseError reports markup that could not be turned into a tree. Callers are
// expected to keep showing the previous good tree when they see one.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse markup: %s: %v", e.Msg, e.Err)
	}
	return "parse markup: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts an HTML fragment into a virtual tree rooted at a synthetic
// container element. Malformed markup (unterminated tags, stray brackets) is
// tolerated: the HTML5 parsing algorithm recovers by nesting or demoting the
// bad fragments to text, so Parse only fails on input it cannot read at all.
// Every node gets a fresh synthetic id.
func Parse(fragment string) (*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, &ParseError{Msg: "fragment not readable", Err: err}
	}

	root := NewElement("div")
	for _, n := range parsed {
		if child := fromHTMLNode(n); child != nil {
			root.Children = append(root.Children, child)
		}
	}
	return root, nil
}

// fromHTMLNode converts one x/net/html node (and its subtree). Node types the
// preview cannot anchor to come through as nil and are dropped.
func fromHTMLNode(n *html.Node) *Node {
	switch n.Type {
	case html.ElementNode:
		node := &Node{ID: NextID(), Kind: KindElement, Tag: n.Data}
		for _, a := range n.Attr {
			node.Attributes = append(node.Attributes, Attr{Key: a.Key, Val: a.Val})
			if a.Key == LineAttr {
				if line, err := strconv.Atoi(a.Val); err == nil && line > 0 {
					node.SourceLine = line
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := fromHTMLNode(c); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node
	case html.TextNode:
		return &Node{ID: NextID(), Kind: KindText, Text: n.Data}
	case html.CommentNode:
		return &Node{ID: NextID(), Kind: KindComment, Text: n.Data}
	case html.DoctypeNode:
		return &Node{ID: NextID(), Kind: KindDoctype, Text: n.Data}
	case html.RawNode:
		return &Node{ID: NextID(), Kind: KindCDATA, Text: n.Data}
	}
	return nil
}
