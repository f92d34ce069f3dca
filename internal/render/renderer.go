// Package render turns markdown source into the HTML fragment the preview
// displays. Block elements are annotated with the source line they came from
// so line correspondence can be exact instead of fuzzy, and image sources can
// be rewritten through the resource proxy.
package render

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dgallion1/livemark/internal/vdom"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Options configures a Renderer.
type Options struct {
	// AnnotateLines injects data-line attributes on block elements.
	AnnotateLines bool
	// ImageProxyPrefix, when non-empty, rewrites every image destination to
	// prefix + url-escaped original, so fetches go through the resource
	// loader instead of the preview surface.
	ImageProxyPrefix string
}

// Renderer is a pre-configured goldmark pipeline. Safe for concurrent use.
type Renderer struct {
	md   goldmark.Markdown
	opts Options
}

func New(opts Options) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md, opts: opts}
}

// Fragment renders source to an HTML fragment.
func (r *Renderer) Fragment(source []byte) (string, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))

	if r.opts.AnnotateLines {
		annotateLines(doc, source)
	}
	if r.opts.ImageProxyPrefix != "" {
		rewriteImages(doc, r.opts.ImageProxyPrefix)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Tree renders source and parses the fragment into a virtual tree in one
// step. This is the full content-parser path: markdown → HTML → VirtualNode.
func (r *Renderer) Tree(source []byte) (*vdom.Node, error) {
	fragment, err := r.Fragment(source)
	if err != nil {
		return nil, err
	}
	return vdom.Parse(fragment)
}

// annotateLines tags annotatable block nodes with the 1-based source line of
// their first segment. Elements carrying the tag seed an exact line
// correspondence downstream.
func annotateLines(doc ast.Node, source []byte) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || !annotatable(n) {
			return ast.WalkContinue, nil
		}
		offset, ok := firstOffset(n)
		if !ok {
			return ast.WalkContinue, nil
		}
		n.SetAttributeString(vdom.LineAttr, []byte(strconv.Itoa(lineOf(source, offset))))
		return ast.WalkContinue, nil
	})
}

// Code blocks are excluded: goldmark's stock code renderers drop node
// attributes, so annotating them would never reach the output and their
// lines fall back to fuzzy matching.
func annotatable(n ast.Node) bool {
	switch n.Kind() {
	case ast.KindHeading, ast.KindParagraph, ast.KindBlockquote,
		ast.KindList, ast.KindListItem, ast.KindThematicBreak:
		return true
	}
	return false
}

// firstOffset finds the byte offset of the first source segment under n.
func firstOffset(n ast.Node) (int, bool) {
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func lineOf(source []byte, offset int) int {
	if offset < 0 {
		offset = 0
	}
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}

// rewriteImages routes image destinations through the resource proxy.
func rewriteImages(doc ast.Node, prefix string) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		if dest == "" {
			return ast.WalkContinue, nil
		}
		img.Destination = []byte(prefix + url.QueryEscape(dest))
		return ast.WalkContinue, nil
	})
}
