// Package linemap builds the correspondence between editable source lines and
// rendered elements. The two sides share no addressing scheme, so entries come
// either from exact data-line markers the renderer injected (confidence 1.0)
// or from fuzzy text similarity between a source line and an element's text.
package linemap

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/livemark/internal/vdom"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Mapping associates one source line with one rendered element.
type Mapping struct {
	Line        int     `json:"line"`
	NodeID      string  `json:"node_id"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matched_text"`
}

// Table holds the forward (line→element) and reverse (element→line) maps for
// one build. A table is immutable once built; the coordinator swaps whole
// tables so a concurrently firing sync event never observes a half-updated
// state.
type Table struct {
	forward map[int]Mapping
	reverse map[string]Mapping
	window  int
}

// ByLine returns the exact mapping for a source line.
func (t *Table) ByLine(line int) (Mapping, bool) {
	m, ok := t.forward[line]
	return m, ok
}

// ByNode returns the mapping for a rendered element id.
func (t *Table) ByNode(id string) (Mapping, bool) {
	m, ok := t.reverse[id]
	return m, ok
}

// Nearest returns the mapping closest to line, scanning outward up to the
// fallback window. Lines with no confident match of their own land on a
// neighbor instead of failing; the second result is false only when the whole
// window is empty.
func (t *Table) Nearest(line int) (Mapping, bool) {
	if m, ok := t.forward[line]; ok {
		return m, true
	}
	for d := 1; d <= t.window; d++ {
		if m, ok := t.forward[line-d]; ok {
			return m, true
		}
		if m, ok := t.forward[line+d]; ok {
			return m, true
		}
	}
	return Mapping{}, false
}

// Len returns the number of forward entries.
func (t *Table) Len() int { return len(t.forward) }

// Forward returns a copy of the forward map, for serving to clients.
func (t *Table) Forward() map[int]Mapping {
	out := make(map[int]Mapping, len(t.forward))
	for k, v := range t.forward {
		out[k] = v
	}
	return out
}

// Builder computes tables. The zero value is not usable; use NewBuilder.
type Builder struct {
	threshold  float64 // minimum confidence for an entry to exist
	window     int     // nearest-neighbor fallback distance in lines
	bucketSize int     // element count above which candidates are pre-filtered
}

func NewBuilder(threshold float64, window, bucketSize int) *Builder {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	if window <= 0 {
		window = 50
	}
	if bucketSize <= 0 {
		bucketSize = 5000
	}
	return &Builder{threshold: threshold, window: window, bucketSize: bucketSize}
}

// candidate is one rendered element that can anchor a line.
type candidate struct {
	id    string
	text  string
	runes int
	line  int // exact data-line marker, 0 when absent
}

// Build computes a fresh table for the given source text and rendered tree.
// Elements tagged with a data-line marker claim their line at confidence 1.0
// and bypass fuzzy matching entirely; every other non-blank line is scored
// against the remaining elements and kept only when the best score reaches
// the threshold. Ties keep the first candidate in document order.
func (b *Builder) Build(source string, root *vdom.Node) *Table {
	t := &Table{
		forward: make(map[int]Mapping),
		reverse: make(map[string]Mapping),
		window:  b.window,
	}
	if root == nil {
		return t
	}

	candidates := collect(root)

	// Exact markers first.
	for _, c := range candidates {
		if c.line <= 0 {
			continue
		}
		m := Mapping{Line: c.line, NodeID: c.id, Confidence: 1.0, MatchedText: c.text}
		if _, taken := t.forward[c.line]; !taken {
			t.insert(m)
		}
	}

	lines := strings.Split(source, "\n")
	prefilter := len(candidates) > b.bucketSize

	for i, raw := range lines {
		lineNo := i + 1
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if _, done := t.forward[lineNo]; done {
			continue
		}

		lineRunes := utf8.RuneCountInString(text)
		best := Mapping{}
		for _, c := range candidates {
			if c.line > 0 || c.text == "" {
				continue
			}
			if prefilter && !lengthCompatible(lineRunes, c.runes, b.threshold) {
				continue
			}
			score := Similarity(text, c.text)
			if score > best.Confidence {
				best = Mapping{Line: lineNo, NodeID: c.id, Confidence: score, MatchedText: c.text}
			}
		}
		if best.Confidence >= b.threshold {
			t.insert(best)
		}
	}
	return t
}

// insert records a mapping in both directions. When two lines land on the
// same element the reverse map keeps the higher-confidence one.
func (t *Table) insert(m Mapping) {
	t.forward[m.Line] = m
	if prev, ok := t.reverse[m.NodeID]; !ok || m.Confidence > prev.Confidence {
		t.reverse[m.NodeID] = m
	}
}

// lengthCompatible is the cheap pre-filter for oversized documents: the
// similarity of two strings can never exceed the ratio of their lengths, so
// pairs whose ratio is already below the threshold need no edit distance.
func lengthCompatible(a, b int, threshold float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	shorter, longer := a, b
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter)/float64(longer) >= threshold
}

// collect gathers elements whose own text can anchor a line, in document
// order. Container elements whose text is just the concatenation of their
// block children would shadow those children, so only elements without
// element children contribute fuzzy candidates; any element with a data-line
// marker contributes an exact one.
func collect(root *vdom.Node) []candidate {
	var out []candidate
	root.Walk(func(n *vdom.Node) bool {
		if n.Kind != vdom.KindElement || n == root {
			return true
		}
		if n.SourceLine > 0 {
			out = append(out, candidate{
				id:   n.ID,
				text: strings.TrimSpace(n.TextContent()),
				line: n.SourceLine,
			})
			return true
		}
		if hasElementChild(n) {
			return true
		}
		text := strings.TrimSpace(n.TextContent())
		if text == "" {
			return true
		}
		out = append(out, candidate{
			id:    n.ID,
			text:  text,
			runes: utf8.RuneCountInString(text),
		})
		return true
	})
	return out
}

func hasElementChild(n *vdom.Node) bool {
	for _, c := range n.Children {
		if c.Kind == vdom.KindElement {
			return true
		}
	}
	return false
}

// Similarity is the normalized Levenshtein score in [0,1]: identical strings
// score 1.0, and the score is symmetric. Two empty strings are identical.
func Similarity(a, b string) float64 {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1.0
	}
	longest := max(la, lb)
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
