package vdom

import (
	"html"
	"strings"
)

// Elements that never have children or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Raw-text elements whose content must not be entity-escaped.
var rawTextElements = map[string]bool{
	"script": true, "style": true,
}

// RenderHTML serializes the tree back to HTML. The synthetic container root
// created by Parse is rendered as its children only when skipRoot is true.
func RenderHTML(n *Node, skipRoot bool) string {
	var buf strings.Builder
	if skipRoot {
		for _, c := range n.Children {
			writeHTML(&buf, c, false)
		}
	} else {
		writeHTML(&buf, n, false)
	}
	return buf.String()
}

func writeHTML(buf *strings.Builder, n *Node, raw bool) {
	switch n.Kind {
	case KindElement:
		buf.WriteByte('<')
		buf.WriteString(n.Tag)
		for _, a := range n.Attributes {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(html.EscapeString(a.Val))
			buf.WriteByte('"')
		}
		buf.WriteByte('>')
		if voidElements[n.Tag] {
			return
		}
		childRaw := rawTextElements[n.Tag]
		for _, c := range n.Children {
			writeHTML(buf, c, childRaw)
		}
		buf.WriteString("</")
		buf.WriteString(n.Tag)
		buf.WriteByte('>')
	case KindText:
		if raw {
			buf.WriteString(n.Text)
		} else {
			buf.WriteString(html.EscapeString(n.Text))
		}
	case KindComment:
		buf.WriteString("<!--")
		buf.WriteString(n.Text)
		buf.WriteString("-->")
	case KindCDATA:
		buf.WriteString(n.Text)
	case KindDoctype:
		buf.WriteString("<!DOCTYPE ")
		buf.WriteString(n.Text)
		buf.WriteByte('>')
	}
}
