package render

import (
	"bytes"
	"sort"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML materializes n as markup. Text and attribute values are escaped and
// attributes are written in key order so the output is deterministic.
func HTML(n *Node) (string, error) {
	if n == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, toHTML(n)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toHTML(n *Node) *html.Node {
	if n.Tag == "" {
		return &html.Node{Type: html.TextNode, Data: n.Text}
	}

	out := &html.Node{
		Type:     html.ElementNode,
		Data:     n.Tag,
		DataAtom: atom.Lookup([]byte(n.Tag)),
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Attr = append(out.Attr, html.Attribute{Key: k, Val: n.Attrs[k]})
	}

	if n.Text != "" {
		out.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	for _, c := range n.Children {
		if c != nil {
			out.AppendChild(toHTML(c))
		}
	}
	return out
}
