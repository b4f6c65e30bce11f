package render

import "strings"

// Tree queries used by the tests to inspect rendered views.

// Attr returns the value of attribute key
func (n *Node) Attr(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// HasClass reports whether the class attribute contains class
func (n *Node) HasClass(class string) bool {
	for _, c := range strings.Fields(n.Attr("class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth first, stopping a branch when fn
// returns false
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Find returns every descendant (including n) matching pred in document order
func Find(n *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ByTag matches element nodes with the given tag
func ByTag(tag string) func(*Node) bool {
	return func(n *Node) bool { return n.Tag == tag }
}

// ByClass matches element nodes carrying class
func ByClass(class string) func(*Node) bool {
	return func(n *Node) bool { return n.HasClass(class) }
}

// TextContent concatenates every text node below n
func TextContent(n *Node) string {
	var b strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Tag == "" {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}
