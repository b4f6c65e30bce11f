package render

// Node is one element or text run of a view tree. A node with an empty Tag
// is a text node.
type Node struct {
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// El builds an element node
func El(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Tag: tag, Attrs: attrs, Children: children}
}

// Text builds a text node
func Text(s string) *Node {
	return &Node{Text: s}
}

// Append adds children and returns n
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}
