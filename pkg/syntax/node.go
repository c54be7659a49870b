package syntax

// Node is one syntax tree node. The tree is built once from the parser's
// concrete tree and owned by weld, so node pointers are stable identities.
type Node struct {
	Type     string // Grammar node type, e.g. "identifier"
	Field    string // Field name in the parent, "" if none
	Start    int    // Byte offset of the first byte
	End      int    // Byte offset past the last byte
	Named    bool   // false for anonymous tokens like "(" or "export"
	Missing  bool   // Inserted by error recovery
	Parent   *Node
	Children []*Node
}

// Text returns the node's source text.
func (n *Node) Text(src string) string {
	if n == nil || n.Start < 0 || n.End > len(src) || n.Start > n.End {
		return ""
	}
	return src[n.Start:n.End]
}

// ChildByField returns the first child with the given field name.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns all children with the given field name.
func (n *Node) ChildrenByField(field string) []*Node {
	var out []*Node
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// ChildOfType returns the first child of the given type.
func (n *Node) ChildOfType(typ string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// NamedChildren returns children that are grammar nodes, skipping comments.
func (n *Node) NamedChildren() []*Node {
	var out []*Node
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if c.Named && c.Type != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Contains reports whether other lies inside n's span.
func (n *Node) Contains(other *Node) bool {
	return other.Start >= n.Start && other.End <= n.End
}

// Visitor walks a tree. Enter returning false skips the node's children;
// Leave is still called.
type Visitor interface {
	Enter(n *Node) bool
	Leave(n *Node)
}

// VisitorFunc adapts a function to a Visitor that ignores Leave.
type VisitorFunc func(n *Node) bool

func (f VisitorFunc) Enter(n *Node) bool { return f(n) }
func (f VisitorFunc) Leave(*Node)        {}

// Walk traverses n depth-first in source order.
func Walk(v Visitor, n *Node) {
	if n == nil {
		return
	}
	if v.Enter(n) {
		for _, c := range n.Children {
			Walk(v, c)
		}
	}
	v.Leave(n)
}

// Inspect calls fn for every node under n, including n.
func Inspect(n *Node, fn func(n *Node) bool) {
	Walk(VisitorFunc(fn), n)
}
