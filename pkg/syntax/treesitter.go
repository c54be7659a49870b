package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/javascript"
)

// grammar selects the tree-sitter language for a parse.
type grammar int

const (
	grammarJavaScript grammar = iota
	grammarCSS
)

func (g grammar) language() *sitter.Language {
	if g == grammarCSS {
		return css.GetLanguage()
	}
	return javascript.GetLanguage()
}

// parseTree runs tree-sitter over src and converts the result into weld's
// own node tree. A new tree-sitter parser is created per call, so parseTree
// is safe for concurrent use.
func parseTree(ctx context.Context, g grammar, src []byte) (*Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewTreeCursor(tree.RootNode())
	defer cursor.Close()
	return convert(cursor, nil), nil
}

func convert(cursor *sitter.TreeCursor, parent *Node) *Node {
	tn := cursor.CurrentNode()
	n := &Node{
		Type:    tn.Type(),
		Field:   cursor.CurrentFieldName(),
		Start:   int(tn.StartByte()),
		End:     int(tn.EndByte()),
		Named:   tn.IsNamed(),
		Missing: tn.IsMissing(),
		Parent:  parent,
	}
	if cursor.GoToFirstChild() {
		for {
			n.Children = append(n.Children, convert(cursor, n))
			if !cursor.GoToNextSibling() {
				break
			}
		}
		cursor.GoToParent()
	}
	return n
}

// firstError returns the first ERROR or missing node in source order.
func firstError(root *Node) *Node {
	var found *Node
	Inspect(root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Type == "ERROR" || n.Missing {
			found = n
			return false
		}
		return true
	})
	return found
}
