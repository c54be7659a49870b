package driver

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/rewrite"
	"github.com/nooga/weld/pkg/source"
	"github.com/nooga/weld/pkg/syntax"
)

// definePlugin substitutes compile-time values for member expressions on
// undeclared globals, the way process.env is inlined for the browser.
type definePlugin struct {
	values map[string]string
}

func newDefinePlugin(values map[string]string) *definePlugin {
	return &definePlugin{values: values}
}

func (p *definePlugin) Name() string {
	return "define"
}

func (p *definePlugin) Transform(ctx context.Context, id, code string) (*modules.TransformResult, error) {
	if len(p.values) == 0 || source.KindForPath(id) != source.KindScript || strings.EqualFold(path.Ext(id), ".json") {
		return nil, nil
	}
	if !p.mentions(code) {
		return nil, nil
	}

	sf := source.FromFile(id, code)
	f, err := syntax.Parse(ctx, sf)
	if err != nil {
		// The graph builder reports it when it parses the module.
		return nil, nil
	}

	globals := make(map[*syntax.Node]bool)
	for _, refs := range f.Globals {
		for _, ref := range refs {
			globals[ref.Node] = true
		}
	}

	ed := rewrite.NewEditor(sf, f.TokenStarts())
	replaced := 0
	syntax.Inspect(f.Root, func(n *syntax.Node) bool {
		if n.Type != "member_expression" {
			return true
		}
		value, ok := p.values[n.Text(code)]
		if !ok || !globals[leftmost(n)] || isAssigned(n) {
			return true
		}
		ed.Replace(n.Start, n.End, value)
		replaced++
		return false
	})
	if replaced == 0 {
		return nil, nil
	}

	out := ed.Apply()
	Logger().Debug("defines inlined", zap.String("module", id), zap.Int("count", replaced))
	return &modules.TransformResult{Code: out.Text, Map: out.Map}, nil
}

// mentions is a cheap filter before parsing.
func (p *definePlugin) mentions(code string) bool {
	for key := range p.values {
		if root, _, _ := strings.Cut(key, "."); strings.Contains(code, root) {
			return true
		}
	}
	return false
}

// leftmost returns the identifier a member chain starts at.
func leftmost(n *syntax.Node) *syntax.Node {
	for n != nil && n.Type == "member_expression" {
		n = n.ChildByField("object")
	}
	if n == nil || n.Type != "identifier" {
		return nil
	}
	return n
}

func isAssigned(n *syntax.Node) bool {
	p := n.Parent
	return p != nil && (p.Type == "assignment_expression" || p.Type == "augmented_assignment_expression") && n.Field == "left"
}
