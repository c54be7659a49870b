// Package linker turns the script modules of a graph into text that can
// share one flat scope: colliding top-level names are renamed, imports are
// bound to the symbols of their producers and import/export syntax is
// stripped.
//
// Parse results are shared with the module cache, so the linker never
// touches a syntax tree. Every change is an edit on a per-build
// rewrite.Editor, which also yields the position map of the output.
package linker

import (
	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/rewrite"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/symbols"
	"github.com/nooga/weld/pkg/syntax"
)

// Linked is one script module after linking.
type Linked struct {
	Module *modules.Module
	Text   string
	Map    *sourcemap.Map // Maps Text back to the stored asset

	// Namespaces lists the modules whose namespace object Text references,
	// in order of first use.
	Namespaces []string
}

// Result is the output of one link pass.
type Result struct {
	Modules    []*Linked             // Evaluation order
	Namespaces map[string]*Namespace // Needed namespace objects by module id
}

// Linker holds the state of one link pass over a graph.
type Linker struct {
	graph *modules.Graph
	table *symbols.Table
	gen   *symbols.Generator
	diags *errors.Diagnostics

	order   []*modules.Module // Script modules in evaluation order
	editors map[string]*rewrite.Editor
	renamed map[*syntax.Binding]string
	uses    map[string][]string // Module id -> namespace owners it references
}

// New creates a linker for g. The table must already be assigned for g;
// new names come from the table's generator.
func New(g *modules.Graph, table *symbols.Table, diags *errors.Diagnostics) *Linker {
	l := &Linker{
		graph:   g,
		table:   table,
		gen:     table.Generator(),
		diags:   diags,
		editors: make(map[string]*rewrite.Editor),
		renamed: make(map[*syntax.Binding]string),
		uses:    make(map[string][]string),
	}
	for _, m := range g.EvaluationOrder() {
		if isScript(m) {
			l.order = append(l.order, m)
		}
	}
	return l
}

// Link runs deconfliction and binding over g and returns the linked
// modules.
func Link(g *modules.Graph, table *symbols.Table, diags *errors.Diagnostics) *Result {
	l := New(g, table, diags)
	l.Deconflict()
	l.Bind()
	return l.Result()
}

// runtimeGlobals are referenced by code the bundler itself emits.
var runtimeGlobals = []string{"Object", "Promise", "Symbol"}

// ReserveGlobals reserves every name that some module of g references
// without declaring it, so no top-level binding or symbol can capture it.
// It must run before symbols are assigned.
func ReserveGlobals(gen *symbols.Generator, g *modules.Graph) {
	for _, name := range runtimeGlobals {
		gen.Reserve(name)
	}
	for _, m := range g.Modules() {
		if !isScript(m) {
			continue
		}
		for name := range m.File.Globals {
			gen.Reserve(name)
		}
	}
}

func isScript(m *modules.Module) bool {
	return m.File != nil && !m.File.IsStyle()
}

func (l *Linker) editor(m *modules.Module) *rewrite.Editor {
	ed, ok := l.editors[m.ID]
	if !ok {
		ed = rewrite.NewEditor(m.Source, m.File.TokenStarts())
		l.editors[m.ID] = ed
	}
	return ed
}

// Result applies the collected edits.
func (l *Linker) Result() *Result {
	res := &Result{Namespaces: l.namespaces()}
	for _, m := range l.order {
		out := l.editor(m).Apply()
		linked := &Linked{Module: m, Text: out.Text, Map: out.Map, Namespaces: l.uses[m.ID]}
		if m.Map != nil {
			composed, err := sourcemap.ComposeMaps(m.Map, out.Map)
			if err != nil {
				l.diags.Push(errors.LevelWarning, errors.Diagnostic{
					Code:   errors.CodeSourceMap,
					Reason: "cannot compose transform map: " + err.Error(),
					Module: m.ID,
					Err:    err,
				})
			} else {
				linked.Map = composed
			}
		}
		res.Modules = append(res.Modules, linked)
	}
	return res
}

// rename points every occurrence of b at name. Shorthand properties are
// expanded so the property key keeps the original name.
func (l *Linker) rename(m *modules.Module, b *syntax.Binding, name string) {
	l.renamed[b] = name
	if name == b.Name {
		return
	}
	ed := l.editor(m)
	for _, n := range b.Occurrences() {
		renameNode(ed, n, b.Name, name)
	}
	Logger().Debug("renamed", zap.String("module", m.ID), zap.String("from", b.Name), zap.String("to", name))
}

func renameNode(ed *rewrite.Editor, n *syntax.Node, old, name string) {
	switch n.Type {
	case "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		ed.Insert(n.Start, old+": ")
	}
	ed.Rename(n.Start, n.End, name)
}

// renameGuarded renames b to name after renaming every nested binding that
// would capture one of b's references under the new name.
func (l *Linker) renameGuarded(m *modules.Module, b *syntax.Binding, name string) {
	if name == b.Name {
		l.renamed[b] = name
		return
	}
	for _, ref := range b.Refs {
		l.guard(m, ref, b.Scope, name)
	}
	l.rename(m, b, name)
}

// guard renames bindings called name declared between ref's scope and home.
func (l *Linker) guard(m *modules.Module, ref syntax.Ref, home *syntax.Scope, name string) {
	for s := ref.Scope; s != nil && s != home; s = s.Parent {
		inner := s.Own(name)
		if inner == nil {
			continue
		}
		if _, done := l.renamed[inner]; done {
			continue
		}
		l.rename(m, inner, l.gen.GenerateBasedOnScope(subtree{m.File.Module}, name))
	}
}

// subtree treats a name as bound when any scope of the module declares it.
type subtree struct {
	scope *syntax.Scope
}

func (s subtree) IsBound(name string) bool {
	return s.scope.BindsInSubtree(name)
}

// markNamespace records that m references the namespace object of owner.
func (l *Linker) markNamespace(m *modules.Module, owner string) {
	l.table.MarkNamespaceNeeded(owner)
	for _, id := range l.uses[m.ID] {
		if id == owner {
			return
		}
	}
	l.uses[m.ID] = append(l.uses[m.ID], owner)
}
