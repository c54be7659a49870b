// Package syntax turns module text into weld's own syntax tree and extracts
// what the bundler needs from it: scopes with explicit binding tables,
// export records and import records for scripts, and dependency references
// for style sheets.
//
// Parsing is done with tree-sitter; nothing outside this package sees
// tree-sitter types.
package syntax

import (
	"context"
	"sort"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/source"
)

// File is a parsed module.
type File struct {
	Source *source.SourceFile
	Root   *Node

	// Script modules only.
	Module  *Scope
	Exports []*ExportRecord
	Imports []*ImportRecord
	Globals map[string][]Ref // Unresolved references by name

	// Style modules only.
	StyleDeps []*StyleDep

	decls map[*Node]*Binding
}

// IsStyle reports whether f was parsed as a style sheet.
func (f *File) IsStyle() bool {
	return f.Source.Kind == source.KindStyle
}

// Parse parses sf as a style sheet when its kind is KindStyle and as a
// script module otherwise. Malformed input yields a *errors.ParseError
// pointing at the first error node.
func Parse(ctx context.Context, sf *source.SourceFile) (*File, error) {
	g := grammarJavaScript
	if sf.Kind == source.KindStyle {
		g = grammarCSS
	}
	root, err := parseTree(ctx, g, []byte(sf.Content))
	if err != nil {
		return nil, (&errors.ParseError{Module: sf.Path, Msg: "parser failed"}).CausedBy(err)
	}
	if bad := firstError(root); bad != nil {
		msg := "unexpected syntax"
		if bad.Missing {
			msg = "missing " + bad.Type
		}
		return nil, &errors.ParseError{
			Position: errors.PositionAt(sf, bad.Start, bad.End),
			Module:   sf.Path,
			Msg:      msg,
		}
	}

	f := &File{Source: sf, Root: root}
	if g == grammarCSS {
		f.StyleDeps = extractStyleDeps(root, sf.Content)
		return f, nil
	}

	a := analyze(root, sf.Content)
	f.Module = a.module
	f.Globals = a.globals
	f.decls = a.decls
	f.Exports, f.Imports = extractRecords(root, sf.Content, a)
	return f, nil
}

// BindingOf returns the binding declared by ident, if ident is a declaring
// identifier.
func (f *File) BindingOf(ident *Node) *Binding {
	return f.decls[ident]
}

// Dependency is one raw specifier and where it was written.
type Dependency struct {
	Specifier string
	Node      *Node // String literal (or url value) holding the specifier
}

// Dependencies returns every specifier the module references, in source
// order, each specifier once.
func (f *File) Dependencies() []Dependency {
	var deps []Dependency
	if f.IsStyle() {
		for _, d := range f.StyleDeps {
			deps = append(deps, Dependency{Specifier: d.Specifier, Node: d.Value})
		}
	} else {
		for _, stmt := range f.Root.NamedChildren() {
			if stmt.Type != "import_statement" && stmt.Type != "export_statement" {
				continue
			}
			if s := stmt.ChildByField("source"); s != nil {
				deps = append(deps, Dependency{Specifier: Unquote(s.Text(f.Source.Content)), Node: s})
			}
		}
		for _, imp := range f.Imports {
			if imp.Kind == ImportDynamic && !imp.NonLiteral {
				deps = append(deps, Dependency{Specifier: imp.Source, Node: imp.SourceNode})
			}
		}
		sort.SliceStable(deps, func(i, j int) bool { return deps[i].Node.Start < deps[j].Node.Start })
	}

	seen := make(map[string]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		if seen[d.Specifier] {
			continue
		}
		seen[d.Specifier] = true
		out = append(out, d)
	}
	return out
}

// TopLevel returns the module scope's bindings in declaration order.
func (f *File) TopLevel() []*Binding {
	if f.Module == nil {
		return nil
	}
	return f.Module.Bindings()
}

// ExportsOf returns the export records that export b.
func (f *File) ExportsOf(b *Binding) []*ExportRecord {
	var out []*ExportRecord
	for _, e := range f.Exports {
		if e.Local == b {
			out = append(out, e)
		}
	}
	return out
}

// TokenStarts returns the start offset of every leaf token, ascending.
// Source maps anchor a segment at each of them.
func (f *File) TokenStarts() []int {
	var out []int
	Inspect(f.Root, func(n *Node) bool {
		if n.IsLeaf() && n.End > n.Start && n.Type != "comment" {
			out = append(out, n.Start)
		}
		return true
	})
	return out
}
