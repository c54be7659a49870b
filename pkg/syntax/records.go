package syntax

import (
	"strconv"
	"strings"
)

// ExportKind tags an export record.
type ExportKind int

const (
	ExportDeclared                  ExportKind = iota // export const x = 1; export {x as y}
	ExportDeclaredDefault                             // export default function f() {}
	ExportDeclaredDefaultExpression                   // export default 42
	ExportAggregatedAll                               // export * from "m"
	ExportAggregatedName                              // export {x as y} from "m"
	ExportAggregatedNamespace                         // export * as ns from "m"
)

func (k ExportKind) String() string {
	switch k {
	case ExportDeclared:
		return "declared"
	case ExportDeclaredDefault:
		return "declaredDefault"
	case ExportDeclaredDefaultExpression:
		return "declaredDefaultExpression"
	case ExportAggregatedAll:
		return "aggregatedAll"
	case ExportAggregatedName:
		return "aggregatedName"
	case ExportAggregatedNamespace:
		return "aggregatedNamespace"
	default:
		return "unknown"
	}
}

// IsAggregated reports whether the record pulls names from another module.
func (k ExportKind) IsAggregated() bool {
	return k == ExportAggregatedAll || k == ExportAggregatedName || k == ExportAggregatedNamespace
}

// ImportKind tags an import record.
type ImportKind int

const (
	ImportDefault    ImportKind = iota // import x from "m"
	ImportNamespace                    // import * as ns from "m"
	ImportSpecifier                    // import {x as y} from "m"
	ImportSideEffect                   // import "m"
	ImportDynamic                      // import("m")
)

func (k ImportKind) String() string {
	switch k {
	case ImportDefault:
		return "default"
	case ImportNamespace:
		return "namespace"
	case ImportSpecifier:
		return "specifier"
	case ImportSideEffect:
		return "sideEffect"
	case ImportDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ExportRecord describes one exported name.
type ExportRecord struct {
	Kind ExportKind
	Name string // Exported name; empty for ExportAggregatedAll

	// Local is the producing binding for declared exports. It is nil for
	// default expressions and aggregated kinds.
	Local *Binding

	Imported string // Name taken from Source, for ExportAggregatedName
	Source   string // Specifier, for aggregated kinds

	Node  *Node // The export_statement
	Value *Node // Expression of a default export; declaration of a default declaration

	// Anonymous is set for `export default function () {}` and
	// `export default class {}`.
	Anonymous bool
}

// ImportRecord describes one imported binding, or one import with no
// binding (side effect and dynamic imports).
type ImportRecord struct {
	Kind     ImportKind
	Local    *Binding // nil for side effect and dynamic imports
	Imported string   // Export name requested, for default and specifier imports
	Source   string   // Raw specifier; empty for a non-literal dynamic import

	Node       *Node // import_statement, or call_expression for dynamic imports
	SourceNode *Node // String literal holding the specifier

	// NonLiteral is set for dynamic imports whose argument is not a
	// string literal. They cannot be bundled.
	NonLiteral bool
}

// extractRecords builds import and export records from a script whose
// scopes were already analyzed.
func extractRecords(root *Node, src string, a *analysis) ([]*ExportRecord, []*ImportRecord) {
	var (
		exports []*ExportRecord
		imports []*ImportRecord
	)

	for _, stmt := range root.NamedChildren() {
		switch stmt.Type {
		case "import_statement":
			imports = append(imports, importRecords(stmt, src, a)...)
		case "export_statement":
			exports = append(exports, exportRecords(stmt, src, a)...)
		}
	}

	Inspect(root, func(n *Node) bool {
		if n.Type != "call_expression" {
			return true
		}
		fn := n.ChildByField("function")
		if fn == nil || fn.Type != "import" {
			return true
		}
		rec := &ImportRecord{Kind: ImportDynamic, Node: n}
		args := n.ChildByField("arguments").NamedChildren()
		if len(args) > 0 && args[0].Type == "string" {
			rec.SourceNode = args[0]
			rec.Source = Unquote(args[0].Text(src))
		} else if len(args) > 0 && args[0].Type == "template_string" && args[0].ChildOfType("template_substitution") == nil {
			rec.SourceNode = args[0]
			text := args[0].Text(src)
			rec.Source = text[1 : len(text)-1]
		} else {
			rec.NonLiteral = true
		}
		imports = append(imports, rec)
		return true
	})

	return exports, imports
}

func importRecords(stmt *Node, src string, a *analysis) []*ImportRecord {
	srcNode := stmt.ChildByField("source")
	spec := Unquote(srcNode.Text(src))
	clause := stmt.ChildOfType("import_clause")
	if clause == nil {
		return []*ImportRecord{{Kind: ImportSideEffect, Source: spec, Node: stmt, SourceNode: srcNode}}
	}

	var out []*ImportRecord
	add := func(kind ImportKind, ident *Node, imported string) {
		rec := &ImportRecord{Kind: kind, Imported: imported, Source: spec, Node: stmt, SourceNode: srcNode}
		if b := a.decls[ident]; b != nil {
			rec.Local = b
			b.Import = rec
		}
		out = append(out, rec)
	}
	for _, c := range clause.NamedChildren() {
		switch c.Type {
		case "identifier":
			add(ImportDefault, c, "default")
		case "namespace_import":
			add(ImportNamespace, c.ChildOfType("identifier"), "")
		case "named_imports":
			for _, s := range c.NamedChildren() {
				if s.Type != "import_specifier" {
					continue
				}
				name := s.ChildByField("name")
				local := s.ChildByField("alias")
				if local == nil {
					local = name
				}
				imported := moduleExportName(name, src)
				kind := ImportSpecifier
				if imported == "default" {
					kind = ImportDefault
				}
				add(kind, local, imported)
			}
		}
	}
	return out
}

func exportRecords(stmt *Node, src string, a *analysis) []*ExportRecord {
	var (
		out       []*ExportRecord
		srcNode   = stmt.ChildByField("source")
		spec      string
		isDefault = stmt.ChildOfType("default") != nil
	)
	if srcNode != nil {
		spec = Unquote(srcNode.Text(src))
	}

	if decl := stmt.ChildByField("declaration"); decl != nil {
		if isDefault {
			return append(out, &ExportRecord{
				Kind:  ExportDeclaredDefault,
				Name:  "default",
				Local: a.decls[decl.ChildByField("name")],
				Node:  stmt,
				Value: decl,
			})
		}
		for _, ident := range declaredNames(decl) {
			out = append(out, &ExportRecord{
				Kind:  ExportDeclared,
				Name:  ident.Text(src),
				Local: a.decls[ident],
				Node:  stmt,
				Value: decl,
			})
		}
		return out
	}

	if value := stmt.ChildByField("value"); value != nil {
		anonymous := false
		switch value.Type {
		case "function", "function_expression", "generator_function", "class":
			anonymous = value.ChildByField("name") == nil
		}
		return append(out, &ExportRecord{
			Kind:      ExportDeclaredDefaultExpression,
			Name:      "default",
			Node:      stmt,
			Value:     value,
			Anonymous: anonymous,
		})
	}

	if ns := stmt.ChildOfType("namespace_export"); ns != nil {
		named := ns.NamedChildren()
		name := ""
		if len(named) > 0 {
			name = moduleExportName(named[len(named)-1], src)
		}
		return append(out, &ExportRecord{Kind: ExportAggregatedNamespace, Name: name, Source: spec, Node: stmt})
	}

	if clause := stmt.ChildOfType("export_clause"); clause != nil {
		for _, s := range clause.NamedChildren() {
			if s.Type != "export_specifier" {
				continue
			}
			nameNode := s.ChildByField("name")
			local := moduleExportName(nameNode, src)
			exported := local
			if alias := s.ChildByField("alias"); alias != nil {
				exported = moduleExportName(alias, src)
			}
			if srcNode != nil {
				out = append(out, &ExportRecord{
					Kind:     ExportAggregatedName,
					Name:     exported,
					Imported: local,
					Source:   spec,
					Node:     stmt,
				})
				continue
			}
			out = append(out, &ExportRecord{
				Kind:  ExportDeclared,
				Name:  exported,
				Local: a.module.Own(local),
				Node:  stmt,
			})
		}
		return out
	}

	if srcNode != nil && stmt.ChildOfType("*") != nil {
		out = append(out, &ExportRecord{Kind: ExportAggregatedAll, Source: spec, Node: stmt})
	}
	return out
}

// declaredNames returns the identifiers a declaration binds at its own level.
func declaredNames(decl *Node) []*Node {
	switch decl.Type {
	case "lexical_declaration", "variable_declaration":
		var out []*Node
		for _, d := range decl.NamedChildren() {
			if d.Type == "variable_declarator" {
				out = append(out, patternNames(d.ChildByField("name"))...)
			}
		}
		return out
	default:
		if name := decl.ChildByField("name"); name != nil {
			return []*Node{name}
		}
	}
	return nil
}

// patternNames returns the identifiers bound by a binding pattern.
func patternNames(p *Node) []*Node {
	if p == nil {
		return nil
	}
	switch p.Type {
	case "identifier", "shorthand_property_identifier_pattern":
		return []*Node{p}
	case "pair_pattern":
		return patternNames(p.ChildByField("value"))
	case "assignment_pattern", "object_assignment_pattern":
		return patternNames(p.ChildByField("left"))
	case "object_pattern", "array_pattern", "rest_pattern":
		var out []*Node
		for _, c := range p.NamedChildren() {
			out = append(out, patternNames(c)...)
		}
		return out
	}
	return nil
}

// moduleExportName returns the name an import or export specifier spells,
// unquoting string names like `export { x as "a-b" }`.
func moduleExportName(n *Node, src string) string {
	if n == nil {
		return ""
	}
	if n.Type == "string" {
		return Unquote(n.Text(src))
	}
	return n.Text(src)
}

// Unquote decodes a JavaScript string literal. Malformed escapes fall back
// to the raw text between the quotes.
func Unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	quote := lit[0]
	if (quote != '"' && quote != '\'') || lit[len(lit)-1] != quote {
		return lit
	}
	inner := lit[1 : len(lit)-1]
	if !strings.ContainsRune(inner, '\\') {
		return inner
	}

	var b strings.Builder
	s := inner
	for len(s) > 0 {
		r, _, tail, err := strconv.UnquoteChar(s, quote)
		if err != nil {
			return inner
		}
		b.WriteRune(r)
		s = tail
	}
	return b.String()
}
