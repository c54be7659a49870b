package linker

import (
	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/symbols"
	"github.com/nooga/weld/pkg/syntax"
)

// Bind points every import at the symbol of its producer, gives exported
// declarations their symbols and strips import/export syntax.
//
// A missing export is reported for that one binding, which is then left
// unbound. Nothing else about the module changes.
func (l *Linker) Bind() {
	for _, m := range l.order {
		for _, b := range m.File.TopLevel() {
			if b.Import != nil {
				continue
			}
			if sym := l.table.SymbolOf(m.ID, b); sym != "" {
				l.renameGuarded(m, b, sym)
			}
		}
		for _, imp := range m.File.Imports {
			l.bindImport(m, imp)
		}
		l.strip(m)
	}
}

func (l *Linker) bindImport(m *modules.Module, imp *syntax.ImportRecord) {
	switch imp.Kind {
	case syntax.ImportSideEffect:
		// The statement goes away in strip; the module still runs.
	case syntax.ImportDefault, syntax.ImportSpecifier:
		if imp.Local == nil {
			return
		}
		id, external, ok := symbols.Target(m, imp.Source)
		if !ok {
			return
		}
		sym, err := l.lookup(id, external, imp.Imported)
		if err != nil {
			l.missing(m, imp.Local.Decl, err)
			return
		}
		if owner, ok := l.table.NamespaceOwner(sym); ok {
			l.bindNamespace(m, imp.Local, owner, false)
			return
		}
		l.renameGuarded(m, imp.Local, sym)
	case syntax.ImportNamespace:
		if imp.Local == nil {
			return
		}
		id, external, ok := symbols.Target(m, imp.Source)
		if !ok {
			return
		}
		l.bindNamespace(m, imp.Local, id, external)
	case syntax.ImportDynamic:
		l.bindDynamic(m, imp)
	}
}

func (l *Linker) lookup(id string, external bool, name string) (string, error) {
	if external {
		return l.table.GetExternal(id, name), nil
	}
	return l.table.Get(id, name)
}

// missing reports a failed binding at node.
func (l *Linker) missing(m *modules.Module, node *syntax.Node, err error) {
	if me, ok := err.(*errors.MissingExportError); ok {
		me.Importer = m.ID
		if node != nil {
			me.Position = errors.PositionAt(m.Source, node.Start, node.End)
		}
	}
	l.diags.PushError(errors.LevelError, err)
}

// bindNamespace binds a namespace import of module id. A member access with
// a static property name becomes the member's symbol; every other use
// refers to the namespace object, which is then needed.
func (l *Linker) bindNamespace(m *modules.Module, local *syntax.Binding, id string, external bool) {
	src := m.Source.Content
	ed := l.editor(m)
	home := m.File.Module

	for _, ref := range local.Refs {
		n := ref.Node
		if isExportSpecifier(n) {
			continue
		}
		if member, prop, ok := staticMember(n, src); ok {
			sym, err := l.lookup(id, external, prop)
			if err == nil {
				l.guard(m, ref, home, sym)
				ed.Replace(member.Start, member.End, sym)
				continue
			}
			// Reading a name the module does not export yields undefined
			// at run time, so this is only a warning.
			if me, ok := err.(*errors.MissingExportError); ok {
				me.Importer = m.ID
				me.Position = errors.PositionAt(m.Source, member.Start, member.End)
			}
			l.diags.PushError(errors.LevelWarning, err)
		}

		var ns string
		if external {
			ns = l.table.ExternalNamespace(id)
		} else {
			ns = l.table.Namespace(id)
			l.markNamespace(m, id)
		}
		l.guard(m, ref, home, ns)
		renameNode(ed, n, local.Name, ns)
	}
}

// bindDynamic replaces import("./m") with a promise of m's namespace.
func (l *Linker) bindDynamic(m *modules.Module, imp *syntax.ImportRecord) {
	if imp.NonLiteral {
		pos := errors.PositionAt(m.Source, imp.Node.Start, imp.Node.End)
		l.diags.Push(errors.LevelWarning, errors.Diagnostic{
			Code:   errors.CodeDynamicImport,
			Reason: "dynamic import with a computed specifier is left as is",
			Module: m.ID,
			Frame:  errors.CodeFrame(m.Source, pos),
		})
		return
	}
	id, external, ok := symbols.Target(m, imp.Source)
	if !ok {
		return
	}
	var ns string
	if external {
		ns = l.table.ExternalNamespace(id)
	} else {
		ns = l.table.Namespace(id)
		l.markNamespace(m, id)
	}
	l.editor(m).Replace(imp.Node.Start, imp.Node.End, "Promise.resolve().then(() => "+ns+")")
}

// staticMember reports whether n is the object of a member access with a
// static property name, like NS.v or NS["v"].
func staticMember(n *syntax.Node, src string) (*syntax.Node, string, bool) {
	p := n.Parent
	if p == nil || n.Field != "object" {
		return nil, "", false
	}
	switch p.Type {
	case "member_expression":
		prop := p.ChildByField("property")
		if prop != nil && prop.Type == "property_identifier" {
			return p, prop.Text(src), true
		}
	case "subscript_expression":
		index := p.ChildByField("index")
		if index != nil && index.Type == "string" {
			return p, syntax.Unquote(index.Text(src)), true
		}
	}
	return nil, "", false
}

func isExportSpecifier(n *syntax.Node) bool {
	return n.Parent != nil && n.Parent.Type == "export_specifier"
}

// strip removes import statements and export syntax. Declarations keep
// their bodies; a default expression becomes a const named by its symbol.
func (l *Linker) strip(m *modules.Module) {
	ed := l.editor(m)
	src := m.Source.Content

	for _, stmt := range m.File.Root.NamedChildren() {
		switch stmt.Type {
		case "import_statement":
			ed.RemoveStatement(stmt.Start, stmt.End)
		case "export_statement":
			if stmt.ChildByField("source") != nil {
				ed.RemoveStatement(stmt.Start, stmt.End)
				continue
			}
			if decl := stmt.ChildByField("declaration"); decl != nil {
				ed.Remove(stmt.Start, decl.Start)
				continue
			}
			if value := stmt.ChildByField("value"); value != nil {
				l.stripDefault(m, stmt, value, src)
				continue
			}
			ed.RemoveStatement(stmt.Start, stmt.End)
		}
	}
}

func (l *Linker) stripDefault(m *modules.Module, stmt, value *syntax.Node, src string) {
	ed := l.editor(m)
	sym, err := l.table.Get(m.ID, "default")
	if err != nil {
		// Only reachable when the module has no table entry.
		sym = l.gen.Generate(symbols.ModuleHint(m.ID) + "_default")
	}

	if rec := defaultRecord(m.File, stmt); rec != nil && rec.Anonymous {
		if at := nameSlot(value); at >= 0 {
			ed.Remove(stmt.Start, value.Start)
			ed.Insert(at, " "+sym)
			return
		}
	}

	ed.Replace(stmt.Start, value.Start, "const "+sym+" = ")
	if text := stmt.Text(src); len(text) == 0 || text[len(text)-1] != ';' {
		ed.Insert(stmt.End, ";")
	}
}

// nameSlot returns the offset after the keywords of an anonymous function
// or class, where its name goes.
func nameSlot(value *syntax.Node) int {
	at := -1
	for _, c := range value.Children {
		if c.Named {
			break
		}
		switch c.Type {
		case "function", "class", "*":
			at = c.End
		}
	}
	return at
}

func defaultRecord(f *syntax.File, stmt *syntax.Node) *syntax.ExportRecord {
	for _, rec := range f.Exports {
		if rec.Node == stmt && rec.Kind == syntax.ExportDeclaredDefaultExpression {
			return rec
		}
	}
	return nil
}
