package symbols

import (
	"sort"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/syntax"
)

// Redirect defers an export to another module. It points either at one of
// that module's exports or at its namespace object.
type Redirect struct {
	Module    string // Canonical id, or the raw specifier when External
	Name      string // Export name; empty when Namespace is set
	Namespace bool
	External  bool
}

// export is one Symbol Table entry: a concrete symbol or a redirect.
type export struct {
	symbol   string
	redirect *Redirect
}

type moduleEntry struct {
	id        string
	file      *syntax.File
	deps      map[string]string
	exports   map[string]export
	names     []string   // Export names in record order
	stars     []Redirect // export * targets, in source order
	bindings  map[*syntax.Binding]string
	namespace string
}

func (me *moduleEntry) set(name string, e export) {
	if _, ok := me.exports[name]; ok {
		return
	}
	me.exports[name] = e
	me.names = append(me.names, name)
}

// External is the synthetic entry of a specifier left to the host. Its
// symbols are minted on first request.
type External struct {
	Specifier string
	Namespace string            // Set once something needs the whole module
	Names     map[string]string // Imported name -> symbol
}

// Table maps (module, export name) to symbols. It outlives a single build:
// the driver resyncs it against each new graph and seeds the build's fresh
// generator with the symbols that survive.
type Table struct {
	gen       *Generator
	modules   map[string]*moduleEntry
	externals map[string]*External
	owners    map[string]string // Namespace symbol -> module id
	needed    map[string]bool   // Modules whose namespace object is emitted
}

// NewTable creates an empty table minting names from gen
func NewTable(gen *Generator) *Table {
	return &Table{
		gen:       gen,
		modules:   make(map[string]*moduleEntry),
		externals: make(map[string]*External),
		owners:    make(map[string]string),
		needed:    make(map[string]bool),
	}
}

// Generator returns the generator new symbols come from.
func (t *Table) Generator() *Generator {
	return t.gen
}

// Seed switches the table to gen for a new build. Surviving symbols are
// reserved in gen; a module whose symbols gen already considers conflicted
// (typically because a new global reference appeared) is dropped and will
// be assigned again. Externals and namespace needs are per build and are
// cleared.
func (t *Table) Seed(gen *Generator) {
	t.gen = gen
	t.externals = make(map[string]*External)
	t.needed = make(map[string]bool)

	ids := make([]string, 0, len(t.modules))
	for id := range t.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		me := t.modules[id]
		if t.conflicts(me) {
			t.drop(id)
			continue
		}
		for _, sym := range me.symbols() {
			gen.Reserve(sym)
		}
		if me.namespace != "" {
			gen.ReserveNamespace(me.namespace)
		}
	}
}

func (t *Table) conflicts(me *moduleEntry) bool {
	if me.namespace != "" && t.gen.IsConflicted(me.namespace) {
		return true
	}
	for _, sym := range me.symbols() {
		if t.gen.IsConflicted(sym) {
			return true
		}
	}
	return false
}

// symbols returns the entry's own symbols, each once.
func (me *moduleEntry) symbols() []string {
	var out []string
	seen := make(map[string]bool, len(me.names))
	for _, name := range me.names {
		if e := me.exports[name]; e.redirect == nil && !seen[e.symbol] {
			seen[e.symbol] = true
			out = append(out, e.symbol)
		}
	}
	return out
}

// AssignWithModules mints symbols for every script module that has no
// entry yet, then creates namespace ids for the modules that are imported
// as a whole somewhere in the graph.
func (t *Table) AssignWithModules(g *modules.Graph) {
	ordered := g.Modules()
	for _, m := range ordered {
		if !isScript(m) {
			continue
		}
		if _, ok := t.modules[m.ID]; ok {
			continue
		}
		t.assign(m)
	}

	for _, m := range ordered {
		if !isScript(m) {
			continue
		}
		for _, imp := range m.File.Imports {
			if imp.Kind != syntax.ImportNamespace && imp.Kind != syntax.ImportDynamic {
				continue
			}
			if id, external, ok := Target(m, imp.Source); ok && !external && g.Has(id) {
				t.Namespace(id)
			}
		}
		for _, rec := range m.File.Exports {
			if rec.Kind != syntax.ExportAggregatedNamespace {
				continue
			}
			if id, external, ok := Target(m, rec.Source); ok && !external && g.Has(id) {
				t.Namespace(id)
			}
		}
	}
}

func isScript(m *modules.Module) bool {
	return m.File != nil && !m.File.IsStyle()
}

// Target returns what specifier points at from m: a canonical id or, for
// externals, the specifier itself.
func Target(m *modules.Module, specifier string) (id string, external, ok bool) {
	if m.IsExternal(specifier) {
		return specifier, true, true
	}
	id, ok = m.Dependency(specifier)
	return id, false, ok
}

func (t *Table) assign(m *modules.Module) {
	me := t.entry(m.ID)
	me.file = m.File
	me.deps = make(map[string]string, len(m.Deps))
	for spec, id := range m.Deps {
		me.deps[spec] = id
	}

	for _, rec := range m.File.Exports {
		switch rec.Kind {
		case syntax.ExportDeclared, syntax.ExportDeclaredDefault:
			if rec.Local == nil {
				continue
			}
			if imp := rec.Local.Import; imp != nil {
				if r, ok := redirectFor(m, imp); ok {
					me.set(rec.Name, export{redirect: &r})
				}
				continue
			}
			me.set(rec.Name, export{symbol: t.bind(me, rec.Local)})
		case syntax.ExportDeclaredDefaultExpression:
			me.set(rec.Name, export{symbol: t.gen.Generate(ModuleHint(m.ID) + "_default")})
		case syntax.ExportAggregatedAll:
			if id, external, ok := Target(m, rec.Source); ok {
				me.stars = append(me.stars, Redirect{Module: id, External: external})
			}
		case syntax.ExportAggregatedName:
			if id, external, ok := Target(m, rec.Source); ok {
				me.set(rec.Name, export{redirect: &Redirect{Module: id, Name: rec.Imported, External: external}})
			}
		case syntax.ExportAggregatedNamespace:
			if id, external, ok := Target(m, rec.Source); ok {
				me.set(rec.Name, export{redirect: &Redirect{Module: id, Namespace: true, External: external}})
			}
		}
	}
}

// bind returns the symbol of a local declaration, minting it on first use.
// Every alias of one declaration gets the same symbol.
func (t *Table) bind(me *moduleEntry, b *syntax.Binding) string {
	if sym, ok := me.bindings[b]; ok {
		return sym
	}
	sym := t.gen.Generate(b.Name)
	me.bindings[b] = sym
	return sym
}

func redirectFor(m *modules.Module, imp *syntax.ImportRecord) (Redirect, bool) {
	id, external, ok := Target(m, imp.Source)
	if !ok {
		return Redirect{}, false
	}
	switch imp.Kind {
	case syntax.ImportNamespace:
		return Redirect{Module: id, Namespace: true, External: external}, true
	case syntax.ImportDefault, syntax.ImportSpecifier:
		return Redirect{Module: id, Name: imp.Imported, External: external}, true
	default:
		return Redirect{}, false
	}
}

func (t *Table) entry(id string) *moduleEntry {
	me, ok := t.modules[id]
	if !ok {
		me = &moduleEntry{
			id:       id,
			exports:  make(map[string]export),
			bindings: make(map[*syntax.Binding]string),
		}
		t.modules[id] = me
	}
	return me
}

func (t *Table) drop(id string) {
	if me, ok := t.modules[id]; ok {
		delete(t.owners, me.namespace)
		delete(t.modules, id)
	}
}

type exportKey struct {
	module, name string
}

// lookup is the cycle guard of one Get call.
type lookup struct {
	state map[exportKey]int // 1 while being resolved, 2 when exhausted
	cycle bool
}

// Get resolves name exported by module to a symbol, following redirects
// and export * records. A miss, including one caused by an export * cycle,
// is a *errors.MissingExportError.
func (t *Table) Get(module, name string) (string, error) {
	st := &lookup{state: make(map[exportKey]int)}
	if sym, ok := t.resolve(module, name, st); ok {
		return sym, nil
	}
	return "", &errors.MissingExportError{Module: module, Name: name, Circular: st.cycle}
}

func (t *Table) resolve(module, name string, st *lookup) (string, bool) {
	key := exportKey{module, name}
	switch st.state[key] {
	case 1:
		st.cycle = true
		return "", false
	case 2:
		return "", false
	}
	st.state[key] = 1
	defer func() { st.state[key] = 2 }()

	me := t.modules[module]
	if me == nil {
		return "", false
	}
	if e, ok := me.exports[name]; ok {
		if e.redirect == nil {
			return e.symbol, true
		}
		return t.follow(*e.redirect, st)
	}

	// export * never forwards a default export.
	if name == "default" {
		return "", false
	}
	for _, star := range me.stars {
		if star.External {
			continue
		}
		if sym, ok := t.resolve(star.Module, name, st); ok {
			return sym, true
		}
	}
	// Names of an external module are unknown; the first external star
	// is assumed to provide anything not found locally.
	for _, star := range me.stars {
		if star.External {
			return t.GetExternal(star.Module, name), true
		}
	}
	return "", false
}

func (t *Table) follow(r Redirect, st *lookup) (string, bool) {
	switch {
	case r.External && r.Namespace:
		return t.ExternalNamespace(r.Module), true
	case r.External:
		return t.GetExternal(r.Module, r.Name), true
	case r.Namespace:
		return t.Namespace(r.Module), true
	}
	return t.resolve(r.Module, r.Name, st)
}

// GetModuleExports returns every name module exports with its symbol,
// including names absorbed through export *. Local names win over absorbed
// ones and default is never absorbed. Names that fail to resolve are left
// out.
func (t *Table) GetModuleExports(module string) map[string]string {
	out := make(map[string]string)
	t.collect(module, out, make(map[string]bool), true)
	return out
}

func (t *Table) collect(module string, out map[string]string, visited map[string]bool, top bool) {
	if visited[module] {
		return
	}
	visited[module] = true

	me := t.modules[module]
	if me == nil {
		return
	}
	for _, name := range me.names {
		if _, ok := out[name]; ok || (!top && name == "default") {
			continue
		}
		if sym, err := t.Get(module, name); err == nil {
			out[name] = sym
		}
	}
	for _, star := range me.stars {
		if !star.External {
			t.collect(star.Module, out, visited, false)
		}
	}
}

// SymbolOf returns the symbol assigned to a local declaration of module,
// or "" when the declaration is not exported.
func (t *Table) SymbolOf(module string, b *syntax.Binding) string {
	if me := t.modules[module]; me != nil {
		return me.bindings[b]
	}
	return ""
}

// Namespace returns the namespace id of module, creating it on first use.
func (t *Table) Namespace(module string) string {
	me := t.entry(module)
	if me.namespace == "" {
		me.namespace = t.gen.Generate(ModuleHint(module) + "_ns")
		t.gen.ReserveNamespace(me.namespace)
		t.owners[me.namespace] = module
	}
	return me.namespace
}

// NamespaceOwner returns the module whose namespace id is symbol.
func (t *Table) NamespaceOwner(symbol string) (string, bool) {
	id, ok := t.owners[symbol]
	return id, ok
}

// MarkNamespaceNeeded records that module's namespace object is referenced
// by the bundle.
func (t *Table) MarkNamespaceNeeded(module string) {
	t.Namespace(module)
	t.needed[module] = true
}

// NamespaceNeeded reports whether module's namespace object is referenced.
func (t *Table) NamespaceNeeded(module string) bool {
	return t.needed[module]
}

func (t *Table) external(specifier string) *External {
	ext, ok := t.externals[specifier]
	if !ok {
		ext = &External{Specifier: specifier, Names: make(map[string]string)}
		t.externals[specifier] = ext
	}
	return ext
}

// GetExternal returns the symbol for name imported from an external
// specifier.
func (t *Table) GetExternal(specifier, name string) string {
	ext := t.external(specifier)
	if sym, ok := ext.Names[name]; ok {
		return sym
	}
	hint := name
	if name == "default" {
		hint = ModuleHint(specifier)
	}
	sym := t.gen.Generate(hint)
	ext.Names[name] = sym
	return sym
}

// ExternalNamespace returns the namespace id of an external specifier.
func (t *Table) ExternalNamespace(specifier string) string {
	ext := t.external(specifier)
	if ext.Namespace == "" {
		ext.Namespace = t.gen.Generate(ModuleHint(specifier) + "_ns")
		t.gen.ReserveNamespace(ext.Namespace)
	}
	return ext.Namespace
}

// Externals returns the external entries used by this build, sorted by
// specifier.
func (t *Table) Externals() []*External {
	out := make([]*External, 0, len(t.externals))
	for _, ext := range t.externals {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Specifier < out[j].Specifier })
	return out
}

// ResyncModules drops what a rebuild invalidated: modules that left the
// graph and modules whose parse result or resolved dependencies changed.
// An unchanged parse result produces the same exports, so surviving
// entries are kept whole. It returns the dropped module ids, sorted.
func (t *Table) ResyncModules(g *modules.Graph) []string {
	var dropped []string
	for id, me := range t.modules {
		m := g.Get(id)
		if m == nil || m.File != me.file || !sameDeps(m.Deps, me.deps) {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	for _, id := range dropped {
		t.drop(id)
	}
	return dropped
}

func sameDeps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for spec, id := range a {
		if b[spec] != id {
			return false
		}
	}
	return true
}

// Has reports whether module has an entry.
func (t *Table) Has(module string) bool {
	_, ok := t.modules[module]
	return ok
}

// Len returns the number of module entries
func (t *Table) Len() int {
	return len(t.modules)
}

// Symbols returns every symbol and namespace id held by module entries,
// sorted.
func (t *Table) Symbols() []string {
	var out []string
	for _, me := range t.modules {
		out = append(out, me.symbols()...)
		if me.namespace != "" {
			out = append(out, me.namespace)
		}
	}
	sort.Strings(out)
	return out
}
