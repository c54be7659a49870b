package syntax

// ScopeKind identifies what introduced a scope.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeCatch
	ScopeFor
	ScopeClass
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeCatch:
		return "catch"
	case ScopeFor:
		return "for"
	case ScopeClass:
		return "class"
	default:
		return "unknown"
	}
}

// BindingKind records how a name was declared.
type BindingKind int

const (
	BindingVar BindingKind = iota
	BindingLet
	BindingConst
	BindingFunction
	BindingClass
	BindingParam
	BindingCatch
	BindingImport
)

func (k BindingKind) String() string {
	switch k {
	case BindingVar:
		return "var"
	case BindingLet:
		return "let"
	case BindingConst:
		return "const"
	case BindingFunction:
		return "function"
	case BindingClass:
		return "class"
	case BindingParam:
		return "param"
	case BindingCatch:
		return "catch"
	case BindingImport:
		return "import"
	default:
		return "unknown"
	}
}

// Ref is one reference to a binding together with the scope it occurs in.
type Ref struct {
	Node  *Node
	Scope *Scope
}

// Binding is one declared name. Its identity is the pointer: two bindings
// with the same name in different scopes are different bindings.
type Binding struct {
	Name  string
	Kind  BindingKind
	Decl  *Node   // First declaring identifier
	Decls []*Node // Every declaring identifier (var and function may repeat)
	Refs  []Ref
	Scope *Scope

	// Import is set for bindings introduced by an import declaration.
	Import *ImportRecord
}

// Occurrences returns the declaring identifiers followed by the references.
func (b *Binding) Occurrences() []*Node {
	out := make([]*Node, 0, len(b.Decls)+len(b.Refs))
	out = append(out, b.Decls...)
	for _, r := range b.Refs {
		out = append(out, r.Node)
	}
	return out
}

// Scope is a lexical scope with its own bindings.
type Scope struct {
	Kind     ScopeKind
	Node     *Node
	Parent   *Scope
	Children []*Scope

	bindings map[string]*Binding
	order    []*Binding
}

func newScope(kind ScopeKind, node *Node, parent *Scope) *Scope {
	s := &Scope{Kind: kind, Node: node, Parent: parent, bindings: make(map[string]*Binding)}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Own returns the binding declared directly in s.
func (s *Scope) Own(name string) *Binding {
	return s.bindings[name]
}

// Lookup resolves name through s and its ancestors.
func (s *Scope) Lookup(name string) *Binding {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.bindings[name]; ok {
			return b
		}
	}
	return nil
}

// IsBound reports whether name resolves to any binding visible from s.
func (s *Scope) IsBound(name string) bool {
	return s.Lookup(name) != nil
}

// BindsInSubtree reports whether s or any nested scope declares name.
func (s *Scope) BindsInSubtree(name string) bool {
	if _, ok := s.bindings[name]; ok {
		return true
	}
	for _, c := range s.Children {
		if c.BindsInSubtree(name) {
			return true
		}
	}
	return false
}

// Bindings returns the scope's own bindings in declaration order.
func (s *Scope) Bindings() []*Binding {
	out := make([]*Binding, len(s.order))
	copy(out, s.order)
	return out
}

// functionScope returns the nearest scope that receives var declarations.
func (s *Scope) functionScope() *Scope {
	cur := s
	for cur.Kind != ScopeFunction && cur.Kind != ScopeModule && cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

func (s *Scope) declare(name string, kind BindingKind, ident *Node) *Binding {
	if b, ok := s.bindings[name]; ok {
		b.Decls = append(b.Decls, ident)
		return b
	}
	b := &Binding{Name: name, Kind: kind, Decl: ident, Decls: []*Node{ident}, Scope: s}
	s.bindings[name] = b
	s.order = append(s.order, b)
	return b
}

// analysis holds the result of scope analysis over one script.
type analysis struct {
	module  *Scope
	scopeOf map[*Node]*Scope   // Scope introduced by a node
	decls   map[*Node]*Binding // Declaring identifier -> binding
	globals map[string][]Ref   // Unresolved references by name
}

func isFunctionNode(typ string) bool {
	switch typ {
	case "function_declaration", "generator_function_declaration",
		"function", "function_expression", "generator_function",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

// introducesScope returns the kind of scope n opens, if any.
func introducesScope(n *Node) (ScopeKind, bool) {
	switch n.Type {
	case "program":
		return ScopeModule, true
	case "statement_block":
		if n.Parent != nil && isFunctionNode(n.Parent.Type) && n.Field == "body" {
			return 0, false
		}
		return ScopeBlock, true
	case "switch_body", "class_static_block":
		return ScopeBlock, true
	case "catch_clause":
		return ScopeCatch, true
	case "for_statement", "for_in_statement":
		return ScopeFor, true
	case "class":
		if n.ChildByField("name") != nil {
			return ScopeClass, true
		}
	}
	if isFunctionNode(n.Type) {
		return ScopeFunction, true
	}
	return 0, false
}

// declarer is the first pass: it creates scopes and declares bindings.
type declarer struct {
	src   string
	a     *analysis
	stack []*Scope
}

func (d *declarer) current() *Scope { return d.stack[len(d.stack)-1] }

func (d *declarer) Enter(n *Node) bool {
	// Names that belong to the enclosing scope are declared before the
	// node's own scope is pushed.
	switch n.Type {
	case "function_declaration", "generator_function_declaration":
		d.declareIdent(n.ChildByField("name"), BindingFunction, d.current())
	case "class_declaration":
		d.declareIdent(n.ChildByField("name"), BindingClass, d.current())
	case "variable_declarator":
		kind := declarationKind(n.Parent)
		target := d.current()
		if kind == BindingVar {
			target = target.functionScope()
		}
		d.declarePattern(n.ChildByField("name"), kind, target)
	case "import_statement":
		d.declareImports(n)
		return false
	}

	if kind, ok := introducesScope(n); ok {
		var parent *Scope
		if len(d.stack) > 0 {
			parent = d.current()
		}
		s := newScope(kind, n, parent)
		d.a.scopeOf[n] = s
		d.stack = append(d.stack, s)
		if kind == ScopeModule {
			d.a.module = s
		}
	}

	switch n.Type {
	case "function", "function_expression", "generator_function":
		d.declareIdent(n.ChildByField("name"), BindingFunction, d.current())
		d.declareParams(n)
	case "class":
		d.declareIdent(n.ChildByField("name"), BindingClass, d.current())
	case "function_declaration", "generator_function_declaration", "arrow_function", "method_definition":
		d.declareParams(n)
	case "catch_clause":
		d.declarePattern(n.ChildByField("parameter"), BindingCatch, d.current())
	case "for_in_statement":
		if kindNode := n.ChildByField("kind"); kindNode != nil {
			kind := kindFromKeyword(kindNode.Type)
			target := d.current()
			if kind == BindingVar {
				target = target.functionScope()
			}
			d.declarePattern(n.ChildByField("left"), kind, target)
		}
	}
	return true
}

func (d *declarer) Leave(n *Node) {
	if _, ok := d.a.scopeOf[n]; ok {
		d.stack = d.stack[:len(d.stack)-1]
	}
}

func (d *declarer) declareIdent(ident *Node, kind BindingKind, s *Scope) *Binding {
	if ident == nil {
		return nil
	}
	b := s.declare(ident.Text(d.src), kind, ident)
	d.a.decls[ident] = b
	return b
}

func (d *declarer) declareParams(fn *Node) {
	if p := fn.ChildByField("parameter"); p != nil {
		d.declarePattern(p, BindingParam, d.current())
	}
	params := fn.ChildByField("parameters")
	for _, p := range params.NamedChildren() {
		d.declarePattern(p, BindingParam, d.current())
	}
}

// declarePattern declares every name bound by a binding pattern.
func (d *declarer) declarePattern(p *Node, kind BindingKind, s *Scope) {
	if p == nil {
		return
	}
	switch p.Type {
	case "identifier", "shorthand_property_identifier_pattern":
		d.declareIdent(p, kind, s)
	case "object_pattern", "array_pattern":
		for _, c := range p.NamedChildren() {
			d.declarePattern(c, kind, s)
		}
	case "pair_pattern":
		d.declarePattern(p.ChildByField("value"), kind, s)
	case "assignment_pattern", "object_assignment_pattern":
		d.declarePattern(p.ChildByField("left"), kind, s)
	case "rest_pattern":
		for _, c := range p.NamedChildren() {
			d.declarePattern(c, kind, s)
		}
	}
}

func (d *declarer) declareImports(stmt *Node) {
	clause := stmt.ChildOfType("import_clause")
	for _, c := range clause.NamedChildren() {
		switch c.Type {
		case "identifier":
			d.declareIdent(c, BindingImport, d.current())
		case "namespace_import":
			d.declareIdent(c.ChildOfType("identifier"), BindingImport, d.current())
		case "named_imports":
			for _, spec := range c.NamedChildren() {
				if spec.Type != "import_specifier" {
					continue
				}
				local := spec.ChildByField("alias")
				if local == nil {
					local = spec.ChildByField("name")
				}
				d.declareIdent(local, BindingImport, d.current())
			}
		}
	}
}

func declarationKind(decl *Node) BindingKind {
	if decl == nil || len(decl.Children) == 0 {
		return BindingVar
	}
	if k := decl.ChildByField("kind"); k != nil {
		return kindFromKeyword(k.Type)
	}
	return kindFromKeyword(decl.Children[0].Type)
}

func kindFromKeyword(kw string) BindingKind {
	switch kw {
	case "let":
		return BindingLet
	case "const":
		return BindingConst
	default:
		return BindingVar
	}
}

// resolver is the second pass: it attaches every reference to a binding,
// or to the module's globals when nothing declares it.
type resolver struct {
	src   string
	a     *analysis
	stack []*Scope
}

func (r *resolver) Enter(n *Node) bool {
	if s, ok := r.a.scopeOf[n]; ok {
		r.stack = append(r.stack, s)
	}
	switch n.Type {
	case "import_statement":
		return false
	case "export_statement":
		// Re-exports from another module reference nothing local.
		return n.ChildByField("source") == nil
	case "export_specifier":
		if name := n.ChildByField("name"); name != nil && name.Type == "identifier" {
			r.reference(name)
		}
		return false
	case "namespace_export":
		return false
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if _, declared := r.a.decls[n]; !declared {
			r.reference(n)
		}
	}
	return true
}

func (r *resolver) Leave(n *Node) {
	if _, ok := r.a.scopeOf[n]; ok {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

func (r *resolver) reference(n *Node) {
	if len(r.stack) == 0 {
		return
	}
	s := r.stack[len(r.stack)-1]
	name := n.Text(r.src)
	if b := s.Lookup(name); b != nil {
		b.Refs = append(b.Refs, Ref{Node: n, Scope: s})
		return
	}
	r.a.globals[name] = append(r.a.globals[name], Ref{Node: n, Scope: s})
}

// analyze runs both passes over a script tree.
func analyze(root *Node, src string) *analysis {
	a := &analysis{
		scopeOf: make(map[*Node]*Scope),
		decls:   make(map[*Node]*Binding),
		globals: make(map[string][]Ref),
	}
	Walk(&declarer{src: src, a: a}, root)
	if a.module == nil {
		a.module = newScope(ScopeModule, root, nil)
		a.scopeOf[root] = a.module
	}
	Walk(&resolver{src: src, a: a}, root)
	return a
}
