// Package symbols allocates the identifiers of a bundle and maps every
// module export to the identifier that carries it.
package symbols

import (
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ExportAllHelper is the runtime helper that builds namespace objects.
const ExportAllHelper = "__exportAll"

// Helpers lists every runtime helper name the emitter may prepend.
var Helpers = []string{ExportAllHelper}

var reservedWords = map[string]bool{
	"arguments": true, "await": true, "break": true, "case": true, "catch": true,
	"class": true, "const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "eval": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true, "in": true,
	"instanceof": true, "interface": true, "let": true, "new": true, "null": true,
	"package": true, "private": true, "protected": true, "public": true, "return": true,
	"static": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true,
}

// IsReservedWord reports whether name can never be used as a binding.
func IsReservedWord(name string) bool {
	return reservedWords[name]
}

func isHelper(name string) bool {
	for _, h := range Helpers {
		if h == name {
			return true
		}
	}
	return false
}

// Scope is the part of a lexical scope the generator needs.
type Scope interface {
	IsBound(name string) bool
}

// Generator allocates names that are unique within one build. Every name it
// hands out is reserved immediately.
type Generator struct {
	reserved   map[string]bool
	namespaces map[string]bool
	next       map[string]int // Last $N suffix used per normalized hint
}

// NewGenerator creates an empty generator
func NewGenerator() *Generator {
	g := &Generator{}
	g.Reset()
	return g
}

// Reset clears all reservations.
func (g *Generator) Reset() {
	g.reserved = make(map[string]bool)
	g.namespaces = make(map[string]bool)
	g.next = make(map[string]int)
}

// Reserve marks name as taken.
func (g *Generator) Reserve(name string) {
	g.reserved[name] = true
}

// ReserveNamespace marks name as taken by a module namespace object.
func (g *Generator) ReserveNamespace(name string) {
	g.reserved[name] = true
	g.namespaces[name] = true
}

// IsReserved reports whether name was reserved or generated.
func (g *Generator) IsReserved(name string) bool {
	return g.reserved[name]
}

// IsConflicted reports whether using name at the top level of the bundle
// would clash with something: a reserved name, a runtime helper or a
// namespace id.
func (g *Generator) IsConflicted(name string) bool {
	return g.reserved[name] || g.namespaces[name] || isHelper(name) || reservedWords[name]
}

// Generate returns a fresh name derived from hint.
func (g *Generator) Generate(hint string) string {
	return g.generate(nil, hint)
}

// GenerateBasedOnScope is like Generate but also skips candidates that
// scope binds.
func (g *Generator) GenerateBasedOnScope(scope Scope, hint string) string {
	return g.generate(scope, hint)
}

func (g *Generator) generate(scope Scope, hint string) string {
	base := Normalize(hint)
	name := base
	for g.IsConflicted(name) || (scope != nil && scope.IsBound(name)) {
		g.next[base]++
		name = base + "$" + strconv.Itoa(g.next[base])
	}
	g.reserved[name] = true
	return name
}

// Reserved returns every reserved name, sorted.
func (g *Generator) Reserved() []string {
	out := make([]string, 0, len(g.reserved))
	for name := range g.reserved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Normalize turns hint into a valid identifier. Runes that cannot appear in
// an identifier become '_', and a leading digit or a reserved word gets a
// '_' prefix.
func Normalize(hint string) string {
	var b strings.Builder
	for _, r := range hint {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if b.Len() == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "_"
	}
	if reservedWords[name] {
		return "_" + name
	}
	return name
}

// ModuleHint derives a readable name from a module id or bare specifier:
// "/src/app.js" gives "app", "/src/utils/index.js" gives "utils" and
// "pkg:left-pad/index.js" gives "left_pad".
func ModuleHint(id string) string {
	if i := strings.IndexByte(id, ':'); i > 0 && !strings.Contains(id[:i], "/") {
		id = id[i+1:]
	}
	base := path.Base(id)
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "index" {
		if dir := path.Base(path.Dir(id)); dir != "/" && dir != "." {
			name = dir
		}
	}
	return Normalize(name)
}
