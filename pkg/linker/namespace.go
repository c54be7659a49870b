package linker

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nooga/weld/pkg/symbols"
)

// Namespace is the synthesized namespace object of one module. Every
// export is an accessor, so reads see the current value of the binding.
type Namespace struct {
	Module string
	Symbol string
	Text   string
}

// namespaces builds the namespace objects the bundle references. An object
// that exposes another namespace id (export * as) makes that one needed
// too.
func (l *Linker) namespaces() map[string]*Namespace {
	out := make(map[string]*Namespace)
	for {
		added := false
		for _, m := range l.graph.Modules() {
			if !l.table.NamespaceNeeded(m.ID) || out[m.ID] != nil {
				continue
			}
			exports := l.table.GetModuleExports(m.ID)
			for _, sym := range exports {
				if owner, ok := l.table.NamespaceOwner(sym); ok {
					l.table.MarkNamespaceNeeded(owner)
				}
			}
			sym := l.table.Namespace(m.ID)
			out[m.ID] = &Namespace{Module: m.ID, Symbol: sym, Text: namespaceText(sym, exports)}
			added = true
		}
		if !added {
			return out
		}
	}
}

func namespaceText(sym string, exports map[string]string) string {
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("const " + sym + " = " + symbols.ExportAllHelper + "({")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  " + propertyKey(name) + ": () => " + exports[name])
	}
	if len(names) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("});\n")
	return b.String()
}

func propertyKey(name string) string {
	if name != "" && (symbols.Normalize(name) == name || symbols.IsReservedWord(name)) {
		return name
	}
	return strconv.Quote(name)
}
