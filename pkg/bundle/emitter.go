package bundle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/linker"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/symbols"
)

// Options configures an Emitter.
type Options struct {
	Mode       Mode
	ScriptID   string
	StyleID    string
	MarkupID   string
	PublicPath string                 // Prefix of the URLs the markup references
	Resources  modules.ResourcePather // Public URLs of resources; ids are used when nil
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Mode:     Development,
		ScriptID: "bundle.js",
		StyleID:  "bundle.css",
		MarkupID: "index.html",
	}
}

// Emitter writes the artifact of one linked graph.
type Emitter struct {
	opts  Options
	graph *modules.Graph
	table *symbols.Table
	diags *errors.Diagnostics
}

// NewEmitter creates an emitter for g. table must be the table g was linked
// with.
func NewEmitter(g *modules.Graph, table *symbols.Table, diags *errors.Diagnostics, opts Options) *Emitter {
	return &Emitter{opts: opts, graph: g, table: table, diags: diags}
}

// Emit builds the artifact from the output of the linker.
func (e *Emitter) Emit(linked *linker.Result) *Artifact {
	a := &Artifact{}
	a.Script = e.emitScript(linked, a)
	a.Style = e.emitStyle(a)
	a.Markup = e.emitMarkup(a)
	a.Resources = append(e.resources(), a.Resources...)
	return a
}

// chunkWriter appends text to an output and merges position maps as it
// goes.
type chunkWriter struct {
	out     strings.Builder
	lines   *sourcemap.BundleLines
	builder *sourcemap.Builder
	diags   *errors.Diagnostics
}

func newChunkWriter(id string, diags *errors.Diagnostics) *chunkWriter {
	return &chunkWriter{
		lines:   sourcemap.NewBundleLines(),
		builder: sourcemap.NewBuilder(id),
		diags:   diags,
	}
}

// write appends text, terminating it with a newline.
func (w *chunkWriter) write(text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	w.out.WriteString(text)
	w.lines.Append(text)
}

// writeModule appends the text of one module and merges its map.
func (w *chunkWriter) writeModule(id, text string, m *sourcemap.Map) {
	w.write(text)
	if m == nil || strings.TrimSpace(text) == "" {
		return
	}
	err := w.lines.Merge(w.builder, m, text)
	if err == nil {
		return
	}
	reason := "module map skipped: " + err.Error()
	w.diags.Push(errors.LevelWarning, errors.Diagnostic{
		Code:   errors.CodeSourceMap,
		Reason: reason,
		Module: id,
		Err:    err,
	})
}

// finish attaches the map as the mode requires and returns the content.
func (w *chunkWriter) finish(id string, style sourcemap.Style, mode Mode, a *Artifact) []byte {
	if w.out.Len() == 0 {
		return nil
	}
	if w.builder.Len() > 0 {
		m := w.builder.Map()
		switch mode {
		case Production:
			a.Resources = append(a.Resources, Output{ID: mapID(id), Content: m.JSON()})
			w.out.WriteString(sourcemap.URLComment(mapURL(id), style) + "\n")
		default:
			w.out.WriteString(sourcemap.InlineComment(m, style) + "\n")
		}
	}
	return []byte(w.out.String())
}

func (e *Emitter) emitScript(linked *linker.Result, a *Artifact) Output {
	w := newChunkWriter(e.opts.ScriptID, e.diags)

	w.write(e.externalImports())
	if len(linked.Namespaces) > 0 {
		w.write(helpers[symbols.ExportAllHelper])
	}

	emitted := make(map[string]bool)
	emitNamespace := func(id string) {
		if ns := linked.Namespaces[id]; ns != nil && !emitted[id] {
			emitted[id] = true
			w.write(ns.Text)
		}
	}
	for _, lm := range linked.Modules {
		for _, id := range lm.Namespaces {
			emitNamespace(id)
		}
		w.writeModule(lm.Module.ID, lm.Text, lm.Map)
		emitNamespace(lm.Module.ID)
	}

	// Namespaces of modules that contributed no text of their own.
	var rest []string
	for id := range linked.Namespaces {
		if !emitted[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		emitNamespace(id)
	}

	Logger().Debug("script emitted", zap.String("id", e.opts.ScriptID), zap.Int("bytes", w.out.Len()))
	return Output{ID: e.opts.ScriptID, Content: w.finish(e.opts.ScriptID, sourcemap.StyleJS, e.opts.Mode, a)}
}

// externalImports hoists one import declaration per external specifier.
// Specifiers only imported for their side effects keep a bare import.
func (e *Emitter) externalImports() string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, ext := range e.table.Externals() {
		seen[ext.Specifier] = true
		spec := strconv.Quote(ext.Specifier)
		if ext.Namespace != "" {
			fmt.Fprintf(&b, "import * as %s from %s;\n", ext.Namespace, spec)
		}
		var def string
		var named []string
		for _, name := range sortedKeys(ext.Names) {
			sym := ext.Names[name]
			switch {
			case name == "default":
				def = sym
			case name == sym:
				named = append(named, name)
			default:
				named = append(named, importName(name)+" as "+sym)
			}
		}
		var clause []string
		if def != "" {
			clause = append(clause, def)
		}
		if len(named) > 0 {
			clause = append(clause, "{ "+strings.Join(named, ", ")+" }")
		}
		switch {
		case len(clause) > 0:
			fmt.Fprintf(&b, "import %s from %s;\n", strings.Join(clause, ", "), spec)
		case ext.Namespace == "":
			fmt.Fprintf(&b, "import %s;\n", spec)
		}
	}

	var bare []string
	for _, m := range e.graph.Modules() {
		for spec := range m.Externals {
			if !seen[spec] {
				seen[spec] = true
				bare = append(bare, spec)
			}
		}
	}
	sort.Strings(bare)
	for _, spec := range bare {
		fmt.Fprintf(&b, "import %s;\n", strconv.Quote(spec))
	}
	return b.String()
}

// importName quotes an imported name that is not an identifier.
func importName(name string) string {
	if symbols.Normalize(name) == name || symbols.IsReservedWord(name) {
		return name
	}
	return strconv.Quote(name)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// publicPath returns the URL a resource module is served under.
func (e *Emitter) publicPath(id string) string {
	if e.opts.Resources != nil {
		return e.opts.Resources.PublicPath(id)
	}
	return id
}

// resources returns the raw bytes of every resource module in the graph.
func (e *Emitter) resources() []Output {
	var out []Output
	for _, m := range e.graph.Modules() {
		if m.Raw == nil {
			continue
		}
		out = append(out, Output{ID: e.publicPath(m.ID), Content: m.Raw})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
