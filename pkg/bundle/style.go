package bundle

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/rewrite"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/syntax"
)

// emitStyle concatenates style modules with imported sheets first, each
// preceded by a comment naming it. @import rules go away since the
// imported sheets are already in the bundle.
func (e *Emitter) emitStyle(a *Artifact) Output {
	w := newChunkWriter(e.opts.StyleID, e.diags)
	for _, m := range e.graph.EvaluationOrder() {
		if m.File == nil || !m.File.IsStyle() {
			continue
		}
		text, smap := e.rewriteStyle(m)
		w.write(fmt.Sprintf("/* %s */", m.ID))
		w.writeModule(m.ID, text, smap)
	}
	Logger().Debug("style emitted", zap.String("id", e.opts.StyleID), zap.Int("bytes", w.out.Len()))
	return Output{ID: e.opts.StyleID, Content: w.finish(e.opts.StyleID, sourcemap.StyleCSS, e.opts.Mode, a)}
}

// rewriteStyle strips @import rules and points url() references at the
// public path of the resource they resolved to.
func (e *Emitter) rewriteStyle(m *modules.Module) (string, *sourcemap.Map) {
	ed := rewrite.NewEditor(m.Source, nil)
	for _, dep := range m.File.StyleDeps {
		switch dep.Kind {
		case syntax.StyleImport:
			ed.RemoveStatement(dep.Node.Start, dep.Node.End)
		case syntax.StyleURL:
			id, ok := m.Dependency(dep.Specifier)
			if !ok {
				continue
			}
			url := e.publicPath(id)
			if dep.Value.Type == "string_value" {
				url = `"` + strings.ReplaceAll(url, `"`, `\"`) + `"`
			}
			ed.Replace(dep.Value.Start, dep.Value.End, url)
		}
	}

	out := ed.Apply()
	if m.Map == nil {
		return out.Text, out.Map
	}
	composed, err := sourcemap.ComposeMaps(m.Map, out.Map)
	if err != nil {
		e.diags.Push(errors.LevelWarning, errors.Diagnostic{
			Code:   errors.CodeSourceMap,
			Reason: "cannot compose transform map: " + err.Error(),
			Module: m.ID,
			Err:    err,
		})
		return out.Text, out.Map
	}
	return out.Text, composed
}

// emitMarkup writes an HTML shell loading the script and the stylesheet.
func (e *Emitter) emitMarkup(a *Artifact) Output {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if len(a.Style.Content) > 0 {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(e.opts.PublicPath+a.Style.ID))
	}
	b.WriteString("</head>\n<body>\n")
	if len(a.Script.Content) > 0 {
		fmt.Fprintf(&b, "<script type=\"module\" src=\"%s\"></script>\n", html.EscapeString(e.opts.PublicPath+a.Script.ID))
	}
	b.WriteString("</body>\n</html>\n")
	return Output{ID: e.opts.MarkupID, Content: []byte(b.String())}
}
