package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/nooga/weld/pkg/source"
)

// Level is a diagnostic severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic codes pushed by the pipeline.
const (
	CodeParse         = "PARSE_ERROR"
	CodeResolve       = "RESOLVE_FAILURE"
	CodeMissingExport = "MISSING_EXPORT"
	CodePlugin        = "PLUGIN_ERROR"
	CodeEntry         = "ENTRY_ERROR"
	CodeSourceMap     = "SOURCEMAP_SKIPPED"
	CodeDynamicImport = "DYNAMIC_IMPORT"
	CodeCancelled     = "BUILD_CANCELLED"
)

// Diagnostic is one entry on the diagnostic channel.
type Diagnostic struct {
	Level  Level
	Code   string
	Reason string
	Module string // Canonical id of the module concerned, if any
	Frame  string // Rendered code frame, if the position is known
	Err    error  // Originating error, if any
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", d.Level, d.Code, d.Reason)
	if d.Frame != "" {
		b.WriteString("\n")
		b.WriteString(d.Frame)
	}
	return b.String()
}

// Diagnostics collects diagnostics for one build. Nothing here is fatal by
// itself; callers decide based on the pushed kinds.
type Diagnostics struct {
	items []Diagnostic
}

// NewDiagnostics creates an empty diagnostic channel
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Push appends a diagnostic.
func (d *Diagnostics) Push(level Level, diag Diagnostic) {
	diag.Level = level
	d.items = append(d.items, diag)
}

// PushError converts a BundleError into a diagnostic with a code frame.
func (d *Diagnostics) PushError(level Level, err error) {
	diag := Diagnostic{Code: codeFor(err), Reason: err.Error(), Err: err}
	var be BundleError
	if stderrors.As(err, &be) {
		diag.Reason = be.Message()
		pos := be.Pos()
		if pos.Source != nil {
			diag.Module = pos.Source.Path
			if pos.IsValid() {
				diag.Frame = CodeFrame(pos.Source, pos)
			}
		}
	}
	switch e := err.(type) {
	case *ResolveFailure:
		diag.Module = e.Importer
	case *MissingExportError:
		if e.Importer != "" {
			diag.Module = e.Importer
		}
	case *ParseError:
		diag.Module = e.Module
	case *PluginError:
		diag.Module = e.Module
	case *EntryError:
		diag.Module = e.Entry
	}
	d.Push(level, diag)
}

// Merge appends all diagnostics from other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

// All returns the collected diagnostics in push order.
func (d *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

// Len returns the number of diagnostics
func (d *Diagnostics) Len() int {
	return len(d.items)
}

// HasErrors reports whether any error-level diagnostic was pushed.
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.items {
		if item.Level == LevelError {
			return true
		}
	}
	return false
}

// ByCode returns all diagnostics with the given code.
func (d *Diagnostics) ByCode(code string) []Diagnostic {
	var out []Diagnostic
	for _, item := range d.items {
		if item.Code == code {
			out = append(out, item)
		}
	}
	return out
}

// Write prints every diagnostic to w, one block per diagnostic.
func (d *Diagnostics) Write(w io.Writer) {
	for _, item := range d.items {
		fmt.Fprintln(w, item.String())
	}
}

func codeFor(err error) string {
	var (
		parseErr   *ParseError
		resolveErr *ResolveFailure
		missing    *MissingExportError
		pluginErr  *PluginError
		entryErr   *EntryError
	)
	switch {
	case stderrors.As(err, &entryErr):
		return CodeEntry
	case stderrors.As(err, &pluginErr):
		return CodePlugin
	case stderrors.As(err, &parseErr):
		return CodeParse
	case stderrors.As(err, &resolveErr):
		return CodeResolve
	case stderrors.As(err, &missing):
		return CodeMissingExport
	default:
		return "ERROR"
	}
}

// CodeFrame renders the source line at pos with a caret marker underneath,
// plus one line of context on each side.
func CodeFrame(sf *source.SourceFile, pos Position) string {
	if sf == nil || !pos.IsValid() {
		return ""
	}
	lines := sf.Lines()
	lineIdx := pos.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return ""
	}

	first := lineIdx - 1
	if first < 0 {
		first = 0
	}
	last := lineIdx + 1
	if last >= len(lines) {
		last = len(lines) - 1
	}
	width := len(fmt.Sprint(last + 1))

	var b strings.Builder
	for i := first; i <= last; i++ {
		marker := " "
		if i == lineIdx {
			marker = ">"
		}
		// Trim trailing whitespace for cleaner output
		text := strings.TrimRight(lines[i], "\r\n\t ")
		fmt.Fprintf(&b, "%s %*d | %s\n", marker, width, i+1, text)
		if i == lineIdx {
			span := 1
			if pos.EndPos > pos.StartPos && pos.EndPos-pos.StartPos < len(text) {
				span = pos.EndPos - pos.StartPos
				if endLine, _ := sf.Position(pos.EndPos); endLine != pos.Line {
					span = 1
				}
			}
			col := pos.Column - 1
			if col < 0 {
				col = 0
			}
			fmt.Fprintf(&b, "  %s | %s%s\n", strings.Repeat(" ", width), strings.Repeat(" ", col), strings.Repeat("^", span))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
