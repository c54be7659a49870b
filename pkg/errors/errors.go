package errors

import (
	"fmt"
	"strings"
)

// BundleError is the interface implemented by all weld errors.
type BundleError interface {
	error
	Pos() Position
	Kind() string // e.g., "Parse", "Resolve", "MissingExport"
	// Message returns the specific error message without position info.
	Message() string
	Unwrap() error
}

func format(kind string, pos Position, msg string) string {
	if pos.IsValid() {
		if pos.Source != nil {
			return fmt.Sprintf("%s Error at %s:%d:%d: %s", kind, pos.Source.DisplayPath(), pos.Line, pos.Column, msg)
		}
		return fmt.Sprintf("%s Error at %d:%d: %s", kind, pos.Line, pos.Column, msg)
	}
	return fmt.Sprintf("%s Error: %s", kind, msg)
}

// --- Concrete Error Types ---

// ParseError represents malformed module source. The module's contribution
// is dropped; siblings continue.
type ParseError struct {
	Position
	Module string // Canonical id of the module
	Msg    string
	Cause  error // Underlying cause, if any
}

func (e *ParseError) Error() string   { return format("Parse", e.Position, e.Msg) }
func (e *ParseError) Pos() Position   { return e.Position }
func (e *ParseError) Kind() string    { return "Parse" }
func (e *ParseError) Message() string { return e.Msg }
func (e *ParseError) Unwrap() error   { return e.Cause }
func (e *ParseError) CausedBy(cause error) *ParseError {
	e.Cause = cause
	return e
}

// ResolveFailure represents a specifier that no collaborator could map to a module.
type ResolveFailure struct {
	Position
	Specifier string // Raw specifier as written
	Importer  string // Canonical id of the importing module
	Cause     error
}

func (e *ResolveFailure) Error() string {
	return format("Resolve", e.Position, e.Message())
}
func (e *ResolveFailure) Pos() Position { return e.Position }
func (e *ResolveFailure) Kind() string  { return "Resolve" }
func (e *ResolveFailure) Message() string {
	if e.Importer == "" {
		return fmt.Sprintf("cannot resolve %q", e.Specifier)
	}
	return fmt.Sprintf("cannot resolve %q imported by %s", e.Specifier, e.Importer)
}
func (e *ResolveFailure) Unwrap() error { return e.Cause }
func (e *ResolveFailure) CausedBy(cause error) *ResolveFailure {
	e.Cause = cause
	return e
}

// MissingExportError means an import asked for a name the target does not export.
// It is scoped to a single binding attempt.
type MissingExportError struct {
	Position
	Module   string // Module that was asked for the export
	Name     string // Export name that was not found
	Importer string // Module that asked, if known
	Circular bool   // Resolution ran into an export * cycle
}

func (e *MissingExportError) Error() string {
	return format("MissingExport", e.Position, e.Message())
}
func (e *MissingExportError) Pos() Position { return e.Position }
func (e *MissingExportError) Kind() string  { return "MissingExport" }
func (e *MissingExportError) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q is not exported by %s", e.Name, e.Module)
	if e.Importer != "" {
		fmt.Fprintf(&b, " (imported by %s)", e.Importer)
	}
	if e.Circular {
		b.WriteString(": circular re-export")
	}
	return b.String()
}
func (e *MissingExportError) Unwrap() error { return nil }

// PluginError wraps an error returned by a collaborator hook.
type PluginError struct {
	Plugin string // Plugin name
	Hook   string // "resolve", "load", "transform", "package"
	Module string // Module or specifier being processed
	Cause  error
}

func (e *PluginError) Error() string {
	return format("Plugin", Position{}, e.Message())
}
func (e *PluginError) Pos() Position { return Position{} }
func (e *PluginError) Kind() string  { return "Plugin" }
func (e *PluginError) Message() string {
	msg := fmt.Sprintf("[%s] %s hook failed", e.Plugin, e.Hook)
	if e.Module != "" {
		msg += " for " + e.Module
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}
func (e *PluginError) Unwrap() error { return e.Cause }

// EntryError is fatal: the entry module could not be resolved, loaded or parsed.
type EntryError struct {
	Entry string
	Cause error
}

func (e *EntryError) Error() string {
	return format("Entry", Position{}, e.Message())
}
func (e *EntryError) Pos() Position { return Position{} }
func (e *EntryError) Kind() string  { return "Entry" }
func (e *EntryError) Message() string {
	if e.Cause != nil {
		return fmt.Sprintf("entry %q: %s", e.Entry, e.Cause.Error())
	}
	return fmt.Sprintf("entry %q could not be loaded", e.Entry)
}
func (e *EntryError) Unwrap() error { return e.Cause }
