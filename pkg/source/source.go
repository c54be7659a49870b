package source

import (
	"path"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind classifies a module's content.
type Kind int

const (
	KindScript   Kind = iota // JavaScript module
	KindStyle                // CSS module
	KindResource             // Opaque asset (image, font, ...)
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStyle:
		return "style"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// KindForPath picks a module kind from the file extension.
// JSON is loaded as a script module exporting the parsed value.
func KindForPath(p string) Kind {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".json":
		return KindScript
	case ".css":
		return KindStyle
	default:
		return KindResource
	}
}

// SourceFile represents a module's text with its identity
type SourceFile struct {
	Name    string // Display name (e.g., "index.js")
	Path    string // Canonical module id
	Content string // The source code content
	Kind    Kind   // Content kind

	lines       []string // Cached split lines (lazy initialization)
	lineOffsets []int    // Byte offset of each line start (lazy initialization)
}

// NewSourceFile creates a new source file
func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{
		Name:    name,
		Path:    path,
		Content: content,
		Kind:    KindForPath(path),
	}
}

// FromFile creates a SourceFile from a module id and content
func FromFile(id, content string) *SourceFile {
	return NewSourceFile(path.Base(id), id, content)
}

// Lines returns the source split into lines (cached)
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	return sf.lines
}

// DisplayPath returns the best path for display (prefers Path, falls back to Name)
func (sf *SourceFile) DisplayPath() string {
	if sf.Path != "" {
		return sf.Path
	}
	return sf.Name
}

// Position converts a byte offset into a 1-based line and a 0-based byte column.
// Offsets past the end clamp to the last position.
func (sf *SourceFile) Position(offset int) (line, column int) {
	offsets := sf.offsets()
	if offset < 0 {
		offset = 0
	}
	if offset > len(sf.Content) {
		offset = len(sf.Content)
	}
	idx := sort.Search(len(offsets), func(i int) bool { return offsets[i] > offset }) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, offset - offsets[idx]
}

// RuneColumn converts a byte offset into a 1-based rune column, matching
// what editors display.
func (sf *SourceFile) RuneColumn(offset int) int {
	line, col := sf.Position(offset)
	start := sf.offsets()[line-1]
	return utf8.RuneCountInString(sf.Content[start:start+col]) + 1
}

// Offset converts a 1-based line and 0-based byte column back into an offset.
func (sf *SourceFile) Offset(line, column int) int {
	offsets := sf.offsets()
	if line < 1 {
		return 0
	}
	if line > len(offsets) {
		return len(sf.Content)
	}
	off := offsets[line-1] + column
	if off > len(sf.Content) {
		off = len(sf.Content)
	}
	return off
}

func (sf *SourceFile) offsets() []int {
	if sf.lineOffsets == nil {
		sf.lineOffsets = LineOffsets(sf.Content)
	}
	return sf.lineOffsets
}

// LineOffsets returns the byte offset of every line start in text.
func LineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
