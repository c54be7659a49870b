package errors

import "github.com/nooga/weld/pkg/source"

// Position represents a specific location in a module.
// It includes line and column numbers (1-based) for human-readability,
// and byte offsets (0-based) for tooling.
type Position struct {
	Line     int                // 1-based line number
	Column   int                // 1-based column number (rune index within the line)
	StartPos int                // 0-based byte offset of the start of the span
	EndPos   int                // 0-based byte offset of the end of the span (exclusive)
	Source   *source.SourceFile // Reference to the source file
}

// PositionAt builds a Position for the byte span [start, end) of sf.
func PositionAt(sf *source.SourceFile, start, end int) Position {
	if sf == nil {
		return Position{StartPos: start, EndPos: end}
	}
	line, _ := sf.Position(start)
	return Position{
		Line:     line,
		Column:   sf.RuneColumn(start),
		StartPos: start,
		EndPos:   end,
		Source:   sf,
	}
}

// IsValid reports whether the position carries line information.
func (p Position) IsValid() bool {
	return p.Line > 0
}
