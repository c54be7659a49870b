// Package rewrite applies span edits to module text and records where every
// piece of the output came from.
//
// Edits are expressed against the original text. When two edits overlap,
// the one that starts first (the longer one on a tie) wins and the other is
// dropped, so rewriting an enclosing statement makes edits to its inner
// identifiers irrelevant.
package rewrite

import (
	"sort"
	"strings"

	"github.com/nooga/weld/pkg/source"
	"github.com/nooga/weld/pkg/sourcemap"
)

type edit struct {
	start, end int
	text       string
	name       string // Original identifier, for renames
	seq        int
}

func (e edit) isInsert() bool { return e.start == e.end }

// Editor collects edits over one source file.
type Editor struct {
	sf      *source.SourceFile
	anchors []int
	edits   []edit
}

// NewEditor creates an editor for sf. anchors are original offsets that get
// a source map segment of their own, typically token starts. Line starts
// are always anchored.
func NewEditor(sf *source.SourceFile, anchors []int) *Editor {
	all := append([]int{}, source.LineOffsets(sf.Content)...)
	all = append(all, anchors...)
	return &Editor{sf: sf, anchors: all}
}

// Replace substitutes text for [start, end).
func (e *Editor) Replace(start, end int, text string) {
	e.add(edit{start: start, end: end, text: text})
}

// Rename replaces the identifier at [start, end) with name. The segment
// records the original identifier as its name.
func (e *Editor) Rename(start, end int, name string) {
	e.add(edit{start: start, end: end, text: name, name: e.sf.Content[start:end]})
}

// Insert adds text before offset at.
func (e *Editor) Insert(at int, text string) {
	e.add(edit{start: at, end: at, text: text})
}

// Remove deletes [start, end).
func (e *Editor) Remove(start, end int) {
	e.add(edit{start: start, end: end})
}

// RemoveStatement deletes [start, end) and, when nothing else is left on
// the line, the rest of the line including its newline.
func (e *Editor) RemoveStatement(start, end int) {
	content := e.sf.Content
	lineStart := strings.LastIndexByte(content[:start], '\n') + 1
	if strings.TrimSpace(content[lineStart:start]) == "" {
		rest := end
		for rest < len(content) && (content[rest] == ' ' || content[rest] == '\t' || content[rest] == '\r') {
			rest++
		}
		if rest == len(content) || content[rest] == '\n' {
			if rest < len(content) {
				rest++
			}
			e.add(edit{start: lineStart, end: rest})
			return
		}
	}
	e.add(edit{start: start, end: end})
}

func (e *Editor) add(ed edit) {
	if ed.start < 0 || ed.end > len(e.sf.Content) || ed.start > ed.end {
		return
	}
	ed.seq = len(e.edits)
	e.edits = append(e.edits, ed)
}

// accepted returns the edits that survive overlap resolution, in order.
func (e *Editor) accepted() []edit {
	edits := make([]edit, len(e.edits))
	copy(edits, e.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		// Insertions go before a replacement starting at the same offset.
		if a.isInsert() != b.isInsert() {
			return a.isInsert()
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.seq < b.seq
	})

	var out []edit
	lastEnd := -1
	for _, ed := range edits {
		if ed.start < lastEnd {
			continue
		}
		out = append(out, ed)
		if ed.end > lastEnd {
			lastEnd = ed.end
		}
	}
	return out
}

// Result is the edited text with its map back to the original.
type Result struct {
	Text string
	Map  *sourcemap.Map
}

// Apply produces the edited text. The editor can be applied again after
// more edits are added.
func (e *Editor) Apply() Result {
	anchors := append([]int{}, e.anchors...)
	sort.Ints(anchors)

	w := &writer{sf: e.sf, mb: sourcemap.NewBuilder("")}
	w.mb.SetSourceContent(e.sf.Path, e.sf.Content)

	pos, ai := 0, 0
	copyTo := func(to int) {
		for ai < len(anchors) && anchors[ai] < pos {
			ai++
		}
		for ai < len(anchors) && anchors[ai] < to {
			a := anchors[ai]
			w.write(e.sf.Content[pos:a])
			w.mark(a, "")
			pos = a
			ai++
		}
		w.write(e.sf.Content[pos:to])
		pos = to
	}

	for _, ed := range e.accepted() {
		copyTo(ed.start)
		if ed.text != "" {
			w.mark(ed.start, ed.name)
			w.write(ed.text)
		}
		pos = ed.end
	}
	copyTo(len(e.sf.Content))

	return Result{Text: w.out.String(), Map: w.mb.Map()}
}

type writer struct {
	sf              *source.SourceFile
	out             strings.Builder
	mb              *sourcemap.Builder
	genLine, genCol int
}

func (w *writer) write(s string) {
	w.out.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		w.genLine += strings.Count(s, "\n")
		w.genCol = len(s) - i - 1
	} else {
		w.genCol += len(s)
	}
}

// mark anchors the current output position at original offset.
func (w *writer) mark(offset int, name string) {
	line, col := w.sf.Position(offset)
	w.mb.AddMapping(w.genLine, w.genCol, w.sf.Path, line-1, col, name)
}
