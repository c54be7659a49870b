package sourcemap

import (
	"sort"
	"strings"
)

// Builder accumulates segments and produces a Map.
type Builder struct {
	file     string
	sources  []string
	contents map[int]string
	names    []string

	sourceIx map[string]int
	nameIx   map[string]int
	segments []Mapping
}

// NewBuilder creates a builder for a map describing the generated file.
func NewBuilder(file string) *Builder {
	return &Builder{
		file:     file,
		contents: make(map[int]string),
		sourceIx: make(map[string]int),
		nameIx:   make(map[string]int),
	}
}

// AddSource registers a source and returns its index.
func (b *Builder) AddSource(source string) int {
	if ix, ok := b.sourceIx[source]; ok {
		return ix
	}
	ix := len(b.sources)
	b.sources = append(b.sources, source)
	b.sourceIx[source] = ix
	return ix
}

// SetSourceContent embeds the original text of a source.
func (b *Builder) SetSourceContent(source, content string) {
	b.contents[b.AddSource(source)] = content
}

func (b *Builder) addName(name string) int {
	if name == "" {
		return -1
	}
	if ix, ok := b.nameIx[name]; ok {
		return ix
	}
	ix := len(b.names)
	b.names = append(b.names, name)
	b.nameIx[name] = ix
	return ix
}

// AddMapping records that the generated position maps to the original
// position in source. An empty name leaves the segment unnamed.
func (b *Builder) AddMapping(genLine, genColumn int, source string, origLine, origColumn int, name string) {
	b.segments = append(b.segments, Mapping{
		GenLine:    genLine,
		GenColumn:  genColumn,
		Source:     b.AddSource(source),
		OrigLine:   origLine,
		OrigColumn: origColumn,
		Name:       b.addName(name),
	})
}

// Len returns the number of recorded segments
func (b *Builder) Len() int {
	return len(b.segments)
}

// Map sorts the segments by generated position and encodes them.
// Duplicate generated positions keep the first segment added.
func (b *Builder) Map() *Map {
	segs := make([]Mapping, len(b.segments))
	copy(segs, b.segments)
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].GenLine != segs[j].GenLine {
			return segs[i].GenLine < segs[j].GenLine
		}
		return segs[i].GenColumn < segs[j].GenColumn
	})

	var (
		out                                strings.Builder
		line, prevCol                      int
		prevSrc, prevOrigLine, prevOrigCol int
		prevName                           int
		firstOnLine                        = true
		lastGenLine, lastGenCol            = -1, -1
		deduped                            []Mapping
	)
	for _, seg := range segs {
		if seg.GenLine == lastGenLine && seg.GenColumn == lastGenCol {
			continue
		}
		lastGenLine, lastGenCol = seg.GenLine, seg.GenColumn
		deduped = append(deduped, seg)

		for line < seg.GenLine {
			out.WriteByte(';')
			line++
			prevCol = 0
			firstOnLine = true
		}
		if !firstOnLine {
			out.WriteByte(',')
		}
		firstOnLine = false

		encodeVLQ(&out, seg.GenColumn-prevCol)
		prevCol = seg.GenColumn
		if seg.Source < 0 {
			continue
		}
		encodeVLQ(&out, seg.Source-prevSrc)
		encodeVLQ(&out, seg.OrigLine-prevOrigLine)
		encodeVLQ(&out, seg.OrigColumn-prevOrigCol)
		prevSrc, prevOrigLine, prevOrigCol = seg.Source, seg.OrigLine, seg.OrigColumn
		if seg.Name >= 0 {
			encodeVLQ(&out, seg.Name-prevName)
			prevName = seg.Name
		}
	}

	m := &Map{
		Version:  3,
		File:     b.file,
		Sources:  append([]string{}, b.sources...),
		Names:    append([]string{}, b.names...),
		Mappings: out.String(),
		decoded:  deduped,
	}
	if len(b.contents) > 0 {
		m.SourcesContent = make([]string, len(b.sources))
		for ix, content := range b.contents {
			m.SourcesContent[ix] = content
		}
	}
	return m
}
