package sourcemap

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNotLocated is returned by MergeIntoBundle when the module text cannot
// be found in the bundle. The bundle itself is unaffected.
var ErrNotLocated = errors.New("module text not located in bundle")

// ComposeMaps chains two stages: earlier maps stage-1 output to the original
// sources, later maps stage-2 output to stage-1 output. The result maps
// stage-2 output straight to the original sources.
//
// When earlier names its generated file, only segments of later pointing at
// that file are composed. Segments with no counterpart in earlier are
// dropped. Source contents of both inputs are kept.
func ComposeMaps(earlier, later *Map) (*Map, error) {
	laterSegs, err := later.Decode()
	if err != nil {
		return nil, err
	}
	if _, err := earlier.Decode(); err != nil {
		return nil, err
	}

	b := NewBuilder(later.File)
	for i, src := range earlier.Sources {
		if i < len(earlier.SourcesContent) && earlier.SourcesContent[i] != "" {
			b.SetSourceContent(src, earlier.SourcesContent[i])
		}
	}
	for i, src := range later.Sources {
		if i < len(later.SourcesContent) && later.SourcesContent[i] != "" {
			if _, ok := b.sourceIx[src]; !ok {
				b.SetSourceContent(src, later.SourcesContent[i])
			}
		}
	}

	for _, seg := range laterSegs {
		if !seg.HasSource() {
			continue
		}
		if earlier.File != "" && later.Sources[seg.Source] != earlier.File {
			continue
		}
		orig, ok := earlier.Lookup(seg.OrigLine, seg.OrigColumn)
		if !ok {
			continue
		}
		name := ""
		if orig.Name >= 0 {
			name = earlier.Names[orig.Name]
		} else if seg.Name >= 0 {
			name = later.Names[seg.Name]
		}
		b.AddMapping(seg.GenLine, seg.GenColumn, earlier.Sources[orig.Source], orig.OrigLine, orig.OrigColumn, name)
	}
	return b.Map(), nil
}

// MergeIntoBundle re-emits moduleMap's segments into builder, shifted to
// where moduleText sits inside bundleSoFar. The location is found by
// comparing lines with all whitespace removed, searching from the end of the
// bundle, so a module appended last is found first.
func MergeIntoBundle(builder *Builder, moduleMap *Map, moduleText, bundleSoFar string) error {
	lines := NewBundleLines()
	lines.Append(bundleSoFar)
	return lines.Merge(builder, moduleMap, moduleText)
}

// BundleLines indexes the lines of a bundle while it is written, so each
// line is normalized once no matter how many modules are merged.
type BundleLines struct {
	raw  []string
	norm []string // raw with whitespace removed
}

// NewBundleLines returns the index of an empty bundle.
func NewBundleLines() *BundleLines {
	return &BundleLines{raw: []string{""}, norm: []string{""}}
}

// Append records text written at the end of the bundle.
func (l *BundleLines) Append(text string) {
	parts := strings.Split(text, "\n")
	last := len(l.raw) - 1
	l.raw[last] += parts[0]
	l.norm[last] = squeeze(l.raw[last])
	for _, p := range parts[1:] {
		l.raw = append(l.raw, p)
		l.norm = append(l.norm, squeeze(p))
	}
}

// Len returns the number of lines, counting an unterminated last line.
func (l *BundleLines) Len() int {
	return len(l.raw)
}

// Merge is MergeIntoBundle over the text appended so far.
func (l *BundleLines) Merge(builder *Builder, moduleMap *Map, moduleText string) error {
	segs, err := moduleMap.Decode()
	if err != nil {
		return err
	}
	if strings.TrimSpace(moduleText) == "" {
		return nil
	}

	moduleLines := strings.Split(moduleText, "\n")
	for len(moduleLines) > 0 && strings.TrimSpace(moduleLines[len(moduleLines)-1]) == "" {
		moduleLines = moduleLines[:len(moduleLines)-1]
	}
	start, ok := l.locate(moduleLines)
	if !ok {
		return ErrNotLocated
	}

	shifts := make([]int, len(moduleLines))
	for i, ml := range moduleLines {
		bl := l.raw[start+i]
		if i == 0 {
			trimmed := strings.TrimLeftFunc(ml, unicode.IsSpace)
			if trimmed != "" {
				if idx := strings.LastIndex(bl, trimmed); idx >= 0 {
					shifts[i] = idx - (len(ml) - len(trimmed))
					continue
				}
			}
		}
		shifts[i] = leadingSpace(bl) - leadingSpace(ml)
	}

	for i, src := range moduleMap.Sources {
		if i < len(moduleMap.SourcesContent) && moduleMap.SourcesContent[i] != "" {
			builder.SetSourceContent(src, moduleMap.SourcesContent[i])
		}
	}
	for _, seg := range segs {
		if !seg.HasSource() || seg.GenLine >= len(moduleLines) {
			continue
		}
		name := ""
		if seg.Name >= 0 {
			name = moduleMap.Names[seg.Name]
		}
		col := seg.GenColumn + shifts[seg.GenLine]
		if col < 0 {
			col = 0
		}
		builder.AddMapping(start+seg.GenLine, col, moduleMap.Sources[seg.Source], seg.OrigLine, seg.OrigColumn, name)
	}
	return nil
}

// locate returns the bundle line index where module starts. module must
// not end with blank lines.
func (l *BundleLines) locate(module []string) (int, bool) {
	n := len(module)
	if n == 0 || n > len(l.norm) {
		return 0, false
	}
	normModule := make([]string, n)
	for i, line := range module {
		normModule[i] = squeeze(line)
	}

	for start := len(l.norm) - n; start >= 0; start-- {
		// The first module line may share its bundle line with a
		// preceding fragment.
		if !strings.HasSuffix(l.norm[start], normModule[0]) {
			continue
		}
		match := true
		for k := 1; k < n; k++ {
			if l.norm[start+k] != normModule[k] {
				match = false
				break
			}
		}
		if match {
			return start, true
		}
	}
	return 0, false
}

func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}
