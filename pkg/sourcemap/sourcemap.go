// Package sourcemap encodes, decodes and composes version 3 source maps.
//
// Lines and columns are 0-based everywhere in this package, matching the
// encoded form. The go-sourcemap consumer (1-based lines) is only used to
// validate maps handed in by collaborators.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// Map is the JSON form of a version 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`

	decoded []Mapping
}

// Mapping is one decoded segment. Source and Name are indexes into the
// map's Sources and Names, or -1 when absent.
type Mapping struct {
	GenLine    int
	GenColumn  int
	Source     int
	OrigLine   int
	OrigColumn int
	Name       int
}

// HasSource reports whether the segment points back to an original position.
func (m Mapping) HasSource() bool {
	return m.Source >= 0
}

// Parse decodes a JSON source map. The payload is additionally checked by
// the go-sourcemap consumer so malformed maps from plugins are rejected early.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid source map JSON: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	if _, err := gosourcemap.Parse(m.File, data); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}
	if _, err := m.Decode(); err != nil {
		return nil, err
	}
	return &m, nil
}

// JSON encodes the map.
func (m *Map) JSON() []byte {
	out, err := json.Marshal(m)
	if err != nil {
		// Map contains only strings and ints
		panic(err)
	}
	return out
}

// SourceContent returns the embedded content of the named source.
func (m *Map) SourceContent(source string) (string, bool) {
	for i, s := range m.Sources {
		if s == source && i < len(m.SourcesContent) {
			return m.SourcesContent[i], true
		}
	}
	return "", false
}

// Decode returns all segments sorted by generated position. The result is
// cached on the map.
func (m *Map) Decode() ([]Mapping, error) {
	if m.decoded != nil {
		return m.decoded, nil
	}
	var (
		out                               []Mapping
		genLine, genCol                   int
		source, origLine, origCol, nameIx int
	)
	s := m.Mappings
	pos := 0
	for pos < len(s) {
		switch s[pos] {
		case ';':
			genLine++
			genCol = 0
			pos++
			continue
		case ',':
			pos++
			continue
		}

		var fields [5]int
		n := 0
		for pos < len(s) && s[pos] != ',' && s[pos] != ';' {
			if n == 5 {
				return nil, fmt.Errorf("segment with more than 5 fields at %d", pos)
			}
			v, next, err := decodeVLQ(s, pos)
			if err != nil {
				return nil, err
			}
			fields[n] = v
			n++
			pos = next
		}

		seg := Mapping{Source: -1, Name: -1}
		switch n {
		case 1, 4, 5:
		default:
			return nil, fmt.Errorf("segment with %d fields on generated line %d", n, genLine)
		}
		genCol += fields[0]
		seg.GenLine, seg.GenColumn = genLine, genCol
		if n >= 4 {
			source += fields[1]
			origLine += fields[2]
			origCol += fields[3]
			if source < 0 || source >= len(m.Sources) {
				return nil, fmt.Errorf("source index %d out of range", source)
			}
			seg.Source, seg.OrigLine, seg.OrigColumn = source, origLine, origCol
		}
		if n == 5 {
			nameIx += fields[4]
			if nameIx < 0 || nameIx >= len(m.Names) {
				return nil, fmt.Errorf("name index %d out of range", nameIx)
			}
			seg.Name = nameIx
		}
		out = append(out, seg)
	}
	m.decoded = out
	return out, nil
}

// Lookup finds the segment covering the generated position: the segment on
// genLine with the greatest column not after genColumn.
func (m *Map) Lookup(genLine, genColumn int) (Mapping, bool) {
	segs, err := m.Decode()
	if err != nil {
		return Mapping{}, false
	}
	i := sort.Search(len(segs), func(i int) bool {
		if segs[i].GenLine != genLine {
			return segs[i].GenLine > genLine
		}
		return segs[i].GenColumn > genColumn
	})
	if i == 0 {
		return Mapping{}, false
	}
	seg := segs[i-1]
	if seg.GenLine != genLine || !seg.HasSource() {
		return Mapping{}, false
	}
	return seg, true
}

// Style selects the comment syntax used to reference a map.
type Style int

const (
	StyleJS  Style = iota // //# sourceMappingURL=...
	StyleCSS              // /*# sourceMappingURL=... */
)

// URLComment returns a trailing comment referencing a map by URL.
func URLComment(url string, style Style) string {
	if style == StyleCSS {
		return "/*# sourceMappingURL=" + url + " */"
	}
	return "//# sourceMappingURL=" + url
}

// InlineComment returns a trailing comment embedding m as a data URL.
func InlineComment(m *Map, style Style) string {
	data := base64.StdEncoding.EncodeToString(m.JSON())
	return URLComment("data:application/json;charset=utf-8;base64,"+data, style)
}

// ExtractInline finds an inline data-URL map comment in text and decodes it.
func ExtractInline(text string) (*Map, bool) {
	const marker = "sourceMappingURL=data:application/json;charset=utf-8;base64,"
	idx := strings.LastIndex(text, marker)
	if idx < 0 {
		return nil, false
	}
	rest := text[idx+len(marker):]
	end := strings.IndexAny(rest, " \n*")
	if end >= 0 {
		rest = rest[:end]
	}
	data, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return nil, false
	}
	m, err := Parse(data)
	if err != nil {
		return nil, false
	}
	return m, true
}
