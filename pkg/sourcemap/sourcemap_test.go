package sourcemap

import (
	"errors"
	"strings"
	"testing"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

func TestVLQRoundTrip(t *testing.T) {
	values := []int{0, 1, -1, 15, -15, 16, -16, 31, 32, 1000, -123456, 1 << 20}
	for _, v := range values {
		var b strings.Builder
		encodeVLQ(&b, v)
		got, next, err := decodeVLQ(b.String(), 0)
		if err != nil {
			t.Fatalf("decodeVLQ(%q) failed: %v", b.String(), err)
		}
		if got != v {
			t.Errorf("Expected %d, got %d (encoded %q)", v, got, b.String())
		}
		if next != b.Len() {
			t.Errorf("Expected to consume %d chars, consumed %d", b.Len(), next)
		}
	}
}

func TestKnownEncoding(t *testing.T) {
	b := NewBuilder("out.js")
	b.AddMapping(0, 0, "a.js", 0, 0, "")
	b.AddMapping(0, 4, "a.js", 0, 4, "")
	b.AddMapping(1, 0, "a.js", 1, 0, "")
	m := b.Map()

	if m.Mappings != "AAAA,IAAI;AACJ" {
		t.Errorf("Expected mappings 'AAAA,IAAI;AACJ', got '%s'", m.Mappings)
	}
}

func TestBuilderDecodeRoundTrip(t *testing.T) {
	b := NewBuilder("bundle.js")
	b.SetSourceContent("src/b.js", "export const x = 42;")
	b.AddMapping(2, 6, "src/b.js", 0, 13, "x")
	b.AddMapping(0, 0, "src/a.js", 0, 0, "")
	b.AddMapping(2, 0, "src/b.js", 0, 7, "")
	b.AddMapping(2, 0, "src/a.js", 9, 9, "") // duplicate generated position, dropped

	m := b.Map()
	parsed, err := Parse(m.JSON())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	segs, err := parsed.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segs))
	}

	expected := []struct {
		genLine, genCol   int
		source            string
		origLine, origCol int
		name              string
	}{
		{0, 0, "src/a.js", 0, 0, ""},
		{2, 0, "src/b.js", 0, 7, ""},
		{2, 6, "src/b.js", 0, 13, "x"},
	}
	for i, exp := range expected {
		seg := segs[i]
		if seg.GenLine != exp.genLine || seg.GenColumn != exp.genCol {
			t.Errorf("Segment %d: expected gen %d:%d, got %d:%d", i, exp.genLine, exp.genCol, seg.GenLine, seg.GenColumn)
		}
		if parsed.Sources[seg.Source] != exp.source || seg.OrigLine != exp.origLine || seg.OrigColumn != exp.origCol {
			t.Errorf("Segment %d: expected %s %d:%d, got %s %d:%d", i, exp.source, exp.origLine, exp.origCol,
				parsed.Sources[seg.Source], seg.OrigLine, seg.OrigColumn)
		}
		name := ""
		if seg.Name >= 0 {
			name = parsed.Names[seg.Name]
		}
		if name != exp.name {
			t.Errorf("Segment %d: expected name %q, got %q", i, exp.name, name)
		}
	}

	if content, ok := parsed.SourceContent("src/b.js"); !ok || content != "export const x = 42;" {
		t.Errorf("Expected embedded content for src/b.js, got %q (ok=%v)", content, ok)
	}
	if _, ok := parsed.SourceContent("src/a.js"); !ok {
		t.Error("Expected a sourcesContent slot for src/a.js")
	}
}

func TestLookup(t *testing.T) {
	b := NewBuilder("")
	b.AddMapping(0, 0, "a.js", 3, 0, "")
	b.AddMapping(0, 10, "a.js", 3, 12, "")
	b.AddMapping(2, 4, "a.js", 5, 2, "")
	m := b.Map()

	tests := []struct {
		line, col int
		ok        bool
		origLine  int
		origCol   int
	}{
		{0, 0, true, 3, 0},
		{0, 9, true, 3, 0},
		{0, 10, true, 3, 12},
		{0, 50, true, 3, 12},
		{1, 0, false, 0, 0},
		{2, 3, false, 0, 0},
		{2, 4, true, 5, 2},
	}
	for _, test := range tests {
		seg, ok := m.Lookup(test.line, test.col)
		if ok != test.ok {
			t.Errorf("Lookup(%d, %d): expected ok=%v, got %v", test.line, test.col, test.ok, ok)
			continue
		}
		if ok && (seg.OrigLine != test.origLine || seg.OrigColumn != test.origCol) {
			t.Errorf("Lookup(%d, %d): expected %d:%d, got %d:%d", test.line, test.col,
				test.origLine, test.origCol, seg.OrigLine, seg.OrigColumn)
		}
	}
}

func TestComposeMapsRoundTrip(t *testing.T) {
	// Stage 1 renamed "x" to "x$1" on the second line of src/b.js.
	// original:  "const y = 1;\nconst x = 2;"
	// stage 1:   "const y = 1;\nconst x$1 = 2;"
	stage1 := NewBuilder("b.linked.js")
	stage1.SetSourceContent("src/b.js", "const y = 1;\nconst x = 2;")
	stage1.AddMapping(0, 0, "src/b.js", 0, 0, "")
	stage1.AddMapping(0, 6, "src/b.js", 0, 6, "y")
	stage1.AddMapping(1, 0, "src/b.js", 1, 0, "")
	stage1.AddMapping(1, 6, "src/b.js", 1, 6, "x")
	stage1.AddMapping(1, 9, "src/b.js", 1, 7, "")

	// Stage 2 appended stage-1 output after three lines of other code,
	// indented by two spaces.
	stage2 := NewBuilder("bundle.js")
	stage2.AddMapping(3, 2, "b.linked.js", 0, 0, "")
	stage2.AddMapping(3, 8, "b.linked.js", 0, 6, "")
	stage2.AddMapping(4, 2, "b.linked.js", 1, 0, "")
	stage2.AddMapping(4, 8, "b.linked.js", 1, 6, "")
	stage2.AddMapping(4, 11, "b.linked.js", 1, 9, "")
	stage2.AddMapping(5, 0, "elsewhere.js", 0, 0, "")

	composed, err := ComposeMaps(stage1.Map(), stage2.Map())
	if err != nil {
		t.Fatalf("ComposeMaps failed: %v", err)
	}
	if len(composed.Sources) != 1 || composed.Sources[0] != "src/b.js" {
		t.Fatalf("Expected only src/b.js as source, got %v", composed.Sources)
	}

	seg, ok := composed.Lookup(4, 8)
	if !ok {
		t.Fatal("Expected a segment at 4:8")
	}
	if seg.OrigLine != 1 || seg.OrigColumn != 6 || composed.Names[seg.Name] != "x" {
		t.Errorf("Expected src/b.js 1:6 named x, got %d:%d", seg.OrigLine, seg.OrigColumn)
	}

	// The segment pointing into an unknown stage-1 file is dropped.
	if _, ok := composed.Lookup(5, 0); ok {
		t.Error("Expected segment without stage-1 counterpart to be dropped")
	}

	if content, ok := composed.SourceContent("src/b.js"); !ok || !strings.Contains(content, "const x = 2;") {
		t.Error("Expected source content to survive composition")
	}

	// Cross-check with an independent consumer (1-based lines).
	consumer, err := gosourcemap.Parse("", composed.JSON())
	if err != nil {
		t.Fatalf("go-sourcemap rejected composed map: %v", err)
	}
	file, _, _, _, ok := consumer.Source(5, 8)
	if !ok || file != "src/b.js" {
		t.Errorf("Expected consumer to resolve 5:8 into src/b.js, got %q (ok=%v)", file, ok)
	}
}

func TestMergeIntoBundle(t *testing.T) {
	moduleText := "const a = 1;\nfunction f() {\n  return a;\n}\n"
	mod := NewBuilder("")
	mod.SetSourceContent("src/m.js", moduleText)
	mod.AddMapping(0, 6, "src/m.js", 0, 6, "a")
	mod.AddMapping(2, 9, "src/m.js", 2, 9, "a")

	bundle := "// header\n(() => {\n  const a = 1;\n  function f() {\n    return a;\n  }\n"
	b := NewBuilder("bundle.js")
	if err := MergeIntoBundle(b, mod.Map(), moduleText, bundle); err != nil {
		t.Fatalf("MergeIntoBundle failed: %v", err)
	}
	m := b.Map()

	seg, ok := m.Lookup(2, 8)
	if !ok || seg.OrigLine != 0 || seg.OrigColumn != 6 {
		t.Errorf("Expected bundle 2:8 to map to 0:6, got %+v (ok=%v)", seg, ok)
	}
	seg, ok = m.Lookup(4, 11)
	if !ok || seg.OrigLine != 2 || seg.OrigColumn != 9 {
		t.Errorf("Expected bundle 4:11 to map to 2:9, got %+v (ok=%v)", seg, ok)
	}
	if _, ok := m.SourceContent("src/m.js"); !ok {
		t.Error("Expected module source content to be carried into the bundle map")
	}
}

func TestMergeIntoBundleNotLocated(t *testing.T) {
	mod := NewBuilder("")
	mod.AddMapping(0, 0, "src/m.js", 0, 0, "")

	b := NewBuilder("bundle.js")
	err := MergeIntoBundle(b, mod.Map(), "let missing = true;", "const other = 1;\n")
	if !errors.Is(err, ErrNotLocated) {
		t.Errorf("Expected ErrNotLocated, got %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("Expected no segments to be added, got %d", b.Len())
	}
}

func TestBundleLinesIncremental(t *testing.T) {
	lines := NewBundleLines()
	lines.Append("// hea")
	lines.Append("der\n")
	if lines.Len() != 2 {
		t.Fatalf("Expected 2 lines after a split write, got %d", lines.Len())
	}

	moduleText := "let x = 1;\nuse(x);\n"
	mod := NewBuilder("")
	mod.AddMapping(1, 4, "src/m.js", 1, 4, "x")

	b := NewBuilder("bundle.js")
	for i := 0; i < 2; i++ {
		lines.Append(moduleText)
		if err := lines.Merge(b, mod.Map(), moduleText); err != nil {
			t.Fatalf("Merge %d failed: %v", i, err)
		}
	}
	m := b.Map()

	// Identical copies are located at the end of the bundle each time.
	for _, line := range []int{2, 4} {
		seg, ok := m.Lookup(line, 4)
		if !ok || seg.OrigLine != 1 || seg.OrigColumn != 4 {
			t.Errorf("Expected bundle %d:4 to map to 1:4, got %+v (ok=%v)", line, seg, ok)
		}
	}
	if b.Len() != 2 {
		t.Errorf("Expected 2 segments, got %d", b.Len())
	}
}

func TestInlineComment(t *testing.T) {
	b := NewBuilder("bundle.js")
	b.AddMapping(0, 0, "a.js", 0, 0, "")
	m := b.Map()

	text := "console.log(1);\n" + InlineComment(m, StyleJS)
	extracted, ok := ExtractInline(text)
	if !ok {
		t.Fatal("Expected to extract inline map")
	}
	if extracted.Mappings != m.Mappings {
		t.Errorf("Expected mappings %q, got %q", m.Mappings, extracted.Mappings)
	}

	css := InlineComment(m, StyleCSS)
	if !strings.HasPrefix(css, "/*# sourceMappingURL=data:") || !strings.HasSuffix(css, " */") {
		t.Errorf("Unexpected CSS comment %q", css)
	}
	if _, ok := ExtractInline("a {}\n" + css); !ok {
		t.Error("Expected to extract inline map from CSS comment")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := Parse([]byte(`{"version":2,"sources":[],"names":[],"mappings":""}`)); err == nil {
		t.Error("Expected error for version 2")
	}
	if _, err := Parse([]byte(`{"version":3,"sources":["a.js"],"names":[],"mappings":"AA!A"}`)); err == nil {
		t.Error("Expected error for invalid base64 in mappings")
	}
}
