package bundle

import (
	"context"
	"strings"
	"testing"

	gosourcemap "github.com/go-sourcemap/sourcemap"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/linker"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/symbols"
)

var assetPather = modules.ResourcePatherFunc(func(id string) string {
	return "/assets" + id
})

type emitCase struct {
	entry    string
	files    map[string]string
	external []string
	opts     Options
}

func emit(t *testing.T, c emitCase) (*Artifact, *errors.Diagnostics) {
	t.Helper()
	store := modules.NewMemoryStore("test")
	for id, content := range c.files {
		store.AddAsset(id, content)
	}
	g, diags := modules.BuildGraph(context.Background(), c.entry, modules.BuildInput{
		Store:     store,
		External:  c.external,
		Resources: assetPather,
	})
	if g.Len() == 0 {
		t.Fatalf("Graph build failed: %v", diags.All())
	}

	gen := symbols.NewGenerator()
	linker.ReserveGlobals(gen, g)
	table := symbols.NewTable(gen)
	table.AssignWithModules(g)
	linked := linker.Link(g, table, diags)

	opts := c.opts
	if opts.ScriptID == "" {
		opts = DefaultOptions()
		opts.Mode = c.opts.Mode
		opts.PublicPath = c.opts.PublicPath
	}
	opts.Resources = assetPather
	return NewEmitter(g, table, diags, opts).Emit(linked), diags
}

func TestScriptConcatenation(t *testing.T) {
	a, diags := emit(t, emitCase{
		entry: "/A.js",
		files: map[string]string{
			"/A.js": "import { x } from './B.js';\nconsole.log(x);\n",
			"/B.js": "export const x = 42;\n",
		},
	})
	if diags.Len() != 0 {
		t.Fatalf("Expected no diagnostics, got %v", diags.All())
	}

	script := string(a.Script.Content)
	if !strings.HasPrefix(script, "const x = 42;\nconsole.log(x);\n//# sourceMappingURL=data:") {
		t.Errorf("Unexpected script:\n%s", script)
	}
	if strings.Contains(script, symbols.ExportAllHelper) {
		t.Error("Expected no runtime helper when no namespace object is used")
	}

	m, ok := sourcemap.ExtractInline(script)
	if !ok {
		t.Fatal("Expected an inline source map")
	}
	seg, ok := m.Lookup(1, 0)
	if !ok {
		t.Fatal("Expected a segment at the start of line 2")
	}
	if m.Sources[seg.Source] != "/A.js" || seg.OrigLine != 1 {
		t.Errorf("Expected line 2 to map to /A.js line 2, got %s line %d", m.Sources[seg.Source], seg.OrigLine+1)
	}
}

func TestSideEffectModulesExecuteInOrder(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{
			"/main.js":   "import './first.js';\nimport './second.js';\nconsole.log('main');\n",
			"/first.js":  "console.log('first');\n",
			"/second.js": "console.log('second');\n",
		},
		opts: Options{Mode: Production},
	})

	expected := "console.log('first');\nconsole.log('second');\nconsole.log('main');\n//# sourceMappingURL=bundle.js.map\n"
	if got := string(a.Script.Content); got != expected {
		t.Errorf("Expected script:\n%q\ngot:\n%q", expected, got)
	}
}

func TestNamespaceHelperOnDemand(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{
			"/main.js": "import * as NS from './m.js';\nconsole.log(NS);\n",
			"/m.js":    "export const v = 1;\n",
		},
		opts: Options{Mode: Production},
	})

	script := string(a.Script.Content)
	helper := strings.Index(script, "function "+symbols.ExportAllHelper+"(")
	owner := strings.Index(script, "const v = 1;")
	ns := strings.Index(script, "const m_ns = "+symbols.ExportAllHelper+"({")
	use := strings.Index(script, "console.log(m_ns);")
	if helper < 0 || owner < 0 || ns < 0 || use < 0 {
		t.Fatalf("Missing part of the script:\n%s", script)
	}
	if !(helper < owner && owner < ns && ns < use) {
		t.Errorf("Expected helper, owner, namespace and user in that order:\n%s", script)
	}
	if strings.Count(script, "const m_ns =") != 1 {
		t.Errorf("Expected the namespace object once:\n%s", script)
	}
}

func TestNamespaceBeforeFirstUser(t *testing.T) {
	// a and b import each other. b's namespace must precede a's use of it
	// whichever of the two evaluates first.
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{
			"/main.js": "import './a.js';\n",
			"/a.js":    "import * as B from './b.js';\nexport const fromA = 1;\nconsole.log(B);\n",
			"/b.js":    "import { fromA } from './a.js';\nexport const fromB = fromA;\n",
		},
		opts: Options{Mode: Production},
	})

	script := string(a.Script.Content)
	ns := strings.Index(script, "const b_ns =")
	use := strings.Index(script, "console.log(b_ns);")
	if ns < 0 || use < 0 || ns > use {
		t.Errorf("Expected b_ns before its first use:\n%s", script)
	}
}

func TestExternalImportsHoisted(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{
			"/main.js": "import 'polyfill';\nimport React, { useState as useS } from 'react';\nimport * as R from 'react';\nconsole.log(React, useS, R);\n",
		},
		external: []string{"react", "polyfill"},
		opts:     Options{Mode: Production},
	})

	expected := "import * as react_ns from \"react\";\n" +
		"import react, { useState } from \"react\";\n" +
		"import \"polyfill\";\n" +
		"console.log(react, useState, react_ns);\n"
	if got := string(a.Script.Content); !strings.HasPrefix(got, expected) {
		t.Errorf("Expected script to start with:\n%q\ngot:\n%q", expected, got)
	}
}

func TestStyleBundle(t *testing.T) {
	a, diags := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{
			"/main.js":  "import './app.css';\n",
			"/app.css":  "@import './base.css';\n.logo { background: url('./logo.png'); }\n",
			"/base.css": "body { margin: 0; }\n",
			"/logo.png": "PNG",
		},
		opts: Options{Mode: Production, PublicPath: "/static/"},
	})
	if diags.HasErrors() {
		t.Fatalf("Unexpected errors: %v", diags.All())
	}

	expected := "/* /base.css */\nbody { margin: 0; }\n" +
		"/* /app.css */\n.logo { background: url(\"/assets/logo.png\"); }\n" +
		"/*# sourceMappingURL=bundle.css.map */\n"
	if got := string(a.Style.Content); got != expected {
		t.Errorf("Expected style:\n%q\ngot:\n%q", expected, got)
	}

	logo, ok := a.Resource("/assets/logo.png")
	if !ok || string(logo.Content) != "PNG" {
		t.Errorf("Expected the logo resource, got %+v", logo)
	}
	if _, ok := a.Resource("bundle.css.map"); !ok {
		t.Error("Expected a sibling map for the stylesheet")
	}

	markup := string(a.Markup.Content)
	if !strings.Contains(markup, `<link rel="stylesheet" href="/static/bundle.css">`) {
		t.Errorf("Expected markup to link the stylesheet:\n%s", markup)
	}
	if !strings.Contains(markup, `<script type="module" src="/static/bundle.js"></script>`) {
		t.Errorf("Expected markup to load the script:\n%s", markup)
	}
}

func TestProductionMapIsConsumable(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/A.js",
		files: map[string]string{
			"/A.js": "import { x } from './B.js';\nconsole.log(x);\n",
			"/B.js": "export const x = 42;\n",
		},
		opts: Options{Mode: Production},
	})

	if !strings.HasSuffix(string(a.Script.Content), "//# sourceMappingURL=bundle.js.map\n") {
		t.Errorf("Expected a map URL comment, got:\n%s", a.Script.Content)
	}
	res, ok := a.Resource("bundle.js.map")
	if !ok {
		t.Fatal("Expected bundle.js.map among the resources")
	}
	consumer, err := gosourcemap.Parse("", res.Content)
	if err != nil {
		t.Fatalf("go-sourcemap rejected the bundle map: %v", err)
	}
	file, _, line, _, ok := consumer.Source(2, 0)
	if !ok || !strings.HasSuffix(file, "A.js") || line != 2 {
		t.Errorf("Expected 2:0 to map to A.js:2, got %s:%d (ok=%v)", file, line, ok)
	}
}

func TestEmptyStyleOmitted(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{"/main.js": "console.log(1);\n"},
	})

	if len(a.Style.Content) != 0 {
		t.Errorf("Expected no stylesheet, got %q", a.Style.Content)
	}
	if strings.Contains(string(a.Markup.Content), "stylesheet") {
		t.Error("Expected markup without a stylesheet link")
	}
	if len(a.Files()) != 2 {
		t.Errorf("Expected script and markup only, got %d files", len(a.Files()))
	}
}

func TestMarkupEscapesURLs(t *testing.T) {
	a, _ := emit(t, emitCase{
		entry: "/main.js",
		files: map[string]string{"/main.js": "console.log(1);\n"},
		opts:  Options{PublicPath: `/cdn?a=1&b="x"/`},
	})

	markup := string(a.Markup.Content)
	expected := `<script type="module" src="/cdn?a=1&amp;b=&#34;x&#34;/bundle.js"></script>`
	if !strings.Contains(markup, expected) {
		t.Errorf("Expected %s in:\n%s", expected, markup)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		ok       bool
	}{
		{"development", Development, true},
		{"prod", Production, true},
		{"", Development, true},
		{"staging", Development, false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.input)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseMode(%q): expected %s/%v, got %s/%v", tt.input, tt.expected, tt.ok, got, ok)
		}
	}
}
