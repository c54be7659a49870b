package syntax

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/source"
)

func mustParse(t *testing.T, id, content string) *File {
	t.Helper()
	f, err := Parse(context.Background(), source.FromFile(id, content))
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", id, err)
	}
	return f
}

func TestImportRecords(t *testing.T) {
	f := mustParse(t, "/a.js", `
import def, { x, y as z } from "./b.js";
import * as NS from './c.js';
import "./side.js";
console.log(def, x, z, NS);
`)
	expected := []struct {
		kind     ImportKind
		local    string
		imported string
		source   string
	}{
		{ImportDefault, "def", "default", "./b.js"},
		{ImportSpecifier, "x", "x", "./b.js"},
		{ImportSpecifier, "z", "y", "./b.js"},
		{ImportNamespace, "NS", "", "./c.js"},
		{ImportSideEffect, "", "", "./side.js"},
	}
	if len(f.Imports) != len(expected) {
		t.Fatalf("Expected %d imports, got %d", len(expected), len(f.Imports))
	}
	for i, exp := range expected {
		rec := f.Imports[i]
		if rec.Kind != exp.kind {
			t.Errorf("Import %d: expected kind %s, got %s", i, exp.kind, rec.Kind)
		}
		local := ""
		if rec.Local != nil {
			local = rec.Local.Name
			if rec.Local.Import != rec {
				t.Errorf("Import %d: binding does not point back at its record", i)
			}
			if len(rec.Local.Refs) != 1 {
				t.Errorf("Import %d: expected 1 reference to %s, got %d", i, local, len(rec.Local.Refs))
			}
		}
		if local != exp.local || rec.Imported != exp.imported || rec.Source != exp.source {
			t.Errorf("Import %d: expected (%q, %q, %q), got (%q, %q, %q)", i,
				exp.local, exp.imported, exp.source, local, rec.Imported, rec.Source)
		}
	}
}

func TestExportRecords(t *testing.T) {
	f := mustParse(t, "/m.js", `
export const a = 1, { b, c: [d] } = obj;
export function f() {}
export class K {}
function fn() {}
export { fn as g, fn as h };
export * from "./all.js";
export * as ns from "./ns.js";
export { p, q as r } from "./agg.js";
export default 40 + 2;
`)
	type exp struct {
		kind     ExportKind
		name     string
		local    string
		imported string
		source   string
	}
	expected := []exp{
		{ExportDeclared, "a", "a", "", ""},
		{ExportDeclared, "b", "b", "", ""},
		{ExportDeclared, "d", "d", "", ""},
		{ExportDeclared, "f", "f", "", ""},
		{ExportDeclared, "K", "K", "", ""},
		{ExportDeclared, "g", "fn", "", ""},
		{ExportDeclared, "h", "fn", "", ""},
		{ExportAggregatedAll, "", "", "", "./all.js"},
		{ExportAggregatedNamespace, "ns", "", "", "./ns.js"},
		{ExportAggregatedName, "p", "", "p", "./agg.js"},
		{ExportAggregatedName, "r", "", "q", "./agg.js"},
		{ExportDeclaredDefaultExpression, "default", "", "", ""},
	}
	if len(f.Exports) != len(expected) {
		t.Fatalf("Expected %d exports, got %d", len(expected), len(f.Exports))
	}
	for i, e := range expected {
		rec := f.Exports[i]
		local := ""
		if rec.Local != nil {
			local = rec.Local.Name
		}
		got := exp{rec.Kind, rec.Name, local, rec.Imported, rec.Source}
		if got != e {
			t.Errorf("Export %d: expected %+v, got %+v", i, e, got)
		}
	}

	// Both aliases point at the very same declaration.
	if f.Exports[5].Local != f.Exports[6].Local {
		t.Error("Expected aliases g and h to share one binding")
	}
	if len(f.ExportsOf(f.Module.Own("fn"))) != 2 {
		t.Error("Expected fn to be exported twice")
	}
}

func TestDefaultExportForms(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		kind      ExportKind
		local     string
		anonymous bool
	}{
		{"named function", "export default function main() {}", ExportDeclaredDefault, "main", false},
		{"named class", "export default class Widget {}", ExportDeclaredDefault, "Widget", false},
		{"anonymous function", "export default function () {}", ExportDeclaredDefaultExpression, "", true},
		{"anonymous class", "export default class {}", ExportDeclaredDefaultExpression, "", true},
		{"expression", "export default { a: 1 };", ExportDeclaredDefaultExpression, "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := mustParse(t, "/d.js", test.input)
			if len(f.Exports) != 1 {
				t.Fatalf("Expected 1 export, got %d", len(f.Exports))
			}
			rec := f.Exports[0]
			if rec.Kind != test.kind || rec.Name != "default" || rec.Anonymous != test.anonymous {
				t.Errorf("Expected %s default (anonymous=%v), got %s %q (anonymous=%v)",
					test.kind, test.anonymous, rec.Kind, rec.Name, rec.Anonymous)
			}
			local := ""
			if rec.Local != nil {
				local = rec.Local.Name
			}
			if local != test.local {
				t.Errorf("Expected local %q, got %q", test.local, local)
			}
		})
	}
}

func TestScopeResolution(t *testing.T) {
	f := mustParse(t, "/s.js", `
const x = 1;
let y = x;
function outer(p) {
  const x = p;
  if (p) {
    var hoisted = x;
    let x2 = y;
  }
  return hoisted + x;
}
try { outer(x); } catch (x) { console.log(x); }
const obj = { x, y };
`)
	top := f.Module.Own("x")
	if top == nil || top.Kind != BindingConst {
		t.Fatalf("Expected top-level const x, got %+v", top)
	}
	// let y = x; outer(x); { x, ... }
	if len(top.Refs) != 3 {
		t.Errorf("Expected 3 references to top-level x, got %d", len(top.Refs))
	}
	for _, r := range top.Refs {
		if r.Scope.Lookup("x") != top {
			t.Errorf("Reference at %d resolves to a different x", r.Node.Start)
		}
	}

	outer := f.Module.Own("outer")
	if outer == nil || outer.Kind != BindingFunction {
		t.Fatal("Expected function outer at top level")
	}
	if f.Module.Own("hoisted") != nil {
		t.Error("Expected var hoisted to stay inside outer")
	}
	if !f.Module.BindsInSubtree("hoisted") || !f.Module.BindsInSubtree("x2") {
		t.Error("Expected nested declarations to be visible through BindsInSubtree")
	}

	if refs := f.Globals["console"]; len(refs) != 1 {
		t.Errorf("Expected console to be one global reference, got %d", len(refs))
	}
	if _, ok := f.Globals["x"]; ok {
		t.Error("Expected x not to be global")
	}

	names := []string{}
	for _, b := range f.TopLevel() {
		names = append(names, b.Name)
	}
	expectedNames := []string{"x", "y", "outer", "obj"}
	if len(names) != len(expectedNames) {
		t.Fatalf("Expected top-level %v, got %v", expectedNames, names)
	}
	for i := range names {
		if names[i] != expectedNames[i] {
			t.Errorf("Expected top-level %v, got %v", expectedNames, names)
			break
		}
	}
}

func TestShorthandReference(t *testing.T) {
	f := mustParse(t, "/s.js", "const v = 1;\nexport const o = { v };\nconst { w } = o;\n")
	v := f.Module.Own("v")
	if len(v.Refs) != 1 || v.Refs[0].Node.Type != "shorthand_property_identifier" {
		t.Errorf("Expected one shorthand reference to v, got %+v", v.Refs)
	}
	w := f.Module.Own("w")
	if w == nil || w.Decl.Type != "shorthand_property_identifier_pattern" {
		t.Error("Expected w to be declared by a shorthand pattern")
	}
}

func TestDynamicImports(t *testing.T) {
	f := mustParse(t, "/dyn.js", "const a = import('./lazy.js');\nconst b = import(name);\n")
	if len(f.Imports) != 2 {
		t.Fatalf("Expected 2 imports, got %d", len(f.Imports))
	}
	if f.Imports[0].Kind != ImportDynamic || f.Imports[0].Source != "./lazy.js" || f.Imports[0].NonLiteral {
		t.Errorf("Unexpected literal dynamic import %+v", f.Imports[0])
	}
	if !f.Imports[1].NonLiteral || f.Imports[1].Source != "" {
		t.Errorf("Expected non-literal dynamic import, got %+v", f.Imports[1])
	}
}

func TestDependenciesOrder(t *testing.T) {
	f := mustParse(t, "/o.js", `
import "./first.js";
export * from "./second.js";
const later = () => import("./third.js");
import { x } from "./first.js";
import y from "./fourth.js";
`)
	deps := f.Dependencies()
	expected := []string{"./first.js", "./second.js", "./third.js", "./fourth.js"}
	if len(deps) != len(expected) {
		t.Fatalf("Expected %d dependencies, got %d", len(expected), len(deps))
	}
	for i, d := range deps {
		if d.Specifier != expected[i] {
			t.Errorf("Dependency %d: expected %s, got %s", i, expected[i], d.Specifier)
		}
	}
}

func TestStyleDeps(t *testing.T) {
	f := mustParse(t, "/s.css", `@import "./base.css";
@import url(theme.css);
.logo { background: url("./img/logo.png"); }
.remote { background: url("https://cdn.example.com/x.png"); }
.inline { background: url("data:image/png;base64,AAAA"); }
`)
	if !f.IsStyle() {
		t.Fatal("Expected a style file")
	}
	expected := []struct {
		kind StyleDepKind
		spec string
	}{
		{StyleImport, "./base.css"},
		{StyleImport, "theme.css"},
		{StyleURL, "./img/logo.png"},
	}
	if len(f.StyleDeps) != len(expected) {
		t.Fatalf("Expected %d style deps, got %d", len(expected), len(f.StyleDeps))
	}
	for i, exp := range expected {
		if f.StyleDeps[i].Kind != exp.kind || f.StyleDeps[i].Specifier != exp.spec {
			t.Errorf("Dep %d: expected %s %s, got %s %s", i, exp.kind, exp.spec, f.StyleDeps[i].Kind, f.StyleDeps[i].Specifier)
		}
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse(context.Background(), source.FromFile("/bad.js", "const ok = 1;\nconst = ;\n"))
	if err == nil {
		t.Fatal("Expected a parse error")
	}
	var parseErr *errors.ParseError
	if !stderrors.As(err, &parseErr) {
		t.Fatalf("Expected *errors.ParseError, got %T", err)
	}
	if parseErr.Module != "/bad.js" {
		t.Errorf("Expected module /bad.js, got %s", parseErr.Module)
	}
	if parseErr.Line != 2 {
		t.Errorf("Expected error on line 2, got %d", parseErr.Line)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{`"./a.js"`, "./a.js"},
		{`'./b.js'`, "./b.js"},
		{`"a\"b"`, `a"b`},
		{`'it\'s'`, "it's"},
		{`"\u0041"`, "A"},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := Unquote(test.input); got != test.expected {
			t.Errorf("Unquote(%s): expected %q, got %q", test.input, test.expected, got)
		}
	}
}

func TestTokenStarts(t *testing.T) {
	f := mustParse(t, "/t.js", "let a = b;")
	starts := f.TokenStarts()
	expected := []int{0, 4, 6, 8, 9}
	if len(starts) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, starts)
	}
	for i := range starts {
		if starts[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, starts)
			break
		}
	}
}
