package driver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/nooga/weld/pkg/bundle"
	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/modules"
)

func newStore(files map[string]string) *modules.MemoryStore {
	store := modules.NewMemoryStore("test")
	for id, content := range files {
		store.AddAsset(id, content)
	}
	return store
}

func productionOptions() Options {
	opts := DefaultOptions()
	opts.Mode = bundle.Production
	return opts
}

// code strips the trailing map comment from the script.
func code(t *testing.T, res *Result) string {
	t.Helper()
	script := string(res.Artifact.Script.Content)
	if i := strings.LastIndex(script, "//# sourceMappingURL="); i >= 0 {
		return script[:i]
	}
	return script
}

func TestBuildEndToEnd(t *testing.T) {
	b := New(newStore(map[string]string{
		"/A.js": "import { x } from './B.js';\nconsole.log(x);\n",
		"/B.js": "export const x = 42;\n",
	}), DefaultOptions())

	res := b.Build(context.Background(), "/A.js")
	if !res.OK() {
		t.Fatalf("Expected a clean build, got %v", res.Diagnostics.All())
	}
	if got := code(t, res); got != "const x = 42;\nconsole.log(x);\n" {
		t.Errorf("Unexpected script %q", got)
	}
	if !strings.Contains(string(res.Artifact.Script.Content), "sourceMappingURL=data:application/json") {
		t.Error("Expected an inline map in development mode")
	}
	if res.Artifact.Markup.ID != "index.html" || len(res.Artifact.Markup.Content) == 0 {
		t.Errorf("Expected markup under index.html, got %q", res.Artifact.Markup.ID)
	}
}

func TestIncrementalRebuild(t *testing.T) {
	store := newStore(map[string]string{
		"/A.js": "import { x } from './B.js';\nconsole.log(x);\n",
		"/B.js": "export const x = 42;\n",
	})
	b := New(store, productionOptions())

	first := b.Build(context.Background(), "/A.js")
	if first.Graph.Stats.Parsed != 2 {
		t.Fatalf("Expected 2 modules parsed on the first build, got %d", first.Graph.Stats.Parsed)
	}

	if err := store.UpdateAsset("/B.js", "export const x = 43;\n"); err != nil {
		t.Fatal(err)
	}
	second := b.Build(context.Background(), "/A.js")
	if second.Graph.Stats.Parsed != 1 || second.Graph.Stats.CacheHits != 1 {
		t.Errorf("Expected 1 parse and 1 cache hit, got %d and %d", second.Graph.Stats.Parsed, second.Graph.Stats.CacheHits)
	}
	if got := code(t, second); got != "const x = 43;\nconsole.log(x);\n" {
		t.Errorf("Unexpected script after edit %q", got)
	}
}

func TestRebuildKeepsSymbols(t *testing.T) {
	store := newStore(map[string]string{
		"/main.js": "import { x as a } from './m1.js';\nimport { x as b } from './m2.js';\nconsole.log(a, b);\n",
		"/m1.js":   "export const x = 1;\n",
		"/m2.js":   "export const x = 2;\n",
	})
	b := New(store, productionOptions())

	first := code(t, b.Build(context.Background(), "/main.js"))
	if !strings.Contains(first, "x$1") {
		t.Fatalf("Expected one of the colliding exports to be renamed:\n%s", first)
	}

	if err := store.UpdateAsset("/main.js", "import { x as a } from './m1.js';\nimport { x as b } from './m2.js';\nconsole.log(a, b);\n// edited\n"); err != nil {
		t.Fatal(err)
	}
	second := code(t, b.Build(context.Background(), "/main.js"))
	if expected := first + "// edited\n"; second != expected {
		t.Errorf("Expected symbols to survive the rebuild:\n%q\ngot:\n%q", expected, second)
	}
}

func TestRebuildDropsRemovedModules(t *testing.T) {
	store := newStore(map[string]string{
		"/main.js": "import './old.js';\n",
		"/old.js":  "console.log('old');\n",
		"/new.js":  "console.log('new');\n",
	})
	b := New(store, productionOptions())
	b.Build(context.Background(), "/main.js")

	if err := store.UpdateAsset("/main.js", "import './new.js';\n"); err != nil {
		t.Fatal(err)
	}
	res := b.Build(context.Background(), "/main.js")
	if res.Graph.Has("/old.js") {
		t.Error("Expected /old.js to leave the graph")
	}
	if got := code(t, res); got != "console.log('new');\n" {
		t.Errorf("Unexpected script %q", got)
	}
	if stats := b.CacheStats(); stats.Entries != 2 {
		t.Errorf("Expected the cache to keep 2 entries, got %d", stats.Entries)
	}
	if res.Graph.Stats.Evicted != 1 {
		t.Errorf("Expected the build to report 1 evicted entry, got %d", res.Graph.Stats.Evicted)
	}
}

func TestEntryFailure(t *testing.T) {
	b := New(newStore(nil), DefaultOptions())
	res := b.Build(context.Background(), "/missing.js")

	if res.OK() {
		t.Fatal("Expected the build to fail")
	}
	if len(res.Diagnostics.ByCode(errors.CodeEntry)) != 1 {
		t.Errorf("Expected an entry error, got %v", res.Diagnostics.All())
	}
	if len(res.Artifact.Files()) != 0 {
		t.Errorf("Expected an empty artifact, got %d files", len(res.Artifact.Files()))
	}
}

func TestExternalsAndPackages(t *testing.T) {
	packages := modules.NewMemoryPackageResolver()
	packages.AddPackage(&modules.Package{
		Name:  "leftpad",
		Files: map[string]string{"index.js": "export default function leftpad(s) { return ' ' + s; }\n"},
	})
	opts := productionOptions()
	opts.External = []string{"react"}
	opts.PackageResolver = packages

	b := New(newStore(map[string]string{
		"/main.js": "import React from 'react';\nimport leftpad from 'leftpad';\nconsole.log(React, leftpad('x'));\n",
	}), opts)
	res := b.Build(context.Background(), "/main.js")
	if !res.OK() {
		t.Fatalf("Unexpected diagnostics %v", res.Diagnostics.All())
	}

	expected := "import react from \"react\";\n" +
		"function leftpad(s) { return ' ' + s; }\n" +
		"console.log(react, leftpad('x'));\n"
	if got := code(t, res); got != expected {
		t.Errorf("Expected script:\n%q\ngot:\n%q", expected, got)
	}
}

func TestDefineProcessEnv(t *testing.T) {
	opts := productionOptions()
	opts.Define = map[string]string{"process.env.API_URL": `"https://api.test"`}
	b := New(newStore(map[string]string{
		"/main.js":   "if (process.env.NODE_ENV !== 'production') console.log('dev');\nfetch(process.env.API_URL);\n",
		"/shadow.js": "function f(process) { return process.env.NODE_ENV; }\nf({ env: {} });\n",
	}), opts)

	res := b.Build(context.Background(), "/main.js")
	expected := "if (\"production\" !== 'production') console.log('dev');\nfetch(\"https://api.test\");\n"
	if got := code(t, res); got != expected {
		t.Errorf("Expected script:\n%q\ngot:\n%q", expected, got)
	}

	res = b.Build(context.Background(), "/shadow.js")
	if got := code(t, res); !strings.Contains(got, "return process.env.NODE_ENV;") {
		t.Errorf("Expected a shadowed process to stay untouched, got %q", got)
	}
}

func TestDefineKeepsMapsAccurate(t *testing.T) {
	b := New(newStore(map[string]string{
		"/main.js": "const env = process.env.NODE_ENV;\nconsole.log(env);\n",
	}), productionOptions())

	res := b.Build(context.Background(), "/main.js")
	if got := code(t, res); got != "const env = \"production\";\nconsole.log(env);\n" {
		t.Fatalf("Unexpected script %q", got)
	}
	mapRes, ok := res.Artifact.Resource("bundle.js.map")
	if !ok {
		t.Fatal("Expected bundle.js.map")
	}
	if !strings.Contains(string(mapRes.Content), `"sources":["/main.js"]`) {
		t.Errorf("Expected the map to point at /main.js, got %s", mapRes.Content)
	}
}

func TestVirtualModules(t *testing.T) {
	b := New(newStore(map[string]string{
		"/main.js": "import config, { apiURL } from 'config';\nconsole.log(config, apiURL);\n",
	}), productionOptions())
	b.DeclareModule("config", func(m *ModuleBuilder) {
		m.Const("apiURL", "https://api.test")
		m.Default(map[string]bool{"debug": true})
	})

	res := b.Build(context.Background(), "/main.js")
	if !res.OK() {
		t.Fatalf("Unexpected diagnostics %v", res.Diagnostics.All())
	}
	expected := "const apiURL = \"https://api.test\";\n" +
		"const config_default = {\"debug\":true};\n" +
		"console.log(config_default, apiURL);\n"
	if got := code(t, res); got != expected {
		t.Errorf("Expected script:\n%q\ngot:\n%q", expected, got)
	}
}

func TestVirtualModuleErrors(t *testing.T) {
	b := New(newStore(map[string]string{
		"/main.js": "import 'bad';\nconsole.log(1);\n",
	}), productionOptions())
	b.DeclareModule("bad", func(m *ModuleBuilder) {
		m.Const("not-an-identifier", 1)
	})

	res := b.Build(context.Background(), "/main.js")
	plugin := res.Diagnostics.ByCode(errors.CodePlugin)
	if len(plugin) != 1 || !strings.Contains(plugin[0].Reason, "not-an-identifier") {
		t.Fatalf("Expected one plugin error naming the export, got %v", res.Diagnostics.All())
	}
	if got := code(t, res); got != "console.log(1);\n" {
		t.Errorf("Expected the rest of the bundle to survive, got %q", got)
	}
}

func TestBuildsAreSerialized(t *testing.T) {
	b := New(newStore(map[string]string{
		"/A.js": "import { x } from './B.js';\nconsole.log(x);\n",
		"/B.js": "export const x = 42;\n",
	}), productionOptions())

	var wg sync.WaitGroup
	scripts := make([]string, 8)
	for i := range scripts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scripts[i] = string(b.Build(context.Background(), "/A.js").Artifact.Script.Content)
		}(i)
	}
	wg.Wait()

	for i, s := range scripts {
		if s != scripts[0] {
			t.Errorf("Build %d differs:\n%q\nvs\n%q", i, s, scripts[0])
		}
	}
}
