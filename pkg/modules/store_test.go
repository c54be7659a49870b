package modules

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestMemoryStoreBasic(t *testing.T) {
	store := NewMemoryStore("TestMemory")

	if store.Name() != "TestMemory" {
		t.Errorf("Expected name 'TestMemory', got '%s'", store.Name())
	}
	if NewMemoryStore("").Name() != "Memory" {
		t.Error("Expected default name 'Memory'")
	}

	store.AddAsset("/src/greet.js", "export const greet = () => 'hi';")
	if store.Len() != 1 {
		t.Errorf("Expected 1 asset, got %d", store.Len())
	}

	asset, err := store.GetAsset("/src/greet.js")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if string(asset.Content) != "export const greet = () => 'hi';" {
		t.Errorf("Expected content to match, got %q", asset.Content)
	}
	if !asset.Modified {
		t.Error("Expected a new asset to be modified")
	}

	store.MarkClean("/src/greet.js")
	asset, _ = store.GetAsset("/src/greet.js")
	if asset.Modified {
		t.Error("Expected asset to be clean after MarkClean")
	}

	if err := store.UpdateAsset("/src/greet.js", "export const greet = 1;"); err != nil {
		t.Fatalf("UpdateAsset failed: %v", err)
	}
	asset, _ = store.GetAsset("/src/greet.js")
	if !asset.Modified || string(asset.Content) != "export const greet = 1;" {
		t.Error("Expected updated asset to be modified with new content")
	}

	if err := store.UpdateAsset("/missing.js", ""); err == nil {
		t.Error("Expected error updating a missing asset")
	}
	if _, err := store.GetAsset("/missing.js"); err == nil {
		t.Error("Expected error for a missing asset")
	}
}

func TestMemoryStoreResolve(t *testing.T) {
	store := NewMemoryStore("TestMemory")
	store.AddAsset("/test.js", "export const test = true;")
	store.AddAsset("/utils/index.js", "export * from './helper';")
	store.AddAsset("/utils/helper.js", "export function help() {}")
	store.AddAsset("/styles/app.css", "body {}")
	store.AddAsset("/data.json", "{}")

	tests := []struct {
		specifier string
		baseDir   string
		expected  string
		found     bool
	}{
		{"./test.js", "/", "/test.js", true},             // Exact match
		{"./test", "/", "/test.js", true},                // Without extension
		{"./utils", "/", "/utils/index.js", true},        // Directory with index
		{"./helper", "/utils", "/utils/helper.js", true}, // Relative to importer
		{"../test", "/utils", "/test.js", true},          // Parent directory
		{"/styles/app.css", "/utils", "/styles/app.css", true},
		{"./data", "/", "/data.json", true},
		{"./nonexistent", "/", "", false},
		{"lodash", "/", "", false}, // Bare specifiers are not store paths
	}

	for _, test := range tests {
		id, found := store.Resolve(test.specifier, test.baseDir)
		if found != test.found || id != test.expected {
			t.Errorf("Resolve(%q, %q) = (%q, %v), expected (%q, %v)",
				test.specifier, test.baseDir, id, found, test.expected, test.found)
		}
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore("")
	store.AddAsset("/b.js", "")
	store.AddAsset("/a.js", "")
	store.AddAsset("/c.js", "")
	store.RemoveAsset("/c.js")

	list := store.List()
	if len(list) != 2 || list[0] != "/a.js" || list[1] != "/b.js" {
		t.Errorf("Expected [/a.js /b.js], got %v", list)
	}

	store.Clear()
	if store.Len() != 0 {
		t.Errorf("Expected empty store after Clear, got %d", store.Len())
	}
}

func TestFileSystemStore(t *testing.T) {
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fsys := fstest.MapFS{
		"src/main.js":        {Data: []byte("import './lib';"), ModTime: mtime},
		"src/lib/index.js":   {Data: []byte("export const x = 1;"), ModTime: mtime},
		"src/styles/app.css": {Data: []byte("body {}"), ModTime: mtime},
	}
	store := NewFileSystemStore(fsys)

	tests := []struct {
		specifier string
		baseDir   string
		expected  string
		found     bool
	}{
		{"/src/main.js", "/", "/src/main.js", true},
		{"./lib", "/src", "/src/lib/index.js", true},
		{"./main", "/src", "/src/main.js", true},
		{"./styles/app.css", "/src", "/src/styles/app.css", true},
		{"./lib/index", "/src", "/src/lib/index.js", true},
		{"./missing", "/src", "", false},
		{"./src", "/", "", false}, // A directory without index file
	}
	for _, test := range tests {
		id, found := store.Resolve(test.specifier, test.baseDir)
		if found != test.found || id != test.expected {
			t.Errorf("Resolve(%q, %q) = (%q, %v), expected (%q, %v)",
				test.specifier, test.baseDir, id, found, test.expected, test.found)
		}
	}

	asset, err := store.GetAsset("/src/main.js")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if !asset.Modified {
		t.Error("Expected an unseen file to be modified")
	}
	store.MarkClean("/src/main.js")
	if asset, _ = store.GetAsset("/src/main.js"); asset.Modified {
		t.Error("Expected file to be clean after MarkClean")
	}

	fsys["src/main.js"] = &fstest.MapFile{Data: []byte("import './lib/index.js';"), ModTime: mtime.Add(time.Second)}
	if asset, _ = store.GetAsset("/src/main.js"); !asset.Modified {
		t.Error("Expected a touched file to be modified")
	}

	if _, err := store.GetAsset("src/main.js"); err == nil {
		t.Error("Expected error for an id without leading slash")
	}
}
