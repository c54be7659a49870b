package modules

import (
	"path"
	"strings"
)

// DefaultExtensions are tried, in order, when a specifier has no exact match.
var DefaultExtensions = []string{".js", ".mjs", ".jsx", ".json", ".css"}

// DefaultIndexFiles are tried, in order, when a specifier names a directory.
var DefaultIndexFiles = []string{"index.js", "index.mjs", "index.jsx", "index.json"}

// IsRelative reports whether specifier is relative to its importer.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

// IsBare reports whether specifier names a package rather than a path.
func IsBare(specifier string) bool {
	return !IsRelative(specifier) && !strings.HasPrefix(specifier, "/") && !strings.Contains(specifier, ":")
}

// targetPath computes the candidate id for specifier written in baseDir.
// Ids use forward slashes and are rooted at "/" or at a package namespace.
func targetPath(specifier, baseDir string) (string, bool) {
	switch {
	case IsRelative(specifier):
		if baseDir == "" {
			baseDir = "/"
		}
		return path.Join(baseDir, specifier), true
	case strings.HasPrefix(specifier, "/"):
		return path.Clean(specifier), true
	case strings.HasPrefix(specifier, "pkg:"):
		return path.Clean(specifier), true
	}
	return "", false
}

// probe tries the exact path, then extensions, then index files.
func probe(target string, extensions, indexFiles []string, isFile func(string) bool) (string, bool) {
	if isFile(target) {
		return target, true
	}
	for _, ext := range extensions {
		if candidate := target + ext; isFile(candidate) {
			return candidate, true
		}
	}
	for _, index := range indexFiles {
		if candidate := path.Join(target, index); isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Dir returns the directory specifiers in module id are resolved against.
func Dir(id string) string {
	return path.Dir(id)
}
