package modules

import (
	"github.com/nooga/weld/pkg/source"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/syntax"
)

// ModuleState represents how far a module got during a graph build
type ModuleState int

const (
	ModulePending ModuleState = iota // Discovered, not yet scanned
	ModuleLoaded                     // Scanned and parsed successfully
	ModuleError                      // Load or parse failed; contributes nothing
)

func (s ModuleState) String() string {
	switch s {
	case ModulePending:
		return "pending"
	case ModuleLoaded:
		return "loaded"
	case ModuleError:
		return "error"
	default:
		return "invalid"
	}
}

// Module is one node of the dependency graph.
type Module struct {
	ID    string      // Canonical id
	Kind  source.Kind // Script, style or resource
	State ModuleState

	Source *source.SourceFile // Text after load and transform hooks
	File   *syntax.File       // Parse result; nil when State is ModuleError
	Map    *sourcemap.Map     // Maps Source back to the stored asset, if a transform changed it
	Raw    []byte             // Stored bytes, kept for resources
	Hash   uint64             // xxh3 of the stored bytes

	// Deps maps every resolved raw specifier to a canonical id.
	Deps map[string]string
	// Externals holds specifiers left to the host environment.
	Externals map[string]bool
	// Importers lists the modules importing this one, in discovery order.
	Importers []string

	IsEntry bool
	Err     error
}

func newModule(id string) *Module {
	return &Module{
		ID:        id,
		Kind:      source.KindForPath(id),
		Deps:      make(map[string]string),
		Externals: make(map[string]bool),
	}
}

// Dependency returns the canonical id a specifier resolved to.
func (m *Module) Dependency(specifier string) (string, bool) {
	id, ok := m.Deps[specifier]
	return id, ok
}

// IsExternal reports whether specifier was left to the host environment.
func (m *Module) IsExternal(specifier string) bool {
	return m.Externals[specifier]
}

func (m *Module) addImporter(id string) {
	for _, existing := range m.Importers {
		if existing == id {
			return
		}
	}
	m.Importers = append(m.Importers, id)
}

// Stats describes one graph build.
type Stats struct {
	Modules    int // Modules in the graph
	Parsed     int // Modules parsed during this build
	CacheHits  int // Modules reused from the cache
	Failed     int // Modules that failed to load or parse
	Unresolved int // Specifiers nothing could resolve
	Evicted    int // Cache entries dropped because their module left the graph
}
