package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/source"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/syntax"
)

// BuildInput carries the collaborators of a graph build.
type BuildInput struct {
	Store     AssetStore
	Plugins   []Plugin
	Packages  PackageResolver
	External  []string       // Specifiers (and their subpaths) left to the host
	Cache     *Cache         // Optional; a private cache is used when nil
	Overlay   *MemoryStore   // Holds package files; created on demand when nil
	Resources ResourcePather // Public URLs of resource modules; ids are used when nil
}

// IsExternal reports whether specifier matches one of the configured
// externals, either exactly or as a subpath like "react/jsx-runtime".
func (in *BuildInput) IsExternal(specifier string) bool {
	for _, ext := range in.External {
		if specifier == ext || strings.HasPrefix(specifier, ext+"/") {
			return true
		}
	}
	return false
}

type builder struct {
	ctx      context.Context
	in       BuildInput
	diags    *errors.Diagnostics
	graph    *Graph
	pending  map[string]*Module // Discovered but not yet inserted
	packages map[string]string  // Bare specifier -> entry id, per build
	stats    Stats
}

// BuildGraph builds the dependency graph reachable from entry.
//
// Modules are taken from an explicit LIFO worklist. A popped module is
// inserted into the graph before its dependencies are scanned, which is
// what terminates cycles. Failing to resolve, load or parse the entry
// yields an empty graph and an EntryError; every other failure is reported
// as a diagnostic and the build goes on.
func BuildGraph(ctx context.Context, entry string, in BuildInput) (*Graph, *errors.Diagnostics) {
	if in.Cache == nil {
		in.Cache = NewCache()
	}
	if in.Overlay == nil {
		in.Overlay = NewMemoryStore("packages")
	}
	b := &builder{
		ctx:      ctx,
		in:       in,
		diags:    errors.NewDiagnostics(),
		graph:    NewGraph(),
		pending:  make(map[string]*Module),
		packages: make(map[string]string),
	}

	entryID, found, _, err := b.resolve(entry, nil)
	if err == nil && !found {
		err = fmt.Errorf("cannot resolve %q", entry)
	}
	if err != nil {
		return b.fatal(entry, err)
	}

	root := b.discover(entryID)
	root.IsEntry = true
	b.graph.Entry = entryID

	stack := []*Module{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			b.diags.Push(errors.LevelWarning, errors.Diagnostic{
				Code:   errors.CodeCancelled,
				Reason: "graph build cancelled: " + err.Error(),
				Err:    err,
			})
			break
		}

		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, inserted := b.graph.insert(m); !inserted {
			continue
		}
		delete(b.pending, m.ID)

		targets, err := b.scan(m)
		if m.IsEntry && err != nil {
			return b.fatal(entry, err)
		}
		for _, t := range targets {
			if !b.graph.Has(t.ID) {
				stack = append(stack, t)
			}
		}
	}

	if ctx.Err() == nil {
		if dropped := in.Cache.Retain(b.graph.Has); len(dropped) > 0 {
			b.stats.Evicted = len(dropped)
			Logger().Debug("pruned unreachable modules", zap.Strings("modules", dropped))
		}
	}

	b.stats.Modules = b.graph.Len()
	b.graph.Stats = b.stats
	Logger().Debug("graph built",
		zap.String("entry", entryID),
		zap.Int("modules", b.stats.Modules),
		zap.Int("parsed", b.stats.Parsed),
		zap.Int("cacheHits", b.stats.CacheHits))
	return b.graph, b.diags
}

func (b *builder) fatal(entry string, cause error) (*Graph, *errors.Diagnostics) {
	b.diags.PushError(errors.LevelError, &errors.EntryError{Entry: entry, Cause: cause})
	return NewGraph(), b.diags
}

// discover returns the module for id, creating a pending one on first sight.
func (b *builder) discover(id string) *Module {
	if m := b.graph.Get(id); m != nil {
		return m
	}
	if m, ok := b.pending[id]; ok {
		return m
	}
	m := newModule(id)
	b.pending[id] = m
	return m
}

// scan loads and parses m, then resolves its dependencies. It returns the
// dependency modules in source order. The error is only meaningful for the
// entry; for other modules it has already been reported.
func (b *builder) scan(m *Module) ([]*Module, error) {
	if err := b.load(m); err != nil {
		m.State = ModuleError
		m.Err = err
		b.stats.Failed++
		if !m.IsEntry {
			b.diags.PushError(errors.LevelError, err)
		}
		return nil, err
	}
	m.State = ModuleLoaded

	var targets []*Module
	for _, dep := range m.File.Dependencies() {
		id, found, external, err := b.resolve(dep.Specifier, m)
		if err != nil {
			b.diags.PushError(errors.LevelError, err)
			continue
		}
		if external {
			m.Externals[dep.Specifier] = true
			continue
		}
		if !found {
			b.stats.Unresolved++
			b.diags.PushError(errors.LevelError, &errors.ResolveFailure{
				Position:  errors.PositionAt(m.Source, dep.Node.Start, dep.Node.End),
				Specifier: dep.Specifier,
				Importer:  m.ID,
			})
			continue
		}
		m.Deps[dep.Specifier] = id
		target := b.discover(id)
		target.addImporter(m.ID)
		targets = append(targets, target)
		Logger().Debug("resolved", zap.String("importer", m.ID), zap.String("specifier", dep.Specifier), zap.String("module", id))
	}
	return targets, nil
}

// load fills in m's text and parse result, from the cache when the stored
// content is unchanged.
func (b *builder) load(m *Module) error {
	content, modified, err := b.read(m.ID)
	if err != nil {
		return err
	}
	m.Hash = HashContent(content)

	if entry := b.in.Cache.Lookup(m.ID, m.Hash, modified); entry != nil {
		b.stats.CacheHits++
		Logger().Debug("cache hit", zap.String("module", m.ID))
		m.Source, m.File, m.Map, m.Raw = entry.Source, entry.File, entry.Map, entry.Raw
		return entry.Err
	}

	entry := &CacheEntry{ID: m.ID, Hash: m.Hash}
	entry.Err = b.compile(m, content, entry)
	b.in.Cache.Set(entry)
	if cleaner, ok := b.storeFor(m.ID).(Cleaner); ok {
		cleaner.MarkClean(m.ID)
	}
	m.Source, m.File, m.Map, m.Raw = entry.Source, entry.File, entry.Map, entry.Raw
	return entry.Err
}

// compile runs transform hooks and the parser over freshly loaded content.
func (b *builder) compile(m *Module, content []byte, entry *CacheEntry) error {
	b.stats.Parsed++
	Logger().Debug("cache miss", zap.String("module", m.ID))

	code, err := b.synthesize(m, content)
	if err != nil {
		return err
	}
	if m.Kind == source.KindResource {
		entry.Raw = content
	}

	code, entry.Map, err = b.transform(m.ID, code)
	if err != nil {
		return err
	}

	entry.Source = source.FromFile(m.ID, code)
	file, err := syntax.Parse(b.ctx, entry.Source)
	if err != nil {
		return err
	}
	entry.File = file
	return nil
}

// synthesize turns stored bytes into module text. JSON and resources
// become script modules with a default export.
func (b *builder) synthesize(m *Module, content []byte) (string, error) {
	switch {
	case m.Kind == source.KindResource:
		url := m.ID
		if b.in.Resources != nil {
			url = b.in.Resources.PublicPath(m.ID)
		}
		return "export default " + strconv.Quote(url) + ";\n", nil
	case strings.EqualFold(path.Ext(m.ID), ".json"):
		if !json.Valid(content) {
			return "", &errors.ParseError{Module: m.ID, Msg: "invalid JSON"}
		}
		return "export default " + strings.TrimSpace(string(content)) + ";\n", nil
	}
	return string(content), nil
}

// transform runs every transform hook in order, composing their maps.
func (b *builder) transform(id, code string) (string, *sourcemap.Map, error) {
	var composed *sourcemap.Map
	for _, p := range b.in.Plugins {
		tp, ok := p.(TransformerPlugin)
		if !ok {
			continue
		}
		res, err := tp.Transform(b.ctx, id, code)
		if err != nil {
			return "", nil, &errors.PluginError{Plugin: tp.Name(), Hook: "transform", Module: id, Cause: err}
		}
		if res == nil {
			continue
		}
		code = res.Code
		switch {
		case res.Map == nil:
		case composed == nil:
			composed = res.Map
		default:
			if composed, err = sourcemap.ComposeMaps(composed, res.Map); err != nil {
				return "", nil, &errors.PluginError{Plugin: tp.Name(), Hook: "transform", Module: id, Cause: err}
			}
		}
	}
	return code, composed, nil
}

// read returns the stored bytes of id, asking loader hooks first.
func (b *builder) read(id string) ([]byte, bool, error) {
	for _, p := range b.in.Plugins {
		lp, ok := p.(LoaderPlugin)
		if !ok {
			continue
		}
		data, ok, err := lp.Load(b.ctx, id)
		if err != nil {
			return nil, false, &errors.PluginError{Plugin: lp.Name(), Hook: "load", Module: id, Cause: err}
		}
		if ok {
			return data, false, nil
		}
	}

	asset, err := b.storeFor(id).GetAsset(id)
	if err != nil {
		return nil, false, (&errors.ParseError{Module: id, Msg: "cannot load module"}).CausedBy(err)
	}
	return asset.Content, asset.Modified, nil
}

// resolve maps specifier, written in importer (nil for the entry), to a
// canonical id. Resolver hooks go first, then externals, then the package
// resolver for bare specifiers, then the asset store.
func (b *builder) resolve(specifier string, importer *Module) (id string, found, external bool, err error) {
	importerID, baseDir := "", "/"
	if importer != nil {
		importerID, baseDir = importer.ID, Dir(importer.ID)
	}

	for _, p := range b.in.Plugins {
		rp, ok := p.(ResolverPlugin)
		if !ok {
			continue
		}
		id, ok, err := rp.ResolveID(b.ctx, specifier, importerID)
		if err != nil {
			return "", false, false, &errors.PluginError{Plugin: rp.Name(), Hook: "resolve", Module: specifier, Cause: err}
		}
		if ok {
			return id, true, false, nil
		}
	}

	if b.in.IsExternal(specifier) {
		return specifier, false, true, nil
	}

	if IsBare(specifier) && b.in.Packages != nil {
		id, ok, err := b.resolvePackage(specifier)
		if err != nil || ok {
			return id, ok, false, err
		}
	}

	id, found = b.storeFor(baseDir).Resolve(specifier, baseDir)
	return id, found, false, nil
}

// resolvePackage fetches a package and installs its files in the overlay.
func (b *builder) resolvePackage(specifier string) (string, bool, error) {
	if id, ok := b.packages[specifier]; ok {
		return id, true, nil
	}
	pkg, err := b.in.Packages.ResolvePackage(b.ctx, specifier)
	if err != nil {
		return "", false, &errors.PluginError{Plugin: "packages", Hook: "package", Module: specifier, Cause: err}
	}
	if pkg == nil {
		return "", false, nil
	}

	namespace := pkg.Namespace
	if namespace == "" {
		namespace = "pkg:" + pkg.Name
	}
	for p, content := range pkg.Files {
		id := namespace + "/" + strings.TrimPrefix(path.Clean("/"+p), "/")
		if existing, err := b.in.Overlay.GetAsset(id); err == nil && string(existing.Content) == content {
			continue
		}
		b.in.Overlay.AddAsset(id, content)
	}

	id, ok := b.in.Overlay.Resolve("./"+pkg.Entry, namespace)
	if !ok {
		return "", false, &errors.PluginError{
			Plugin: "packages",
			Hook:   "package",
			Module: specifier,
			Cause:  fmt.Errorf("package %s has no entry %q", pkg.Name, pkg.Entry),
		}
	}
	b.packages[specifier] = id
	Logger().Debug("package resolved", zap.String("specifier", specifier), zap.String("module", id))
	return id, true, nil
}

// storeFor returns the store owning id, which may also be a directory.
func (b *builder) storeFor(id string) AssetStore {
	if strings.HasPrefix(id, "pkg:") {
		return b.in.Overlay
	}
	return b.in.Store
}
