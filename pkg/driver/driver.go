// Package driver runs the bundling pipeline: it builds the module graph,
// assigns symbols, links the modules and emits the artifact. A Bundler
// keeps its module cache and symbol table between builds, so rebuilding
// after an edit only reparses what changed.
package driver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/bundle"
	"github.com/nooga/weld/pkg/errors"
	"github.com/nooga/weld/pkg/linker"
	"github.com/nooga/weld/pkg/modules"
	"github.com/nooga/weld/pkg/symbols"
)

// Options configures a Bundler.
type Options struct {
	Mode       bundle.Mode
	External   []string // Specifiers left to the host environment
	PublicPath string   // Prefix of the URLs the markup references
	ScriptID   string
	StyleID    string
	MarkupID   string

	// Define replaces member expressions like process.env.API_URL with
	// the given JavaScript expressions. process.env.NODE_ENV defaults to
	// the mode.
	Define map[string]string

	Plugins         []modules.Plugin
	PackageResolver modules.PackageResolver
	ResourcePather  modules.ResourcePather
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	emit := bundle.DefaultOptions()
	return Options{
		Mode:     emit.Mode,
		ScriptID: emit.ScriptID,
		StyleID:  emit.StyleID,
		MarkupID: emit.MarkupID,
	}
}

// Result is the outcome of one build.
type Result struct {
	Artifact    *bundle.Artifact
	Graph       *modules.Graph
	Diagnostics *errors.Diagnostics
	Duration    time.Duration
}

// OK reports whether the build produced no errors.
func (r *Result) OK() bool {
	return !r.Diagnostics.HasErrors()
}

// Bundler owns the state shared between builds of one project. Builds are
// serialized: the cache and the symbol table are not safe for concurrent
// use.
type Bundler struct {
	mu      sync.Mutex
	store   modules.AssetStore
	opts    Options
	cache   *modules.Cache
	overlay *modules.MemoryStore
	table   *symbols.Table
	virtual *virtualModules
	builds  int
}

// New creates a bundler reading modules from store.
func New(store modules.AssetStore, opts Options) *Bundler {
	return &Bundler{
		store:   store,
		opts:    opts,
		cache:   modules.NewCache(),
		overlay: modules.NewMemoryStore("packages"),
		table:   symbols.NewTable(symbols.NewGenerator()),
		virtual: newVirtualModules(),
	}
}

// NewWithBaseDir creates a bundler over the files under baseDir.
func NewWithBaseDir(baseDir string, opts Options) *Bundler {
	return New(modules.NewOSFileSystemStore(baseDir), opts)
}

// DeclareModule registers a module whose exports are declared in Go.
// Importing name from any module resolves to it.
func (b *Bundler) DeclareModule(name string, build func(m *ModuleBuilder)) {
	b.virtual.declare(name, build)
}

// Invalidate forgets the cached parse result of id, for stores that do not
// track modification.
func (b *Bundler) Invalidate(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(id)
}

// CacheStats reports the module cache counters.
func (b *Bundler) CacheStats() modules.CacheStats {
	return b.cache.GetStats()
}

// Build bundles the graph reachable from entry. It always returns a
// result; failures are reported in its diagnostics. An entry that cannot
// be loaded yields an empty artifact.
func (b *Bundler) Build(ctx context.Context, entry string) *Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	b.builds++
	log := Logger().With(zap.String("entry", entry), zap.Int("build", b.builds))

	g, diags := modules.BuildGraph(ctx, entry, modules.BuildInput{
		Store:     b.store,
		Plugins:   b.plugins(),
		Packages:  b.opts.PackageResolver,
		External:  b.opts.External,
		Cache:     b.cache,
		Overlay:   b.overlay,
		Resources: b.opts.ResourcePather,
	})
	res := &Result{Artifact: &bundle.Artifact{}, Graph: g, Diagnostics: diags}
	if g.Len() == 0 {
		res.Duration = time.Since(start)
		log.Debug("entry failed", zap.Int("diagnostics", diags.Len()))
		return res
	}

	gen := symbols.NewGenerator()
	linker.ReserveGlobals(gen, g)
	dropped := b.table.ResyncModules(g)
	b.table.Seed(gen)
	b.table.AssignWithModules(g)
	log.Debug("symbols assigned",
		zap.Int("symbols", len(b.table.Symbols())),
		zap.Strings("dropped", dropped),
		zap.Int("evicted", g.Stats.Evicted))

	linked := linker.Link(g, b.table, diags)
	res.Artifact = bundle.NewEmitter(g, b.table, diags, b.emitOptions()).Emit(linked)
	res.Duration = time.Since(start)

	log.Info("build finished",
		zap.Int("modules", g.Stats.Modules),
		zap.Int("parsed", g.Stats.Parsed),
		zap.Int("cache_hits", g.Stats.CacheHits),
		zap.Int("diagnostics", diags.Len()),
		zap.Duration("duration", res.Duration))
	return res
}

// plugins puts the bundler's own plugins ahead of the configured ones.
func (b *Bundler) plugins() []modules.Plugin {
	out := []modules.Plugin{b.virtual, newDefinePlugin(b.defines())}
	return append(out, b.opts.Plugins...)
}

func (b *Bundler) defines() map[string]string {
	values := map[string]string{
		"process.env.NODE_ENV": `"` + b.opts.Mode.String() + `"`,
	}
	for k, v := range b.opts.Define {
		values[k] = v
	}
	return values
}

func (b *Bundler) emitOptions() bundle.Options {
	opts := bundle.DefaultOptions()
	opts.Mode = b.opts.Mode
	opts.PublicPath = b.opts.PublicPath
	opts.Resources = b.opts.ResourcePather
	if b.opts.ScriptID != "" {
		opts.ScriptID = b.opts.ScriptID
	}
	if b.opts.StyleID != "" {
		opts.StyleID = b.opts.StyleID
	}
	if b.opts.MarkupID != "" {
		opts.MarkupID = b.opts.MarkupID
	}
	return opts
}
