package modules

import (
	"context"

	"github.com/nooga/weld/pkg/sourcemap"
)

// Asset is the raw content of a module as stored by an AssetStore.
type Asset struct {
	Content  []byte
	Modified bool // Content changed since the store last marked it clean
}

// AssetStore owns module content. Ids are canonical: two specifiers that
// reach the same asset resolve to the same id.
type AssetStore interface {
	// GetAsset returns the asset with the given canonical id.
	GetAsset(id string) (*Asset, error)

	// Resolve maps a specifier written in a module living in baseDir to a
	// canonical id. It returns false when nothing matches.
	Resolve(specifier, baseDir string) (string, bool)
}

// Cleaner is implemented by stores that track modification. The graph
// builder marks every asset it loaded as clean.
type Cleaner interface {
	MarkClean(id string)
}

// Plugin is the common part of every loader/transform collaborator. A
// plugin implements any subset of the hook interfaces below.
type Plugin interface {
	Name() string
}

// ResolverPlugin overrides specifier resolution.
type ResolverPlugin interface {
	Plugin
	// ResolveID returns a canonical id for specifier, or false to defer
	// to the next resolver.
	ResolveID(ctx context.Context, specifier, importer string) (string, bool, error)
}

// LoaderPlugin supplies module content instead of the asset store.
type LoaderPlugin interface {
	Plugin
	// Load returns content for id, or false to defer.
	Load(ctx context.Context, id string) ([]byte, bool, error)
}

// TransformResult is the output of a transform hook.
type TransformResult struct {
	Code string
	// Map maps Code back to the hook's input. Nil means positions are
	// unchanged.
	Map *sourcemap.Map
}

// TransformerPlugin rewrites module text before it is parsed.
type TransformerPlugin interface {
	Plugin
	// Transform returns nil to leave code untouched.
	Transform(ctx context.Context, id, code string) (*TransformResult, error)
}

// Package is a pre-resolved set of files for one bare specifier.
type Package struct {
	Name      string            // Bare specifier, e.g. "lodash"
	Namespace string            // Synthetic namespace, e.g. "pkg:lodash"
	Entry     string            // Entry path inside the package, e.g. "index.js"
	Files     map[string]string // Path inside the package -> content
}

// PackageResolver fetches packages for bare specifiers.
type PackageResolver interface {
	// ResolvePackage returns nil, nil when the specifier is not a package
	// it knows about.
	ResolvePackage(ctx context.Context, specifier string) (*Package, error)
}

// ResourcePather decides the public URL of a bundled resource.
type ResourcePather interface {
	PublicPath(id string) string
}

// ResourcePatherFunc adapts a function to a ResourcePather.
type ResourcePatherFunc func(id string) string

func (f ResourcePatherFunc) PublicPath(id string) string { return f(id) }
