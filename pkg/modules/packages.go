package modules

import (
	"context"
	"strings"
	"sync"
)

// MemoryPackageResolver serves packages registered in memory. A subpath
// specifier like "lib/util.js" resolves to the "lib" package with the
// subpath as its entry.
type MemoryPackageResolver struct {
	mutex    sync.RWMutex
	packages map[string]*Package
}

// NewMemoryPackageResolver creates an empty package resolver
func NewMemoryPackageResolver() *MemoryPackageResolver {
	return &MemoryPackageResolver{packages: make(map[string]*Package)}
}

// AddPackage registers a package under its name
func (r *MemoryPackageResolver) AddPackage(pkg *Package) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if pkg.Namespace == "" {
		pkg.Namespace = "pkg:" + pkg.Name
	}
	if pkg.Entry == "" {
		pkg.Entry = "index.js"
	}
	r.packages[pkg.Name] = pkg
}

// ResolvePackage implements PackageResolver
func (r *MemoryPackageResolver) ResolvePackage(ctx context.Context, specifier string) (*Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, subpath := SplitPackageSpecifier(specifier)

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	pkg, ok := r.packages[name]
	if !ok {
		return nil, nil
	}
	if subpath == "" {
		return pkg, nil
	}
	sub := *pkg
	sub.Entry = subpath
	return &sub, nil
}

// SplitPackageSpecifier splits a bare specifier into the package name and
// the path inside it. Scoped names keep their scope: "@a/b/c" gives
// ("@a/b", "c").
func SplitPackageSpecifier(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name = parts[0]
	if len(parts) > 1 {
		subpath = strings.Join(parts[1:], "/")
	}
	return name, subpath
}
