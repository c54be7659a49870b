package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nooga/weld/pkg/symbols"
)

// virtualPrefix marks the ids of modules declared in Go. The .js suffix
// keeps them script modules.
const virtualPrefix = "virtual:"

func virtualID(name string) string {
	return virtualPrefix + name + ".js"
}

// ModuleBuilder provides the declarative API for building virtual modules.
// Values are serialized to JSON, which is valid JavaScript.
type ModuleBuilder struct {
	name    string
	exports map[string]string // Export name -> JavaScript expression
	def     string
	err     error
}

// Const adds a constant export holding value.
func (m *ModuleBuilder) Const(name string, value interface{}) *ModuleBuilder {
	expr, err := literal(value)
	if err != nil {
		m.fail(fmt.Errorf("export %q: %w", name, err))
		return m
	}
	return m.Expr(name, expr)
}

// Expr adds an export whose value is the JavaScript expression expr.
func (m *ModuleBuilder) Expr(name, expr string) *ModuleBuilder {
	if symbols.Normalize(name) != name || symbols.IsReservedWord(name) {
		m.fail(fmt.Errorf("export name %q is not an identifier", name))
		return m
	}
	m.exports[name] = expr
	return m
}

// Default sets the default export to value.
func (m *ModuleBuilder) Default(value interface{}) *ModuleBuilder {
	expr, err := literal(value)
	if err != nil {
		m.fail(fmt.Errorf("default export: %w", err))
		return m
	}
	m.def = expr
	return m
}

func (m *ModuleBuilder) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func literal(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// source renders the module. Exports are sorted so the text, and with it
// the cache key, is stable.
func (m *ModuleBuilder) source() (string, error) {
	if m.err != nil {
		return "", fmt.Errorf("module %q: %w", m.name, m.err)
	}
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "export const %s = %s;\n", name, m.exports[name])
	}
	if m.def != "" {
		fmt.Fprintf(&b, "export default %s;\n", m.def)
	}
	return b.String(), nil
}

// VirtualModule is a module declared in Go code.
type VirtualModule struct {
	name    string
	builder func(*ModuleBuilder)
	once    sync.Once
	text    string
	err     error
}

func (vm *VirtualModule) render() (string, error) {
	vm.once.Do(func() {
		m := &ModuleBuilder{name: vm.name, exports: make(map[string]string)}
		vm.builder(m)
		vm.text, vm.err = m.source()
	})
	return vm.text, vm.err
}

// virtualModules resolves and loads the modules declared on a Bundler.
type virtualModules struct {
	mu      sync.RWMutex
	modules map[string]*VirtualModule
}

func newVirtualModules() *virtualModules {
	return &virtualModules{modules: make(map[string]*VirtualModule)}
}

func (v *virtualModules) declare(name string, build func(*ModuleBuilder)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.modules[name] = &VirtualModule{name: name, builder: build}
}

func (v *virtualModules) lookup(name string) (*VirtualModule, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vm, ok := v.modules[name]
	return vm, ok
}

func (v *virtualModules) Name() string {
	return "virtual"
}

func (v *virtualModules) ResolveID(ctx context.Context, specifier, importer string) (string, bool, error) {
	if _, ok := v.lookup(specifier); ok {
		return virtualID(specifier), true, nil
	}
	return "", false, nil
}

func (v *virtualModules) Load(ctx context.Context, id string) ([]byte, bool, error) {
	if !strings.HasPrefix(id, virtualPrefix) {
		return nil, false, nil
	}
	vm, ok := v.lookup(strings.TrimSuffix(strings.TrimPrefix(id, virtualPrefix), ".js"))
	if !ok {
		return nil, false, nil
	}
	text, err := vm.render()
	if err != nil {
		return nil, false, err
	}
	return []byte(text), true, nil
}
