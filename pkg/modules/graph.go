package modules

// Graph is the dependency graph of one build: an append-only module vector
// with a canonical-id index. Order is computed on demand and cached until
// the next insertion.
type Graph struct {
	Entry string // Canonical id of the entry module
	Stats Stats

	modules []*Module
	index   map[string]int
	order   []*Module
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// insert appends m unless a module with the same id is present. It returns
// the module stored under m.ID.
func (g *Graph) insert(m *Module) (*Module, bool) {
	if i, ok := g.index[m.ID]; ok {
		return g.modules[i], false
	}
	g.index[m.ID] = len(g.modules)
	g.modules = append(g.modules, m)
	g.order = nil
	return m, true
}

// Get returns the module with the given id, or nil
func (g *Graph) Get(id string) *Module {
	if i, ok := g.index[id]; ok {
		return g.modules[i]
	}
	return nil
}

// Has reports whether id is in the graph
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of modules
func (g *Graph) Len() int {
	return len(g.modules)
}

// Inserted returns the modules in insertion order.
func (g *Graph) Inserted() []*Module {
	out := make([]*Module, len(g.modules))
	copy(out, g.modules)
	return out
}

// Modules returns the modules in dependency order: every module comes
// after all of its importers.
func (g *Graph) Modules() []*Module {
	if g.order == nil {
		g.order = g.sort()
	}
	out := make([]*Module, len(g.order))
	copy(out, g.order)
	return out
}

// EvaluationOrder returns the reverse of Modules, so producers come before
// the modules importing them.
func (g *Graph) EvaluationOrder() []*Module {
	order := g.Modules()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// IDs returns the canonical ids in dependency order.
func (g *Graph) IDs() []string {
	order := g.Modules()
	ids := make([]string, len(order))
	for i, m := range order {
		ids[i] = m.ID
	}
	return ids
}

// Resolve returns the module a specifier of m points at, if it is in the
// graph.
func (g *Graph) Resolve(m *Module, specifier string) *Module {
	id, ok := m.Deps[specifier]
	if !ok {
		return nil
	}
	return g.Get(id)
}

// sort is a depth-first visit over the importer relation. Visiting a
// module first visits each unvisited importer, then appends the module.
// Every edge into the entry closes a cycle, so the entry's importers are
// not followed.
func (g *Graph) sort() []*Module {
	visited := newBitset(len(g.modules))
	out := make([]*Module, 0, len(g.modules))

	var visit func(i int)
	visit = func(i int) {
		visited.set(i)
		m := g.modules[i]
		if !m.IsEntry {
			for _, importer := range m.Importers {
				j, ok := g.index[importer]
				if ok && !visited.has(j) {
					visit(j)
				}
			}
		}
		out = append(out, m)
	}
	for i := range g.modules {
		if !visited.has(i) {
			visit(i)
		}
	}
	return out
}

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }
