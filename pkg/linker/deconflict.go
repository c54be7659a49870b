package linker

// Deconflict renames colliding top-level bindings so every module can live
// in one scope.
//
// Modules are visited in evaluation order. Import bindings and exported
// declarations are left alone because Bind gives them their symbols. Any
// other top-level binding whose name is already taken gets a fresh name
// that no scope of its module binds, and every occurrence follows. The
// final names of the module are then reserved for the modules after it.
func (l *Linker) Deconflict() {
	for _, m := range l.order {
		for _, b := range m.File.TopLevel() {
			if b.Import != nil || l.table.SymbolOf(m.ID, b) != "" {
				continue
			}
			name := b.Name
			if l.gen.IsConflicted(name) {
				name = l.gen.GenerateBasedOnScope(subtree{m.File.Module}, b.Name)
				l.rename(m, b, name)
			}
			l.gen.Reserve(name)
		}
	}
}
