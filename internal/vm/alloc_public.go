package vm

// Public wrappers over the Heap's allocation primitives, for embedders
// (internal/natives) that must allocate Brace values without internal/vm
// needing to import them back (avoiding an import cycle, per spec.md §9).

// InternString is the exported form of internString.
func (h *Heap) InternString(s string) *String { return h.internString(s) }

// NewArrayPublic is the exported form of newArray.
func (h *Heap) NewArrayPublic(items []Value) *Array { return h.newArray(items) }

// NewModule is the exported form of newModule.
func (h *Heap) NewModule(name, path string) *Module { return h.newModule(name, path) }
