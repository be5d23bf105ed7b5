package vm

// This file centralizes every heap allocation site so the memory manager
// (gc.go) has a single place that both creates objects and charges them
// against the allocation budget, per spec.md §4.5 ("every object
// allocation goes through a single primitive").

// internString returns the canonical *String for s, allocating and
// interning it only if no equal-content string already lives in the
// table (spec.md §3 invariant 1).
func (h *Heap) internString(s string) *String {
	hash := fnv1a(s)
	key := internKey{hash: hash, chars: s}
	if existing, ok := h.vm.strings[key]; ok {
		return existing
	}
	str := &String{Chars: s, Hash: hash}
	h.track(str, objectSize(str))
	h.vm.strings[key] = str
	return str
}

type internKey struct {
	hash  uint32
	chars string
}

func (h *Heap) newArray(items []Value) *Array {
	a := &Array{Items: items}
	h.track(a, objectSize(a))
	return a
}

func (h *Heap) newFunction(name string) *Function {
	f := &Function{Name: name, Chunk: NewChunk(), ReturnType: AnyType()}
	h.track(f, objectSize(f))
	return f
}

func (h *Heap) newClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	h.track(c, objectSize(c))
	return c
}

func (h *Heap) newUpvalue(location int) *Upvalue {
	u := &Upvalue{Location: location, IsOpen: true}
	h.track(u, objectSize(u))
	return u
}

func (h *Heap) newNative(name string, arity int, fn NativeFn) *Native {
	n := &Native{Name: name, Arity: arity, Fn: fn}
	h.track(n, objectSize(n))
	return n
}

func (h *Heap) newClass(name string) *Class {
	c := NewClass(name)
	h.track(c, objectSize(c))
	return c
}

func (h *Heap) newInstance(cls *Class) *Instance {
	i := NewInstance(cls)
	h.track(i, objectSize(i))
	return i
}

func (h *Heap) newBoundMethod(receiver Value, method *Closure) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	h.track(b, objectSize(b))
	return b
}

func (h *Heap) newBoundNativeMethod(receiver Value, method *Native) *BoundNativeMethod {
	b := &BoundNativeMethod{Receiver: receiver, Method: method}
	h.track(b, objectSize(b))
	return b
}

func (h *Heap) newDataType(t DataType) *DataTypeObj {
	d := &DataTypeObj{Type: t}
	h.track(d, objectSize(d))
	return d
}

func (h *Heap) newModule(name, path string) *Module {
	m := NewModule(name, path)
	h.track(m, objectSize(m))
	return m
}
