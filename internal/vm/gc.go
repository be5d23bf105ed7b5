package vm

// Heap is the tracing mark-sweep memory manager described in spec.md §4.5.
// Every heap object allocation is accounted here; once bytesAllocated
// crosses nextGC (or StressGC is set), the next allocation triggers a
// full mark-sweep pass rooted at the owning VM and its active Compiler
// chain.
type Heap struct {
	vm     *VM
	chain  *Compiler // innermost active Compiler frame, or nil outside compilation

	all            Obj // intrusive "all objects" list head
	bytesAllocated int64
	nextGC         int64
	gray           []Obj

	StressGC bool
}

// GCHeapGrowthFactor is applied to bytesAllocated after each collection to
// compute the next collection threshold (spec.md §4.5 step 5).
const GCHeapGrowthFactor = 2

const initialGCThreshold = 1 << 20 // 1 MiB of estimated object payload

func newHeap(vm *VM) *Heap {
	return &Heap{vm: vm, nextGC: initialGCThreshold}
}

// track registers a freshly allocated object on the all-objects list and
// charges its estimated size against the allocation budget, collecting
// first if that would exceed nextGC.
func (h *Heap) track(o Obj, size int64) {
	if h.bytesAllocated+size > h.nextGC || h.StressGC {
		h.collectGarbage()
	}
	o.setNextObj(h.all)
	h.all = o
	h.bytesAllocated += size
}

func (h *Heap) setCompilerChain(c *Compiler) { h.chain = c }

// collectGarbage runs one full mark-sweep cycle: spec.md §4.5 steps 1-5.
func (h *Heap) collectGarbage() {
	h.markRoots()
	h.traceReferences()
	h.sweepStringTable()
	h.sweep()
	h.nextGC = h.bytesAllocated * GCHeapGrowthFactor
	if h.nextGC < initialGCThreshold {
		h.nextGC = initialGCThreshold
	}
}

func (h *Heap) markRoots() {
	vm := h.vm
	if vm == nil {
		return
	}
	for i := 0; i < vm.sp; i++ {
		h.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		if vm.frames[i].closure != nil {
			h.markObject(vm.frames[i].closure)
		}
	}
	for up := vm.openUpvalues; up != nil; up = up.NextOpen {
		h.markObject(up)
	}
	for _, v := range vm.globals {
		h.markValue(v)
	}
	for _, t := range vm.globalTypes {
		h.markValue(TypeValue(t))
	}
	for _, v := range vm.nativeVars {
		h.markValue(v)
	}
	if vm.initString != nil {
		h.markObject(vm.initString)
	}

	for c := h.chain; c != nil; c = c.enclosing {
		if c.function != nil {
			h.markObject(c.function)
		}
	}
}

func (h *Heap) markValue(v Value) {
	if v.Tag == ValObj {
		h.markObject(v.Obj)
	} else if v.Tag == ValType && v.Type.Kind == ValObj && v.Type.ObjKind == ObjInstance {
		h.markObject(v.Type.Class)
	}
}

func (h *Heap) markObject(o Obj) {
	if o == nil {
		return
	}
	if o.isMarked() {
		return
	}
	o.setMarked(true)
	h.gray = append(h.gray, o)
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o Obj) {
	switch obj := o.(type) {
	case *String:
		// no referents
	case *Array:
		for _, v := range obj.Items {
			h.markValue(v)
		}
	case *Function:
		for _, c := range obj.Chunk.Constants {
			h.markValue(c)
		}
		h.markValue(TypeValue(obj.ReturnType))
		for _, pt := range obj.ParamTypes {
			h.markValue(TypeValue(pt))
		}
	case *Closure:
		h.markObject(obj.Function)
		for _, up := range obj.Upvalues {
			h.markObject(up)
		}
	case *Upvalue:
		if !obj.IsOpen {
			h.markValue(obj.Closed)
		}
	case *Native:
		// no referents
	case *Class:
		for _, m := range obj.Methods {
			h.markObject(m)
		}
		for _, f := range obj.Fields {
			h.markValue(f.Value)
		}
		if obj.Super != nil {
			h.markObject(obj.Super)
		}
	case *Instance:
		h.markObject(obj.Class)
		for _, v := range obj.Fields {
			h.markValue(v)
		}
	case *BoundMethod:
		h.markValue(obj.Receiver)
		h.markObject(obj.Method)
	case *BoundNativeMethod:
		h.markValue(obj.Receiver)
		h.markObject(obj.Method)
	case *DataTypeObj:
		if obj.Type.Class != nil {
			h.markObject(obj.Type.Class)
		}
	case *Module:
		for _, v := range obj.Fields {
			h.markValue(v)
		}
	}
}

// sweepStringTable removes unmarked entries from the intern table before
// the general sweep, per spec.md §4.5 step 3 ("table weak refs").
func (h *Heap) sweepStringTable() {
	if h.vm == nil {
		return
	}
	for key, s := range h.vm.strings {
		if !s.isMarked() {
			delete(h.vm.strings, key)
		}
	}
}

// sweep walks the all-objects list, freeing (unlinking) anything still
// white and clearing the mark bit on survivors.
func (h *Heap) sweep() {
	var prev Obj
	cur := h.all
	for cur != nil {
		next := cur.nextObj()
		if cur.isMarked() {
			cur.setMarked(false)
			prev = cur
		} else {
			h.bytesAllocated -= objectSize(cur)
			if prev == nil {
				h.all = next
			} else {
				prev.setNextObj(next)
			}
		}
		cur = next
	}
}

// objectSize is a rough accounting size used only to drive the allocation
// budget; it need not be exact, only monotonic with real payload growth.
func objectSize(o Obj) int64 {
	switch v := o.(type) {
	case *String:
		return int64(32 + len(v.Chars))
	case *Array:
		return int64(32 + 16*len(v.Items))
	case *Function:
		return 96
	case *Closure:
		return int64(32 + 8*len(v.Upvalues))
	case *Upvalue:
		return 48
	case *Native:
		return 48
	case *Class:
		return int64(64 + 48*(len(v.Methods)+len(v.Fields)))
	case *Instance:
		return int64(32 + 40*len(v.Fields))
	case *BoundMethod, *BoundNativeMethod:
		return 48
	case *DataTypeObj:
		return 32
	case *Module:
		return int64(32 + 40*len(v.Fields))
	default:
		return 32
	}
}
