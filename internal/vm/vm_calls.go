package vm

// closeUpvalues hoists every open upvalue pointing at a stack slot >=
// base into its own storage and unlinks it from the VM's open list,
// per spec.md §4.4 ("End-of-scope closes or pops each discarded local").
func (vm *VM) closeUpvalues(base int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= base {
		up := vm.openUpvalues
		up.Closed = vm.stack[up.Location]
		up.IsOpen = false
		vm.openUpvalues = up.NextOpen
		up.NextOpen = nil
	}
}

// captureUpvalue reuses an existing open upvalue at slot, or inserts a
// new one into the VM's open-upvalue list (kept ordered by descending
// Location, per spec.md §3 invariant 2).
func (vm *VM) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Location > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Location == slot {
		return cur
	}
	created := vm.heap.newUpvalue(slot)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// callValue dispatches a call to whatever callee is (spec.md §4.4
// "Calling").
func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.Tag != ValObj {
		return vm.runtimeError("can only call functions and classes")
	}
	switch obj := callee.Obj.(type) {
	case *BoundMethod:
		vm.stack[vm.sp-argCount-1] = obj.Receiver
		return vm.callClosure(obj.Method, argCount)
	case *BoundNativeMethod:
		vm.stack[vm.sp-argCount-1] = obj.Receiver
		return vm.callNativeAt(obj.Method, argCount+1, vm.sp-argCount-1)
	case *Class:
		inst := vm.heap.newInstance(obj)
		vm.stack[vm.sp-argCount-1] = ObjValue(inst)
		if init, ok := obj.FindMethod("Init"); ok {
			return vm.callClosure(init, argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("expected 0 arguments for class with no Init method but got %d", argCount)
		}
		return nil
	case *Closure:
		return vm.callClosure(obj, argCount)
	case *Native:
		return vm.callNativeAt(obj, argCount, vm.sp-argCount-1)
	default:
		return vm.runtimeError("can only call functions and classes")
	}
}

func (vm *VM) callClosure(closure *Closure, argCount int) error {
	fn := closure.Function
	if argCount != fn.Arity {
		return vm.runtimeError("expected %d arguments but got %d", fn.Arity, argCount)
	}
	for i := 0; i < argCount && i < len(fn.ParamTypes); i++ {
		argSlot := vm.sp - argCount + i
		if !fn.ParamTypes[i].Matches(vm.stack[argSlot]) {
			return vm.runtimeError("Expected value of type %s but got %s", fn.ParamTypes[i].String(), typeNameOf(vm.stack[argSlot]))
		}
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("stack overflow")
	}
	f := &vm.frames[vm.frameCount]
	f.closure = closure
	f.ip = 0
	f.base = vm.sp - argCount - 1
	vm.frameCount++
	return nil
}

func (vm *VM) callNativeAt(native *Native, argCount int, calleeSlot int) error {
	if native.Arity != -1 && native.Arity != argCount {
		return vm.runtimeError("expected %d arguments but got %d", native.Arity, argCount)
	}
	args := make([]Value, argCount)
	copy(args, vm.stack[vm.sp-argCount:vm.sp])
	result, err := native.Fn(vm, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.sp = calleeSlot
	vm.push(result)
	return nil
}

func typeNameOf(v Value) string {
	switch v.Tag {
	case ValNull:
		return "Null"
	case ValBool:
		return "Bool"
	case ValNumber:
		return "Num"
	case ValType:
		return "Type"
	case ValObj:
		switch v.Obj.Kind() {
		case ObjString:
			return "Str"
		case ObjArray:
			return "Arr"
		case ObjFunction, ObjClosure, ObjNative, ObjBoundMethod, ObjBoundNativeMethod:
			return "Fun"
		case ObjClass:
			return "Cls"
		case ObjInstance:
			return v.Obj.(*Instance).Class.Name
		case ObjModule:
			return "Module"
		}
	}
	return "Any"
}

// invoke combines GET_PROPERTY + CALL (spec.md §4.4 "OP_INVOKE"): if the
// receiver is an Instance and name is actually a field, the field's value
// is called indirectly; otherwise the class's method table is searched.
func (vm *VM) invoke(name string, argCount int) error {
	receiver := vm.peek(argCount)
	if receiver.Tag != ValObj {
		return vm.runtimeError("only instances have methods")
	}
	switch recv := receiver.Obj.(type) {
	case *Instance:
		if field, ok := recv.Fields[name]; ok {
			vm.stack[vm.sp-argCount-1] = field
			return vm.callValue(field, argCount)
		}
		return vm.invokeFromClass(recv.Class, name, argCount)
	default:
		bound, err := vm.bindNativeMethod(receiver, name)
		if err != nil {
			return err
		}
		vm.stack[vm.sp-argCount-1] = bound
		return vm.callValue(bound, argCount)
	}
}

func (vm *VM) invokeFromClass(cls *Class, name string, argCount int) error {
	method, ok := cls.FindMethod(name)
	if !ok {
		return vm.runtimeError("undefined property '%s'", name)
	}
	return vm.callClosure(method, argCount)
}
