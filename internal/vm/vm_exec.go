package vm

import "fmt"

// executeOneOp executes every opcode except RETURN/EXIT/SCRIPT_END, which
// the dispatch loop in run() handles directly because they change frame
// bookkeeping the loop itself owns.
func (vm *VM) executeOneOp(op Opcode) error {
	f := vm.frame()
	line := 0
	if f.ip-1 >= 0 && f.ip-1 < len(f.closure.Function.Chunk.Lines) {
		line = f.closure.Function.Chunk.Lines[f.ip-1]
	}
	_ = line

	switch op {
	case OpConstant:
		vm.push(vm.readConstant())

	case OpNull:
		vm.push(NullValue())
	case OpTrue:
		vm.push(BoolValue(true))
	case OpFalse:
		vm.push(BoolValue(false))

	case OpPop:
		vm.pop()

	case OpDuplicate:
		n := int(vm.readByte())
		vm.push(vm.peek(n))

	case OpGetLocal:
		slot := int(vm.readByte())
		vm.push(vm.stack[f.base+slot])

	case OpSetLocal:
		slot := int(vm.readByte())
		vm.stack[f.base+slot] = vm.peek(0)

	case OpGetUpvalue:
		slot := int(vm.readByte())
		up := f.closure.Upvalues[slot]
		if up.IsOpen {
			vm.push(vm.stack[up.Location])
		} else {
			vm.push(up.Closed)
		}

	case OpSetUpvalue:
		slot := int(vm.readByte())
		up := f.closure.Upvalues[slot]
		if up.IsOpen {
			vm.stack[up.Location] = vm.peek(0)
		} else {
			up.Closed = vm.peek(0)
		}

	case OpGetGlobal:
		name := vm.readString()
		v, ok := vm.globals[name.Chars]
		if !ok {
			return vm.runtimeError("undefined variable '%s'", name.Chars)
		}
		vm.push(v)

	case OpDefineGlobal:
		name := vm.readString()
		typeIdx := vm.readConstantIndex()
		t := f.closure.Function.Chunk.Constants[typeIdx].Type
		vm.globals[name.Chars] = vm.pop()
		vm.globalTypes[name.Chars] = t

	case OpSetGlobal:
		name := vm.readString()
		if _, ok := vm.globals[name.Chars]; !ok {
			return vm.runtimeError("undefined variable '%s'", name.Chars)
		}
		declared := vm.globalTypes[name.Chars]
		v := vm.peek(0)
		if !declared.Matches(v) {
			return vm.runtimeError("Expected value of type %s but got %s", declared.String(), typeNameOf(v))
		}
		vm.globals[name.Chars] = v

	case OpGetNVar:
		idx := NativeVar(vm.readByte())
		if idx == NVarBlank {
			vm.push(NullValue())
		} else if idx == NVarFun {
			name := f.closure.Function.Name
			if name == "" {
				name = "<script>"
			}
			vm.push(ObjValue(vm.heap.internString(name)))
		} else {
			vm.push(vm.nativeVars[idx])
		}

	case OpSetNVar:
		idx := NativeVar(vm.readByte())
		if idx == NVarBlank {
			vm.pop()
		} else {
			return vm.runtimeError("cannot assign to native variable")
		}

	case OpUpdateLast:
		vm.nativeVars[NVarLast] = vm.peek(0)

	case OpDefineField:
		name := vm.readString()
		typeIdx := vm.readConstantIndex()
		t := f.closure.Function.Chunk.Constants[typeIdx].Type
		value := vm.pop()
		cls := vm.peek(0).Obj.(*Class)
		cls.Fields[name.Chars] = FieldDefault{Value: value, Type: t}

	case OpGetProperty:
		name := vm.readString()
		if err := vm.getProperty(name.Chars); err != nil {
			return err
		}

	case OpSetProperty:
		name := vm.readString()
		if err := vm.setProperty(name.Chars); err != nil {
			return err
		}

	case OpGetSuper:
		name := vm.readString()
		super := vm.pop().Obj.(*Class)
		receiver := vm.pop()
		method, ok := super.FindMethod(name.Chars)
		if !ok {
			return vm.runtimeError("undefined property '%s'", name.Chars)
		}
		vm.push(ObjValue(vm.heap.newBoundMethod(receiver, method)))

	case OpGetIndex:
		return vm.getIndex()

	case OpSetIndex:
		return vm.setIndex()

	case OpArrayLength:
		arr, ok := vm.pop().Obj.(*Array)
		if !ok {
			return vm.runtimeError("expected an array")
		}
		vm.push(NumberValue(float64(len(arr.Items))))

	case OpArray:
		n := vm.readShort()
		items := make([]Value, n)
		copy(items, vm.stack[vm.sp-n:vm.sp])
		vm.sp -= n
		vm.push(ObjValue(vm.heap.newArray(items)))

	case OpEqual:
		b := vm.pop()
		a := vm.pop()
		vm.push(BoolValue(a.Equal(b)))

	case OpGreater:
		return vm.numericCompare(func(a, b float64) bool { return a > b })
	case OpLess:
		return vm.numericCompare(func(a, b float64) bool { return a < b })

	case OpAdd:
		return vm.add()
	case OpSub:
		return vm.numericBinary(func(a, b float64) float64 { return a - b })
	case OpMul:
		return vm.numericBinary(func(a, b float64) float64 { return a * b })
	case OpDiv:
		return vm.numericBinary(func(a, b float64) float64 { return a / b })
	case OpMod:
		return vm.numericBinary(func(a, b float64) float64 {
			return float64(int64(a) % int64(b))
		})

	case OpIncrement:
		v := vm.pop()
		if v.Tag != ValNumber {
			return vm.runtimeError("operand must be a number")
		}
		vm.push(NumberValue(v.Number + 1))
	case OpDecrement:
		v := vm.pop()
		if v.Tag != ValNumber {
			return vm.runtimeError("operand must be a number")
		}
		vm.push(NumberValue(v.Number - 1))
	case OpNegate:
		v := vm.pop()
		if v.Tag != ValNumber {
			return vm.runtimeError("operand must be a number")
		}
		vm.push(NumberValue(-v.Number))
	case OpNot:
		v := vm.pop()
		vm.push(BoolValue(v.IsFalsy()))

	case OpAssertType:
		typeIdx := vm.readConstantIndex()
		msgIdx := vm.readConstantIndex()
		t := f.closure.Function.Chunk.Constants[typeIdx].Type
		msg := f.closure.Function.Chunk.Constants[msgIdx].Obj.(*String).Chars
		v := vm.peek(0)
		if !t.Matches(v) {
			return vm.runtimeError(msg, t.String(), typeNameOf(v))
		}

	case OpPrint:
		fmt.Fprint(vm.stdout, vm.pop().String())
	case OpPrintLn:
		fmt.Fprintln(vm.stdout, vm.pop().String())

	case OpJump:
		offset := vm.readShort()
		f.ip += offset
	case OpJumpIfFalse:
		offset := vm.readShort()
		if vm.peek(0).IsFalsy() {
			f.ip += offset
		}
	case OpJumpBack:
		offset := vm.readShort()
		f.ip -= offset

	case OpCall:
		argCount := int(vm.readByte())
		return vm.callValue(vm.peek(argCount), argCount)

	case OpInvoke:
		name := vm.readString()
		argCount := int(vm.readByte())
		return vm.invoke(name.Chars, argCount)

	case OpSuperInvoke:
		name := vm.readString()
		argCount := int(vm.readByte())
		super := vm.pop().Obj.(*Class)
		return vm.invokeFromClass(super, name.Chars, argCount)

	case OpClosure:
		fnVal := vm.readConstant()
		fn := fnVal.Obj.(*Function)
		closure := vm.heap.newClosure(fn)
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := vm.readByte()
			index := vm.readByte()
			if isLocal != 0 {
				closure.Upvalues[i] = vm.captureUpvalue(f.base + int(index))
			} else {
				closure.Upvalues[i] = f.closure.Upvalues[index]
			}
		}
		vm.push(ObjValue(closure))

	case OpCloseUpvalue:
		vm.closeUpvalues(vm.sp - 1)
		vm.pop()

	case OpClass:
		name := vm.readString()
		vm.push(ObjValue(vm.heap.newClass(name.Chars)))

	case OpInherit:
		superVal := vm.peek(1)
		super, ok := superVal.Obj.(*Class)
		if !ok {
			return vm.runtimeError("superclass must be a class")
		}
		sub := vm.peek(0).Obj.(*Class)
		sub.Super = super
		for name, m := range super.Methods {
			sub.Methods[name] = m
		}
		for name, fd := range super.Fields {
			sub.Fields[name] = fd
		}
		vm.pop() // pop subclass
		// leaves superclass on the stack (spec.md §4.4 "OP_INHERIT")

	case OpMethod:
		name := vm.readString()
		closure := vm.pop().Obj.(*Closure)
		cls := vm.peek(0).Obj.(*Class)
		cls.Methods[name.Chars] = closure

	case OpTernary:
		f2 := vm.pop()
		t := vm.pop()
		cond := vm.pop()
		if cond.IsFalsy() {
			vm.push(f2)
		} else {
			vm.push(t)
		}

	case OpImport:
		return vm.runtimeError("module import is not available in this build")

	default:
		return vm.runtimeError("unknown opcode %d", op)
	}
	return nil
}

func (vm *VM) numericBinary(fn func(a, b float64) float64) error {
	b := vm.pop()
	a := vm.pop()
	if a.Tag != ValNumber || b.Tag != ValNumber {
		return vm.runtimeError("operands must be numbers")
	}
	vm.push(NumberValue(fn(a.Number, b.Number)))
	return nil
}

func (vm *VM) numericCompare(fn func(a, b float64) bool) error {
	b := vm.pop()
	a := vm.pop()
	if a.Tag != ValNumber || b.Tag != ValNumber {
		return vm.runtimeError("operands must be numbers")
	}
	vm.push(BoolValue(fn(a.Number, b.Number)))
	return nil
}

// add implements spec.md §4.4 "Arithmetic overloads": Str+Str concatenates
// and interns the result; Arr+Arr mutates the left operand in place,
// appending the right's elements (see DESIGN.md Open Question 2 for the
// chosen value/reference semantics); Num+Num adds.
func (vm *VM) add() error {
	b := vm.pop()
	a := vm.pop()

	if a.Tag == ValObj && b.Tag == ValObj {
		if as, ok := a.Obj.(*String); ok {
			if bs, ok := b.Obj.(*String); ok {
				vm.push(ObjValue(vm.heap.internString(as.Chars + bs.Chars)))
				return nil
			}
		}
		if aa, ok := a.Obj.(*Array); ok {
			if ba, ok := b.Obj.(*Array); ok {
				aa.Items = append(aa.Items, ba.Items...)
				vm.push(ObjValue(aa))
				return nil
			}
		}
	}
	if a.Tag == ValNumber && b.Tag == ValNumber {
		vm.push(NumberValue(a.Number + b.Number))
		return nil
	}
	return vm.runtimeError("operands must both be numbers, strings, or arrays")
}

// getProperty implements spec.md §4.4 "Property access" for OP_GET_PROPERTY.
func (vm *VM) getProperty(name string) error {
	recv := vm.peek(0)
	if recv.Tag != ValObj {
		return vm.runtimeError("only instances have properties")
	}
	switch o := recv.Obj.(type) {
	case *Instance:
		if v, ok := o.Fields[name]; ok {
			vm.pop()
			vm.push(v)
			return nil
		}
		if method, ok := o.Class.FindMethod(name); ok {
			vm.pop()
			vm.push(ObjValue(vm.heap.newBoundMethod(recv, method)))
			return nil
		}
		return vm.runtimeError("undefined property '%s'", name)
	case *Module:
		if v, ok := o.Fields[name]; ok {
			vm.pop()
			vm.push(v)
			return nil
		}
		return vm.runtimeError("undefined property '%s'", name)
	default:
		bound, err := vm.bindNativeMethod(recv, name)
		if err != nil {
			return err
		}
		vm.pop()
		vm.push(bound)
		return nil
	}
}

// setProperty implements spec.md §4.4 "OP_SET_PROPERTY": only Instance
// and Module targets are valid, and the field must already exist
// (spec.md §3 invariant 7).
func (vm *VM) setProperty(name string) error {
	value := vm.peek(0)
	target := vm.peek(1)
	if target.Tag != ValObj {
		return vm.runtimeError("only instances have fields")
	}
	switch o := target.Obj.(type) {
	case *Instance:
		t, ok := o.FieldTypes[name]
		if !ok {
			return vm.runtimeError("undefined field '%s'", name)
		}
		if !t.Matches(value) {
			return vm.runtimeError("Expected value of type %s but got %s", t.String(), typeNameOf(value))
		}
		o.Fields[name] = value
	case *Module:
		t, ok := o.FieldTypes[name]
		if !ok {
			return vm.runtimeError("undefined field '%s'", name)
		}
		if !t.Matches(value) {
			return vm.runtimeError("Expected value of type %s but got %s", t.String(), typeNameOf(value))
		}
		o.Fields[name] = value
	default:
		return vm.runtimeError("only instances have fields")
	}
	vm.pop()
	vm.pop()
	vm.push(value)
	return nil
}

// getIndex implements spec.md §4.4 "Indexing": negative indices normalize
// to count+index; out-of-range is a runtime error. Unlike SET_INDEX,
// index == count is rejected here (see DESIGN.md Open Question 3).
func (vm *VM) getIndex() error {
	idxVal := vm.pop()
	target := vm.pop()
	arr, ok := target.Obj.(*Array)
	if !ok {
		return vm.runtimeError("only arrays can be indexed")
	}
	if idxVal.Tag != ValNumber {
		return vm.runtimeError("array index must be a number")
	}
	idx := int(idxVal.Number)
	if idx < 0 {
		idx += len(arr.Items)
	}
	if idx < 0 || idx >= len(arr.Items) {
		return vm.runtimeError("array index out of range")
	}
	vm.push(arr.Items[idx])
	return nil
}

// setIndex intentionally treats index == count as in-range, reproducing
// the original's off-by-one rather than "fixing" it silently (see
// DESIGN.md Open Question 3: a reimplementation should be uniform, but
// spec.md directs us to note the behavior change rather than force it).
func (vm *VM) setIndex() error {
	value := vm.pop()
	idxVal := vm.pop()
	target := vm.pop()
	arr, ok := target.Obj.(*Array)
	if !ok {
		return vm.runtimeError("only arrays can be indexed")
	}
	if idxVal.Tag != ValNumber {
		return vm.runtimeError("array index must be a number")
	}
	idx := int(idxVal.Number)
	if idx < 0 {
		idx += len(arr.Items)
	}
	if idx < 0 || idx > len(arr.Items) {
		return vm.runtimeError("array index out of range")
	}
	if idx == len(arr.Items) {
		arr.Items = append(arr.Items, value)
	} else {
		arr.Items[idx] = value
	}
	vm.push(value)
	return nil
}
