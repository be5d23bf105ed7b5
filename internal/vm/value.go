// Package vm implements the Brace bytecode compiler and virtual machine:
// the Value/object model, the Chunk bytecode container, the single-pass
// Pratt compiler, the stack-based dispatch loop, and the tracing
// mark-sweep memory manager that roots through both of the former.
package vm

import "fmt"

// ValueTypeTag is the primary discriminator of a Value, used both by the
// tagged union itself and by DataType annotations ("Num", "Str", "Any", ...).
type ValueTypeTag byte

const (
	ValNull ValueTypeTag = iota
	ValBool
	ValNumber
	ValType // a reified DataType value
	ValObj
)

// ObjKind discriminates the heap object variants carried by ValObj values.
type ObjKind byte

const (
	ObjString ObjKind = iota
	ObjArray
	ObjFunction
	ObjClosure
	ObjUpvalueKind
	ObjNative
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjBoundNativeMethod
	ObjDataType
	ObjModule
)

// Value is Brace's tagged union. Primitives are held inline; heap objects
// are referenced through Obj, following the split the teacher's VM uses
// (a small struct for primitives, a shared interface for heap values) so
// that numbers/bools/null never need boxing.
type Value struct {
	Tag    ValueTypeTag
	Number float64
	Bool   bool
	Type   DataType
	Obj    Obj
}

// Obj is implemented by every heap object kind. Mark is the GC's tricolor
// bit: objects are allocated white, pushed gray onto the collector's
// worklist when reached from a root, and blackened once their referents
// are traced.
type Obj interface {
	Kind() ObjKind
	String() string
	isMarked() bool
	setMarked(bool)
	nextObj() Obj
	setNextObj(Obj)
}

// object is embedded by every heap object to supply the GC linkage
// (mark bit + intrusive "all objects" list pointer) described in spec.md
// §3's Lifecycle paragraph.
type object struct {
	marked bool
	next   Obj
}

func (o *object) isMarked() bool   { return o.marked }
func (o *object) setMarked(m bool) { o.marked = m }
func (o *object) nextObj() Obj     { return o.next }
func (o *object) setNextObj(n Obj) { o.next = n }

// --- constructors -----------------------------------------------------

func NullValue() Value           { return Value{Tag: ValNull} }
func BoolValue(b bool) Value     { return Value{Tag: ValBool, Bool: b} }
func NumberValue(n float64) Value { return Value{Tag: ValNumber, Number: n} }
func TypeValue(t DataType) Value { return Value{Tag: ValType, Type: t} }
func ObjValue(o Obj) Value       { return Value{Tag: ValObj, Obj: o} }

// IsFalsy implements spec.md §3 invariant 8.
func (v Value) IsFalsy() bool {
	switch v.Tag {
	case ValNull:
		return true
	case ValBool:
		return !v.Bool
	case ValNumber:
		return v.Number == 0.0
	case ValObj:
		if s, ok := v.Obj.(*String); ok {
			return len(s.Chars) == 0
		}
		return false
	default:
		return false
	}
}

// Equal implements Brace's == operator: same tag, same payload. Strings
// compare by interned identity (spec.md §3 invariant 1 makes this safe
// and equivalent to content equality).
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case ValNull:
		return true
	case ValBool:
		return v.Bool == o.Bool
	case ValNumber:
		return v.Number == o.Number
	case ValType:
		return v.Type.Equal(o.Type)
	case ValObj:
		if vs, ok := v.Obj.(*String); ok {
			if os, ok := o.Obj.(*String); ok {
				return vs == os
			}
			return false
		}
		return v.Obj == o.Obj
	}
	return false
}

func (v Value) String() string {
	switch v.Tag {
	case ValNull:
		return "null"
	case ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.Number)
	case ValType:
		return v.Type.String()
	case ValObj:
		return v.Obj.String()
	}
	return "<invalid>"
}

func formatNumber(n float64) string {
	return fmt.Sprintf("%g", n)
}

// DataType is the reified type descriptor used by annotations and
// OP_ASSERT_TYPE.
type DataType struct {
	IsAny   bool
	Kind    ValueTypeTag
	ObjKind ObjKind
	Class   *Class // set when Kind==ValObj && ObjKind==ObjInstance
	Invalid bool
}

func AnyType() DataType { return DataType{IsAny: true} }

func (t DataType) Equal(o DataType) bool {
	if t.IsAny || o.IsAny {
		return t.IsAny == o.IsAny
	}
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == ValObj && t.ObjKind != o.ObjKind {
		return false
	}
	if t.Kind == ValObj && t.ObjKind == ObjInstance {
		return t.Class == o.Class
	}
	return true
}

// Matches checks v against t per spec.md §4.4 "Runtime type assertions".
func (t DataType) Matches(v Value) bool {
	if t.IsAny {
		return true
	}
	if t.Kind != v.Tag {
		return false
	}
	if t.Kind != ValObj {
		return true
	}
	vk := v.Obj.Kind()
	if vk != t.ObjKind {
		return false
	}
	if vk == ObjInstance {
		inst := v.Obj.(*Instance)
		return t.Class == nil || classIsOrInherits(inst.Class, t.Class)
	}
	return true
}

func classIsOrInherits(c, want *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == want {
			return true
		}
	}
	return false
}

func (t DataType) String() string {
	if t.IsAny {
		return "Any"
	}
	switch t.Kind {
	case ValNull:
		return "Null"
	case ValBool:
		return "Bool"
	case ValNumber:
		return "Num"
	case ValType:
		return "Type"
	case ValObj:
		switch t.ObjKind {
		case ObjString:
			return "Str"
		case ObjArray:
			return "Arr"
		case ObjFunction, ObjClosure, ObjNative, ObjBoundMethod, ObjBoundNativeMethod:
			return "Fun"
		case ObjInstance:
			if t.Class != nil {
				return t.Class.Name
			}
			return "Instance"
		case ObjClass:
			return "Cls"
		case ObjModule:
			return "Module"
		default:
			return "Obj"
		}
	}
	return "Invalid"
}
