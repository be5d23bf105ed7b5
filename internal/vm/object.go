package vm

import (
	"fmt"
	"strings"
)

// String is Brace's immutable interned string object (spec.md §3 invariant 1).
type String struct {
	object
	Chars string
	Hash  uint32
}

func (s *String) Kind() ObjKind { return ObjString }
func (s *String) String() string { return s.Chars }

// fnv1a hashes a string the way the teacher's constant pool/string table
// would, per spec.md §3 ("cached FNV-1a hash").
func fnv1a(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Array is a growable Value sequence.
type Array struct {
	object
	Items []Value
}

func (a *Array) Kind() ObjKind { return ObjArray }
func (a *Array) String() string {
	parts := make([]string, len(a.Items))
	for i, v := range a.Items {
		if s, ok := v.Obj.(*String); ok && v.Tag == ValObj {
			parts[i] = fmt.Sprintf("%q", s.Chars)
		} else {
			parts[i] = v.String()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Function is a compiled function body: arity, upvalue count, optional
// name (absent for the top-level script), and type annotations.
type Function struct {
	object
	Arity        int
	UpvalueCount int
	Name         string // "" for the top-level script
	ReturnType   DataType
	ParamTypes   []DataType
	Chunk        *Chunk
}

func (f *Function) Kind() ObjKind { return ObjFunction }
func (f *Function) String() string {
	if f.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// UpvalueRef describes one upvalue captured by a Closure at CLOSURE time:
// either a slot in the immediately enclosing frame (IsLocal) or an index
// into the enclosing closure's own upvalue array.
type UpvalueRef struct {
	IsLocal bool
	Index   byte
}

// Closure pairs a Function with the Upvalues it captured.
type Closure struct {
	object
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) Kind() ObjKind { return ObjClosure }
func (c *Closure) String() string { return c.Function.String() }

// Upvalue is open while it points at a live VM stack slot and closed once
// the slot's scope ends and the value is hoisted into Closed.
type Upvalue struct {
	object
	Location int // stack slot index while open
	Closed   Value
	IsOpen   bool
	NextOpen *Upvalue // VM's open-upvalue list, ordered by descending Location
}

func (u *Upvalue) Kind() ObjKind  { return ObjUpvalueKind }
func (u *Upvalue) String() string { return "upvalue" }

// NativeFn is a host-implemented callable. args is a copy of the call's
// arguments taken from the VM stack (for a bound method the receiver comes
// first); its length is the argument count, which variadic natives
// validate themselves.
type NativeFn func(vm *VM, args []Value) (Value, error)

// Native wraps a host function with a declared arity (-1 means variadic;
// the native itself validates argument count).
type Native struct {
	object
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *Native) Kind() ObjKind  { return ObjNative }
func (n *Native) String() string { return fmt.Sprintf("<native %s>", n.Name) }

// FieldDefault records a class field's initializer value and declared type.
type FieldDefault struct {
	Value Value
	Type  DataType
}

// Class holds a method table and field defaults; inheritance (OP_INHERIT)
// shallow-copies both tables from the superclass (spec.md §3 invariant 6).
type Class struct {
	object
	Name    string
	Super   *Class
	Methods map[string]*Closure
	Fields  map[string]FieldDefault
}

func (c *Class) Kind() ObjKind  { return ObjClass }
func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name) }

func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		Methods: make(map[string]*Closure),
		Fields:  make(map[string]FieldDefault),
	}
}

// FindMethod walks the inheritance chain for name.
func (c *Class) FindMethod(name string) (*Closure, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if m, ok := cur.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// Instance is an object of a Class, with owned copies of the field value
// and field-type tables (spec.md §3 invariant 7).
type Instance struct {
	object
	Class      *Class
	Fields     map[string]Value
	FieldTypes map[string]DataType
}

func (i *Instance) Kind() ObjKind  { return ObjInstance }
func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name) }

// NewInstance copies field defaults and field types out of cls.
func NewInstance(cls *Class) *Instance {
	inst := &Instance{
		Class:      cls,
		Fields:     make(map[string]Value, len(cls.Fields)),
		FieldTypes: make(map[string]DataType, len(cls.Fields)),
	}
	for name, def := range cls.Fields {
		inst.Fields[name] = def.Value
		inst.FieldTypes[name] = def.Type
	}
	return inst
}

// BoundMethod pairs a receiver Value with the Closure bound to it.
type BoundMethod struct {
	object
	Receiver Value
	Method   *Closure
}

func (b *BoundMethod) Kind() ObjKind  { return ObjBoundMethod }
func (b *BoundMethod) String() string { return b.Method.String() }

// BoundNativeMethod is BoundMethod's counterpart for "method on a
// primitive" (e.g. array.Append(x)).
type BoundNativeMethod struct {
	object
	Receiver Value
	Method   *Native
}

func (b *BoundNativeMethod) Kind() ObjKind  { return ObjBoundNativeMethod }
func (b *BoundNativeMethod) String() string { return b.Method.String() }

// DataTypeObj is the heap-boxed form of a DataType used when a type value
// itself needs to live behind an Obj handle (e.g. stored in an Array).
// Plain annotations use Value{Tag: ValType} directly and never allocate
// this; Heap.newDataType creates one, and nothing in this package or in
// internal/natives calls it.
type DataTypeObj struct {
	object
	Type DataType
}

func (d *DataTypeObj) Kind() ObjKind  { return ObjDataType }
func (d *DataTypeObj) String() string { return d.Type.String() }

// Module is the abstract import unit of spec.md §6: a name, a path, and
// field + field-type tables. OP_IMPORT only reports a runtime error, so no
// script populates a Module; the ones that exist are built by natives
// (the string method ToYaml).
type Module struct {
	object
	Name       string
	Path       string
	Fields     map[string]Value
	FieldTypes map[string]DataType
}

func (m *Module) Kind() ObjKind  { return ObjModule }
func (m *Module) String() string { return fmt.Sprintf("<module %s>", m.Name) }

func NewModule(name, path string) *Module {
	return &Module{
		Name:       name,
		Path:       path,
		Fields:     make(map[string]Value),
		FieldTypes: make(map[string]DataType),
	}
}
