// Package natives installs Brace's native functions and primitive
// methods into a *vm.VM. Keeping this as a separate package (rather than
// hardcoding natives inside internal/vm) mirrors spec.md §9's "no global
// singletons" engine design and avoids an import cycle: internal/vm
// exposes the registration hooks (DefineNative/RegisterStringMethod/
// RegisterArrayMethod), this package supplies the bodies.
package natives

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sjver/brace/internal/vm"
)

var stdin = bufio.NewReader(os.Stdin)

// Install registers every native function and primitive method on vm.
func Install(machine *vm.VM) {
	machine.DefineNative("Clock", 0, nativeClock)
	machine.DefineNative("Sleep", 1, nativeSleep)
	machine.DefineNative("Str", 1, nativeStr)
	machine.DefineNative("Uuid", 0, nativeUuid)
	machine.DefineNative("GetInput", 0, nativeGetInput)

	// Method arities count the receiver, which the VM passes as args[0].
	machine.RegisterStringMethod("ToNum", 1, methodToNum)
	machine.RegisterStringMethod("ToYaml", 1, methodStringToYaml)
	machine.RegisterStringMethod("Length", 1, methodStringLength)

	machine.RegisterArrayMethod("Append", 2, methodArrayAppend)
	machine.RegisterArrayMethod("Prepend", 2, methodArrayPrepend)
	machine.RegisterArrayMethod("Insert", 3, methodArrayInsert)
	machine.RegisterArrayMethod("Pop", 1, methodArrayPop)
	machine.RegisterArrayMethod("Remove", 2, methodArrayRemove)
	machine.RegisterArrayMethod("Length", 1, methodArrayLength)
}

// nativeClock returns the number of seconds since the Unix epoch, as a
// float, matching clox's clock() and spec.md's "wall-clock timing"
// ambient need.
func nativeClock(_ *vm.VM, _ []vm.Value) (vm.Value, error) {
	return vm.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

// nativeSleep blocks for ms milliseconds.
func nativeSleep(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	if args[0].Tag != vm.ValNumber {
		return vm.Value{}, fmt.Errorf("Sleep expects a Num argument")
	}
	time.Sleep(time.Duration(args[0].Number) * time.Millisecond)
	return vm.NullValue(), nil
}

// nativeStr renders any value using its normal String() formatting and
// interns the result, so Str(v) participates in the string-interning
// invariant like any other string-producing operation.
func nativeStr(m *vm.VM, args []vm.Value) (vm.Value, error) {
	return vm.ObjValue(m.Heap().InternString(args[0].String())), nil
}

// nativeUuid returns a random (v4) UUID string, grounded on the
// teacher's virtual-package Uuid() helper, wired here to a real
// google/uuid generator instead of a stub.
func nativeUuid(m *vm.VM, _ []vm.Value) (vm.Value, error) {
	id := uuid.NewString()
	return vm.ObjValue(m.Heap().InternString(id)), nil
}

// nativeGetInput reads one line from stdin, trimming the trailing
// newline, for simple REPL/script interactivity.
func nativeGetInput(m *vm.VM, _ []vm.Value) (vm.Value, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return vm.ObjValue(m.Heap().InternString("")), nil
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return vm.ObjValue(m.Heap().InternString(line)), nil
}

// methodToNum parses the receiver string as a Brace Num, per spec.md
// §4.4's "Str.ToNum()" primitive method.
func methodToNum(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	str, ok := args[0].Obj.(*vm.String)
	if !ok {
		return vm.Value{}, fmt.Errorf("ToNum receiver must be a Str")
	}
	n, err := strconv.ParseFloat(str.Chars, 64)
	if err != nil {
		return vm.Value{}, fmt.Errorf("cannot convert %q to Num", str.Chars)
	}
	return vm.NumberValue(n), nil
}

func methodStringLength(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	str := args[0].Obj.(*vm.String)
	return vm.NumberValue(float64(len(str.Chars))), nil
}

// methodStringToYaml parses the receiver as a YAML document and returns
// the result as a Brace Module whose fields mirror the document's
// top-level mapping, grounded on the teacher's yaml.v3-backed decoder.
func methodStringToYaml(m *vm.VM, args []vm.Value) (vm.Value, error) {
	str, ok := args[0].Obj.(*vm.String)
	if !ok {
		return vm.Value{}, fmt.Errorf("ToYaml receiver must be a Str")
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(str.Chars), &doc); err != nil {
		return vm.Value{}, fmt.Errorf("YAML parse error: %v", err)
	}
	mod := m.Heap().NewModule("yaml", "<string>")
	for k, v := range doc {
		val, typ := fromYamlValue(m, v)
		mod.Fields[k] = val
		mod.FieldTypes[k] = typ
	}
	return vm.ObjValue(mod), nil
}

func fromYamlValue(m *vm.VM, v interface{}) (vm.Value, vm.DataType) {
	switch x := v.(type) {
	case nil:
		return vm.NullValue(), vm.AnyType()
	case bool:
		return vm.BoolValue(x), vm.AnyType()
	case int:
		return vm.NumberValue(float64(x)), vm.AnyType()
	case float64:
		return vm.NumberValue(x), vm.AnyType()
	case string:
		return vm.ObjValue(m.Heap().InternString(x)), vm.AnyType()
	case []interface{}:
		items := make([]vm.Value, len(x))
		for i, item := range x {
			items[i], _ = fromYamlValue(m, item)
		}
		return vm.ObjValue(m.Heap().NewArrayPublic(items)), vm.AnyType()
	default:
		return vm.ObjValue(m.Heap().InternString(fmt.Sprintf("%v", x))), vm.AnyType()
	}
}

// methodArrayAppend mutates the receiver array in place and returns it,
// matching the reference/mutate semantics documented for Arr in
// DESIGN.md Open Question 2.
func methodArrayAppend(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	arr.Items = append(arr.Items, args[1])
	return args[0], nil
}

func methodArrayPrepend(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	arr.Items = append([]vm.Value{args[1]}, arr.Items...)
	return args[0], nil
}

func methodArrayInsert(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	if args[1].Tag != vm.ValNumber {
		return vm.Value{}, fmt.Errorf("Insert index must be a Num")
	}
	idx := int(args[1].Number)
	if idx < 0 || idx > len(arr.Items) {
		return vm.Value{}, fmt.Errorf("array index out of range")
	}
	arr.Items = append(arr.Items, vm.Value{})
	copy(arr.Items[idx+1:], arr.Items[idx:])
	arr.Items[idx] = args[2]
	return args[0], nil
}

func methodArrayPop(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	if len(arr.Items) == 0 {
		return vm.Value{}, fmt.Errorf("Pop on empty array")
	}
	last := arr.Items[len(arr.Items)-1]
	arr.Items = arr.Items[:len(arr.Items)-1]
	return last, nil
}

func methodArrayRemove(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	if args[1].Tag != vm.ValNumber {
		return vm.Value{}, fmt.Errorf("Remove index must be a Num")
	}
	idx := int(args[1].Number)
	if idx < 0 {
		idx += len(arr.Items)
	}
	if idx < 0 || idx >= len(arr.Items) {
		return vm.Value{}, fmt.Errorf("array index out of range")
	}
	removed := arr.Items[idx]
	arr.Items = append(arr.Items[:idx], arr.Items[idx+1:]...)
	return removed, nil
}

func methodArrayLength(_ *vm.VM, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.Array)
	return vm.NumberValue(float64(len(arr.Items))), nil
}
