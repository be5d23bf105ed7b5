package vm_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjver/brace/internal/vm"
)

func compile(t *testing.T, src string) (vm.Value, *vm.CompileError) {
	t.Helper()
	machine := vm.New()
	_, err := vm.Compile(src, machine.Heap())
	if err == nil {
		return vm.Value{}, nil
	}
	cerr, ok := err.(*vm.CompileError)
	require.True(t, ok, "expected *vm.CompileError, got %T: %v", err, err)
	return vm.Value{}, cerr
}

func TestCompileConstantPoolBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 256; i++ {
		fmt.Fprintf(&b, "Print %d;\n", i+1000)
	}
	_, err := compile(t, b.String())
	require.Nil(t, err, "256 distinct constants should compile without error")

	b.Reset()
	for i := 0; i < 260; i++ {
		fmt.Fprintf(&b, "Print %d;\n", i+1000)
	}
	_, err = compile(t, b.String())
	require.NotNil(t, err, "a 257th constant in one chunk must be a compile error")
	require.NotEmpty(t, err.Diagnostics)
}

func TestSelfInheritanceCompileError(t *testing.T) {
	_, err := compile(t, `Cls A < A {}`)
	require.NotNil(t, err)
}

func TestReturnValueInInitializerCompileError(t *testing.T) {
	_, err := compile(t, `
		Cls Thing {
			Fun Init() { Return 5; }
		}
	`)
	require.NotNil(t, err)
}

func TestReturnOutsideFunctionCompileError(t *testing.T) {
	_, err := compile(t, `Return 1;`)
	require.NotNil(t, err)
}

func TestReadLocalInOwnInitializerCompileError(t *testing.T) {
	_, err := compile(t, `
		Fun f() {
			Var x = x;
		}
	`)
	require.NotNil(t, err)
}

func TestInvalidAssignmentTargetCompileError(t *testing.T) {
	_, err := compile(t, `1 + 2 = 3;`)
	require.NotNil(t, err)
}

func TestPostfixOnNonAssignableTargetCompileError(t *testing.T) {
	_, err := compile(t, `(1 + 2)++;`)
	require.NotNil(t, err)
}

func TestPanicModeRecoversAtNextStatement(t *testing.T) {
	// The first statement is malformed; synchronize() should resume
	// scanning at the following `Var` so exactly one error is reported
	// rather than the parser cascading into nonsense for the rest of the file.
	_, err := compile(t, `
		Var x = ;
		Var y = 1;
	`)
	require.NotNil(t, err)
	require.Len(t, err.Diagnostics, 1)
}

func TestValidProgramCompilesCleanly(t *testing.T) {
	_, err := compile(t, `
		Cls Animal {
			Var name: Str = "";
			Fun greet() {
				Print "Hi, " + this.name;
			}
		}
		Var a = Animal();
		a.name = "Rex";
		a.greet();
	`)
	require.Nil(t, err)
}
