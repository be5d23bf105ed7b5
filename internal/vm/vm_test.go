package vm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjver/brace/internal/engine"
	"github.com/sjver/brace/internal/natives"
	"github.com/sjver/brace/internal/vm"
)

func run(t *testing.T, src string) (string, vm.Value, error) {
	t.Helper()
	eng := engine.New()
	var out strings.Builder
	eng.SetOutput(&out)
	result, err := eng.Run(src, "<test>")
	return out.String(), result, err
}

func TestArithmeticIsDeterministic(t *testing.T) {
	src := `Print (1 + 2) * 3 - 4 / 2;`
	out1, _, err1 := run(t, src)
	out2, _, err2 := run(t, src)
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, out1, out2)
	require.Equal(t, "7", out1)
}

func TestStringInterningPointerEquality(t *testing.T) {
	machine := vm.New()
	a := machine.Heap().InternString("hello")
	b := machine.Heap().InternString("hello")
	require.True(t, a == b, "equal-content strings must intern to the same object")

	c := machine.Heap().InternString("world")
	require.False(t, a == c)
}

func TestNumToStrToNumRoundTrip(t *testing.T) {
	out, _, err := run(t, `Print Str(3.5).ToNum();`)
	require.NoError(t, err)
	require.Equal(t, "3.5", out)
}

func TestArrayAppendAndLength(t *testing.T) {
	out, _, err := run(t, `
		Var a = [1, 2, 3];
		a.Append(4);
		PrintLn a.Length();
		Print a;
	`)
	require.NoError(t, err)
	require.Equal(t, "4\n[1, 2, 3, 4]", out)
}

func TestArrayPopAndRemove(t *testing.T) {
	out, _, err := run(t, `
		Var a = [1, 2, 3];
		PrintLn a.Pop();
		PrintLn a.Remove(0);
		Print a;
	`)
	require.NoError(t, err)
	require.Equal(t, "3\n1\n[2]", out)
}

func TestNegativeArrayIndexing(t *testing.T) {
	out, _, err := run(t, `Print [10, 20, 30][-1];`)
	require.NoError(t, err)
	require.Equal(t, "30", out)
}

func TestAnnotatedVariableAssertTypeRejectsMismatch(t *testing.T) {
	_, _, err := run(t, `Var x: Num = "nope";`)
	require.Error(t, err)
	_, ok := err.(*vm.RuntimeError)
	require.True(t, ok, "expected a *vm.RuntimeError, got %T", err)
}

func TestAnnotatedVariableAcceptsMatchingType(t *testing.T) {
	out, _, err := run(t, `Var x: Num = 5; Print x;`)
	require.NoError(t, err)
	require.Equal(t, "5", out)
}

func TestClassSingleInheritanceAndSuper(t *testing.T) {
	out, _, err := run(t, `
		Cls Animal {
			Fun speak() {
				PrintLn "...";
			}
		}
		Cls Dog < Animal {
			Fun speak() {
				super.speak();
				Print "Woof";
			}
		}
		Var d = Dog();
		d.speak();
	`)
	require.NoError(t, err)
	require.Equal(t, "...\nWoof", out)
}

func TestSelfInheritanceIsCompileError(t *testing.T) {
	_, _, err := run(t, `Cls Loop < Loop {}`)
	require.Error(t, err)
	_, ok := err.(*vm.CompileError)
	require.True(t, ok, "expected a *vm.CompileError, got %T", err)
}

func TestReturnValueInsideInitIsCompileError(t *testing.T) {
	_, _, err := run(t, `
		Cls Thing {
			Fun Init() {
				Return 1;
			}
		}
	`)
	require.Error(t, err)
	_, ok := err.(*vm.CompileError)
	require.True(t, ok, "expected a *vm.CompileError, got %T", err)
}

func TestClosureCapturesLoopVariableByReference(t *testing.T) {
	// Brace's For loop variable is a single stack slot reused across
	// iterations, so closures created in the loop body share one upvalue
	// and observe its final value, matching the teacher's upvalue model.
	out, _, err := run(t, `
		Var fns = [];
		For (Var i = 0; i < 3; i = i + 1) {
			Fun capture() { PrintLn i; }
			fns.Append(capture);
		}
		fns[0]();
		fns[1]();
		fns[2]();
	`)
	require.NoError(t, err)
	require.Equal(t, "3\n3\n3\n", out)
}

func TestForeachIteratesArray(t *testing.T) {
	out, _, err := run(t, `
		Foreach (x : [1, 2, 3]) {
			PrintLn x;
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestExitStatementPropagatesCode(t *testing.T) {
	_, _, err := run(t, `Exit 3;`)
	require.Error(t, err)
	exitErr, ok := err.(*vm.ExitError)
	require.True(t, ok, "expected a *vm.ExitError, got %T", err)
	require.Equal(t, 3, exitErr.Code)
}

func TestInfiniteForLoopTerminatedByInternalExit(t *testing.T) {
	out, _, err := run(t, `
		Var i = 0;
		For (;;) {
			i = i + 1;
			If (i == 5) {
				PrintLn i;
				Exit 0;
			}
		}
	`)
	require.Equal(t, "5\n", out)
	exitErr, ok := err.(*vm.ExitError)
	require.True(t, ok)
	require.Equal(t, 0, exitErr.Code)
}

func TestTernaryAndCompoundAssignment(t *testing.T) {
	out, _, err := run(t, `
		Var x = 10;
		x += 5;
		PrintLn x > 10 ? "big" : "small";
		Print x;
	`)
	require.NoError(t, err)
	require.Equal(t, "big\n15", out)
}

func TestPostfixIncrementWritesBack(t *testing.T) {
	out, _, err := run(t, `
		Var x = 1;
		x++;
		x++;
		Print x;
	`)
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

func TestRuntimeErrorReportIncludesStackTrace(t *testing.T) {
	_, _, err := run(t, `
		Fun boom() {
			Return [1, 2][5];
		}
		boom();
	`)
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	report := rerr.Report()
	require.Contains(t, report, "boom()")
	require.Contains(t, report, "script")
}

func TestGCStressDoesNotCorruptState(t *testing.T) {
	machine := vm.New()
	natives.Install(machine)
	machine.Heap().StressGC = true
	var out strings.Builder
	machine.SetOutput(&out)

	_, err := machine.Interpret(`
		Var sum = 0;
		For (Var i = 0; i < 200; i = i + 1) {
			Var s = Str(i);
			sum = sum + s.ToNum();
		}
		Print sum;
	`, "<stress>")
	require.NoError(t, err)
	require.Equal(t, "19900", out.String())
}
