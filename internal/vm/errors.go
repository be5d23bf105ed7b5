package vm

import "fmt"

// CompileError is returned by Compile when the source had one or more
// errors; spec.md §7 requires no Function be produced in that case.
type CompileError struct {
	Diagnostics []string
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compile error"
	}
	return e.Diagnostics[0]
}

// StackFrame is one entry of a RuntimeError's trace, deepest first.
type StackFrame struct {
	Line int
	Name string // function name, or "" for the top-level script
}

// RuntimeError is returned by Run when execution fails; spec.md §7
// requires the message plus a per-frame trace, deepest frame first.
type RuntimeError struct {
	Message string
	Trace   []StackFrame
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Report renders the error the way spec.md §7 specifies:
//
//	<message>
//	[line N] in <name>()
//	[line N] in script
func (e *RuntimeError) Report() string {
	out := e.Message + "\n"
	for _, f := range e.Trace {
		if f.Name == "" {
			out += fmt.Sprintf("[line %d] in script\n", f.Line)
		} else {
			out += fmt.Sprintf("[line %d] in %s()\n", f.Line, f.Name)
		}
	}
	return out
}

// ExitError is the sentinel returned by Interpret to propagate the Exit
// statement's process-termination semantics up through Go's call stack
// instead of calling os.Exit deep inside the dispatch loop.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit(%d)", e.Code) }
