// Package engine wires together a lexer/compiler/VM pipeline and the
// native registry into a single reusable unit, per spec.md §9: no
// package-level singletons, so a host (file-mode CLI, REPL, or an
// embedder running several independent programs) can construct as many
// Engines as it needs.
package engine

import (
	"io"

	"github.com/sjver/brace/internal/natives"
	"github.com/sjver/brace/internal/vm"
)

// Engine owns one VM instance with natives installed.
type Engine struct {
	machine *vm.VM
}

// New constructs a ready-to-use Engine.
func New() *Engine {
	machine := vm.New()
	natives.Install(machine)
	return &Engine{machine: machine}
}

// SetOutput redirects Print/PrintLn output, e.g. for test capture.
func (e *Engine) SetOutput(w io.Writer) { e.machine.SetOutput(w) }

// Run compiles and executes src, recording scriptPath into the _SCRIPT
// native variable for the duration of the call (spec.md §4.4).
func (e *Engine) Run(src, scriptPath string) (vm.Value, error) {
	return e.machine.Interpret(src, scriptPath)
}
