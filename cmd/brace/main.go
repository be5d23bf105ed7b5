// Command brace is the Brace language CLI: `brace` with no arguments
// starts a REPL, `brace <path>` runs a file (spec.md §9 "CLI").
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/sjver/brace/internal/engine"
	"github.com/sjver/brace/internal/vm"
)

func main() {
	switch len(os.Args) {
	case 1:
		runRepl()
	case 2:
		runFile(os.Args[1])
	default:
		fmt.Fprintln(os.Stderr, "usage: brace [path]")
		os.Exit(64)
	}
}

func runFile(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file '%s': %s\n", path, err)
		os.Exit(64)
	}

	eng := engine.New()
	_, err = eng.Run(string(src), path)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor implements spec.md §9's CLI exit-code contract, reporting
// the error to stderr in the format spec.md §7 specifies.
func exitCodeFor(err error) int {
	switch e := err.(type) {
	case nil:
		return 0
	case *vm.ExitError:
		return e.Code
	case *vm.CompileError:
		for _, d := range e.Diagnostics {
			fmt.Fprintln(os.Stderr, d)
		}
		return 65
	case *vm.RuntimeError:
		fmt.Fprint(os.Stderr, e.Report())
		return 70
	default:
		fmt.Fprintln(os.Stderr, err.Error())
		return 70
	}
}

// runRepl implements spec.md §9's line-buffered REPL: input accumulates
// until brace depth returns to zero, then is submitted as a single unit.
// The prompt is suppressed on non-interactive stdin (piped input),
// matching the teacher's go-isatty-gated prompting.
func runRepl() {
	eng := engine.New()
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	reader := bufio.NewReader(os.Stdin)

	var buf strings.Builder
	depth := 0

	for {
		if interactive {
			if depth == 0 {
				fmt.Print("brc:> ")
			} else {
				fmt.Print("...   ")
			}
		}

		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		depth += braceDelta(line)

		buf.WriteString(line)
		buf.WriteByte('\n')

		if depth <= 0 {
			src := buf.String()
			buf.Reset()
			depth = 0
			if strings.TrimSpace(src) != "" {
				result, runErr := eng.Run(src, "<repl>")
				if runErr != nil {
					if exitErr, ok := runErr.(*vm.ExitError); ok {
						os.Exit(exitErr.Code)
					}
					_ = exitCodeFor(runErr) // only the stderr report is wanted; REPL keeps going
					continue
				}
				fmt.Println(result.String())
			}
		}

		if err != nil {
			return
		}
	}
}

func braceDelta(line string) int {
	delta := 0
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inString = !inString
		case '{':
			if !inString {
				delta++
			}
		case '}':
			if !inString {
				delta--
			}
		}
	}
	return delta
}
