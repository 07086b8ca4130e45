// Package ildbg implements a line-oriented interactive debugger: an
// embedder of internal/interp that drives the cooperative breakpoint
// suspension points through a REPL on the process's own stdin/stdout.
// internal/interp never assumes any particular embedder exists.
package ildbg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"ilforge/internal/interp"
)

// Debugger drives one interpreter run's breakpoint callbacks. It holds
// no interpreter state of its own beyond what each Snapshot hands it;
// Resume/Step decisions are entirely local to the current suspension.
type Debugger struct {
	in         *bufio.Scanner
	out        io.Writer
	continuing bool
}

// New creates a debugger reading commands from in and writing prompts
// and output to out.
func New(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{in: bufio.NewScanner(in), out: out}
}

// OnBreakpoint is an interp.BreakpointFunc: wire it to
// interp.Options.OnBreakpoint to suspend at every Brkpt instruction.
// Once the user has typed "continue", OnBreakpoint stops prompting for
// the rest of the run — every later Brkpt still fires the callback,
// but it returns immediately.
func (d *Debugger) OnBreakpoint(s interp.Snapshot) {
	if d.continuing {
		return
	}
	fmt.Fprintf(d.out, "breakpoint %s at @%s[%d]\n", s.Name, s.PC.Block, s.PC.Index)

	for {
		fmt.Fprint(d.out, "(ildbg) ")
		if !d.in.Scan() {
			return
		}
		line := strings.TrimSpace(d.in.Text())
		switch {
		case line == "continue":
			d.continuing = true
			return
		case line == "step", line == "":
			return
		case line == "quit":
			os.Exit(0)
		case strings.HasPrefix(line, "print "):
			d.printRegister(s, strings.TrimSpace(strings.TrimPrefix(line, "print ")))
		default:
			fmt.Fprintf(d.out, "unknown command %q (try: print %%reg, step, continue, quit)\n", line)
		}
	}
}

func (d *Debugger) printRegister(s interp.Snapshot, arg string) {
	name := strings.TrimPrefix(arg, "%")
	v, ok := s.Env[name]
	if !ok {
		fmt.Fprintf(d.out, "%%%s is unbound\n", name)
		return
	}
	fmt.Fprintf(d.out, "%%%s = %s\n", name, v)
}
