package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats diagnostics against a known source file, rendering
// Rust-style caret diagnostics. It is also the embedder-supplied
// "debug sink": every raised error is recorded here regardless of
// whether it is ultimately surfaced to the user, so Record is the
// single funnel both the CLI and the language server drain from.
type Reporter struct {
	filename string
	lines    []string
	recorded []*Error
}

// NewReporter creates a reporter bound to one source file's text. An
// empty filename/source is valid: it is used for errors raised by the
// core (CFG/interpreter/pass manager) that carry no position.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Record appends err to the debug channel without printing it. The
// pass manager (once SetReporter wires it), cmd/ilc, and the language
// server call this on the *Error values they receive.
func (r *Reporter) Record(err *Error) {
	r.recorded = append(r.recorded, err)
}

// Recorded returns every diagnostic recorded so far, in raise order.
func (r *Reporter) Recorded() []*Error {
	return r.recorded
}

// Format renders one diagnostic as a colorized, caret-annotated block.
func (r *Reporter) Format(err *Error) string {
	var out strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", red("error"), err.Kind, err.Message))

	if err.Pos == nil {
		out.WriteString("\n")
		return out.String()
	}

	width := lineNumberWidth(err.Pos.Line)
	indent := strings.Repeat(" ", width)
	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), err.Pos.Filename, err.Pos.Line, err.Pos.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("|")))

	if err.Pos.Line >= 1 && err.Pos.Line <= len(r.lines) {
		line := r.lines[err.Pos.Line-1]
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(pad(err.Pos.Line, width)), dim("|"), line))

		length := err.Length
		if length <= 0 {
			length = 1
		}
		marker := strings.Repeat(" ", max0(err.Pos.Column-1)) + red(strings.Repeat("^", length))
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("|"), marker))
	}

	for _, note := range err.Notes {
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("|"), color.New(color.FgBlue).Sprint("note:"), note))
	}
	if err.Help != "" {
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("|"), color.New(color.FgGreen).Sprint("help:"), err.Help))
	}
	out.WriteString("\n")
	return out.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}

func pad(line, width int) string { return fmt.Sprintf("%*d", width, line) }

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
