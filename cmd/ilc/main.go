// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ildbg"
	"ilforge/internal/ilmeta"
	"ilforge/internal/ilsyntax"
	"ilforge/internal/interp"
	"ilforge/internal/passes"
	"ilforge/internal/passmgr"
	"ilforge/internal/value"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	path := os.Args[2]
	reporter := newFileReporter(path)

	var err error
	switch os.Args[1] {
	case "parse":
		err = runParse(path)
	case "run":
		err = runRun(path, os.Args[3:])
	case "opt":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = runOpt(path, os.Args[3], reporter)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		reportErr(reporter, err)
		os.Exit(1)
	}
}

// newFileReporter builds the reporter for path, the debug sink every
// error raised while handling this invocation is recorded to
// regardless of whether it's ultimately printed.
func newFileReporter(path string) *diag.Reporter {
	source := ""
	if raw, readErr := os.ReadFile(path); readErr == nil {
		source = string(raw)
	}
	return diag.NewReporter(path, source)
}

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  ilc parse <file.il>")
	fmt.Println("  ilc run <file.il> [--in=v1,v2,...] [--trace] [--dbg]")
	fmt.Println("  ilc opt <file.il> <pipeline-spec>")
}

func parseFile(path string) (string, *il.CFG, *ilmeta.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, nil, err
	}
	source := string(raw)
	cfg, meta, err := ilsyntax.Parse(path, source)
	return source, cfg, meta, err
}

func runParse(path string) error {
	_, cfg, meta, err := parseFile(path)
	if err != nil {
		return err
	}
	fmt.Print(ilsyntax.Print(cfg, meta))
	color.Green("parsed %s: %d block(s)", path, len(cfg.Blocks()))
	return nil
}

func runRun(path string, args []string) error {
	_, cfg, _, err := parseFile(path)
	if err != nil {
		return err
	}

	var inTokens []string
	trace := false
	dbg := false
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--in="):
			inTokens = strings.Split(strings.TrimPrefix(a, "--in="), ",")
		case a == "--trace":
			trace = true
		case a == "--dbg":
			dbg = true
		}
	}

	inputSrc, err := buildInput(inTokens)
	if err != nil {
		return err
	}
	out := interp.NewLineOutput(os.Stdout)

	opts := interp.Options{EnableTrace: trace}
	var traceSink interp.TraceSink
	if trace {
		traceSink = traceLogger{}
	}
	if dbg {
		debugger := ildbg.New(os.Stdin, os.Stdout)
		opts.EnableBreakpoints = true
		opts.OnBreakpoint = debugger.OnBreakpoint
	}

	it := interp.New(cfg, opts)
	if err := it.Run(inputSrc, out, traceSink, interp.NoCancellation{}); err != nil {
		return err
	}
	color.Green("run finished: %s", path)
	return nil
}

func runOpt(path, pipelineSpec string, reporter *diag.Reporter) error {
	_, cfg, meta, err := parseFile(path)
	if err != nil {
		return err
	}

	m := passmgr.New(cfg, meta)
	if err := passes.RegisterAll(m); err != nil {
		return err
	}
	m.SetDebugSink(cliDebugSink{})
	m.SetReporter(reporter)

	pipeline, err := passmgr.NewPipeline(splitPipelineSpec(pipelineSpec))
	if err != nil {
		return err
	}
	if _, err := pipeline.Run(m, interp.NoCancellation{}); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Print(ilsyntax.Print(cfg, meta))
	color.Green("ran pipeline %q over %s", pipelineSpec, path)
	return nil
}

func buildInput(tokens []string) (interp.InputSource, error) {
	if len(tokens) == 0 || (len(tokens) == 1 && tokens[0] == "") {
		return interp.NewStreamInput(os.Stdin), nil
	}
	values := make([]value.Int, len(tokens))
	for i, tok := range tokens {
		v, err := value.FromString(strings.TrimSpace(tok))
		if err != nil {
			return nil, diag.New(diag.KindSyntaxError, "malformed --in value %q: %s", tok, err)
		}
		values[i] = v
	}
	return interp.NewSliceInput(values...), nil
}

// splitPipelineSpec splits a comma-separated pipeline-spec string into
// one surface string per pass query, respecting parenthesized
// argument lists so "copyprop(threshold=4), dce" splits into two
// queries rather than three.
func splitPipelineSpec(spec string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range spec {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(spec[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(spec[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func reportErr(r *diag.Reporter, err error) {
	de, ok := err.(*diag.Error)
	if !ok {
		color.Red("error: %s", err)
		return
	}
	r.Record(de)
	fmt.Print(r.Format(de))
}

type traceLogger struct{}

func (traceLogger) Trace(block string, index int, kind string) {
	fmt.Fprintf(os.Stderr, "trace: @%s[%d] %s\n", block, index, kind)
}

type cliDebugSink struct{}

func (cliDebugSink) Event(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "opt: "+format+"\n", args...)
}
