package interp

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ilforge/internal/value"
)

// InputSource yields the next decimal integer from the interpreter's
// whitespace-separated input stream, or reports EOF.
type InputSource interface {
	Next() (value.Int, error)
}

// OutputSink accepts one decimal integer per Write instruction,
// emitted one per line on the underlying stream.
type OutputSink interface {
	Emit(value.Int) error
}

// TraceSink receives one (block, index, kind) entry per executed
// instruction when tracing is enabled.
type TraceSink interface {
	Trace(block string, index int, kind string)
}

// CancellationToken is checked cooperatively between instructions (at
// minimum on every branch) and is how an embedder implements
// cancellation and, on top of it, timeouts.
type CancellationToken interface {
	Cancelled() bool
}

// NoCancellation never cancels; the zero value is ready to use.
type NoCancellation struct{}

func (NoCancellation) Cancelled() bool { return false }

// StreamInput reads whitespace-separated decimal/hex integers from an
// io.Reader using a bufio.Scanner word-split, matching the surface
// integer literal format.
type StreamInput struct {
	scanner *bufio.Scanner
}

func NewStreamInput(r io.Reader) *StreamInput {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &StreamInput{scanner: s}
}

func (s *StreamInput) Next() (value.Int, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return value.Int{}, err
		}
		return value.Int{}, io.EOF
	}
	tok := s.scanner.Text()
	v, err := value.FromString(tok)
	if err != nil {
		return value.Int{}, fmt.Errorf("malformed input token %q: %w", tok, err)
	}
	return v, nil
}

// SliceInput serves a fixed, pre-parsed sequence of values — the form
// most tests and cmd/ilc's --in option use.
type SliceInput struct {
	values []value.Int
	pos    int
}

func NewSliceInput(values ...value.Int) *SliceInput {
	return &SliceInput{values: values}
}

func (s *SliceInput) Next() (value.Int, error) {
	if s.pos >= len(s.values) {
		return value.Int{}, io.EOF
	}
	v := s.values[s.pos]
	s.pos++
	return v, nil
}

// LineOutput writes one decimal integer per line to an io.Writer.
type LineOutput struct {
	w io.Writer
}

func NewLineOutput(w io.Writer) *LineOutput { return &LineOutput{w: w} }

func (o *LineOutput) Emit(v value.Int) error {
	_, err := fmt.Fprintf(o.w, "%s\n", v)
	return err
}

// CollectOutput accumulates emitted values in memory, the way test
// assertions want to compare against an expected sequence.
type CollectOutput struct {
	Values []value.Int
}

func (o *CollectOutput) Emit(v value.Int) error {
	o.Values = append(o.Values, v)
	return nil
}

// Lines renders the collected output the way LineOutput would have
// written it, for string-diff assertions against scenario fixtures.
func (o *CollectOutput) Lines() string {
	var sb strings.Builder
	for _, v := range o.Values {
		sb.WriteString(v.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// SliceTrace collects trace entries in memory.
type SliceTrace struct {
	Entries []TraceEntry
}

type TraceEntry struct {
	Block string
	Index int
	Kind  string
}

func (t *SliceTrace) Trace(block string, index int, kind string) {
	t.Entries = append(t.Entries, TraceEntry{Block: block, Index: index, Kind: kind})
}
