package ilsyntax

import (
	"github.com/alecthomas/participle/v2"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
)

// Parse lexes and parses source under filename, then lowers the
// resulting AST into a CFG and metadata store, the way
// grammar.ParseFile builds-then-parses in one call rather than caching
// a package-level parser.
func Parse(filename, source string) (*il.CFG, *ilmeta.Store, error) {
	parser, err := participle.Build[Program](
		participle.Lexer(ILLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(3),
	)
	if err != nil {
		return nil, nil, err
	}

	program, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, nil, translateParseError(filename, source, err)
	}
	return lower(program)
}

// translateParseError turns a participle error into the workbench's
// own diagnostic shape: it extracts a position and renders a caret
// instead of letting the raw participle error escape to the caller.
func translateParseError(filename, source string, err error) *diag.Error {
	pe, ok := err.(participle.Error)
	if !ok {
		return diag.New(diag.KindSyntaxError, "%s", err)
	}
	pos := pe.Position()
	de := diag.New(diag.KindSyntaxError, "%s", pe.Message())
	de.WithPos(diag.Position{Filename: filename, Line: pos.Line, Column: pos.Column}, 1)
	return de
}
