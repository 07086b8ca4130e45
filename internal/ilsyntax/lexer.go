// Package ilsyntax implements the textual surface syntax of the IL: a
// participle-based lexer and grammar, an AST-to-CFG lowering pass, and
// a pretty-printer. Nothing in internal/il, internal/interp, or
// internal/passmgr depends on this package — the core model has no
// textual representation of its own, only this optional front end.
package ilsyntax

import "github.com/alecthomas/participle/v2/lexer"

// ILLexer tokenizes the surface grammar. The three metadata-prefix
// rules must precede the generic line-comment rule so a metadata line
// isn't swallowed whole by it, the ordering discipline any stateful
// lexer with overlapping prefix rules depends on. Integer precedes
// Ident for the same reason: Ident's [.\w]+ also matches a digit run.
var ILLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"MetaCFG", `;#!`, nil},
		{"MetaBlock", `;@!`, nil},
		{"MetaInstr", `;%!`, nil},
		{"Comment", `;[^\n]*`, nil},

		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Integer", `-?(0x[0-9a-fA-F]+|[0-9]+)`, nil},
		{"Ident", `[.\w]+`, nil},

		{"Operator", `(<<|>>|==|!=|<=|>=|[-+*/%&|^<>~])`, nil},
		{"Punctuation", `[%@=:,\[\]()?!]`, nil},

		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
