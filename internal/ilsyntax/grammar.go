package ilsyntax

// Program is the root of the surface grammar: an ordered sequence of
// CFG-scope metadata lines and block declarations. Order is
// significant to lowering's "attaches to the most recent instruction"
// metadata rule (see lower.go).
type Program struct {
	Items []*TopItem `@@*`
}

type TopItem struct {
	Meta  *CFGMetaLine `  @@`
	Block *BlockDecl   `| @@`
}

// CFGMetaLine is a ";#! key = "v1", "v2"` metadata line at CFG scope.
type CFGMetaLine struct {
	Key    string   `MetaCFG @Ident "="`
	Values []string `@String { "," @String }`
}

type BlockDecl struct {
	Label string      `"@" @Ident ":"`
	Items []*BlockItem `@@*`
}

type BlockItem struct {
	Meta  *ScopedMetaLine `  @@`
	Instr *InstrLine      `| @@`
}

// ScopedMetaLine is a ";@! ..." (block scope) or ";%! ..." (instruction
// scope) metadata line; Scope carries which marker matched.
type ScopedMetaLine struct {
	Scope  string   `@(MetaBlock | MetaInstr)`
	Key    string   `@Ident "="`
	Values []string `@String { "," @String }`
}

// InstrLine is one instruction or terminator.
type InstrLine struct {
	Assign *AssignLine `  @@`
	Goto   *GotoLine   `| @@`
	Branch *BranchLine `| @@`
	Exit   *ExitLine   `| @@`
	Read   *ReadLine   `| @@`
	Write  *WriteLine  `| @@`
	Brkpt  *BrkptLine  `| @@`
}

// AssignLine covers Move, BinOp, and Phi, all of which share the
// "%dst = ..." prefix; RHS disambiguates itself by what follows.
type AssignLine struct {
	Dst string `"%" @Ident "="`
	Rhs *Rhs   `@@`
}

type Rhs struct {
	Phi    *PhiRhs    `  @@`
	Unary  *UnaryRhs  `| @@`
	Simple *SimpleRhs `| @@`
}

// UnaryRhs covers the surface aliases `-x` and `~x`; neither is a
// distinct instruction kind, both are normalized to a canonical
// BinOp during lowering.
type UnaryRhs struct {
	Op      string       `@("-" | "~")`
	Operand *OperandNode `@@`
}

// PhiRhs is `phi [v, @L] , [v, @L] ...`.
type PhiRhs struct {
	Entries []*PhiEntryNode `"phi" @@ { "," @@ }`
}

type PhiEntryNode struct {
	Value *OperandNode `"[" @@ ","`
	Label string       `"@" @Ident "]"`
}

// SimpleRhs is a bare operand (Move) or operand-op-operand (BinOp);
// Op and Rhs form one optional group (both or neither) so the same
// production serves both.
// ">" and ">=" are surface aliases, normalized to "<"/"<=" with
// swapped operands during lowering.
type SimpleRhs struct {
	Lhs *OperandNode `@@`
	Op  *string      `[ @("<<" | ">>" | "==" | "!=" | "<=" | ">=" | "-" | "+" | "*" | "/" | "%" | "&" | "|" | "^" | "<" | ">")`
	Rhs *OperandNode `  @@ ]`
}

type OperandNode struct {
	Reg   *string `  "%" @Ident`
	Lbl   *string `| "@" @Ident`
	Const *string `| @Integer`
}

type GotoLine struct {
	Target string `"goto" "@" @Ident`
}

type BranchLine struct {
	Cond  string `"branch" "%" @Ident`
	TrueL string `"?" "@" @Ident`
	FalseL string `":" "@" @Ident`
}

type ExitLine struct {
	Marker bool `@"exit"`
}

type ReadLine struct {
	Dst string `"read" "%" @Ident`
}

type WriteLine struct {
	Src *OperandNode `"write" @@`
}

type BrkptLine struct {
	Name string `"brkpt" "!" @Ident`
}
