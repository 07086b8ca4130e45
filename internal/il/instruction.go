package il

import (
	"fmt"
	"sort"
	"strings"

	"ilforge/internal/diag"
)

// Op identifies one binary operator. Arithmetic, bitwise, and
// comparison operators share the same dst ← lhs ⊕ rhs instruction
// shape (BinOp below); Op.Category tells a consumer which validation
// rules and runtime semantics apply, matching the three operator
// families of operators.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"

	OpAnd Op = "&"
	OpOr  Op = "|"
	OpXor Op = "^"
	OpShl Op = "<<"
	OpShr Op = ">>"

	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
)

// Category classifies an Op for the purposes of the three binary
// instruction families.
type Category int

const (
	CategoryArithmetic Category = iota
	CategoryBitwise
	CategoryComparison
)

func (op Op) Category() Category {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return CategoryArithmetic
	case OpAnd, OpOr, OpXor, OpShl, OpShr:
		return CategoryBitwise
	default:
		return CategoryComparison
	}
}

// Instruction is the tagged-union interface every IL instruction
// implements
type Instruction interface {
	// Dest returns the register this instruction defines, if any.
	Dest() (string, bool)
	// Uses returns every operand this instruction reads, in a
	// deterministic (left-to-right, source) order.
	Uses() []Operand
	// IsTerminator reports whether this instruction may end a block.
	IsTerminator() bool
	// Successors returns the labels a terminator may transfer control
	// to; always empty for non-terminators.
	Successors() []string
	// Equal reports structural equality, ignoring any source position
	// a caller has attached out of band.
	Equal(Instruction) bool
	String() string
}

// Move is `dst ← src`.
type Move struct {
	Dst string
	Src Operand
}

// Phi is `dst ← φ[(v_i, L_i)]`, i≥1, each L_i distinct.
type Phi struct {
	Dst     string
	Entries []PhiEntry
}

// PhiEntry is one (value, predecessor-label) pair of a Phi.
type PhiEntry struct {
	Value Operand
	Label string
}

// BinOp is `dst ← lhs ⊕ rhs` for any arithmetic, bitwise, or
// comparison operator.
type BinOp struct {
	Dst      string
	Op       Op
	Lhs, Rhs Operand
}

// Goto is an unconditional terminator.
type Goto struct {
	Target string
}

// Branch is a conditional terminator; Cond must be a register.
type Branch struct {
	Cond             string
	TrueL, FalseL    string
}

// Exit halts the program successfully.
type Exit struct{}

// Read consumes the next input token into Dst.
type Read struct {
	Dst string
}

// Write emits Src to the output stream.
type Write struct {
	Src Operand
}

// Brkpt is a named breakpoint; a semantic no-op for program state.
type Brkpt struct {
	Name string
}

// NewMove validates and builds a Move instruction.
func NewMove(dst string, src Operand) (*Move, error) {
	if !ValidName(dst) {
		return nil, diag.New(diag.KindMalformedInstruction, "move: invalid destination register %q", dst)
	}
	if !src.IsValueOperand() {
		return nil, diag.New(diag.KindMalformedInstruction, "move: source must be a constant or register, got %s", src)
	}
	return &Move{Dst: dst, Src: src}, nil
}

// NewPhi validates and builds a Phi instruction. Entry labels must be
// distinct, which is checked here; whether they match the block's
// actual predecessor set is a CFG-level invariant checked by
// BasicBlock.validatePhis.
func NewPhi(dst string, entries []PhiEntry) (*Phi, error) {
	if !ValidName(dst) {
		return nil, diag.New(diag.KindMalformedInstruction, "phi: invalid destination register %q", dst)
	}
	if len(entries) == 0 {
		return nil, diag.New(diag.KindMalformedInstruction, "phi %%%s: must have at least one entry", dst)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.Value.IsValueOperand() {
			return nil, diag.New(diag.KindMalformedInstruction, "phi %%%s: entry value must be a constant or register", dst)
		}
		if !ValidName(e.Label) {
			return nil, diag.New(diag.KindMalformedInstruction, "phi %%%s: invalid predecessor label %q", dst, e.Label)
		}
		if seen[e.Label] {
			return nil, diag.New(diag.KindMalformedInstruction, "phi %%%s: duplicate entry for predecessor @%s", dst, e.Label)
		}
		seen[e.Label] = true
	}
	return &Phi{Dst: dst, Entries: entries}, nil
}

// NewBinOp validates and builds a BinOp instruction.
func NewBinOp(dst string, op Op, lhs, rhs Operand) (*BinOp, error) {
	if !ValidName(dst) {
		return nil, diag.New(diag.KindMalformedInstruction, "%s: invalid destination register %q", op, dst)
	}
	if !lhs.IsValueOperand() || !rhs.IsValueOperand() {
		return nil, diag.New(diag.KindMalformedInstruction, "%s: operands must be constants or registers", op)
	}
	return &BinOp{Dst: dst, Op: op, Lhs: lhs, Rhs: rhs}, nil
}

// NewBranch builds a Branch terminator. The model permits TrueL ==
// FalseL; the producer, not the model, decides whether that is
// meaningful.
func NewBranch(cond string, trueL, falseL string) (*Branch, error) {
	if !ValidName(cond) {
		return nil, diag.New(diag.KindMalformedInstruction, "branch: condition must be a register, got %q", cond)
	}
	if !ValidName(trueL) || !ValidName(falseL) {
		return nil, diag.New(diag.KindMalformedInstruction, "branch: invalid target label")
	}
	return &Branch{Cond: cond, TrueL: trueL, FalseL: falseL}, nil
}

// NewGoto builds a Goto terminator.
func NewGoto(target string) (*Goto, error) {
	if !ValidName(target) {
		return nil, diag.New(diag.KindMalformedInstruction, "goto: invalid target label %q", target)
	}
	return &Goto{Target: target}, nil
}

// NewRead builds a Read instruction.
func NewRead(dst string) (*Read, error) {
	if !ValidName(dst) {
		return nil, diag.New(diag.KindMalformedInstruction, "read: invalid destination register %q", dst)
	}
	return &Read{Dst: dst}, nil
}

// NewWrite builds a Write instruction.
func NewWrite(src Operand) (*Write, error) {
	if !src.IsValueOperand() {
		return nil, diag.New(diag.KindMalformedInstruction, "write: operand must be a constant or register, got %s", src)
	}
	return &Write{Src: src}, nil
}

// NewBrkpt builds a Brkpt instruction.
func NewBrkpt(name string) (*Brkpt, error) {
	if !ValidName(name) {
		return nil, diag.New(diag.KindMalformedInstruction, "brkpt: invalid name %q", name)
	}
	return &Brkpt{Name: name}, nil
}

// --- Instruction interface implementations ---

func (m *Move) Dest() (string, bool) { return m.Dst, true }
func (m *Move) Uses() []Operand      { return []Operand{m.Src} }
func (m *Move) IsTerminator() bool   { return false }
func (m *Move) Successors() []string { return nil }
func (m *Move) String() string       { return fmt.Sprintf("%%%s = %s", m.Dst, m.Src) }
func (m *Move) Equal(o Instruction) bool {
	other, ok := o.(*Move)
	return ok && other.Dst == m.Dst && other.Src == m.Src
}

func (p *Phi) Dest() (string, bool) { return p.Dst, true }
func (p *Phi) Uses() []Operand {
	out := make([]Operand, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Value
	}
	return out
}
func (p *Phi) IsTerminator() bool   { return false }
func (p *Phi) Successors() []string { return nil }
func (p *Phi) String() string {
	parts := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		parts[i] = fmt.Sprintf("[%s, @%s]", e.Value, e.Label)
	}
	return fmt.Sprintf("%%%s = phi %s", p.Dst, strings.Join(parts, ", "))
}
func (p *Phi) Equal(o Instruction) bool {
	other, ok := o.(*Phi)
	if !ok || other.Dst != p.Dst || len(other.Entries) != len(p.Entries) {
		return false
	}
	am := entriesByLabel(p.Entries)
	bm := entriesByLabel(other.Entries)
	for label, v := range am {
		if bv, ok := bm[label]; !ok || bv != v {
			return false
		}
	}
	return true
}

func entriesByLabel(entries []PhiEntry) map[string]Operand {
	m := make(map[string]Operand, len(entries))
	for _, e := range entries {
		m[e.Label] = e.Value
	}
	return m
}

// Labels returns the phi's predecessor labels, sorted, for invariant
// checks that need a deterministic view.
func (p *Phi) Labels() []string {
	labels := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		labels[i] = e.Label
	}
	sort.Strings(labels)
	return labels
}

func (b *BinOp) Dest() (string, bool)   { return b.Dst, true }
func (b *BinOp) Uses() []Operand        { return []Operand{b.Lhs, b.Rhs} }
func (b *BinOp) IsTerminator() bool     { return false }
func (b *BinOp) Successors() []string   { return nil }
func (b *BinOp) String() string         { return fmt.Sprintf("%%%s = %s %s %s", b.Dst, b.Lhs, b.Op, b.Rhs) }
func (b *BinOp) Equal(o Instruction) bool {
	other, ok := o.(*BinOp)
	return ok && *other == *b
}

func (g *Goto) Dest() (string, bool)    { return "", false }
func (g *Goto) Uses() []Operand         { return nil }
func (g *Goto) IsTerminator() bool      { return true }
func (g *Goto) Successors() []string    { return []string{g.Target} }
func (g *Goto) String() string          { return fmt.Sprintf("goto @%s", g.Target) }
func (g *Goto) Equal(o Instruction) bool {
	other, ok := o.(*Goto)
	return ok && other.Target == g.Target
}

func (b *Branch) Dest() (string, bool) { return "", false }
func (b *Branch) Uses() []Operand      { return []Operand{Register(b.Cond)} }
func (b *Branch) IsTerminator() bool   { return true }
func (b *Branch) Successors() []string { return []string{b.TrueL, b.FalseL} }
func (b *Branch) String() string {
	return fmt.Sprintf("branch %%%s ? @%s : @%s", b.Cond, b.TrueL, b.FalseL)
}
func (b *Branch) Equal(o Instruction) bool {
	other, ok := o.(*Branch)
	return ok && *other == *b
}

func (e *Exit) Dest() (string, bool)    { return "", false }
func (e *Exit) Uses() []Operand         { return nil }
func (e *Exit) IsTerminator() bool      { return true }
func (e *Exit) Successors() []string    { return nil }
func (e *Exit) String() string          { return "exit" }
func (e *Exit) Equal(o Instruction) bool { _, ok := o.(*Exit); return ok }

func (r *Read) Dest() (string, bool) { return r.Dst, true }
func (r *Read) Uses() []Operand      { return nil }
func (r *Read) IsTerminator() bool   { return false }
func (r *Read) Successors() []string { return nil }
func (r *Read) String() string       { return fmt.Sprintf("read %%%s", r.Dst) }
func (r *Read) Equal(o Instruction) bool {
	other, ok := o.(*Read)
	return ok && other.Dst == r.Dst
}

func (w *Write) Dest() (string, bool) { return "", false }
func (w *Write) Uses() []Operand      { return []Operand{w.Src} }
func (w *Write) IsTerminator() bool   { return false }
func (w *Write) Successors() []string { return nil }
func (w *Write) String() string       { return fmt.Sprintf("write %s", w.Src) }
func (w *Write) Equal(o Instruction) bool {
	other, ok := o.(*Write)
	return ok && other.Src == w.Src
}

func (b *Brkpt) Dest() (string, bool) { return "", false }
func (b *Brkpt) Uses() []Operand      { return nil }
func (b *Brkpt) IsTerminator() bool   { return false }
func (b *Brkpt) Successors() []string { return nil }
func (b *Brkpt) String() string       { return fmt.Sprintf("brkpt !%s", b.Name) }
func (b *Brkpt) Equal(o Instruction) bool {
	other, ok := o.(*Brkpt)
	return ok && other.Name == b.Name
}

// IsPhi reports whether inst is a Phi, the question block placement
// and the interpreter both need to ask often.
func IsPhi(inst Instruction) bool {
	_, ok := inst.(*Phi)
	return ok
}

// Substitute rewrites every register-operand use of old to new inside
// inst, in place. It never rewrites a destination: this is a
// use-side rewrite for passes like copy propagation.
func Substitute(inst Instruction, oldName, newName string) {
	rewrite := func(o *Operand) {
		if o.Kind == OperandRegister && o.Name == oldName {
			o.Name = newName
		}
	}
	switch i := inst.(type) {
	case *Move:
		rewrite(&i.Src)
	case *Phi:
		for idx := range i.Entries {
			rewrite(&i.Entries[idx].Value)
		}
	case *BinOp:
		rewrite(&i.Lhs)
		rewrite(&i.Rhs)
	case *Branch:
		if i.Cond == oldName {
			i.Cond = newName
		}
	case *Write:
		rewrite(&i.Src)
	}
}
