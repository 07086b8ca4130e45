// Package il implements the CFG/SSA data model of the IL: instructions,
// basic blocks, and the control-flow graph. Values exist only during
// interpretation (see internal/interp); this package only describes
// their static shape.
package il

import (
	"fmt"
	"regexp"

	"ilforge/internal/value"
)

// nameRE matches the register/label name grammar: [.\w]+, non-empty.
var nameRE = regexp.MustCompile(`^[.\w]+$`)

// ValidName reports whether s is a legal register or label name.
func ValidName(s string) bool {
	return s != "" && nameRE.MatchString(s)
}

// OperandKind distinguishes the three operand forms.
type OperandKind int

const (
	OperandConst OperandKind = iota
	OperandRegister
	OperandLabel
)

// Operand is the sum type Const(Value) | Register(name) | Label(name).
// Register and label names are stored unprefixed; the '%'/'@' sigils
// are purely surface syntax.
type Operand struct {
	Kind  OperandKind
	Const value.Int
	Name  string // register or label name, per Kind
}

// Const builds a constant operand.
func Const(v value.Int) Operand { return Operand{Kind: OperandConst, Const: v} }

// Register builds a register operand. Panics if name is not a legal
// register name — validated at construction time.
func Register(name string) Operand {
	if !ValidName(name) {
		panic(fmt.Sprintf("il: invalid register name %q", name))
	}
	return Operand{Kind: OperandRegister, Name: name}
}

// Label builds a label operand.
func Label(name string) Operand {
	if !ValidName(name) {
		panic(fmt.Sprintf("il: invalid label name %q", name))
	}
	return Operand{Kind: OperandLabel, Name: name}
}

func (o Operand) IsRegister() bool { return o.Kind == OperandRegister }
func (o Operand) IsConst() bool    { return o.Kind == OperandConst }
func (o Operand) IsLabel() bool    { return o.Kind == OperandLabel }

// IsValueOperand reports whether o may appear wherever the grammar
// allows <operand> (Const|Register) — i.e. everywhere except the
// label slots of Goto/Branch/Phi.
func (o Operand) IsValueOperand() bool { return o.Kind == OperandConst || o.Kind == OperandRegister }

func (o Operand) String() string {
	switch o.Kind {
	case OperandConst:
		return o.Const.String()
	case OperandRegister:
		return "%" + o.Name
	case OperandLabel:
		return "@" + o.Name
	default:
		return "<bad-operand>"
	}
}
