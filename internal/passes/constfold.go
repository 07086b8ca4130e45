package passes

import (
	"ilforge/internal/il"
	"ilforge/internal/passmgr"
	"ilforge/internal/value"
)

// ConstFoldID is the registered ID of the constant-folding pass.
const ConstFoldID = "constfold"

// ConstFold evaluates binary operations whose operands are both
// provably constant at compile time and replaces them with a Move of
// the computed literal. Division, modulo, and shift by a constant
// that would fault at runtime are left untouched so interpretation
// still raises the same diagnostic it would have before folding.
type ConstFold struct{}

func (ConstFold) ID() string              { return ConstFoldID }
func (ConstFold) Describe() string        { return "folds binary ops with all-constant operands into literals" }
func (ConstFold) Params() []passmgr.Param { return nil }
func (ConstFold) Analysis() bool          { return false }

type ConstFoldStats struct {
	Folded int
}

func (ConstFold) Run(ctx *passmgr.Context) (passmgr.Result, error) {
	stats := ConstFoldStats{}
	for _, b := range ctx.CFG.Blocks() {
		stats.Folded += foldBlock(b)
	}
	ctx.Debug.Event("constfold: folded %d instruction(s)", stats.Folded)
	return passmgr.Result{Data: stats, Preserved: passmgr.Preserve(LivenessID)}, nil
}

func foldBlock(b *il.BasicBlock) int {
	known := map[string]value.Int{}
	folded := 0

	for pos := 0; pos < b.Len(); pos++ {
		inst := b.At(pos)
		switch i := inst.(type) {
		case *il.Move:
			if v, ok := constOf(i.Src, known); ok {
				known[i.Dst] = v
			} else {
				delete(known, i.Dst)
			}
		case *il.Read:
			delete(known, i.Dst)
		case *il.BinOp:
			lhs, lok := constOf(i.Lhs, known)
			rhs, rok := constOf(i.Rhs, known)
			if !lok || !rok {
				delete(known, i.Dst)
				continue
			}
			result, ok := evalConst(i.Op, lhs, rhs)
			if !ok {
				delete(known, i.Dst)
				continue
			}
			known[i.Dst] = result
			mv, err := il.NewMove(i.Dst, il.Const(result))
			if err != nil {
				continue
			}
			if err := b.Replace(pos, mv); err == nil {
				folded++
			}
		}
	}
	return folded
}

func constOf(op il.Operand, known map[string]value.Int) (value.Int, bool) {
	if op.IsConst() {
		return op.Const, true
	}
	if op.IsRegister() {
		v, ok := known[op.Name]
		return v, ok
	}
	return value.Int{}, false
}

// evalConst computes op statically, declining (ok=false) for any
// operation whose runtime behavior is a diagnostic rather than a
// value — folding those would silently change which diag.Error a
// program raises.
func evalConst(op il.Op, lhs, rhs value.Int) (value.Int, bool) {
	switch op {
	case il.OpAdd:
		return lhs.Add(rhs), true
	case il.OpSub:
		return lhs.Sub(rhs), true
	case il.OpMul:
		return lhs.Mul(rhs), true
	case il.OpDiv:
		q, _, divByZero := lhs.QuoRem(rhs)
		if divByZero {
			return value.Int{}, false
		}
		return q, true
	case il.OpMod:
		_, r, divByZero := lhs.QuoRem(rhs)
		if divByZero {
			return value.Int{}, false
		}
		return r, true
	case il.OpAnd:
		return lhs.And(rhs), true
	case il.OpOr:
		return lhs.Or(rhs), true
	case il.OpXor:
		return lhs.Xor(rhs), true
	case il.OpShl:
		n, ok := rhs.FitsUint()
		if !ok {
			return value.Int{}, false
		}
		return lhs.Shl(n), true
	case il.OpShr:
		n, ok := rhs.FitsUint()
		if !ok {
			return value.Int{}, false
		}
		return lhs.Shr(n), true
	case il.OpEq:
		return lhs.Eq(rhs), true
	case il.OpNe:
		return lhs.Ne(rhs), true
	case il.OpLt:
		return lhs.Lt(rhs), true
	case il.OpLe:
		return lhs.Le(rhs), true
	default:
		return value.Int{}, false
	}
}
