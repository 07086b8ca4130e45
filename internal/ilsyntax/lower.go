package ilsyntax

import (
	"strconv"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
	"ilforge/internal/value"
)

// lower walks a parsed Program and builds the CFG and metadata store
// it describes. Metadata attaches to whatever instruction most
// recently appeared in the current block; crossing into a new block
// (a fresh "@label:") discards that target, so a ";%!" line with
// nothing before it in its block is a lowering error rather than
// silently attaching to the previous block's last instruction.
func lower(p *Program) (*il.CFG, *ilmeta.Store, error) {
	cfg := il.NewCFG()
	meta := ilmeta.New()

	for _, item := range p.Items {
		switch {
		case item.Meta != nil:
			values, err := unquoteAll(item.Meta.Values)
			if err != nil {
				return nil, nil, err
			}
			meta.Append(ilmeta.CFGScope(), item.Meta.Key, values)

		case item.Block != nil:
			if err := lowerBlock(cfg, meta, item.Block); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := cfg.RecomputeEdges(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, meta, nil
}

func lowerBlock(cfg *il.CFG, meta *ilmeta.Store, decl *BlockDecl) error {
	blk, err := cfg.AddBlock(decl.Label)
	if err != nil {
		return err
	}

	lastInstr := -1 // index of the most recently lowered non-terminator instruction
	terminated := false

	for _, item := range decl.Items {
		switch {
		case item.Meta != nil:
			values, err := unquoteAll(item.Meta.Values)
			if err != nil {
				return err
			}
			switch item.Meta.Scope {
			case ";@!":
				meta.Append(ilmeta.BlockScope(decl.Label), item.Meta.Key, values)
			case ";%!":
				if lastInstr < 0 {
					return diag.New(diag.KindSyntaxError, "block @%s: instruction-scoped metadata has no preceding instruction to attach to", decl.Label)
				}
				meta.Append(ilmeta.InstrScope(decl.Label, lastInstr), item.Meta.Key, values)
			}

		case item.Instr != nil:
			if terminated {
				return diag.New(diag.KindSyntaxError, "block @%s: instruction follows terminator", decl.Label)
			}
			inst, err := lowerInstr(item.Instr)
			if err != nil {
				return err
			}
			if inst.IsTerminator() {
				if err := blk.SetTerminator(inst); err != nil {
					return err
				}
				terminated = true
			} else {
				if err := blk.Append(inst); err != nil {
					return err
				}
				lastInstr = blk.Len() - 1
			}
		}
	}

	if !terminated {
		return diag.New(diag.KindMalformedCFG, "block @%s: missing terminator", decl.Label)
	}
	return nil
}

func lowerInstr(line *InstrLine) (il.Instruction, error) {
	switch {
	case line.Assign != nil:
		return lowerAssign(line.Assign)
	case line.Goto != nil:
		return il.NewGoto(line.Goto.Target)
	case line.Branch != nil:
		return il.NewBranch(line.Branch.Cond, line.Branch.TrueL, line.Branch.FalseL)
	case line.Exit != nil:
		return &il.Exit{}, nil
	case line.Read != nil:
		return il.NewRead(line.Read.Dst)
	case line.Write != nil:
		src, err := lowerOperand(line.Write.Src)
		if err != nil {
			return nil, err
		}
		return il.NewWrite(src)
	case line.Brkpt != nil:
		return il.NewBrkpt(line.Brkpt.Name)
	default:
		return nil, diag.New(diag.KindSyntaxError, "empty instruction line")
	}
}

func lowerAssign(a *AssignLine) (il.Instruction, error) {
	switch {
	case a.Rhs.Phi != nil:
		entries := make([]il.PhiEntry, len(a.Rhs.Phi.Entries))
		for i, e := range a.Rhs.Phi.Entries {
			v, err := lowerOperand(e.Value)
			if err != nil {
				return nil, err
			}
			entries[i] = il.PhiEntry{Value: v, Label: e.Label}
		}
		return il.NewPhi(a.Dst, entries)

	case a.Rhs.Unary != nil:
		operand, err := lowerOperand(a.Rhs.Unary.Operand)
		if err != nil {
			return nil, err
		}
		switch a.Rhs.Unary.Op {
		case "-":
			// -x is not a distinct instruction kind: canonicalized to
			// 0 - x.
			return il.NewBinOp(a.Dst, il.OpSub, il.Const(value.FromInt64(0)), operand)
		default: // "~"
			// ~x is not a distinct instruction kind: canonicalized to
			// x ^ -1.
			return il.NewBinOp(a.Dst, il.OpXor, operand, il.Const(value.FromInt64(-1)))
		}

	case a.Rhs.Simple != nil:
		lhs, err := lowerOperand(a.Rhs.Simple.Lhs)
		if err != nil {
			return nil, err
		}
		if a.Rhs.Simple.Op == nil {
			return il.NewMove(a.Dst, lhs)
		}
		if a.Rhs.Simple.Rhs == nil {
			return nil, diag.New(diag.KindSyntaxError, "%%%s: binary operator with no right-hand operand", a.Dst)
		}
		rhs, err := lowerOperand(a.Rhs.Simple.Rhs)
		if err != nil {
			return nil, err
		}
		switch op := *a.Rhs.Simple.Op; op {
		case ">":
			// a > b is not a distinct instruction kind: canonicalized
			// to b < a.
			return il.NewBinOp(a.Dst, il.OpLt, rhs, lhs)
		case ">=":
			// a >= b is not a distinct instruction kind: canonicalized
			// to b <= a.
			return il.NewBinOp(a.Dst, il.OpLe, rhs, lhs)
		default:
			return il.NewBinOp(a.Dst, il.Op(op), lhs, rhs)
		}

	default:
		return nil, diag.New(diag.KindSyntaxError, "%%%s: empty right-hand side", a.Dst)
	}
}

func lowerOperand(n *OperandNode) (il.Operand, error) {
	switch {
	case n.Reg != nil:
		if !il.ValidName(*n.Reg) {
			return il.Operand{}, diag.New(diag.KindSyntaxError, "invalid register name %q", *n.Reg)
		}
		return il.Register(*n.Reg), nil
	case n.Lbl != nil:
		if !il.ValidName(*n.Lbl) {
			return il.Operand{}, diag.New(diag.KindSyntaxError, "invalid label name %q", *n.Lbl)
		}
		return il.Label(*n.Lbl), nil
	case n.Const != nil:
		v, err := value.FromString(*n.Const)
		if err != nil {
			return il.Operand{}, diag.New(diag.KindSyntaxError, "%s", err)
		}
		return il.Const(v), nil
	default:
		return il.Operand{}, diag.New(diag.KindSyntaxError, "empty operand")
	}
}

func unquoteAll(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	for i, s := range raw {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, diag.New(diag.KindSyntaxError, "malformed string literal %s: %s", s, err)
		}
		out[i] = v
	}
	return out, nil
}
