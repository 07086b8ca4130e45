// Package interp implements the tree-walking interpreter: it
// gives the IL its operational semantics by executing a CFG against
// an input stream, producing an output stream and optional trace.
package interp

import (
	"errors"
	"io"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/value"
)

// PC is the interpreter's program counter: the current block label
// and index within it.
type PC struct {
	Block string
	Index int
}

// noPrev is the ⊥ sentinel for "entering the entry block, no previous
// block". Block labels are always non-empty, so the empty string is
// an unambiguous sentinel.
const noPrev = ""

// Snapshot is what a breakpoint hands the embedder: a read-only copy
// of the interpreter's state at the moment of suspension.
type Snapshot struct {
	Name string
	PC   PC
	Env  map[string]value.Int
}

// BreakpointFunc is called synchronously whenever a Brkpt instruction
// executes with breakpoints enabled. The interpreter blocks on this
// call: it suspends cooperatively — control does not return to the
// interpreter's caller, it returns to the
// embedder's handler, which inspects Snapshot and then returns to let
// the run continue.
type BreakpointFunc func(Snapshot)

// Options configures one interpreter run.
type Options struct {
	EnableBreakpoints bool
	OnBreakpoint      BreakpointFunc
	EnableTrace       bool
}

// Interpreter executes a single CFG. It holds no mutable state between
// calls to Run beyond the CFG reference itself, which it treats as
// read-only.
type Interpreter struct {
	cfg  *il.CFG
	opts Options
}

// New builds an interpreter for cfg.
func New(cfg *il.CFG, opts Options) *Interpreter {
	return &Interpreter{cfg: cfg, opts: opts}
}

// Run executes the CFG from its entry block to completion, fatal
// error, or cancellation. Given identical cfg and input stream, Run
// always produces bit-exact output and trace — there is no
// wall-clock read, no hash-randomized iteration, and no other source
// of nondeterminism in this function.
func (it *Interpreter) Run(in InputSource, out OutputSink, trace TraceSink, cancel CancellationToken) error {
	if cancel == nil {
		cancel = NoCancellation{}
	}
	env := make(map[string]value.Int)
	block := it.cfg.Entry()
	prev := noPrev

	for {
		blk, ok := it.cfg.Block(block)
		if !ok {
			return runtimeErr(diag.KindInvalidLabel, PC{Block: block}, "jump to undefined block @%s", block)
		}

		if it.opts.EnableTrace && trace != nil {
			for i := range blk.IterPhis() {
				trace.Trace(block, i, "phi")
			}
		}
		if err := it.runPhis(blk, prev, env); err != nil {
			return err
		}

		idx := len(blk.IterPhis())
		for idx < blk.Len() {
			if cancel.Cancelled() {
				return cancelledErr(PC{Block: block, Index: idx})
			}
			inst := blk.At(idx)
			if it.opts.EnableTrace && trace != nil {
				trace.Trace(block, idx, kindOf(inst))
			}
			if err := it.execNonTerminator(inst, env, in, out, PC{Block: block, Index: idx}); err != nil {
				return err
			}
			idx++
		}

		if cancel.Cancelled() {
			return cancelledErr(PC{Block: block, Index: idx})
		}
		if it.opts.EnableTrace && trace != nil {
			trace.Trace(block, idx, kindOf(blk.Terminator()))
		}

		next, done, err := it.execTerminator(blk.Terminator(), env, PC{Block: block, Index: idx})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		prev = block
		block = next
	}
}

// runPhis evaluates every phi at the head of blk in parallel: all
// reads sample env as it stood before any phi assignment of this
// entry, and all destinations become defined together afterward
// this is phi-on-entry, snapshot-then-commit semantics.
func (it *Interpreter) runPhis(blk *il.BasicBlock, prev string, env map[string]value.Int) error {
	phis := blk.IterPhis()
	if len(phis) == 0 {
		return nil
	}
	if prev == noPrev {
		return runtimeErr(diag.KindUnboundPhi, PC{Block: blk.Label}, "block @%s: phi in entry block has no incoming edge", blk.Label)
	}

	snapshot := make(map[string]value.Int, len(env))
	for k, v := range env {
		snapshot[k] = v
	}

	updates := make(map[string]value.Int, len(phis))
	for i, p := range phis {
		var (
			matched bool
			result  value.Int
		)
		for _, e := range p.Entries {
			if e.Label != prev {
				continue
			}
			if matched {
				return runtimeErr(diag.KindUnboundPhi, PC{Block: blk.Label, Index: i}, "phi %%%s: more than one entry for predecessor @%s", p.Dst, prev)
			}
			v, err := evalOperand(e.Value, snapshot, PC{Block: blk.Label, Index: i})
			if err != nil {
				return err
			}
			result, matched = v, true
		}
		if !matched {
			return runtimeErr(diag.KindUnboundPhi, PC{Block: blk.Label, Index: i}, "phi %%%s: no entry for predecessor @%s", p.Dst, prev)
		}
		updates[p.Dst] = result
	}

	for dst, v := range updates {
		env[dst] = v
	}
	return nil
}

func (it *Interpreter) execNonTerminator(inst il.Instruction, env map[string]value.Int, in InputSource, out OutputSink, pc PC) error {
	switch i := inst.(type) {
	case *il.Move:
		v, err := evalOperand(i.Src, env, pc)
		if err != nil {
			return err
		}
		env[i.Dst] = v
		return nil

	case *il.BinOp:
		return it.execBinOp(i, env, pc)

	case *il.Read:
		v, err := in.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return runtimeErr(diag.KindIOError, pc, "read %%%s: end of input", i.Dst)
			}
			return runtimeErr(diag.KindIOError, pc, "read %%%s: %s", i.Dst, err)
		}
		env[i.Dst] = v
		return nil

	case *il.Write:
		v, err := evalOperand(i.Src, env, pc)
		if err != nil {
			return err
		}
		if err := out.Emit(v); err != nil {
			return runtimeErr(diag.KindIOError, pc, "write: %s", err)
		}
		return nil

	case *il.Brkpt:
		if it.opts.EnableBreakpoints && it.opts.OnBreakpoint != nil {
			it.opts.OnBreakpoint(Snapshot{Name: i.Name, PC: pc, Env: copyEnv(env)})
		}
		return nil

	case *il.Phi:
		// Phis only ever appear at block head and are consumed by
		// runPhis before this loop starts; reaching one here means
		// the phi-prefix invariant was violated upstream of the
		// interpreter (should already be caught by CFG.Validate).
		return runtimeErr(diag.KindMalformedCFG, pc, "phi %%%s encountered outside block head", i.Dst)

	default:
		return runtimeErr(diag.KindMalformedCFG, pc, "unsupported non-terminator instruction %T", inst)
	}
}

func (it *Interpreter) execBinOp(i *il.BinOp, env map[string]value.Int, pc PC) error {
	lhs, err := evalOperand(i.Lhs, env, pc)
	if err != nil {
		return err
	}
	rhs, err := evalOperand(i.Rhs, env, pc)
	if err != nil {
		return err
	}

	var result value.Int
	switch i.Op {
	case il.OpAdd:
		result = lhs.Add(rhs)
	case il.OpSub:
		result = lhs.Sub(rhs)
	case il.OpMul:
		result = lhs.Mul(rhs)
	case il.OpDiv:
		q, _, divByZero := lhs.QuoRem(rhs)
		if divByZero {
			return runtimeErr(diag.KindDivByZero, pc, "%%%s = %s / %s: division by zero", i.Dst, i.Lhs, i.Rhs)
		}
		result = q
	case il.OpMod:
		_, r, divByZero := lhs.QuoRem(rhs)
		if divByZero {
			return runtimeErr(diag.KindDivByZero, pc, "%%%s = %s %% %s: division by zero", i.Dst, i.Lhs, i.Rhs)
		}
		result = r
	case il.OpAnd:
		result = lhs.And(rhs)
	case il.OpOr:
		result = lhs.Or(rhs)
	case il.OpXor:
		result = lhs.Xor(rhs)
	case il.OpShl:
		n, ok := rhs.FitsUint()
		if !ok {
			return runtimeErr(diag.KindNegativeShift, pc, "%%%s = %s << %s: negative shift amount", i.Dst, i.Lhs, i.Rhs)
		}
		result = lhs.Shl(n)
	case il.OpShr:
		n, ok := rhs.FitsUint()
		if !ok {
			return runtimeErr(diag.KindNegativeShift, pc, "%%%s = %s >> %s: negative shift amount", i.Dst, i.Lhs, i.Rhs)
		}
		result = lhs.Shr(n)
	case il.OpEq:
		result = lhs.Eq(rhs)
	case il.OpNe:
		result = lhs.Ne(rhs)
	case il.OpLt:
		result = lhs.Lt(rhs)
	case il.OpLe:
		result = lhs.Le(rhs)
	default:
		return runtimeErr(diag.KindMalformedCFG, pc, "unsupported operator %s", i.Op)
	}
	env[i.Dst] = result
	return nil
}

// execTerminator runs blk's terminator, returning the next block
// label, or done=true on Exit.
func (it *Interpreter) execTerminator(term il.Instruction, env map[string]value.Int, pc PC) (next string, done bool, err error) {
	switch t := term.(type) {
	case *il.Goto:
		return t.Target, false, nil

	case *il.Branch:
		v, ok := env[t.Cond]
		if !ok {
			return "", false, runtimeErr(diag.KindUndefinedRegister, pc, "branch: undefined register %%%s", t.Cond)
		}
		// Any non-zero integer, including negatives, takes the true
		// edge; only exact zero takes the false edge.
		if v.IsZero() {
			return t.FalseL, false, nil
		}
		return t.TrueL, false, nil

	case *il.Exit:
		return "", true, nil

	default:
		return "", false, runtimeErr(diag.KindMalformedCFG, pc, "block has no valid terminator")
	}
}

func evalOperand(op il.Operand, env map[string]value.Int, pc PC) (value.Int, error) {
	switch op.Kind {
	case il.OperandConst:
		return op.Const, nil
	case il.OperandRegister:
		v, ok := env[op.Name]
		if !ok {
			return value.Int{}, runtimeErr(diag.KindUndefinedRegister, pc, "undefined register %%%s", op.Name)
		}
		return v, nil
	default:
		return value.Int{}, runtimeErr(diag.KindMalformedCFG, pc, "label operand used as value: %s", op)
	}
}

func copyEnv(env map[string]value.Int) map[string]value.Int {
	out := make(map[string]value.Int, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func kindOf(inst il.Instruction) string {
	switch inst.(type) {
	case *il.Move:
		return "move"
	case *il.Phi:
		return "phi"
	case *il.BinOp:
		return "binop"
	case *il.Goto:
		return "goto"
	case *il.Branch:
		return "branch"
	case *il.Exit:
		return "exit"
	case *il.Read:
		return "read"
	case *il.Write:
		return "write"
	case *il.Brkpt:
		return "brkpt"
	default:
		return "unknown"
	}
}

func runtimeErr(kind diag.Kind, pc PC, format string, args ...interface{}) *diag.Error {
	e := diag.New(kind, format, args...)
	e.Extra = pc
	return e
}

func cancelledErr(pc PC) *diag.Error {
	e := diag.New(diag.KindCancelled, "interpretation cancelled at %s[%d]", pc.Block, pc.Index)
	e.Extra = pc
	return e
}
