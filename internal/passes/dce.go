package passes

import (
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
	"ilforge/internal/passmgr"
)

// DCEID is the registered ID of the dead-code-elimination pass.
const DCEID = "dce"

// DCE removes Move and BinOp instructions whose destination register
// is neither in the live-out set of the block it ends in, per the
// current liveness result, nor used anywhere in that block. It is one
// linear mark-then-sweep pass, not a fixpoint, so a chain of
// instructions that only became dead because of this pass's own
// deletions needs a second run to clear. A second Require of dce in
// the same manager returns the memoized result and does not rerun it
// unless another transformation has invalidated its instance since.
//
// Read, Write, and Brkpt are never removed regardless of whether their
// result is used: Read and Write have effects on the input/output
// stream, and Brkpt is a debugging affordance, not a value producer.
// Block-level dead-code elimination (removing whole unreachable
// blocks) is intentionally out of scope here: CFG.RemoveBlock refuses
// to drop a block with remaining predecessors, which protects phi
// integrity but means a cluster of mutually-referencing dead blocks
// can't be removed by a simple reachability sweep without also tearing
// down their internal edges first.
type DCE struct{}

func (DCE) ID() string              { return DCEID }
func (DCE) Describe() string        { return "removes Move/BinOp instructions dead per liveness" }
func (DCE) Params() []passmgr.Param { return nil }
func (DCE) Analysis() bool          { return false }

type DCEStats struct {
	Removed int
}

func (DCE) Run(ctx *passmgr.Context) (passmgr.Result, error) {
	live, err := ctx.Require(passmgr.PassQuery{ID: LivenessID})
	if err != nil {
		return passmgr.Result{}, err
	}
	lv := live.Data.(*LivenessResult)

	cfg := ctx.CFG
	stats := DCEStats{}
	for _, b := range cfg.Blocks() {
		used := map[string]bool{}
		for _, r := range lv.LiveOut(b.Label) {
			used[r] = true
		}
		// A register defined in this block but consumed by a later
		// instruction in the same block is live even though it never
		// reaches the block's live-out set; add every register used
		// anywhere in the block to the live-out seed to account for that.
		markIntraBlockUses(b, used)
		stats.Removed += sweepBlock(b, used, ctx.Meta)
	}
	ctx.Debug.Event("dce: removed %d instruction(s)", stats.Removed)
	return passmgr.Result{Data: stats, Preserved: passmgr.PreserveNone()}, nil
}

// markIntraBlockUses extends used with every register consumed by a
// phi, non-phi instruction, or terminator in b, so a register that
// dies before the block's end still counts as used by its one
// consumer instead of looking dead to sweepBlock.
func markIntraBlockUses(b *il.BasicBlock, used map[string]bool) {
	for _, p := range b.IterPhis() {
		for _, e := range p.Entries {
			if e.Value.IsRegister() {
				used[e.Value.Name] = true
			}
		}
	}
	for _, inst := range b.IterNonPhis() {
		for _, u := range inst.Uses() {
			if u.IsRegister() {
				used[u.Name] = true
			}
		}
	}
	if t := b.Terminator(); t != nil {
		for _, u := range t.Uses() {
			if u.IsRegister() {
				used[u.Name] = true
			}
		}
	}
}

func sweepBlock(b *il.BasicBlock, used map[string]bool, meta *ilmeta.Store) int {
	removed := 0
	for pos := b.Len() - 1; pos >= 0; pos-- {
		inst := b.At(pos)
		dst, removable := removableDest(inst)
		if !removable || used[dst] {
			continue
		}
		if err := b.Remove(pos); err != nil {
			continue
		}
		if meta != nil {
			meta.OnRemove(b.Label, pos)
		}
		removed++
	}
	return removed
}

func removableDest(inst il.Instruction) (string, bool) {
	switch i := inst.(type) {
	case *il.Move:
		return i.Dst, true
	case *il.BinOp:
		return i.Dst, true
	default:
		return "", false
	}
}
