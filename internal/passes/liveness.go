// Package passes implements the example registered passes (liveness,
// constfold, dce, copyprop) the workbench ships as passmgr.Pass
// instances: fold, dead-code, and redundancy transforms over the
// CFG/SSA model.
package passes

import (
	"sort"

	"ilforge/internal/il"
	"ilforge/internal/passmgr"
)

// LivenessID is the registered ID of the liveness analysis.
const LivenessID = "liveness"

// Liveness computes, for every block, the set of registers live on
// entry and on exit, treating phi uses as occurring at the exit of
// the contributing predecessor rather than at the top of the block
// they appear in — the standard SSA liveness treatment of phis.
type Liveness struct{}

func (Liveness) ID() string          { return LivenessID }
func (Liveness) Describe() string    { return "computes live-in/live-out register sets per block" }
func (Liveness) Params() []passmgr.Param { return nil }
func (Liveness) Analysis() bool      { return true }

// LivenessResult is the data a Liveness run produces, available from
// passmgr.Result.Data after a successful Require.
type LivenessResult struct {
	liveIn  map[string]map[string]bool
	liveOut map[string]map[string]bool
}

// LiveIn returns block's live-in registers, sorted.
func (r *LivenessResult) LiveIn(block string) []string { return sortedKeys(r.liveIn[block]) }

// LiveOut returns block's live-out registers, sorted.
func (r *LivenessResult) LiveOut(block string) []string { return sortedKeys(r.liveOut[block]) }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (Liveness) Run(ctx *passmgr.Context) (passmgr.Result, error) {
	cfg := ctx.CFG
	blocks := cfg.BlocksInReversePostorder(cfg.Entry())

	liveIn := make(map[string]map[string]bool, len(blocks))
	liveOut := make(map[string]map[string]bool, len(blocks))
	for _, b := range blocks {
		liveIn[b.Label] = map[string]bool{}
		liveOut[b.Label] = map[string]bool{}
	}

	for changed := true; changed; {
		changed = false
		for _, b := range blocks {
			out := computeLiveOut(cfg, b.Label, liveIn)
			in := computeLiveIn(b, out)
			if !setEqual(in, liveIn[b.Label]) {
				liveIn[b.Label] = in
				changed = true
			}
			liveOut[b.Label] = out
		}
	}

	return passmgr.Result{
		Data:      &LivenessResult{liveIn: liveIn, liveOut: liveOut},
		Preserved: passmgr.PreserveAll(),
	}, nil
}

// computeLiveOut unions, over every successor, that successor's
// live-in minus any register its own phis define, plus — for each phi
// at the successor's head — the one entry value contributed by this
// block specifically.
func computeLiveOut(cfg *il.CFG, block string, liveIn map[string]map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, succ := range cfg.Successors(block) {
		sb, ok := cfg.Block(succ)
		if !ok {
			continue
		}
		for k := range liveIn[succ] {
			out[k] = true
		}
		for _, phi := range sb.IterPhis() {
			delete(out, phi.Dst)
			for _, e := range phi.Entries {
				if e.Label == block && e.Value.IsRegister() {
					out[e.Value.Name] = true
				}
			}
		}
	}
	return out
}

// computeLiveIn runs the standard backward gen/kill walk over a
// block's non-phi instructions and terminator, seeded by liveOut, then
// strips any register the block's own phis define (those are defined
// at block entry, never live-in from outside).
func computeLiveIn(b *il.BasicBlock, liveOut map[string]bool) map[string]bool {
	live := map[string]bool{}
	for k := range liveOut {
		live[k] = true
	}

	walk := append(append([]il.Instruction{}, b.IterNonPhis()...), b.Terminator())
	for i := len(walk) - 1; i >= 0; i-- {
		inst := walk[i]
		if inst == nil {
			continue
		}
		if dst, ok := inst.Dest(); ok {
			delete(live, dst)
		}
		for _, u := range inst.Uses() {
			if u.IsRegister() {
				live[u.Name] = true
			}
		}
	}

	for _, phi := range b.IterPhis() {
		delete(live, phi.Dst)
	}
	return live
}

func setEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
