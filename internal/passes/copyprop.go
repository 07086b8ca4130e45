package passes

import (
	"strconv"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/passmgr"
)

// CopyPropID is the registered ID of the copy-propagation pass.
const CopyPropID = "copyprop"

func strPtr(s string) *string { return &s }

// CopyProp replaces uses of a register defined by a plain register-to-
// register Move with the ultimate source of the copy chain.
//
// threshold caps how many Move hops a chain is followed before
// propagation gives up on it, guarding against pathological chains in
// malformed or adversarial input; "any" accepts whatever instance
// already exists regardless of its threshold, falling back to the
// default only when none does.
type CopyProp struct{}

func (CopyProp) ID() string       { return CopyPropID }
func (CopyProp) Describe() string { return "propagates register-to-register copies to their source" }
func (CopyProp) Params() []passmgr.Param {
	return []passmgr.Param{{Name: "threshold", Default: strPtr("64")}}
}
func (CopyProp) Analysis() bool { return false }

type CopyPropStats struct {
	Rewrites int
}

func (CopyProp) Run(ctx *passmgr.Context) (passmgr.Result, error) {
	threshold, err := strconv.Atoi(ctx.Args.String("threshold"))
	if err != nil || threshold < 0 {
		return passmgr.Result{}, diag.New(diag.KindBadArgument, "copyprop: threshold must be a non-negative integer, got %q", ctx.Args.String("threshold"))
	}

	copyOf := map[string]string{}
	stats := CopyPropStats{}
	cfg := ctx.CFG

	for _, b := range cfg.BlocksInReversePostorder(cfg.Entry()) {
		for _, phi := range b.IterPhis() {
			stats.Rewrites += rewriteUses(phi, copyOf, threshold)
		}
		for pos := 0; pos < b.Len(); pos++ {
			inst := b.At(pos)
			mv, isCopy := inst.(*il.Move)
			isCopy = isCopy && mv.Src.IsRegister()
			copySrc := ""
			if isCopy {
				copySrc = mv.Src.Name
			}
			stats.Rewrites += rewriteUses(inst, copyOf, threshold)
			if isCopy {
				copyOf[mv.Dst] = copySrc
			}
		}
		if t := b.Terminator(); t != nil {
			stats.Rewrites += rewriteUses(t, copyOf, threshold)
		}
	}

	ctx.Debug.Event("copyprop: rewrote %d use(s)", stats.Rewrites)
	return passmgr.Result{Data: stats, Preserved: passmgr.PreserveNone()}, nil
}

func rewriteUses(inst il.Instruction, copyOf map[string]string, threshold int) int {
	seen := map[string]bool{}
	rewrites := 0
	for _, u := range inst.Uses() {
		if !u.IsRegister() || seen[u.Name] {
			continue
		}
		seen[u.Name] = true
		resolved := resolveCopy(copyOf, u.Name, threshold)
		if resolved != u.Name {
			il.Substitute(inst, u.Name, resolved)
			rewrites++
		}
	}
	return rewrites
}

func resolveCopy(copyOf map[string]string, name string, threshold int) string {
	cur := name
	for i := 0; i < threshold; i++ {
		next, ok := copyOf[cur]
		if !ok {
			break
		}
		cur = next
	}
	return cur
}
