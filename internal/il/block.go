package il

import (
	"strings"

	"ilforge/internal/diag"
)

// BasicBlock is an ordered instruction list with terminator discipline
// and phi placement. A block never owns its predecessor/successor
// pointers directly; those live in the owning CFG's label-keyed maps,
// not as owning pointers.
type BasicBlock struct {
	Label        string
	instructions []Instruction // non-terminator instructions, phis first
	terminator   Instruction
	predecessors []string // ordered list of predecessor labels
}

// NewBasicBlock creates an empty, terminator-less block. A block is
// not valid CFG membership until SetTerminator has been called; the
// CFG's validate() operation is what enforces that globally.
func NewBasicBlock(label string) (*BasicBlock, error) {
	if !ValidName(label) {
		return nil, diag.New(diag.KindMalformedCFG, "invalid block label %q", label)
	}
	return &BasicBlock{Label: label}, nil
}

// Terminator returns the block's terminator, or nil if unset.
func (b *BasicBlock) Terminator() Instruction { return b.terminator }

// Predecessors returns the block's predecessor labels in insertion
// order. This is the CFG's authoritative cache; callers should not
// assume it reflects Terminator-derived edges until the owning CFG
// has recomputed it.
func (b *BasicBlock) Predecessors() []string {
	out := make([]string, len(b.predecessors))
	copy(out, b.predecessors)
	return out
}

// Len returns the number of non-terminator instructions.
func (b *BasicBlock) Len() int { return len(b.instructions) }

// At returns the non-terminator instruction at pos.
func (b *BasicBlock) At(pos int) Instruction { return b.instructions[pos] }

// IterPhis returns the block's phi instructions, which by invariant
// occupy a contiguous prefix of the instruction list.
func (b *BasicBlock) IterPhis() []*Phi {
	var out []*Phi
	for _, inst := range b.instructions {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// IterNonPhis returns the block's non-phi, non-terminator
// instructions, in order.
func (b *BasicBlock) IterNonPhis() []Instruction {
	phis := len(b.IterPhis())
	out := make([]Instruction, len(b.instructions)-phis)
	copy(out, b.instructions[phis:])
	return out
}

// Append adds inst to the end of the non-terminator list. Forbidden
// after a terminator has been set; appending a Phi after a non-phi
// instruction is also rejected, since phis must precede every
// non-phi.
func (b *BasicBlock) Append(inst Instruction) error {
	if b.terminator != nil {
		return diag.New(diag.KindMalformedCFG, "block @%s: cannot append after terminator", b.Label)
	}
	if IsPhi(inst) && len(b.instructions) > len(b.IterPhis()) {
		return diag.New(diag.KindMalformedCFG, "block @%s: phi must precede non-phi instructions", b.Label)
	}
	b.instructions = append(b.instructions, inst)
	return nil
}

// Insert places inst at position pos, shifting later instructions
// right. pos must respect phi-prefix placement.
func (b *BasicBlock) Insert(pos int, inst Instruction) error {
	if pos < 0 || pos > len(b.instructions) {
		return diag.New(diag.KindMalformedCFG, "block @%s: insert position %d out of range", b.Label, pos)
	}
	phiCount := len(b.IterPhis())
	if IsPhi(inst) && pos > phiCount {
		return diag.New(diag.KindMalformedCFG, "block @%s: phi must be inserted within the phi prefix", b.Label)
	}
	if !IsPhi(inst) && pos < phiCount {
		return diag.New(diag.KindMalformedCFG, "block @%s: non-phi instruction cannot precede a phi", b.Label)
	}
	b.instructions = append(b.instructions, nil)
	copy(b.instructions[pos+1:], b.instructions[pos:])
	b.instructions[pos] = inst
	return nil
}

// Replace swaps the instruction at pos for inst, preserving position
// (and therefore any instruction-scoped metadata at pos).
func (b *BasicBlock) Replace(pos int, inst Instruction) error {
	if pos < 0 || pos >= len(b.instructions) {
		return diag.New(diag.KindMalformedCFG, "block @%s: replace position %d out of range", b.Label, pos)
	}
	wasPhi := IsPhi(b.instructions[pos])
	if wasPhi != IsPhi(inst) {
		return diag.New(diag.KindMalformedCFG, "block @%s: replace cannot change phi/non-phi kind at position %d", b.Label, pos)
	}
	b.instructions[pos] = inst
	return nil
}

// Remove deletes the instruction at pos, shifting later instructions
// left.
func (b *BasicBlock) Remove(pos int) error {
	if pos < 0 || pos >= len(b.instructions) {
		return diag.New(diag.KindMalformedCFG, "block @%s: remove position %d out of range", b.Label, pos)
	}
	b.instructions = append(b.instructions[:pos], b.instructions[pos+1:]...)
	return nil
}

// SetTerminator assigns the block's terminator. goto/branch/exit are
// the only legal terminators; passing anything else is a construction
// error.
func (b *BasicBlock) SetTerminator(inst Instruction) error {
	if !inst.IsTerminator() {
		return diag.New(diag.KindMalformedCFG, "block @%s: %T is not a terminator", b.Label, inst)
	}
	b.terminator = inst
	return nil
}

// addPredecessor records pred as a new predecessor and appends a
// default entry to every phi in the block that has no entry for pred
// yet. The caller supplies the default value used for the new entry.
func (b *BasicBlock) addPredecessor(pred string, undef Operand) {
	for _, label := range b.predecessors {
		if label == pred {
			return
		}
	}
	b.predecessors = append(b.predecessors, pred)
	for _, inst := range b.instructions {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		has := false
		for _, e := range p.Entries {
			if e.Label == pred {
				has = true
				break
			}
		}
		if !has {
			p.Entries = append(p.Entries, PhiEntry{Value: undef, Label: pred})
		}
	}
}

// removePredecessor drops pred and the matching entry from every phi.
func (b *BasicBlock) removePredecessor(pred string) {
	for i, label := range b.predecessors {
		if label == pred {
			b.predecessors = append(b.predecessors[:i], b.predecessors[i+1:]...)
			break
		}
	}
	for _, inst := range b.instructions {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		for i, e := range p.Entries {
			if e.Label == pred {
				p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
				break
			}
		}
	}
}

// renamePredecessor rewrites pred references after a block rename.
func (b *BasicBlock) renamePredecessor(old, new string) {
	for i, label := range b.predecessors {
		if label == old {
			b.predecessors[i] = new
		}
	}
	for _, inst := range b.instructions {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		for i, e := range p.Entries {
			if e.Label == old {
				p.Entries[i].Label = new
			}
		}
	}
}

// validatePhis enforces that every phi has exactly one operand per
// current predecessor, and that phis occupy a contiguous prefix.
func (b *BasicBlock) validatePhis() error {
	preds := make(map[string]bool, len(b.predecessors))
	for _, p := range b.predecessors {
		preds[p] = true
	}
	seenNonPhi := false
	for _, inst := range b.instructions {
		if p, ok := inst.(*Phi); ok {
			if seenNonPhi {
				return diag.New(diag.KindMalformedCFG, "block @%s: phi %%%s follows a non-phi instruction", b.Label, p.Dst)
			}
			if len(p.Entries) != len(preds) {
				return diag.New(diag.KindMissingPredecessorInPhi, "block @%s: phi %%%s has %d entries, block has %d predecessors", b.Label, p.Dst, len(p.Entries), len(preds))
			}
			for _, e := range p.Entries {
				if !preds[e.Label] {
					return diag.New(diag.KindMissingPredecessorInPhi, "block @%s: phi %%%s has entry for non-predecessor @%s", b.Label, p.Dst, e.Label)
				}
			}
		} else {
			seenNonPhi = true
		}
	}
	if b.terminator == nil {
		return diag.New(diag.KindMalformedCFG, "block @%s: missing terminator", b.Label)
	}
	return nil
}

func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString("@" + b.Label + ":\n")
	for _, inst := range b.instructions {
		sb.WriteString("  " + inst.String() + "\n")
	}
	if b.terminator != nil {
		sb.WriteString("  " + b.terminator.String() + "\n")
	}
	return sb.String()
}
