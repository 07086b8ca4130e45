package il

import (
	"fmt"

	"ilforge/internal/diag"
	"ilforge/internal/value"
)

func zeroValue() value.Int { return value.FromInt64(0) }

// Undef is the default value new phi entries are seeded with when a
// predecessor edge is added without the caller supplying one: a
// caller-chosen default, commonly a fresh undefined marker.
// It is a plain zero constant: the interpreter never treats it
// specially, so any pass that introduces an edge without wiring a
// real phi value will observe 0, not a sentinel "undefined" value —
// matching the IL's lack of a dedicated bottom value.
var Undef = Const(zeroValue())

// CFG is the block registry, entry point, and derived edge indices of
// the program. Edges are recomputed from terminators on every
// mutation; the predecessor index is an authoritative cache, never a
// primary source of truth.
type CFG struct {
	order   []string // insertion order; index 0 is the entry block
	blocks  map[string]*BasicBlock
	entry   string
}

// NewCFG creates an empty CFG. The first block added via AddBlock
// becomes the entry block: entry is the first block seen.
func NewCFG() *CFG {
	return &CFG{blocks: make(map[string]*BasicBlock)}
}

// Entry returns the entry block's label.
func (c *CFG) Entry() string { return c.entry }

// Block looks up a block by label.
func (c *CFG) Block(label string) (*BasicBlock, bool) {
	b, ok := c.blocks[label]
	return b, ok
}

// Blocks returns every block in insertion order.
func (c *CFG) Blocks() []*BasicBlock {
	out := make([]*BasicBlock, len(c.order))
	for i, label := range c.order {
		out[i] = c.blocks[label]
	}
	return out
}

// AddBlock registers a new, empty block. Label uniqueness is enforced.
func (c *CFG) AddBlock(label string) (*BasicBlock, error) {
	if _, exists := c.blocks[label]; exists {
		return nil, diag.New(diag.KindDuplicateLabel, "duplicate block label @%s", label)
	}
	b, err := NewBasicBlock(label)
	if err != nil {
		return nil, err
	}
	c.blocks[label] = b
	c.order = append(c.order, label)
	if c.entry == "" {
		c.entry = label
	}
	return b, nil
}

// RemoveBlock deletes a block. Forbidden while incoming edges remain;
// the entry block additionally may never be removed.
func (c *CFG) RemoveBlock(label string) error {
	b, ok := c.blocks[label]
	if !ok {
		return diag.New(diag.KindMalformedCFG, "remove_block: no such block @%s", label)
	}
	if label == c.entry {
		return diag.New(diag.KindMalformedCFG, "remove_block: cannot remove entry block @%s", label)
	}
	if len(b.predecessors) > 0 {
		return diag.New(diag.KindMalformedCFG, "remove_block: @%s still has incoming edges", label)
	}
	delete(c.blocks, label)
	for i, l := range c.order {
		if l == label {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return c.RecomputeEdges()
}

// RenameBlock rewrites every terminator and phi label referencing old
// to new, across the whole CFG.
func (c *CFG) RenameBlock(old, new string) error {
	if old == new {
		return nil
	}
	b, ok := c.blocks[old]
	if !ok {
		return diag.New(diag.KindMalformedCFG, "rename_block: no such block @%s", old)
	}
	if _, exists := c.blocks[new]; exists {
		return diag.New(diag.KindDuplicateLabel, "rename_block: target label @%s already exists", new)
	}
	delete(c.blocks, old)
	b.Label = new
	c.blocks[new] = b
	for i, l := range c.order {
		if l == old {
			c.order[i] = new
		}
	}
	if c.entry == old {
		c.entry = new
	}
	for _, blk := range c.blocks {
		renameTerminatorTarget(blk.terminator, old, new)
		blk.renamePredecessor(old, new)
	}
	return c.RecomputeEdges()
}

func renameTerminatorTarget(inst Instruction, old, new string) {
	switch t := inst.(type) {
	case *Goto:
		if t.Target == old {
			t.Target = new
		}
	case *Branch:
		if t.TrueL == old {
			t.TrueL = new
		}
		if t.FalseL == old {
			t.FalseL = new
		}
	}
}

// Redirect edits from's terminator so that any edge targeting
// oldTarget instead targets newTarget, updating both blocks'
// predecessor indices and phi labels.
func (c *CFG) Redirect(from, oldTarget, newTarget string) error {
	fb, ok := c.blocks[from]
	if !ok {
		return diag.New(diag.KindMalformedCFG, "redirect: no such block @%s", from)
	}
	if _, ok := c.blocks[newTarget]; !ok {
		return diag.New(diag.KindMalformedCFG, "redirect: no such target block @%s", newTarget)
	}
	changed := false
	switch t := fb.terminator.(type) {
	case *Goto:
		if t.Target == oldTarget {
			t.Target = newTarget
			changed = true
		}
	case *Branch:
		if t.TrueL == oldTarget {
			t.TrueL = newTarget
			changed = true
		}
		if t.FalseL == oldTarget {
			t.FalseL = newTarget
			changed = true
		}
	}
	if !changed {
		return diag.New(diag.KindMalformedCFG, "redirect: @%s's terminator does not target @%s", from, oldTarget)
	}
	return c.RecomputeEdges()
}

// SplitEdge inserts a fresh block between u and v, preserving phi
// semantics: the new block inherits u as its sole predecessor and
// becomes v's predecessor in place of u, so any phi in v that had an
// entry for u now has one for the new block instead.
func (c *CFG) SplitEdge(u, v string) (string, error) {
	if _, ok := c.blocks[u]; !ok {
		return "", diag.New(diag.KindMalformedCFG, "split_edge: no such block @%s", u)
	}
	if _, ok := c.blocks[v]; !ok {
		return "", diag.New(diag.KindMalformedCFG, "split_edge: no such block @%s", v)
	}
	fresh := c.freshLabel(fmt.Sprintf("%s_%s_split", u, v))
	nb, err := c.AddBlock(fresh)
	if err != nil {
		return "", err
	}
	goto_, _ := NewGoto(v)
	if err := nb.SetTerminator(goto_); err != nil {
		return "", err
	}
	carried := make(map[*Phi]Operand)
	for _, p := range c.blocks[v].IterPhis() {
		for _, e := range p.Entries {
			if e.Label == u {
				carried[p] = e.Value
			}
		}
	}
	if err := c.Redirect(u, v, fresh); err != nil {
		return "", err
	}
	for p, val := range carried {
		for i := range p.Entries {
			if p.Entries[i].Label == fresh {
				p.Entries[i].Value = val
			}
		}
	}
	return fresh, nil
}

func (c *CFG) freshLabel(base string) string {
	label := base
	for i := 1; ; i++ {
		if _, exists := c.blocks[label]; !exists {
			return label
		}
		label = fmt.Sprintf("%s%d", base, i)
	}
}

// Successors returns L's successor labels, derived from its
// terminator.
func (c *CFG) Successors(label string) []string {
	b, ok := c.blocks[label]
	if !ok || b.terminator == nil {
		return nil
	}
	return b.terminator.Successors()
}

// Predecessors returns L's predecessor labels, from the authoritative
// cache.
func (c *CFG) Predecessors(label string) []string {
	b, ok := c.blocks[label]
	if !ok {
		return nil
	}
	return b.Predecessors()
}

// RecomputeEdges rebuilds every block's predecessor cache from every
// block's terminator, then repairs phi entries so they track the new
// predecessor sets: a predecessor that appeared is given a fresh Undef
// entry in every phi, one that disappeared has its entry dropped.
// Callers needing finer control over the default value for a newly
// appearing edge should use AddBlock/SetTerminator directly before the
// implicit recompute that follows most CFG operations.
func (c *CFG) RecomputeEdges() error {
	wanted := make(map[string]map[string]bool, len(c.blocks)) // target -> set of sources
	for _, label := range c.order {
		wanted[label] = map[string]bool{}
	}
	for _, label := range c.order {
		b := c.blocks[label]
		if b.terminator == nil {
			continue
		}
		for _, succ := range b.terminator.Successors() {
			if _, ok := c.blocks[succ]; !ok {
				return diag.New(diag.KindInvalidLabel, "block @%s: terminator references unknown block @%s", label, succ)
			}
			wanted[succ][label] = true
		}
	}

	for _, label := range c.order {
		b := c.blocks[label]
		current := make(map[string]bool, len(b.predecessors))
		for _, p := range b.predecessors {
			current[p] = true
		}
		for p := range current {
			if !wanted[label][p] {
				b.removePredecessor(p)
			}
		}
		for p := range wanted[label] {
			if !current[p] {
				b.addPredecessor(p, Undef)
			}
		}
	}
	return nil
}

// BlocksInReversePostorder returns the CFG's blocks in reverse
// postorder from entry, the traversal most dataflow passes want.
// Blocks unreachable from entry are appended afterward, in insertion
// order, so every registered block still appears exactly once.
func (c *CFG) BlocksInReversePostorder(entry string) []*BasicBlock {
	visited := map[string]bool{}
	var postorder []string
	var visit func(label string)
	visit = func(label string) {
		if visited[label] {
			return
		}
		visited[label] = true
		for _, succ := range c.Successors(label) {
			visit(succ)
		}
		postorder = append(postorder, label)
	}
	visit(entry)

	out := make([]*BasicBlock, 0, len(c.order))
	for i := len(postorder) - 1; i >= 0; i-- {
		out = append(out, c.blocks[postorder[i]])
	}
	for _, label := range c.order {
		if !visited[label] {
			out = append(out, c.blocks[label])
		}
	}
	return out
}

// Validate reasserts every CFG invariant: every block
// has exactly one terminator, phis are well-formed and precede
// non-phis, terminator targets exist, the predecessor cache matches
// the terminator-derived edges, and every non-entry block has at
// least one predecessor (no silently-produced unreachable block).
func (c *CFG) Validate() error {
	if c.entry == "" {
		return diag.New(diag.KindMalformedCFG, "cfg has no entry block")
	}
	for _, label := range c.order {
		b := c.blocks[label]
		if err := b.validatePhis(); err != nil {
			return err
		}
		for _, succ := range b.terminator.Successors() {
			if _, ok := c.blocks[succ]; !ok {
				return diag.New(diag.KindInvalidLabel, "block @%s: terminator references unknown block @%s", label, succ)
			}
		}
		if label != c.entry && len(b.predecessors) == 0 {
			return diag.New(diag.KindMalformedCFG, "block @%s is unreachable: no predecessors", label)
		}
	}
	snapshot := snapshotPredecessors(c)
	if err := c.RecomputeEdges(); err != nil {
		return err
	}
	if !predecessorsEqual(snapshot, snapshotPredecessors(c)) {
		return diag.New(diag.KindMalformedCFG, "predecessor cache diverged from terminator-derived edges")
	}
	return nil
}

func snapshotPredecessors(c *CFG) map[string][]string {
	out := make(map[string][]string, len(c.blocks))
	for label, b := range c.blocks {
		out[label] = append([]string(nil), b.predecessors...)
	}
	return out
}

func predecessorsEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for label, av := range a {
		bv, ok := b[label]
		if !ok || len(av) != len(bv) {
			return false
		}
		aSet, bSet := map[string]bool{}, map[string]bool{}
		for _, p := range av {
			aSet[p] = true
		}
		for _, p := range bv {
			bSet[p] = true
		}
		for p := range aSet {
			if !bSet[p] {
				return false
			}
		}
	}
	return true
}
