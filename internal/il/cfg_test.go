package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearCFG builds entry -[goto]-> mid -[goto]-> exit, all terminated.
func linearCFG(t *testing.T) *CFG {
	t.Helper()
	cfg := NewCFG()
	entry, err := cfg.AddBlock("entry")
	require.NoError(t, err)
	mid, err := cfg.AddBlock("mid")
	require.NoError(t, err)
	exitB, err := cfg.AddBlock("exit")
	require.NoError(t, err)

	g1, _ := NewGoto("mid")
	require.NoError(t, entry.SetTerminator(g1))
	g2, _ := NewGoto("exit")
	require.NoError(t, mid.SetTerminator(g2))
	require.NoError(t, exitB.SetTerminator(&Exit{}))

	require.NoError(t, cfg.RecomputeEdges())
	return cfg
}

func TestAddBlockEntryAndDuplicate(t *testing.T) {
	cfg := NewCFG()
	b1, err := cfg.AddBlock("entry")
	assert.NoError(t, err)
	assert.Equal(t, "entry", cfg.Entry())
	assert.Equal(t, b1, cfg.blocks["entry"])

	_, err = cfg.AddBlock("entry")
	assert.Error(t, err, "duplicate label rejected")
}

func TestRecomputeEdgesBuildsPredecessors(t *testing.T) {
	cfg := linearCFG(t)
	assert.Equal(t, []string{"entry"}, cfg.Predecessors("mid"))
	assert.Equal(t, []string{"mid"}, cfg.Predecessors("exit"))
	assert.Equal(t, []string{"mid"}, cfg.Successors("entry"))
}

func TestRecomputeEdgesRejectsDanglingTarget(t *testing.T) {
	cfg := NewCFG()
	entry, _ := cfg.AddBlock("entry")
	g, _ := NewGoto("nowhere")
	require.NoError(t, entry.SetTerminator(g))
	assert.Error(t, cfg.RecomputeEdges())
}

func TestRemoveBlockRestrictions(t *testing.T) {
	cfg := linearCFG(t)

	assert.Error(t, cfg.RemoveBlock("entry"), "cannot remove entry")
	assert.Error(t, cfg.RemoveBlock("mid"), "still has incoming edges")
	assert.Error(t, cfg.RemoveBlock("nope"))
}

func TestRenameBlockRewritesTerminatorsAndPhis(t *testing.T) {
	cfg := linearCFG(t)
	require.NoError(t, cfg.RenameBlock("mid", "middle"))

	_, ok := cfg.Block("mid")
	assert.False(t, ok)
	_, ok = cfg.Block("middle")
	assert.True(t, ok)

	entry, _ := cfg.Block("entry")
	g := entry.Terminator().(*Goto)
	assert.Equal(t, "middle", g.Target)

	assert.Error(t, cfg.RenameBlock("nonexistent", "x"))

	_, err := cfg.AddBlock("taken")
	require.NoError(t, err)
	assert.Error(t, cfg.RenameBlock("middle", "taken"), "target label already exists")
}

func TestRedirect(t *testing.T) {
	cfg := linearCFG(t)
	exitB, _ := cfg.Block("exit")
	_ = exitB

	alt, err := cfg.AddBlock("alt")
	require.NoError(t, err)
	require.NoError(t, alt.SetTerminator(&Exit{}))
	require.NoError(t, cfg.RecomputeEdges())

	require.NoError(t, cfg.Redirect("mid", "exit", "alt"))
	assert.Equal(t, []string{"alt"}, cfg.Successors("mid"))
	assert.Empty(t, cfg.Predecessors("exit"))
	assert.Equal(t, []string{"mid"}, cfg.Predecessors("alt"))

	assert.Error(t, cfg.Redirect("mid", "exit", "alt"), "terminator no longer targets oldTarget")
	assert.Error(t, cfg.Redirect("nope", "alt", "exit"))
	assert.Error(t, cfg.Redirect("mid", "alt", "nope"))
}

func TestSplitEdgeInsertsIntermediateBlock(t *testing.T) {
	cfg := linearCFG(t)
	fresh, err := cfg.SplitEdge("entry", "mid")
	require.NoError(t, err)
	assert.NotEqual(t, "entry", fresh)
	assert.NotEqual(t, "mid", fresh)

	assert.Equal(t, []string{fresh}, cfg.Successors("entry"))
	assert.Equal(t, []string{fresh}, cfg.Predecessors("mid"))
	assert.Equal(t, []string{"entry"}, cfg.Predecessors(fresh))
}

func TestBlocksInReversePostorderIncludesUnreachable(t *testing.T) {
	cfg := linearCFG(t)
	orphan, err := cfg.AddBlock("orphan")
	require.NoError(t, err)
	require.NoError(t, orphan.SetTerminator(&Exit{}))

	order := cfg.BlocksInReversePostorder(cfg.Entry())
	labels := make([]string, len(order))
	for i, b := range order {
		labels[i] = b.Label
	}
	assert.Equal(t, "entry", labels[0])
	assert.Contains(t, labels, "orphan")
	assert.Len(t, labels, 4)
}

func TestValidateCatchesUnreachableBlock(t *testing.T) {
	cfg := NewCFG()
	entry, _ := cfg.AddBlock("entry")
	require.NoError(t, entry.SetTerminator(&Exit{}))

	unreachable, _ := cfg.AddBlock("unreachable")
	require.NoError(t, unreachable.SetTerminator(&Exit{}))

	assert.Error(t, cfg.Validate(), "unreachable block has no predecessors")
}

func TestValidateSucceedsOnWellFormedCFG(t *testing.T) {
	cfg := linearCFG(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidateCatchesMissingTerminator(t *testing.T) {
	cfg := NewCFG()
	_, err := cfg.AddBlock("entry")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
