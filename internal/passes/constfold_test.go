package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilforge/internal/il"
	"ilforge/internal/passmgr"
	"ilforge/internal/value"
)

func foldableCFG(t *testing.T) *il.CFG {
	t.Helper()
	cfg := il.NewCFG()
	entry, _ := cfg.AddBlock("entry")
	op, _ := il.NewBinOp("x", il.OpAdd, il.Const(value.FromInt64(2)), il.Const(value.FromInt64(3)))
	require.NoError(t, entry.Append(op))
	w, _ := il.NewWrite(il.Register("x"))
	require.NoError(t, entry.Append(w))
	require.NoError(t, entry.SetTerminator(&il.Exit{}))
	require.NoError(t, cfg.RecomputeEdges())
	return cfg
}

func TestConstFoldReplacesConstConstBinOp(t *testing.T) {
	cfg := foldableCFG(t)
	m := newManager(t, cfg)

	r, err := m.Require(passmgr.PassQuery{ID: ConstFoldID})
	require.NoError(t, err)
	stats := r.Data.(ConstFoldStats)
	assert.Equal(t, 1, stats.Folded)

	entry, _ := cfg.Block("entry")
	mv, ok := entry.At(0).(*il.Move)
	require.True(t, ok, "folded BinOp becomes a Move")
	assert.True(t, mv.Src.IsConst())
	assert.Equal(t, "5", mv.Src.Const.String())
}

func TestConstFoldDeclinesDivByZero(t *testing.T) {
	cfg := il.NewCFG()
	entry, _ := cfg.AddBlock("entry")
	op, _ := il.NewBinOp("x", il.OpDiv, il.Const(value.FromInt64(1)), il.Const(value.FromInt64(0)))
	require.NoError(t, entry.Append(op))
	require.NoError(t, entry.SetTerminator(&il.Exit{}))
	require.NoError(t, cfg.RecomputeEdges())

	m := newManager(t, cfg)
	r, err := m.Require(passmgr.PassQuery{ID: ConstFoldID})
	require.NoError(t, err)
	stats := r.Data.(ConstFoldStats)
	assert.Equal(t, 0, stats.Folded, "folding a div-by-zero would change which diagnostic runs")

	entry, _ = cfg.Block("entry")
	_, stillBinOp := entry.At(0).(*il.BinOp)
	assert.True(t, stillBinOp)
}

func TestConstFoldDeclinesNegativeShift(t *testing.T) {
	cfg := il.NewCFG()
	entry, _ := cfg.AddBlock("entry")
	op, _ := il.NewBinOp("x", il.OpShl, il.Const(value.FromInt64(1)), il.Const(value.FromInt64(-1)))
	require.NoError(t, entry.Append(op))
	require.NoError(t, entry.SetTerminator(&il.Exit{}))
	require.NoError(t, cfg.RecomputeEdges())

	m := newManager(t, cfg)
	r, err := m.Require(passmgr.PassQuery{ID: ConstFoldID})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Data.(ConstFoldStats).Folded)
}

func TestConstFoldPreservesLiveness(t *testing.T) {
	cfg := foldableCFG(t)
	m := newManager(t, cfg)

	before, err := m.Require(passmgr.PassQuery{ID: LivenessID})
	require.NoError(t, err)

	_, err = m.Require(passmgr.PassQuery{ID: ConstFoldID})
	require.NoError(t, err)

	after, err := m.Require(passmgr.PassQuery{ID: LivenessID})
	require.NoError(t, err)
	assert.Same(t, before.Data, after.Data, "constfold names liveness in its preserved set, so it is reused, not rerun")
}

func TestConstFoldChainsThroughMoves(t *testing.T) {
	cfg := il.NewCFG()
	entry, _ := cfg.AddBlock("entry")
	mv, _ := il.NewMove("a", il.Const(value.FromInt64(4)))
	require.NoError(t, entry.Append(mv))
	op, _ := il.NewBinOp("b", il.OpMul, il.Register("a"), il.Const(value.FromInt64(5)))
	require.NoError(t, entry.Append(op))
	require.NoError(t, entry.SetTerminator(&il.Exit{}))
	require.NoError(t, cfg.RecomputeEdges())

	m := newManager(t, cfg)
	r, err := m.Require(passmgr.PassQuery{ID: ConstFoldID})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Data.(ConstFoldStats).Folded)

	entry, _ = cfg.Block("entry")
	mv2 := entry.At(1).(*il.Move)
	assert.Equal(t, "20", mv2.Src.Const.String())
}
