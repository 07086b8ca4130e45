package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/value"
)

// buildCFG constructs a CFG from a build function that receives the
// CFG pointer, for tests that need low-level block/terminator wiring.
func buildCFG(t *testing.T, build func(cfg *il.CFG)) *il.CFG {
	t.Helper()
	cfg := il.NewCFG()
	build(cfg)
	require.NoError(t, cfg.RecomputeEdges())
	return cfg
}

func runtimeErrKind(t *testing.T, err error) diag.Kind {
	t.Helper()
	de, ok := err.(*diag.Error)
	require.True(t, ok, "expected *diag.Error, got %T", err)
	return de.Kind
}

func TestRunArithmeticAndExit(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		mv, _ := il.NewMove("x", il.Const(value.FromInt64(2)))
		op, _ := il.NewBinOp("y", il.OpAdd, il.Register("x"), il.Const(value.FromInt64(3)))
		w, _ := il.NewWrite(il.Register("y"))
		entry.Append(mv)
		entry.Append(op)
		entry.Append(w)
		entry.SetTerminator(&il.Exit{})
	})

	out := &CollectOutput{}
	it := New(cfg, Options{})
	err := it.Run(NewSliceInput(), out, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "5\n", out.Lines())
}

func TestRunBranchSelectsTrueOnNonZero(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		onTrue, _ := cfg.AddBlock("onTrue")
		onFalse, _ := cfg.AddBlock("onFalse")

		mv, _ := il.NewMove("c", il.Const(value.FromInt64(1)))
		entry.Append(mv)
		br, _ := il.NewBranch("c", "onTrue", "onFalse")
		entry.SetTerminator(br)

		w1, _ := il.NewWrite(il.Const(value.FromInt64(111)))
		onTrue.Append(w1)
		onTrue.SetTerminator(&il.Exit{})

		w2, _ := il.NewWrite(il.Const(value.FromInt64(222)))
		onFalse.Append(w2)
		onFalse.SetTerminator(&il.Exit{})
	})

	out := &CollectOutput{}
	require.NoError(t, New(cfg, Options{}).Run(NewSliceInput(), out, nil, nil))
	assert.Equal(t, "111\n", out.Lines())
}

func TestRunPhiAtMergePoint(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		left, _ := cfg.AddBlock("left")
		right, _ := cfg.AddBlock("right")
		merge, _ := cfg.AddBlock("merge")

		mv, _ := il.NewMove("c", il.Const(value.FromInt64(0)))
		entry.Append(mv)
		br, _ := il.NewBranch("c", "left", "right")
		entry.SetTerminator(br)

		left.SetTerminator(mustGoto(t, "merge"))
		right.SetTerminator(mustGoto(t, "merge"))

		phi, _ := il.NewPhi("m", []il.PhiEntry{
			{Value: il.Const(value.FromInt64(10)), Label: "left"},
			{Value: il.Const(value.FromInt64(20)), Label: "right"},
		})
		merge.Append(phi)
		w, _ := il.NewWrite(il.Register("m"))
		merge.Append(w)
		merge.SetTerminator(&il.Exit{})
	})

	out := &CollectOutput{}
	require.NoError(t, New(cfg, Options{}).Run(NewSliceInput(), out, nil, nil))
	assert.Equal(t, "20\n", out.Lines(), "branch takes the false edge to right when c==0")
}

func mustGoto(t *testing.T, target string) *il.Goto {
	t.Helper()
	g, err := il.NewGoto(target)
	require.NoError(t, err)
	return g
}

func TestRunReadWriteRoundTrip(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		r, _ := il.NewRead("x")
		w, _ := il.NewWrite(il.Register("x"))
		entry.Append(r)
		entry.Append(w)
		entry.SetTerminator(&il.Exit{})
	})

	out := &CollectOutput{}
	in := NewSliceInput(value.FromInt64(7))
	require.NoError(t, New(cfg, Options{}).Run(in, out, nil, nil))
	assert.Equal(t, "7\n", out.Lines())
}

func TestRunReadEOFReportsIOError(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		r, _ := il.NewRead("x")
		entry.Append(r)
		entry.SetTerminator(&il.Exit{})
	})

	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindIOError, runtimeErrKind(t, err))
}

func TestRunBrkptInvokesCallback(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		mv, _ := il.NewMove("x", il.Const(value.FromInt64(9)))
		bp, _ := il.NewBrkpt("here")
		entry.Append(mv)
		entry.Append(bp)
		entry.SetTerminator(&il.Exit{})
	})

	var snap Snapshot
	calls := 0
	opts := Options{
		EnableBreakpoints: true,
		OnBreakpoint: func(s Snapshot) {
			snap = s
			calls++
		},
	}
	require.NoError(t, New(cfg, opts).Run(NewSliceInput(), &CollectOutput{}, nil, nil))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "here", snap.Name)
	assert.Equal(t, value.FromInt64(9), snap.Env["x"])
}

func TestRunTraceCollectsEveryStep(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		mv, _ := il.NewMove("x", il.Const(value.FromInt64(1)))
		entry.Append(mv)
		entry.SetTerminator(&il.Exit{})
	})

	tr := &SliceTrace{}
	opts := Options{EnableTrace: true}
	require.NoError(t, New(cfg, opts).Run(NewSliceInput(), &CollectOutput{}, tr, nil))
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, "move", tr.Entries[0].Kind)
	assert.Equal(t, "exit", tr.Entries[1].Kind)
}

func TestRunUnboundPhiAtEntryBlock(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		phi, _ := il.NewPhi("m", []il.PhiEntry{{Value: il.Const(value.FromInt64(1)), Label: "nowhere"}})
		entry.Append(phi)
		entry.SetTerminator(&il.Exit{})
	})
	// The phi's "nowhere" label names no block; entry has no real
	// incoming edges, which is what triggers the entry-phi error path.
	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindUnboundPhi, runtimeErrKind(t, err))
}

func TestRunUndefinedRegister(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		w, _ := il.NewWrite(il.Register("never_set"))
		entry.Append(w)
		entry.SetTerminator(&il.Exit{})
	})
	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindUndefinedRegister, runtimeErrKind(t, err))
}

func TestRunDivByZero(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		op, _ := il.NewBinOp("r", il.OpDiv, il.Const(value.FromInt64(1)), il.Const(value.FromInt64(0)))
		entry.Append(op)
		entry.SetTerminator(&il.Exit{})
	})
	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindDivByZero, runtimeErrKind(t, err))
}

func TestRunNegativeShift(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		op, _ := il.NewBinOp("r", il.OpShl, il.Const(value.FromInt64(1)), il.Const(value.FromInt64(-1)))
		entry.Append(op)
		entry.SetTerminator(&il.Exit{})
	})
	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindNegativeShift, runtimeErrKind(t, err))
}

func TestRunJumpToUndefinedBlockIsInvalidLabel(t *testing.T) {
	// A goto to a nonexistent block is normally caught by RecomputeEdges
	// at build time; skip that call here to exercise the interpreter's
	// own defensive check in execution.
	cfg := il.NewCFG()
	entry, _ := cfg.AddBlock("entry")
	g, _ := il.NewGoto("ghost")
	require.NoError(t, entry.SetTerminator(g))

	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, diag.KindInvalidLabel, runtimeErrKind(t, err))
}

type alwaysCancelled struct{}

func (alwaysCancelled) Cancelled() bool { return true }

func TestRunCancellation(t *testing.T) {
	cfg := buildCFG(t, func(cfg *il.CFG) {
		entry, _ := cfg.AddBlock("entry")
		mv, _ := il.NewMove("x", il.Const(value.FromInt64(1)))
		entry.Append(mv)
		entry.SetTerminator(&il.Exit{})
	})
	err := New(cfg, Options{}).Run(NewSliceInput(), &CollectOutput{}, nil, alwaysCancelled{})
	require.Error(t, err)
	assert.Equal(t, diag.KindCancelled, runtimeErrKind(t, err))
}
