package ilsyntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
)

const simpleProgram = `@entry:
  %x = 2
  %y = %x + 3
  write %y
  exit
`

func TestParseSimpleProgram(t *testing.T) {
	cfg, _, err := Parse("simple.il", simpleProgram)
	require.NoError(t, err)
	assert.Equal(t, "entry", cfg.Entry())

	entry, ok := cfg.Block("entry")
	require.True(t, ok)
	assert.Equal(t, 3, entry.Len(), "two assigns plus one write, not counting the terminator")
}

func TestParseBranchingProgramStructure(t *testing.T) {
	src := `@entry:
  %c = 1
  branch %c ? @left : @right
@left:
  %v = 10
  goto @merge
@right:
  %v = 20
  goto @merge
@merge:
  %m = phi [%v, @left], [%v, @right]
  write %m
  exit
`
	cfg, _, err := Parse("branch.il", src)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.ElementsMatch(t, []string{"left", "right"}, cfg.Successors("entry"))
	assert.ElementsMatch(t, []string{"left", "right"}, cfg.Predecessors("merge"))
}

func TestParseNegativeLiteralVsMinusOperator(t *testing.T) {
	src := `@entry:
  %a = -5
  %b = %a - 3
  exit
`
	cfg, _, err := Parse("neg.il", src)
	require.NoError(t, err)
	entry, _ := cfg.Block("entry")
	assert.Equal(t, 2, entry.Len())
}

func TestParseGreaterThanAliasesNormalizeToLess(t *testing.T) {
	src := `@entry:
  %a = %x > %y
  %b = %x >= %y
  exit
`
	cfg, _, err := Parse("gt.il", src)
	require.NoError(t, err)
	entry, _ := cfg.Block("entry")

	a := entry.At(0).(*il.BinOp)
	assert.Equal(t, il.OpLt, a.Op)
	assert.Equal(t, "y", a.Lhs.Name)
	assert.Equal(t, "x", a.Rhs.Name)

	b := entry.At(1).(*il.BinOp)
	assert.Equal(t, il.OpLe, b.Op)
	assert.Equal(t, "y", b.Lhs.Name)
	assert.Equal(t, "x", b.Rhs.Name)
}

func TestParseUnaryMinusAndTildeNormalizeToBinOp(t *testing.T) {
	src := `@entry:
  %a = -%x
  %b = ~%x
  exit
`
	cfg, _, err := Parse("unary.il", src)
	require.NoError(t, err)
	entry, _ := cfg.Block("entry")

	a := entry.At(0).(*il.BinOp)
	assert.Equal(t, il.OpSub, a.Op)
	assert.True(t, a.Lhs.IsConst())
	assert.Equal(t, "0", a.Lhs.Const.String())
	assert.Equal(t, "x", a.Rhs.Name)

	b := entry.At(1).(*il.BinOp)
	assert.Equal(t, il.OpXor, b.Op)
	assert.Equal(t, "x", b.Lhs.Name)
	assert.True(t, b.Rhs.IsConst())
	assert.Equal(t, "-1", b.Rhs.Const.String())
}

func TestParseCFGMetadataLine(t *testing.T) {
	src := `;#! source = "origin.il"
@entry:
  exit
`
	_, meta, err := Parse("meta.il", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"origin.il"}, meta.Get(ilmeta.CFGScope(), "source", nil))
}

func TestParseBlockAndInstrMetadata(t *testing.T) {
	src := `@entry:
  ;@! note = "entry block"
  %x = 1
  ;%! trace = "set x"
  exit
`
	_, meta, err := Parse("meta2.il", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry block"}, meta.Get(ilmeta.BlockScope("entry"), "note", nil))
	assert.Equal(t, []string{"set x"}, meta.Get(ilmeta.InstrScope("entry", 0), "trace", nil))
}

func TestParseInstrMetadataBeforeAnyInstructionErrors(t *testing.T) {
	src := `@entry:
  ;%! trace = "oops"
  exit
`
	_, _, err := Parse("bad.il", src)
	assert.Error(t, err)
}

func TestParseRejectsInstructionAfterTerminator(t *testing.T) {
	src := `@entry:
  exit
  %x = 1
`
	_, _, err := Parse("bad2.il", src)
	assert.Error(t, err)
}

func TestParseRejectsMissingTerminator(t *testing.T) {
	src := `@entry:
  %x = 1
`
	_, _, err := Parse("bad3.il", src)
	assert.Error(t, err)
}

func TestPrintParseRoundTripsCFGStructure(t *testing.T) {
	cfg, meta, err := Parse("simple.il", simpleProgram)
	require.NoError(t, err)

	printed := Print(cfg, meta)
	cfg2, _, err := Parse("simple_reprinted.il", printed)
	require.NoError(t, err)

	assert.Equal(t, cfg.Entry(), cfg2.Entry())
	b1, _ := cfg.Block("entry")
	b2, _ := cfg2.Block("entry")
	assert.Equal(t, b1.Len(), b2.Len())
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, _, err := Parse("broken.il", "@entry:\n  %x = \n")
	require.Error(t, err)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.NotNil(t, de.Pos)
}
