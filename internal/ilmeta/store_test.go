package ilmeta

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetDelete(t *testing.T) {
	s := New()
	s.Set(CFGScope(), "source", []string{"a.il"})
	assert.Equal(t, []string{"a.il"}, s.Get(CFGScope(), "source", nil))

	s.Delete(CFGScope(), "source")
	assert.Nil(t, s.Get(CFGScope(), "source", nil))
	assert.Equal(t, []string{"fallback"}, s.Get(CFGScope(), "source", []string{"fallback"}))
}

func TestAppendAccumulates(t *testing.T) {
	s := New()
	s.Append(BlockScope("entry"), "note", []string{"first"})
	s.Append(BlockScope("entry"), "note", []string{"second"})
	assert.Equal(t, []string{"first", "second"}, s.Get(BlockScope("entry"), "note", nil))
}

func TestScopesAreIndependent(t *testing.T) {
	s := New()
	s.Set(CFGScope(), "k", []string{"cfg"})
	s.Set(BlockScope("b"), "k", []string{"block"})
	s.Set(InstrScope("b", 0), "k", []string{"instr"})

	assert.Equal(t, []string{"cfg"}, s.Get(CFGScope(), "k", nil))
	assert.Equal(t, []string{"block"}, s.Get(BlockScope("b"), "k", nil))
	assert.Equal(t, []string{"instr"}, s.Get(InstrScope("b", 0), "k", nil))
}

func TestAllIteratesEveryEntry(t *testing.T) {
	s := New()
	s.Set(CFGScope(), "a", []string{"1"})
	s.Set(BlockScope("b"), "c", []string{"2"})

	all := s.All()
	assert.Len(t, all, 2)
}

func TestOnInsertShiftsLaterInstrEntriesUp(t *testing.T) {
	s := New()
	s.Set(InstrScope("b", 0), "k", []string{"zero"})
	s.Set(InstrScope("b", 1), "k", []string{"one"})

	s.OnInsert("b", 1)

	assert.Equal(t, []string{"zero"}, s.Get(InstrScope("b", 0), "k", nil))
	assert.Equal(t, []string{"one"}, s.Get(InstrScope("b", 2), "k", nil))
	assert.Nil(t, s.Get(InstrScope("b", 1), "k", nil))
}

func TestOnRemoveDropsAndShiftsDown(t *testing.T) {
	s := New()
	s.Set(InstrScope("b", 0), "k", []string{"zero"})
	s.Set(InstrScope("b", 1), "k", []string{"one"})
	s.Set(InstrScope("b", 2), "k", []string{"two"})

	s.OnRemove("b", 1)

	assert.Equal(t, []string{"zero"}, s.Get(InstrScope("b", 0), "k", nil))
	assert.Equal(t, []string{"two"}, s.Get(InstrScope("b", 1), "k", nil))
	assert.Nil(t, s.Get(InstrScope("b", 2), "k", nil))
}

func TestOnReplaceIsNoOp(t *testing.T) {
	s := New()
	s.Set(InstrScope("b", 0), "k", []string{"zero"})
	s.OnReplace("b", 0)
	assert.Equal(t, []string{"zero"}, s.Get(InstrScope("b", 0), "k", nil))
}

func TestShiftDoesNotAffectOtherBlocks(t *testing.T) {
	s := New()
	s.Set(InstrScope("a", 0), "k", []string{"a0"})
	s.Set(InstrScope("b", 0), "k", []string{"b0"})

	s.OnInsert("a", 0)

	assert.Equal(t, []string{"a0"}, s.Get(InstrScope("a", 1), "k", nil))
	assert.Equal(t, []string{"b0"}, s.Get(InstrScope("b", 0), "k", nil))
}

func sortedKeys(s *Store, scope Scope) []string {
	var keys []string
	for _, e := range s.All() {
		if e.Scope == scope {
			keys = append(keys, e.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func TestSortedKeysHelperMatchesEntries(t *testing.T) {
	s := New()
	s.Set(CFGScope(), "zeta", []string{"1"})
	s.Set(CFGScope(), "alpha", []string{"2"})
	assert.Equal(t, []string{"alpha", "zeta"}, sortedKeys(s, CFGScope()))
}
