package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndErrorStringWithoutPosition(t *testing.T) {
	e := New(KindMalformedCFG, "block @%s missing terminator", "entry")
	assert.Equal(t, "D0002: block @entry missing terminator", e.Error())
}

func TestWithPosAddsLocationToErrorString(t *testing.T) {
	e := New(KindSyntaxError, "unexpected token").WithPos(Position{Filename: "a.il", Line: 3, Column: 5}, 2)
	assert.Equal(t, "D0500: unexpected token (a.il:3:5)", e.Error())
	assert.Equal(t, 2, e.Length)
}

func TestWithNoteAppends(t *testing.T) {
	e := New(KindBadArgument, "bad arg").WithNote("first").WithNote("second")
	assert.Equal(t, []string{"first", "second"}, e.Notes)
}

func TestIsKind(t *testing.T) {
	e := New(KindDivByZero, "boom")
	assert.True(t, IsKind(e, KindDivByZero))
	assert.False(t, IsKind(e, KindIOError))
	assert.False(t, IsKind(assertPlainError{}, KindDivByZero))
}

type assertPlainError struct{}

func (assertPlainError) Error() string { return "plain" }
