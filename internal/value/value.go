// Package value implements the sole runtime value type of the IL: an
// arbitrary-precision signed integer.
package value

import (
	"fmt"
	"math/big"
)

// Int is an arbitrary-precision signed integer. It is the only value
// type the interpreter ever manipulates; there is no float, string, or
// pointer value in the IL.
type Int struct {
	v *big.Int
}

// Zero is the additive identity, useful as a default/undefined marker.
var Zero = FromInt64(0)

// FromInt64 builds an Int from a native int64.
func FromInt64(n int64) Int {
	return Int{v: big.NewInt(n)}
}

// FromString parses a decimal or 0x-prefixed hexadecimal signed
// integer literal, matching the <int> production of the surface
// grammar: '-'? ('0x' hex+ | dec+).
func FromString(s string) (Int, error) {
	neg := false
	rest := s
	if len(rest) > 0 && rest[0] == '-' {
		neg = true
		rest = rest[1:]
	}

	base := 10
	if len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		base = 16
		rest = rest[2:]
	}

	n, ok := new(big.Int).SetString(rest, base)
	if !ok {
		return Int{}, fmt.Errorf("not an integer literal: %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return Int{v: n}, nil
}

// String renders the value in decimal, matching the interpreter's
// output-stream format (one decimal integer per line).
func (i Int) String() string {
	if i.v == nil {
		return "0"
	}
	return i.v.String()
}

// IsZero reports whether the value is exactly zero. Branch semantics
// hinge on this: zero takes the false edge, any other
// value — including negatives — takes the true edge.
func (i Int) IsZero() bool {
	return i.v == nil || i.v.Sign() == 0
}

// Sign returns -1, 0, or 1.
func (i Int) Sign() int {
	if i.v == nil {
		return 0
	}
	return i.v.Sign()
}

// Cmp compares two values, returning -1, 0, or 1.
func (i Int) Cmp(o Int) int {
	return i.big().Cmp(o.big())
}

func (i Int) big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return i.v
}

func wrap(n *big.Int) Int { return Int{v: n} }

// Add, Sub, Mul implement unchecked (unbounded) arithmetic.
func (i Int) Add(o Int) Int { return wrap(new(big.Int).Add(i.big(), o.big())) }
func (i Int) Sub(o Int) Int { return wrap(new(big.Int).Sub(i.big(), o.big())) }
func (i Int) Mul(o Int) Int { return wrap(new(big.Int).Mul(i.big(), o.big())) }

// QuoRem implements truncated-toward-zero division and its
// complementary remainder:
//
//	lhs = (lhs/rhs)*rhs + (lhs%rhs)
//
// big.Int.QuoRem already truncates toward zero, matching this.
func (i Int) QuoRem(o Int) (q, r Int, divByZero bool) {
	if o.IsZero() {
		return Int{}, Int{}, true
	}
	qq, rr := new(big.Int), new(big.Int)
	qq.QuoRem(i.big(), o.big(), rr)
	return wrap(qq), wrap(rr), false
}

// And, Or, Xor implement bitwise operations over two's-complement
// arbitrary-precision integers, as big.Int already does.
func (i Int) And(o Int) Int { return wrap(new(big.Int).And(i.big(), o.big())) }
func (i Int) Or(o Int) Int  { return wrap(new(big.Int).Or(i.big(), o.big())) }
func (i Int) Xor(o Int) Int { return wrap(new(big.Int).Xor(i.big(), o.big())) }

// Shl and Shr implement left and arithmetic-right shift. The shift
// amount must be non-negative; callers are responsible for raising
// NegativeShift before calling Shr/Shl with a negative amount (Int has
// no signed-shift-amount type of its own).
func (i Int) Shl(bits uint) Int { return wrap(new(big.Int).Lsh(i.big(), bits)) }
func (i Int) Shr(bits uint) Int { return wrap(new(big.Int).Rsh(i.big(), bits)) }

// FitsUint reports whether the value is non-negative and small enough
// to use as a shift amount or index, returning it as a uint.
func (i Int) FitsUint() (uint, bool) {
	if i.Sign() < 0 || !i.big().IsUint64() {
		return 0, false
	}
	return uint(i.big().Uint64()), true
}

// Eq, Ne, Lt, Le are the comparison instructions' semantics; they
// return the canonical boolean-as-Int encoding (0 or 1) used
// throughout the IL.
func (i Int) Eq(o Int) Int { return boolInt(i.Cmp(o) == 0) }
func (i Int) Ne(o Int) Int { return boolInt(i.Cmp(o) != 0) }
func (i Int) Lt(o Int) Int { return boolInt(i.Cmp(o) < 0) }
func (i Int) Le(o Int) Int { return boolInt(i.Cmp(o) <= 0) }

func boolInt(b bool) Int {
	if b {
		return FromInt64(1)
	}
	return FromInt64(0)
}
