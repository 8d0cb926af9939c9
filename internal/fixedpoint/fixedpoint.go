// Package fixedpoint implements 18-decimal fixed-point arithmetic on big.Int.
package fixedpoint

import (
	"fmt"
	"math/big"

	"poolexit/internal/model"
)

// Decimals is the fixed internal scale.
const Decimals = 18

// One is 1.0 at the fixed scale.
var One = Pow10(Decimals)

// Pow10 returns 10^n.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Sub returns a - b, failing when the result would be negative.
func Sub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, fmt.Errorf("%w: sub underflow %s - %s", model.ErrArithmetic, a, b)
	}
	return new(big.Int).Sub(a, b), nil
}

// MulDown returns a*b/One rounded down.
func MulDown(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, One)
}

// MulUp returns a*b/One rounded up.
func MulUp(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return divUpRaw(product, One)
}

// DivDown returns a*One/b rounded down.
func DivDown(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", model.ErrArithmetic)
	}
	inflated := new(big.Int).Mul(a, One)
	return inflated.Quo(inflated, b), nil
}

// DivUp returns a*One/b rounded up.
func DivUp(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", model.ErrArithmetic)
	}
	inflated := new(big.Int).Mul(a, One)
	return divUpRaw(inflated, b), nil
}

// Complement returns One - x, clamped at zero.
func Complement(x *big.Int) *big.Int {
	if x.Cmp(One) >= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(One, x)
}

// RawDivUp is plain integer division rounded up.
func RawDivUp(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", model.ErrArithmetic)
	}
	return divUpRaw(a, b), nil
}

// divUpRaw assumes non-negative operands and b != 0.
func divUpRaw(a, b *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Sub(a, big.NewInt(1))
	out.Quo(out, b)
	return out.Add(out, big.NewInt(1))
}
