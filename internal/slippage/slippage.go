// Package slippage applies one-directional slippage bounds.
package slippage

import (
	"fmt"
	"math/big"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

// SubSlippage returns the minimum acceptable amount received:
// amount * (1 - s), rounded down.
func SubSlippage(amount, s *big.Int) (*big.Int, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	if s.Cmp(fixedpoint.One) > 0 {
		return nil, fmt.Errorf("%w: slippage %s above one", model.ErrInputOutOfBounds, s)
	}
	return fixedpoint.MulDown(amount, new(big.Int).Sub(fixedpoint.One, s)), nil
}

// AddSlippage returns the maximum acceptable amount spent:
// amount * (1 + s), rounded up.
func AddSlippage(amount, s *big.Int) (*big.Int, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return fixedpoint.MulUp(amount, new(big.Int).Add(fixedpoint.One, s)), nil
}

// Parse parses an 18-decimal slippage fraction. An empty value means zero.
func Parse(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	s, err := fixedpoint.ParseInteger(value)
	if err != nil {
		return nil, fmt.Errorf("slippage: %w", err)
	}
	return s, nil
}

func validate(s *big.Int) error {
	if s == nil || s.Sign() < 0 {
		return fmt.Errorf("%w: negative slippage", model.ErrInputOutOfBounds)
	}
	return nil
}
